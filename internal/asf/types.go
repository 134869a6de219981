// Package asf parses the header object of an Advanced Systems Format
// container: file properties, per-stream properties and the extended stream
// properties carried in the header extension. It does not read data or index
// objects.
package asf

// File property flags.
const (
	FlagBroadcast uint32 = 0x1
	FlagSeekable  uint32 = 0x2
)

// MaxStreamNumber is the highest stream number an ASF file can carry.
const MaxStreamNumber = 127

// StreamKind classifies a stream by its media type GUID.
type StreamKind int

// Known stream kinds.
const (
	KindUnknown StreamKind = iota
	KindAudio
	KindVideo
	KindCommand
)

func (k StreamKind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Header is the decoded ASF header object.
type Header struct {
	FileSize        uint64
	DataPacketCount uint64
	PlayDuration    uint64
	SendDuration    uint64
	Preroll         uint64
	Flags           uint32
	MinPacketSize   uint32
	MaxPacketSize   uint32
	MaxBitrate      uint32

	// Streams is indexed by stream number; index 0 is never populated.
	Streams [MaxStreamNumber + 1]*Stream
}

// Stream returns the properties for stream number n, or nil if the header
// does not declare it.
func (h *Header) Stream(n int) *Stream {
	if n < 1 || n > MaxStreamNumber {
		return nil
	}
	return h.Streams[n]
}

// PacketSize returns the fixed data packet size. ASF only defines a packet
// size when the minimum and maximum agree.
func (h *Header) PacketSize() (uint32, bool) {
	if h.MinPacketSize == 0 || h.MinPacketSize != h.MaxPacketSize {
		return 0, false
	}
	return h.MinPacketSize, true
}

// Broadcast reports whether the broadcast flag is set.
func (h *Header) Broadcast() bool { return h.Flags&FlagBroadcast != 0 }

// Seekable reports whether the seekable flag is set.
func (h *Header) Seekable() bool { return h.Flags&FlagSeekable != 0 }

// Stream holds the properties of a single ASF stream.
type Stream struct {
	Number    int
	Kind      StreamKind
	Encrypted bool

	Audio    *AudioFormat
	Video    *VideoFormat
	Extended *ExtendedProperties
}

// AudioFormat is the WAVEFORMATEX structure of an audio stream.
type AudioFormat struct {
	CodecID          uint16
	Channels         uint16
	SamplesPerSecond uint32
	BytesPerSecond   uint32
	BlockAlign       uint16
	BitsPerSample    uint16
}

// VideoFormat is the type-specific data of a video stream.
type VideoFormat struct {
	EncodedWidth  uint32
	EncodedHeight uint32
	Bitmap        *BitmapInfo
}

// BitmapInfo is the BITMAPINFOHEADER embedded in a video stream.
type BitmapInfo struct {
	Width       uint32
	Height      uint32
	BitCount    uint16
	Compression uint32
	ImageSize   uint32
}

// ExtendedProperties carries the fields of the extended stream properties
// object that describe bandwidth.
type ExtendedProperties struct {
	StartTime       uint64
	EndTime         uint64
	DataBitrate     uint32
	BufferSize      uint32
	AltDataBitrate  uint32
	MaxObjectSize   uint32
	AvgTimePerFrame uint64
	LanguageIndex   uint16
	StreamNameCount uint16
	PayloadExtCount uint16
	ExtendedFlags   uint32
}
