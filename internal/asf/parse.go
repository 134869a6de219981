package asf

import (
	"encoding/binary"
	"fmt"
)

const (
	objectHeaderLen       = 24
	headerObjectLen       = 30
	filePropertiesLen     = 104
	streamPropertiesLen   = 78
	headerExtensionLen    = 46
	extendedStreamPropLen = 88

	waveFormatLen     = 18
	videoFormatLen    = 11
	bitmapInfoLen     = 40
	streamNumberMask  = 0x7F
	encryptedFlagMask = 0x8000
)

// Parser decodes ASF header objects. The zero value is ready to use.
type Parser struct{}

// Parse decodes b as an ASF header object.
func (Parser) Parse(b []byte) (*Header, error) {
	return Parse(b)
}

// Parse decodes an ASF header object: the header object itself followed by
// its child objects. Unknown child objects are skipped. The header must carry
// a file properties object.
func Parse(b []byte) (*Header, error) {
	if len(b) < headerObjectLen {
		return nil, &ParseError{Object: "header", Err: ErrTruncated}
	}
	if GUID(b[0:16]) != HeaderObjectID {
		return nil, ErrNotHeader
	}

	size := binary.LittleEndian.Uint64(b[16:24])
	if size < headerObjectLen {
		return nil, &ParseError{Object: "header", Err: ErrInvalidObjectSize}
	}
	// A header delivered inside an MMS packet may be followed by the start
	// of the data object; never read past the declared header size.
	if size < uint64(len(b)) {
		b = b[:size]
	}
	count := int(binary.LittleEndian.Uint32(b[24:28]))

	h := &Header{}
	var (
		extended     = map[int]*ExtendedProperties{}
		haveFileProp bool
	)

	offset := headerObjectLen
	for i := 0; i < count && offset < len(b); i++ {
		obj, objSize, err := nextObject(b, offset)
		if err != nil {
			return nil, err
		}

		switch obj {
		case FilePropertiesID:
			if err := parseFileProperties(h, b[offset:offset+objSize]); err != nil {
				return nil, &ParseError{Object: "file properties", Offset: offset, Err: err}
			}
			haveFileProp = true

		case StreamPropertiesID:
			s, err := parseStreamProperties(b[offset : offset+objSize])
			if err != nil {
				return nil, &ParseError{Object: "stream properties", Offset: offset, Err: err}
			}
			h.Streams[s.Number] = s

		case HeaderExtensionID:
			if err := parseHeaderExtension(b[offset:offset+objSize], extended); err != nil {
				return nil, &ParseError{Object: "header extension", Offset: offset, Err: err}
			}
		}

		offset += objSize
	}

	if !haveFileProp {
		return nil, ErrNoFileProperties
	}

	for n, ext := range extended {
		if s := h.Streams[n]; s != nil {
			s.Extended = ext
		}
	}

	return h, nil
}

// nextObject reads the GUID and size of the object starting at offset and
// validates that the whole object lies within b.
func nextObject(b []byte, offset int) (GUID, int, error) {
	if offset+objectHeaderLen > len(b) {
		return GUID{}, 0, &ParseError{Object: "object header", Offset: offset, Err: ErrTruncated}
	}
	id := GUID(b[offset : offset+16])
	size := binary.LittleEndian.Uint64(b[offset+16 : offset+24])
	if size < objectHeaderLen {
		return GUID{}, 0, &ParseError{Object: id.String(), Offset: offset, Err: ErrInvalidObjectSize}
	}
	if size > uint64(len(b)-offset) {
		return GUID{}, 0, &ParseError{Object: id.String(), Offset: offset, Err: ErrTruncated}
	}
	return id, int(size), nil
}

func parseFileProperties(h *Header, b []byte) error {
	if len(b) < filePropertiesLen {
		return ErrTruncated
	}
	h.FileSize = binary.LittleEndian.Uint64(b[40:48])
	h.DataPacketCount = binary.LittleEndian.Uint64(b[56:64])
	h.PlayDuration = binary.LittleEndian.Uint64(b[64:72])
	h.SendDuration = binary.LittleEndian.Uint64(b[72:80])
	h.Preroll = binary.LittleEndian.Uint64(b[80:88])
	h.Flags = binary.LittleEndian.Uint32(b[88:92])
	h.MinPacketSize = binary.LittleEndian.Uint32(b[92:96])
	h.MaxPacketSize = binary.LittleEndian.Uint32(b[96:100])
	h.MaxBitrate = binary.LittleEndian.Uint32(b[100:104])
	return nil
}

func parseStreamProperties(b []byte) (*Stream, error) {
	if len(b) < streamPropertiesLen {
		return nil, ErrTruncated
	}

	mediaType := GUID(b[24:40])
	typeLen := int(binary.LittleEndian.Uint32(b[64:68]))
	flags := binary.LittleEndian.Uint16(b[72:74])

	s := &Stream{
		Number:    int(flags & streamNumberMask),
		Encrypted: flags&encryptedFlagMask != 0,
	}
	if s.Number == 0 {
		return nil, ErrInvalidStreamIndex
	}
	if typeLen > len(b)-streamPropertiesLen {
		return nil, fmt.Errorf("type-specific data length %d: %w", typeLen, ErrTruncated)
	}
	data := b[streamPropertiesLen : streamPropertiesLen+typeLen]

	switch mediaType {
	case AudioMediaID:
		s.Kind = KindAudio
		if len(data) >= waveFormatLen {
			s.Audio = &AudioFormat{
				CodecID:          binary.LittleEndian.Uint16(data[0:2]),
				Channels:         binary.LittleEndian.Uint16(data[2:4]),
				SamplesPerSecond: binary.LittleEndian.Uint32(data[4:8]),
				BytesPerSecond:   binary.LittleEndian.Uint32(data[8:12]),
				BlockAlign:       binary.LittleEndian.Uint16(data[12:14]),
				BitsPerSample:    binary.LittleEndian.Uint16(data[14:16]),
			}
		}
	case VideoMediaID:
		s.Kind = KindVideo
		if len(data) >= videoFormatLen {
			s.Video = &VideoFormat{
				EncodedWidth:  binary.LittleEndian.Uint32(data[0:4]),
				EncodedHeight: binary.LittleEndian.Uint32(data[4:8]),
			}
			formatLen := int(binary.LittleEndian.Uint16(data[9:11]))
			if formatLen >= bitmapInfoLen && len(data) >= videoFormatLen+bitmapInfoLen {
				bmp := data[videoFormatLen:]
				s.Video.Bitmap = &BitmapInfo{
					Width:       binary.LittleEndian.Uint32(bmp[4:8]),
					Height:      binary.LittleEndian.Uint32(bmp[8:12]),
					BitCount:    binary.LittleEndian.Uint16(bmp[14:16]),
					Compression: binary.LittleEndian.Uint32(bmp[16:20]),
					ImageSize:   binary.LittleEndian.Uint32(bmp[20:24]),
				}
			}
		}
	case CommandMediaID:
		s.Kind = KindCommand
	}

	return s, nil
}

func parseHeaderExtension(b []byte, out map[int]*ExtendedProperties) error {
	if len(b) < headerExtensionLen {
		return ErrTruncated
	}
	dataLen := int(binary.LittleEndian.Uint32(b[42:46]))
	if dataLen > len(b)-headerExtensionLen {
		return ErrTruncated
	}
	data := b[headerExtensionLen : headerExtensionLen+dataLen]

	for offset := 0; offset < len(data); {
		id, size, err := nextObject(data, offset)
		if err != nil {
			return err
		}
		if id == ExtendedStreamPropertiesID {
			n, ext, err := parseExtendedStreamProperties(data[offset : offset+size])
			if err != nil {
				return err
			}
			out[n] = ext
		}
		offset += size
	}
	return nil
}

func parseExtendedStreamProperties(b []byte) (int, *ExtendedProperties, error) {
	if len(b) < extendedStreamPropLen {
		return 0, nil, ErrTruncated
	}
	n := int(binary.LittleEndian.Uint16(b[72:74]))
	if n < 1 || n > MaxStreamNumber {
		return 0, nil, ErrInvalidStreamIndex
	}
	return n, &ExtendedProperties{
		StartTime:       binary.LittleEndian.Uint64(b[24:32]),
		EndTime:         binary.LittleEndian.Uint64(b[32:40]),
		DataBitrate:     binary.LittleEndian.Uint32(b[40:44]),
		BufferSize:      binary.LittleEndian.Uint32(b[44:48]),
		AltDataBitrate:  binary.LittleEndian.Uint32(b[52:56]),
		MaxObjectSize:   binary.LittleEndian.Uint32(b[64:68]),
		ExtendedFlags:   binary.LittleEndian.Uint32(b[68:72]),
		LanguageIndex:   binary.LittleEndian.Uint16(b[74:76]),
		AvgTimePerFrame: binary.LittleEndian.Uint64(b[76:84]),
		StreamNameCount: binary.LittleEndian.Uint16(b[84:86]),
		PayloadExtCount: binary.LittleEndian.Uint16(b[86:88]),
	}, nil
}
