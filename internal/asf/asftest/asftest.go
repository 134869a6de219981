// Package asftest builds synthetic ASF header objects for tests.
package asftest

import (
	"encoding/binary"

	"github.com/zsiec/mmsget/internal/asf"
)

// Stream describes one stream to encode.
type Stream struct {
	Number int
	Kind   asf.StreamKind

	// Audio
	BytesPerSecond uint32

	// Video
	Width, Height uint32
	WithBitmap    bool

	// ExtendedBitrate, when non-zero, adds an extended stream properties
	// object to the header extension.
	ExtendedBitrate uint32
}

// Header describes the header object to encode.
type Header struct {
	FileSize      uint64
	Flags         uint32
	MinPacketSize uint32
	MaxPacketSize uint32
	Streams       []Stream
}

// Build encodes h as an ASF header object.
func Build(h Header) []byte {
	var objects [][]byte
	objects = append(objects, fileProperties(h))
	for _, s := range h.Streams {
		objects = append(objects, streamProperties(s))
	}

	var ext [][]byte
	for _, s := range h.Streams {
		if s.ExtendedBitrate != 0 {
			ext = append(ext, extendedStreamProperties(s))
		}
	}
	if len(ext) > 0 {
		objects = append(objects, headerExtension(ext))
	}

	body := make([]byte, 6)
	binary.LittleEndian.PutUint32(body[0:4], uint32(len(objects)))
	body[4] = 0x01
	body[5] = 0x02
	for _, o := range objects {
		body = append(body, o...)
	}
	return object(asf.HeaderObjectID, body)
}

func object(id asf.GUID, body []byte) []byte {
	b := make([]byte, 24, 24+len(body))
	copy(b[0:16], id[:])
	binary.LittleEndian.PutUint64(b[16:24], uint64(24+len(body)))
	return append(b, body...)
}

func fileProperties(h Header) []byte {
	body := make([]byte, 80)
	binary.LittleEndian.PutUint64(body[16:24], h.FileSize)
	binary.LittleEndian.PutUint32(body[64:68], h.Flags)
	binary.LittleEndian.PutUint32(body[68:72], h.MinPacketSize)
	binary.LittleEndian.PutUint32(body[72:76], h.MaxPacketSize)
	return object(asf.FilePropertiesID, body)
}

func streamProperties(s Stream) []byte {
	var (
		mediaType asf.GUID
		data      []byte
	)
	switch s.Kind {
	case asf.KindAudio:
		mediaType = asf.AudioMediaID
		data = make([]byte, 18)
		binary.LittleEndian.PutUint16(data[0:2], 0x0161)
		binary.LittleEndian.PutUint16(data[2:4], 2)
		binary.LittleEndian.PutUint32(data[4:8], 44100)
		binary.LittleEndian.PutUint32(data[8:12], s.BytesPerSecond)
	case asf.KindVideo:
		mediaType = asf.VideoMediaID
		data = make([]byte, 11)
		binary.LittleEndian.PutUint32(data[0:4], s.Width)
		binary.LittleEndian.PutUint32(data[4:8], s.Height)
		if s.WithBitmap {
			binary.LittleEndian.PutUint16(data[9:11], 40)
			bmp := make([]byte, 40)
			binary.LittleEndian.PutUint32(bmp[0:4], 40)
			binary.LittleEndian.PutUint32(bmp[4:8], s.Width)
			binary.LittleEndian.PutUint32(bmp[8:12], s.Height)
			binary.LittleEndian.PutUint16(bmp[14:16], 24)
			data = append(data, bmp...)
		}
	case asf.KindCommand:
		mediaType = asf.CommandMediaID
	}

	body := make([]byte, 54, 54+len(data))
	copy(body[0:16], mediaType[:])
	binary.LittleEndian.PutUint32(body[40:44], uint32(len(data)))
	binary.LittleEndian.PutUint16(body[48:50], uint16(s.Number&0x7F))
	body = append(body, data...)
	return object(asf.StreamPropertiesID, body)
}

func extendedStreamProperties(s Stream) []byte {
	body := make([]byte, 64)
	binary.LittleEndian.PutUint32(body[16:20], s.ExtendedBitrate)
	binary.LittleEndian.PutUint16(body[48:50], uint16(s.Number))
	return object(asf.ExtendedStreamPropertiesID, body)
}

func headerExtension(children [][]byte) []byte {
	var data []byte
	for _, c := range children {
		data = append(data, c...)
	}
	body := make([]byte, 22, 22+len(data))
	binary.LittleEndian.PutUint32(body[18:22], uint32(len(data)))
	body = append(body, data...)
	return object(asf.HeaderExtensionID, body)
}
