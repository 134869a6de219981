package mmsh

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderLen is the size of the framing header that precedes every packet.
	HeaderLen = 4
	// DataHeaderLen is the size of the sub-header at the start of DATA,
	// HEADER and METADATA payloads.
	DataHeaderLen = 8
	// ReasonLen is the size of the reason field carried by PAIR, STREAM_C
	// and END packets.
	ReasonLen = 4

	// DefaultPacketSize is the ASF data packet size assumed when the header
	// does not define one.
	DefaultPacketSize = 2888
)

// PacketType is the type byte of a framed packet.
type PacketType uint8

// The six packet types an MMSH server sends. Any other value means the
// stream is corrupt.
const (
	TypeStreamChange PacketType = 0x43 // 'C'
	TypeData         PacketType = 0x44 // 'D'
	TypeEnd          PacketType = 0x45 // 'E'
	TypeHeader       PacketType = 0x48 // 'H'
	TypeMetadata     PacketType = 0x4D // 'M'
	TypePair         PacketType = 0x50 // 'P'
)

// Valid reports whether t is one of the known packet types.
func (t PacketType) Valid() bool {
	switch t {
	case TypeStreamChange, TypeData, TypeEnd, TypeHeader, TypeMetadata, TypePair:
		return true
	}
	return false
}

func (t PacketType) String() string {
	switch t {
	case TypeStreamChange:
		return "stream-change"
	case TypeData:
		return "data"
	case TypeEnd:
		return "end"
	case TypeHeader:
		return "header"
	case TypeMetadata:
		return "metadata"
	case TypePair:
		return "pair"
	}
	return fmt.Sprintf("unknown(0x%02X)", uint8(t))
}

// PacketHeader is the 4-byte framing header. The first byte packs a reserved
// bit (least significant) and a 7-bit sequence; servers normally send '$'.
type PacketHeader struct {
	Reserved bool
	Sequence uint8
	Type     PacketType
	Length   uint16
}

// parseHeader decodes the framing header at the start of b, which must hold
// at least HeaderLen bytes.
func parseHeader(b []byte) PacketHeader {
	return PacketHeader{
		Reserved: b[0]&0x01 != 0,
		Sequence: b[0] >> 1,
		Type:     PacketType(b[1]),
		Length:   binary.LittleEndian.Uint16(b[2:4]),
	}
}

// AppendHeader appends the wire encoding of h to b.
func AppendHeader(b []byte, h PacketHeader) []byte {
	first := h.Sequence << 1
	if h.Reserved {
		first |= 0x01
	}
	b = append(b, first, byte(h.Type))
	return binary.LittleEndian.AppendUint16(b, h.Length)
}

// DataHeader is the 8-byte sub-header that opens DATA, HEADER and METADATA
// payloads.
type DataHeader struct {
	ID          uint32
	Incarnation uint8
	Flags       uint8
	Size        uint16
}

// parseDataHeader decodes the sub-header at the start of b, which must hold
// at least DataHeaderLen bytes.
func parseDataHeader(b []byte) DataHeader {
	return DataHeader{
		ID:          binary.LittleEndian.Uint32(b[0:4]),
		Incarnation: b[4],
		Flags:       b[5],
		Size:        binary.LittleEndian.Uint16(b[6:8]),
	}
}

// AppendDataHeader appends the wire encoding of h to b.
func AppendDataHeader(b []byte, h DataHeader) []byte {
	b = binary.LittleEndian.AppendUint32(b, h.ID)
	b = append(b, h.Incarnation, h.Flags)
	return binary.LittleEndian.AppendUint16(b, h.Size)
}

// parseReason reads the 4-byte reason field that PAIR, STREAM_C and END
// packets carry in place of a data sub-header.
func parseReason(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b[0:ReasonLen])
}

// Packet is one complete framed packet as seen by a handler.
type Packet struct {
	Header PacketHeader

	// Body holds the Length bytes that follow the framing header.
	Body []byte

	// buffered holds every byte buffered after the framing header,
	// including bytes beyond Body. PAIR packets may extend past their
	// declared length.
	buffered []byte
}
