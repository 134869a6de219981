package asf

import (
	"encoding/binary"
	"fmt"
)

// GUID is a 128-bit ASF object or media type identifier in wire order
// (first three fields little-endian).
type GUID [16]byte

func newGUID(d1 uint32, d2, d3 uint16, d4 [8]byte) GUID {
	var g GUID
	binary.LittleEndian.PutUint32(g[0:4], d1)
	binary.LittleEndian.PutUint16(g[4:6], d2)
	binary.LittleEndian.PutUint16(g[6:8], d3)
	copy(g[8:], d4[:])
	return g
}

// String formats the GUID in its canonical registry form.
func (g GUID) String() string {
	return fmt.Sprintf("%08X-%04X-%04X-%X-%X",
		binary.LittleEndian.Uint32(g[0:4]),
		binary.LittleEndian.Uint16(g[4:6]),
		binary.LittleEndian.Uint16(g[6:8]),
		g[8:10], g[10:16])
}

// Object and media type identifiers understood by the parser.
var (
	HeaderObjectID             = newGUID(0x75B22630, 0x668E, 0x11CF, [8]byte{0xA6, 0xD9, 0x00, 0xAA, 0x00, 0x62, 0xCE, 0x6C})
	DataObjectID               = newGUID(0x75B22636, 0x668E, 0x11CF, [8]byte{0xA6, 0xD9, 0x00, 0xAA, 0x00, 0x62, 0xCE, 0x6C})
	FilePropertiesID           = newGUID(0x8CABDCA1, 0xA947, 0x11CF, [8]byte{0x8E, 0xE4, 0x00, 0xC0, 0x0C, 0x20, 0x53, 0x65})
	StreamPropertiesID         = newGUID(0xB7DC0791, 0xA9B7, 0x11CF, [8]byte{0x8E, 0xE6, 0x00, 0xC0, 0x0C, 0x20, 0x53, 0x65})
	HeaderExtensionID          = newGUID(0x5FBF03B5, 0xA92E, 0x11CF, [8]byte{0x8E, 0xE3, 0x00, 0xC0, 0x0C, 0x20, 0x53, 0x65})
	ExtendedStreamPropertiesID = newGUID(0x14E6A5CB, 0xC672, 0x4332, [8]byte{0x83, 0x99, 0xA9, 0x69, 0x52, 0x06, 0x5B, 0x5A})

	AudioMediaID   = newGUID(0xF8699E40, 0x5B4D, 0x11CF, [8]byte{0xA8, 0xFD, 0x00, 0x80, 0x5F, 0x5C, 0x44, 0x2B})
	VideoMediaID   = newGUID(0xBC19EFC0, 0x5B4D, 0x11CF, [8]byte{0xA8, 0xFD, 0x00, 0x80, 0x5F, 0x5C, 0x44, 0x2B})
	CommandMediaID = newGUID(0x59DACFC0, 0x59E6, 0x11D0, [8]byte{0xA3, 0xAC, 0x00, 0xA0, 0xC9, 0x03, 0x48, 0xF6})
)
