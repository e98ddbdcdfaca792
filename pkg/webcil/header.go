package webcil

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// DataDirectory locates a region of the image by RVA.
type DataDirectory struct {
	RVA  uint32
	Size uint32
}

// Empty reports whether the directory does not describe any region.
func (d DataDirectory) Empty() bool {
	return d.RVA == 0 && d.Size == 0
}

// Header is the fixed size header at the start of a WebCIL file.
//
//	offset size field
//	0      2    magic 'W' 'C'
//	2      1    version
//	3      1    reserved, 0
//	4      2    number of sections
//	6      2    reserved, 0
//	8      4    CLI header RVA
//	12     4    CLI header size
//	16     4    debug directory RVA
//	20     4    debug directory size
type Header struct {
	Magic     [2]byte
	Version   uint8
	Sections  uint16
	CLIHeader DataDirectory
	Debug     DataDirectory
}

// NewHeader returns a header with the current magic and version.
func NewHeader(sections uint16, cliHeader, debug DataDirectory) Header {
	return Header{
		Magic:     Magic,
		Version:   Version,
		Sections:  sections,
		CLIHeader: cliHeader,
		Debug:     debug,
	}
}

// Encode writes the header into b, which must hold at least HeaderSize bytes.
// Reserved fields are always written as zero.
func (h Header) Encode(b []byte) {
	_ = b[HeaderSize-1]
	b[0] = h.Magic[0]
	b[1] = h.Magic[1]
	b[2] = h.Version
	b[3] = 0
	binary.LittleEndian.PutUint16(b[4:], h.Sections)
	binary.LittleEndian.PutUint16(b[6:], 0)
	binary.LittleEndian.PutUint32(b[8:], h.CLIHeader.RVA)
	binary.LittleEndian.PutUint32(b[12:], h.CLIHeader.Size)
	binary.LittleEndian.PutUint32(b[16:], h.Debug.RVA)
	binary.LittleEndian.PutUint32(b[20:], h.Debug.Size)
}

// Bytes returns the encoded header.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	h.Encode(b)
	return b
}

// DecodeHeader decodes a header from b and validates its magic and version.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errors.Errorf("header too short: %d bytes, expected %d", len(b), HeaderSize)
	}
	h := Header{
		Magic:    [2]byte{b[0], b[1]},
		Version:  b[2],
		Sections: binary.LittleEndian.Uint16(b[4:]),
		CLIHeader: DataDirectory{
			RVA:  binary.LittleEndian.Uint32(b[8:]),
			Size: binary.LittleEndian.Uint32(b[12:]),
		},
		Debug: DataDirectory{
			RVA:  binary.LittleEndian.Uint32(b[16:]),
			Size: binary.LittleEndian.Uint32(b[20:]),
		},
	}
	if h.Magic != Magic {
		return Header{}, ErrInvalidMagic
	}
	if h.Version != Version {
		return Header{}, errors.Errorf("unsupported version: expected %d, got %d", Version, h.Version)
	}
	return h, nil
}

// DirectorySize returns the size in bytes of the header followed by the
// section directory for n sections.
func DirectorySize(n int) uint32 {
	return uint32(HeaderSize + n*SectionHeaderSize)
}
