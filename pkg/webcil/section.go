package webcil

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// SectionHeader is a section directory record. The same type describes
// sections of the source PE image, where PointerToRawData is the original
// file offset, and of the WebCIL file.
type SectionHeader struct {
	VirtualSize      uint32
	VirtualAddress   uint32
	SizeOfRawData    uint32
	PointerToRawData uint32
}

// Encode writes the record into b, which must hold at least
// SectionHeaderSize bytes.
func (s SectionHeader) Encode(b []byte) {
	_ = b[SectionHeaderSize-1]
	binary.LittleEndian.PutUint32(b[0:], s.VirtualSize)
	binary.LittleEndian.PutUint32(b[4:], s.VirtualAddress)
	binary.LittleEndian.PutUint32(b[8:], s.SizeOfRawData)
	binary.LittleEndian.PutUint32(b[12:], s.PointerToRawData)
}

// DecodeSectionHeader decodes a single section directory record.
func DecodeSectionHeader(b []byte) (SectionHeader, error) {
	if len(b) < SectionHeaderSize {
		return SectionHeader{}, errors.Errorf("section header too short: %d bytes", len(b))
	}
	return SectionHeader{
		VirtualSize:      binary.LittleEndian.Uint32(b[0:]),
		VirtualAddress:   binary.LittleEndian.Uint32(b[4:]),
		SizeOfRawData:    binary.LittleEndian.Uint32(b[8:]),
		PointerToRawData: binary.LittleEndian.Uint32(b[12:]),
	}, nil
}

// EncodeSectionDirectory encodes all records back to back.
func EncodeSectionDirectory(sections []SectionHeader) []byte {
	b := make([]byte, len(sections)*SectionHeaderSize)
	for i, s := range sections {
		s.Encode(b[i*SectionHeaderSize:])
	}
	return b
}

// DecodeSectionDirectory decodes n consecutive records from b.
func DecodeSectionDirectory(b []byte, n int) ([]SectionHeader, error) {
	if len(b) < n*SectionHeaderSize {
		return nil, errors.Errorf("section directory too short: %d bytes for %d sections", len(b), n)
	}
	res := make([]SectionHeader, n)
	for i := range res {
		s, err := DecodeSectionHeader(b[i*SectionHeaderSize:])
		if err != nil {
			return nil, err
		}
		res[i] = s
	}
	return res, nil
}

// ContainsRVA reports whether rva falls in the section's virtual range.
func (s SectionHeader) ContainsRVA(rva uint32) bool {
	return rva >= s.VirtualAddress && uint64(rva) < uint64(s.VirtualAddress)+uint64(s.VirtualSize)
}

// ContainsOffset reports whether the file offset falls in the section's raw data.
func (s SectionHeader) ContainsOffset(offset int64) bool {
	return offset >= int64(s.PointerToRawData) && offset < int64(s.PointerToRawData)+int64(s.SizeOfRawData)
}

// End returns the file position right after the section's raw data.
func (s SectionHeader) End() FilePosition {
	return FilePosition(s.PointerToRawData).Add(s.SizeOfRawData)
}
