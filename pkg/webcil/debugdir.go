package webcil

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// DebugDirectoryEntry is a record of the debug directory table.
//
//	offset size field
//	0      4    characteristics, always 0
//	4      4    time date stamp
//	8      2    major version
//	10     2    minor version
//	12     4    type
//	16     4    size of data
//	20     4    RVA of data
//	24     4    file pointer to data
type DebugDirectoryEntry struct {
	Stamp        uint32
	MajorVersion uint16
	MinorVersion uint16
	Type         DebugType
	DataSize     uint32
	DataRVA      uint32
	DataPointer  uint32
}

// Encode writes the entry into b, which must hold at least
// DebugDirectoryEntrySize bytes.
func (e DebugDirectoryEntry) Encode(b []byte) {
	_ = b[DebugDirectoryEntrySize-1]
	binary.LittleEndian.PutUint32(b[0:], 0)
	binary.LittleEndian.PutUint32(b[4:], e.Stamp)
	binary.LittleEndian.PutUint16(b[8:], e.MajorVersion)
	binary.LittleEndian.PutUint16(b[10:], e.MinorVersion)
	binary.LittleEndian.PutUint32(b[12:], uint32(e.Type))
	binary.LittleEndian.PutUint32(b[16:], e.DataSize)
	binary.LittleEndian.PutUint32(b[20:], e.DataRVA)
	binary.LittleEndian.PutUint32(b[24:], e.DataPointer)
}

// DecodeDebugDirectoryEntry decodes a single entry. The characteristics
// field is reserved and ignored.
func DecodeDebugDirectoryEntry(b []byte) (DebugDirectoryEntry, error) {
	if len(b) < DebugDirectoryEntrySize {
		return DebugDirectoryEntry{}, errors.Errorf("debug directory entry too short: %d bytes", len(b))
	}
	return DebugDirectoryEntry{
		Stamp:        binary.LittleEndian.Uint32(b[4:]),
		MajorVersion: binary.LittleEndian.Uint16(b[8:]),
		MinorVersion: binary.LittleEndian.Uint16(b[10:]),
		Type:         DebugType(binary.LittleEndian.Uint32(b[12:])),
		DataSize:     binary.LittleEndian.Uint32(b[16:]),
		DataRVA:      binary.LittleEndian.Uint32(b[20:]),
		DataPointer:  binary.LittleEndian.Uint32(b[24:]),
	}, nil
}

// EncodeDebugDirectory encodes the entries back to back.
func EncodeDebugDirectory(entries []DebugDirectoryEntry) []byte {
	b := make([]byte, len(entries)*DebugDirectoryEntrySize)
	for i, e := range entries {
		e.Encode(b[i*DebugDirectoryEntrySize:])
	}
	return b
}

// DecodeDebugDirectory decodes a whole debug directory table. The table
// length must be a multiple of the entry size.
func DecodeDebugDirectory(b []byte) ([]DebugDirectoryEntry, error) {
	if len(b)%DebugDirectoryEntrySize != 0 {
		return nil, errors.Errorf("debug directory size %d is not a multiple of %d", len(b), DebugDirectoryEntrySize)
	}
	entries := make([]DebugDirectoryEntry, len(b)/DebugDirectoryEntrySize)
	for i := range entries {
		e, err := DecodeDebugDirectoryEntry(b[i*DebugDirectoryEntrySize:])
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}
