// Package webcil implements the WebCIL container format.
//
// WebCIL is a compact replacement for the PE/COFF headers of a managed
// assembly. It keeps the section payloads and the information a runtime
// loader needs to map them (section virtual addresses, the CLI header and
// the debug directory) and drops everything else.
package webcil

import "fmt"

// File format constants
const (
	// Current version of the WebCIL format
	Version uint8 = 0

	// Size of the file header in bytes
	HeaderSize = 24

	// Size of a section directory record in bytes
	SectionHeaderSize = 16

	// Size of a debug directory entry in bytes
	DebugDirectoryEntrySize = 28
)

// Magic is the two byte signature at the start of every WebCIL file.
var Magic = [2]byte{'W', 'C'}

// DebugType identifies the kind of data a debug directory entry describes.
type DebugType uint32

const (
	DebugTypeUnknown             DebugType = 0
	DebugTypeCOFF                DebugType = 1
	DebugTypeCodeView            DebugType = 2
	DebugTypeReproducible        DebugType = 16
	DebugTypeEmbeddedPortablePdb DebugType = 17
	DebugTypePdbChecksum         DebugType = 19
)

func (t DebugType) String() string {
	switch t {
	case DebugTypeUnknown:
		return "unknown"
	case DebugTypeCOFF:
		return "coff"
	case DebugTypeCodeView:
		return "codeview"
	case DebugTypeReproducible:
		return "reproducible"
	case DebugTypeEmbeddedPortablePdb:
		return "embedded-portable-pdb"
	case DebugTypePdbChecksum:
		return "pdb-checksum"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// HasDataPointer reports whether entries of this type reference their
// data by file offset. Reproducible entries carry no data.
func (t DebugType) HasDataPointer() bool {
	return t != DebugTypeReproducible
}
