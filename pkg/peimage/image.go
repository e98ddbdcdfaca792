// Package peimage extracts from a PE/COFF image the information needed to
// rewrite it as a WebCIL file. Header parsing is done by debug/pe.
package peimage

import (
	"debug/pe"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/grafana/webcil/pkg/webcil"
)

// Image is a read-only view of a parsed PE image.
type Image struct {
	r io.ReaderAt

	Machine uint16
	// Sections in section table order. PointerToRawData is the offset in
	// the PE file.
	Sections []webcil.SectionHeader
	Names    []string

	CLIHeader webcil.DataDirectory
	Debug     webcil.DataDirectory
	// DebugEntries are the decoded records of the debug directory table.
	DebugEntries []webcil.DebugDirectoryEntry

	// FirstSectionOffset is the lowest PointerToRawData of all sections
	// holding raw data.
	FirstSectionOffset webcil.FilePosition

	// Cor is the CLI header, nil when the image has none.
	Cor *CorHeader
}

// New parses the PE image read from r. r must stay valid for as long as
// the Image is used.
func New(r io.ReaderAt) (*Image, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse PE file")
	}
	defer f.Close()

	img := &Image{
		r:        r,
		Machine:  f.FileHeader.Machine,
		Sections: make([]webcil.SectionHeader, 0, len(f.Sections)),
		Names:    make([]string, 0, len(f.Sections)),
	}

	first := uint32(math.MaxUint32)
	for _, s := range f.Sections {
		img.Sections = append(img.Sections, webcil.SectionHeader{
			VirtualSize:      s.VirtualSize,
			VirtualAddress:   s.VirtualAddress,
			SizeOfRawData:    s.Size,
			PointerToRawData: s.Offset,
		})
		img.Names = append(img.Names, strings.TrimRight(s.Name, "\x00"))
		// Uninitialized data sections have no file bytes and often a zero
		// PointerToRawData.
		if s.Size > 0 {
			first = min(first, s.Offset)
		}
	}
	if first != math.MaxUint32 {
		img.FirstSectionOffset = webcil.FilePosition(first)
	}

	img.CLIHeader = dataDirectory(f, pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR)
	img.Debug = dataDirectory(f, pe.IMAGE_DIRECTORY_ENTRY_DEBUG)

	if img.Debug.Size > 0 {
		b, err := img.ReadRVA(img.Debug.RVA, img.Debug.Size)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read debug directory")
		}
		if img.DebugEntries, err = webcil.DecodeDebugDirectory(b); err != nil {
			return nil, err
		}
	}

	if img.CLIHeader.Size > 0 {
		b, err := img.ReadRVA(img.CLIHeader.RVA, min(img.CLIHeader.Size, corHeaderSize))
		if err != nil {
			return nil, errors.Wrap(err, "failed to read CLI header")
		}
		if img.Cor, err = decodeCorHeader(b); err != nil {
			return nil, err
		}
	}

	return img, nil
}

func dataDirectory(f *pe.File, idx int) webcil.DataDirectory {
	var (
		dirs [16]pe.DataDirectory
		n    uint32
	)
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs, n = oh.DataDirectory, oh.NumberOfRvaAndSizes
	case *pe.OptionalHeader64:
		dirs, n = oh.DataDirectory, oh.NumberOfRvaAndSizes
	default:
		return webcil.DataDirectory{}
	}
	if uint32(idx) >= n {
		return webcil.DataDirectory{}
	}
	return webcil.DataDirectory{RVA: dirs[idx].VirtualAddress, Size: dirs[idx].Size}
}

// ReadRVA reads size bytes of the image at rva. The whole range must lie
// in the raw data of the section mapping rva.
func (img *Image) ReadRVA(rva, size uint32) ([]byte, error) {
	off, err := webcil.RawRange(img.Sections, rva, size)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err = img.r.ReadAt(buf, int64(off)); err != nil {
		return nil, errors.Wrapf(err, "failed to read %d bytes at offset %s", size, off)
	}
	return buf, nil
}

// SectionReader returns a reader over the raw data of section i.
func (img *Image) SectionReader(i int) *io.SectionReader {
	s := img.Sections[i]
	return io.NewSectionReader(img.r, int64(s.PointerToRawData), int64(s.SizeOfRawData))
}
