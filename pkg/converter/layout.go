package converter

import (
	"github.com/grafana/webcil/pkg/peimage"
	"github.com/grafana/webcil/pkg/webcil"
)

// Layout describes the WebCIL file written for a PE image.
type Layout struct {
	Header   webcil.Header
	Sections []webcil.SectionHeader
	// FirstSectionOffset is the file position right after the section
	// directory, where the raw data of the first section starts.
	FirstSectionOffset webcil.FilePosition
}

// Plan computes the WebCIL layout of img. Virtual addresses and sizes are
// copied from the PE section table; raw data is packed back to back, in
// section table order, right after the section directory.
func Plan(img *peimage.Image) Layout {
	n := len(img.Sections)
	first := webcil.FilePosition(webcil.DirectorySize(n))

	sections := make([]webcil.SectionHeader, 0, n)
	cursor := first
	for _, s := range img.Sections {
		sections = append(sections, webcil.SectionHeader{
			VirtualSize:      s.VirtualSize,
			VirtualAddress:   s.VirtualAddress,
			SizeOfRawData:    s.SizeOfRawData,
			PointerToRawData: uint32(cursor),
		})
		cursor = cursor.Add(s.SizeOfRawData)
	}

	return Layout{
		Header:             webcil.NewHeader(uint16(n), img.CLIHeader, img.Debug),
		Sections:           sections,
		FirstSectionOffset: first,
	}
}

// Size returns the size of the WebCIL file described by l.
func (l Layout) Size() int64 {
	if len(l.Sections) == 0 {
		return int64(l.FirstSectionOffset)
	}
	return int64(l.Sections[len(l.Sections)-1].End())
}

// Bytes encodes the header followed by the section directory.
func (l Layout) Bytes() []byte {
	return append(l.Header.Bytes(), webcil.EncodeSectionDirectory(l.Sections)...)
}
