package peimagetest

import (
	"encoding/binary"

	"github.com/grafana/webcil/pkg/webcil"
)

// Layout of Sample. The .text section starts at file offset 0x200 and the
// .sdata section at 0x400.
const (
	SampleCLIHeaderRVA = 0x2008
	SampleMetadataRVA  = 0x2080
	SampleMetadataSize = 0x40
	SampleDebugRVA     = 0x2100
	SampleCodeViewRVA  = 0x4050
	SampleCodeViewPtr  = 0x450
	SampleCodeViewSize = 0x20
	SampleStamp        = 0xdeadbeef
)

// SampleDebugEntries are the debug directory entries stored in Sample.
func SampleDebugEntries() []webcil.DebugDirectoryEntry {
	return []webcil.DebugDirectoryEntry{
		{
			Stamp:        SampleStamp,
			MajorVersion: 0x100,
			MinorVersion: 0x504d,
			Type:         webcil.DebugTypeCodeView,
			DataSize:     SampleCodeViewSize,
			DataRVA:      SampleCodeViewRVA,
			DataPointer:  SampleCodeViewPtr,
		},
		{
			Stamp: SampleStamp,
			Type:  webcil.DebugTypeReproducible,
		},
	}
}

// Sample returns a two section image shaped like a small managed assembly:
// .text holds the CLI header, the metadata and the debug directory, .sdata
// holds the CodeView record the first debug entry points to.
func Sample() Image {
	text := make([]byte, 0x200)
	for i := range text {
		text[i] = byte(i)
	}
	cor := text[SampleCLIHeaderRVA-0x2000:]
	binary.LittleEndian.PutUint32(cor[0:], 0x48)
	binary.LittleEndian.PutUint16(cor[4:], 2)
	binary.LittleEndian.PutUint16(cor[6:], 5)
	binary.LittleEndian.PutUint32(cor[8:], SampleMetadataRVA)
	binary.LittleEndian.PutUint32(cor[12:], SampleMetadataSize)
	binary.LittleEndian.PutUint32(cor[16:], 1)
	binary.LittleEndian.PutUint32(cor[20:], 0x06000001)
	copy(text[SampleMetadataRVA-0x2000:], "BSJB")

	entries := SampleDebugEntries()
	PutDebugDirectory(text, SampleDebugRVA-0x2000, entries...)

	sdata := make([]byte, 0x100)
	for i := range sdata {
		sdata[i] = 0xa5
	}
	copy(sdata[SampleCodeViewRVA-0x4000:], "RSDS")

	return Image{
		Sections: []Section{
			{Name: ".text", VirtualAddress: 0x2000, VirtualSize: 0x200, Data: text},
			{Name: ".sdata", VirtualAddress: 0x4000, VirtualSize: 0x100, Data: sdata},
		},
		CLIHeader: webcil.DataDirectory{RVA: SampleCLIHeaderRVA, Size: 0x48},
		Debug:     webcil.DataDirectory{RVA: SampleDebugRVA, Size: uint32(len(entries) * webcil.DebugDirectoryEntrySize)},
	}
}
