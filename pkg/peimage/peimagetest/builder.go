// Package peimagetest synthesizes small PE images for tests.
package peimagetest

import (
	"encoding/binary"

	"github.com/grafana/webcil/pkg/webcil"
)

const (
	dosHeaderSize     = 0x80
	coffHeaderSize    = 20
	optHeader32Size   = 224
	optHeader64Size   = 240
	sectionHeaderSize = 40
	fileAlignment     = 0x200
	sectionAlignment  = 0x2000

	machineI386  = 0x14c
	machineAMD64 = 0x8664
)

// Section is a section of the synthesized image. The raw data size is
// len(Data); raw data is placed at the next multiple of the file alignment.
// Sections without data get a zero PointerToRawData, like .bss.
type Section struct {
	Name           string
	VirtualAddress uint32
	VirtualSize    uint32
	Data           []byte
}

// Image describes the PE image to build.
type Image struct {
	PE64      bool
	Sections  []Section
	CLIHeader webcil.DataDirectory
	Debug     webcil.DataDirectory
}

// PutDebugDirectory encodes entries into data at offset off.
func PutDebugDirectory(data []byte, off int, entries ...webcil.DebugDirectoryEntry) {
	copy(data[off:], webcil.EncodeDebugDirectory(entries))
}

// Offsets returns the PointerToRawData each section gets in Build.
func (img Image) Offsets() []uint32 {
	optSize := optHeader32Size
	if img.PE64 {
		optSize = optHeader64Size
	}
	cursor := align(uint32(dosHeaderSize+4+coffHeaderSize+optSize+len(img.Sections)*sectionHeaderSize), fileAlignment)
	offsets := make([]uint32, len(img.Sections))
	for i, s := range img.Sections {
		if len(s.Data) == 0 {
			continue
		}
		offsets[i] = cursor
		cursor = align(cursor+uint32(len(s.Data)), fileAlignment)
	}
	return offsets
}

// Build returns the bytes of a PE image that debug/pe can read.
func (img Image) Build() []byte {
	optSize := optHeader32Size
	machine := uint16(machineI386)
	if img.PE64 {
		optSize = optHeader64Size
		machine = machineAMD64
	}
	offsets := img.Offsets()
	headersSize := align(uint32(dosHeaderSize+4+coffHeaderSize+optSize+len(img.Sections)*sectionHeaderSize), fileAlignment)
	size := headersSize
	for i, s := range img.Sections {
		size = max(size, offsets[i]+uint32(len(s.Data)))
	}

	buf := make([]byte, size)
	buf[0] = 'M'
	buf[1] = 'Z'
	binary.LittleEndian.PutUint32(buf[0x3c:], dosHeaderSize)
	copy(buf[dosHeaderSize:], "PE\x00\x00")

	coff := buf[dosHeaderSize+4:]
	binary.LittleEndian.PutUint16(coff[0:], machine)
	binary.LittleEndian.PutUint16(coff[2:], uint16(len(img.Sections)))
	binary.LittleEndian.PutUint32(coff[4:], 0x5f5e100)
	binary.LittleEndian.PutUint16(coff[16:], uint16(optSize))
	binary.LittleEndian.PutUint16(coff[18:], 0x2102)

	opt := coff[coffHeaderSize:]
	dirs := opt[96:]
	if img.PE64 {
		binary.LittleEndian.PutUint16(opt[0:], 0x20b)
		binary.LittleEndian.PutUint64(opt[24:], 0x180000000)
		binary.LittleEndian.PutUint32(opt[108:], 16)
		dirs = opt[112:]
	} else {
		binary.LittleEndian.PutUint16(opt[0:], 0x10b)
		binary.LittleEndian.PutUint32(opt[28:], 0x10000000)
		binary.LittleEndian.PutUint32(opt[92:], 16)
	}
	binary.LittleEndian.PutUint32(opt[32:], sectionAlignment)
	binary.LittleEndian.PutUint32(opt[36:], fileAlignment)
	binary.LittleEndian.PutUint32(opt[60:], headersSize)
	putDirectory(dirs, 6, img.Debug)
	putDirectory(dirs, 14, img.CLIHeader)

	sh := opt[optSize:]
	for i, s := range img.Sections {
		h := sh[i*sectionHeaderSize:]
		copy(h[0:8], s.Name)
		binary.LittleEndian.PutUint32(h[8:], s.VirtualSize)
		binary.LittleEndian.PutUint32(h[12:], s.VirtualAddress)
		binary.LittleEndian.PutUint32(h[16:], uint32(len(s.Data)))
		binary.LittleEndian.PutUint32(h[20:], offsets[i])
		binary.LittleEndian.PutUint32(h[36:], 0x60000020)
		copy(buf[offsets[i]:], s.Data)
	}
	return buf
}

func putDirectory(dirs []byte, idx int, d webcil.DataDirectory) {
	binary.LittleEndian.PutUint32(dirs[idx*8:], d.RVA)
	binary.LittleEndian.PutUint32(dirs[idx*8+4:], d.Size)
}

func align(n, alignment uint32) uint32 {
	return (n + alignment - 1) &^ (alignment - 1)
}
