package webcil

// Section table names used in errors.
const (
	LayoutPE     = "PE"
	LayoutWebcil = "Webcil"
)

// RVAToOffset translates a relative virtual address into a file offset
// using the section that maps it. Use RawRange when the bytes are read or
// written; an rva in the memory-only tail of a section maps past its raw
// data.
func RVAToOffset(sections []SectionHeader, rva uint32) (FilePosition, error) {
	_, s, local, err := SectionFromRVA(sections, rva)
	if err != nil {
		return 0, err
	}
	return FilePosition(s.PointerToRawData).Add(local), nil
}

// SectionFromOffset returns the index of the section whose raw data holds
// the file offset, the section, and the offset relative to its start.
// layout names the section table in the returned error.
func SectionFromOffset(sections []SectionHeader, offset int64, layout string) (int, SectionHeader, uint32, error) {
	for i, s := range sections {
		if s.ContainsOffset(offset) {
			return i, s, uint32(offset - int64(s.PointerToRawData)), nil
		}
	}
	return -1, SectionHeader{}, 0, OffsetNotInSectionError{Offset: offset, Layout: layout}
}

// SectionFromRVA returns the index of the section whose virtual range
// holds rva, the section, and rva relative to its virtual address.
func SectionFromRVA(sections []SectionHeader, rva uint32) (int, SectionHeader, uint32, error) {
	for i, s := range sections {
		if s.ContainsRVA(rva) {
			return i, s, rva - s.VirtualAddress, nil
		}
	}
	return -1, SectionHeader{}, 0, RVANotInSectionError{RVA: rva}
}

// RawRange translates [rva, rva+size) into a file offset. The whole range
// must lie in the raw data of the section mapping rva; the memory-only tail
// of a section past SizeOfRawData has no file bytes.
func RawRange(sections []SectionHeader, rva, size uint32) (FilePosition, error) {
	i, s, local, err := SectionFromRVA(sections, rva)
	if err != nil {
		return 0, err
	}
	if uint64(local)+uint64(size) > uint64(s.SizeOfRawData) {
		return 0, RangeNotInRawDataError{RVA: rva, Size: size, Section: i, SizeOfRawData: s.SizeOfRawData}
	}
	return FilePosition(s.PointerToRawData).Add(local), nil
}
