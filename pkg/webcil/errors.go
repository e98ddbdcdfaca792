package webcil

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform is returned on hosts that are not little-endian.
	ErrUnsupportedPlatform = errors.New("unsupported platform: host byte order is not little-endian")

	// ErrInvalidMagic is returned when a file does not start with 'W' 'C'.
	ErrInvalidMagic = errors.New("invalid magic number")

	// ErrDebugDirectorySpan is returned when rewritten debug directory
	// entries would not exactly cover the region reserved for them.
	ErrDebugDirectorySpan = errors.New("debug directory span mismatch")
)

// RVANotInSectionError reports an RVA that no section maps.
type RVANotInSectionError struct {
	RVA uint32
}

func (e RVANotInSectionError) Error() string {
	return fmt.Sprintf("relative virtual address 0x%x not in any section", e.RVA)
}

// OffsetNotInSectionError reports a file offset outside every section of
// the named layout ("PE" or "Webcil").
type OffsetNotInSectionError struct {
	Offset int64
	Layout string
}

func (e OffsetNotInSectionError) Error() string {
	return fmt.Sprintf("file offset 0x%x not in any section (%s)", e.Offset, e.Layout)
}

// RangeNotInRawDataError reports an RVA range that its section maps in
// memory but does not back with raw data from the file.
type RangeNotInRawDataError struct {
	RVA           uint32
	Size          uint32
	Section       int
	SizeOfRawData uint32
}

func (e RangeNotInRawDataError) Error() string {
	return fmt.Sprintf("range of %d bytes at rva 0x%x exceeds the raw data of section %d (%d bytes)", e.Size, e.RVA, e.Section, e.SizeOfRawData)
}

// IsMalformed reports whether err was caused by an address or offset that
// does not fit the image's own section table.
func IsMalformed(err error) bool {
	var rvaErr RVANotInSectionError
	var offErr OffsetNotInSectionError
	var rangeErr RangeNotInRawDataError
	return errors.As(err, &rvaErr) || errors.As(err, &offErr) || errors.As(err, &rangeErr) || errors.Is(err, ErrDebugDirectorySpan)
}
