package webcil

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// File is a WebCIL file opened for reading.
type File struct {
	r      io.ReaderAt
	closer io.Closer

	Header   Header
	Sections []SectionHeader
}

// NewFile reads the header and the section directory from r and validates
// that every section lies after the directory.
func NewFile(r io.ReaderAt) (*File, error) {
	buf := make([]byte, HeaderSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}

	n := int(hdr.Sections)
	buf = make([]byte, n*SectionHeaderSize)
	if n > 0 {
		if _, err = r.ReadAt(buf, HeaderSize); err != nil {
			return nil, errors.Wrap(err, "failed to read section directory")
		}
	}
	sections, err := DecodeSectionDirectory(buf, n)
	if err != nil {
		return nil, err
	}

	start := DirectorySize(n)
	for i, s := range sections {
		if s.PointerToRawData < start {
			return nil, errors.Errorf("section %d starts at 0x%x, inside the section directory", i, s.PointerToRawData)
		}
	}

	return &File{r: r, Header: hdr, Sections: sections}, nil
}

// Open opens the named WebCIL file on fs. The caller must Close the file.
func Open(fs afero.Fs, name string) (*File, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	wf, err := NewFile(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	wf.closer = f
	return wf, nil
}

// Close releases the underlying file, if File owns one.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// Section returns a reader over the raw data of section i.
func (f *File) Section(i int) *io.SectionReader {
	s := f.Sections[i]
	return io.NewSectionReader(f.r, int64(s.PointerToRawData), int64(s.SizeOfRawData))
}

// RVAToOffset translates an RVA into an offset of this file.
func (f *File) RVAToOffset(rva uint32) (FilePosition, error) {
	return RVAToOffset(f.Sections, rva)
}

// ReadRVA reads size bytes starting at rva. The range must lie in the raw
// data of the section mapping rva.
func (f *File) ReadRVA(rva, size uint32) ([]byte, error) {
	off, err := RawRange(f.Sections, rva, size)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err = f.r.ReadAt(buf, int64(off)); err != nil {
		return nil, errors.Wrapf(err, "failed to read %d bytes at rva 0x%x", size, rva)
	}
	return buf, nil
}

// DebugDirectory decodes the debug directory entries the header points to.
// It returns nil if the file has no debug directory.
func (f *File) DebugDirectory() ([]DebugDirectoryEntry, error) {
	if f.Header.Debug.Size == 0 {
		return nil, nil
	}
	buf, err := f.ReadRVA(f.Header.Debug.RVA, f.Header.Debug.Size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read debug directory")
	}
	return DecodeDebugDirectory(buf)
}
