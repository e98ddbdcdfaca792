package webcil

import (
	"bytes"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// buildFile lays out a small WebCIL file by hand: one section holding a
// debug directory with a single CodeView entry at rva 0x2010.
func buildFile(t *testing.T) []byte {
	t.Helper()
	first := DirectorySize(1)
	section := SectionHeader{
		VirtualSize:      0x40,
		VirtualAddress:   0x2000,
		SizeOfRawData:    0x40,
		PointerToRawData: first,
	}
	hdr := NewHeader(1, DataDirectory{RVA: 0x2000, Size: 0x10}, DataDirectory{RVA: 0x2010, Size: DebugDirectoryEntrySize})

	payload := bytes.Repeat([]byte{0xcc}, 0x40)
	entry := DebugDirectoryEntry{Stamp: 9, Type: DebugTypeCodeView, DataSize: 4, DataRVA: 0x2030, DataPointer: first + 0x30}
	entry.Encode(payload[0x10:])

	var buf bytes.Buffer
	buf.Write(hdr.Bytes())
	buf.Write(EncodeSectionDirectory([]SectionHeader{section}))
	buf.Write(payload)
	return buf.Bytes()
}

func TestNewFile(t *testing.T) {
	data := buildFile(t)
	f, err := NewFile(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, uint16(1), f.Header.Sections)
	require.Len(t, f.Sections, 1)
	require.Equal(t, DirectorySize(1), f.Sections[0].PointerToRawData)

	section, err := io.ReadAll(f.Section(0))
	require.NoError(t, err)
	require.Len(t, section, 0x40)
	require.Equal(t, byte(0xcc), section[0])

	entries, err := f.DebugDirectory()
	require.NoError(t, err)
	require.Equal(t, []DebugDirectoryEntry{
		{Stamp: 9, Type: DebugTypeCodeView, DataSize: 4, DataRVA: 0x2030, DataPointer: DirectorySize(1) + 0x30},
	}, entries)

	off, err := f.RVAToOffset(0x2030)
	require.NoError(t, err)
	require.Equal(t, FilePosition(DirectorySize(1)+0x30), off)

	b, err := f.ReadRVA(0x2030, 0x10)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xcc}, 0x10), b)
	_, err = f.ReadRVA(0x2030, 0x20)
	var rangeErr RangeNotInRawDataError
	require.ErrorAs(t, err, &rangeErr)
	require.NoError(t, f.Close())
}

func TestNewFileErrors(t *testing.T) {
	t.Run("truncated directory", func(t *testing.T) {
		data := buildFile(t)
		_, err := NewFile(bytes.NewReader(data[:HeaderSize+4]))
		require.Error(t, err)
	})
	t.Run("section overlaps directory", func(t *testing.T) {
		data := buildFile(t)
		// PointerToRawData of the only section.
		data[HeaderSize+12] = 0x10
		_, err := NewFile(bytes.NewReader(data))
		require.ErrorContains(t, err, "inside the section directory")
	})
	t.Run("not webcil", func(t *testing.T) {
		data := make([]byte, 64)
		copy(data, "MZ")
		_, err := NewFile(bytes.NewReader(data))
		require.ErrorIs(t, err, ErrInvalidMagic)
	})
}

func TestOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out/app.webcil", buildFile(t), 0o644))

	f, err := Open(fs, "/out/app.webcil")
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, Magic, f.Header.Magic)

	_, err = Open(fs, "/out/missing.webcil")
	require.Error(t, err)
}
