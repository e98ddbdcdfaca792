package converter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/grafana/webcil/pkg/peimage"
	"github.com/grafana/webcil/pkg/webcil"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		sections []webcil.SectionHeader
	}{
		{
			name: "no sections",
		},
		{
			name: "single section",
			sections: []webcil.SectionHeader{
				{VirtualSize: 0x1234, VirtualAddress: 0x2000, SizeOfRawData: 0x1400, PointerToRawData: 0x200},
			},
		},
		{
			name: "typical assembly",
			sections: []webcil.SectionHeader{
				{VirtualSize: 0x2f4c, VirtualAddress: 0x2000, SizeOfRawData: 0x3000, PointerToRawData: 0x200},
				{VirtualSize: 0x5b0, VirtualAddress: 0x6000, SizeOfRawData: 0x600, PointerToRawData: 0x3200},
				{VirtualSize: 0xc, VirtualAddress: 0x8000, SizeOfRawData: 0x200, PointerToRawData: 0x3800},
			},
		},
		{
			name: "virtual size larger than raw data",
			sections: []webcil.SectionHeader{
				{VirtualSize: 0x200, VirtualAddress: 0x2000, SizeOfRawData: 0x200, PointerToRawData: 0x400},
				{VirtualSize: 0x1000, VirtualAddress: 0x4000, SizeOfRawData: 0, PointerToRawData: 0},
				{VirtualSize: 0x100, VirtualAddress: 0x6000, SizeOfRawData: 0x100, PointerToRawData: 0x600},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := &peimage.Image{
				Sections:  tt.sections,
				CLIHeader: webcil.DataDirectory{RVA: 0x2008, Size: 0x48},
				Debug:     webcil.DataDirectory{RVA: 0x2100, Size: 0x38},
			}
			layout := Plan(img)

			n := len(tt.sections)
			require.Len(t, layout.Sections, n)
			require.Equal(t, uint16(n), layout.Header.Sections)
			require.Equal(t, webcil.Magic, layout.Header.Magic)
			require.Equal(t, webcil.Version, layout.Header.Version)
			require.Equal(t, img.CLIHeader, layout.Header.CLIHeader)
			require.Equal(t, img.Debug, layout.Header.Debug)
			require.Equal(t, webcil.FilePosition(webcil.HeaderSize+n*webcil.SectionHeaderSize), layout.FirstSectionOffset)

			next := uint32(layout.FirstSectionOffset)
			for i, s := range layout.Sections {
				require.Equal(t, tt.sections[i].VirtualAddress, s.VirtualAddress)
				require.Equal(t, tt.sections[i].VirtualSize, s.VirtualSize)
				require.Equal(t, tt.sections[i].SizeOfRawData, s.SizeOfRawData)
				require.Equal(t, next, s.PointerToRawData, "section %d", i)
				next += s.SizeOfRawData
			}
			require.Equal(t, int64(next), layout.Size())

			// Planning is deterministic.
			again := Plan(img)
			require.Empty(t, cmp.Diff(layout, again))
			require.Equal(t, layout.Bytes(), again.Bytes())
			require.Len(t, layout.Bytes(), int(layout.FirstSectionOffset))
		})
	}
}

func TestPlanDoesNotModifySource(t *testing.T) {
	sections := []webcil.SectionHeader{
		{VirtualSize: 0x200, VirtualAddress: 0x2000, SizeOfRawData: 0x200, PointerToRawData: 0x200},
	}
	img := &peimage.Image{Sections: sections}
	_ = Plan(img)
	require.Equal(t, uint32(0x200), img.Sections[0].PointerToRawData)
}
