package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/grafana/webcil/pkg/webcil"
)

func inspect(ctx context.Context, fs afero.Fs, path string) error {
	f, err := webcil.Open(fs, path)
	if err != nil {
		return err
	}
	defer f.Close()

	out := output(ctx)
	h := f.Header
	fmt.Fprintln(out, "file:", path)
	fmt.Fprintf(out, "\t Version: %d\n", h.Version)
	fmt.Fprintln(out, "\t Sections:", h.Sections)
	fmt.Fprintf(out, "\t CLI header: rva 0x%x size %d\n", h.CLIHeader.RVA, h.CLIHeader.Size)
	fmt.Fprintf(out, "\t Debug directory: rva 0x%x size %d\n", h.Debug.RVA, h.Debug.Size)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "VirtualAddress", "VirtualSize", "Offset", "Size", "XXHash"})
	for i, s := range f.Sections {
		sum, err := sectionHash(f.Section(i))
		if err != nil {
			return errors.Wrapf(err, "failed to hash section %d", i)
		}
		table.Append([]string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("0x%x", s.VirtualAddress),
			humanize.Bytes(uint64(s.VirtualSize)),
			fmt.Sprintf("0x%x", s.PointerToRawData),
			humanize.Bytes(uint64(s.SizeOfRawData)),
			fmt.Sprintf("%016x", sum),
		})
	}
	table.Render()

	entries, err := f.DebugDirectory()
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		writeDebugEntries(out, entries)
	}
	return nil
}

func writeDebugEntries(out io.Writer, entries []webcil.DebugDirectoryEntry) {
	fmt.Fprintln(out, "\t Debug directory entries:")
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Type", "Stamp", "Version", "DataSize", "DataRVA", "DataPointer"})
	for _, e := range entries {
		table.Append([]string{
			e.Type.String(),
			fmt.Sprintf("0x%08x", e.Stamp),
			fmt.Sprintf("%d.%d", e.MajorVersion, e.MinorVersion),
			humanize.Bytes(uint64(e.DataSize)),
			fmt.Sprintf("0x%x", e.DataRVA),
			fmt.Sprintf("0x%x", e.DataPointer),
		})
	}
	table.Render()
}

func sectionHash(r io.Reader) (uint64, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
