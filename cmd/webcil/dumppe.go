package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"

	"github.com/grafana/webcil/pkg/peimage"
)

func dumpPE(ctx context.Context, fs afero.Fs, path string, hexDump bool) error {
	in, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	img, err := peimage.New(in)
	if err != nil {
		return err
	}

	out := output(ctx)
	fmt.Fprintln(out, "file:", path)
	fmt.Fprintf(out, "\t Machine: 0x%x\n", img.Machine)
	fmt.Fprintln(out, "\t First section offset:", img.FirstSectionOffset)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Name", "VirtualAddress", "VirtualSize", "Offset", "Size"})
	for i, s := range img.Sections {
		table.Append([]string{
			img.Names[i],
			fmt.Sprintf("0x%x", s.VirtualAddress),
			humanize.Bytes(uint64(s.VirtualSize)),
			fmt.Sprintf("0x%x", s.PointerToRawData),
			humanize.Bytes(uint64(s.SizeOfRawData)),
		})
	}
	table.Render()

	if len(img.DebugEntries) > 0 {
		writeDebugEntries(out, img.DebugEntries)
	}

	if img.Cor == nil {
		fmt.Fprintln(out, "\t No CLI header")
		return nil
	}
	cor := img.Cor
	fmt.Fprintf(out, "\t CLI header: rva 0x%x size %d\n", img.CLIHeader.RVA, img.CLIHeader.Size)
	fmt.Fprintf(out, "\t Runtime version: %d.%d\n", cor.MajorRuntimeVersion, cor.MinorRuntimeVersion)
	fmt.Fprintf(out, "\t Flags: 0x%x\n", cor.Flags)
	fmt.Fprintf(out, "\t Entry point token: 0x%08x\n", cor.EntryPointToken)
	fmt.Fprintf(out, "\t Metadata: rva 0x%x size %s\n", cor.Metadata.RVA, humanize.Bytes(uint64(cor.Metadata.Size)))
	if !hexDump {
		return nil
	}
	md, err := img.Metadata()
	if err != nil {
		return err
	}
	fmt.Fprint(out, hex.Dump(md))
	return nil
}
