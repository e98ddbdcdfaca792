// Package converter rewrites PE images holding managed assemblies as WebCIL
// files.
//
// A conversion runs as a single synchronous pipeline: the PE image is
// parsed, the WebCIL layout is planned, the header and section directory
// are written, the section payloads are copied verbatim, and finally the
// debug directory entries inside the copied payload are rewritten so their
// file pointers match the new layout.
package converter

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/grafana/webcil/pkg/peimage"
	"github.com/grafana/webcil/pkg/webcil"
)

// Extension is the file extension of WebCIL files.
const Extension = ".webcil"

// DefaultOutputPath returns input with its extension replaced by Extension.
func DefaultOutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + Extension
}

// Converter converts PE files to WebCIL files. A Converter keeps no state
// between conversions.
type Converter struct {
	opt     options
	logger  log.Logger
	metrics *metrics
}

// New returns a Converter configured by opts.
func New(opts ...Option) *Converter {
	opt := defaultOptions()
	for _, o := range opts {
		o(&opt)
	}
	return &Converter{
		opt:     opt,
		logger:  opt.logger,
		metrics: newMetrics(opt.reg),
	}
}

// Convert reads the PE file at inputPath and writes the WebCIL file to
// outputPath, replacing it if it exists. Unless WithKeepPartialOutput is
// set, the output file is removed when the conversion fails.
func (c *Converter) Convert(ctx context.Context, inputPath, outputPath string) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.conversions.WithLabelValues(conversionStatus(err)).Inc()
		c.metrics.conversionDuration.Observe(time.Since(start).Seconds())
	}()

	if err = checkHostByteOrder(); err != nil {
		return err
	}

	logger := log.With(c.logger, "input", inputPath, "output", outputPath)
	level.Info(logger).Log("msg", "writing webcil")

	in, err := c.opt.fs.Open(inputPath)
	if err != nil {
		return errors.Wrap(err, "failed to open input")
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			err = multierror.Append(err, errors.Wrap(cerr, "failed to close input"))
		}
	}()

	img, err := peimage.New(in)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", inputPath)
	}
	if img.CLIHeader.Empty() {
		level.Warn(logger).Log("msg", "image has no CLI header, it is not a managed assembly")
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	out, err := c.opt.fs.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to create output")
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			err = multierror.Append(err, errors.Wrap(cerr, "failed to close output"))
		}
		if err == nil || c.opt.keepPartialOutput {
			return
		}
		if rerr := c.opt.fs.Remove(outputPath); rerr != nil {
			err = multierror.Append(err, errors.Wrap(rerr, "failed to remove partial output"))
		}
	}()

	layout, err := c.write(ctx, logger, img, out)
	if err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return errors.Wrap(err, "failed to flush output")
	}

	pe := int64(img.FirstSectionOffset)
	wc := int64(layout.FirstSectionOffset)
	if pe > wc {
		c.metrics.bytesSaved.Add(float64(pe - wc))
	}
	level.Info(logger).Log("msg", "webcil written", "sections", len(layout.Sections), "size", layout.Size(), "duration", time.Since(start))
	return nil
}

// Write converts img and writes the WebCIL file to out. The raw section
// data is read through img. out must be empty and positioned at its start.
func (c *Converter) Write(ctx context.Context, img *peimage.Image, out io.WriteSeeker) (Layout, error) {
	if err := checkHostByteOrder(); err != nil {
		return Layout{}, err
	}
	return c.write(ctx, c.logger, img, out)
}

func (c *Converter) write(ctx context.Context, logger log.Logger, img *peimage.Image, out io.WriteSeeker) (Layout, error) {
	layout := Plan(img)
	level.Debug(logger).Log("msg", "planned layout",
		"sections", len(layout.Sections),
		"pe_first_section", img.FirstSectionOffset,
		"webcil_first_section", layout.FirstSectionOffset,
		"pe_cli_header_rva", layout.Header.CLIHeader.RVA,
		"pe_debug_rva", layout.Header.Debug.RVA,
		"pe_debug_size", layout.Header.Debug.Size,
	)

	w := withWriterOffset(out, 0)
	if _, err := w.Write(layout.Header.Bytes()); err != nil {
		return Layout{}, errors.Wrap(err, "failed to write header")
	}
	if _, err := w.Write(webcil.EncodeSectionDirectory(layout.Sections)); err != nil {
		return Layout{}, errors.Wrap(err, "failed to write section directory")
	}

	copied, err := copySections(ctx, w, img, layout)
	c.metrics.sectionBytes.Add(float64(copied))
	if err != nil {
		return Layout{}, err
	}
	level.Debug(logger).Log("msg", "copied sections", "bytes", copied)

	if err = ctx.Err(); err != nil {
		return Layout{}, err
	}
	entries, err := FixupDebugDirectory(img, layout)
	if err != nil {
		return Layout{}, err
	}
	for i, e := range entries {
		level.Debug(logger).Log("msg", "debug directory entry", "index", i, "type", e.Type,
			"pe_pointer", img.DebugEntries[i].DataPointer, "webcil_pointer", e.DataPointer)
	}
	if err = overwriteDebugDirectory(out, layout, entries); err != nil {
		return Layout{}, err
	}
	c.metrics.observeDebugEntries(entries)

	return layout, nil
}
