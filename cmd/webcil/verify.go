package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log/level"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	webcilcontext "github.com/grafana/webcil/pkg/context"
	"github.com/grafana/webcil/pkg/converter"
	"github.com/grafana/webcil/pkg/peimage"
	"github.com/grafana/webcil/pkg/webcil"
)

var errVerifyFailed = errors.New("webcil file does not match its source image")

// verify recomputes the conversion of pePath and compares it with the
// WebCIL file at webcilPath: header, section directory, debug directory
// entries and the payload of every section.
func verify(ctx context.Context, fs afero.Fs, pePath, webcilPath string) error {
	logger := webcilcontext.Logger(webcilcontext.WrapInput(ctx, pePath))

	in, err := fs.Open(pePath)
	if err != nil {
		return err
	}
	defer in.Close()
	img, err := peimage.New(in)
	if err != nil {
		return err
	}

	f, err := webcil.Open(fs, webcilPath)
	if err != nil {
		return err
	}
	defer f.Close()

	layout := converter.Plan(img)
	want, err := converter.FixupDebugDirectory(img, layout)
	if err != nil {
		return err
	}

	var mismatches *multierror.Error
	if d := cmp.Diff(layout.Header, f.Header); d != "" {
		mismatches = multierror.Append(mismatches, errors.Errorf("header mismatch (-want +got):\n%s", d))
	}
	if d := cmp.Diff(layout.Sections, f.Sections); d != "" {
		mismatches = multierror.Append(mismatches, errors.Errorf("section directory mismatch (-want +got):\n%s", d))
	}
	got, err := f.DebugDirectory()
	if err != nil {
		mismatches = multierror.Append(mismatches, err)
	} else if d := cmp.Diff(want, got, cmpopts.EquateEmpty()); d != "" {
		mismatches = multierror.Append(mismatches, errors.Errorf("debug directory mismatch (-want +got):\n%s", d))
	}
	if mismatches != nil {
		return multierror.Append(errVerifyFailed, mismatches.Errors...)
	}

	debugSection, debugLocal := -1, uint32(0)
	if img.Debug.Size > 0 {
		if _, err = webcil.RawRange(img.Sections, img.Debug.RVA, img.Debug.Size); err != nil {
			return err
		}
		debugSection, _, debugLocal, _ = webcil.SectionFromRVA(img.Sections, img.Debug.RVA)
	}

	out := output(ctx)
	for i := range img.Sections {
		expected, err := io.ReadAll(img.SectionReader(i))
		if err != nil {
			return errors.Wrapf(err, "failed to read section %d of %s", i, pePath)
		}
		if i == debugSection {
			copy(expected[debugLocal:], webcil.EncodeDebugDirectory(want))
		}
		sum, err := sectionHash(f.Section(i))
		if err != nil {
			return errors.Wrapf(err, "failed to hash section %d of %s", i, webcilPath)
		}
		if wantSum := xxhash.Sum64(expected); wantSum != sum {
			mismatches = multierror.Append(mismatches, errors.Errorf("section %d: payload hash %016x, want %016x", i, sum, wantSum))
			continue
		}
		level.Debug(logger).Log("msg", "section verified", "section", i, "name", img.Names[i], "xxhash", fmt.Sprintf("%016x", sum))
	}
	if mismatches != nil {
		return multierror.Append(errVerifyFailed, mismatches.Errors...)
	}

	st, err := fs.Stat(webcilPath)
	if err != nil {
		return err
	}
	if st.Size() != layout.Size() {
		return errors.Wrapf(errVerifyFailed, "file size %d, want %d", st.Size(), layout.Size())
	}

	fmt.Fprintf(out, "%s: ok (%d sections, %d debug directory entries)\n", webcilPath, len(f.Sections), len(got))
	return nil
}
