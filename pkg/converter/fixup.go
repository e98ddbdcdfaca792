package converter

import (
	"io"

	"github.com/pkg/errors"

	"github.com/grafana/webcil/pkg/peimage"
	"github.com/grafana/webcil/pkg/webcil"
)

// FixupDebugDirectory returns the debug directory entries of img with their
// data pointers rebased onto layout.
//
// The raw data of all sections moves by the same amount: the difference
// between the first section offset of the PE file and that of the WebCIL
// file. Entries without a data pointer are returned unchanged.
func FixupDebugDirectory(img *peimage.Image, layout Layout) ([]webcil.DebugDirectoryEntry, error) {
	delta := img.FirstSectionOffset.Distance(layout.FirstSectionOffset)
	entries := make([]webcil.DebugDirectoryEntry, 0, len(img.DebugEntries))
	for i, e := range img.DebugEntries {
		if !e.Type.HasDataPointer() {
			entries = append(entries, e)
			continue
		}

		srcIdx, _, srcLocal, err := webcil.SectionFromOffset(img.Sections, int64(e.DataPointer), webcil.LayoutPE)
		if err != nil {
			return nil, errors.Wrapf(err, "debug directory entry %d (%s)", i, e.Type)
		}
		newPointer := int64(e.DataPointer) - delta
		dstIdx, _, dstLocal, err := webcil.SectionFromOffset(layout.Sections, newPointer, webcil.LayoutWebcil)
		if err != nil {
			return nil, errors.Wrapf(err, "debug directory entry %d (%s)", i, e.Type)
		}
		if srcIdx != dstIdx || srcLocal != dstLocal {
			return nil, SectionMismatchError{
				Entry:         i,
				SourceSection: srcIdx,
				TargetSection: dstIdx,
				SourceLocal:   srcLocal,
				TargetLocal:   dstLocal,
			}
		}

		e.DataPointer = uint32(newPointer)
		entries = append(entries, e)
	}
	return entries, nil
}

// overwriteDebugDirectory writes entries over the debug directory table
// inside the already copied section data, then seeks back to the end of ws.
// The encoded entries must exactly cover the table the header points to.
func overwriteDebugDirectory(ws io.WriteSeeker, layout Layout, entries []webcil.DebugDirectoryEntry) error {
	b := webcil.EncodeDebugDirectory(entries)
	span := layout.Header.Debug.Size
	if uint32(len(b)) != span {
		return errors.Wrapf(webcil.ErrDebugDirectorySpan, "%d entries need %d bytes, debug directory has %d", len(entries), len(b), span)
	}
	if span == 0 {
		return nil
	}

	pos, err := webcil.RawRange(layout.Sections, layout.Header.Debug.RVA, span)
	var rangeErr webcil.RangeNotInRawDataError
	if errors.As(err, &rangeErr) {
		return errors.Wrapf(webcil.ErrDebugDirectorySpan, "debug directory: %v", rangeErr)
	}
	if err != nil {
		return errors.Wrap(err, "failed to locate debug directory")
	}

	if _, err = ws.Seek(int64(pos), io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to seek to debug directory")
	}
	if _, err = ws.Write(b); err != nil {
		return errors.Wrap(err, "failed to write debug directory")
	}
	if _, err = ws.Seek(0, io.SeekEnd); err != nil {
		return errors.Wrap(err, "failed to restore output position")
	}
	return nil
}
