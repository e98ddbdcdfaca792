package converter

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/grafana/webcil/pkg/peimage"
)

// copySections appends the raw data of every section to w, in section
// table order. w must be positioned at the first planned section offset.
func copySections(ctx context.Context, w *writerOffset, img *peimage.Image, layout Layout) (int64, error) {
	var copied int64
	for i, s := range img.Sections {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		planned := layout.Sections[i].PointerToRawData
		if w.offset != int64(planned) {
			return copied, errors.Errorf("section %d: output is at offset 0x%x, planned 0x%x", i, w.offset, planned)
		}
		n, err := io.CopyN(w, img.SectionReader(i), int64(s.SizeOfRawData))
		copied += n
		if errors.Is(err, io.EOF) {
			return copied, errors.Wrapf(ErrTruncatedInput, "section %d: read %d of %d bytes at offset 0x%x", i, n, s.SizeOfRawData, s.PointerToRawData)
		}
		if err != nil {
			return copied, errors.Wrapf(err, "failed to copy section %d", i)
		}
	}
	return copied, nil
}
