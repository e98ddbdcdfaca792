package converter

import (
	"errors"
	"fmt"

	"github.com/grafana/webcil/pkg/webcil"
)

// ErrTruncatedInput is returned when a section's raw data extends past the
// end of the input file.
var ErrTruncatedInput = errors.New("truncated input")

// SectionMismatchError reports a debug entry whose data pointer does not
// land at the same position of the same section once relocated.
type SectionMismatchError struct {
	Entry         int
	SourceSection int
	TargetSection int
	SourceLocal   uint32
	TargetLocal   uint32
}

func (e SectionMismatchError) Error() string {
	return fmt.Sprintf("debug directory entry %d: data moves from section %d+0x%x to section %d+0x%x",
		e.Entry, e.SourceSection, e.SourceLocal, e.TargetSection, e.TargetLocal)
}

// IsMalformedInput reports whether err means the input image is
// inconsistent with its own section table.
func IsMalformedInput(err error) bool {
	var mismatch SectionMismatchError
	return webcil.IsMalformed(err) || errors.As(err, &mismatch) || errors.Is(err, ErrTruncatedInput)
}
