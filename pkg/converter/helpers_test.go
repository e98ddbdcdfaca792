package converter

import (
	"bytes"

	"github.com/grafana/webcil/pkg/peimage"
)

func peimageNew(data []byte) (*peimage.Image, error) {
	return peimage.New(bytes.NewReader(data))
}
