package peimage

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/grafana/webcil/pkg/webcil"
)

// Leading part of IMAGE_COR20_HEADER that is decoded.
const corHeaderSize = 24

// CorHeader holds the fields of the CLI header locating the metadata.
type CorHeader struct {
	Cb                  uint32
	MajorRuntimeVersion uint16
	MinorRuntimeVersion uint16
	Metadata            webcil.DataDirectory
	Flags               uint32
	EntryPointToken     uint32
}

func decodeCorHeader(b []byte) (*CorHeader, error) {
	if len(b) < corHeaderSize {
		return nil, errors.Errorf("CLI header too short: %d bytes", len(b))
	}
	return &CorHeader{
		Cb:                  binary.LittleEndian.Uint32(b[0:]),
		MajorRuntimeVersion: binary.LittleEndian.Uint16(b[4:]),
		MinorRuntimeVersion: binary.LittleEndian.Uint16(b[6:]),
		Metadata: webcil.DataDirectory{
			RVA:  binary.LittleEndian.Uint32(b[8:]),
			Size: binary.LittleEndian.Uint32(b[12:]),
		},
		Flags:           binary.LittleEndian.Uint32(b[16:]),
		EntryPointToken: binary.LittleEndian.Uint32(b[20:]),
	}, nil
}

// Metadata returns the raw metadata bytes the CLI header points to.
func (img *Image) Metadata() ([]byte, error) {
	if img.Cor == nil {
		return nil, errors.New("image has no CLI header")
	}
	return img.ReadRVA(img.Cor.Metadata.RVA, img.Cor.Metadata.Size)
}
