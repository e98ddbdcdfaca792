package converter

import (
	"golang.org/x/sys/cpu"

	"github.com/grafana/webcil/pkg/webcil"
)

// The record encoders are byte order independent, but the format has only
// been validated on little-endian hosts.
var hostBigEndian = cpu.IsBigEndian

func checkHostByteOrder() error {
	if hostBigEndian {
		return webcil.ErrUnsupportedPlatform
	}
	return nil
}
