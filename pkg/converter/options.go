package converter

import (
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

// Option configures a Converter.
type Option func(*options)

type options struct {
	logger            log.Logger
	reg               prometheus.Registerer
	fs                afero.Fs
	keepPartialOutput bool
}

func defaultOptions() options {
	return options{
		logger: log.NewNopLogger(),
		fs:     afero.NewOsFs(),
	}
}

// WithLogger sets the logger progress is reported to.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegisterer registers the converter metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.reg = reg
	}
}

// WithFs sets the filesystem input and output files are opened on.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithKeepPartialOutput leaves the output file in place when a conversion
// fails. By default it is removed.
func WithKeepPartialOutput() Option {
	return func(o *options) {
		o.keepPartialOutput = true
	}
}
