package main

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	webcilcontext "github.com/grafana/webcil/pkg/context"
	"github.com/grafana/webcil/pkg/converter"
)

func convert(ctx context.Context, fs afero.Fs, input, output string, keepPartial bool) error {
	if output == "" {
		output = converter.DefaultOutputPath(input)
	}
	logger := webcilcontext.Logger(ctx)
	reg := webcilcontext.Registry(ctx)
	opts := []converter.Option{
		converter.WithLogger(logger),
		converter.WithFs(fs),
		converter.WithRegisterer(reg),
	}
	if keepPartial {
		opts = append(opts, converter.WithKeepPartialOutput())
	}
	err := converter.New(opts...).Convert(ctx, input, output)
	if g, ok := reg.(prometheus.Gatherer); ok {
		logMetrics(logger, g)
	}
	if err != nil {
		if converter.IsMalformedInput(err) {
			level.Error(logger).Log("msg", "input is not a well formed PE image", "input", input, "err", err)
		}
		return err
	}
	return nil
}

// logMetrics writes every counter and histogram of g as a debug line.
func logMetrics(logger log.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		level.Warn(logger).Log("msg", "failed to gather metrics", "err", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			kv := []interface{}{"msg", "metric", "name", mf.GetName()}
			for _, l := range m.GetLabel() {
				kv = append(kv, l.GetName(), l.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				kv = append(kv, "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				kv = append(kv, "count", m.GetHistogram().GetSampleCount(), "sum", m.GetHistogram().GetSampleSum())
			default:
				continue
			}
			level.Debug(logger).Log(kv...)
		}
	}
}
