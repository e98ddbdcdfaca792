package converter

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/webcil/pkg/util"
	"github.com/grafana/webcil/pkg/webcil"
)

const (
	statusSuccess = "success"

	statusErrorPrefix    = "error:"
	statusErrorPlatform  = statusErrorPrefix + "unsupported_platform"
	statusErrorMalformed = statusErrorPrefix + "malformed_input"
	statusErrorCanceled  = statusErrorPrefix + "canceled"
	statusErrorOther     = statusErrorPrefix + "other"

	debugEntryRewritten = "rewritten"
	debugEntryCopied    = "copied"
)

type metrics struct {
	conversions        *prometheus.CounterVec
	conversionDuration prometheus.Histogram
	sectionBytes       prometheus.Counter
	bytesSaved         prometheus.Counter
	debugEntries       *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		conversions: util.RegisterOrGet(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webcil_conversions_total",
			Help: "Total number of PE to WebCIL conversions by status",
		}, []string{"status"})),
		conversionDuration: util.RegisterOrGet(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webcil_conversion_duration_seconds",
			Help:    "Time spent converting a PE image to WebCIL",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		})),
		sectionBytes: util.RegisterOrGet(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webcil_section_bytes_copied_total",
			Help: "Total number of section payload bytes copied to WebCIL files",
		})),
		bytesSaved: util.RegisterOrGet(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webcil_header_bytes_saved_total",
			Help: "Total number of bytes removed by replacing PE headers with WebCIL headers",
		})),
		debugEntries: util.RegisterOrGet(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webcil_debug_entries_total",
			Help: "Total number of debug directory entries written by action",
		}, []string{"action"})),
	}
}

func (m *metrics) observeDebugEntries(entries []webcil.DebugDirectoryEntry) {
	for _, e := range entries {
		if e.Type.HasDataPointer() {
			m.debugEntries.WithLabelValues(debugEntryRewritten).Inc()
		} else {
			m.debugEntries.WithLabelValues(debugEntryCopied).Inc()
		}
	}
}

func conversionStatus(err error) string {
	switch {
	case err == nil:
		return statusSuccess
	case errors.Is(err, webcil.ErrUnsupportedPlatform):
		return statusErrorPlatform
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return statusErrorCanceled
	case IsMalformedInput(err):
		return statusErrorMalformed
	default:
		return statusErrorOther
	}
}
