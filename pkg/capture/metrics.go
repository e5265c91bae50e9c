package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	samplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wattlog_samples_total",
		Help: "Samples read from the probe.",
	})
	readTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wattlog_probe_read_timeouts_total",
		Help: "Probe reads that produced no sample within one period.",
	})
	windowsSealedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wattlog_windows_sealed_total",
		Help: "Windows flushed to disk.",
	})
	sealFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wattlog_window_seal_failures_total",
		Help: "Window flushes that failed and are awaiting reseal.",
	})
)
