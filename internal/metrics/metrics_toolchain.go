package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolchainDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protodeps_toolchain_downloads_total",
			Help: "Total number of toolchain artifacts downloaded",
		},
		[]string{"tool"},
	)

	toolchainCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protodeps_toolchain_cache_hits_total",
			Help: "Total number of toolchain lookups served from the on-disk cache",
		},
		[]string{"tool"},
	)

	toolchainDownloadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "protodeps_toolchain_download_duration_seconds",
			Help:    "Toolchain download and unpack duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"tool"},
	)
)

func ToolchainDownloaded(tool string, startTime time.Time) {
	toolchainDownloads.WithLabelValues(tool).Inc()
	toolchainDownloadDuration.WithLabelValues(tool).Observe(time.Since(startTime).Seconds())
}

func ToolchainCacheHit(tool string) {
	toolchainCacheHits.WithLabelValues(tool).Inc()
}
