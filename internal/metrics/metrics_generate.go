package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	repoResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protodeps_repo_resolutions_total",
			Help: "Total number of repository resolutions",
		},
		[]string{"repo", "kind"},
	)

	expandProbes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "protodeps_expand_probes_total",
			Help: "Total number of compiler dependency probes issued during closure expansion",
		},
	)

	compileFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protodeps_compile_failed_total",
			Help: "Total number of failed compiler invocations",
		},
		[]string{"repo"},
	)

	compileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "protodeps_compile_duration_seconds",
			Help:    "Per-file compiler invocation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"repo"},
	)
)

func RepoResolved(repo, kind string) {
	repoResolutions.WithLabelValues(repo, kind).Inc()
}

func ExpandProbe() {
	expandProbes.Inc()
}

func CompileFailed(repo string) {
	compileFailed.WithLabelValues(repo).Inc()
}

func CompileSucceeded(repo string, startTime time.Time) {
	compileDuration.WithLabelValues(repo).Observe(time.Since(startTime).Seconds())
}
