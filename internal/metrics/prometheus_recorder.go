package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stepDuration *prom.HistogramVec
	stepOutcome  *prom.CounterVec
	watchEntries *prom.CounterVec
	logLines     *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg prom.Registerer, namespace string) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	if namespace == "" {
		namespace = "nixtrace"
	}
	pr := &PrometheusRecorder{
		stepDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of nix-instantiate and nix-build invocations",
			Buckets:   prom.ExponentialBuckets(0.05, 2, 12),
		}, []string{"step"}),
		stepOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "step_outcomes_total",
			Help:      "Step outcomes by error code",
		}, []string{"step", "outcome"}),
		watchEntries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_entries_total",
			Help:      "Watch entries produced by instantiation, by kind",
		}, []string{"kind"}),
		logLines: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "log_lines_total",
			Help:      "Classified nix-instantiate stderr lines, by class",
		}, []string{"class"}),
	}
	reg.MustRegister(pr.stepDuration, pr.stepOutcome, pr.watchEntries, pr.logLines)
	return pr
}

func (p *PrometheusRecorder) ObserveStepDuration(step Step, d time.Duration) {
	if p == nil {
		return
	}
	p.stepDuration.WithLabelValues(string(step)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepOutcome(step Step, outcome string) {
	if p == nil {
		return
	}
	p.stepOutcome.WithLabelValues(string(step), outcome).Inc()
}

func (p *PrometheusRecorder) AddWatchEntries(kind string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.watchEntries.WithLabelValues(kind).Add(float64(n))
}

func (p *PrometheusRecorder) AddLogLines(class string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.logLines.WithLabelValues(class).Add(float64(n))
}
