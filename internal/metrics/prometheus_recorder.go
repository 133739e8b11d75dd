package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "hiveagent"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	cycleDuration     prom.Histogram
	cycleOutcomes     *prom.CounterVec
	schedulerRunning  prom.Gauge
	lifecycleRuns     *prom.CounterVec
	lifecycleRemoved  *prom.CounterVec
	lifecycleReclaim  *prom.GaugeVec
	lifecycleWarnings *prom.CounterVec
	storeEntries      prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		cycleDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_cycle_duration_seconds",
			Help:      "Duration of synchronization cycles",
			Buckets:   prom.DefBuckets,
		}),
		cycleOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sync_cycles_total",
			Help:      "Synchronization cycles by outcome and failing stage",
		}, []string{"outcome", "stage"}),
		schedulerRunning: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_scheduler_running",
			Help:      "1 when the synchronization scheduler is running",
		}),
		lifecycleRuns: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "state_cleanups_total",
			Help:      "State lifecycle operations performed",
		}, []string{"operation"}),
		lifecycleRemoved: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "state_entries_removed_total",
			Help:      "Entries removed by state lifecycle operations",
		}, []string{"operation"}),
		lifecycleReclaim: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "state_last_reclaimed_megabytes",
			Help:      "Heap delta measured around the last lifecycle operation",
		}, []string{"operation"}),
		lifecycleWarnings: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "state_cleanup_warnings_total",
			Help:      "Lifecycle operations that completed with a warning",
		}, []string{"operation", "reason"}),
		storeEntries: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "state_entries",
			Help:      "Entries currently held by the state store",
		}),
	}
	reg.MustRegister(pr.cycleDuration, pr.cycleOutcomes, pr.schedulerRunning,
		pr.lifecycleRuns, pr.lifecycleRemoved, pr.lifecycleReclaim, pr.lifecycleWarnings, pr.storeEntries)
	return pr
}

func (p *PrometheusRecorder) ObserveCycleDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.cycleDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCycleOutcome(result ResultLabel, stage string) {
	if p == nil {
		return
	}
	p.cycleOutcomes.WithLabelValues(string(result), stage).Inc()
}

func (p *PrometheusRecorder) SetSchedulerRunning(running bool) {
	if p == nil {
		return
	}
	v := 0.0
	if running {
		v = 1
	}
	p.schedulerRunning.Set(v)
}

func (p *PrometheusRecorder) ObserveLifecycle(operation string, removed int, reclaimedMB float64) {
	if p == nil {
		return
	}
	p.lifecycleRuns.WithLabelValues(operation).Inc()
	if removed > 0 {
		p.lifecycleRemoved.WithLabelValues(operation).Add(float64(removed))
	}
	p.lifecycleReclaim.WithLabelValues(operation).Set(reclaimedMB)
}

func (p *PrometheusRecorder) IncLifecycleWarning(operation, reason string) {
	if p == nil {
		return
	}
	p.lifecycleWarnings.WithLabelValues(operation, reason).Inc()
}

func (p *PrometheusRecorder) SetStoreEntries(n int) {
	if p == nil {
		return
	}
	p.storeEntries.Set(float64(n))
}
