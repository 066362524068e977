package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage names used as the "stage" label of the duration histogram.
const (
	StageDetect = "detect"
	StageLocate = "locate"
	StageScore  = "score"
	StageTotal  = "total"
)

// Collector exposes rflocate run metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	RunsTotal         *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	AnomaliesTotal    prometheus.Counter
	MethodSelected    *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
	LastConfidence    prometheus.Gauge
	EstimatorFailures *prometheus.CounterVec
}

// NewCollector registers run metrics against the provided registerer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rflocate_runs_total",
		Help: "Localization runs by outcome.",
	}, []string{"status"}), "rflocate_runs_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rflocate_stage_duration_seconds",
		Help:    "Duration of each localization stage.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"stage"}), "rflocate_stage_duration_seconds")
	if err != nil {
		return nil, err
	}

	anomalies, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rflocate_anomalous_stations_total",
		Help: "Stations flagged as anomalous across all runs.",
	}), "rflocate_anomalous_stations_total")
	if err != nil {
		return nil, err
	}

	methods, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rflocate_method_selected_total",
		Help: "Estimator chosen for the final position.",
	}, []string{"method"}), "rflocate_method_selected_total")
	if err != nil {
		return nil, err
	}

	cache, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rflocate_cache_lookups_total",
		Help: "Report cache lookups by result.",
	}, []string{"result"}), "rflocate_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	confidence, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rflocate_last_confidence",
		Help: "Confidence of the most recent position estimate.",
	}), "rflocate_last_confidence")
	if err != nil {
		return nil, err
	}

	failures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rflocate_estimator_not_converged_total",
		Help: "Iterative estimators that stopped without converging.",
	}, []string{"method"}), "rflocate_estimator_not_converged_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		RunsTotal:         runs,
		StageDuration:     durations,
		AnomaliesTotal:    anomalies,
		MethodSelected:    methods,
		CacheLookups:      cache,
		LastConfidence:    confidence,
		EstimatorFailures: failures,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveStage records how long a stage took.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil || c.StageDuration == nil {
		return
	}
	c.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncRun counts a finished run. Status is "ok", "no_fix" or "error".
func (c *Collector) IncRun(status string) {
	if c == nil || c.RunsTotal == nil {
		return
	}
	c.RunsTotal.WithLabelValues(status).Inc()
}

// AddAnomalies adds flagged stations to the running total.
func (c *Collector) AddAnomalies(n int) {
	if c == nil || c.AnomaliesTotal == nil || n <= 0 {
		return
	}
	c.AnomaliesTotal.Add(float64(n))
}

// RecordEstimate records the winning method and its confidence.
func (c *Collector) RecordEstimate(method string, confidence float64) {
	if c == nil {
		return
	}
	if c.MethodSelected != nil {
		c.MethodSelected.WithLabelValues(method).Inc()
	}
	if c.LastConfidence != nil {
		c.LastConfidence.Set(confidence)
	}
}

// IncNotConverged counts an estimator that did not converge.
func (c *Collector) IncNotConverged(method string) {
	if c == nil || c.EstimatorFailures == nil {
		return
	}
	c.EstimatorFailures.WithLabelValues(method).Inc()
}

// IncCache counts a cache lookup.
func (c *Collector) IncCache(hit bool) {
	if c == nil || c.CacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

// WriteTextfile dumps the gathered metrics in the node_exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
