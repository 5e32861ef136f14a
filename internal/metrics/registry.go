package metrics

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Kind is the type of a metric instrument.
type Kind int

const (
	KindCounter Kind = iota
	KindHistogram
	KindGauge
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindHistogram:
		return "histogram"
	case KindGauge:
		return "gauge"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrSchemaMismatch is returned when a name is registered twice with a
// different kind or label set.
var ErrSchemaMismatch = errors.New("metric schema mismatch")

// Opts describes an instrument to register.
type Opts struct {
	Kind    Kind
	Name    string
	Help    string
	Labels  []string
	Buckets []float64 // histograms only; nil selects prometheus.DefBuckets
}

// Instrument is a registered counter, histogram or gauge. Every emission
// must supply exactly the declared label values, in declaration order.
type Instrument struct {
	Kind   Kind
	Name   string
	Help   string
	Labels []string

	counter   *prometheus.CounterVec
	histogram *prometheus.HistogramVec
	gauge     *prometheus.GaugeVec
}

// Registry owns the instruments of one process and renders them in the
// text exposition format.
type Registry struct {
	mu          sync.Mutex
	reg         *prometheus.Registry
	instruments map[string]*Instrument
}

// NewRegistry creates an empty registry. When withRuntime is set the Go
// runtime and process collectors are registered too.
func NewRegistry(withRuntime bool) *Registry {
	r := &Registry{
		reg:         prometheus.NewRegistry(),
		instruments: make(map[string]*Instrument),
	}
	if withRuntime {
		r.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Register creates the instrument or returns the existing one with the same
// name. Registering an existing name with another kind or label schema
// returns ErrSchemaMismatch.
func (r *Registry) Register(o Opts) (*Instrument, error) {
	if o.Name == "" {
		return nil, errors.New("metric name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.instruments[o.Name]; ok {
		if existing.Kind != o.Kind || !slices.Equal(existing.Labels, o.Labels) {
			return nil, fmt.Errorf("%w: %s registered as %s%v, requested %s%v",
				ErrSchemaMismatch, o.Name, existing.Kind, existing.Labels, o.Kind, o.Labels)
		}
		return existing, nil
	}

	inst := &Instrument{
		Kind:   o.Kind,
		Name:   o.Name,
		Help:   o.Help,
		Labels: slices.Clone(o.Labels),
	}

	var c prometheus.Collector
	switch o.Kind {
	case KindCounter:
		inst.counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: o.Name, Help: o.Help}, inst.Labels)
		c = inst.counter
	case KindHistogram:
		buckets := o.Buckets
		if buckets == nil {
			buckets = prometheus.DefBuckets
		}
		inst.histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: o.Name, Help: o.Help, Buckets: buckets}, inst.Labels)
		c = inst.histogram
	case KindGauge:
		inst.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: o.Name, Help: o.Help}, inst.Labels)
		c = inst.gauge
	default:
		return nil, fmt.Errorf("unknown metric kind %d", int(o.Kind))
	}

	if err := r.reg.Register(c); err != nil {
		return nil, fmt.Errorf("register %s: %w", o.Name, err)
	}
	r.instruments[o.Name] = inst
	return inst, nil
}

// Snapshot renders every registered metric family, sorted by name, in the
// text exposition format.
func (r *Registry) Snapshot() (string, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}

// Handler serves the scrape endpoint.
func (r *Registry) Handler(errorLog promhttp.Logger) http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{
		ErrorLog:      errorLog,
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Gatherer exposes the underlying gatherer, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Inc adds one to a counter or gauge.
func (i *Instrument) Inc(labelValues ...string) {
	i.Add(1, labelValues...)
}

// Dec subtracts one from a gauge.
func (i *Instrument) Dec(labelValues ...string) {
	i.mustBe(KindGauge)
	i.gauge.WithLabelValues(labelValues...).Dec()
}

// Add adds v to a counter or gauge. Counters reject negative values.
func (i *Instrument) Add(v float64, labelValues ...string) {
	switch i.Kind {
	case KindCounter:
		i.counter.WithLabelValues(labelValues...).Add(v)
	case KindGauge:
		i.gauge.WithLabelValues(labelValues...).Add(v)
	default:
		panic(fmt.Sprintf("metrics: Add on %s %s", i.Kind, i.Name))
	}
}

// Set sets a gauge.
func (i *Instrument) Set(v float64, labelValues ...string) {
	i.mustBe(KindGauge)
	i.gauge.WithLabelValues(labelValues...).Set(v)
}

// Observe records a histogram sample.
func (i *Instrument) Observe(v float64, labelValues ...string) {
	i.mustBe(KindHistogram)
	i.histogram.WithLabelValues(labelValues...).Observe(v)
}

func (i *Instrument) mustBe(k Kind) {
	if i.Kind != k {
		panic(fmt.Sprintf("metrics: %s %s used as %s", i.Kind, i.Name, k))
	}
}
