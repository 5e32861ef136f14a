package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names exposed by the service.
const (
	RequestDurationName = "http_request_duration_seconds"
	RequestsTotalName   = "http_requests_total"
	ActiveName          = "active_connections"
	FaultsName          = "fault_injections_total"
	LeakEntriesName     = "chaos_leak_buffer_entries"
	CPUSpikeName        = "chaos_cpu_spike_seconds_total"
)

// RequestLabels is the label schema shared by the request histogram and
// counter.
var RequestLabels = []string{"method", "route", "status"}

// DurationBuckets are the request latency buckets in seconds.
var DurationBuckets = []float64{0.1, 0.3, 0.5, 0.7, 1, 3, 5, 7, 10}

// Collector records the service's request and chaos telemetry.
type Collector struct {
	registry *Registry

	requestDuration *Instrument
	requestsTotal   *Instrument
	active          *Instrument
	faults          *Instrument
	leakEntries     *Instrument
	cpuSpike        *Instrument
}

// NewCollector registers the service instruments on reg.
func NewCollector(reg *Registry) (*Collector, error) {
	c := &Collector{registry: reg}

	specs := []struct {
		dst  **Instrument
		opts Opts
	}{
		{&c.requestDuration, Opts{Kind: KindHistogram, Name: RequestDurationName,
			Help: "Duration of HTTP requests in seconds", Labels: RequestLabels, Buckets: DurationBuckets}},
		{&c.requestsTotal, Opts{Kind: KindCounter, Name: RequestsTotalName,
			Help: "Total number of HTTP requests", Labels: RequestLabels}},
		{&c.active, Opts{Kind: KindGauge, Name: ActiveName,
			Help: "Number of in-flight HTTP requests"}},
		{&c.faults, Opts{Kind: KindCounter, Name: FaultsName,
			Help: "Faults injected into request handling, by kind (delay, failure)", Labels: []string{"kind"}}},
		{&c.leakEntries, Opts{Kind: KindGauge, Name: LeakEntriesName,
			Help: "Filler entries currently held by the leak buffer"}},
		{&c.cpuSpike, Opts{Kind: KindCounter, Name: CPUSpikeName,
			Help: "Wall-clock seconds spent busy-spinning in CPU spike requests"}},
	}
	for _, s := range specs {
		inst, err := reg.Register(s.opts)
		if err != nil {
			return nil, err
		}
		*s.dst = inst
	}
	return c, nil
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *Registry {
	return c.registry
}

// RecordRequest records one completed request. route must be the matched
// route pattern, not the raw path.
func (c *Collector) RecordRequest(method, route string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	c.requestDuration.Observe(duration.Seconds(), method, route, status)
	c.requestsTotal.Inc(method, route, status)
}

// RecordActiveRequest adjusts the in-flight gauge by delta.
func (c *Collector) RecordActiveRequest(delta int) {
	c.active.Add(float64(delta))
}

// RecordFault counts an injected fault of the given kind.
func (c *Collector) RecordFault(kind string) {
	c.faults.Inc(kind)
}

// SetLeakEntries publishes the current leak buffer size.
func (c *Collector) SetLeakEntries(n int) {
	c.leakEntries.Set(float64(n))
}

// RecordCPUSpike accumulates busy-spin time.
func (c *Collector) RecordCPUSpike(d time.Duration) {
	c.cpuSpike.Add(d.Seconds())
}

// Handler serves the registry in the scrape format.
func (c *Collector) Handler(errorLog promhttp.Logger) http.Handler {
	return c.registry.Handler(errorLog)
}
