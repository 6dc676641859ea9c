package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func collectorTypeErr(name string) error {
	return fmt.Errorf("collector %s already registered with incompatible type", name)
}

// TraceCollector bundles the Prometheus metrics derived from the simulator's
// core.TraceEvent stream: a counter keyed by (entity, source) for every
// trace publish, plus gauges tracking the registry's current population.
type TraceCollector struct {
	gatherer prometheus.Gatherer

	Events *prometheus.CounterVec

	Nodes            prometheus.Gauge
	Devices          prometheus.Gauge
	ChannelsAttached prometheus.Gauge
	ChannelsSpare    prometheus.Gauge
}

// NewTraceCollector registers the trace metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewTraceCollector(reg prometheus.Registerer) (*TraceCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lasersim_trace_events_total",
		Help: "Total number of trace events published, labeled by entity and trace source.",
	}, []string{"entity", "source"})
	events, err := registerCounterVec(reg, events, "lasersim_trace_events_total")
	if err != nil {
		return nil, err
	}

	nodes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lasersim_registry_nodes",
		Help: "Current number of satellite nodes in the registry.",
	}), "lasersim_registry_nodes")
	if err != nil {
		return nil, err
	}
	devices, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lasersim_registry_devices",
		Help: "Current number of optical devices in the registry.",
	}), "lasersim_registry_devices")
	if err != nil {
		return nil, err
	}
	attached, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lasersim_channels_attached",
		Help: "Current number of optical channels with both ends attached.",
	}), "lasersim_channels_attached")
	if err != nil {
		return nil, err
	}
	spare, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lasersim_channels_spare",
		Help: "Current number of detached temporary channels held in the spare pool.",
	}), "lasersim_channels_spare")
	if err != nil {
		return nil, err
	}

	return &TraceCollector{
		gatherer:         gatherer,
		Events:           events,
		Nodes:            nodes,
		Devices:          devices,
		ChannelsAttached: attached,
		ChannelsSpare:    spare,
	}, nil
}

// Observe records one trace event against the Events counter. It is meant
// to be registered as a core.TraceBus subscriber across every TraceSource.
func (c *TraceCollector) Observe(entity, source string) {
	if c == nil || c.Events == nil {
		return
	}
	c.Events.WithLabelValues(entity, source).Inc()
}

// SetRegistryCounts updates the node/device population gauges.
func (c *TraceCollector) SetRegistryCounts(nodes, devices int) {
	if c == nil {
		return
	}
	if c.Nodes != nil {
		c.Nodes.Set(float64(nodes))
	}
	if c.Devices != nil {
		c.Devices.Set(float64(devices))
	}
}

// SetChannelCounts updates the attached/spare channel gauges.
func (c *TraceCollector) SetChannelCounts(attached, spare int) {
	if c == nil {
		return
	}
	if c.ChannelsAttached != nil {
		c.ChannelsAttached.Set(float64(attached))
	}
	if c.ChannelsSpare != nil {
		c.ChannelsSpare.Set(float64(spare))
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *TraceCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, collectorTypeErr(name)
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
			return nil, collectorTypeErr(name)
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
			return nil, collectorTypeErr(name)
		}
		return nil, err
	}
	return gauge, nil
}
