package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MaintainerCollector exposes LinkMaintainer-specific Prometheus metrics.
type MaintainerCollector struct {
	gatherer prometheus.Gatherer

	TickDuration prometheus.Histogram
	SparePoolSize prometheus.Gauge
	BrokenLinks   prometheus.Gauge
	ReconnectsTotal  prometheus.Counter
	DisconnectsTotal prometheus.Counter
}

// NewMaintainerCollector registers LinkMaintainer metrics against the
// provided registerer.
func NewMaintainerCollector(reg prometheus.Registerer) (*MaintainerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lasersim_maintainer_tick_duration_seconds",
		Help:    "Duration of each LinkMaintainer polar-region maintenance pass.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	})
	tickHistogram, err := registerHistogram(reg, tickHistogram, "lasersim_maintainer_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	spareGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lasersim_maintainer_spare_pool_size",
		Help: "Number of detached temporary channels currently held in the spare pool.",
	})
	spareGauge, err = registerGauge(reg, spareGauge, "lasersim_maintainer_spare_pool_size")
	if err != nil {
		return nil, err
	}

	brokenGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lasersim_maintainer_broken_links",
		Help: "Number of devices currently recorded in broken_left or broken_right.",
	})
	brokenGauge, err = registerGauge(reg, brokenGauge, "lasersim_maintainer_broken_links")
	if err != nil {
		return nil, err
	}

	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lasersim_maintainer_reconnects_total",
		Help: "Cumulative number of ladder channels reconnected on polar exit.",
	})
	reconnects, err = registerCounter(reg, reconnects, "lasersim_maintainer_reconnects_total")
	if err != nil {
		return nil, err
	}

	disconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lasersim_maintainer_disconnects_total",
		Help: "Cumulative number of ladder channels disconnected on polar entry.",
	})
	disconnects, err = registerCounter(reg, disconnects, "lasersim_maintainer_disconnects_total")
	if err != nil {
		return nil, err
	}

	return &MaintainerCollector{
		gatherer:         gatherer,
		TickDuration:     tickHistogram,
		SparePoolSize:    spareGauge,
		BrokenLinks:      brokenGauge,
		ReconnectsTotal:  reconnects,
		DisconnectsTotal: disconnects,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *MaintainerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one maintenance pass duration.
func (c *MaintainerCollector) ObserveTick(d time.Duration) {
	if c == nil || c.TickDuration == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
}

// SetPoolState updates the spare-pool and broken-link gauges in one call.
func (c *MaintainerCollector) SetPoolState(spareSize, brokenLinks int) {
	if c == nil {
		return
	}
	if c.SparePoolSize != nil {
		c.SparePoolSize.Set(float64(spareSize))
	}
	if c.BrokenLinks != nil {
		c.BrokenLinks.Set(float64(brokenLinks))
	}
}

// IncReconnects increments the reconnect counter.
func (c *MaintainerCollector) IncReconnects() {
	if c == nil || c.ReconnectsTotal == nil {
		return
	}
	c.ReconnectsTotal.Inc()
}

// IncDisconnects increments the disconnect counter.
func (c *MaintainerCollector) IncDisconnects() {
	if c == nil || c.DisconnectsTotal == nil {
		return
	}
	c.DisconnectsTotal.Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, collectorTypeErr(name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, collectorTypeErr(name)
		}
		return nil, err
	}
	return counter, nil
}
