package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/constellation-simulator/core"
	"github.com/signalsfoundry/constellation-simulator/eventsim"
	"github.com/signalsfoundry/constellation-simulator/internal/logging"
	"github.com/signalsfoundry/constellation-simulator/internal/observability"
)

func main() {
	scenarioPath := flag.String("scenario", "", "Path to a JSON scenario file; unset fields fall back to defaults")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics")
	durationSecs := flag.Float64("duration", 3600, "Simulated seconds to run before stopping")
	errorSeed := flag.Int64("error-seed", 1, "Seed for the Bernoulli receive error model, for reproducible runs")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()
	ctx, runID := logging.EnsureRunID(ctx)
	log = log.With(logging.String("run_id", runID))

	cfg := core.DefaultScenarioConfig()
	if *scenarioPath != "" {
		loaded, err := loadScenario(*scenarioPath)
		if err != nil {
			log.Error(ctx, "failed to load scenario", logging.String("path", *scenarioPath), logging.String("error", err.Error()))
			os.Exit(1)
		}
		cfg = loaded
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	traceCollector, err := observability.NewTraceCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise trace collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	maintainerCollector, err := observability.NewMaintainerCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise maintainer collector", logging.String("error", err.Error()))
		os.Exit(1)
	}

	metricsSrv := serveMetrics(*metricsAddr, traceCollector, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
	}()

	epoch := time.Now()
	sched := eventsim.NewScheduler(epoch)
	bus := core.NewTraceBus()
	subscribeTraceMetrics(bus, traceCollector)
	subscribeMaintainerMetrics(bus, maintainerCollector)

	builder := &core.ConstellationBuilder{
		Registry:  core.NewRegistry(),
		Bus:       bus,
		Scheduler: sched,
		Epoch:     epoch,
		ErrorSeed: *errorSeed,
	}
	result, err := builder.Build(cfg)
	if err != nil {
		log.Error(ctx, "failed to build constellation", logging.String("error", err.Error()))
		os.Exit(1)
	}

	nodes, devices, channels := result.Registry.Counts()
	log.Info(ctx, "constellation built",
		logging.String("type", string(cfg.Constellation.Type)),
		logging.Int("T", cfg.Constellation.T),
		logging.Int("P", cfg.Constellation.P),
		logging.Int("F", cfg.Constellation.F),
		logging.Int("nodes", nodes),
		logging.Int("devices", devices),
		logging.Int("channels", channels),
	)

	scheduleGaugeUpdates(sched, result, traceCollector, maintainerCollector, cfg.Runtime.UpdateIntervalSecs)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	horizon := epoch.Add(time.Duration(*durationSecs * float64(time.Second)))
	sched.Stop(horizon)

	runDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(runDone)
	}()

	select {
	case <-runDone:
		log.Info(ctx, "simulation run completed", logging.String("horizon", horizon.Format(time.RFC3339)))
	case <-stopCtx.Done():
		log.Info(ctx, "simulation interrupted")
	}
}

func loadScenario(path string) (core.ScenarioConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.ScenarioConfig{}, err
	}
	defer f.Close()
	return core.LoadScenarioConfig(f)
}

func serveMetrics(addr string, collector *observability.TraceCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

// subscribeTraceMetrics wires every TraceSource the core publishes into the
// collector's (entity, source) counter, keeping core decoupled from
// Prometheus entirely.
func subscribeTraceMetrics(bus *core.TraceBus, collector *observability.TraceCollector) {
	sources := []core.TraceSource{
		core.MacTx, core.MacTxDrop, core.MacRx, core.MacPromiscRx, core.MacRxDrop,
		core.PhyTxBegin, core.PhyTxEnd, core.PhyTxDrop, core.PhyRxEnd, core.PhyRxDrop,
		core.Sniffer, core.PromiscSniffer, core.LinkChange,
		core.ChannelConnect, core.ChannelDisconnect, core.ChannelReadyBreak,
	}
	for _, source := range sources {
		src := source
		bus.Subscribe(src, func(ev core.TraceEvent) {
			collector.Observe(ev.EntityName, string(src))
		})
	}
}

func subscribeMaintainerMetrics(bus *core.TraceBus, collector *observability.MaintainerCollector) {
	bus.Subscribe(core.ChannelConnect, func(core.TraceEvent) { collector.IncReconnects() })
	bus.Subscribe(core.ChannelDisconnect, func(core.TraceEvent) { collector.IncDisconnects() })
}

// scheduleGaugeUpdates runs a recurring observability tick alongside the
// LinkMaintainer's own tick, sampling registry and spare-pool sizes into
// gauges without core ever importing the observability package.
func scheduleGaugeUpdates(sched *eventsim.Scheduler, result *core.BuildResult, trace *observability.TraceCollector, maintainer *observability.MaintainerCollector, intervalSecs float64) {
	interval := time.Duration(intervalSecs * float64(time.Second))
	if interval <= 0 {
		interval = time.Second
	}

	var tick func()
	tick = func() {
		nodes, devices, _ := result.Registry.Counts()
		trace.SetRegistryCounts(nodes, devices)

		attached, total := 0, 0
		for _, ch := range result.Registry.Channels() {
			total++
			if ch.Attached() {
				attached++
			}
		}
		trace.SetChannelCounts(attached, total-attached)
		maintainer.SetPoolState(result.Maintainer.SparePoolSize(), result.Maintainer.BrokenCount())

		sched.Schedule(interval, tick)
	}
	sched.Schedule(interval, tick)
}
