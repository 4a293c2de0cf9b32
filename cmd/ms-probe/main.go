// ms-probe receives VXLAN-mirrored traffic, aggregates flows and reports
// Top-N talkers within seconds of the traffic appearing on the wire.
//
// Live mode binds the configured UDP port with a pool of port-shared
// capture workers. With -pcap it instead replays a capture file through the
// same parse and aggregation path and prints the resulting flow summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MirrorScope/internal/alert"
	"MirrorScope/internal/api"
	"MirrorScope/internal/config"
	"MirrorScope/internal/coordinator"
	"MirrorScope/internal/enrich"
	"MirrorScope/internal/metrics"
	"MirrorScope/internal/model"
	"MirrorScope/internal/notification"
	"MirrorScope/internal/probe"
	"MirrorScope/internal/report"
	"MirrorScope/pkg/pcap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	pcapPath := flag.String("pcap", "", "Replay a capture file instead of listening (offline mode)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *pcapPath != "" {
		runReplay(cfg, *pcapPath)
		return
	}
	runProbe(cfg)
}

// runProbe is the live capture path: worker pool, coordinator, alerting and
// the diagnostics API, torn down in dependency order on SIGINT/SIGTERM.
func runProbe(cfg *config.Config) {
	cache, cleanupCache := buildCache(cfg)
	defer cleanupCache()

	var notifiers []model.Notifier
	if cfg.Alerter.Enabled {
		notifiers = buildNotifiers(&cfg.Alerter)
	}
	dispatcher := alert.New(&cfg.Alerter, notifiers, cache)

	sinks := []report.Sink{report.NewLineSink(os.Stdout)}
	if cfg.NATS.Enabled {
		natsSink, err := report.NewNATSSink(cfg.NATS)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer natsSink.Close()
		sinks = append(sinks, natsSink)
	}

	pool, err := probe.NewPool(&cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to start capture workers: %v", err)
	}

	m := metrics.New()
	coord := coordinator.New(&cfg.Coordinator, pool.Snapshots(), cfg.Probe.SampleRate,
		dispatcher, cache, coordinator.WithMetrics(m), coordinator.WithSinks(sinks...))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool.Start(ctx)

	// The coordinator terminates on snapshot channel close, not on the
	// signal context, so the workers' final flush is always folded in.
	coordDone := make(chan struct{})
	go func() {
		coord.Run(context.Background())
		close(coordDone)
	}()

	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(cfg.API.ListenAddr, coord, m)
		server.Start()
	}

	log.Printf("ms-probe started: listen=%s workers=%d sample_rate=%.4f",
		cfg.Probe.ListenAddr, pool.Size(), cfg.Probe.SampleRate)

	<-ctx.Done()
	log.Println("Shutdown signal received, cleaning up...")

	// Workers flush their final window when the context is cancelled;
	// stopping the pool closes the snapshot channel, and the coordinator
	// drains it and emits a last report before exiting.
	pool.Stop()
	<-coordDone

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown: %v", err)
		}
	}
	log.Println("ms-probe exited.")
}

// runReplay feeds a capture file through the parse and aggregation path and
// prints the ranked summary as JSON.
func runReplay(cfg *config.Config, path string) {
	log.Printf("Replaying capture %s...", path)

	entries, stats, err := pcap.NewReplayer(path).Summarize(cfg.Probe.TableCapacity)
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}

	log.Printf("Replay finished: %d records, %d parsed, %d parse errors, %d non-UDP",
		stats.PacketsRead, stats.Parsed, stats.ParseErrors, stats.SkippedOuter)

	summary := struct {
		FlowCount       int                `json:"flow_count"`
		TopFlows        []model.RankedFlow `json:"top_flows"`
		TopSources      []model.RankedAddr `json:"top_sources"`
		TopDestinations []model.RankedAddr `json:"top_destinations"`
	}{
		FlowCount:       len(entries),
		TopFlows:        model.TopFlows(entries, cfg.Coordinator.TopN),
		TopSources:      model.TopSources(entries, cfg.Coordinator.TopN),
		TopDestinations: model.TopDestinations(entries, cfg.Coordinator.TopN),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatalf("Failed to encode summary: %v", err)
	}
}

// buildCache constructs the configured enrichment provider and returns it
// with its cleanup function.
func buildCache(cfg *config.Config) (enrich.Cache, func()) {
	switch cfg.Enrichment.Provider {
	case "static":
		static, err := enrich.NewStaticCache(cfg.Enrichment.StaticPath, cfg.Enrichment.RefreshIntervalDuration())
		if err != nil {
			log.Fatalf("Failed to load static enrichment map: %v", err)
		}
		static.Start()
		return static, static.Stop
	case "geoip":
		geo, err := enrich.NewGeoIPCache(cfg.Enrichment.GeoIPPath)
		if err != nil {
			log.Fatalf("Failed to open GeoIP database: %v", err)
		}
		return geo, func() {
			if err := geo.Close(); err != nil {
				log.Printf("Failed to close GeoIP database: %v", err)
			}
		}
	default:
		return enrich.Nop{}, func() {}
	}
}

// buildNotifiers assembles the alert transports that have configuration.
func buildNotifiers(cfg *config.AlerterConfig) []model.Notifier {
	var notifiers []model.Notifier
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notification.NewSlackNotifier(cfg.SlackWebhookURL))
	}
	if cfg.SMTP.Host != "" && cfg.SMTP.To != "" {
		notifiers = append(notifiers, notification.NewEmailNotifier(cfg.SMTP))
	}
	if len(notifiers) == 0 {
		log.Println("Alerting enabled with no transports configured; alerts will only be logged.")
	}
	return notifiers
}
