package config

import (
	"fmt"
	"time"
)

// ProbeConfig configures the capture worker pool.
type ProbeConfig struct {
	// ListenAddr is the UDP address receiving mirrored VXLAN traffic.
	ListenAddr string `yaml:"listen_addr"`
	// Workers is the number of capture workers; 0 means one per CPU core.
	Workers int `yaml:"workers"`
	// RecvBufferBytes is the requested SO_RCVBUF size per worker socket.
	RecvBufferBytes int `yaml:"recv_buffer_bytes"`
	// BatchSize is the number of datagrams requested per batched receive.
	BatchSize int `yaml:"batch_size"`
	// ReadTimeout bounds each batched receive so the loop can observe
	// shutdown and the flush deadline.
	ReadTimeout string `yaml:"read_timeout"`
	// FlushInterval is how often a worker drains its flow table to the
	// coordinator. Independent of, and shorter than, the slow cycle.
	FlushInterval string `yaml:"flush_interval"`
	// SampleRate in (0,1]; values outside are clamped to [0.0001, 1.0].
	SampleRate float64 `yaml:"sample_rate"`
	// TableCapacity is the fixed per-worker flow table capacity.
	TableCapacity int `yaml:"table_capacity"`
	// SnapshotChannelDepth bounds the worker->coordinator channel.
	SnapshotChannelDepth int `yaml:"snapshot_channel_depth"`
}

// CoordinatorConfig configures the merge/report loop.
type CoordinatorConfig struct {
	// FastInterval is the alert-evaluation cadence.
	FastInterval string `yaml:"fast_interval"`
	// SlowInterval is the ranked-report cadence, a multiple of FastInterval.
	SlowInterval string `yaml:"slow_interval"`
	// TopN is how many flows/sources/destinations each report ranks.
	TopN int `yaml:"top_n"`
}

// SMTPConfig holds the email notifier settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// AlerterConfig configures threshold alerting.
type AlerterConfig struct {
	Enabled bool `yaml:"enabled"`
	// ThresholdBps is the bandwidth ceiling in bits per second.
	ThresholdBps float64 `yaml:"threshold_bps"`
	// ThresholdPps is the packet-rate ceiling in packets per second.
	ThresholdPps float64 `yaml:"threshold_pps"`
	// Cooldown gates repeat notifications per alert class.
	Cooldown        string     `yaml:"cooldown"`
	SlackWebhookURL string     `yaml:"slack_webhook_url"`
	SMTP            SMTPConfig `yaml:"smtp"`
}

// EnrichmentConfig selects the identity provider consulted when formatting
// reports. Lookups are read-only and cache-miss tolerant.
type EnrichmentConfig struct {
	// Provider is one of "none", "static", "geoip".
	Provider string `yaml:"provider"`
	// StaticPath is the YAML identity map for the static provider.
	StaticPath string `yaml:"static_path"`
	// RefreshInterval is how often the static provider reloads its file.
	RefreshInterval string `yaml:"refresh_interval"`
	// GeoIPPath is the MMDB database for the geoip provider.
	GeoIPPath string `yaml:"geoip_path"`
}

// NATSConfig configures the optional NATS report sink.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// APIConfig configures the diagnostics HTTP server.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire probe,
// constructed once at startup and passed down to each component.
type Config struct {
	Probe       ProbeConfig       `yaml:"probe"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Alerter     AlerterConfig     `yaml:"alerter"`
	Enrichment  EnrichmentConfig  `yaml:"enrichment"`
	NATS        NATSConfig        `yaml:"nats"`
	API         APIConfig         `yaml:"api"`
}

// Defaults returns a configuration with every tunable at its default.
func Defaults() Config {
	return Config{
		Probe: ProbeConfig{
			ListenAddr:           "0.0.0.0:4789",
			Workers:              0,
			RecvBufferBytes:      128 * 1024 * 1024,
			BatchSize:            256,
			ReadTimeout:          "100ms",
			FlushInterval:        "1s",
			SampleRate:           1.0,
			TableCapacity:        200000,
			SnapshotChannelDepth: 64,
		},
		Coordinator: CoordinatorConfig{
			FastInterval: "500ms",
			SlowInterval: "5s",
			TopN:         10,
		},
		Alerter: AlerterConfig{
			Enabled:      true,
			ThresholdBps: 1e9, // 1 Gbps
			ThresholdPps: 1e6, // 1 Mpps
			Cooldown:     "5m",
		},
		Enrichment: EnrichmentConfig{
			Provider:        "none",
			RefreshInterval: "60s",
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "mirrorscope.reports",
		},
		API: APIConfig{
			Enabled:    true,
			ListenAddr: ":9645",
		},
	}
}

// FlushIntervalDuration returns the parsed worker flush interval.
func (c *ProbeConfig) FlushIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.FlushInterval)
	return d
}

// ReadTimeoutDuration returns the parsed batched-receive timeout.
func (c *ProbeConfig) ReadTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReadTimeout)
	return d
}

// FastIntervalDuration returns the parsed fast-cycle interval.
func (c *CoordinatorConfig) FastIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.FastInterval)
	return d
}

// SlowIntervalDuration returns the parsed slow-cycle interval.
func (c *CoordinatorConfig) SlowIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.SlowInterval)
	return d
}

// CooldownDuration returns the parsed alert cooldown.
func (c *AlerterConfig) CooldownDuration() time.Duration {
	d, _ := time.ParseDuration(c.Cooldown)
	return d
}

// RefreshIntervalDuration returns the parsed enrichment refresh interval.
func (c *EnrichmentConfig) RefreshIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.RefreshInterval)
	return d
}

// validate checks every field the rest of the system relies on. It is the
// only place configuration errors surface; components may assume a valid
// Config afterwards.
func validate(cfg *Config) error {
	if cfg.Probe.ListenAddr == "" {
		return fmt.Errorf("probe.listen_addr must not be empty")
	}
	if cfg.Probe.Workers < 0 {
		return fmt.Errorf("probe.workers must not be negative")
	}
	if cfg.Probe.BatchSize <= 0 {
		return fmt.Errorf("probe.batch_size must be positive")
	}
	if cfg.Probe.TableCapacity <= 0 {
		return fmt.Errorf("probe.table_capacity must be positive")
	}
	if cfg.Probe.SnapshotChannelDepth <= 0 {
		return fmt.Errorf("probe.snapshot_channel_depth must be positive")
	}

	// Out-of-range sampling rates are clamped rather than rejected, matching
	// the probe's availability-over-exactness posture.
	if cfg.Probe.SampleRate <= 0 {
		cfg.Probe.SampleRate = 0.0001
	}
	if cfg.Probe.SampleRate > 1.0 {
		cfg.Probe.SampleRate = 1.0
	}

	durations := []struct {
		name, value string
	}{
		{"probe.read_timeout", cfg.Probe.ReadTimeout},
		{"probe.flush_interval", cfg.Probe.FlushInterval},
		{"coordinator.fast_interval", cfg.Coordinator.FastInterval},
		{"coordinator.slow_interval", cfg.Coordinator.SlowInterval},
		{"alerter.cooldown", cfg.Alerter.Cooldown},
		{"enrichment.refresh_interval", cfg.Enrichment.RefreshInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be a positive duration", d.name)
		}
	}

	fast := cfg.Coordinator.FastIntervalDuration()
	slow := cfg.Coordinator.SlowIntervalDuration()
	if slow < fast {
		return fmt.Errorf("coordinator.slow_interval (%s) must not be shorter than fast_interval (%s)",
			slow, fast)
	}

	if cfg.Coordinator.TopN <= 0 {
		return fmt.Errorf("coordinator.top_n must be positive")
	}

	switch cfg.Enrichment.Provider {
	case "none", "":
	case "static":
		if cfg.Enrichment.StaticPath == "" {
			return fmt.Errorf("enrichment.static_path required for static provider")
		}
	case "geoip":
		if cfg.Enrichment.GeoIPPath == "" {
			return fmt.Errorf("enrichment.geoip_path required for geoip provider")
		}
	default:
		return fmt.Errorf("unknown enrichment provider: %q", cfg.Enrichment.Provider)
	}

	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return fmt.Errorf("nats.url required when the NATS sink is enabled")
	}

	return nil
}
