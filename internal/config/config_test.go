package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestParseEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse empty config failed: %v", err)
	}

	def := Defaults()
	if cfg.Probe.ListenAddr != def.Probe.ListenAddr {
		t.Errorf("listen_addr = %q, want default %q", cfg.Probe.ListenAddr, def.Probe.ListenAddr)
	}
	if cfg.Coordinator.FastIntervalDuration() != 500*time.Millisecond {
		t.Errorf("fast interval = %s, want 500ms", cfg.Coordinator.FastIntervalDuration())
	}
	if cfg.Coordinator.SlowIntervalDuration() != 5*time.Second {
		t.Errorf("slow interval = %s, want 5s", cfg.Coordinator.SlowIntervalDuration())
	}
	if cfg.Probe.SampleRate != 1.0 {
		t.Errorf("sample rate = %f, want 1.0", cfg.Probe.SampleRate)
	}
}

func TestParseOverrides(t *testing.T) {
	yaml := `
probe:
  listen_addr: "10.0.0.5:14789"
  workers: 8
  sample_rate: 0.1
coordinator:
  top_n: 25
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Probe.ListenAddr != "10.0.0.5:14789" || cfg.Probe.Workers != 8 {
		t.Errorf("probe overrides not applied: %+v", cfg.Probe)
	}
	if cfg.Probe.SampleRate != 0.1 {
		t.Errorf("sample rate = %f, want 0.1", cfg.Probe.SampleRate)
	}
	if cfg.Coordinator.TopN != 25 {
		t.Errorf("top_n = %d, want 25", cfg.Coordinator.TopN)
	}
	// Untouched sections keep defaults.
	if cfg.Alerter.Cooldown != "5m" {
		t.Errorf("cooldown = %q, want default 5m", cfg.Alerter.Cooldown)
	}
}

func TestSampleRateClamping(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{-1, 0.0001},
		{0, 0.0001},
		{0.5, 0.5},
		{3, 1.0},
	}
	for _, tc := range cases {
		cfg := Defaults()
		cfg.Probe.SampleRate = tc.in
		if err := validate(&cfg); err != nil {
			t.Fatalf("validate with sample_rate=%f failed: %v", tc.in, err)
		}
		if cfg.Probe.SampleRate != tc.want {
			t.Errorf("sample_rate %f clamped to %f, want %f", tc.in, cfg.Probe.SampleRate, tc.want)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty listen addr", func(c *Config) { c.Probe.ListenAddr = "" }, "listen_addr"},
		{"negative workers", func(c *Config) { c.Probe.Workers = -1 }, "workers"},
		{"zero batch", func(c *Config) { c.Probe.BatchSize = 0 }, "batch_size"},
		{"bad duration", func(c *Config) { c.Probe.FlushInterval = "soon" }, "flush_interval"},
		{"slow shorter than fast", func(c *Config) {
			c.Coordinator.FastInterval = "2s"
			c.Coordinator.SlowInterval = "1s"
		}, "slow_interval"},
		{"zero top n", func(c *Config) { c.Coordinator.TopN = 0 }, "top_n"},
		{"static without path", func(c *Config) { c.Enrichment.Provider = "static" }, "static_path"},
		{"unknown provider", func(c *Config) { c.Enrichment.Provider = "ldap" }, "provider"},
		{"nats without url", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = ""
		}, "nats.url"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatal("validate succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestEnvVarSubstitution(t *testing.T) {
	os.Setenv("MS_TEST_LISTEN", "127.0.0.1:9999")
	defer os.Unsetenv("MS_TEST_LISTEN")

	yaml := `
probe:
  listen_addr: "${MS_TEST_LISTEN}"
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Probe.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("listen_addr = %q, want substituted value", cfg.Probe.ListenAddr)
	}

	// Unset variables are left verbatim.
	cfg2, err := Parse([]byte(`
alerter:
  slack_webhook_url: "${MS_TEST_UNSET_VAR}"
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg2.Alerter.SlackWebhookURL != "${MS_TEST_UNSET_VAR}" {
		t.Errorf("unset var = %q, want left as-is", cfg2.Alerter.SlackWebhookURL)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	if err := os.WriteFile(path, []byte("probe:\n  workers: 3\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Probe.Workers != 3 {
		t.Errorf("workers = %d, want 3", cfg.Probe.Workers)
	}

	if _, err := Load(path + ".missing"); err == nil {
		t.Error("Load of missing file succeeded, want error")
	}
}
