// Package coordinator merges worker snapshots into a single flow view and
// drives the two evaluation cadences: a fast cycle that checks aggregate
// rates against alert ceilings, and a slow cycle that ranks flows, enriches
// addresses and emits reports. Merging per-flow counters is safe at any
// cadence because addition is order-independent; a snapshot is folded
// exactly once, so no window double counts.
package coordinator

import (
	"context"
	"log"
	"sync"
	"time"

	"MirrorScope/internal/alert"
	"MirrorScope/internal/config"
	"MirrorScope/internal/enrich"
	"MirrorScope/internal/metrics"
	"MirrorScope/internal/model"
	"MirrorScope/internal/report"
)

// Stats is the point-in-time coordinator state served by the HTTP API.
type Stats struct {
	MergedFlows   int                `json:"merged_flows"`
	WindowPackets uint64             `json:"window_packets"`
	WindowBytes   uint64             `json:"window_bytes"`
	BitsPerSec    float64            `json:"bits_per_sec"`
	PacketsPerSec float64            `json:"packets_per_sec"`
	AlertsFired   uint64             `json:"alerts_fired"`
	Diagnostics   model.WorkerTotals `json:"diagnostics"`
}

// Coordinator owns the merged flow map. All mutation happens on its single
// Run goroutine; LastReport and Snapshot copy under a lock for readers.
type Coordinator struct {
	in           <-chan model.Snapshot
	dispatcher   *alert.Dispatcher
	cache        enrich.Cache
	sinks        []report.Sink
	metrics      *metrics.Metrics
	sampleFactor float64
	fastInterval time.Duration
	slowInterval time.Duration
	topN         int

	merged      map[model.FlowKey]model.FlowStats
	totals      model.WorkerTotals
	windowStart time.Time

	// Running window totals, maintained in fold and reset each slow cycle,
	// so neither cycle ever needs to walk the merged map to know them.
	windowPackets uint64
	windowBytes   uint64

	// Lifetime packet/byte counters, already sampling-compensated. The fast
	// cycle differentiates these to get the current rate.
	cumPackets uint64
	cumBytes   uint64
	lastFast   time.Time
	lastCumPk  uint64
	lastCumBy  uint64

	stateMu    sync.RWMutex
	lastReport *model.Report
	lastStats  Stats
}

// Option tweaks a Coordinator at construction time.
type Option func(*Coordinator)

// WithMetrics attaches a Prometheus metrics set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithSinks sets the report sinks written each slow cycle.
func WithSinks(sinks ...report.Sink) Option {
	return func(c *Coordinator) { c.sinks = sinks }
}

// New creates a Coordinator reading snapshots from in. sampleRate is the
// probe's configured rate; counters are compensated by its inverse at merge
// time so reports and alert rates estimate pre-sampling traffic.
func New(cfg *config.CoordinatorConfig, in <-chan model.Snapshot, sampleRate float64,
	dispatcher *alert.Dispatcher, cache enrich.Cache, opts ...Option) *Coordinator {
	if cache == nil {
		cache = enrich.Nop{}
	}
	c := &Coordinator{
		in:           in,
		dispatcher:   dispatcher,
		cache:        cache,
		sampleFactor: 1.0 / sampleRate,
		fastInterval: cfg.FastIntervalDuration(),
		slowInterval: cfg.SlowIntervalDuration(),
		topN:         cfg.TopN,
		merged:       make(map[model.FlowKey]model.FlowStats),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run blocks until ctx is cancelled, then performs a final drain and report
// so counters accumulated since the last slow cycle are not lost.
func (c *Coordinator) Run(ctx context.Context) {
	now := time.Now()
	c.windowStart = now
	c.lastFast = now

	fast := time.NewTicker(c.fastInterval)
	defer fast.Stop()
	slow := time.NewTicker(c.slowInterval)
	defer slow.Stop()

	log.Printf("coordinator started: fast=%s slow=%s top_n=%d sample_factor=%.1f",
		c.fastInterval, c.slowInterval, c.topN, c.sampleFactor)

	for {
		select {
		case snap, ok := <-c.in:
			if !ok {
				c.finish()
				return
			}
			c.fold(snap)
		case t := <-fast.C:
			c.drainAvailable()
			c.fastCycle(t)
		case t := <-slow.C:
			c.drainAvailable()
			c.slowCycle(t)
		case <-ctx.Done():
			c.finish()
			return
		}
	}
}

// finish drains whatever the workers flushed during shutdown and emits a
// last report covering the partial window.
func (c *Coordinator) finish() {
	c.drainAvailable()
	if len(c.merged) > 0 || c.totals.PacketsReceived > 0 {
		c.slowCycle(time.Now())
	}
	c.dispatcher.Close()
	log.Printf("coordinator stopped")
}

// fold merges one snapshot, compensating the configured sampling rate so
// downstream consumers see estimated pre-sampling counters.
func (c *Coordinator) fold(snap model.Snapshot) {
	for _, e := range snap.Flows {
		e.Stats.Scale(c.sampleFactor)
		s := c.merged[e.Key]
		s.Add(e.Stats)
		c.merged[e.Key] = s
		c.windowPackets += e.Stats.Packets
		c.windowBytes += e.Stats.Bytes
		c.cumPackets += e.Stats.Packets
		c.cumBytes += e.Stats.Bytes
	}
	c.totals.Add(snap.Totals)

	if c.metrics != nil {
		c.metrics.PacketsReceived.Add(float64(snap.Totals.PacketsReceived))
		c.metrics.BytesReceived.Add(float64(snap.Totals.BytesReceived))
		c.metrics.ParseErrors.Add(float64(snap.Totals.ParseErrors))
		c.metrics.SampledOut.Add(float64(snap.Totals.SampledOut))
		c.metrics.FlowsDropped.Add(float64(snap.Totals.FlowsDropped))
		c.metrics.SnapshotsDropped.Add(float64(snap.Totals.SnapshotsDropped))
	}
}

// drainAvailable folds every snapshot already buffered without blocking.
func (c *Coordinator) drainAvailable() {
	for {
		select {
		case snap, ok := <-c.in:
			if !ok {
				return
			}
			c.fold(snap)
		default:
			return
		}
	}
}

// fastCycle computes the aggregate rate since the previous fast tick and
// hands it to the dispatcher. It does no per-flow work unless an alert
// actually fires past its cooldown.
func (c *Coordinator) fastCycle(now time.Time) {
	elapsed := now.Sub(c.lastFast).Seconds()
	if elapsed <= 0 {
		return
	}
	deltaPk := c.cumPackets - c.lastCumPk
	deltaBy := c.cumBytes - c.lastCumBy
	c.lastFast = now
	c.lastCumPk = c.cumPackets
	c.lastCumBy = c.cumBytes

	bps := float64(deltaBy) * 8 / elapsed
	pps := float64(deltaPk) / elapsed

	fired := c.dispatcher.Evaluate(now, bps, pps, c.entries)
	if c.metrics != nil {
		c.metrics.BitsPerSecond.Set(bps)
		c.metrics.PacketsPerSecond.Set(pps)
		c.metrics.MergedFlows.Set(float64(len(c.merged)))
		for _, class := range fired {
			c.metrics.AlertsFired.WithLabelValues(string(class)).Inc()
		}
	}

	c.stateMu.Lock()
	c.lastStats = Stats{
		MergedFlows:   len(c.merged),
		WindowPackets: c.windowPackets,
		WindowBytes:   c.windowBytes,
		BitsPerSec:    bps,
		PacketsPerSec: pps,
		AlertsFired:   c.dispatcher.Fired(),
		Diagnostics:   c.totals,
	}
	c.stateMu.Unlock()
}

// slowCycle builds the ranked report for the window, writes it to every
// sink and clears the merged state. Sink failures are logged; the probe's
// view of live traffic is worth more than any single delivery.
func (c *Coordinator) slowCycle(now time.Time) {
	entries := c.entries()
	r := &model.Report{
		Timestamp:       now,
		WindowSeconds:   now.Sub(c.windowStart).Seconds(),
		FlowCount:       len(entries),
		TotalPackets:    c.windowPackets,
		TotalBytes:      c.windowBytes,
		TopFlows:        model.TopFlows(entries, c.topN),
		TopSources:      c.enrichAddrs(model.TopSources(entries, c.topN)),
		TopDestinations: c.enrichAddrs(model.TopDestinations(entries, c.topN)),
		Diagnostics:     c.totals,
	}

	for _, s := range c.sinks {
		if err := s.Write(r); err != nil {
			log.Printf("failed to write report: %v", err)
		}
	}

	c.stateMu.Lock()
	c.lastReport = r
	c.stateMu.Unlock()

	c.merged = make(map[model.FlowKey]model.FlowStats)
	c.totals = model.WorkerTotals{}
	c.windowPackets = 0
	c.windowBytes = 0
	c.windowStart = now
}

// entries copies the merged map into an owned slice. Also the alert detail
// callback, so a notification goroutine never races the merge loop.
func (c *Coordinator) entries() []model.FlowEntry {
	out := make([]model.FlowEntry, 0, len(c.merged))
	for k, s := range c.merged {
		out = append(out, model.FlowEntry{Key: k, Stats: s})
	}
	return out
}

func (c *Coordinator) enrichAddrs(addrs []model.RankedAddr) []model.RankedAddr {
	for i := range addrs {
		if id, ok := c.cache.Lookup(addrs[i].Addr); ok {
			id.IP = addrs[i].Addr
			addrs[i].Identity = &id
		}
	}
	return addrs
}

// LastReport returns the most recent slow-cycle report, or nil before the
// first slow cycle completes.
func (c *Coordinator) LastReport() *model.Report {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastReport
}

// Snapshot returns the stats published by the latest fast cycle.
func (c *Coordinator) Snapshot() Stats {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastStats
}
