// Package alert evaluates fast-cycle aggregates against configured ceilings
// and dispatches notifications. Evaluation is two scalar comparisons so the
// fast cycle stays cheap regardless of flow cardinality; everything
// expensive (ranking, enrichment, formatting, transport) runs off the
// coordinator's synchronous path.
package alert

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"MirrorScope/internal/config"
	"MirrorScope/internal/enrich"
	"MirrorScope/internal/model"
)

// Class is an independently-thresholded and independently-cooled alert kind.
type Class string

const (
	// ClassBandwidth fires when bytes/sec (as bits) exceeds the ceiling.
	ClassBandwidth Class = "bandwidth"
	// ClassPacketRate fires when packets/sec exceeds the ceiling.
	ClassPacketRate Class = "packet_rate"
)

// detailTopN bounds the per-section detail included in a notification.
const detailTopN = 5

// Dispatcher gates alert notifications behind a per-class cooldown and
// sends them asynchronously. A slow or failing transport never delays the
// next merge cycle; transport failures are logged and swallowed.
type Dispatcher struct {
	thresholdBps float64
	thresholdPps float64
	cooldown     time.Duration
	notifiers    []model.Notifier
	cache        enrich.Cache

	mu        sync.Mutex
	lastFired map[Class]time.Time
	fired     uint64

	wg sync.WaitGroup
}

// New creates a Dispatcher. The cache may be enrich.Nop; notifiers may be
// empty, in which case alerts are only logged.
func New(cfg *config.AlerterConfig, notifiers []model.Notifier, cache enrich.Cache) *Dispatcher {
	if cache == nil {
		cache = enrich.Nop{}
	}
	return &Dispatcher{
		thresholdBps: cfg.ThresholdBps,
		thresholdPps: cfg.ThresholdPps,
		cooldown:     cfg.CooldownDuration(),
		notifiers:    notifiers,
		cache:        cache,
		lastFired:    make(map[Class]time.Time),
	}
}

// Evaluate checks both alert classes against the fast-cycle aggregates.
// detail is invoked at most once, and only when a class actually fires past
// its cooldown; it must return an owned copy the notification goroutine can
// keep. Returns the classes fired.
func (d *Dispatcher) Evaluate(now time.Time, bps, pps float64, detail func() []model.FlowEntry) []Class {
	var breached []Class
	if bps > d.thresholdBps {
		breached = append(breached, ClassBandwidth)
	}
	if pps > d.thresholdPps {
		breached = append(breached, ClassPacketRate)
	}
	if len(breached) == 0 {
		return nil
	}

	var fire []Class
	d.mu.Lock()
	for _, class := range breached {
		if now.Sub(d.lastFired[class]) >= d.cooldown {
			d.lastFired[class] = now
			fire = append(fire, class)
		}
	}
	if len(fire) > 0 {
		d.fired += uint64(len(fire))
	}
	d.mu.Unlock()

	if len(fire) == 0 {
		return nil
	}

	var entries []model.FlowEntry
	if detail != nil {
		entries = detail()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.notify(fire, bps, pps, entries)
	}()

	return fire
}

// Fired returns the total notifications fired since start.
func (d *Dispatcher) Fired() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fired
}

// Close waits for in-flight notifications to finish.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

func (d *Dispatcher) notify(classes []Class, bps, pps float64, entries []model.FlowEntry) {
	subject := fmt.Sprintf("Traffic Alert: %s / %s", BpsToHuman(bps), PpsToHuman(pps))
	body := d.formatMessage(classes, bps, pps, entries)

	log.Printf("ALERT triggered (%v): %s", classes, subject)

	for _, n := range d.notifiers {
		if err := n.Send(subject, body); err != nil {
			log.Printf("failed to send alert notification: %v", err)
		}
	}
}

// formatMessage renders the alert body: rates and thresholds, then Top
// Sources, Top Destinations, and Top Flows annotated with identity where
// the cache knows the address.
func (d *Dispatcher) formatMessage(classes []Class, bps, pps float64, entries []model.FlowEntry) string {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = string(c)
	}

	lines := []string{
		"=== Traffic Mirror Alert ===",
		fmt.Sprintf("Classes: %s", strings.Join(names, ", ")),
		fmt.Sprintf("Rate: %s / %s", BpsToHuman(bps), PpsToHuman(pps)),
		fmt.Sprintf("Threshold: %s / %s", BpsToHuman(d.thresholdBps), PpsToHuman(d.thresholdPps)),
		"",
		"--- Top Sources ---",
	}

	for _, s := range model.TopSources(entries, detailTopN) {
		lines = append(lines, fmt.Sprintf("  %15s  %10s  (%s)",
			s.Addr, BytesToHuman(float64(s.Bytes)), d.label(s.Addr)))
	}

	lines = append(lines, "", "--- Top Destinations ---")
	for _, t := range model.TopDestinations(entries, detailTopN) {
		lines = append(lines, fmt.Sprintf("  %15s  %10s  (%s)",
			t.Addr, BytesToHuman(float64(t.Bytes)), d.label(t.Addr)))
	}

	lines = append(lines, "", "--- Top Flows ---")
	for _, f := range model.TopFlows(entries, detailTopN) {
		lines = append(lines, fmt.Sprintf("  %s  %s",
			f.Flow, BytesToHuman(float64(f.Bytes))))
	}

	return strings.Join(lines, "\n")
}

func (d *Dispatcher) label(addr string) string {
	if id, ok := d.cache.Lookup(addr); ok {
		return id.Label()
	}
	return addr
}
