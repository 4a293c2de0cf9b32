package flowtable

import (
	"math"
	"math/rand"
	"testing"

	"MirrorScope/internal/model"
)

func testKey(i int) model.FlowKey {
	return model.FlowKey{
		SrcIP:    0x0a000000 | uint32(i),
		DstIP:    0x0a010000 | uint32(i%251),
		Protocol: 6,
		SrcPort:  uint16(1024 + i%60000),
		DstPort:  443,
	}
}

func TestUpsertAndDrain(t *testing.T) {
	tbl := New(1024)

	// N upserts across K distinct keys, shuffled insertion order.
	const K = 300
	const perKey = 7
	const length = 120

	var order []model.FlowKey
	for i := 0; i < K; i++ {
		for j := 0; j < perKey; j++ {
			order = append(order, testKey(i))
		}
	}
	rand.New(rand.NewSource(1)).Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	for _, k := range order {
		tbl.Upsert(k, length)
	}

	entries := tbl.Drain()
	if len(entries) != K {
		t.Fatalf("Drain returned %d entries, want %d", len(entries), K)
	}

	var totalPackets, totalBytes uint64
	for _, e := range entries {
		if e.Stats.Packets != perKey {
			t.Errorf("flow %v has %d packets, want %d", e.Key, e.Stats.Packets, perKey)
		}
		totalPackets += e.Stats.Packets
		totalBytes += e.Stats.Bytes
	}
	if totalPackets != K*perKey {
		t.Errorf("total packets = %d, want %d", totalPackets, K*perKey)
	}
	if totalBytes != K*perKey*length {
		t.Errorf("total bytes = %d, want %d", totalBytes, K*perKey*length)
	}
	if tbl.Dropped() != 0 {
		t.Errorf("dropped = %d, want 0", tbl.Dropped())
	}
}

// The concrete ranking scenario: A 500x100B, B 500x50B, C 10x1000B.
func TestScenarioThreeFlows(t *testing.T) {
	tbl := New(1024)

	a := testKey(1)
	b := testKey(2)
	c := testKey(3)

	for i := 0; i < 500; i++ {
		tbl.Upsert(a, 100)
		tbl.Upsert(b, 50)
	}
	for i := 0; i < 10; i++ {
		tbl.Upsert(c, 1000)
	}

	entries := tbl.Drain()
	if len(entries) != 3 {
		t.Fatalf("Drain returned %d entries, want 3", len(entries))
	}

	want := map[model.FlowKey]uint64{a: 50000, b: 25000, c: 10000}
	for _, e := range entries {
		if e.Stats.Bytes != want[e.Key] {
			t.Errorf("flow %v bytes = %d, want %d", e.Key, e.Stats.Bytes, want[e.Key])
		}
	}
}

func TestTableFullPolicy(t *testing.T) {
	const capacity = 64
	tbl := New(capacity)

	// Fill to capacity.
	for i := 0; i < capacity; i++ {
		tbl.Upsert(testKey(i), 100)
	}
	if tbl.Len() != capacity {
		t.Fatalf("table size = %d, want %d", tbl.Len(), capacity)
	}

	// Inserting more distinct keys must drop, not grow or corrupt.
	for i := capacity; i < capacity*3; i++ {
		tbl.Upsert(testKey(i), 100)
	}
	if tbl.Len() != capacity {
		t.Errorf("table grew to %d entries, want %d", tbl.Len(), capacity)
	}
	if tbl.Dropped() != capacity*2 {
		t.Errorf("dropped = %d, want %d", tbl.Dropped(), capacity*2)
	}

	// Existing flows still update.
	tbl.Upsert(testKey(0), 100)
	entries := tbl.Drain()
	if len(entries) != capacity {
		t.Fatalf("Drain returned %d entries, want %d", len(entries), capacity)
	}
	for _, e := range entries {
		if e.Key == testKey(0) {
			if e.Stats.Packets != 2 || e.Stats.Bytes != 200 {
				t.Errorf("existing flow stats = %+v, want 2 packets / 200 bytes", e.Stats)
			}
		}
	}
}

func TestReset(t *testing.T) {
	tbl := New(128)
	for i := 0; i < 50; i++ {
		tbl.Upsert(testKey(i), 64)
	}
	tbl.Reset()
	if tbl.Len() != 0 {
		t.Errorf("size after reset = %d, want 0", tbl.Len())
	}
	if got := tbl.Drain(); got != nil {
		t.Errorf("Drain after reset returned %d entries, want none", len(got))
	}

	// The table is fully usable for the next window.
	tbl.Upsert(testKey(1), 64)
	if tbl.Len() != 1 {
		t.Errorf("size after reinsert = %d, want 1", tbl.Len())
	}
}

func TestSamplingDeterminism(t *testing.T) {
	threshold := SampleThreshold(0.25)
	key := testKey(42)

	first := ShouldSample(key, threshold)
	for i := 0; i < 1000; i++ {
		if ShouldSample(key, threshold) != first {
			t.Fatalf("sampling decision changed for the same key")
		}
	}
}

func TestSamplingConvergence(t *testing.T) {
	const rate = 0.3
	const n = 200000
	threshold := SampleThreshold(rate)

	sampled := 0
	for i := 0; i < n; i++ {
		if ShouldSample(testKey(i), threshold) {
			sampled++
		}
	}

	got := float64(sampled) / n
	if math.Abs(got-rate) > 0.02 {
		t.Errorf("sampled fraction = %.4f, want %.2f +/- 0.02", got, rate)
	}
}

func TestSampleRateOne(t *testing.T) {
	threshold := SampleThreshold(1.0)
	for i := 0; i < 1000; i++ {
		if !ShouldSample(testKey(i), threshold) {
			t.Fatalf("rate 1.0 must sample every flow")
		}
	}
}
