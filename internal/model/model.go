package model

import (
	"encoding/binary"
	"fmt"
	"net"
)

// FlowKey identifies a unidirectional flow by its 5-tuple. Source and
// destination are not canonicalized, so A->B and B->A are distinct flows.
type FlowKey struct {
	SrcIP    uint32
	DstIP    uint32
	Protocol uint8
	SrcPort  uint16
	DstPort  uint16
}

// SrcAddr returns the source address as a net.IP.
func (k FlowKey) SrcAddr() net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, k.SrcIP)
	return ip
}

// DstAddr returns the destination address as a net.IP.
func (k FlowKey) DstAddr() net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, k.DstIP)
	return ip
}

func (k FlowKey) String() string {
	return fmt.Sprintf("%s:%d->%s:%d proto=%d",
		k.SrcAddr(), k.SrcPort, k.DstAddr(), k.DstPort, k.Protocol)
}

// FlowStats holds the counters accumulated for one flow within one window.
// Bytes accumulates the inner IP total-length, not the observed wire length,
// so truncated mirror copies still account correctly.
type FlowStats struct {
	Packets uint64
	Bytes   uint64
}

// Add folds another set of counters into this one.
func (s *FlowStats) Add(other FlowStats) {
	s.Packets += other.Packets
	s.Bytes += other.Bytes
}

// Scale multiplies both counters by the given factor. Used to compensate
// deterministic sampling at merge time.
func (s *FlowStats) Scale(factor float64) {
	if factor == 1.0 {
		return
	}
	s.Packets = uint64(float64(s.Packets) * factor)
	s.Bytes = uint64(float64(s.Bytes) * factor)
}

// FlowEntry pairs a flow key with its counters. The unit of data drained
// from a worker's flow table.
type FlowEntry struct {
	Key   FlowKey
	Stats FlowStats
}

// WorkerTotals carries a worker's running counters for one flush window,
// independent of parse or sampling outcome. These feed drop-rate diagnostics.
type WorkerTotals struct {
	PacketsReceived  uint64
	BytesReceived    uint64
	ParseErrors      uint64
	SampledOut       uint64
	FlowsDropped     uint64 // flow table full or probe limit exhausted
	SnapshotsDropped uint64 // coordinator channel full at flush time
}

// Add folds another set of worker totals into this one.
func (t *WorkerTotals) Add(other WorkerTotals) {
	t.PacketsReceived += other.PacketsReceived
	t.BytesReceived += other.BytesReceived
	t.ParseErrors += other.ParseErrors
	t.SampledOut += other.SampledOut
	t.FlowsDropped += other.FlowsDropped
	t.SnapshotsDropped += other.SnapshotsDropped
}

// Snapshot is the immutable result of draining one worker's flow table at
// flush time. Ownership transfers to the coordinator on send.
type Snapshot struct {
	Worker int
	Flows  []FlowEntry
	Totals WorkerTotals
}
