// Package pcap replays captured mirror traffic through the live parse and
// aggregation path. Useful for offline analysis of a capture taken at the
// mirror target and for exercising the pipeline without a mirror session.
package pcap

import (
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"MirrorScope/internal/model"
	"MirrorScope/internal/probe/flowtable"
	"MirrorScope/internal/probe/wire"
)

// ReplayStats summarizes one replay run.
type ReplayStats struct {
	PacketsRead  uint64
	Parsed       uint64
	ParseErrors  uint64
	SkippedOuter uint64 // records that were not UDP datagrams
}

// Replayer feeds the VXLAN payloads of a pcap file into a flow table.
type Replayer struct {
	path string
}

// NewReplayer creates a Replayer for the given capture file.
func NewReplayer(path string) *Replayer {
	return &Replayer{path: path}
}

// Replay reads the capture and upserts every parseable VXLAN payload into
// table. The capture is expected to contain the outer UDP datagrams as seen
// at the mirror target; non-UDP records are skipped and counted.
func (r *Replayer) Replay(table *flowtable.Table) (ReplayStats, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return ReplayStats{}, fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return ReplayStats{}, fmt.Errorf("failed to read pcap header: %w", err)
	}

	var stats ReplayStats
	for {
		data, _, err := reader.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read packet record: %w", err)
		}
		stats.PacketsRead++

		payload, ok := udpPayload(data)
		if !ok {
			stats.SkippedOuter++
			continue
		}

		parsed, err := wire.Parse(payload)
		if err != nil {
			stats.ParseErrors++
			continue
		}
		table.Upsert(parsed.Key, parsed.Length)
		stats.Parsed++
	}
	return stats, nil
}

// Summarize replays the capture into a fresh table and returns the drained
// entries alongside the run stats.
func (r *Replayer) Summarize(capacity int) ([]model.FlowEntry, ReplayStats, error) {
	table := flowtable.New(capacity)
	stats, err := r.Replay(table)
	if err != nil {
		return nil, stats, err
	}
	return table.Drain(), stats, nil
}

// udpPayload strips the outer Ethernet/IPv4/UDP headers and returns the
// encapsulated datagram payload.
func udpPayload(data []byte) ([]byte, bool) {
	packet := gopacket.NewPacket(data, layers.LinkTypeEthernet, gopacket.NoCopy)
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, false
	}
	udp := udpLayer.(*layers.UDP)
	if len(udp.Payload) == 0 {
		return nil, false
	}
	return udp.Payload, true
}
