package model

import "sort"

// TopFlows returns the n highest flows by byte count.
func TopFlows(entries []FlowEntry, n int) []RankedFlow {
	sorted := make([]FlowEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Stats.Bytes > sorted[j].Stats.Bytes
	})
	if n > len(sorted) {
		n = len(sorted)
	}

	out := make([]RankedFlow, 0, n)
	for _, e := range sorted[:n] {
		out = append(out, RankedFlow{
			Key:     e.Key,
			Flow:    e.Key.String(),
			Packets: e.Stats.Packets,
			Bytes:   e.Stats.Bytes,
		})
	}
	return out
}

// topAddrs aggregates entries by one side of the flow and ranks by bytes.
func topAddrs(entries []FlowEntry, n int, bySrc bool) []RankedAddr {
	agg := make(map[uint32]FlowStats)
	for _, e := range entries {
		addr := e.Key.DstIP
		if bySrc {
			addr = e.Key.SrcIP
		}
		s := agg[addr]
		s.Add(e.Stats)
		agg[addr] = s
	}

	keys := make([]uint32, 0, len(agg))
	for a := range agg {
		keys = append(keys, a)
	}
	sort.Slice(keys, func(i, j int) bool {
		return agg[keys[i]].Bytes > agg[keys[j]].Bytes
	})
	if n > len(keys) {
		n = len(keys)
	}

	out := make([]RankedAddr, 0, n)
	for _, a := range keys[:n] {
		k := FlowKey{SrcIP: a}
		out = append(out, RankedAddr{
			Addr:    k.SrcAddr().String(),
			Packets: agg[a].Packets,
			Bytes:   agg[a].Bytes,
		})
	}
	return out
}

// TopSources returns the n highest source addresses by byte count.
func TopSources(entries []FlowEntry, n int) []RankedAddr {
	return topAddrs(entries, n, true)
}

// TopDestinations returns the n highest destination addresses by byte count.
func TopDestinations(entries []FlowEntry, n int) []RankedAddr {
	return topAddrs(entries, n, false)
}
