package model

import "time"

// Identity is the metadata an enrichment provider knows about an address.
// A miss just means the raw address is shown in reports.
type Identity struct {
	IP         string `json:"ip" yaml:"ip"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	InstanceID string `json:"instance_id,omitempty" yaml:"instance_id,omitempty"`
	Owner      string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Group      string `json:"group,omitempty" yaml:"group,omitempty"`
}

// Label returns the most specific human-readable name for the identity.
func (id Identity) Label() string {
	if id.Name != "" {
		return id.Name
	}
	if id.InstanceID != "" {
		return id.InstanceID
	}
	return id.IP
}

// RankedFlow is one Top-N entry in a report.
type RankedFlow struct {
	Key     FlowKey `json:"-"`
	Flow    string  `json:"flow"`
	Packets uint64  `json:"packets"`
	Bytes   uint64  `json:"bytes"`
}

// RankedAddr is one Top-N source or destination entry, optionally annotated
// with enrichment identity.
type RankedAddr struct {
	Addr     string    `json:"addr"`
	Packets  uint64    `json:"packets"`
	Bytes    uint64    `json:"bytes"`
	Identity *Identity `json:"identity,omitempty"`
}

// Report is the structured record emitted once per slow cycle.
type Report struct {
	Timestamp       time.Time    `json:"timestamp"`
	WindowSeconds   float64      `json:"window_seconds"`
	FlowCount       int          `json:"flow_count"`
	TotalPackets    uint64       `json:"total_packets"`
	TotalBytes      uint64       `json:"total_bytes"`
	TopFlows        []RankedFlow `json:"top_flows"`
	TopSources      []RankedAddr `json:"top_sources"`
	TopDestinations []RankedAddr `json:"top_destinations"`
	Diagnostics     WorkerTotals `json:"diagnostics"`
}
