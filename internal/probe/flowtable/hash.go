package flowtable

import "MirrorScope/internal/model"

// FNV-1a constants.
const (
	fnvOffset32 = 2166136261
	fnvPrime32  = 16777619
)

// HashKey computes a 32-bit FNV-1a hash over the 13 key bytes in
// src, dst, protocol, sport, dport order. Identical across workers, which
// also makes the sampling decision identical for a given flow.
func HashKey(k model.FlowKey) uint32 {
	h := uint32(fnvOffset32)

	h = (h ^ (k.SrcIP >> 24)) * fnvPrime32
	h = (h ^ (k.SrcIP >> 16 & 0xff)) * fnvPrime32
	h = (h ^ (k.SrcIP >> 8 & 0xff)) * fnvPrime32
	h = (h ^ (k.SrcIP & 0xff)) * fnvPrime32

	h = (h ^ (k.DstIP >> 24)) * fnvPrime32
	h = (h ^ (k.DstIP >> 16 & 0xff)) * fnvPrime32
	h = (h ^ (k.DstIP >> 8 & 0xff)) * fnvPrime32
	h = (h ^ (k.DstIP & 0xff)) * fnvPrime32

	h = (h ^ uint32(k.Protocol)) * fnvPrime32

	h = (h ^ uint32(k.SrcPort>>8)) * fnvPrime32
	h = (h ^ uint32(k.SrcPort&0xff)) * fnvPrime32

	h = (h ^ uint32(k.DstPort>>8)) * fnvPrime32
	h = (h ^ uint32(k.DstPort&0xff)) * fnvPrime32

	return h
}
