// Package enrich provides the read-only identity cache consulted when
// formatting reports and alerts. Lookups never block: a miss means the raw
// address is shown, and provider refreshes happen on their own schedule.
package enrich

import "MirrorScope/internal/model"

// Cache maps an address to identity metadata.
type Cache interface {
	// Lookup returns the identity for an address. Non-blocking; ok is
	// false on a miss.
	Lookup(addr string) (model.Identity, bool)
}

// Nop is a Cache that always misses.
type Nop struct{}

// Lookup implements Cache.
func (Nop) Lookup(addr string) (model.Identity, bool) {
	return model.Identity{}, false
}
