package enrich

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"

	"MirrorScope/internal/model"
)

// geoRecord matches the city-lite MMDB record layout.
type geoRecord struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		Names   map[string]string `maxminddb:"names"`
		ISOCode string            `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// GeoIPCache resolves public addresses to a "City, CC" label from an MMDB
// database. Useful when mirrored traffic crosses the egress boundary and no
// instance identity exists for the remote side.
type GeoIPCache struct {
	mu sync.RWMutex
	db *maxminddb.Reader
}

// NewGeoIPCache opens the MMDB database at path.
func NewGeoIPCache(path string) (*GeoIPCache, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &GeoIPCache{db: db}, nil
}

// Close releases the database.
func (g *GeoIPCache) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.db.Close()
}

// Lookup implements Cache.
func (g *GeoIPCache) Lookup(addr string) (model.Identity, bool) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return model.Identity{}, false
	}

	var rec geoRecord
	g.mu.RLock()
	err := g.db.Lookup(ip, &rec)
	g.mu.RUnlock()
	if err != nil {
		return model.Identity{}, false
	}

	city := rec.City.Names["en"]
	country := rec.Country.ISOCode
	if city == "" && country == "" {
		return model.Identity{}, false
	}

	name := city
	if name == "" {
		name = rec.Country.Names["en"]
	} else if country != "" {
		name = fmt.Sprintf("%s, %s", city, country)
	}

	return model.Identity{IP: addr, Name: name}, true
}
