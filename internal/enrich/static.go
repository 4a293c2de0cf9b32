package enrich

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"MirrorScope/internal/model"
)

// StaticCache serves identities from a YAML map file, reloaded on a fixed
// interval by an external process that keeps it current. A failed reload
// keeps the stale cache; stale identity beats no identity.
type StaticCache struct {
	path     string
	interval time.Duration

	mu       sync.RWMutex
	cache    map[string]model.Identity
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewStaticCache loads the identity map once and returns the cache. The
// initial load must succeed; later reload failures are logged and ignored.
func NewStaticCache(path string, interval time.Duration) (*StaticCache, error) {
	s := &StaticCache{
		path:     path,
		interval: interval,
		stopChan: make(chan struct{}),
	}
	cache, err := s.load()
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

// Start begins the periodic reload loop.
func (s *StaticCache) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.refresh()
			case <-s.stopChan:
				return
			}
		}
	}()
	log.Printf("enrichment: static cache started (%d identities from %s, refresh %s)",
		len(s.cache), s.path, s.interval)
}

// Stop terminates the reload loop.
func (s *StaticCache) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// Lookup implements Cache.
func (s *StaticCache) Lookup(addr string) (model.Identity, bool) {
	s.mu.RLock()
	id, ok := s.cache[addr]
	s.mu.RUnlock()
	return id, ok
}

// Len returns the number of cached identities.
func (s *StaticCache) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func (s *StaticCache) refresh() {
	cache, err := s.load()
	if err != nil {
		log.Printf("enrichment: reload failed, keeping stale cache: %v", err)
		return
	}
	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()
	log.Printf("enrichment: reloaded %d identities", len(cache))
}

func (s *StaticCache) load() (map[string]model.Identity, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity map: %w", err)
	}

	var raw map[string]model.Identity
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity map: %w", err)
	}

	cache := make(map[string]model.Identity, len(raw))
	for ip, id := range raw {
		id.IP = ip
		cache[ip] = id
	}
	return cache, nil
}
