package probe

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"

	"MirrorScope/internal/config"
	"MirrorScope/internal/model"
)

// Pool runs N independent capture workers bound to the same port. There is
// no synchronization between workers; the kernel's flow-affine distribution
// is the only cross-worker interaction on the ingest side.
type Pool struct {
	workers []*Worker
	out     chan model.Snapshot

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool binds one port-shared socket per worker. Worker count 0 means one
// per CPU core. Any bind failure tears down the sockets already opened and
// is returned to the caller as fatal.
func NewPool(cfg *config.ProbeConfig) (*Pool, error) {
	n := cfg.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}

	p := &Pool{
		out: make(chan model.Snapshot, cfg.SnapshotChannelDepth),
	}

	for i := 0; i < n; i++ {
		w, err := NewWorker(i, cfg, p.out)
		if err != nil {
			for _, opened := range p.workers {
				opened.conn.Close()
			}
			return nil, fmt.Errorf("failed to start worker %d: %w", i, err)
		}
		p.workers = append(p.workers, w)
	}

	log.Printf("capture pool: %d workers bound to %s (sample_rate=%.4f, table_capacity=%d)",
		n, cfg.ListenAddr, cfg.SampleRate, cfg.TableCapacity)
	return p, nil
}

// Snapshots returns the one-way channel carrying worker snapshots.
func (p *Pool) Snapshots() <-chan model.Snapshot {
	return p.out
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches every worker loop.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Stop signals every worker, waits for their final flush, then closes the
// snapshot channel so the coordinator can drain what remains.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	close(p.out)
	log.Println("capture pool stopped")
}
