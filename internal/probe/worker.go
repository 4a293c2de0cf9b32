// Package probe implements the capture worker pool: one worker per CPU
// core, each owning its own port-shared UDP socket, batched receive loop,
// and private flow table. Workers share no mutable state; the only output
// is the one-way snapshot channel to the coordinator.
package probe

import (
	"context"
	"errors"
	"log"
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"MirrorScope/internal/config"
	"MirrorScope/internal/model"
	"MirrorScope/internal/probe/flowtable"
	"MirrorScope/internal/probe/wire"
)

// maxDatagramSize covers any mirror copy; VXLAN payloads never exceed the
// outer MTU.
const maxDatagramSize = 2048

// Worker owns one capture socket and one flow table. Run is single-threaded;
// nothing here needs a lock.
type Worker struct {
	id    int
	conn  *net.UDPConn
	pconn *ipv4.PacketConn
	table *flowtable.Table
	out   chan<- model.Snapshot

	batchSize       int
	readTimeout     time.Duration
	flushInterval   time.Duration
	sampleThreshold uint32

	totals       model.WorkerTotals
	pendingDrops uint64 // snapshot sends dropped, reported in the next window
}

// NewWorker binds a port-shared capture socket and prepares the worker.
// A bind failure is fatal to the caller: a worker that cannot bind is
// useless and should exit loudly.
func NewWorker(id int, cfg *config.ProbeConfig, out chan<- model.Snapshot) (*Worker, error) {
	conn, err := listenReusePort(cfg.ListenAddr, cfg.RecvBufferBytes)
	if err != nil {
		return nil, err
	}

	return &Worker{
		id:              id,
		conn:            conn,
		pconn:           ipv4.NewPacketConn(conn),
		table:           flowtable.New(cfg.TableCapacity),
		out:             out,
		batchSize:       cfg.BatchSize,
		readTimeout:     cfg.ReadTimeoutDuration(),
		flushInterval:   cfg.FlushIntervalDuration(),
		sampleThreshold: flowtable.SampleThreshold(cfg.SampleRate),
	}, nil
}

// LocalAddr returns the bound capture address.
func (w *Worker) LocalAddr() net.Addr {
	return w.conn.LocalAddr()
}

// Run drives the batched receive loop until ctx is cancelled. Every
// iteration is time-bounded by the read timeout, which doubles as the
// point where the flush deadline and the stop signal are observed. On
// shutdown the residual table state is flushed so no statistics are lost.
func (w *Worker) Run(ctx context.Context) {
	defer w.conn.Close()
	log.Printf("worker-%d: capture loop started on %s", w.id, w.conn.LocalAddr())

	msgs := make([]ipv4.Message, w.batchSize)
	for i := range msgs {
		msgs[i].Buffers = [][]byte{make([]byte, maxDatagramSize)}
	}

	lastFlush := time.Now()
	for {
		select {
		case <-ctx.Done():
			w.flush()
			log.Printf("worker-%d: exiting", w.id)
			return
		default:
		}

		// Without a deadline ReadBatch blocks unboundedly and the loop
		// loses both its flush cadence and its shutdown point.
		if err := w.conn.SetReadDeadline(time.Now().Add(w.readTimeout)); err != nil {
			if ctx.Err() == nil {
				log.Printf("worker-%d: failed to set read deadline, exiting: %v", w.id, err)
			}
			w.flush()
			return
		}
		n, err := w.pconn.ReadBatch(msgs, 0)
		if err != nil {
			// A timeout is not an error, it is the scheduling point.
			var nerr net.Error
			if !(errors.As(err, &nerr) && nerr.Timeout()) && ctx.Err() == nil {
				log.Printf("worker-%d: receive error: %v", w.id, err)
			}
		} else {
			for i := 0; i < n; i++ {
				w.handlePacket(msgs[i].Buffers[0][:msgs[i].N])
			}
		}

		if time.Since(lastFlush) >= w.flushInterval {
			w.flush()
			lastFlush = time.Now()
		}
	}
}

// handlePacket runs one datagram through parse, sampling, and the flow
// table. Per-packet failures never propagate; they are counted.
func (w *Worker) handlePacket(data []byte) {
	w.totals.PacketsReceived++
	w.totals.BytesReceived += uint64(len(data))

	flow, err := wire.Parse(data)
	if err != nil {
		w.totals.ParseErrors++
		return
	}

	if !flowtable.ShouldSample(flow.Key, w.sampleThreshold) {
		w.totals.SampledOut++
		return
	}

	w.table.Upsert(flow.Key, flow.Length)
}

// flush drains the flow table into a snapshot and hands it to the
// coordinator. A full channel drops the snapshot with a counter bump;
// backpressure must never stall ingestion.
func (w *Worker) flush() {
	flows := w.table.Drain()
	w.table.Reset()

	totals := w.totals
	totals.FlowsDropped = w.table.Dropped()
	totals.SnapshotsDropped = w.pendingDrops
	w.table.ResetDropped()
	w.totals = model.WorkerTotals{}
	w.pendingDrops = 0

	if len(flows) == 0 && totals.PacketsReceived == 0 && totals.SnapshotsDropped == 0 {
		return
	}

	snap := model.Snapshot{Worker: w.id, Flows: flows, Totals: totals}
	select {
	case w.out <- snap:
	default:
		w.pendingDrops++
		log.Printf("worker-%d: snapshot channel full, dropping %d flows", w.id, len(flows))
	}
}
