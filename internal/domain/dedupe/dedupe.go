// Package dedupe tracks idempotency keys of export requests.
package dedupe

import (
	"context"
	"sync"
	"time"
)

// Deduper records seen keys so a request is acted on at most once.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records it if not.
	// Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so a request that could not be accepted
	// (e.g. queue backpressure) can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key string
	seq uint64
	at  time.Time
}

// ringDeduper keeps live keys in a map and their insertion order in a fixed
// ring. When the ring is full the oldest slot is reused; slots whose key was
// unrecorded or re-recorded since are skipped by sequence number.
type ringDeduper struct {
	mu    sync.Mutex
	live  map[string]entry
	ring  []entry // nil when unbounded
	head  int
	count int
	seq   uint64

	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDeduper creates an in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &ringDeduper{
		maxSize: 10000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.live = make(map[string]entry)
	if d.maxSize > 0 {
		d.ring = make([]entry, d.maxSize)
	}
	return d
}

func (d *ringDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if e, ok := d.live[key]; ok {
		if d.ttl <= 0 || now.Sub(e.at) < d.ttl {
			return true
		}
		delete(d.live, key)
	}

	d.seq++
	e := entry{key: key, seq: d.seq, at: now}
	if d.ring != nil {
		if d.count == len(d.ring) {
			d.evictOldest()
		}
		d.ring[(d.head+d.count)%len(d.ring)] = e
		d.count++
	}
	d.live[key] = e
	return false
}

// evictOldest drops the oldest ring slot. Caller holds d.mu.
func (d *ringDeduper) evictOldest() {
	old := d.ring[d.head]
	if cur, ok := d.live[old.key]; ok && cur.seq == old.seq {
		delete(d.live, old.key)
	}
	d.ring[d.head] = entry{}
	d.head = (d.head + 1) % len(d.ring)
	d.count--
}

func (d *ringDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	delete(d.live, key)
	d.mu.Unlock()
}

// Size returns the number of live keys.
func (d *ringDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.live))
}
