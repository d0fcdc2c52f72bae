// Package dedupe tracks completion event ids so each one is processed at most once.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 50_000

// Deduper records seen event ids.
type Deduper interface {
	// SeenAndRecord atomically reports whether id was seen before and records it if not.
	SeenAndRecord(ctx context.Context, id string) (bool, error)

	// Unrecord forgets id so a rejected event can be retried.
	Unrecord(ctx context.Context, id string) error

	Size() int64
}

// memoryDeduper keeps the most recent maxSize ids in a ring; the oldest id
// is forgotten first. maxSize <= 0 keeps every id.
type memoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]int
	ring    []string
	next    int
	maxSize int
}

// NewMemoryDeduper returns a process-local Deduper.
func NewMemoryDeduper(opts ...Option) Deduper {
	cfg := options{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &memoryDeduper{
		seen:    make(map[string]int),
		maxSize: cfg.maxSize,
	}
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
	}
	return d
}

func (d *memoryDeduper) SeenAndRecord(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true, nil
	}

	if d.maxSize <= 0 {
		d.seen[id] = -1
		return false, nil
	}

	// Slot is either empty or holds the oldest id.
	if old := d.ring[d.next]; old != "" {
		delete(d.seen, old)
	}
	d.ring[d.next] = id
	d.seen[id] = d.next
	d.next = (d.next + 1) % d.maxSize
	return false, nil
}

func (d *memoryDeduper) Unrecord(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.seen[id]
	if !ok {
		return nil
	}
	delete(d.seen, id)
	if slot >= 0 {
		d.ring[slot] = ""
	}
	return nil
}

func (d *memoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
