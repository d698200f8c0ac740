// Package dedupe remembers which comparison batches a judge already
// submitted so that client retries are applied at most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// DefaultMaxSize bounds the number of remembered batches.
const DefaultMaxSize = 50000

// Status is the state of a batch when it is begun.
type Status int

const (
	// StatusNew means the batch was unknown and is now pending.
	StatusNew Status = iota
	// StatusPending means another attempt of the batch has not finished yet.
	StatusPending
	// StatusDone means the batch was applied.
	StatusDone
)

// Deduper tracks batch IDs per judge through pending and done states.
type Deduper interface {
	// Begin atomically checks the batch and marks it pending when unknown.
	Begin(ctx context.Context, judgeID, batchID string) Status

	// Commit marks a pending batch as applied.
	Commit(ctx context.Context, judgeID, batchID string)

	// Unrecord forgets a batch whose application failed so that the judge
	// can retry it.
	Unrecord(ctx context.Context, judgeID, batchID string)

	Size() int64
}

type key struct {
	judgeID string
	batchID string
}

type entry struct {
	key  key
	done bool
}

// batchDeduper keeps batch keys in insertion order and evicts the oldest
// applied batch when full. Pending batches are never evicted. maxSize <= 0
// disables eviction.
type batchDeduper struct {
	mu      sync.Mutex
	seen    map[key]*list.Element
	order   *list.List // front is the oldest
	maxSize int
	size    atomic.Int64
}

// NewBatchDeduper creates an in-memory deduper.
func NewBatchDeduper(opts ...Option) Deduper {
	d := &batchDeduper{
		maxSize: DefaultMaxSize,
		seen:    make(map[key]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *batchDeduper) Begin(_ context.Context, judgeID, batchID string) Status {
	k := key{judgeID: judgeID, batchID: batchID}
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[k]; ok {
		if el.Value.(*entry).done {
			return StatusDone
		}
		return StatusPending
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[k] = d.order.PushBack(&entry{key: k})
	d.size.Add(1)
	return StatusNew
}

func (d *batchDeduper) Commit(_ context.Context, judgeID, batchID string) {
	k := key{judgeID: judgeID, batchID: batchID}
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[k]; ok {
		el.Value.(*entry).done = true
	}
}

func (d *batchDeduper) Unrecord(_ context.Context, judgeID, batchID string) {
	k := key{judgeID: judgeID, batchID: batchID}
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[k]; ok {
		d.order.Remove(el)
		delete(d.seen, k)
		d.size.Add(-1)
	}
}

// evictOldest drops the oldest applied batch. It must be called with d.mu
// held.
func (d *batchDeduper) evictOldest() {
	for el := d.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !e.done {
			continue
		}
		d.order.Remove(el)
		delete(d.seen, e.key)
		d.size.Add(-1)
		return
	}
}

func (d *batchDeduper) Size() int64 {
	return d.size.Load()
}
