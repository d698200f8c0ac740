package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/jury/internal/domain/dedupe"
)

// apply begins and commits a batch, returning the status seen at Begin.
func apply(d dedupe.Deduper, judgeID, batchID string) dedupe.Status {
	ctx := context.Background()
	st := d.Begin(ctx, judgeID, batchID)
	if st == dedupe.StatusNew {
		d.Commit(ctx, judgeID, batchID)
	}
	return st
}

func TestBatchDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new batch deduper", t, func() {
		d := dedupe.NewBatchDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a judge begins a batch for the first time", func() {
			st := d.Begin(ctx, "judge-1", "batch-1")

			Convey("Then it is new and recorded as pending", func() {
				So(st, ShouldEqual, dedupe.StatusNew)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a retry before it finishes sees it pending", func() {
				So(d.Begin(ctx, "judge-1", "batch-1"), ShouldEqual, dedupe.StatusPending)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a retry after commit sees it done", func() {
				d.Commit(ctx, "judge-1", "batch-1")
				So(d.Begin(ctx, "judge-1", "batch-1"), ShouldEqual, dedupe.StatusDone)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And another judge may reuse the batch ID", func() {
				So(d.Begin(ctx, "judge-2", "batch-1"), ShouldEqual, dedupe.StatusNew)
				So(d.Size(), ShouldEqual, 2)
			})
		})

		Convey("When a failed batch is unrecorded", func() {
			d.Begin(ctx, "judge-1", "batch-1")
			d.Unrecord(ctx, "judge-1", "batch-1")

			Convey("Then the judge can submit it again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.Begin(ctx, "judge-1", "batch-1"), ShouldEqual, dedupe.StatusNew)
			})
		})

		Convey("When an unknown batch is committed or unrecorded", func() {
			d.Commit(ctx, "judge-1", "nonexistent")
			d.Unrecord(ctx, "judge-1", "nonexistent")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.Begin(ctx, "judge-1", "nonexistent"), ShouldEqual, dedupe.StatusNew)
			})
		})
	})

	Convey("Given a bounded deduper at capacity", t, func() {
		d := dedupe.NewBatchDeduper(dedupe.WithMaxSize(3))
		for _, b := range []string{"b1", "b2", "b3"} {
			So(apply(d, "judge-1", b), ShouldEqual, dedupe.StatusNew)
		}

		Convey("When one more batch arrives", func() {
			So(apply(d, "judge-1", "b4"), ShouldEqual, dedupe.StatusNew)

			Convey("Then the oldest batch is forgotten", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.Begin(ctx, "judge-1", "b4"), ShouldEqual, dedupe.StatusDone)
				So(d.Begin(ctx, "judge-1", "b3"), ShouldEqual, dedupe.StatusDone)
				So(apply(d, "judge-1", "b1"), ShouldEqual, dedupe.StatusNew)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When a middle batch is unrecorded before eviction", func() {
			d.Unrecord(ctx, "judge-1", "b2")
			So(apply(d, "judge-1", "b4"), ShouldEqual, dedupe.StatusNew)

			Convey("Then no eviction was needed", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.Begin(ctx, "judge-1", "b1"), ShouldEqual, dedupe.StatusDone)
			})
		})
	})

	Convey("Given a bounded deduper whose oldest batch is still pending", t, func() {
		d := dedupe.NewBatchDeduper(dedupe.WithMaxSize(2))
		So(d.Begin(ctx, "judge-1", "slow"), ShouldEqual, dedupe.StatusNew)
		So(apply(d, "judge-1", "b1"), ShouldEqual, dedupe.StatusNew)

		Convey("When the deduper must evict", func() {
			So(apply(d, "judge-1", "b2"), ShouldEqual, dedupe.StatusNew)

			Convey("Then the oldest applied batch goes and the pending one stays", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.Begin(ctx, "judge-1", "slow"), ShouldEqual, dedupe.StatusPending)
				So(d.Begin(ctx, "judge-1", "b2"), ShouldEqual, dedupe.StatusDone)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewBatchDeduper(dedupe.WithMaxSize(0))
		const numBatches = 1000
		for i := 0; i < numBatches; i++ {
			So(apply(d, "judge-1", fmt.Sprintf("batch-%d", i)), ShouldEqual, dedupe.StatusNew)
		}

		Convey("Then every batch is remembered", func() {
			So(d.Size(), ShouldEqual, int64(numBatches))
			So(d.Begin(ctx, "judge-1", "batch-0"), ShouldEqual, dedupe.StatusDone)
		})
	})
}

func TestBatchDeduperConcurrency(t *testing.T) {
	Convey("Given many goroutines submitting the same batches", t, func() {
		d := dedupe.NewBatchDeduper(dedupe.WithMaxSize(1000))
		const numGoroutines = 10
		const batches = 100

		var wg sync.WaitGroup
		var fresh atomic.Int64
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < batches; j++ {
					if apply(d, "judge-1", fmt.Sprintf("batch-%d", j)) == dedupe.StatusNew {
						fresh.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each batch is new exactly once", func() {
			So(fresh.Load(), ShouldEqual, batches)
			So(d.Size(), ShouldEqual, batches)
		})
	})
}
