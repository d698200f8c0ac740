package dedupe

// Option applies a configuration option to the deduper.
type Option func(*batchDeduper)

// WithMaxSize sets the maximum number of batches to remember.
// If maxSize <= 0 nothing is ever evicted.
func WithMaxSize(maxSize int) Option {
	return func(d *batchDeduper) {
		d.maxSize = maxSize
	}
}
