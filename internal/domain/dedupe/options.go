package dedupe

import "time"

// Option applies a configuration option to the in-memory deduper.
type Option func(*ringDeduper)

// WithMaxSize bounds the number of remembered keys. Values <= 0 make the
// deduper unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *ringDeduper) {
		d.maxSize = maxSize
	}
}

// WithTTL forgets keys older than ttl. Zero keeps keys until evicted.
func WithTTL(ttl time.Duration) Option {
	return func(d *ringDeduper) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *ringDeduper) {
		if now != nil {
			d.now = now
		}
	}
}
