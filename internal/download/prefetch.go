package download

import (
	"context"
	"io"
	"sync"

	"github.com/vectorlink/bulkxfer/internal/constants"
)

type prefetchResult struct {
	chunk []byte
	err   error
}

// Prefetcher runs a RangedReader on a background goroutine and hands its
// records to the consumer through a bounded queue, so the network and chunking
// work overlaps with whatever the consumer does per record. The queue depth is
// fixed (constants.PrefetchDepth): enough lookahead to hide a round-trip, not
// an unbounded buffer.
//
// The producer pushes every outcome, terminal error and end-of-stream
// included, then exits. An abandoned consumer must call Close so the producer
// observes that its output is no longer wanted instead of blocking forever.
type Prefetcher struct {
	results chan prefetchResult
	done    chan struct{}
	once    sync.Once
}

// NewPrefetcher starts prefetching from r. The caller must consume until Next
// returns an error, or call Close.
func NewPrefetcher(ctx context.Context, r *RangedReader) *Prefetcher {
	p := &Prefetcher{
		results: make(chan prefetchResult, constants.PrefetchDepth),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(p.results)
		defer r.Close()
		for {
			chunk, err := r.Next(ctx)
			select {
			case p.results <- prefetchResult{chunk: chunk, err: err}:
				if err != nil {
					return
				}
			case <-p.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return p
}

// Next returns the next record. The stream's terminal value (io.EOF or the
// first fatal error) is yielded exactly once; every call after that returns
// io.EOF.
func (p *Prefetcher) Next() ([]byte, error) {
	res, ok := <-p.results
	if !ok {
		return nil, io.EOF
	}
	return res.chunk, res.err
}

// Close stops the producer. Idempotent.
func (p *Prefetcher) Close() {
	p.once.Do(func() { close(p.done) })
}
