// Package constants defines shared tunables for upload and download paths.
package constants

// Storage operation sizes
const (
	// DefaultPartSize - default size of each multipart upload part (512 MB).
	// A part is only uploaded once this many bytes have been buffered, except
	// for the final part flushed at completion.
	DefaultPartSize = 512 * 1024 * 1024

	// MinPartSize - AWS S3 minimum part size (5 MB, except last part)
	MinPartSize = 5 * 1024 * 1024

	// MaxPartSize - AWS S3 maximum part size (5 GB)
	MaxPartSize = 5 * 1024 * 1024 * 1024

	// DefaultChunkSize - default record size for streaming downloads (1 MB).
	// Callers moving typed vectors set this to a multiple of the element size.
	DefaultChunkSize = 1 * 1024 * 1024
)

// Download retry and pipelining
const (
	// MaxReadFailures - consecutive record-level read failures tolerated by a
	// ranged download before it gives up. The counter resets on every
	// successfully delivered record, so intermittent failures do not accumulate.
	MaxReadFailures = 5

	// PrefetchDepth - number of records a prefetching download buffers ahead of
	// the consumer. Enough to hide one round-trip of latency; deliberately not
	// a large window, since each slot holds a full record in memory.
	PrefetchDepth = 4
)
