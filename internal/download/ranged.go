package download

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/vectorlink/bulkxfer/internal/constants"
	"github.com/vectorlink/bulkxfer/internal/store"
)

// Cursor marks how much of a ranged stream has been durably delivered, in
// record offsets. End bounds the stream (exclusive); a negative End reads to
// the end of the object. Start only ever advances, one record at a time, as
// records are handed to the consumer.
type Cursor struct {
	Start int64
	End   int64
}

// NewCursor returns an unbounded cursor starting at record start.
func NewCursor(start int64) Cursor {
	return Cursor{Start: start, End: -1}
}

// NewBoundedCursor returns a cursor covering records [start, end).
func NewBoundedCursor(start, end int64) Cursor {
	return Cursor{Start: start, End: end}
}

// RangedReader streams records of a fixed size from an object, byte range
// computed from its cursor. The delivered sequence is identical to reading
// the whole range once: on a mid-stream read failure the reader re-issues a
// fresh ranged read starting at the first not-yet-delivered record, so no
// record is duplicated or skipped. Five consecutive record-level failures
// exhaust the retry budget and surface the last error; the failure counter
// resets on every successful delivery.
//
// Failure to open a read at all (the GetObject call itself) is fatal
// immediately, on the assumption that transport-level retry below the client
// handle has already run its course.
type RangedReader struct {
	getter    store.Getter
	bucket    string
	key       string
	cursor    Cursor
	chunkSize int64
	log       zerolog.Logger

	chunker  *Chunker
	body     io.ReadCloser
	failures int
	done     bool
}

// NewRangedReader creates a reader delivering records of chunkSize bytes from
// bucket/key, starting at cursor.
func NewRangedReader(getter store.Getter, bucket, key string, cursor Cursor, chunkSize int64, log zerolog.Logger) *RangedReader {
	return &RangedReader{
		getter:    getter,
		bucket:    bucket,
		key:       key,
		cursor:    cursor,
		chunkSize: chunkSize,
		log:       log,
	}
}

// Cursor returns the current cursor. Its Start is the offset of the next
// record Next will deliver.
func (r *RangedReader) Cursor() Cursor {
	return r.cursor
}

// Next returns the next record, io.EOF at the end of the range, or the first
// fatal error. After a non-nil error the reader is exhausted.
func (r *RangedReader) Next(ctx context.Context) ([]byte, error) {
	for {
		if r.done {
			return nil, io.EOF
		}

		if r.chunker == nil {
			if err := r.open(ctx); err != nil {
				r.done = true
				return nil, err
			}
			if r.chunker == nil {
				// Bounded cursor with nothing left to read.
				r.done = true
				return nil, io.EOF
			}
		}

		chunk, err := r.chunker.Next()
		if err == io.EOF {
			r.closeBody()
			r.done = true
			return nil, io.EOF
		}
		if err != nil {
			r.closeBody()
			r.chunker = nil
			r.failures++
			if r.failures >= constants.MaxReadFailures {
				r.done = true
				return nil, store.WrapIO(fmt.Sprintf("read record %d of %s/%s after %d consecutive failures", r.cursor.Start, r.bucket, r.key, r.failures), err)
			}
			r.log.Warn().
				Str("bucket", r.bucket).
				Str("key", r.key).
				Int64("record", r.cursor.Start).
				Int("failures", r.failures).
				Err(err).
				Msg("ranged read failed, reopening from cursor")
			continue
		}

		r.failures = 0
		r.cursor.Start++
		return chunk, nil
	}
}

// Close releases the open object body, if any. Safe to call at any point;
// Next must not be called afterwards.
func (r *RangedReader) Close() {
	r.closeBody()
	r.done = true
}

func (r *RangedReader) open(ctx context.Context) error {
	remaining := int64(-1)
	if r.cursor.End >= 0 {
		remaining = r.cursor.End - r.cursor.Start
		if remaining <= 0 {
			return nil
		}
	}

	rng := store.ByteRange{Start: r.cursor.Start * r.chunkSize, End: -1}
	if r.cursor.End >= 0 {
		rng.End = r.cursor.End*r.chunkSize - 1
	}

	obj, err := r.getter.GetObject(ctx, r.bucket, r.key, &rng)
	if err != nil {
		return err
	}

	r.body = obj.Body
	r.chunker = NewChunker(obj.Body, int(r.chunkSize), remaining)
	return nil
}

func (r *RangedReader) closeBody() {
	if r.body != nil {
		r.body.Close()
		r.body = nil
	}
}
