// Package download implements the streaming download engine: re-segmentation
// of a byte stream into fixed-size records, resume-on-failure ranged reads,
// background prefetching, and decoding of whole objects into typed slices.
package download

import (
	"fmt"
	"io"
)

// readBufferSize is the size of the scratch buffer used to pull from the
// underlying stream. Network reads arrive in arbitrary granularity; this only
// bounds the per-Read copy, not the record size.
const readBufferSize = 64 * 1024

// Chunker re-segments an arbitrary-granularity byte stream into records of
// exactly chunkSize bytes, in input order.
//
// Records are produced lazily by Next. A read error from the underlying stream
// is returned as the terminal value of Next rather than raised eagerly, so
// callers observe exactly which record failed. A stream that ends with a
// nonempty partial record is a protocol violation: every valid input is an
// exact multiple of the record size.
type Chunker struct {
	r         io.Reader
	chunkSize int
	remaining int64 // chunks still to produce; < 0 means unbounded
	buf       []byte
	scratch   []byte
	eof       bool
	err       error
}

// NewChunker wraps r. maxChunks bounds how many records are produced;
// a negative maxChunks reads until the stream ends.
func NewChunker(r io.Reader, chunkSize int, maxChunks int64) *Chunker {
	return &Chunker{
		r:         r,
		chunkSize: chunkSize,
		remaining: maxChunks,
		scratch:   make([]byte, readBufferSize),
	}
}

// Next returns the next record. It returns io.EOF after the last record, and
// any other error exactly once, after which the Chunker is exhausted.
func (c *Chunker) Next() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.remaining == 0 {
		c.err = io.EOF
		return nil, c.err
	}

	for len(c.buf) < c.chunkSize {
		if c.eof {
			if len(c.buf) == 0 {
				c.err = io.EOF
			} else {
				c.err = fmt.Errorf("stream ended unexpectedly with %d leftover bytes (record size %d)", len(c.buf), c.chunkSize)
			}
			return nil, c.err
		}
		n, err := c.r.Read(c.scratch)
		if n > 0 {
			c.buf = append(c.buf, c.scratch[:n]...)
		}
		if err == io.EOF {
			c.eof = true
			continue
		}
		if err != nil {
			c.err = err
			return nil, c.err
		}
	}

	chunk := make([]byte, c.chunkSize)
	copy(chunk, c.buf)
	c.buf = c.buf[:copy(c.buf, c.buf[c.chunkSize:])]
	if c.remaining > 0 {
		c.remaining--
	}
	return chunk, nil
}
