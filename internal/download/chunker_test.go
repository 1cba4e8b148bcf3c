package download

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// dripReader returns data in deliberately irregular read sizes, to model
// network chunks that never line up with record boundaries.
type dripReader struct {
	data  []byte
	pos   int
	sizes []int
	call  int
}

func (r *dripReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.sizes[r.call%len(r.sizes)]
	r.call++
	if n > len(p) {
		n = len(p)
	}
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func patternBytes(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// TestChunkerExactMultiple verifies that an input of exactly N records yields
// N chunks of exactly the record size whose concatenation equals the input.
func TestChunkerExactMultiple(t *testing.T) {
	const chunkSize = 64
	const numChunks = 10
	data := patternBytes(chunkSize * numChunks)

	c := NewChunker(&dripReader{data: data, sizes: []int{7, 100, 1, 33, 250}}, chunkSize, -1)

	var got []byte
	count := 0
	for {
		chunk, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed at chunk %d: %v", count, err)
		}
		if len(chunk) != chunkSize {
			t.Fatalf("chunk %d has %d bytes, want %d", count, len(chunk), chunkSize)
		}
		got = append(got, chunk...)
		count++
	}

	if count != numChunks {
		t.Fatalf("got %d chunks, want %d", count, numChunks)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("concatenated chunks differ from input")
	}
}

// TestChunkerRejectsPartialFinalChunk verifies that a stream whose length is
// not a multiple of the record size fails instead of silently truncating.
func TestChunkerRejectsPartialFinalChunk(t *testing.T) {
	const chunkSize = 64
	data := patternBytes(chunkSize*3 + 17)

	c := NewChunker(bytes.NewReader(data), chunkSize, -1)

	for i := 0; i < 3; i++ {
		if _, err := c.Next(); err != nil {
			t.Fatalf("chunk %d: unexpected error: %v", i, err)
		}
	}

	_, err := c.Next()
	if err == nil || err == io.EOF {
		t.Fatalf("expected alignment failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "stream ended unexpectedly") {
		t.Fatalf("unexpected error message: %v", err)
	}

	// The failure is sticky.
	if _, err2 := c.Next(); err2 != err {
		t.Fatalf("second Next returned %v, want the same terminal error", err2)
	}
}

// TestChunkerMaxChunks verifies that a bounded chunker stops after the
// requested count without touching the rest of the stream.
func TestChunkerMaxChunks(t *testing.T) {
	const chunkSize = 32
	data := patternBytes(chunkSize * 8)

	c := NewChunker(bytes.NewReader(data), chunkSize, 3)

	for i := 0; i < 3; i++ {
		chunk, err := c.Next()
		if err != nil {
			t.Fatalf("chunk %d: unexpected error: %v", i, err)
		}
		if !bytes.Equal(chunk, data[i*chunkSize:(i+1)*chunkSize]) {
			t.Fatalf("chunk %d content mismatch", i)
		}
	}

	if _, err := c.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after bounded count, got %v", err)
	}
}

// TestChunkerYieldsReadErrorAsTerminalValue verifies that an underlying read
// error surfaces as the terminal value of Next, after all complete records
// preceding it were delivered.
func TestChunkerYieldsReadErrorAsTerminalValue(t *testing.T) {
	const chunkSize = 16
	data := patternBytes(chunkSize * 4)
	readErr := errors.New("connection reset")

	r := io.MultiReader(bytes.NewReader(data), &failingReader{err: readErr})
	c := NewChunker(r, chunkSize, -1)

	for i := 0; i < 4; i++ {
		if _, err := c.Next(); err != nil {
			t.Fatalf("chunk %d: unexpected error: %v", i, err)
		}
	}

	if _, err := c.Next(); !errors.Is(err, readErr) {
		t.Fatalf("expected the read error, got %v", err)
	}
}

// TestChunkerEmptyStream verifies an empty stream yields io.EOF directly.
func TestChunkerEmptyStream(t *testing.T) {
	c := NewChunker(bytes.NewReader(nil), 8, -1)
	if _, err := c.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }
