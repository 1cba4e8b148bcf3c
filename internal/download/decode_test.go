package download

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"unsafe"

	"github.com/vectorlink/bulkxfer/internal/store"
	"github.com/vectorlink/bulkxfer/internal/store/storetest"
)

func float32Bytes(vals []float32) []byte {
	if len(vals) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*4)
}

// TestSliceRoundTrip verifies raw object bytes decode into the typed values
// they were written from.
func TestSliceRoundTrip(t *testing.T) {
	vals := make([]float32, 1000)
	for i := range vals {
		vals[i] = float32(i) * 0.5
	}

	fake := storetest.New()
	fake.Put("vectors", "embeddings", float32Bytes(vals))

	got, found, err := Slice[float32](context.Background(), fake, "vectors", "embeddings")
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if !found {
		t.Fatalf("expected the object to be found")
	}
	if len(got) != len(vals) {
		t.Fatalf("decoded %d elements, want %d", len(got), len(vals))
	}
	for i := range vals {
		if got[i] != vals[i] {
			t.Fatalf("element %d: got %v, want %v", i, got[i], vals[i])
		}
	}
}

// TestSliceMisalignedLengthIsFatal verifies a length that is not a multiple of
// the element size fails rather than truncating.
func TestSliceMisalignedLengthIsFatal(t *testing.T) {
	fake := storetest.New()
	fake.Put("vectors", "embeddings", make([]byte, 10))

	_, _, err := Slice[float32](context.Background(), fake, "vectors", "embeddings")
	if err == nil {
		t.Fatalf("expected an alignment error")
	}
	var taskErr *store.TaskError
	if !errors.As(err, &taskErr) || taskErr.Kind != store.KindIO {
		t.Fatalf("expected an IO task error, got %v", err)
	}
}

// TestSliceAbsentKey verifies a missing key is the explicit absent result,
// not an error.
func TestSliceAbsentKey(t *testing.T) {
	fake := storetest.New()

	got, found, err := Slice[float32](context.Background(), fake, "vectors", "missing")
	if err != nil {
		t.Fatalf("expected no error for a missing key, got %v", err)
	}
	if found || got != nil {
		t.Fatalf("expected the absent result, got found=%v len=%d", found, len(got))
	}
}

// TestSliceEmptyObject verifies a zero-length object decodes to an empty,
// present slice.
func TestSliceEmptyObject(t *testing.T) {
	fake := storetest.New()
	fake.Put("vectors", "embeddings", nil)

	got, found, err := Slice[float32](context.Background(), fake, "vectors", "embeddings")
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if !found {
		t.Fatalf("expected the empty object to be found")
	}
	if len(got) != 0 {
		t.Fatalf("expected an empty slice, got %d elements", len(got))
	}
}

// lyingGetter declares a shorter content length than it streams, modeling a
// store/protocol mismatch.
type lyingGetter struct {
	body    []byte
	declare int64
}

func (g *lyingGetter) GetObject(context.Context, string, string, *store.ByteRange) (*store.Object, error) {
	return &store.Object{
		Body:          io.NopCloser(bytes.NewReader(g.body)),
		ContentLength: g.declare,
	}, nil
}

// TestSliceOverflowIsFatal verifies a stream longer than the declared length
// fails instead of writing past the buffer.
func TestSliceOverflowIsFatal(t *testing.T) {
	g := &lyingGetter{body: make([]byte, 16), declare: 8}

	_, _, err := Slice[float32](context.Background(), g, "vectors", "embeddings")
	if err == nil {
		t.Fatalf("expected an overflow error")
	}
	var taskErr *store.TaskError
	if !errors.As(err, &taskErr) || taskErr.Kind != store.KindIO {
		t.Fatalf("expected an IO task error, got %v", err)
	}
}
