package download

import (
	"context"
	"fmt"
	"io"
	"unsafe"

	"github.com/vectorlink/bulkxfer/internal/store"
)

// Slice downloads the whole object at bucket/key and reinterprets its bytes as
// a []T without an intermediate per-chunk reallocation: network chunks are
// copied straight into one preallocated buffer at their byte offset.
//
// The declared object length must be an exact multiple of T's size; a
// remainder is an alignment violation, not a truncation to tolerate. A missing
// key is the explicit absent result (nil, false, nil), distinct from both
// success and failure.
//
// T must be a fixed-size value type with no pointers (float32, uint64, a flat
// struct of such fields): the returned slice aliases the raw downloaded bytes.
func Slice[T any](ctx context.Context, getter store.Getter, bucket, key string) ([]T, bool, error) {
	obj, err := getter.GetObject(ctx, bucket, key, nil)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer obj.Body.Close()

	elemSize := int64(unsafe.Sizeof(*new(T)))
	size := obj.ContentLength
	if size < 0 {
		return nil, false, store.WrapIO("decode "+bucket+"/"+key, fmt.Errorf("store did not declare a content length"))
	}
	if size%elemSize != 0 {
		return nil, false, store.WrapIO("decode "+bucket+"/"+key, fmt.Errorf("object size %d is not a multiple of element size %d", size, elemSize))
	}

	buf := make([]byte, size)
	var offset int64
	scratch := make([]byte, readBufferSize)
	for {
		n, err := obj.Body.Read(scratch)
		if n > 0 {
			if offset+int64(n) > size {
				return nil, false, store.WrapIO("decode "+bucket+"/"+key, fmt.Errorf("stream overflows declared length %d at offset %d", size, offset))
			}
			copy(buf[offset:], scratch[:n])
			offset += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, store.WrapIO("decode "+bucket+"/"+key, err)
		}
	}
	if offset != size {
		return nil, false, store.WrapIO("decode "+bucket+"/"+key, fmt.Errorf("stream ended at %d bytes, declared length %d", offset, size))
	}

	n := size / elemSize
	if n == 0 {
		return []T{}, true, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), n), true, nil
}
