// Package storetest provides an in-memory store.API implementation for tests.
package storetest

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vectorlink/bulkxfer/internal/store"
)

type multipartUpload struct {
	bucket, key string
	parts       map[int32][]byte
	etags       map[int32]string
}

// Fake is an in-memory object store. All hooks are optional; the zero-value
// hooks give fully well-behaved store semantics.
type Fake struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads map[string]*multipartUpload
	nextID  int

	// WrapGetBody, when set, wraps the body of each GetObject response.
	// call counts GetObject invocations from zero; body is the ranged slice.
	// Tests use this to inject mid-stream read failures.
	WrapGetBody func(call int, body []byte) io.ReadCloser

	// UploadPartErr, when set, can fail individual part uploads.
	UploadPartErr func(partNumber int32) error

	// CompleteErr fails CompleteMultipartUpload when set.
	CompleteErr error

	// PartDelay makes each UploadPart sleep, to force caller/upload overlap.
	PartDelay time.Duration

	getCalls    int
	getRanges   []store.ByteRange
	inFlight    int
	maxInFlight int
}

var _ store.API = (*Fake)(nil)

// New creates an empty fake store.
func New() *Fake {
	return &Fake{
		objects: make(map[string][]byte),
		uploads: make(map[string]*multipartUpload),
	}
}

func objectKey(bucket, key string) string { return bucket + "/" + key }

// Put seeds an object directly.
func (f *Fake) Put(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectKey(bucket, key)] = append([]byte(nil), data...)
}

// ObjectData returns a copy of a stored object's bytes.
func (f *Fake) ObjectData(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectKey(bucket, key)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// GetCalls returns how many times GetObject was invoked.
func (f *Fake) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

// GetRanges returns the byte ranges requested so far, in call order.
// A nil range is recorded as {0, -1}.
func (f *Fake) GetRanges() []store.ByteRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.ByteRange(nil), f.getRanges...)
}

// MaxInFlightParts returns the highest number of UploadPart calls that were
// ever executing concurrently.
func (f *Fake) MaxInFlightParts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// UploadPartCount returns the number of parts committed to the given upload.
func (f *Fake) UploadPartCount(uploadID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.uploads[uploadID]
	if !ok {
		return 0
	}
	return len(up.parts)
}

// GetObject implements store.Getter.
func (f *Fake) GetObject(_ context.Context, bucket, key string, rng *store.ByteRange) (*store.Object, error) {
	f.mu.Lock()
	call := f.getCalls
	f.getCalls++
	if rng != nil {
		f.getRanges = append(f.getRanges, *rng)
	} else {
		f.getRanges = append(f.getRanges, store.ByteRange{Start: 0, End: -1})
	}
	data, ok := f.objects[objectKey(bucket, key)]
	wrap := f.WrapGetBody
	f.mu.Unlock()

	if !ok {
		return nil, &types.NoSuchKey{}
	}

	if rng != nil {
		if rng.Start >= int64(len(data)) {
			return nil, fmt.Errorf("requested range not satisfiable: start %d, object size %d", rng.Start, len(data))
		}
		end := int64(len(data))
		if rng.End >= 0 && rng.End+1 < end {
			end = rng.End + 1
		}
		data = data[rng.Start:end]
	}

	body := io.ReadCloser(io.NopCloser(bytes.NewReader(data)))
	if wrap != nil {
		body = wrap(call, data)
	}
	return &store.Object{Body: body, ContentLength: int64(len(data))}, nil
}

// CreateMultipartUpload implements store.MultipartUploader.
func (f *Fake) CreateMultipartUpload(_ context.Context, bucket, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = &multipartUpload{
		bucket: bucket,
		key:    key,
		parts:  make(map[int32][]byte),
		etags:  make(map[int32]string),
	}
	return id, nil
}

// UploadPart implements store.MultipartUploader.
func (f *Fake) UploadPart(_ context.Context, bucket, key, uploadID string, partNumber int32, body []byte) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := f.PartDelay
	failPart := f.UploadPartErr
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failPart != nil {
		if err := failPart(partNumber); err != nil {
			return "", err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.uploads[uploadID]
	if !ok || up.bucket != bucket || up.key != key {
		return "", &types.NoSuchUpload{}
	}
	etag := fmt.Sprintf("%q", fmt.Sprintf("%x", md5.Sum(body)))
	up.parts[partNumber] = append([]byte(nil), body...)
	up.etags[partNumber] = etag
	return etag, nil
}

// CompleteMultipartUpload implements store.MultipartUploader.
func (f *Fake) CompleteMultipartUpload(_ context.Context, bucket, key, uploadID string, etags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CompleteErr != nil {
		return f.CompleteErr
	}
	up, ok := f.uploads[uploadID]
	if !ok || up.bucket != bucket || up.key != key {
		return &types.NoSuchUpload{}
	}

	var assembled []byte
	for i, etag := range etags {
		partNumber := int32(i + 1)
		data, ok := up.parts[partNumber]
		if !ok {
			return fmt.Errorf("part %d was never uploaded", partNumber)
		}
		if up.etags[partNumber] != etag {
			return fmt.Errorf("part %d etag mismatch: got %s, want %s", partNumber, etag, up.etags[partNumber])
		}
		assembled = append(assembled, data...)
	}

	f.objects[objectKey(bucket, key)] = assembled
	delete(f.uploads, uploadID)
	return nil
}

// AbortMultipartUpload implements store.MultipartUploader.
func (f *Fake) AbortMultipartUpload(_ context.Context, bucket, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.uploads[uploadID]
	if !ok || up.bucket != bucket || up.key != key {
		return &types.NoSuchUpload{}
	}
	delete(f.uploads, uploadID)
	return nil
}

// MultipartUploadExists implements store.MultipartUploader.
func (f *Fake) MultipartUploadExists(_ context.Context, bucket, key, uploadID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.uploads[uploadID]
	return ok && up.bucket == bucket && up.key == key, nil
}

// FlakyReader returns a reader over data that fails with errText after
// delivering failAfter bytes. failAfter < 0 never fails.
func FlakyReader(data []byte, failAfter int, errText string) io.ReadCloser {
	return &flakyReader{data: data, failAfter: failAfter, errText: errText}
}

type flakyReader struct {
	data      []byte
	pos       int
	failAfter int
	errText   string
}

func (r *flakyReader) Read(p []byte) (int, error) {
	if r.failAfter >= 0 && r.pos >= r.failAfter {
		return 0, fmt.Errorf("%s", r.errText)
	}
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	if r.failAfter >= 0 && r.pos+n > r.failAfter {
		n = r.failAfter - r.pos
	}
	r.pos += n
	if n == 0 {
		return 0, fmt.Errorf("%s", r.errText)
	}
	return n, nil
}

func (r *flakyReader) Close() error { return nil }
