// Package store provides the object store client used by the upload and
// download engines. The engines consume the small operation interfaces defined
// here; Client implements them against S3. Tests substitute in-memory fakes.
package store

import (
	"context"
	"fmt"
	"io"
)

// ByteRange selects a contiguous byte span of an object.
// End is inclusive; a negative End requests everything from Start onward.
type ByteRange struct {
	Start int64
	End   int64
}

// Header renders the range in HTTP Range header form.
func (r ByteRange) Header() string {
	if r.End < 0 {
		return fmt.Sprintf("bytes=%d-", r.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// Object is an opened object read: a byte stream plus the length the store
// declared for it.
type Object struct {
	Body          io.ReadCloser
	ContentLength int64
}

// Getter is the read side of the store.
type Getter interface {
	// GetObject opens a streaming read of the object, optionally restricted to
	// a byte range. A missing key yields an error satisfying IsNotFound.
	GetObject(ctx context.Context, bucket, key string, rng *ByteRange) (*Object, error)
}

// MultipartUploader is the write side of the store.
type MultipartUploader interface {
	// CreateMultipartUpload initiates a multipart upload and returns its ID.
	CreateMultipartUpload(ctx context.Context, bucket, key string) (string, error)

	// UploadPart commits one part and returns its completion tag (ETag).
	// Part numbers are 1-based.
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, body []byte) (string, error)

	// CompleteMultipartUpload finalizes the object from the ordered tag list.
	// etags[i] is the tag of part number i+1.
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, etags []string) error

	// AbortMultipartUpload discards an in-progress upload and its parts.
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error

	// MultipartUploadExists reports whether an upload ID is still live on the
	// store. An expired or unknown upload is (false, nil), not an error.
	MultipartUploadExists(ctx context.Context, bucket, key, uploadID string) (bool, error)
}

// API combines both sides; *Client satisfies it.
type API interface {
	Getter
	MultipartUploader
}
