package upload

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vectorlink/bulkxfer/internal/constants"
	"github.com/vectorlink/bulkxfer/internal/store"
)

// FinalPartError reports that flushing the final buffered part during
// completion failed. Parts committed earlier are still salvageable: the upload
// state remains valid and completion can be retried.
type FinalPartError struct {
	Err error
}

func (e *FinalPartError) Error() string {
	return fmt.Sprintf("final part upload failed: %v", e.Err)
}

func (e *FinalPartError) Unwrap() error { return e.Err }

// CompleteError reports that the multipart completion call itself failed,
// after every part had been committed.
type CompleteError struct {
	Err error
}

func (e *CompleteError) Error() string {
	return fmt.Sprintf("complete multipart upload failed: %v", e.Err)
}

func (e *CompleteError) Unwrap() error { return e.Err }

type partResult struct {
	bytesSent int64
	etag      string
	err       error
}

// pendingPart is one in-flight part upload: an owned buffer handed to a
// background goroutine whose single result is joined on the next fold.
type pendingPart struct {
	result chan partResult
}

// Upload accumulates an unbounded byte stream into fixed-size parts of a
// multipart upload. A part is dispatched to a background goroutine as soon as
// the buffer holds a full part, while the caller keeps sending; at most one
// part is ever in flight, and its result is folded into the serializable
// state before the next part starts, which keeps the part tags ordered.
//
// Part failures are never retried here: a silent re-upload could duplicate
// committed state. Transport-level retry happens below the client handle.
//
// Not safe for concurrent use; see Set for locked fan-out across partitions.
type Upload struct {
	api     store.MultipartUploader
	state   State
	data    []byte
	pending *pendingPart
	log     zerolog.Logger
}

// New initiates a multipart upload with the default part size.
func New(ctx context.Context, api store.MultipartUploader, bucket, key string, log zerolog.Logger) (*Upload, error) {
	return NewWithPartSize(ctx, api, bucket, key, constants.DefaultPartSize, log)
}

// NewWithPartSize initiates a multipart upload with an explicit part size.
func NewWithPartSize(ctx context.Context, api store.MultipartUploader, bucket, key string, partSize int64, log zerolog.Logger) (*Upload, error) {
	if partSize <= 0 {
		return nil, store.WrapState("new upload", fmt.Errorf("part size %d is not positive", partSize))
	}
	uploadID, err := api.CreateMultipartUpload(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return &Upload{
		api: api,
		state: State{
			Bucket:   bucket,
			Key:      key,
			PartSize: partSize,
			UploadID: uploadID,
		},
		log: log,
	}, nil
}

// Resume reconstructs an upload from previously captured state, without
// re-initiating the multipart upload or re-uploading committed parts. The
// upload starts buffering at the byte position after the last committed part.
func Resume(api store.MultipartUploader, state State, log zerolog.Logger) (*Upload, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return &Upload{
		api:   api,
		state: state.clone(),
		log:   log,
	}, nil
}

// State returns a snapshot of the resumable state. It reflects committed
// parts only; bytes still buffered or in flight are not part of it and must
// be re-sent after a resume.
func (u *Upload) State() State {
	return u.state.clone()
}

// BufferedBytes returns how many bytes are buffered but not yet dispatched.
func (u *Upload) BufferedBytes() int64 {
	return int64(len(u.data))
}

// Send appends data to the part buffer and dispatches full parts. It first
// folds an already-finished in-flight part without blocking; then, for as long
// as a full part is buffered, it joins the outstanding part (blocking) and
// starts the next one. The pipeline depth is capped at one part in flight.
func (u *Upload) Send(ctx context.Context, data []byte) error {
	u.data = append(u.data, data...)

	if err := u.foldFinished(); err != nil {
		return err
	}

	for int64(len(u.data)) >= u.state.PartSize {
		if err := u.fold(); err != nil {
			return err
		}
		u.startPart(ctx)
	}

	return nil
}

// Complete finalizes the upload: joins the in-flight part, flushes any
// buffered remainder as the true final part (even when smaller than the part
// size), and completes the multipart object with the full ordered tag list.
// The two failure modes are distinguishable: a *FinalPartError leaves the
// committed parts salvageable, a *CompleteError means all parts were
// committed but the object was not finalized.
//
// The upload must not be reused after Complete returns nil.
func (u *Upload) Complete(ctx context.Context) error {
	if err := u.fold(); err != nil {
		return &FinalPartError{Err: err}
	}

	if len(u.data) > 0 {
		partNumber := int32(len(u.state.Parts) + 1)
		u.log.Debug().
			Str("key", u.state.Key).
			Int32("part", partNumber).
			Int("bytes", len(u.data)).
			Msg("uploading final part")
		etag, err := u.api.UploadPart(ctx, u.state.Bucket, u.state.Key, u.state.UploadID, partNumber, u.data)
		if err != nil {
			return &FinalPartError{Err: err}
		}
		u.state.Parts = append(u.state.Parts, etag)
		u.state.UploadedBytes += int64(len(u.data))
		u.data = nil
	}

	if err := u.api.CompleteMultipartUpload(ctx, u.state.Bucket, u.state.Key, u.state.UploadID, u.state.Parts); err != nil {
		return &CompleteError{Err: err}
	}
	return nil
}

// Abort joins any in-flight part, then discards the multipart upload and all
// committed parts on the store.
func (u *Upload) Abort(ctx context.Context) error {
	// The part result is irrelevant once we are aborting, but the goroutine
	// must be joined so it does not outlive the upload.
	_ = u.fold()
	return u.api.AbortMultipartUpload(ctx, u.state.Bucket, u.state.Key, u.state.UploadID)
}

// ValidateRemote reports whether the multipart upload is still live on the
// store. A resumed upload whose ID has expired returns false, and the caller
// should start fresh.
func (u *Upload) ValidateRemote(ctx context.Context) (bool, error) {
	return u.api.MultipartUploadExists(ctx, u.state.Bucket, u.state.Key, u.state.UploadID)
}

// startPart slices the exact part-size prefix off the buffer and dispatches
// it. Callers must have folded the previous pending part first.
func (u *Upload) startPart(ctx context.Context) {
	partSize := u.state.PartSize
	body := make([]byte, partSize)
	copy(body, u.data)
	u.data = u.data[:copy(u.data, u.data[partSize:])]

	partNumber := int32(len(u.state.Parts) + 1)
	u.log.Debug().
		Str("key", u.state.Key).
		Int32("part", partNumber).
		Int64("bytes", partSize).
		Msg("uploading part")

	pending := &pendingPart{result: make(chan partResult, 1)}
	u.pending = pending

	bucket, key, uploadID := u.state.Bucket, u.state.Key, u.state.UploadID
	go func() {
		etag, err := u.api.UploadPart(ctx, bucket, key, uploadID, partNumber, body)
		pending.result <- partResult{bytesSent: int64(len(body)), etag: etag, err: err}
	}()
}

// fold joins the in-flight part, blocking until its result is available, and
// applies it to the state. No-op when nothing is in flight.
func (u *Upload) fold() error {
	if u.pending == nil {
		return nil
	}
	res := <-u.pending.result
	u.pending = nil
	return u.apply(res)
}

// foldFinished folds the in-flight part only if its result is already
// available, without blocking the caller.
func (u *Upload) foldFinished() error {
	if u.pending == nil {
		return nil
	}
	select {
	case res := <-u.pending.result:
		u.pending = nil
		return u.apply(res)
	default:
		return nil
	}
}

func (u *Upload) apply(res partResult) error {
	if res.err != nil {
		return res.err
	}
	u.state.Parts = append(u.state.Parts, res.etag)
	u.state.UploadedBytes += res.bytesSent
	return nil
}
