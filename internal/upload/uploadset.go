package upload

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vectorlink/bulkxfer/internal/constants"
	"github.com/vectorlink/bulkxfer/internal/store"
)

// Set owns a fixed number of independent uploads, one per output partition,
// keyed "<prefix><index>". Each upload is individually locked: concurrent
// Send calls against different indices proceed in parallel, calls against the
// same index serialize.
type Set struct {
	uploads []*lockedUpload
}

type lockedUpload struct {
	mu sync.Mutex
	u  *Upload
}

// NewSet initiates count multipart uploads under bucket with the default part
// size, keys prefix+"0" .. prefix+strconv(count-1).
func NewSet(ctx context.Context, api store.MultipartUploader, bucket, prefix string, count int, log zerolog.Logger) (*Set, error) {
	return NewSetWithPartSize(ctx, api, bucket, prefix, count, constants.DefaultPartSize, log)
}

// NewSetWithPartSize initiates count multipart uploads with an explicit part size.
func NewSetWithPartSize(ctx context.Context, api store.MultipartUploader, bucket, prefix string, count int, partSize int64, log zerolog.Logger) (*Set, error) {
	uploads := make([]*lockedUpload, 0, count)
	for index := 0; index < count; index++ {
		u, err := NewWithPartSize(ctx, api, bucket, fmt.Sprintf("%s%d", prefix, index), partSize, log)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, &lockedUpload{u: u})
	}
	return &Set{uploads: uploads}, nil
}

// ResumeSet reconstructs a set from captured state, one upload per entry.
func ResumeSet(api store.MultipartUploader, state MultiState, log zerolog.Logger) (*Set, error) {
	uploads := make([]*lockedUpload, 0, len(state.Uploads))
	for i := range state.Uploads {
		u, err := Resume(api, state.Uploads[i], log)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, &lockedUpload{u: u})
	}
	return &Set{uploads: uploads}, nil
}

// Len returns the number of partitions.
func (s *Set) Len() int {
	return len(s.uploads)
}

// Send appends data to the upload at index, holding that upload's lock for
// the duration of the call.
func (s *Set) Send(ctx context.Context, index int, data []byte) error {
	if index < 0 || index >= len(s.uploads) {
		return store.WrapState("set send", fmt.Errorf("index %d out of range (%d uploads)", index, len(s.uploads)))
	}
	lu := s.uploads[index]
	lu.mu.Lock()
	defer lu.mu.Unlock()
	return lu.u.Send(ctx, data)
}

// Complete finalizes every upload in sequence. The first failure is returned;
// order across uploads carries no meaning.
func (s *Set) Complete(ctx context.Context) error {
	for _, lu := range s.uploads {
		lu.mu.Lock()
		err := lu.u.Complete(ctx)
		lu.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// Abort discards every upload in the set.
func (s *Set) Abort(ctx context.Context) error {
	var firstErr error
	for _, lu := range s.uploads {
		lu.mu.Lock()
		err := lu.u.Abort(ctx)
		lu.mu.Unlock()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// States snapshots the resumable state of every upload, in partition order.
func (s *Set) States() MultiState {
	states := make([]State, 0, len(s.uploads))
	for _, lu := range s.uploads {
		lu.mu.Lock()
		states = append(states, lu.u.State())
		lu.mu.Unlock()
	}
	return MultiState{Uploads: states}
}
