package store

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Kind classifies the domain errors the transfer engines surface to callers.
type Kind string

const (
	// KindStore - the object store rejected or failed an API call.
	KindStore Kind = "store"
	// KindIO - a byte stream failed mid-read or violated its framing contract
	// (short stream, misaligned length, overflowing chunk).
	KindIO Kind = "io"
	// KindState - persisted transfer state is missing, corrupt, or stale.
	KindState Kind = "state"
)

// TaskError wraps a low-level failure into one of the domain kinds, preserving
// the underlying message for diagnostics. The flattened form is serializable,
// so task runners can persist failures alongside resumable state.
type TaskError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	err error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *TaskError) Unwrap() error { return e.err }

func wrap(kind Kind, op string, err error) *TaskError {
	return &TaskError{
		Kind:    kind,
		Message: fmt.Sprintf("%s: %v", op, err),
		err:     err,
	}
}

func wrapStore(op string, err error) *TaskError { return wrap(KindStore, op, err) }

// WrapIO wraps a stream-level failure.
func WrapIO(op string, err error) *TaskError { return wrap(KindIO, op, err) }

// WrapState wraps a persisted-state failure.
func WrapState(op string, err error) *TaskError { return wrap(KindState, op, err) }

// IsNotFound reports whether err means the requested key does not exist.
// Callers treat this as an explicit absent-object condition, not a failure.
func IsNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	// Some S3-compatible stores report the code without the modeled type.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

func isNoSuchUpload(err error) bool {
	var noSuchUpload *types.NoSuchUpload
	if errors.As(err, &noSuchUpload) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchUpload"
	}
	return false
}
