// Package upload implements the chunked multipart upload engine: fixed-size
// part buffering with one part upload in flight, serializable resumable
// state, and sets of independently locked uploads.
package upload

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vectorlink/bulkxfer/internal/store"
)

// State is the serializable progress of one multipart upload. It holds no live
// resources: restoring it re-attaches a store client via Resume.
//
// Parts is the authoritative part-number ordering: Parts[i] is the completion
// tag of part number i+1, and len(Parts) equals the number of parts committed
// to the store.
type State struct {
	Bucket        string   `json:"bucket"`
	Key           string   `json:"key"`
	PartSize      int64    `json:"size_per_upload"`
	UploadID      string   `json:"upload_id"`
	Parts         []string `json:"parts"`
	UploadedBytes int64    `json:"uploaded_bytes"`
}

// MultiState aggregates the states of an upload set, one entry per partition.
type MultiState struct {
	Uploads []State `json:"uploads"`
}

// stateFileSuffix is appended to a caller-chosen path to form the sidecar
// state file for a resumable upload.
const stateFileSuffix = ".upload.resume"

// SaveState writes state atomically to the sidecar file for path,
// using a temp file plus rename.
func SaveState(path string, state *MultiState) error {
	stateFilePath := path + stateFileSuffix
	tmpFilePath := stateFilePath + ".tmp"

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return store.WrapState("marshal upload state", err)
	}

	if err := os.WriteFile(tmpFilePath, data, 0600); err != nil {
		return store.WrapState("write temp state file", err)
	}

	if err := os.Rename(tmpFilePath, stateFilePath); err != nil {
		os.Remove(tmpFilePath)
		return store.WrapState("rename state file", err)
	}

	return nil
}

// LoadState loads the sidecar state for path.
// Returns nil without error if no state file exists.
func LoadState(path string) (*MultiState, error) {
	data, err := os.ReadFile(path + stateFileSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, store.WrapState("read state file", err)
	}

	var state MultiState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, store.WrapState("unmarshal state file", err)
	}

	return &state, nil
}

// DeleteState removes the sidecar state for path. Missing files are fine.
func DeleteState(path string) error {
	err := os.Remove(path + stateFileSuffix)
	if err != nil && !os.IsNotExist(err) {
		return store.WrapState("delete state file", err)
	}
	return nil
}

// Validate checks the internal consistency of a restored state.
func (s *State) Validate() error {
	if s.Bucket == "" || s.Key == "" {
		return store.WrapState("validate upload state", fmt.Errorf("missing bucket or key"))
	}
	if s.UploadID == "" {
		return store.WrapState("validate upload state", fmt.Errorf("missing upload ID"))
	}
	if s.PartSize <= 0 {
		return store.WrapState("validate upload state", fmt.Errorf("part size %d is not positive", s.PartSize))
	}
	if s.UploadedBytes < 0 {
		return store.WrapState("validate upload state", fmt.Errorf("negative uploaded byte count"))
	}
	return nil
}

func (s *State) clone() State {
	c := *s
	c.Parts = append([]string(nil), s.Parts...)
	return c
}
