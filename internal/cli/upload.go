package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	units "github.com/docker/go-units"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/vectorlink/bulkxfer/internal/constants"
	"github.com/vectorlink/bulkxfer/internal/logging"
	"github.com/vectorlink/bulkxfer/internal/store"
	"github.com/vectorlink/bulkxfer/internal/upload"
)

// sendBlockSize is how much file data each Send call hands to the upload
// engine. Small relative to the part size so part boundaries are crossed
// incrementally and progress stays smooth.
const sendBlockSize = 4 * 1024 * 1024

func newUploadCmd() *cobra.Command {
	var (
		partSizeFlag string
		resume       bool
	)

	cmd := &cobra.Command{
		Use:   "upload <bucket> <key> <file>",
		Short: "Upload a local file as a multipart object",
		Long: `Streams a local file into a multipart upload, one part in flight while the
next part buffers. Progress is checkpointed to a sidecar state file next to
the input; with --resume, an interrupted upload continues from the last
committed part instead of starting over.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			partSize, err := parseSize(partSizeFlag, constants.DefaultPartSize)
			if err != nil {
				return fmt.Errorf("invalid --part-size: %w", err)
			}
			if partSize < constants.MinPartSize || partSize > constants.MaxPartSize {
				return fmt.Errorf("--part-size %s outside S3 limits [%s, %s]",
					units.BytesSize(float64(partSize)),
					units.BytesSize(float64(constants.MinPartSize)),
					units.BytesSize(float64(constants.MaxPartSize)))
			}
			return runUpload(cmd.Context(), args[0], args[1], args[2], partSize, resume)
		},
	}

	cmd.Flags().StringVar(&partSizeFlag, "part-size", "", "Part size (e.g. 64MB, 1GB; default 512MB)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume an interrupted upload from its sidecar state file")

	return cmd
}

func parseSize(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return units.RAMInBytes(s)
}

func runUpload(ctx context.Context, bucket, key, path string, partSize int64, resume bool) error {
	log := logging.Default()

	client, err := newStoreClient(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return store.WrapIO("open input file", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return store.WrapIO("stat input file", err)
	}

	u, err := openUpload(ctx, client, bucket, key, path, partSize, resume, log)
	if err != nil {
		return err
	}

	committed := u.State().UploadedBytes
	if committed > info.Size() {
		return store.WrapState("resume upload", fmt.Errorf("state has %d committed bytes but the file is only %d bytes", committed, info.Size()))
	}
	if _, err := file.Seek(committed, io.SeekStart); err != nil {
		return store.WrapIO("seek input file", err)
	}

	bar := progressbar.DefaultBytes(info.Size(), "uploading")
	_ = bar.Set64(committed)

	block := make([]byte, sendBlockSize)
	for {
		n, err := file.Read(block)
		if n > 0 {
			if err := u.Send(ctx, block[:n]); err != nil {
				return err
			}
			_ = bar.Add(n)
			if err := checkpoint(path, u); err != nil {
				return err
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return store.WrapIO("read input file", err)
		}
	}

	if err := u.Complete(ctx); err != nil {
		return err
	}
	_ = bar.Finish()

	if err := upload.DeleteState(path); err != nil {
		log.Warn().Err(err).Msg("failed to remove upload state file")
	}
	log.Info().
		Str("bucket", bucket).
		Str("key", key).
		Int64("bytes", u.State().UploadedBytes).
		Int("parts", len(u.State().Parts)).
		Msg("upload complete")
	return nil
}

// openUpload starts a new upload, or reattaches to a previous one when
// --resume finds usable sidecar state whose remote upload is still live.
func openUpload(ctx context.Context, client *store.Client, bucket, key, path string, partSize int64, resume bool, log zerolog.Logger) (*upload.Upload, error) {
	if resume {
		state, err := upload.LoadState(path)
		if err != nil {
			return nil, err
		}
		if state != nil && len(state.Uploads) == 1 &&
			state.Uploads[0].Bucket == bucket && state.Uploads[0].Key == key {
			u, err := upload.Resume(client, state.Uploads[0], log)
			if err != nil {
				return nil, err
			}
			live, err := u.ValidateRemote(ctx)
			if err != nil {
				return nil, err
			}
			if live {
				log.Info().
					Int64("committed_bytes", u.State().UploadedBytes).
					Int("parts", len(u.State().Parts)).
					Msg("resuming upload")
				return u, nil
			}
			log.Warn().Msg("previous multipart upload expired, starting over")
		}
	}
	return upload.NewWithPartSize(ctx, client, bucket, key, partSize, log)
}

func checkpoint(path string, u *upload.Upload) error {
	return upload.SaveState(path, &upload.MultiState{Uploads: []upload.State{u.State()}})
}
