// Package cli provides the command-line interface for bulkxfer.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vectorlink/bulkxfer/internal/logging"
	"github.com/vectorlink/bulkxfer/internal/store"
)

var (
	// Global flags
	region    string
	endpoint  string
	pathStyle bool
	verbose   bool
)

// Version information - set by the build via LDFLAGS, with a dev fallback.
var (
	Version = "v0.3.0-dev"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bulkxfer",
		Short: "Bulk transfer of large fixed-record vectors to and from an object store",
		Long: `bulkxfer ` + Version + `
Streams large vector files (embeddings, indexes) to and from an S3-compatible
object store as fixed-size records, with resumable multipart uploads and
resume-on-failure ranged downloads.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&region, "region", "", "Bucket region (defaults to environment)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Custom S3 endpoint for S3-compatible stores")
	rootCmd.PersistentFlags().BoolVar(&pathStyle, "path-style", false, "Force path-style addressing (MinIO, Ceph RGW)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newDownloadCmd())

	return rootCmd
}

// Execute runs the CLI with signal-driven cancellation.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger := logging.Default()
		logger.Warn().Msg("interrupted, shutting down")
		cancel()
	}()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newStoreClient(ctx context.Context) (*store.Client, error) {
	return store.NewClient(ctx, store.Options{
		Region:    region,
		Endpoint:  endpoint,
		PathStyle: pathStyle,
	})
}
