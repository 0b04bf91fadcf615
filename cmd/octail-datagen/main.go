package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/torosent/octail/internal/config"
	"github.com/torosent/octail/internal/payload"
	"github.com/torosent/octail/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCommand(os.Stdout).ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cobra.Command {
	defaults := config.Defaults().Storage
	cfg := config.StorageConfig{
		ConnectTimeout: defaults.ConnectTimeout,
		ReadTimeout:    5 * time.Second,
	}
	var bucket string

	cmd := &cobra.Command{
		Use:           "octail-datagen --bucket BUCKET",
		Short:         "Write the small and large sample payloads into a bucket",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bucket == "" {
				return errors.New("--bucket is required")
			}
			if strings.EqualFold(string(cfg.Provider), string(config.StorageProviderFile)) && cfg.Root != "" {
				if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
					return err
				}
			}
			backend, err := storage.NewBackend(cfg)
			if err != nil {
				return err
			}
			up, ok := backend.(storage.Uploader)
			if !ok {
				return fmt.Errorf("%s storage does not support uploads", backend.Name())
			}
			return seed(cmd.Context(), up, bucket, out)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&bucket, "bucket", "", "Destination bucket")
	flags.StringVar((*string)(&cfg.Provider), "storage-provider", string(config.StorageProviderFile), "Payload store: 'oss' or 'file'")
	flags.StringVar(&cfg.Root, "storage-root", ".", "Base directory for the file payload store")
	flags.StringVar(&cfg.Endpoint, "storage-endpoint", "", "Object store endpoint")
	flags.StringVar(&cfg.Region, "storage-region", "", "Object store region")
	return cmd
}

// seed uploads every sample document into bucket.
func seed(ctx context.Context, up storage.Uploader, bucket string, out io.Writer) error {
	for _, s := range payload.Samples() {
		data, err := s.Encode()
		if err != nil {
			return err
		}
		if err := up.PutObject(ctx, bucket, s.Name, data); err != nil {
			return fmt.Errorf("put %s/%s: %w", bucket, s.Name, err)
		}
		fmt.Fprintf(out, "wrote %s/%s (%d numbers, %d bytes)\n", bucket, s.Name, s.Count, len(data))
	}
	return nil
}
