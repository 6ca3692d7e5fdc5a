package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/passport-photo/internal/download"
	"github.com/example/passport-photo/internal/imageprocessor"
	"github.com/example/passport-photo/internal/logging"
)

var (
	outDirFlag  string
	timeoutFlag time.Duration
)

var makeCmd = &cobra.Command{
	Use:   "make <photo>",
	Short: "Upload a photo, wait for the passport version and download it",
	Args:  cobra.ExactArgs(1),
	RunE:  runMake,
}

func init() {
	makeCmd.Flags().StringVarP(&outDirFlag, "out", "o", ".", "Directory to save the passport photo in")
	makeCmd.Flags().DurationVar(&timeoutFlag, "timeout", 5*time.Minute, "Overall time limit for the run")
}

func runMake(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	payload, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	ctx := cmd.Context()
	if timeoutFlag > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeoutFlag)
		defer cancel()
	}

	app, err := buildPipeline(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	outcome, err := app.usecase.Run(ctx, imageprocessor.UploadRequest{
		Payload:     payload,
		ContentType: mimetype.Detect(payload).String(),
		Filename:    filepath.Base(args[0]),
	})
	if err != nil {
		return err
	}

	d := download.New(&http.Client{Timeout: time.Minute}, outDirFlag, logger)
	path, err := d.Save(ctx, outcome.ProcessedURL)
	if err != nil {
		return err
	}

	logger.Info("done", zap.String("request_id", outcome.RequestID), zap.String("object_id", outcome.ObjectID))
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
