package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kbukum/automeet/bootstrap"
	"github.com/kbukum/automeet/transcript"
)

const defaultStreamChunk = 4096

func newStreamCmd(g *globalFlags) *cobra.Command {
	var (
		chunkSize int
		format    string
		provider  string
	)
	cmd := &cobra.Command{
		Use:   "stream <audio-file>",
		Short: "Feed an audio file through the streaming provider in chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			cfg.Server.Enabled = false
			if provider != "" {
				cfg.Providers.Streaming = provider
			}
			if cfg.Providers.Streaming == "" {
				cfg.Providers.Streaming = cfg.Providers.Transcription
			}
			app, err := bootstrap.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				res, err := streamFile(ctx, app, args[0], chunkSize)
				if err != nil {
					return err
				}
				out, err := transcript.Format(*res, format)
				if err != nil {
					return err
				}
				return writeOutput("", out)
			})
		},
	}
	cmd.Flags().IntVar(&chunkSize, "chunk-size", defaultStreamChunk, "bytes per audio chunk")
	cmd.Flags().StringVarP(&format, "format", "f", transcript.FormatText, "output format: text, json or html")
	cmd.Flags().StringVar(&provider, "provider", "", "streaming provider (defaults to providers.streaming)")
	return cmd
}

// streamFile reads path in chunkSize pieces and streams them.
func streamFile(ctx context.Context, app *bootstrap.App, path string, chunkSize int) (*transcript.Result, error) {
	if chunkSize <= 0 {
		chunkSize = defaultStreamChunk
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, chunkSize)
			n, err := f.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-ctx.Done():
					readErr <- ctx.Err()
					return
				}
			}
			if err == io.EOF {
				readErr <- nil
				return
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	res, err := app.Orchestrator.StreamTranscribe(ctx, filepath.Base(path), chunks)
	if err != nil {
		return nil, err
	}
	if err := <-readErr; err != nil {
		return nil, err
	}
	return res, nil
}
