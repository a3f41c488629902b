package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/automeet/bootstrap"
	"github.com/kbukum/automeet/orchestrator"
	"github.com/kbukum/automeet/transcript"
	"github.com/kbukum/automeet/transcription"
)

type transcribeFlags struct {
	language      string
	model         string
	speakerLabels bool
	speakers      int
	force         bool
	format        string
	output        string
	analyze       bool
	systemPrompt  string
	prompt        string
}

func newTranscribeCmd(g *globalFlags) *cobra.Command {
	f := &transcribeFlags{}
	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file and optionally analyse it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			cfg.Server.Enabled = false
			app, err := bootstrap.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				return runTranscribe(ctx, app, args[0], f)
			})
		},
	}
	cmd.Flags().StringVarP(&f.language, "language", "l", "", "language code (defaults to transcription.language)")
	cmd.Flags().StringVar(&f.model, "model", "", "backend model override")
	cmd.Flags().BoolVar(&f.speakerLabels, "speaker-labels", true, "attribute utterances to speakers")
	cmd.Flags().IntVar(&f.speakers, "speakers", 2, "expected number of speakers")
	cmd.Flags().BoolVar(&f.force, "force", false, "ignore any cached result")
	cmd.Flags().StringVarP(&f.format, "format", "f", transcript.FormatText, "output format: text, json or html")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&f.analyze, "analyze", false, "run the transcript through the text generation provider")
	cmd.Flags().StringVar(&f.systemPrompt, "system-prompt", "", "system prompt for --analyze")
	cmd.Flags().StringVar(&f.prompt, "prompt", "", "user prompt template for --analyze; {transcription} marks the transcript")
	return cmd
}

func runTranscribe(ctx context.Context, app *bootstrap.App, path string, f *transcribeFlags) error {
	res, err := app.Orchestrator.Transcribe(ctx, orchestrator.TranscribeRequest{
		Request: transcription.Request{
			AudioPath:        path,
			Language:         f.language,
			Model:            f.model,
			SpeakerLabels:    f.speakerLabels,
			SpeakersExpected: f.speakers,
		},
		Force: f.force,
	})
	if err != nil {
		return err
	}

	out, err := transcript.Format(*res, f.format)
	if err != nil {
		return err
	}
	if f.analyze {
		analysis, err := app.Orchestrator.Analyze(ctx, *res, f.systemPrompt, f.prompt)
		if err != nil {
			return err
		}
		out += "\n\n" + analysis
	}
	return writeOutput(f.output, out)
}

func writeOutput(path, content string) error {
	if path == "" {
		_, err := fmt.Fprintln(os.Stdout, content)
		return err
	}
	return os.WriteFile(path, []byte(content+"\n"), 0o644)
}
