package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voice-banking/internal/audio/capture"

	"github.com/spf13/cobra"
)

func newRecordCmd(app *app) *cobra.Command {
	var out string
	var transcribe bool

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone until silence and save an MP3",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.EqualFold(filepath.Ext(out), ".wav") {
				return fmt.Errorf("--out %q must not be a .wav file: the WAV intermediate is written next to it", out)
			}
			if transcribe && !app.speech.Configured() {
				return errors.New("ELEVENLABS_API_KEY is missing")
			}

			opts := capture.DefaultOptions()
			source, err := app.openSource(opts)
			if err != nil {
				return fmt.Errorf("open microphone: %w", err)
			}
			defer source.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Recording channels: %d\n", source.Channels())

			recorder := capture.NewRecorder(app.logger, source, opts)
			recorder.Now = app.now
			rec, err := recorder.Record(cmd.Context())
			if err != nil {
				return fmt.Errorf("record audio: %w", err)
			}

			wavPath := strings.TrimSuffix(out, filepath.Ext(out)) + ".wav"
			if err := capture.WriteWAV(wavPath, rec); err != nil {
				return err
			}
			if err := capture.EncodeMP3(cmd.Context(), wavPath, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "MP3 saved to %s (%.1fs, stopped on %s)\n", out, rec.Duration.Seconds(), rec.Reason)

			if !transcribe {
				return nil
			}

			f, err := os.Open(out)
			if err != nil {
				return fmt.Errorf("open recording: %w", err)
			}
			defer f.Close()

			text, err := app.speech.Transcribe(cmd.Context(), filepath.Base(out), f)
			if err != nil {
				return fmt.Errorf("transcribe: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "\nTranscription:\n%s\n", text)
			return err
		},
	}

	cmd.Flags().StringVar(&out, "out", "recorded_audio.mp3", "MP3 output path")
	cmd.Flags().BoolVar(&transcribe, "transcribe", false, "send the recording to speech-to-text")
	return cmd
}
