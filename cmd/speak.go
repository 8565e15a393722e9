package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"voice-banking/internal/audio/playback"

	"github.com/spf13/cobra"
)

func newSpeakCmd(app *app) *cobra.Command {
	var out string
	var play bool

	cmd := &cobra.Command{
		Use:   "speak TEXT",
		Short: "Synthesize speech to an MP3 file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.speech.Configured() {
				return errors.New("ELEVENLABS_API_KEY is missing")
			}

			text := strings.Join(args, " ")
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			stream, _, err := app.speech.StreamSpeech(cmd.Context(), text)
			if err != nil {
				return fmt.Errorf("text to speech: %w", err)
			}
			defer stream.Close()

			if err := writeFile(out, stream); err != nil {
				return err
			}

			f, err := os.Open(out)
			if err != nil {
				return fmt.Errorf("open audio: %w", err)
			}
			defer f.Close()

			duration, err := playback.Duration(f)
			if err != nil {
				app.logger.Warn(fmt.Sprintf("Could not measure %s: %v", out, err))
				fmt.Fprintf(cmd.OutOrStdout(), "Saved audio to %s\n", out)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Saved audio to %s (%.1fs)\n", out, duration.Seconds())
			}

			if !play {
				return nil
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
			return playback.Play(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&out, "out", filepath.Join("audio_outputs", "tts_output.mp3"), "MP3 output path")
	cmd.Flags().BoolVar(&play, "play", false, "play the audio after saving it")
	return cmd
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
