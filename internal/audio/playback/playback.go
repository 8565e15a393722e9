package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"
)

// decoded PCM is always stereo, 16-bit little endian
const bytesPerFrame = 4

var ErrUnknownLength = errors.New("mp3 stream length is unknown")

// Duration decodes an MP3 stream and returns its play time.
func Duration(r io.Reader) (time.Duration, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return 0, fmt.Errorf("failed to decode mp3: %w", err)
	}

	length := dec.Length()
	if length < 0 {
		n, err := io.Copy(io.Discard, dec)
		if err != nil {
			return 0, fmt.Errorf("failed to decode mp3: %w", err)
		}
		length = n
	}
	if dec.SampleRate() <= 0 {
		return 0, ErrUnknownLength
	}

	frames := length / bytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(dec.SampleRate()), nil
}

// Play decodes an MP3 stream to the default output device and blocks until it ends or ctx is done.
func Play(ctx context.Context, r io.Reader) error {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return fmt.Errorf("failed to decode mp3: %w", err)
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   dec.SampleRate(),
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}
	<-ready

	player := otoCtx.NewPlayer(dec)
	player.Play()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			player.Close()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Close()
}
