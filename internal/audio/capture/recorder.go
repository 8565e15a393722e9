package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"voice-banking/internal/infra/logger"
)

const (
	DefaultSampleRate       = 44100
	DefaultBlockSize        = 2048
	DefaultSilenceThreshold = 0.01
	DefaultSilenceDuration  = time.Second
	DefaultMinDuration      = time.Second
	DefaultMaxDuration      = 30 * time.Second
)

var ErrNoAudio = errors.New("no audio captured")

// Source delivers interleaved float32 samples in [-1, 1], one block at a time.
type Source interface {
	Channels() int
	SampleRate() int
	// Read fills block completely or returns an error.
	Read(block []float32) error
	Close() error
}

type Options struct {
	SampleRate       int
	BlockSize        int
	SilenceThreshold float64
	SilenceDuration  time.Duration
	MinDuration      time.Duration
	MaxDuration      time.Duration
}

func DefaultOptions() Options {
	return Options{
		SampleRate:       DefaultSampleRate,
		BlockSize:        DefaultBlockSize,
		SilenceThreshold: DefaultSilenceThreshold,
		SilenceDuration:  DefaultSilenceDuration,
		MinDuration:      DefaultMinDuration,
		MaxDuration:      DefaultMaxDuration,
	}
}

// StopReason says why a capture ended.
type StopReason string

const (
	StopSilence     StopReason = "silence"
	StopMaxDuration StopReason = "max_duration"
)

type Recording struct {
	Samples    []float32
	Channels   int
	SampleRate int
	Duration   time.Duration
	Reason     StopReason
}

// Recorder reads blocks from a Source until trailing silence or the duration cap.
type Recorder struct {
	Logger  *logger.Logger
	Source  Source
	Options Options
	Now     func() time.Time
}

func NewRecorder(logger *logger.Logger, source Source, opts Options) *Recorder {
	return &Recorder{Logger: logger, Source: source, Options: opts, Now: time.Now}
}

// Record captures until elapsed >= MaxDuration, or elapsed >= MinDuration with
// SilenceDuration passed since the last block louder than SilenceThreshold.
func (th *Recorder) Record(ctx context.Context) (Recording, error) {
	channels := th.Source.Channels()
	if channels < 1 {
		channels = 1
	}
	block := make([]float32, th.Options.BlockSize*channels)

	th.Logger.Info(fmt.Sprintf("Recording... (stop after %.1fs of silence, max %.0fs)",
		th.Options.SilenceDuration.Seconds(), th.Options.MaxDuration.Seconds()))

	var samples []float32
	start := th.Now()
	lastVoice := start

	for {
		if err := ctx.Err(); err != nil {
			return Recording{}, err
		}
		if err := th.Source.Read(block); err != nil {
			return Recording{}, fmt.Errorf("failed to read audio block: %w", err)
		}
		samples = append(samples, block...)

		now := th.Now()
		if RMS(block) > th.Options.SilenceThreshold {
			lastVoice = now
		}

		elapsed := now.Sub(start)
		if elapsed >= th.Options.MaxDuration {
			th.Logger.Info("Reached max recording duration; stopping.")
			return th.recording(samples, channels, elapsed, StopMaxDuration)
		}
		if elapsed >= th.Options.MinDuration && now.Sub(lastVoice) >= th.Options.SilenceDuration {
			th.Logger.Info(fmt.Sprintf("Detected %.1fs of silence; stopping.", th.Options.SilenceDuration.Seconds()))
			return th.recording(samples, channels, elapsed, StopSilence)
		}
	}
}

func (th *Recorder) recording(samples []float32, channels int, elapsed time.Duration, reason StopReason) (Recording, error) {
	if len(samples) == 0 {
		return Recording{}, ErrNoAudio
	}
	rate := th.Source.SampleRate()
	if rate <= 0 {
		rate = th.Options.SampleRate
	}
	return Recording{
		Samples:    samples,
		Channels:   channels,
		SampleRate: rate,
		Duration:   elapsed,
		Reason:     reason,
	}, nil
}

// RMS is the root mean square of a block.
func RMS(block []float32) float64 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, s := range block {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(block)))
}

// Quantize clamps samples to [-1, 1] and scales them to int16 PCM.
func Quantize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int16(s * 32767)
	}
	return out
}
