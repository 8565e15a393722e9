package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// FFmpegBinary is the encoder invoked by EncodeMP3.
var FFmpegBinary = "ffmpeg"

// WriteWAV writes rec as a 16-bit PCM WAV file.
func WriteWAV(path string, rec Recording) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	pcm := Quantize(rec.Samples)
	if _, err := w.Write(wavHeader(len(pcm), rec.Channels, rec.SampleRate)); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, pcm); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush WAV file: %w", err)
	}
	return nil
}

func wavHeader(samples, channels, sampleRate int) []byte {
	dataSize := samples * 2
	header := make([]byte, 44)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(header[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(header[34:36], 16)

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))
	return header
}

// EncodeMP3 re-encodes a WAV file to MP3 and removes the WAV once done.
func EncodeMP3(ctx context.Context, wavPath, mp3Path string) error {
	if _, err := os.Stat(wavPath); err != nil {
		return fmt.Errorf("missing WAV file at %s: %w", wavPath, err)
	}

	cmd := exec.CommandContext(ctx, FFmpegBinary, "-y", "-loglevel", "error", "-i", wavPath, mp3Path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	if err := os.Remove(wavPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove WAV file: %w", err)
	}
	return nil
}
