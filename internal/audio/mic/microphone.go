package mic

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Microphone reads float32 blocks from the default input device.
// Stereo is used when the device offers at least two input channels.
type Microphone struct {
	Name       string
	stream     *portaudio.Stream
	buffer     []float32
	channels   int
	sampleRate int
}

func Open(sampleRate, blockSize int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("no default input device: %w", err)
	}

	channels := 1
	if device.MaxInputChannels >= 2 {
		channels = 2
	}

	buffer := make([]float32, blockSize*channels)
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(sampleRate), blockSize, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	return &Microphone{
		Name:       device.Name,
		stream:     stream,
		buffer:     buffer,
		channels:   channels,
		sampleRate: sampleRate,
	}, nil
}

func (th *Microphone) Channels() int {
	return th.channels
}

func (th *Microphone) SampleRate() int {
	return th.sampleRate
}

func (th *Microphone) Read(block []float32) error {
	if err := th.stream.Read(); err != nil {
		return err
	}
	copy(block, th.buffer)
	return nil
}

func (th *Microphone) Close() error {
	stopErr := th.stream.Stop()
	closeErr := th.stream.Close()
	portaudio.Terminate()
	if stopErr != nil {
		return stopErr
	}
	return closeErr
}
