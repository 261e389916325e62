// Package portaudio binds the capture engine to the host's audio hardware.
// It links libportaudio through cgo and is only imported by the server binary.
package portaudio

import (
	"fmt"

	pa "github.com/gordonklaus/portaudio"
	"github.com/lexiqai/meeting-listener/internal/capture"
)

// Driver captures from host input devices.
// Create it once per process and Close it on shutdown.
type Driver struct{}

// New initializes the PortAudio library
func New() (*Driver, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return &Driver{}, nil
}

// Close terminates the PortAudio library
func (d *Driver) Close() error {
	return pa.Terminate()
}

// Devices lists every host device; enumeration order is the device index
func (d *Driver) Devices() ([]capture.DeviceInfo, error) {
	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	out := make([]capture.DeviceInfo, 0, len(devices))
	for i, d := range devices {
		out = append(out, capture.DeviceInfo{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}
	return out, nil
}

// Open opens a 16-bit input stream on the requested device
func (d *Driver) Open(params capture.StreamParams, handler capture.FrameHandler) (capture.Stream, error) {
	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	if params.DeviceIndex < 0 || params.DeviceIndex >= len(devices) {
		return nil, fmt.Errorf("%w: no device with index %d", capture.ErrDeviceUnavailable, params.DeviceIndex)
	}
	dev := devices[params.DeviceIndex]

	sp := pa.StreamParameters{
		Input: pa.StreamDeviceParameters{
			Device:   dev,
			Channels: params.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(params.SampleRate),
		FramesPerBuffer: params.FramesPerBuffer,
	}

	channels, rate := params.Channels, params.SampleRate
	callback := func(in []int16, _ pa.StreamCallbackTimeInfo, flags pa.StreamCallbackFlags) {
		handler(capture.Frame{
			Samples:    in,
			Channels:   channels,
			SampleRate: rate,
			Status:     statusFromFlags(flags),
		})
	}

	stream, err := pa.OpenStream(sp, callback)
	if err != nil {
		return nil, fmt.Errorf("open stream on %q: %w", dev.Name, err)
	}
	return stream, nil
}

func statusFromFlags(flags pa.StreamCallbackFlags) capture.StreamStatus {
	var s capture.StreamStatus
	if flags&pa.InputOverflow != 0 {
		s |= capture.StatusInputOverflow
	}
	if flags&pa.InputUnderflow != 0 {
		s |= capture.StatusInputUnderflow
	}
	return s
}
