package capture

import (
	"fmt"
)

// DefaultSampleRate is used when neither the caller nor the device gives one
const DefaultSampleRate = 16000

// DeviceInfo describes one enumerated input device
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
}

// StreamStatus carries the hardware status flags of a callback delivery
type StreamStatus uint8

const (
	StatusInputOverflow StreamStatus = 1 << iota
	StatusInputUnderflow
)

func (s StreamStatus) String() string {
	switch {
	case s&StatusInputOverflow != 0 && s&StatusInputUnderflow != 0:
		return "input_overflow|input_underflow"
	case s&StatusInputOverflow != 0:
		return "input_overflow"
	case s&StatusInputUnderflow != 0:
		return "input_underflow"
	}
	return "ok"
}

// Frame is one delivery of interleaved 16-bit PCM from the hardware.
// Samples is only valid for the duration of the callback.
type Frame struct {
	Samples    []int16
	Channels   int
	SampleRate int
	Status     StreamStatus
}

// FrameHandler receives frames on the real-time audio thread
type FrameHandler func(Frame)

// StreamParams selects the device and format of an input stream
type StreamParams struct {
	DeviceIndex     int
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// Stream is an opened hardware input stream
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Driver enumerates input devices and opens streams on them
type Driver interface {
	Devices() ([]DeviceInfo, error)
	Open(params StreamParams, handler FrameHandler) (Stream, error)
}

// DeviceSelector picks an explicit device index, or the first input-capable
// device when Index is negative
type DeviceSelector struct {
	Index int
}

// AutoDevice selects the first device reporting at least one input channel
func AutoDevice() DeviceSelector {
	return DeviceSelector{Index: -1}
}

// DeviceAt selects the device with the given enumeration index
func DeviceAt(index int) DeviceSelector {
	return DeviceSelector{Index: index}
}

// Explicit reports whether the selector names a concrete index
func (s DeviceSelector) Explicit() bool {
	return s.Index >= 0
}

// SelectDevice resolves selector against the enumerated devices
func SelectDevice(devices []DeviceInfo, selector DeviceSelector) (DeviceInfo, error) {
	if selector.Explicit() {
		for _, d := range devices {
			if d.Index != selector.Index {
				continue
			}
			if d.MaxInputChannels < 1 {
				return DeviceInfo{}, fmt.Errorf("%w: device %d (%s) has no input channels", ErrDeviceUnavailable, d.Index, d.Name)
			}
			return d, nil
		}
		return DeviceInfo{}, fmt.Errorf("%w: no device with index %d", ErrDeviceUnavailable, selector.Index)
	}

	for _, d := range devices {
		if d.MaxInputChannels >= 1 {
			return d, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: none of %d devices has an input channel", ErrDeviceUnavailable, len(devices))
}

// resolveFormat picks the sample rate and channel count for a device
func resolveFormat(device DeviceInfo, sampleRate, channels int) (int, int) {
	if sampleRate <= 0 {
		sampleRate = int(device.DefaultSampleRate)
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = 1
	}
	if channels > device.MaxInputChannels {
		channels = device.MaxInputChannels
	}
	return sampleRate, channels
}
