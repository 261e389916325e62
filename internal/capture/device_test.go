package capture

import (
	"errors"
	"testing"
)

var testDevices = []DeviceInfo{
	{Index: 0, Name: "HDMI Output", MaxInputChannels: 0, DefaultSampleRate: 48000},
	{Index: 1, Name: "USB Microphone", MaxInputChannels: 1, DefaultSampleRate: 44100},
	{Index: 2, Name: "Loopback", MaxInputChannels: 2, DefaultSampleRate: 0},
}

func TestSelectDevice_AutoPicksFirstInput(t *testing.T) {
	device, err := SelectDevice(testDevices, AutoDevice())
	if err != nil {
		t.Fatalf("SelectDevice: %v", err)
	}
	if device.Index != 1 {
		t.Errorf("Expected device 1, got %d", device.Index)
	}
}

func TestSelectDevice_Explicit(t *testing.T) {
	device, err := SelectDevice(testDevices, DeviceAt(2))
	if err != nil {
		t.Fatalf("SelectDevice: %v", err)
	}
	if device.Name != "Loopback" {
		t.Errorf("Expected Loopback, got %s", device.Name)
	}
}

func TestSelectDevice_ExplicitWithoutInput(t *testing.T) {
	_, err := SelectDevice(testDevices, DeviceAt(0))
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestSelectDevice_ExplicitMissing(t *testing.T) {
	_, err := SelectDevice(testDevices, DeviceAt(7))
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestSelectDevice_NoInputDevices(t *testing.T) {
	_, err := SelectDevice(testDevices[:1], AutoDevice())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
	}
	if _, err := SelectDevice(nil, AutoDevice()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable for empty list, got %v", err)
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name         string
		device       DeviceInfo
		rate, ch     int
		wantRate     int
		wantChannels int
	}{
		{"explicit rate", testDevices[1], 16000, 1, 16000, 1},
		{"device default", testDevices[1], 0, 1, 44100, 1},
		{"fallback rate", testDevices[2], 0, 2, DefaultSampleRate, 2},
		{"clamp channels", testDevices[1], 0, 2, 44100, 1},
		{"zero channels", testDevices[2], 8000, 0, 8000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, ch := resolveFormat(tt.device, tt.rate, tt.ch)
			if rate != tt.wantRate || ch != tt.wantChannels {
				t.Errorf("Expected %d Hz x%d, got %d Hz x%d", tt.wantRate, tt.wantChannels, rate, ch)
			}
		})
	}
}

func TestStreamStatus_String(t *testing.T) {
	if StatusInputOverflow.String() != "input_overflow" {
		t.Errorf("Unexpected %s", StatusInputOverflow)
	}
	if (StatusInputOverflow | StatusInputUnderflow).String() != "input_overflow|input_underflow" {
		t.Errorf("Unexpected %s", StatusInputOverflow|StatusInputUnderflow)
	}
	if StreamStatus(0).String() != "ok" {
		t.Errorf("Unexpected %s", StreamStatus(0))
	}
}
