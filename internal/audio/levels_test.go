package audio

import (
	"path/filepath"
	"testing"
)

func TestPeak(t *testing.T) {
	if got := Peak([]int16{10000, -20000, 5000}); got != 20000 {
		t.Errorf("Expected peak 20000, got %d", got)
	}
	if got := Peak([]int16{-32768}); got != 32768 {
		t.Errorf("Expected peak 32768 for min int16, got %d", got)
	}
	if got := Peak(nil); got != 0 {
		t.Errorf("Expected 0 for empty input, got %d", got)
	}
}

func TestDownmixToMono(t *testing.T) {
	stereo := []int16{100, 300, -200, -400, 7}
	mono := DownmixToMono(stereo, 2)

	if len(mono) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(mono))
	}
	if mono[0] != 200 || mono[1] != -300 {
		t.Errorf("Unexpected mono samples %v", mono)
	}
	if got := DownmixToMono(stereo, 1); len(got) != len(stereo) {
		t.Error("Expected mono input to pass through")
	}
}

func TestDurationSeconds(t *testing.T) {
	if got := DurationSeconds(32000, 16000, 2); got != 1.0 {
		t.Errorf("Expected 1s, got %f", got)
	}
	if got := DurationSeconds(100, 0, 1); got != 0 {
		t.Errorf("Expected 0 for invalid rate, got %f", got)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunk.wav")
	samples := []int16{0, 1, -1, 32767, -32768, 1234, -4321, 42}
	format := Format{SampleRate: 16000, Channels: 2}

	if err := WriteWAVFile(path, samples, format); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}

	decoded, gotFormat, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("ReadWAVFile: %v", err)
	}
	if gotFormat != format {
		t.Errorf("Expected format %+v, got %+v", format, gotFormat)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], decoded[i])
		}
	}
}

func TestWriteWAVFile_InvalidFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := WriteWAVFile(path, []int16{1}, Format{}); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}
