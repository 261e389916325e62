package portaudio

import (
	"testing"

	pa "github.com/gordonklaus/portaudio"
	"github.com/lexiqai/meeting-listener/internal/capture"
)

func TestStatusFromFlags(t *testing.T) {
	if s := statusFromFlags(0); s != 0 {
		t.Errorf("Expected no status, got %v", s)
	}
	if s := statusFromFlags(pa.InputOverflow); s != capture.StatusInputOverflow {
		t.Errorf("Expected overflow, got %v", s)
	}
	s := statusFromFlags(pa.InputOverflow | pa.InputUnderflow | pa.OutputOverflow)
	if s != capture.StatusInputOverflow|capture.StatusInputUnderflow {
		t.Errorf("Expected overflow and underflow only, got %v", s)
	}
}
