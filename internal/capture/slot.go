package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lexiqai/meeting-listener/internal/audio"
)

// Artifact is a finalized chunk: a WAV file on disk and the span it covers.
// It is immutable once enqueued.
type Artifact struct {
	MeetingID  string
	Seq        int
	Slot       int
	Path       string
	Start      time.Time
	End        time.Time
	Offset     int64 // first sample frame, counted from stream start
	Frames     int   // sample frames (samples / channels)
	SampleRate int
	Channels   int

	RMS         float64
	SpeechRatio float64
}

// Duration returns the audio length of the artifact
func (a Artifact) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// slot is one of the two recording targets
type slot struct {
	index   int
	seq     int
	path    string
	file    *os.File
	opened  time.Time
	offset  int64
	samples []int16
}

func chunkPath(dir, meetingID string, slotIndex, seq int) string {
	return filepath.Join(dir, fmt.Sprintf("chunk_%s_%d_%d.wav", meetingID, slotIndex, seq))
}

// openSlot creates the artifact file for the next rotation and pre-sizes
// its sample buffer so the callback does not allocate
func (e *Engine) openSlot(index, seq int) (*slot, error) {
	path := chunkPath(e.cfg.Dir, e.cfg.MeetingID, index, seq)
	file, err := e.create(path)
	if err != nil {
		return nil, &CaptureIOError{Op: "open", Slot: index, Seq: seq, Path: path, Err: err}
	}
	return &slot{
		index:   index,
		seq:     seq,
		path:    path,
		file:    file,
		opened:  e.now(),
		samples: make([]int16, 0, e.slotCapacity()),
	}, nil
}

func (e *Engine) slotCapacity() int {
	// The loop notices the deadline up to one poll late, and one more callback
	// delivery can land before the swap.
	lateFrames := int(e.cfg.PollInterval.Seconds()*float64(e.format.SampleRate)) + e.cfg.FramesPerBuffer
	return e.chunkSamples() + lateFrames*e.format.Channels
}

func (e *Engine) chunkSamples() int {
	return int(e.cfg.ChunkDuration.Seconds() * float64(e.format.SampleRate*e.format.Channels))
}

// finalize encodes a deactivated slot and closes its file. It runs outside
// the engine lock. On failure the file is removed.
// Spans are derived from sample offsets so consecutive artifacts tile exactly.
func (e *Engine) finalize(s *slot) (Artifact, error) {
	if err := audio.EncodeWAV(s.file, s.samples, e.format); err != nil {
		s.file.Close()
		os.Remove(s.path)
		return Artifact{}, &CaptureIOError{Op: "encode", Slot: s.index, Seq: s.seq, Path: s.path, Err: err}
	}
	if err := s.file.Close(); err != nil {
		os.Remove(s.path)
		return Artifact{}, &CaptureIOError{Op: "close", Slot: s.index, Seq: s.seq, Path: s.path, Err: err}
	}

	frames := len(s.samples) / e.format.Channels
	start := e.origin.Add(framesToDuration(s.offset, e.format.SampleRate))
	stats := audio.AnalyzeSpeech(s.samples, e.format.SampleRate, e.format.Channels, e.cfg.VAD)

	return Artifact{
		MeetingID:   e.cfg.MeetingID,
		Seq:         s.seq,
		Slot:        s.index,
		Path:        s.path,
		Start:       start,
		End:         e.origin.Add(framesToDuration(s.offset+int64(frames), e.format.SampleRate)),
		Offset:      s.offset,
		Frames:      frames,
		SampleRate:  e.format.SampleRate,
		Channels:    e.format.Channels,
		RMS:         stats.RMS,
		SpeechRatio: stats.SpeechRatio,
	}, nil
}

// discard closes and removes a slot that holds no audio
func (s *slot) discard() {
	s.file.Close()
	os.Remove(s.path)
}

func framesToDuration(frames int64, sampleRate int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
