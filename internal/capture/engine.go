package capture

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lexiqai/meeting-listener/internal/audio"
	"github.com/lexiqai/meeting-listener/internal/observability"
	"github.com/rs/zerolog"
)

// Sink receives finalized artifacts in completion order
type Sink interface {
	Push(Artifact)
}

// Config holds the capture engine settings
type Config struct {
	MeetingID       string
	Dir             string        // where chunk WAV files are written
	ChunkDuration   time.Duration // rotation period
	PollInterval    time.Duration // sleep slice of the rotation loop
	FramesPerBuffer int
	VAD             *audio.VADConfig
}

func (c *Config) applyDefaults() {
	if c.MeetingID == "" {
		c.MeetingID = "current"
	}
	if c.Dir == "" {
		c.Dir = os.TempDir()
	}
	if c.ChunkDuration <= 0 {
		c.ChunkDuration = 20 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = 1024
	}
}

// Engine records the input stream into two alternating slots and hands each
// completed slot to the sink as an Artifact.
//
// The hardware callback only appends to the active slot under mu. All file
// I/O happens on the rotation loop goroutine.
type Engine struct {
	driver Driver
	sink   Sink
	cfg    Config
	logger zerolog.Logger

	device DeviceInfo
	format audio.Format
	ready  bool

	stream Stream
	origin time.Time

	mu        sync.Mutex
	slots     [2]*slot
	active    int   // index into slots, -1 when nothing records
	delivered int64 // sample frames stored since Start

	nextSeq int // only touched by Start and the rotation loop
	emitted int // artifacts handed to the sink, rotation loop only

	status   chan StreamStatus
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	create func(name string) (*os.File, error)
	now    func() time.Time
}

// New creates a capture engine. It must be initialized before Start.
func New(driver Driver, sink Sink, cfg Config, logger zerolog.Logger) *Engine {
	cfg.applyDefaults()
	return &Engine{
		driver: driver,
		sink:   sink,
		cfg:    cfg,
		logger: logger.With().Str("component", "capture").Str("meeting_id", cfg.MeetingID).Logger(),
		active: -1,
		status: make(chan StreamStatus, 16),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		create: os.Create,
		now:    time.Now,
	}
}

// Initialize resolves the input device and stream format
func (e *Engine) Initialize(selector DeviceSelector, sampleRate, channels int) error {
	devices, err := e.driver.Devices()
	if err != nil {
		return fmt.Errorf("%w: enumerate devices: %v", ErrDeviceUnavailable, err)
	}

	device, err := SelectDevice(devices, selector)
	if err != nil {
		return err
	}

	rate, ch := resolveFormat(device, sampleRate, channels)
	e.device = device
	e.format = audio.Format{SampleRate: rate, Channels: ch}
	e.ready = true

	e.logger.Info().
		Int("device_index", device.Index).
		Str("device_name", device.Name).
		Int("sample_rate", rate).
		Int("channels", ch).
		Msg("Input device selected")
	return nil
}

// Device returns the selected input device
func (e *Engine) Device() DeviceInfo {
	return e.device
}

// Format returns the PCM format written to artifacts
func (e *Engine) Format() audio.Format {
	return e.format
}

// Start opens slot 0 and begins hardware capture
func (e *Engine) Start() error {
	if !e.ready {
		return ErrNotInitialized
	}
	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create chunk dir: %w", err)
	}

	first, err := e.openSlot(0, 0)
	if err != nil {
		return err
	}
	e.nextSeq = 1

	stream, err := e.driver.Open(StreamParams{
		DeviceIndex:     e.device.Index,
		SampleRate:      e.format.SampleRate,
		Channels:        e.format.Channels,
		FramesPerBuffer: e.cfg.FramesPerBuffer,
	}, e.onFrame)
	if err != nil {
		first.discard()
		return fmt.Errorf("open input stream: %w", err)
	}

	e.mu.Lock()
	e.slots[0] = first
	e.active = 0
	e.delivered = 0
	e.mu.Unlock()
	e.origin = e.now()

	if err := stream.Start(); err != nil {
		stream.Close()
		e.mu.Lock()
		e.slots[0] = nil
		e.active = -1
		e.mu.Unlock()
		first.discard()
		return fmt.Errorf("start input stream: %w", err)
	}
	e.stream = stream

	e.logger.Info().Dur("chunk_duration", e.cfg.ChunkDuration).Str("dir", e.cfg.Dir).Msg("Capture started")
	return nil
}

// onFrame runs on the audio thread: no I/O, no logging, no blocking
func (e *Engine) onFrame(f Frame) {
	if f.Status != 0 {
		select {
		case e.status <- f.Status:
		default:
		}
	}

	e.mu.Lock()
	if e.active >= 0 {
		s := e.slots[e.active]
		s.samples = append(s.samples, f.Samples...)
		e.delivered += int64(len(f.Samples) / e.format.Channels)
	}
	e.mu.Unlock()
}

// Run is the rotation loop. It returns after Stop or ctx cancellation, once
// the active slot has been flushed and the stream released.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)
	if e.stream == nil {
		return
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	due := e.now().Add(e.cfg.ChunkDuration)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case <-e.stop:
			e.shutdown()
			return
		case status := <-e.status:
			e.logger.Warn().Str("status", status.String()).Msg("Input stream status anomaly")
			observability.RecordStreamAnomaly()
		case <-ticker.C:
			now := e.now()
			if now.Before(due) {
				continue
			}
			e.rotate()
			due = due.Add(e.cfg.ChunkDuration)
			if due.Before(now) {
				due = now.Add(e.cfg.ChunkDuration)
			}
		}
	}
}

// rotate opens the next slot, swaps it in, then finalizes the previous one.
// If the next slot cannot be opened the current one keeps recording.
func (e *Engine) rotate() {
	e.mu.Lock()
	current := e.active
	e.mu.Unlock()
	if current < 0 {
		return
	}

	next := 1 - current
	fresh, err := e.openSlot(next, e.nextSeq)
	if err != nil {
		e.logger.Error().Err(err).Int("slot", current).Msg("Rotation postponed, current slot stays active")
		observability.RecordError("capture_open", "capture")
		return
	}
	e.nextSeq++

	e.mu.Lock()
	fresh.offset = e.delivered
	prev := e.slots[current]
	e.slots[next] = fresh
	e.slots[current] = nil
	e.active = next
	e.mu.Unlock()

	e.complete(prev)
}

// complete finalizes a deactivated slot and enqueues its artifact
func (e *Engine) complete(s *slot) {
	if len(s.samples) == 0 {
		s.discard()
		e.logger.Debug().Int("slot", s.index).Int("seq", s.seq).Msg("Empty slot discarded")
		return
	}

	begin := time.Now()
	artifact, err := e.finalize(s)
	if err != nil {
		e.logger.Error().Err(err).Int("slot", s.index).Int("seq", s.seq).Msg("Chunk dropped")
		observability.RecordChunkCaptured(false, len(s.samples), time.Since(begin))
		observability.RecordError("capture_io", "capture")
		return
	}

	e.sink.Push(artifact)
	e.emitted++
	observability.RecordChunkCaptured(true, len(s.samples), time.Since(begin))

	e.logger.Debug().
		Int("slot", artifact.Slot).
		Int("seq", artifact.Seq).
		Dur("duration", artifact.Duration()).
		Float64("speech_ratio", artifact.SpeechRatio).
		Msg("Chunk enqueued")
}

// shutdown stops the hardware, flushes the active slot once and releases the stream
func (e *Engine) shutdown() {
	if err := e.stream.Stop(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to stop input stream")
	}

	e.mu.Lock()
	var last *slot
	if e.active >= 0 {
		last = e.slots[e.active]
		e.slots[e.active] = nil
	}
	e.active = -1
	e.mu.Unlock()

	if last != nil {
		e.complete(last)
	}

	if err := e.stream.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to close input stream")
	}
	e.logger.Info().Int("chunks", e.emitted).Int("slots_opened", e.nextSeq).Msg("Capture stopped")
}

// Stop requests termination of the rotation loop and returns immediately
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Done is closed once Run has flushed the last slot and released the stream
func (e *Engine) Done() <-chan struct{} {
	return e.done
}
