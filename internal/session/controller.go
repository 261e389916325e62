package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lexiqai/meeting-listener/internal/capture"
	"github.com/lexiqai/meeting-listener/internal/dispatch"
	"github.com/lexiqai/meeting-listener/internal/events"
	"github.com/lexiqai/meeting-listener/internal/llm"
	"github.com/lexiqai/meeting-listener/internal/memory"
	"github.com/lexiqai/meeting-listener/internal/observability"
	"github.com/lexiqai/meeting-listener/internal/stt"
	"github.com/lexiqai/meeting-listener/internal/worker"
	"github.com/rs/zerolog"
)

// Status is the coarse session state
type Status string

const (
	StatusStopped   Status = "stopped"
	StatusListening Status = "listening"
)

// State is the session state visible to callers
type State struct {
	Status            Status `json:"status"`
	TranslationActive bool   `json:"translation_active"`
}

// Snapshot adds the presence fields written by the participant detector
type Snapshot struct {
	Status       Status   `json:"status"`
	Speaker      string   `json:"speaker,omitempty"`
	Participants []string `json:"participants"`
}

// Deps are the collaborators shared by every pipeline the controller builds
type Deps struct {
	Driver     capture.Driver
	Recognizer stt.Recognizer
	Translator llm.Translator
	Store      memory.Store
	Publisher  events.Publisher
}

// Config fixes the capture and worker parameters of a listening period
type Config struct {
	MeetingID    string
	Device       capture.DeviceSelector
	SampleRate   int // 0 uses the device default
	Channels     int
	Capture      capture.Config
	Worker       worker.Config
	DrainTimeout time.Duration // bounded wait for a previous pipeline before a restart
}

// pipeline is one capture engine plus its worker
type pipeline struct {
	engine *capture.Engine
	queue  *dispatch.Queue[capture.Artifact]
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller owns the session state machine. Start and Stop are serialized;
// readers never wait on a transition.
type Controller struct {
	deps   Deps
	cfg    Config
	base   zerolog.Logger
	logger zerolog.Logger

	op sync.Mutex // serializes Start and Stop

	mu           sync.RWMutex
	status       Status
	speaker      string
	participants []string
	run          *pipeline

	translation atomic.Bool

	now func() time.Time
}

// NewController creates a stopped controller
func NewController(deps Deps, cfg Config, logger zerolog.Logger) *Controller {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Fanout(nil)
	}
	cfg.Capture.MeetingID = cfg.MeetingID
	cfg.Worker.MeetingID = cfg.MeetingID
	return &Controller{
		deps:   deps,
		cfg:    cfg,
		base:   logger,
		logger: logger.With().Str("component", "session").Str("meeting_id", cfg.MeetingID).Logger(),
		status: StatusStopped,
		now:    time.Now,
	}
}

// Start begins a listening period. While already listening it only
// re-enables translation. Device errors are returned synchronously.
func (c *Controller) Start(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.RLock()
	status, prev := c.status, c.run
	c.mu.RUnlock()

	if status == StatusListening {
		c.translation.Store(true)
		c.logger.Debug().Msg("Already listening, translation re-enabled")
		return nil
	}

	if prev != nil && !c.join(prev, c.cfg.DrainTimeout) {
		c.logger.Warn().Dur("timeout", c.cfg.DrainTimeout).Msg("Previous pipeline did not drain, cancelled")
	}

	queue := dispatch.New[capture.Artifact]()
	queue.OnLen(observability.SetQueueDepth)

	// Resolve the device before touching the previous meeting's memory.
	engine := capture.New(c.deps.Driver, queue, c.cfg.Capture, c.base)
	if err := engine.Initialize(c.cfg.Device, c.cfg.SampleRate, c.cfg.Channels); err != nil {
		return err
	}

	if err := c.deps.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset meeting memory: %w", err)
	}
	c.recordBoundary(ctx, true)

	if err := engine.Start(); err != nil {
		return err
	}

	w := worker.New(queue, c.deps.Recognizer, c.deps.Translator, c.deps.Store, c.deps.Publisher,
		c.TranslationActive, c.cfg.Worker, c.base)

	pctx, cancel := context.WithCancel(context.Background())
	p := &pipeline{engine: engine, queue: queue, cancel: cancel, done: make(chan struct{})}

	go engine.Run(pctx)
	go func() {
		w.Run(pctx, engine.Done())
		<-engine.Done()
		cancel()
		close(p.done)
	}()

	c.translation.Store(true)
	c.mu.Lock()
	c.status = StatusListening
	c.run = p
	c.mu.Unlock()

	observability.RecordSessionStart()
	observability.SetSessionListening(true)
	c.publish(StatusListening)
	c.logger.Info().
		Str("device", engine.Device().Name).
		Int("sample_rate", engine.Format().SampleRate).
		Msg("Session listening")
	return nil
}

// Stop ends the listening period. It requests capture shutdown and returns;
// the worker drains the queue on its own.
func (c *Controller) Stop() {
	c.op.Lock()
	defer c.op.Unlock()

	c.translation.Store(false)

	c.mu.Lock()
	if c.status == StatusStopped {
		c.mu.Unlock()
		return
	}
	c.status = StatusStopped
	p := c.run
	c.mu.Unlock()

	if p != nil {
		p.engine.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.recordBoundary(ctx, false)

	observability.SetSessionListening(false)
	c.publish(StatusStopped)
	c.logger.Info().Msg("Session stopped")
}

// Wait joins the current pipeline. On timeout the pipeline is cancelled and
// joined, and false is returned.
func (c *Controller) Wait(timeout time.Duration) bool {
	c.mu.RLock()
	p := c.run
	c.mu.RUnlock()
	if p == nil {
		return true
	}
	return c.join(p, timeout)
}

func (c *Controller) join(p *pipeline, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		// in-flight calls observe the cancelled context and return promptly
		p.cancel()
		<-p.done
		return false
	}
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{Status: c.status, TranslationActive: c.translation.Load()}
}

// TranslationActive reports whether new chunks should be translated
func (c *Controller) TranslationActive() bool {
	return c.translation.Load()
}

// Snapshot returns status and presence
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Status:       c.status,
		Speaker:      c.speaker,
		Participants: append([]string{}, c.participants...),
	}
}

// SetPresence records the active speaker and participant list
func (c *Controller) SetPresence(speaker string, participants []string) {
	c.mu.Lock()
	c.speaker = speaker
	c.participants = append([]string(nil), participants...)
	c.mu.Unlock()
}

// QueueDepth returns the number of artifacts waiting for the worker
func (c *Controller) QueueDepth() int {
	c.mu.RLock()
	p := c.run
	c.mu.RUnlock()
	if p == nil {
		return 0
	}
	return p.queue.Len()
}

// recordBoundary stamps the meeting start or end time
func (c *Controller) recordBoundary(ctx context.Context, start bool) {
	info, err := c.deps.Store.Info(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to load meeting info")
		info = memory.Info{}
	}
	now := c.now().UTC().Truncate(time.Second)
	if start {
		info.Start = &now
		info.End = nil
	} else {
		info.End = &now
	}
	if err := c.deps.Store.SaveInfo(ctx, info); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to save meeting info")
	}
}

func (c *Controller) publish(status Status) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.deps.Publisher.Publish(ctx, events.SessionChanged(c.cfg.MeetingID, string(status))); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to publish session event")
	}
}
