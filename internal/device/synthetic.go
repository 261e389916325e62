package device

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/lexiqai/meeting-listener/internal/capture"
)

// Synthetic is a hardware-free driver that plays a tone in bursts at real
// time. It backs AUDIO_DRIVER=synthetic for demos and tests.
type Synthetic struct {
	SampleRate int
	Channels   int
	ToneHz     float64
	Amplitude  float64
	Period     time.Duration // one burst plus the following silence
	Duty       float64       // fraction of Period carrying the tone
}

// NewSynthetic returns a mono 16 kHz source speaking 60% of every 2s
func NewSynthetic() *Synthetic {
	return &Synthetic{
		SampleRate: capture.DefaultSampleRate,
		Channels:   1,
		ToneHz:     220,
		Amplitude:  6000,
		Period:     2 * time.Second,
		Duty:       0.6,
	}
}

func (s *Synthetic) Devices() ([]capture.DeviceInfo, error) {
	return []capture.DeviceInfo{{
		Index:             0,
		Name:              "synthetic tone",
		MaxInputChannels:  s.Channels,
		DefaultSampleRate: float64(s.SampleRate),
	}}, nil
}

func (s *Synthetic) Open(params capture.StreamParams, handler capture.FrameHandler) (capture.Stream, error) {
	if params.DeviceIndex != 0 {
		return nil, capture.ErrDeviceUnavailable
	}
	if params.FramesPerBuffer <= 0 || params.SampleRate <= 0 || params.Channels <= 0 {
		return nil, errors.New("synthetic: invalid stream parameters")
	}
	return &syntheticStream{src: s, params: params, handler: handler}, nil
}

type syntheticStream struct {
	src     *Synthetic
	params  capture.StreamParams
	handler capture.FrameHandler

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	pos     int64 // frames generated so far
}

func (st *syntheticStream) Start() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.running {
		return nil
	}
	st.running = true
	st.stop = make(chan struct{})
	st.done = make(chan struct{})
	go st.loop(st.stop, st.done)
	return nil
}

// Stop blocks until no callback is in flight
func (st *syntheticStream) Stop() error {
	st.mu.Lock()
	if !st.running {
		st.mu.Unlock()
		return nil
	}
	st.running = false
	close(st.stop)
	done := st.done
	st.mu.Unlock()
	<-done
	return nil
}

func (st *syntheticStream) Close() error {
	return st.Stop()
}

func (st *syntheticStream) loop(stop, done chan struct{}) {
	defer close(done)
	p := st.params
	interval := time.Duration(float64(p.FramesPerBuffer) / float64(p.SampleRate) * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	buf := make([]int16, p.FramesPerBuffer*p.Channels)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			st.fill(buf)
			st.handler(capture.Frame{Samples: buf, Channels: p.Channels, SampleRate: p.SampleRate})
		}
	}
}

func (st *syntheticStream) fill(buf []int16) {
	p := st.params
	periodFrames := int64(st.src.Period.Seconds() * float64(p.SampleRate))
	onFrames := int64(float64(periodFrames) * st.src.Duty)
	for f := 0; f < p.FramesPerBuffer; f++ {
		var v int16
		pos := st.pos + int64(f)
		if periodFrames <= 0 || pos%periodFrames < onFrames {
			phase := 2 * math.Pi * st.src.ToneHz * float64(pos) / float64(p.SampleRate)
			v = int16(st.src.Amplitude * math.Sin(phase))
		}
		for c := 0; c < p.Channels; c++ {
			buf[f*p.Channels+c] = v
		}
	}
	st.pos += int64(p.FramesPerBuffer)
}
