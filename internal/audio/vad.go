package audio

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Number of consecutive silence frames to mark as end of speech
	FrameSize       int     // Number of samples per frame; 0 derives 20ms from the sample rate
}

// DefaultVADConfig returns a default VAD configuration
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10, // 200ms of silence (10 frames * 20ms)
		FrameSize:       0,
	}
}

// FrameSizeFor returns the frame length in samples for a 20ms window
func FrameSizeFor(sampleRate int) int {
	size := sampleRate / 50
	if size <= 0 {
		return 160
	}
	return size
}

// VADDetector performs Voice Activity Detection
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{config: config}
}

// ProcessFrame processes an audio frame and returns whether speech is detected
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	frameHasSpeech := CalculateRMS(samples) > v.config.EnergyThreshold

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.silenceCounter++
		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// Reset resets the VAD detector state
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}

// DetectSilence detects if audio samples represent silence
func DetectSilence(samples []int16, threshold float64) bool {
	return CalculateRMS(samples) < threshold
}

// SpeechStats summarizes the voice activity of a finished chunk
type SpeechStats struct {
	RMS         float64 // over the whole chunk
	Peak        int
	SpeechRatio float64 // fraction of 20ms frames the detector held as speaking
	Utterances  int     // number of speech onsets
}

// AnalyzeSpeech runs the detector over mono-mixed samples frame by frame.
// The result is informational only; chunks are never dropped on it.
func AnalyzeSpeech(samples []int16, sampleRate, channels int, config *VADConfig) SpeechStats {
	if config == nil {
		config = DefaultVADConfig()
	}
	mono := DownmixToMono(samples, channels)
	stats := SpeechStats{
		RMS:  CalculateRMS(mono),
		Peak: Peak(mono),
	}

	frameSize := config.FrameSize
	if frameSize <= 0 {
		frameSize = FrameSizeFor(sampleRate)
	}

	vad := NewVADDetector(config)
	frames, speaking := 0, 0
	for start := 0; start < len(mono); start += frameSize {
		end := start + frameSize
		if end > len(mono) {
			end = len(mono)
		}
		isSpeaking, started, _ := vad.ProcessFrame(mono[start:end])
		frames++
		if isSpeaking {
			speaking++
		}
		if started {
			stats.Utterances++
		}
	}
	if frames > 0 {
		stats.SpeechRatio = float64(speaking) / float64(frames)
	}
	return stats
}
