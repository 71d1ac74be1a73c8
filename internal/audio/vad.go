package audio

// VADConfig holds the energy detector thresholds
type VADConfig struct {
	EnergyThreshold float64 // frame RMS above this counts as speech
	SilenceFrames   int     // consecutive quiet frames that end an utterance
	FrameSize       int     // samples per frame
}

// VADConfigFor returns the default thresholds with 20ms frames at sampleRate.
func VADConfigFor(sampleRate int) *VADConfig {
	frame := sampleRate / 50
	if frame <= 0 {
		frame = 1
	}
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   25, // 500ms
		FrameSize:       frame,
	}
}

// VADDetector classifies frames by RMS energy with a silence hangover
type VADDetector struct {
	config   VADConfig
	quiet    int
	speaking bool
}

// NewVADDetector creates a detector; a nil config selects 16kHz defaults
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = VADConfigFor(16000)
	}
	return &VADDetector{config: *config}
}

// ProcessFrame classifies one frame and returns the boundary it completes,
// or 0 when the state did not change
func (v *VADDetector) ProcessFrame(samples []int16) Boundary {
	if CalculateRMS(samples) > v.config.EnergyThreshold {
		v.quiet = 0
		if !v.speaking {
			v.speaking = true
			return SpeechStart
		}
		return 0
	}

	v.quiet++
	if v.speaking && v.quiet >= v.config.SilenceFrames {
		v.speaking = false
		v.quiet = 0
		return SpeechEnd
	}
	return 0
}

// IsSpeaking reports whether the detector is inside an utterance
func (v *VADDetector) IsSpeaking() bool {
	return v.speaking
}

func (v *VADDetector) Reset() {
	v.quiet = 0
	v.speaking = false
}
