package audio

import (
	"testing"
)

func constantFrame(n int, value int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = value
	}
	return s
}

func TestVADDetector_Sequence(t *testing.T) {
	vad := NewVADDetector(&VADConfig{EnergyThreshold: 500, SilenceFrames: 3, FrameSize: 160})
	loud, quiet := constantFrame(160, 5000), constantFrame(160, 10)

	steps := []struct {
		in   []int16
		want Boundary
	}{
		{quiet, 0},
		{loud, SpeechStart},
		{loud, 0},
		{quiet, 0},
		{quiet, 0},
		{loud, 0}, // resets the hangover
		{quiet, 0},
		{quiet, 0},
		{quiet, SpeechEnd},
		{quiet, 0},
	}
	for i, s := range steps {
		if got := vad.ProcessFrame(s.in); got != s.want {
			t.Errorf("Frame %d: expected boundary %d, got %d", i, s.want, got)
		}
	}
	if vad.IsSpeaking() {
		t.Error("Expected detector to be idle after the utterance")
	}
}

func TestVADDetector_Threshold(t *testing.T) {
	samples := constantFrame(160, 300)

	low := NewVADDetector(&VADConfig{EnergyThreshold: 100, SilenceFrames: 10, FrameSize: 160})
	if low.ProcessFrame(samples) != SpeechStart {
		t.Error("Expected speech above a low threshold")
	}
	high := NewVADDetector(&VADConfig{EnergyThreshold: 1000, SilenceFrames: 10, FrameSize: 160})
	if high.ProcessFrame(samples) != 0 || high.IsSpeaking() {
		t.Error("Expected silence below a high threshold")
	}
}

func TestVADDetector_Reset(t *testing.T) {
	vad := NewVADDetector(nil)
	vad.ProcessFrame(constantFrame(320, 5000))
	if !vad.IsSpeaking() {
		t.Fatal("Expected speech before reset")
	}
	vad.Reset()
	if vad.IsSpeaking() {
		t.Error("Expected no speech after reset")
	}
	if vad.ProcessFrame(constantFrame(320, 5000)) != SpeechStart {
		t.Error("Expected a fresh SpeechStart after reset")
	}
}

func TestVADConfigFor(t *testing.T) {
	for rate, want := range map[int]int{16000: 320, 8000: 160, 48000: 960, 10: 1} {
		if got := VADConfigFor(rate).FrameSize; got != want {
			t.Errorf("Rate %d: expected %d samples per frame, got %d", rate, want, got)
		}
	}
}
