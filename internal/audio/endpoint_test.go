package audio

import (
	"testing"
)

func constantPCM(samples int, value int16) []byte {
	s := make([]int16, samples)
	for i := range s {
		s[i] = value
	}
	return SamplesToBytes(s)
}

func TestEndpointer_SpeechThenSilence(t *testing.T) {
	e := NewEndpointer(16000, &VADConfig{EnergyThreshold: 500, SilenceFrames: 5, FrameSize: 320})

	// 200ms of speech in odd-sized chunks
	speech := constantPCM(3200, 5000)
	var got []Boundary
	for len(speech) > 0 {
		n := 777
		if n > len(speech) {
			n = len(speech)
		}
		got = append(got, e.Feed(speech[:n])...)
		speech = speech[n:]
	}
	if len(got) != 1 || got[0] != SpeechStart {
		t.Fatalf("Expected a single SpeechStart, got %v", got)
	}
	if !e.Speaking() {
		t.Error("Expected endpointer to be inside an utterance")
	}

	got = e.Feed(constantPCM(320*6, 0))
	if len(got) != 1 || got[0] != SpeechEnd {
		t.Fatalf("Expected SpeechEnd after silence, got %v", got)
	}
	if e.Speaking() {
		t.Error("Expected utterance to be over")
	}
}

func TestEndpointer_PartialFrameIsBuffered(t *testing.T) {
	e := NewEndpointer(16000, nil)

	if got := e.Feed(constantPCM(100, 5000)); len(got) != 0 {
		t.Errorf("Expected no boundaries for a partial frame, got %v", got)
	}
	if got := e.Feed(constantPCM(220, 5000)); len(got) != 1 {
		t.Errorf("Expected SpeechStart once the frame completes, got %v", got)
	}
}

func TestEndpointer_Reset(t *testing.T) {
	e := NewEndpointer(16000, nil)
	e.Feed(constantPCM(640, 5000))
	if !e.Speaking() {
		t.Fatal("Expected speech to be detected")
	}

	e.Reset()
	if e.Speaking() {
		t.Error("Expected no speech after reset")
	}
	if got := e.Feed(constantPCM(100, 5000)); len(got) != 0 {
		t.Errorf("Expected reset to drop buffered audio, got %v", got)
	}
}
