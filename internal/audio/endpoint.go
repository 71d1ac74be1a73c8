package audio

// Boundary marks an utterance edge found by an Endpointer.
type Boundary int

const (
	SpeechStart Boundary = iota + 1
	SpeechEnd
)

// Endpointer regroups arbitrarily sized PCM chunks into fixed VAD frames and
// reports utterance boundaries. It is not safe for concurrent use.
type Endpointer struct {
	vad   *VADDetector
	ring  *RingBuffer
	frame []byte
}

// NewEndpointer creates an endpointer for 16-bit mono PCM at sampleRate.
// A nil config selects VADConfigFor(sampleRate).
func NewEndpointer(sampleRate int, config *VADConfig) *Endpointer {
	if config == nil {
		config = VADConfigFor(sampleRate)
	}
	frameBytes := config.FrameSize * 2
	return &Endpointer{
		vad:   NewVADDetector(config),
		ring:  NewRingBuffer(frameBytes*8 + 1),
		frame: make([]byte, frameBytes),
	}
}

// Feed consumes pcm and returns the boundaries it completed, in order.
func (e *Endpointer) Feed(pcm []byte) []Boundary {
	var out []Boundary
	for len(pcm) > 0 {
		n := e.ring.Write(pcm)
		pcm = pcm[n:]
		for e.ring.Available() >= len(e.frame) {
			e.ring.Read(e.frame)
			samples, _ := BytesToSamples(e.frame)
			if b := e.vad.ProcessFrame(samples); b != 0 {
				out = append(out, b)
			}
		}
	}
	return out
}

// Speaking reports whether the last processed frame was inside an utterance.
func (e *Endpointer) Speaking() bool {
	return e.vad.IsSpeaking()
}

// Reset drops buffered audio and detector state.
func (e *Endpointer) Reset() {
	e.ring.Clear()
	e.vad.Reset()
}
