package audio

// SplitFrames cuts payload into consecutive frames of at most size bytes,
// preserving order. The frames share payload's backing array. A payload
// shorter than size is returned as a single frame; an empty payload yields
// no frames. A non-positive size disables splitting.
func SplitFrames(payload []byte, size int) [][]byte {
	if len(payload) == 0 {
		return nil
	}
	if size <= 0 || len(payload) <= size {
		return [][]byte{payload}
	}

	frames := make([][]byte, 0, (len(payload)+size-1)/size)
	for i := 0; i < len(payload); i += size {
		end := i + size
		if end > len(payload) {
			end = len(payload)
		}
		frames = append(frames, payload[i:end:end])
	}
	return frames
}
