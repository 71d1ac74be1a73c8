package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV writes mono 16-bit PCM into w as a RIFF/WAVE container.
// The encoder patches the header sizes on Close, hence the io.WriteSeeker.
func EncodeWAV(w io.WriteSeeker, pcm []byte, sampleRate int) error {
	samples, err := BytesToSamples(pcm)
	if err != nil {
		return err
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// TempWAV encodes pcm into a temporary WAV file and returns it positioned at
// the start. Closing the returned reader removes the file.
func TempWAV(pcm []byte, sampleRate int) (io.ReadCloser, error) {
	file, err := os.CreateTemp("", "voiceapi_*.wav")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	if err := EncodeWAV(file, pcm, sampleRate); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, fmt.Errorf("rewind wav: %w", err)
	}
	return &tempFile{File: file}, nil
}

type tempFile struct {
	*os.File
}

func (t *tempFile) Close() error {
	err := t.File.Close()
	os.Remove(t.File.Name())
	return err
}
