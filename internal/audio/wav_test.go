package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"testing"
)

func TestTempWAV_Header(t *testing.T) {
	pcm := constantPCM(1600, 1234)

	r, err := TempWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("TempWAV failed: %v", err)
	}
	name := r.(*tempFile).Name()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Fatalf("Expected RIFF/WAVE header, got %q", data[:12])
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("Expected sample rate 16000 in header, got %d", rate)
	}
	if len(data) != 44+len(pcm) {
		t.Errorf("Expected %d bytes, got %d", 44+len(pcm), len(data))
	}

	if _, err := os.Stat(name); !os.IsNotExist(err) {
		t.Errorf("Expected temp file to be removed on Close, stat err=%v", err)
	}
}

func TestTempWAV_RejectsOddPCM(t *testing.T) {
	if _, err := TempWAV([]byte{1, 2, 3}, 16000); err == nil {
		t.Error("Expected error for odd-length PCM")
	}
}
