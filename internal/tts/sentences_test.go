package tts

import (
	"testing"
)

func TestSentenceBuffer_Add_MultipleSentences(t *testing.T) {
	b := NewSentenceBuffer()

	sentences := b.Add("First sentence. Second sentence! Third? ")
	if len(sentences) != 3 {
		t.Errorf("expected 3 sentences, got %d: %v", len(sentences), sentences)
	}
}

func TestSentenceBuffer_Add_Partial(t *testing.T) {
	b := NewSentenceBuffer()

	if sentences := b.Add("Hello wo"); len(sentences) != 0 {
		t.Errorf("expected 0 sentences for partial, got %d", len(sentences))
	}

	sentences := b.Add("rld. ")
	if len(sentences) != 1 || sentences[0] != "Hello world." {
		t.Errorf("expected ['Hello world.'], got %q", sentences)
	}
}

func TestSentenceBuffer_Abbreviations(t *testing.T) {
	b := NewSentenceBuffer()

	sentences := b.Add("Dr. Smith met Mr. J. Doe at 3.14 p.m. today. Bye. ")
	if len(sentences) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %q", len(sentences), sentences)
	}
	if sentences[1] != "Bye." {
		t.Errorf("expected 'Bye.', got %q", sentences[1])
	}
}

func TestSentenceBuffer_CJK(t *testing.T) {
	b := NewSentenceBuffer()

	sentences := b.Add("你好。今天天气很好！要出去吗？还没")
	want := []string{"你好。", "今天天气很好！", "要出去吗？"}
	if len(sentences) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %q", len(want), len(sentences), sentences)
	}
	for i := range want {
		if sentences[i] != want[i] {
			t.Errorf("sentence %d: expected %q, got %q", i, want[i], sentences[i])
		}
	}
	if b.Pending() != "还没" {
		t.Errorf("expected pending '还没', got %q", b.Pending())
	}
}

func TestSentenceBuffer_Flush(t *testing.T) {
	b := NewSentenceBuffer()

	b.Add("Incomplete sentence without period")
	if remaining := b.Flush(); remaining != "Incomplete sentence without period" {
		t.Errorf("expected remaining text, got %q", remaining)
	}
	if b.Pending() != "" {
		t.Errorf("expected empty buffer after flush, got %q", b.Pending())
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"hello", 1},
		{"Hello there. How are you", 2},
		{"One. Two. Three.", 3},
		{"   ", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := SplitSentences(tt.text); len(got) != tt.want {
			t.Errorf("SplitSentences(%q): expected %d sentences, got %d: %q", tt.text, tt.want, len(got), got)
		}
	}
}
