package queue

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		if err := q.Push(i); err != nil {
			t.Fatalf("Push(%d) failed: %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		v, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if v != i {
			t.Errorf("Expected %d, got %d", i, v)
		}
	}
}

func TestQueue_CloseWriteDrains(t *testing.T) {
	q := New[string]()
	q.Push("a")
	q.Push("b")
	q.CloseWrite()

	if err := q.Push("c"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after CloseWrite, got %v", err)
	}

	for _, want := range []string{"a", "b"} {
		v, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if v != want {
			t.Errorf("Expected %q, got %q", want, v)
		}
	}

	if _, err := q.Pop(context.Background()); err != io.EOF {
		t.Errorf("Expected io.EOF after drain, got %v", err)
	}
}

func TestQueue_CloseWithError(t *testing.T) {
	q := New[int]()
	boom := errors.New("boom")
	q.Push(1)
	q.CloseWithError(boom)
	q.CloseWrite() // second close is ignored

	if v, _ := q.Pop(context.Background()); v != 1 {
		t.Errorf("Expected buffered item 1, got %d", v)
	}
	if _, err := q.Pop(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Expected close error, got %v", err)
	}
}

func TestQueue_Discard(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2)
	q.Discard()

	if q.Len() != 0 {
		t.Errorf("Expected empty queue after Discard, got %d", q.Len())
	}
	if _, err := q.Pop(context.Background()); err != io.EOF {
		t.Errorf("Expected io.EOF after Discard, got %v", err)
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := New[int]()
	got := make(chan int, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(42)

	select {
	case v := <-got:
		if v != 42 {
			t.Errorf("Expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Push")
	}
}

func TestQueue_PopContextCancel(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
