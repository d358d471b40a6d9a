package live

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

type scriptedSource struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (s *scriptedSource) ReadFrame(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return 0, io.EOF
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	n := copy(buf, frame)
	return n, nil
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type collectingSender struct {
	mu     sync.Mutex
	frames [][]byte
	fail   map[int]error // 0-based call index -> error
	calls  int
}

func (c *collectingSender) SendAudio(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	c.calls++
	if err, ok := c.fail[idx]; ok {
		return err
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	c.frames = append(c.frames, cp)
	return nil
}

func waitDone(t *testing.T, p *CapturePipeline) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("capture loop did not exit")
	}
}

func TestCapturePipeline_ForwardsFramesUntilEOF(t *testing.T) {
	src := &scriptedSource{frames: [][]byte{
		make([]byte, 8192),
		make([]byte, 8192),
		make([]byte, 4096), // short final frame
	}}
	sender := &collectingSender{}

	p, err := NewCapturePipeline(src, sender, 4096, nil)
	if err != nil {
		t.Fatalf("NewCapturePipeline: %v", err)
	}
	p.Start(context.Background())
	waitDone(t, p)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.frames) != 3 {
		t.Fatalf("forwarded %d frames, want 3", len(sender.frames))
	}
	if len(sender.frames[2]) != 4096 {
		t.Fatalf("short frame forwarded as %d bytes, want 4096", len(sender.frames[2]))
	}
}

func TestCapturePipeline_SendFailureDoesNotStopCapture(t *testing.T) {
	src := &scriptedSource{frames: [][]byte{
		make([]byte, 8192),
		make([]byte, 8192),
		make([]byte, 8192),
	}}
	sender := &collectingSender{fail: map[int]error{1: errors.New("socket busy")}}

	p, err := NewCapturePipeline(src, sender, 4096, nil)
	if err != nil {
		t.Fatalf("NewCapturePipeline: %v", err)
	}
	p.Start(context.Background())
	waitDone(t, p)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if sender.calls != 3 {
		t.Fatalf("send attempts = %d, want 3", sender.calls)
	}
	if len(sender.frames) != 2 {
		t.Fatalf("delivered frames = %d, want 2", len(sender.frames))
	}
}

func TestCapturePipeline_StopClosesSource(t *testing.T) {
	src := &scriptedSource{}
	p, err := NewCapturePipeline(src, &collectingSender{}, 4096, nil)
	if err != nil {
		t.Fatalf("NewCapturePipeline: %v", err)
	}
	p.Start(context.Background())
	p.Stop()
	p.Stop() // idempotent
	waitDone(t, p)

	src.mu.Lock()
	defer src.mu.Unlock()
	if !src.closed {
		t.Fatal("source not closed after Stop")
	}
}

func TestNewCapturePipeline_Validation(t *testing.T) {
	if _, err := NewCapturePipeline(nil, &collectingSender{}, 4096, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
	if _, err := NewCapturePipeline(&scriptedSource{}, nil, 4096, nil); err == nil {
		t.Fatal("expected error for nil sender")
	}
}
