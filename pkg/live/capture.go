package live

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/core"
)

// FrameSource produces raw 16-bit mono PCM from the input device.
// ReadFrame fills buf and returns the byte count; io.EOF ends the stream.
type FrameSource interface {
	ReadFrame(buf []byte) (int, error)
	Close() error
}

// FrameSender carries one captured frame toward the remote agent. Capture is
// fire-and-forget: a send failure is logged and the next frame proceeds.
type FrameSender interface {
	SendAudio(pcm []byte) error
}

// CapturePipeline pulls fixed-size frames from a FrameSource and forwards
// them upstream. It never buffers more than one frame and never blocks the
// source on a slow sender error path.
type CapturePipeline struct {
	src        FrameSource
	sender     FrameSender
	frameBytes int
	logger     *slog.Logger

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

// NewCapturePipeline creates a pipeline reading frames of frameSamples
// 16-bit samples from src.
func NewCapturePipeline(src FrameSource, sender FrameSender, frameSamples int, logger *slog.Logger) (*CapturePipeline, error) {
	if src == nil {
		return nil, core.NewInvalidRequestError("capture source is required")
	}
	if sender == nil {
		return nil, core.NewInvalidRequestError("frame sender is required")
	}
	if frameSamples <= 0 {
		frameSamples = 4096
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CapturePipeline{
		src:        src,
		sender:     sender,
		frameBytes: frameSamples * 2,
		logger:     logger,
		stopped:    make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start begins the read loop. It returns immediately; the loop runs until
// Stop, context cancellation, or source EOF.
func (p *CapturePipeline) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *CapturePipeline) run(ctx context.Context) {
	defer close(p.done)
	buf := make([]byte, p.frameBytes)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		default:
		}

		n, err := p.src.ReadFrame(buf)
		if n > 0 {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			if serr := p.sender.SendAudio(frame); serr != nil {
				p.logger.Warn("audio frame send failed", "err", serr)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.logger.Warn("capture source read failed", "err", err)
			}
			return
		}
	}
}

// Stop halts the read loop and closes the source. Safe to call more than
// once and safe before Start.
func (p *CapturePipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopped)
		if err := p.src.Close(); err != nil {
			p.logger.Warn("capture source close failed", "err", err)
		}
	})
}

// Done is closed when the read loop has exited.
func (p *CapturePipeline) Done() <-chan struct{} {
	return p.done
}
