package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/live"
)

// micSource captures 16-bit mono PCM from the default microphone. It
// implements live.FrameSource.
type micSource struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

// openMic starts the default capture device at the given sample rate. The
// error is surfaced to the engine, which downgrades to text-only input.
func openMic(sampleRate int) (*micSource, error) {
	malgoCfg := malgo.ContextConfig{}
	malgoCfg.ThreadPriority = malgo.ThreadPriorityRealtime

	allocCtx, err := malgo.InitContext(nil, malgoCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	m := &micSource{ctx: allocCtx}
	m.cond = sync.NewCond(&m.mu)

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = 1
	deviceCfg.SampleRate = uint32(sampleRate)
	deviceCfg.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.mu.Lock()
			m.buf = append(m.buf, input...)
			m.mu.Unlock()
			m.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(allocCtx.Context, deviceCfg, callbacks)
	if err != nil {
		_ = allocCtx.Uninit()
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = allocCtx.Uninit()
		return nil, fmt.Errorf("start microphone: %w", err)
	}
	m.device = device
	return m, nil
}

// ReadFrame blocks until captured audio is available, then fills buf.
func (m *micSource) ReadFrame(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.buf) == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return 0, io.EOF
	}
	n := copy(buf, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

func (m *micSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()

	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
	}
	if m.ctx != nil {
		_ = m.ctx.Uninit()
	}
	return nil
}

// speakerSink plays scheduled agent speech through the default output
// device. It implements live.Sink; Reset is the barge-in path and discards
// everything buffered but not yet heard.
type speakerSink struct {
	otoCtx *oto.Context

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	player  *oto.Player
	playing bool
	closed  bool
}

// openSpeaker starts the output device at the given sample rate.
func openSpeaker(sampleRate int) (*speakerSink, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms at 24kHz mono 16-bit keeps latency low at the cost of
		// glitch headroom.
		BufferSize: 4800,
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	s := &speakerSink{otoCtx: otoCtx}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Write queues PCM for playback, lazily starting the player on first audio.
func (s *speakerSink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSpeakerClosed
	}
	s.buf = append(s.buf, pcm...)
	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
	return nil
}

// Read implements io.Reader for oto.Player; oto pulls audio from here.
func (s *speakerSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed && len(s.buf) == 0 {
		// Feed silence so oto drains instead of underrunning.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Reset discards queued audio and tears down the current player so the next
// Write starts clean.
func (s *speakerSink) Reset() error {
	s.mu.Lock()
	s.buf = s.buf[:0]
	player := s.player
	s.player = nil
	s.playing = false
	s.mu.Unlock()

	if player != nil {
		player.Pause()
		_ = player.Close()
	}
	return nil
}

func (s *speakerSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		_ = player.Close()
	}
	return nil
}

var errSpeakerClosed = errors.New("speaker closed")

var _ live.FrameSource = (*micSource)(nil)
var _ live.Sink = (*speakerSink)(nil)
