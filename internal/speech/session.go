package speech

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
)

// TextHandler consumes one transcribed utterance.
type TextHandler func(ctx context.Context, text string)

// Session hands recorded utterances from an audio-capture callback to a
// processing loop. This is the only genuinely concurrent seam in the
// assistant: the capture side calls Offer from its own goroutine (or
// C callback); the processing side drains a bounded queue sequentially.
// When the queue is full, new utterances are dropped rather than blocking
// the capture callback.
type Session struct {
	transcriber Transcriber
	handle      TextHandler

	queue   chan []byte
	running atomic.Bool

	// ContentType describes the audio offered to this session.
	ContentType string
}

// NewSession creates a session with the given queue bound. A queueSize of
// zero or less falls back to a small default.
func NewSession(transcriber Transcriber, handle TextHandler, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = 4
	}
	return &Session{
		transcriber: transcriber,
		handle:      handle,
		queue:       make(chan []byte, queueSize),
		ContentType: "audio/wav",
	}
}

// Offer enqueues one recorded utterance without blocking. It reports false
// when the session is not running or the queue is full (the utterance is
// dropped in both cases).
func (s *Session) Offer(audio []byte) bool {
	if !s.running.Load() || len(audio) == 0 {
		return false
	}
	select {
	case s.queue <- audio:
		return true
	default:
		slog.Warn("audio queue full, dropping utterance", "bytes", len(audio))
		return false
	}
}

// Run processes queued utterances until the context is cancelled: each one
// is transcribed and, if non-blank, passed to the handler. Utterances are
// processed strictly one at a time.
func (s *Session) Run(ctx context.Context) {
	s.running.Store(true)
	defer s.running.Store(false)
	slog.Info("voice session started", "queue_size", cap(s.queue))

	for {
		select {
		case <-ctx.Done():
			slog.Info("voice session stopped")
			return
		case audio := <-s.queue:
			text, err := s.transcriber.Transcribe(ctx, audio, s.ContentType)
			if err != nil {
				slog.Error("transcription failed", "error", err)
				continue
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			slog.Info("transcribed utterance", "text", text)
			s.handle(ctx, text)
		}
	}
}

// Running reports whether the session is accepting audio.
func (s *Session) Running() bool {
	return s.running.Load()
}
