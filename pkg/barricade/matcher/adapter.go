package matcher

import (
	"context"
	"sync"

	"github.com/himanishpuri/barricade/pkg/barricade/audio"
	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/himanishpuri/barricade/pkg/models"
)

// Recognizer identifies the song in a clip. It must return exactly one
// outcome and should stop early when ctx is cancelled.
type Recognizer interface {
	Recognize(ctx context.Context, clipPath string) models.Outcome
}

// RecognizerFunc adapts a function to a Recognizer.
type RecognizerFunc func(ctx context.Context, clipPath string) models.Outcome

func (f RecognizerFunc) Recognize(ctx context.Context, clipPath string) models.Outcome {
	return f(ctx, clipPath)
}

// Adapter runs one matching session at a time against a Recognizer,
// optionally playing the clip while it listens.
type Adapter struct {
	recognizer Recognizer
	player     audio.Player
	log        *logger.Logger

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
}

type AdapterOption func(*Adapter)

func WithPlayer(p audio.Player) AdapterOption {
	return func(a *Adapter) { a.player = p }
}

func WithLogger(l *logger.Logger) AdapterOption {
	return func(a *Adapter) { a.log = l }
}

func NewAdapter(r Recognizer, opts ...AdapterOption) *Adapter {
	a := &Adapter{recognizer: r}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.GetLogger()
	}
	return a
}

// Match runs a single recognition attempt. It never retries. While another
// session is active it fails immediately with a SessionBusy error.
func (a *Adapter) Match(ctx context.Context, clipPath string) models.Outcome {
	const op errors.Op = "matcher.Match"

	a.mu.Lock()
	if a.active {
		a.mu.Unlock()
		return models.Failure{Err: errors.E(op, errors.SessionBusy)}
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	a.active = true
	a.cancel = cancel
	a.mu.Unlock()

	defer a.endSession()

	if a.player != nil {
		if err := a.player.Play(sessionCtx, clipPath); err != nil {
			a.log.Warnf("clip playback failed: %v", err)
		}
	}

	outcome := a.recognizer.Recognize(sessionCtx, clipPath)
	if err := sessionCtx.Err(); err != nil {
		return models.Failure{Err: errors.E(op, errors.Canceled, err)}
	}
	if outcome == nil {
		return models.Failure{Err: errors.E(op, errors.MatchError, "recognizer returned no outcome")}
	}
	if f, ok := outcome.(models.Failure); ok {
		switch {
		case f.Err == nil:
			f.Err = errors.E(op, errors.MatchError, "recognizer failed")
		case !errors.Is(errors.MatchError, f.Err):
			f.Err = errors.E(op, errors.MatchError, f.Err)
		}
		return f
	}
	return outcome
}

// Stop ends the active session: playback first, then the recognizer context.
func (a *Adapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return
	}
	if a.player != nil {
		a.player.Stop()
	}
	a.cancel()
}

// Active reports whether a session is running.
func (a *Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *Adapter) endSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.player != nil {
		a.player.Stop()
	}
	a.cancel()
	a.active = false
	a.cancel = nil
}
