package audio

import (
	"context"
	"os/exec"
	"sync"
)

// Player plays a clip while it is being matched.
type Player interface {
	Play(ctx context.Context, path string) error
	Stop()
}

// FFPlay plays clips headless through ffplay.
type FFPlay struct {
	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewFFPlay() *FFPlay {
	return &FFPlay{}
}

// Play starts playback in the background. A clip already playing is stopped first.
func (p *FFPlay) Play(ctx context.Context, path string) error {
	p.Stop()

	cmd := exec.CommandContext(ctx, "ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", path)
	if err := cmd.Start(); err != nil {
		return err
	}

	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		p.mu.Lock()
		if p.cmd == cmd {
			p.cmd = nil
		}
		p.mu.Unlock()
	}()
	return nil
}

// Stop kills the running ffplay, if any.
func (p *FFPlay) Stop() {
	p.mu.Lock()
	cmd := p.cmd
	p.cmd = nil
	p.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// Playing reports whether a clip is currently playing.
func (p *FFPlay) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}
