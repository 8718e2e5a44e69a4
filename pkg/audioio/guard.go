package audioio

import (
	"sync"

	"github.com/pkg/errors"
)

// handleGuard enforces at most one live handle per guarded resource.
type handleGuard struct {
	name string

	mu   sync.Mutex
	live bool
}

func newHandleGuard(name string) *handleGuard {
	return &handleGuard{name: name}
}

func (g *handleGuard) acquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.live {
		return errors.Wrapf(ErrAlreadyOpen, "%s already has a live capture handle", g.name)
	}
	g.live = true
	return nil
}

// releaser returns a func that releases the guard at most once.
func (g *handleGuard) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.live = false
			g.mu.Unlock()
		})
	}
}
