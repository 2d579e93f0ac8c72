package engine

import "sync"

// actionGuard serializes operations by name: a second Swap cannot start while
// one is still confirming, but a Swap and a Wrap may run side by side.
type actionGuard struct {
	mu       sync.Mutex
	inFlight map[string]bool
}

func newActionGuard() *actionGuard {
	return &actionGuard{inFlight: make(map[string]bool)}
}

// acquire reserves an action name, reporting false if it is already running
func (g *actionGuard) acquire(action string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight[action] {
		return false
	}
	g.inFlight[action] = true
	return true
}

func (g *actionGuard) release(action string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, action)
}
