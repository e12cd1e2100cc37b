package http

import (
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
)

// SessionNotice remembers why the last session ended so the UI can show a
// "session expired" banner. A successful login clears it.
type SessionNotice struct {
	mu   sync.RWMutex
	last *domain.LogoutSignal
}

// NewSessionNotice subscribes to bus. The returned function unsubscribes.
func NewSessionNotice(bus *events.Bus[domain.LogoutSignal]) (*SessionNotice, func()) {
	n := &SessionNotice{}
	return n, bus.Subscribe(n.record)
}

func (n *SessionNotice) record(sig domain.LogoutSignal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = &sig
}

func (n *SessionNotice) Last() (domain.LogoutSignal, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.last == nil {
		return domain.LogoutSignal{}, false
	}
	return *n.last, true
}

func (n *SessionNotice) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = nil
}
