package gateway

import (
	"sync"

	"golang.org/x/time/rate"
)

// rateLimits is the per-event-name cap from §4.4's rate-limit table, one
// token bucket per client per event with a 1-second window.
var rateLimits = map[string]rate.Limit{
	EventTerminalInput:  1000,
	EventTerminalResize: 10,
	EventSSHInput:       1000,
	EventSSHResize:      10,
}

const defaultBurst = 5

// silentDropOnLimit lists events where exceeding the cap drops the message
// rather than producing a WS_RATE_LIMITED error reply, per §4.4.
var silentDropOnLimit = map[string]bool{
	EventTerminalResize: true,
	EventSSHResize:      true,
}

// limiterSet holds one bucket per rate-limited event name for a single
// client, created lazily on first use of that event.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLimiterSet() *limiterSet {
	return &limiterSet{limiters: make(map[string]*rate.Limiter)}
}

// allow reports whether event is within its per-second cap for this client.
// Events absent from rateLimits are always allowed.
func (s *limiterSet) allow(event string) bool {
	limit, capped := rateLimits[event]
	if !capped {
		return true
	}
	s.mu.Lock()
	lim, ok := s.limiters[event]
	if !ok {
		lim = rate.NewLimiter(limit, defaultBurst)
		s.limiters[event] = lim
	}
	s.mu.Unlock()
	return lim.Allow()
}
