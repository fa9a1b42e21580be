// Package status implements the Status Detector: a regex pattern registry
// that classifies each session's recent output into an activity status
// (idle, working, waiting, error), and emits status:change transitions.
// Grounded on the teacher's output-driven state tracking, generalized here
// into an explicit, priority-ordered pattern registry per §4.2.
package status

import (
	"strings"
	"sync"
	"time"
)

const windowCap = 2000

// ChangeEvent is emitted whenever detect or setStatus produces a transition.
type ChangeEvent struct {
	SessionID       string
	PreviousStatus  Activity
	NewStatus       Activity
	MatchedPattern  string
	Timestamp       time.Time
}

// OnChange is called synchronously from within detect/setStatus. Handlers
// must not block or re-enter the Detector.
type OnChange func(ChangeEvent)

type sessionState struct {
	mu       sync.Mutex
	window   strings.Builder
	current  Activity
}

// Options configures a Detector at construction time.
type Options struct {
	DisabledPatternIDs []string
	CustomPatterns     []Pattern
	LookbackLines      int
	Debounce           time.Duration
}

// Detector is the Status Detector. One instance is shared by every session;
// per-session state lives in an internal map keyed by session id.
type Detector struct {
	reg *registry

	lookbackLines int
	debounce      time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionState
	lastEval map[string]time.Time

	onChange OnChange
}

// New constructs a Detector with the baked-in default pattern set, minus any
// ids in opts.DisabledPatternIDs, plus opts.CustomPatterns layered on top.
func New(opts Options, onChange OnChange) *Detector {
	lookback := opts.LookbackLines
	if lookback <= 0 {
		lookback = 5
	}
	// Zero means "unset, use the default"; a negative value is an explicit
	// opt-out of debouncing (used by tests that assert on back-to-back calls).
	debounce := opts.Debounce
	switch {
	case debounce == 0:
		debounce = 100 * time.Millisecond
	case debounce < 0:
		debounce = 0
	}

	disabled := make(map[string]bool, len(opts.DisabledPatternIDs))
	for _, id := range opts.DisabledPatternIDs {
		disabled[id] = true
	}

	d := &Detector{
		reg:           newRegistry(),
		lookbackLines: lookback,
		debounce:      debounce,
		sessions:      make(map[string]*sessionState),
		lastEval:      make(map[string]time.Time),
		onChange:      onChange,
	}

	for _, p := range defaultPatterns() {
		if disabled[p.ID] {
			continue
		}
		_ = d.reg.add(p) // baked-in patterns are known-good at compile time
	}
	for _, p := range opts.CustomPatterns {
		_ = d.AddPattern(p)
	}
	return d
}

func (d *Detector) stateFor(sessionID string) *sessionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[sessionID]
	if !ok {
		s = &sessionState{current: Idle}
		d.sessions[sessionID] = s
	}
	return s
}

func tailLines(s string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func truncateWindow(sb *strings.Builder, appended string) string {
	combined := sb.String() + appended
	if len(combined) > windowCap {
		combined = combined[len(combined)-windowCap:]
	}
	sb.Reset()
	sb.WriteString(combined)
	return combined
}

// Detect runs the detection pipeline for a chunk of raw (possibly
// ANSI-laden) output and returns the full transition if one occurred, or
// (ChangeEvent{}, false) if none did. shell scopes which shell-specific
// patterns are eligible (e.g. ssh password prompts only apply to ShellSSH).
func (d *Detector) Detect(sessionID string, shell Shell, raw []byte) (ChangeEvent, bool) {
	clean := stripANSI(string(raw))

	st := d.stateFor(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	window := truncateWindow(&st.window, clean)

	d.mu.Lock()
	last, seen := d.lastEval[sessionID]
	skip := seen && time.Since(last) < d.debounce
	if !skip {
		d.lastEval[sessionID] = time.Now()
	}
	d.mu.Unlock()
	if skip {
		return ChangeEvent{}, false
	}

	tail := tailLines(window, d.lookbackLines)

	current := st.current

	if match := d.reg.firstMatch(shell, tail); match != nil {
		if match.Status == current {
			return ChangeEvent{}, false
		}
		previous := current
		st.current = match.Status
		evt := d.emit(sessionID, previous, match.Status, match.Name)
		return evt, true
	}

	if current == Waiting && strings.TrimSpace(clean) != "" {
		previous := current
		st.current = Working
		evt := d.emit(sessionID, previous, Working, "")
		return evt, true
	}

	return ChangeEvent{}, false
}

// SetStatus forces a transition, emitting status:change only if the status
// actually changes.
func (d *Detector) SetStatus(sessionID string, status Activity) {
	st := d.stateFor(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.current == status {
		return
	}
	previous := st.current
	st.current = status
	d.emit(sessionID, previous, status, "")
}

// GetStatus returns the current activity for sessionID, defaulting to idle
// for sessions the detector has not seen.
func (d *Detector) GetStatus(sessionID string) Activity {
	d.mu.Lock()
	s, ok := d.sessions[sessionID]
	d.mu.Unlock()
	if !ok {
		return Idle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ClearSession drops a session's window and status.
func (d *Detector) ClearSession(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, sessionID)
	delete(d.lastEval, sessionID)
}

// AddPattern compiles and inserts/replaces a pattern by id, re-sorting the
// registry by priority descending.
func (d *Detector) AddPattern(p Pattern) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reg.add(p)
}

// RemovePattern drops a pattern by id, reporting whether one existed.
func (d *Detector) RemovePattern(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reg.remove(id)
}

// GetPatterns returns a priority-ordered snapshot of the registry, with
// compiled regexes omitted.
func (d *Detector) GetPatterns() []Pattern {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reg.snapshot()
}

func (d *Detector) emit(sessionID string, previous, next Activity, matched string) ChangeEvent {
	evt := ChangeEvent{
		SessionID:      sessionID,
		PreviousStatus: previous,
		NewStatus:      next,
		MatchedPattern: matched,
		Timestamp:      time.Now(),
	}
	if d.onChange != nil {
		d.onChange(evt)
	}
	return evt
}
