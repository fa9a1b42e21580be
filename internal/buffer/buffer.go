// Package buffer implements the Scrollback Buffer Engine: a bounded,
// per-session line buffer used for reconnect replay and statistics. The
// ring-eviction and ANSI-reset-on-replay ideas are carried over from the
// teacher's ManagedSession output buffer, generalized here into a
// line-oriented structure with an explicit disconnect cursor per §3/§4.1.
package buffer

import (
	"strings"
	"sync"
	"time"
)

// ansiReset resets all terminal text attributes. Prepended to every
// GetSnapshot result (GetFull returns the content without it) so a
// truncated escape sequence at an eviction boundary
// never leaks stale formatting into a replay.
const ansiReset = "\x1b[0m"

// Snapshot is the payload returned to a reconnecting client.
type Snapshot struct {
	SessionID           string
	OutputSinceDisconnect string
	DisconnectTime      time.Time
	ReconnectTime       time.Time
}

// Stats summarizes a buffer's current footprint.
type Stats struct {
	CurrentLines          int
	MaxLines              int
	PercentUsed           float64
	TotalLinesEverWritten int
	ApproxBytes           int
}

// session is one buffer's mutable state. All fields are guarded by mu; the
// lock also serializes append/markDisconnect/getSnapshot against each other
// per §5's locking discipline, so a reconnecting client never observes a
// split line or a stale disconnect index.
type session struct {
	mu sync.Mutex

	lines   []string
	openTail string
	hasTail bool

	maxLines              int
	totalLinesEverWritten int

	disconnectIndex    int
	hasDisconnectIndex bool

	disconnectTime time.Time
	dirty          bool
	lastFlushAt    time.Time
}

// Engine owns every session's scrollback buffer.
type Engine struct {
	maxLines int

	mu       sync.RWMutex
	sessions map[string]*session

	stopFlushMu sync.Mutex
	stopFlush   func()
}

// New creates a buffer engine with the given per-session line cap.
func New(maxLines int) *Engine {
	if maxLines <= 0 {
		maxLines = 50000
	}
	return &Engine{
		maxLines: maxLines,
		sessions: make(map[string]*session),
	}
}

// Create is idempotent: if a buffer for sessionID already exists, it is
// preserved untouched.
func (e *Engine) Create(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[sessionID]; ok {
		return
	}
	e.sessions[sessionID] = &session{
		maxLines:    e.maxLines,
		lastFlushAt: time.Time{},
	}
}

func (e *Engine) get(sessionID string) (*session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[sessionID]
	return s, ok
}

// Append splits bytes on '\n' and incorporates them into the session's
// buffer: the first fragment concatenates onto any open tail line; each
// full line closes into lines; the trailing fragment (if any) becomes the
// new open tail. Exceeding maxLines evicts the oldest closed lines in FIFO
// order and re-anchors the disconnect cursor. A write to an unknown session
// is a silent no-op (the caller is expected to log the warning).
func (e *Engine) Append(sessionID string, data []byte) {
	s, ok := e.get(sessionID)
	if !ok {
		return
	}
	if len(data) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parts := strings.Split(string(data), "\n")
	// parts[0] continues the open tail; parts[1:] each close a line except
	// the very last part, which becomes (or continues, if there was only
	// one part) the new open tail.
	if s.hasTail {
		parts[0] = s.openTail + parts[0]
	}

	for i := 0; i < len(parts)-1; i++ {
		s.lines = append(s.lines, parts[i])
		s.totalLinesEverWritten++
		if len(s.lines) > s.maxLines {
			s.lines = s.lines[1:]
			if s.hasDisconnectIndex && s.disconnectIndex > 0 {
				s.disconnectIndex--
			}
		}
	}

	last := parts[len(parts)-1]
	s.openTail = last
	s.hasTail = last != ""

	s.dirty = true
}

// fullLocked returns lines joined by '\n' plus any open tail, without locking
// (caller must hold s.mu).
func (s *session) fullLocked() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(s.lines, "\n"))
	if s.hasTail {
		if len(s.lines) > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(s.openTail)
	}
	return sb.String()
}

// GetFull returns the concatenation of closed lines joined by '\n', plus any
// open tail appended.
func (e *Engine) GetFull(sessionID string) string {
	s, ok := e.get(sessionID)
	if !ok {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullLocked()
}

// GetLastLines returns the last n closed lines joined by '\n'. The open
// tail is not included — it has not yet ended in a newline.
func (e *Engine) GetLastLines(sessionID string, n int) string {
	s, ok := e.get(sessionID)
	if !ok {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || len(s.lines) == 0 {
		return ""
	}
	start := len(s.lines) - n
	if start < 0 {
		start = 0
	}
	return strings.Join(s.lines[start:], "\n")
}

// MarkDisconnect records the current line count as the boundary between
// pre- and post-disconnect content.
func (e *Engine) MarkDisconnect(sessionID string) {
	s, ok := e.get(sessionID)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectIndex = len(s.lines)
	s.hasDisconnectIndex = true
	s.disconnectTime = time.Now()
}

// ClearDisconnect unsets the disconnect marker without reading the buffer.
func (e *Engine) ClearDisconnect(sessionID string) {
	s, ok := e.get(sessionID)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasDisconnectIndex = false
}

// GetSnapshot returns everything from the disconnect cursor to the end of
// the buffer (or the full buffer, if no disconnect marker is set), and
// atomically clears the marker. Replay content is ANSI-reset-prefixed so a
// truncated escape sequence at the eviction boundary never leaks stale
// formatting into the client.
func (e *Engine) GetSnapshot(sessionID string) Snapshot {
	s, ok := e.get(sessionID)
	if !ok {
		return Snapshot{SessionID: sessionID, ReconnectTime: time.Now()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var content string
	disconnectTime := s.disconnectTime
	if s.hasDisconnectIndex {
		idx := s.disconnectIndex
		if idx < 0 {
			idx = 0
		}
		if idx > len(s.lines) {
			idx = len(s.lines)
		}
		var sb strings.Builder
		sb.WriteString(strings.Join(s.lines[idx:], "\n"))
		if s.hasTail {
			if idx < len(s.lines) {
				sb.WriteByte('\n')
			}
			sb.WriteString(s.openTail)
		}
		content = sb.String()
		if content != "" {
			content = ansiReset + content
		}
	} else {
		content = s.fullLocked()
		if content != "" {
			content = ansiReset + content
		}
	}

	s.hasDisconnectIndex = false

	return Snapshot{
		SessionID:             sessionID,
		OutputSinceDisconnect: content,
		DisconnectTime:        disconnectTime,
		ReconnectTime:         time.Now(),
	}
}

// GetStats reports the buffer's current footprint.
func (e *Engine) GetStats(sessionID string) Stats {
	s, ok := e.get(sessionID)
	if !ok {
		return Stats{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	approxBytes := len(s.openTail)
	for _, l := range s.lines {
		approxBytes += len(l)
	}

	percent := 0.0
	if s.maxLines > 0 {
		percent = float64(len(s.lines)) / float64(s.maxLines) * 100
	}

	return Stats{
		CurrentLines:          len(s.lines),
		MaxLines:              s.maxLines,
		PercentUsed:           percent,
		TotalLinesEverWritten: s.totalLinesEverWritten,
		ApproxBytes:           approxBytes,
	}
}

// Clear empties a session's scrollback in place, without dropping the
// buffer entry itself or its line cap. Used by the client-initiated
// terminal:clear event, as distinct from DeleteBuffer's session teardown.
func (e *Engine) Clear(sessionID string) {
	s, ok := e.get(sessionID)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.openTail = ""
	s.hasTail = false
	s.hasDisconnectIndex = false
	s.dirty = true
}

// DeleteBuffer removes a session's buffer and any disconnect cursor.
func (e *Engine) DeleteBuffer(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, sessionID)
}

// Exists reports whether a buffer has been created for sessionID.
func (e *Engine) Exists(sessionID string) bool {
	_, ok := e.get(sessionID)
	return ok
}

// Destroy cancels the periodic-flush timer (if started) and discards all
// in-memory buffers. It does not implicitly flush.
func (e *Engine) Destroy() {
	e.stopFlushMu.Lock()
	stop := e.stopFlush
	e.stopFlush = nil
	e.stopFlushMu.Unlock()
	if stop != nil {
		stop()
	}

	e.mu.Lock()
	e.sessions = make(map[string]*session)
	e.mu.Unlock()
}
