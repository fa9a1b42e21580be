package buffer

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PersistenceStore is the narrow slice of the Persistence Store that the
// buffer engine needs: one transaction per session per flush.
type PersistenceStore interface {
	SaveBufferSnapshot(sessionID, content string, totalLines int) error
	LoadBufferSnapshot(sessionID string) (content string, totalLines int, found bool, err error)
}

// Flush persists every buffer whose content changed since its last flush.
// Flushes are idempotent (a full-content overwrite, not an append) so a
// retried flush after a transient store failure never double-writes.
// Persistence failures are logged and left for the next tick; they never
// propagate to the caller.
func (e *Engine) Flush(store PersistenceStore) {
	if store == nil {
		return
	}
	e.mu.RLock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	for _, id := range ids {
		s, ok := e.get(id)
		if !ok {
			continue
		}
		s.mu.Lock()
		if !s.dirty {
			s.mu.Unlock()
			continue
		}
		content := s.fullLocked()
		total := s.totalLinesEverWritten
		s.mu.Unlock()

		if err := store.SaveBufferSnapshot(id, content, total); err != nil {
			logrus.Warnf("buffer: flush failed for session %s: %v", id, err)
			continue
		}

		s.mu.Lock()
		s.dirty = false
		s.lastFlushAt = time.Now()
		s.mu.Unlock()
	}
}

// LoadBuffer rehydrates a session's buffer content from the store if a
// snapshot is present. The content is split on '\n' into closed lines (only
// the most recent maxLines are kept); any text after the last newline
// becomes the open tail, which the next Append continues. Returns whether
// hydration occurred.
func (e *Engine) LoadBuffer(sessionID string, store PersistenceStore) (bool, error) {
	if store == nil {
		return false, nil
	}
	content, total, found, err := store.LoadBufferSnapshot(sessionID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	e.Create(sessionID)
	s, _ := e.get(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if content == "" {
		s.totalLinesEverWritten = total
		return true, nil
	}
	lines := splitPreservingTail(content)
	s.lines = lines.closed
	if len(s.lines) > s.maxLines {
		s.lines = s.lines[len(s.lines)-s.maxLines:]
	}
	s.openTail = lines.tail
	s.hasTail = lines.hasTail
	s.totalLinesEverWritten = total
	return true, nil
}

type splitLines struct {
	closed  []string
	tail    string
	hasTail bool
}

func splitPreservingTail(content string) splitLines {
	var out splitLines
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			out.closed = append(out.closed, content[start:i])
			start = i + 1
		}
	}
	if start < len(content) {
		out.tail = content[start:]
		out.hasTail = true
	}
	return out
}

// flushLoop is a background ticker calling Flush at a fixed interval. Start
// it once per engine; Destroy cancels it.
type flushLoop struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// StartFlushLoop launches the periodic flush ticker. Destroy stops it. Safe
// to call at most once per Engine lifetime.
func (e *Engine) StartFlushLoop(interval time.Duration, store PersistenceStore) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	fl := &flushLoop{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logrus.Errorf("buffer: flush loop panic: %v", r)
			}
		}()
		for {
			select {
			case <-fl.ticker.C:
				e.Flush(store)
			case <-fl.done:
				return
			}
		}
	}()

	stop := func() {
		fl.once.Do(func() {
			fl.ticker.Stop()
			close(fl.done)
		})
	}
	e.stopFlushMu.Lock()
	e.stopFlush = stop
	e.stopFlushMu.Unlock()
}
