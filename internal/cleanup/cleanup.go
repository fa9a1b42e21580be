// Package cleanup is the Cleanup Service: a periodic sweep that expires idle
// sessions and enforces the max-live-session cap, grounded on the teacher's
// SessionManager.cleanupLoop/cleanup pair (ticker-driven sweep under a single
// lock) and widened per the richer session lifecycle into idle-timeout,
// max-session, and orphan-reporting passes.
package cleanup

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wireterm/termstation/internal/session"
)

// Defaults mirror the env-configurable thresholds.
const (
	DefaultIdleTimeout     = 48 * time.Hour
	DefaultMaxSessions     = 400
	DefaultCheckInterval   = 5 * time.Minute
)

// SessionLister is the slice of the Session Manager the Cleanup Service
// needs: enumerate tracked sessions, enumerate live ShellHost shells by
// name, and terminate a session by id.
type SessionLister interface {
	ListAll() []*session.Session
	LiveShellNames() []string
	TerminateSession(sessionID string) error
}

// Stats reports what the most recent sweep found; each sweep replaces it.
type Stats struct {
	LastRunAt            time.Time
	ShellsExamined       int
	OrphansFound         int
	SessionsTerminatedByIdle int
	SessionsTerminatedByCap  int
}

// Service runs the periodic sweep.
type Service struct {
	idleTimeout   time.Duration
	maxSessions   int
	checkInterval time.Duration

	manager SessionLister

	mu    sync.Mutex
	stats Stats

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Options configures a Service. A zero value for any field falls back to
// its package default.
type Options struct {
	IdleTimeout   time.Duration
	MaxSessions   int
	CheckInterval time.Duration
}

// New constructs a Service. Call Start to begin the periodic sweep.
func New(manager SessionLister, opts Options) *Service {
	idleTimeout := opts.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	checkInterval := opts.CheckInterval
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}
	return &Service{
		idleTimeout:   idleTimeout,
		maxSessions:   maxSessions,
		checkInterval: checkInterval,
		manager:       manager,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start runs the sweep loop in a background goroutine. Call Stop to release
// it; it is part of the shutdown list every background task registers in
// per the scoped-acquisition rule.
func (s *Service) Start() {
	go s.loop()
}

func (s *Service) loop() {
	defer close(s.doneCh)
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("cleanup: sweep loop panic: %v", r)
		}
	}()
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

// Stop halts the sweep loop. Idempotent.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// Sweep runs one cleanup pass: orphan detection, idle-timeout eviction, then
// cap enforcement. Each step logs and continues past individual termination
// failures so one stuck session never blocks the rest of the sweep.
func (s *Service) Sweep() {
	sessions := s.manager.ListAll()
	live := s.manager.LiveShellNames()

	tracked := make(map[string]bool, len(sessions))
	for _, sess := range sessions {
		tracked[sess.ID] = true
	}
	orphans := 0
	for _, name := range live {
		if !tracked[name] {
			orphans++
		}
	}

	now := time.Now()
	var idleEvicted, capEvicted int

	var alive []*session.Session
	for _, sess := range sessions {
		if sess.Status() == session.StatusTerminated {
			continue
		}
		if now.Sub(sess.LastActiveAt()) > s.idleTimeout {
			if err := s.manager.TerminateSession(sess.ID); err != nil {
				logrus.Warnf("cleanup: idle-terminate %s failed: %v", sess.ID, err)
				continue
			}
			idleEvicted++
			continue
		}
		alive = append(alive, sess)
	}

	if len(alive) > s.maxSessions {
		sort.Slice(alive, func(i, j int) bool {
			return alive[i].LastActiveAt().Before(alive[j].LastActiveAt())
		})
		overflow := len(alive) - s.maxSessions
		for _, sess := range alive[:overflow] {
			if err := s.manager.TerminateSession(sess.ID); err != nil {
				logrus.Warnf("cleanup: cap-terminate %s failed: %v", sess.ID, err)
				continue
			}
			capEvicted++
		}
	}

	s.mu.Lock()
	s.stats = Stats{
		LastRunAt:                now,
		ShellsExamined:           len(live),
		OrphansFound:             orphans,
		SessionsTerminatedByIdle: idleEvicted,
		SessionsTerminatedByCap:  capEvicted,
	}
	s.mu.Unlock()

	logrus.Infof("cleanup: examined=%d orphans=%d idle_terminated=%d cap_terminated=%d",
		len(live), orphans, idleEvicted, capEvicted)
}

// LastStats returns the most recent sweep's results.
func (s *Service) LastStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
