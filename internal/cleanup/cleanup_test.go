package cleanup

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/wireterm/termstation/internal/buffer"
	"github.com/wireterm/termstation/internal/session"
	"github.com/wireterm/termstation/internal/shellhost"
	"github.com/wireterm/termstation/internal/status"
)

// fakeHandle is a Handle that never produces output, so readLoop just
// blocks until Close.
type fakeHandle struct {
	name string
	done chan struct{}
	once sync.Once
}

func newFakeHandle(name string) *fakeHandle { return &fakeHandle{name: name, done: make(chan struct{})} }

func (h *fakeHandle) Read(p []byte) (int, error) { <-h.done; return 0, io.EOF }
func (h *fakeHandle) Write(p []byte) (int, error) { return len(p), nil }
func (h *fakeHandle) Name() string                { return h.name }
func (h *fakeHandle) Resize(cols, rows uint16) error { return nil }
func (h *fakeHandle) Done() <-chan struct{}       { return h.done }
func (h *fakeHandle) ExitCode() (int, bool)       { return 0, false }
func (h *fakeHandle) Close() error {
	h.once.Do(func() { close(h.done) })
	return nil
}

type fakeHost struct {
	mu      sync.Mutex
	handles map[string]*fakeHandle
}

func newFakeHost() *fakeHost { return &fakeHost{handles: make(map[string]*fakeHandle)} }

func (f *fakeHost) Spawn(name string, desc shellhost.Descriptor) (shellhost.Handle, error) {
	h := newFakeHandle(name)
	f.mu.Lock()
	f.handles[name] = h
	f.mu.Unlock()
	return h, nil
}

func (f *fakeHost) Attach(name string) (shellhost.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.handles[name]
	if !ok {
		return nil, shellhost.ErrNotFound
	}
	return h, nil
}

func (f *fakeHost) List() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.handles))
	for n := range f.handles {
		out = append(out, n)
	}
	return out
}

func (f *fakeHost) Kill(name string) error {
	f.mu.Lock()
	h, ok := f.handles[name]
	if ok {
		delete(f.handles, name)
	}
	f.mu.Unlock()
	if !ok {
		return nil
	}
	return h.Close()
}

type fakeStore struct {
	mu   sync.Mutex
	recs map[string]session.PersistedSession
}

func newFakeStore() *fakeStore { return &fakeStore{recs: make(map[string]session.PersistedSession)} }

func (f *fakeStore) ListSessionsByProject(projectID string) ([]session.PersistedSession, error) {
	return nil, nil
}
func (f *fakeStore) ListAllSessions() ([]session.PersistedSession, error) { return nil, nil }
func (f *fakeStore) SaveSession(p session.PersistedSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[p.ID] = p
	return nil
}
func (f *fakeStore) DeleteSession(sessionID string) error { return nil }

func newTestManager() *session.Manager {
	return session.New(session.Config{
		LocalHost: newFakeHost(),
		Buffers:   buffer.New(100),
		Detector:  status.New(status.Options{Debounce: -1}, func(status.ChangeEvent) {}),
		Store:     newFakeStore(),
	})
}

func TestSweepReportsOrphans(t *testing.T) {
	mgr := newTestManager()
	mgr.CreateTerminalSession("cli_1", "prj_1", session.LocalDescriptor{Shell: "/bin/sh"})

	host := mgr.LiveShellNames()
	if len(host) != 1 {
		t.Fatalf("expected 1 live shell before orphan injection, got %d", len(host))
	}

	svc := New(&orphanInjectingLister{mgr}, Options{CheckInterval: time.Hour})

	svc.Sweep()
	stats := svc.LastStats()
	if stats.OrphansFound != 1 {
		t.Fatalf("expected 1 orphan, got %d", stats.OrphansFound)
	}
}

// orphanInjectingLister reports one extra live shell name the Manager never
// tracked, simulating a ShellHost entry with no session record.
type orphanInjectingLister struct{ *session.Manager }

func (o *orphanInjectingLister) LiveShellNames() []string {
	return append(o.Manager.LiveShellNames(), "untracked_shell")
}

func TestSweepTerminatesIdleSessions(t *testing.T) {
	mgr := newTestManager()
	sess, err := mgr.CreateTerminalSession("cli_1", "prj_1", session.LocalDescriptor{Shell: "/bin/sh"})
	if err != nil {
		t.Fatalf("CreateTerminalSession: %v", err)
	}

	svc := New(mgr, Options{IdleTimeout: 5 * time.Millisecond, CheckInterval: time.Hour})
	time.Sleep(15 * time.Millisecond)
	svc.Sweep()

	if sess.Status() != session.StatusTerminated {
		t.Fatalf("expected idle session terminated, got %v", sess.Status())
	}
	if svc.LastStats().SessionsTerminatedByIdle != 1 {
		t.Fatalf("expected 1 idle termination, got %d", svc.LastStats().SessionsTerminatedByIdle)
	}
}

func TestSweepEnforcesMaxSessionsOldestFirst(t *testing.T) {
	mgr := newTestManager()
	var sessions []*session.Session
	for i := 0; i < 3; i++ {
		sess, err := mgr.CreateTerminalSession("cli_1", "prj_1", session.LocalDescriptor{Shell: "/bin/sh"})
		if err != nil {
			t.Fatalf("CreateTerminalSession: %v", err)
		}
		sessions = append(sessions, sess)
		time.Sleep(5 * time.Millisecond)
	}

	svc := New(mgr, Options{MaxSessions: 2, CheckInterval: time.Hour})
	svc.Sweep()

	if sessions[0].Status() != session.StatusTerminated {
		t.Fatalf("expected oldest session terminated, got %v", sessions[0].Status())
	}
	if sessions[2].Status() == session.StatusTerminated {
		t.Fatalf("expected newest session to survive the cap")
	}
	if svc.LastStats().SessionsTerminatedByCap != 1 {
		t.Fatalf("expected 1 cap termination, got %d", svc.LastStats().SessionsTerminatedByCap)
	}
}

func TestDefaultsApplyWhenUnset(t *testing.T) {
	svc := New(newTestManager(), Options{})
	if svc.idleTimeout != DefaultIdleTimeout {
		t.Fatalf("expected default idle timeout, got %v", svc.idleTimeout)
	}
	if svc.maxSessions != DefaultMaxSessions {
		t.Fatalf("expected default max sessions, got %d", svc.maxSessions)
	}
	if svc.checkInterval != DefaultCheckInterval {
		t.Fatalf("expected default check interval, got %v", svc.checkInterval)
	}
}

func TestStopIsIdempotentAndHalts(t *testing.T) {
	svc := New(newTestManager(), Options{CheckInterval: 10 * time.Millisecond})
	svc.Start()
	time.Sleep(25 * time.Millisecond)
	svc.Stop()
	svc.Stop()
}
