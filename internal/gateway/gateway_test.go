package gateway

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

type fakeHandle struct {
	name string
	done chan struct{}
	once sync.Once
}

func newFakeHandle(name string) *fakeHandle { return &fakeHandle{name: name, done: make(chan struct{})} }

func (h *fakeHandle) Read(p []byte) (int, error)     { <-h.done; return 0, io.EOF }
func (h *fakeHandle) Write(p []byte) (int, error)    { return len(p), nil }
func (h *fakeHandle) Name() string                   { return h.name }
func (h *fakeHandle) Resize(cols, rows uint16) error { return nil }
func (h *fakeHandle) Done() <-chan struct{}          { return h.done }
func (h *fakeHandle) ExitCode() (int, bool)          { return 0, false }
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

// newTestGateway wires a Gateway to a real Manager backed by in-memory
// fakes, exactly as the Session Manager's own tests do, so dispatch tests
// exercise the real fanout path end to end.
func newTestGateway() (*Gateway, *session.Manager, *fakeHost) {
	host := newFakeHost()
	det := status.New(status.Options{Debounce: -1}, func(status.ChangeEvent) {})
	gw := New(Config{Detector: det})

	mgr := session.New(session.Config{
		LocalHost: host,
		Buffers:   buffer.New(100),
		Detector:  det,
		Store:     newFakeStore(),
		Callbacks: gw.Callbacks(),
	})
	gw.AttachManager(mgr)
	return gw, mgr, host
}

func newTestClient(gw *Gateway, id string) *client {
	c := newClient(id, nil)
	gw.registerClient(c)
	return c
}

func drain(c *client) outbound {
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		panic("timed out waiting for outbound message")
	}
}

func TestHandleSessionCreateRepliesWithCorrelationID(t *testing.T) {
	gw, _, _ := newTestGateway()
	c := newTestClient(gw, "cli_1")

	raw := []byte(`{"projectId":"prj_1","type":"local","local":{"shell":"/bin/sh","cols":80,"rows":24}}`)
	gw.handleSessionCreate(c, raw, "cor_1")

	drain(c) // session:status-change fired synchronously inside CreateTerminalSession

	msg := drain(c)
	if msg.Event != EventSessionCreated {
		t.Fatalf("expected %s, got %s", EventSessionCreated, msg.Event)
	}
	if msg.CorrelationID != "cor_1" {
		t.Fatalf("expected correlation id echoed, got %q", msg.CorrelationID)
	}
}

func TestHandleSessionCreateValidationFailure(t *testing.T) {
	gw, _, _ := newTestGateway()
	c := newTestClient(gw, "cli_1")

	raw := []byte(`{"type":"local"}`)
	gw.handleSessionCreate(c, raw, "cor_2")

	msg := drain(c)
	if msg.Event != EventError {
		t.Fatalf("expected error event, got %s", msg.Event)
	}
}

func TestHandleSessionTerminateRepliesViaCallback(t *testing.T) {
	gw, mgr, _ := newTestGateway()
	c := newTestClient(gw, "cli_1")

	sess, err := mgr.CreateTerminalSession("cli_1", "prj_1", session.LocalDescriptor{Shell: "/bin/sh"})
	if err != nil {
		t.Fatalf("CreateTerminalSession: %v", err)
	}
	drain(c) // session:status-change from creation

	raw := []byte(`{"sessionId":"` + sess.ID + `"}`)
	gw.handleSessionTerminate(c, raw, "cor_3")

	msg := drain(c)
	if msg.Event != EventSessionTerminated {
		t.Fatalf("expected %s, got %s", EventSessionTerminated, msg.Event)
	}
	if msg.CorrelationID != "cor_3" {
		t.Fatalf("expected correlation id threaded through callback, got %q", msg.CorrelationID)
	}
}

func TestHandleTerminalInputUnknownSessionRepliesError(t *testing.T) {
	gw, _, _ := newTestGateway()
	c := newTestClient(gw, "cli_1")

	raw := []byte(`{"sessionId":"ghost","data":"hi"}`)
	gw.handleTerminalInput(c, raw, "cor_4")

	msg := drain(c)
	if msg.Event != EventError {
		t.Fatalf("expected error event, got %s", msg.Event)
	}
	payload := msg.Payload.(errorPayload)
	if payload.Code != CodeSessionNotFound {
		t.Fatalf("expected SESSION_NOT_FOUND, got %s", payload.Code)
	}
}

func TestHandlePatternAddAndList(t *testing.T) {
	gw, _, _ := newTestGateway()
	c := newTestClient(gw, "cli_1")

	raw := []byte(`{"id":"pat_custom","regex":"READY>","status":"waiting","priority":500}`)
	gw.handlePatternAdd(c, raw, "cor_5")

	msg := drain(c)
	if msg.Event != EventStatusPatternsList {
		t.Fatalf("expected %s, got %s", EventStatusPatternsList, msg.Event)
	}
}

func TestRateLimiterDropsExcessResizeSilently(t *testing.T) {
	gw, mgr, _ := newTestGateway()
	c := newTestClient(gw, "cli_1")

	sess, _ := mgr.CreateTerminalSession("cli_1", "prj_1", session.LocalDescriptor{Shell: "/bin/sh"})
	drain(c)

	for i := 0; i < defaultBurst+2; i++ {
		c.limiters.allow(EventTerminalResize)
	}
	if c.limiters.allow(EventTerminalResize) {
		t.Fatal("expected resize rate limit to trigger after burst exhausted")
	}

	raw := []byte(`{"event":"terminal:resize","payload":{"sessionId":"` + sess.ID + `","cols":100,"rows":30}}`)
	gw.handleMessage(c, raw)
	if len(c.send) != 0 {
		t.Fatalf("expected excess resize dropped without a reply, got %d queued message(s)", len(c.send))
	}
}

func TestHandleTerminalClearUnknownSession(t *testing.T) {
	gw, _, _ := newTestGateway()
	c := newTestClient(gw, "cli_1")

	raw := []byte(`{"sessionId":"ghost"}`)
	gw.handleTerminalClear(c, raw, "cor_6")

	msg := drain(c)
	if msg.Event != EventError {
		t.Fatalf("expected error event, got %s", msg.Event)
	}
}
