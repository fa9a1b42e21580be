package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wireterm/termstation/internal/buffer"
	"github.com/wireterm/termstation/internal/id"
	"github.com/wireterm/termstation/internal/pathutil"
	"github.com/wireterm/termstation/internal/shellhost"
	"github.com/wireterm/termstation/internal/status"
)

// Callbacks are the Event Gateway's hooks into the Session Manager, passed
// once at construction rather than subscribed to implicitly — ownership of
// "who hears about this session" stays explicit and inspectable. Every
// callback is invoked synchronously on the session's output-reader
// goroutine or the calling goroutine of a Manager method; implementations
// must not block.
type Callbacks struct {
	// OnOutput fans raw shell bytes out to sess's current owning client.
	OnOutput func(sess *Session, data []byte)
	// OnStatusChange fans an activity transition out to sess's owner.
	OnStatusChange func(sess *Session, change status.ChangeEvent)
	// OnSessionEvent fans a lifecycle transition (session:status-change,
	// session:terminated) out to sess's owner.
	OnSessionEvent func(sess *Session, eventName string, exitCode *int)
}

// RemoteDialer is the narrow SSH collaborator surface the Manager needs: dial
// an SSH shell and get back a shellhost.Handle-shaped connection. Kept as an
// interface here (rather than importing internal/remoteshell) to avoid a
// buffer/status/session <-> remoteshell import cycle; internal/remoteshell's
// concrete Host satisfies it structurally.
type RemoteDialer interface {
	Spawn(name string, cfg RemoteDialConfig) (shellhost.Handle, error)
	Attach(name string) (shellhost.Handle, error)
	List() []string
	Kill(name string) error
}

// RemoteDialConfig is what a RemoteDialer needs to open an SSH shell.
type RemoteDialConfig struct {
	Host       string
	Port       int
	Username   string
	AuthMethod string
	Password   string
	PrivateKey string
	Cols       uint16
	Rows       uint16
}

// PersistedSessionReader is the slice of the Persistence Store the Manager
// needs at initialize() to rehydrate sessions and discover orphans.
type PersistedSessionReader interface {
	ListSessionsByProject(projectID string) ([]PersistedSession, error)
	ListAllSessions() ([]PersistedSession, error)
	SaveSession(PersistedSession) error
	DeleteSession(sessionID string) error
}

// PersistedSession is the store-shaped shadow of a Session, decoupled from
// internal/store's gorm model so this package does not import store.
type PersistedSession struct {
	ID         string
	Type       Type
	ProjectID  string
	Status     Status
	LocalDesc  *LocalDescriptor
	RemoteDesc *RemoteDescriptor
	ExitCode   *int
}

// Stats summarizes initialize()'s ShellHost/store reconciliation.
type Stats struct {
	OrphanShells   []string // live in ShellHost, no persisted record
	Rehydrated     int
	TerminateCount int
}

// Manager is the Session Manager: the authoritative session table, plus
// references to every collaborator it routes output through.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	byProject  map[string]map[string]bool
	byClient   map[string]map[string]bool

	localHost  shellhost.Host
	remoteHost RemoteDialer
	buffers    *buffer.Engine
	detector   *status.Detector
	store      PersistedSessionReader
	bufStore   buffer.PersistenceStore

	callbacks Callbacks

	lastInit Stats
}

// Config bundles a Manager's collaborators.
type Config struct {
	LocalHost  shellhost.Host
	RemoteHost RemoteDialer
	Buffers    *buffer.Engine
	Detector   *status.Detector
	Store      PersistedSessionReader
	BufStore   buffer.PersistenceStore
	Callbacks  Callbacks
}

// New constructs a Manager. Call Initialize once at process start before
// serving client traffic.
func New(cfg Config) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		byProject:  make(map[string]map[string]bool),
		byClient:   make(map[string]map[string]bool),
		localHost:  cfg.LocalHost,
		remoteHost: cfg.RemoteHost,
		buffers:    cfg.Buffers,
		detector:   cfg.Detector,
		store:      cfg.Store,
		bufStore:   cfg.BufStore,
		callbacks:  cfg.Callbacks,
	}
}

// Initialize enumerates the local ShellHost's live shells, matches them
// against persisted session records, and rehydrates matches in
// "disconnected" state with their buffers reloaded. Live shells with no
// persisted record are reported as orphans, not auto-adopted or killed.
func (m *Manager) Initialize() (Stats, error) {
	persisted, err := m.store.ListAllSessions()
	if err != nil {
		return Stats{}, fmt.Errorf("session: list persisted sessions: %w", err)
	}
	byID := make(map[string]PersistedSession, len(persisted))
	for _, p := range persisted {
		byID[p.ID] = p
	}

	live := m.localHost.List()
	liveSet := make(map[string]bool, len(live))
	for _, name := range live {
		liveSet[name] = true
	}

	var stats Stats
	for _, name := range live {
		rec, ok := byID[name]
		if !ok {
			stats.OrphanShells = append(stats.OrphanShells, name)
			continue
		}
		sess := m.rehydrate(rec)
		m.buffers.Create(sess.ID)
		if _, err := m.buffers.LoadBuffer(sess.ID, m.bufStore); err != nil {
			logrus.Warnf("session: reload buffer for %s failed: %v", sess.ID, err)
		}
		m.mu.Lock()
		m.sessions[sess.ID] = sess
		m.indexLocked(sess)
		m.mu.Unlock()
		stats.Rehydrated++
	}

	m.mu.Lock()
	m.lastInit = stats
	m.mu.Unlock()

	logrus.Infof("session: initialize rehydrated=%d orphans=%d", stats.Rehydrated, len(stats.OrphanShells))
	return stats, nil
}

func (m *Manager) rehydrate(rec PersistedSession) *Session {
	now := time.Now()
	sess := &Session{
		ID:             rec.ID,
		Type:           rec.Type,
		ProjectID:      rec.ProjectID,
		status:         StatusDisconnected,
		Local:          rec.LocalDesc,
		Remote:         rec.RemoteDesc,
		activityStatus: status.Idle,
		CreatedAt:      now,
		UpdatedAt:      now,
		lastActiveAt:   now,
		exitCode:       rec.ExitCode,
	}
	return sess
}

func (m *Manager) indexLocked(sess *Session) {
	if m.byProject[sess.ProjectID] == nil {
		m.byProject[sess.ProjectID] = make(map[string]bool)
	}
	m.byProject[sess.ProjectID][sess.ID] = true
}

// CreateTerminalSession allocates a new local-terminal session, persists it,
// asks the ShellHost to spawn a shell, and wires its output into the
// buffer/detector/gateway pipeline.
func (m *Manager) CreateTerminalSession(clientID, projectID string, desc LocalDescriptor) (*Session, error) {
	sessID := id.New(id.PrefixSession)

	if desc.WorkingDir != "" {
		normalized, err := pathutil.FormatPath(desc.WorkingDir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPTYSpawnFailed, err)
		}
		desc.WorkingDir = normalized
	}

	handle, err := m.localHost.Spawn(sessID, shellhost.Descriptor{
		Shell:      desc.Shell,
		WorkingDir: desc.WorkingDir,
		Env:        desc.Env,
		Cols:       desc.Cols,
		Rows:       desc.Rows,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPTYSpawnFailed, err)
	}

	now := time.Now()
	sess := &Session{
		ID:             sessID,
		Type:           TypeLocalTerminal,
		ProjectID:      projectID,
		status:         StatusCreating,
		Local:          &desc,
		activityStatus: status.Idle,
		CreatedAt:      now,
		UpdatedAt:      now,
		lastActiveAt:   now,
		ownerClientID:  clientID,
	}

	m.buffers.Create(sessID)
	m.register(sess)
	m.persist(sess, nil)

	sess.mu.Lock()
	sess.setStatus(StatusActive)
	sess.mu.Unlock()
	m.emitSessionEvent(sess, "session:status-change", nil)

	go m.readLoop(sess, handle)
	return sess, nil
}

// CreateRemoteSession is the SSH analogue of CreateTerminalSession.
func (m *Manager) CreateRemoteSession(clientID, projectID string, desc RemoteDescriptor, auth RemoteDialConfig) (*Session, error) {
	if m.remoteHost == nil {
		return nil, fmt.Errorf("%w: no remote shell host configured", ErrSSHConnectFailed)
	}
	sessID := id.New(id.PrefixSession)

	auth.Host, auth.Port, auth.Username, auth.AuthMethod = desc.Host, desc.Port, desc.Username, desc.AuthMethod
	auth.Cols, auth.Rows = desc.Cols, desc.Rows

	handle, err := m.remoteHost.Spawn(sessID, auth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSSHConnectFailed, err)
	}

	now := time.Now()
	sess := &Session{
		ID:             sessID,
		Type:           TypeRemoteShell,
		ProjectID:      projectID,
		status:         StatusCreating,
		Remote:         &desc,
		activityStatus: status.Idle,
		CreatedAt:      now,
		UpdatedAt:      now,
		lastActiveAt:   now,
		ownerClientID:  clientID,
	}

	m.buffers.Create(sessID)
	m.register(sess)
	m.persist(sess, nil)

	sess.mu.Lock()
	sess.setStatus(StatusActive)
	sess.mu.Unlock()
	m.emitSessionEvent(sess, "session:status-change", nil)

	go m.readLoop(sess, handle)
	return sess, nil
}

func (m *Manager) register(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	m.indexLocked(sess)
	if m.byClient[sess.ownerClientID] == nil {
		m.byClient[sess.ownerClientID] = make(map[string]bool)
	}
	m.byClient[sess.ownerClientID][sess.ID] = true
}

func (m *Manager) persist(sess *Session, exitCode *int) {
	rec := PersistedSession{
		ID:         sess.ID,
		Type:       sess.Type,
		ProjectID:  sess.ProjectID,
		Status:     sess.Status(),
		LocalDesc:  sess.Local,
		RemoteDesc: sess.Remote,
		ExitCode:   exitCode,
	}
	if err := m.store.SaveSession(rec); err != nil {
		logrus.Warnf("session: persist %s failed: %v", sess.ID, err)
	}
}

// get returns the session for id, or nil.
func (m *Manager) get(sessionID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}

// Get returns the session for id and whether it was found.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	s := m.get(sessionID)
	return s, s != nil
}

// readLoop is the per-session reader task: independent per session so one
// stalled shell never stalls another's output delivery, per §5.
func (m *Manager) readLoop(sess *Session, handle shellhost.Handle) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("session: readLoop panic for %s: %v", sess.ID, r)
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := handle.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			m.onOutput(sess, data)
		}
		if err != nil {
			m.onShellExit(sess, handle)
			return
		}
	}
}

// onOutput is the output-routing hot path: ShellHost -> buffer append +
// status detect, then fanout to the owning client only. Bytes are delivered
// to the buffer, the detector, and the client in the order the shell
// produced them because there is exactly one reader goroutine per session.
func (m *Manager) onOutput(sess *Session, data []byte) {
	sess.mu.Lock()
	sess.touch()
	sess.mu.Unlock()

	m.buffers.Append(sess.ID, data)

	shell := status.ShellLocal
	if sess.Type == TypeRemoteShell {
		shell = status.ShellSSH
	}
	if evt, changed := m.detector.Detect(sess.ID, shell, data); changed {
		sess.mu.Lock()
		sess.activityStatus = evt.NewStatus
		sess.mu.Unlock()
		if m.callbacks.OnStatusChange != nil {
			m.callbacks.OnStatusChange(sess, evt)
		}
	}

	if m.callbacks.OnOutput != nil {
		m.callbacks.OnOutput(sess, data)
	}
}

func (m *Manager) onShellExit(sess *Session, handle shellhost.Handle) {
	code, ok := handle.ExitCode()
	var codePtr *int
	if ok {
		codePtr = &code
	}
	sess.mu.Lock()
	sess.exitCode = codePtr
	if sess.status != StatusTerminated {
		sess.setStatus(StatusTerminated)
	}
	sess.mu.Unlock()

	m.buffers.Flush(m.bufStore)
	m.persist(sess, codePtr)
	m.emitSessionEvent(sess, "session:terminated", codePtr)
}

func (m *Manager) emitSessionEvent(sess *Session, name string, exitCode *int) {
	if m.callbacks.OnSessionEvent != nil {
		m.callbacks.OnSessionEvent(sess, name, exitCode)
	}
}

// Write forwards bytes to the session's ShellHost and bumps lastActiveAt.
func (m *Manager) Write(sessionID string, data []byte) error {
	sess := m.get(sessionID)
	if sess == nil {
		return ErrSessionNotFound
	}
	if sess.Status() == StatusTerminated {
		return ErrSessionTerminated
	}

	handle, err := m.handleFor(sess)
	if err != nil {
		m.degrade(sess)
		return err
	}
	if _, err := handle.Write(data); err != nil {
		m.degrade(sess)
		return err
	}

	sess.mu.Lock()
	sess.touch()
	sess.mu.Unlock()
	return nil
}

func (m *Manager) handleFor(sess *Session) (shellhost.Handle, error) {
	if sess.Type == TypeRemoteShell {
		return m.remoteHost.Attach(sess.ID)
	}
	return m.localHost.Attach(sess.ID)
}

// degrade moves a session to error status on an unrecoverable ShellHost I/O
// failure. The shell itself is not auto-killed; the operator may choose to.
func (m *Manager) degrade(sess *Session) {
	sess.mu.Lock()
	if sess.status != StatusTerminated {
		sess.setStatus(StatusError)
	}
	sess.mu.Unlock()
	m.emitSessionEvent(sess, "session:status-change", nil)
}

// Resize updates a session's stored dimensions and forwards the change to
// the ShellHost.
func (m *Manager) Resize(sessionID string, cols, rows uint16) error {
	sess := m.get(sessionID)
	if sess == nil {
		return ErrSessionNotFound
	}
	handle, err := m.handleFor(sess)
	if err != nil {
		return err
	}
	if err := handle.Resize(cols, rows); err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.Local != nil {
		sess.Local.Cols, sess.Local.Rows = cols, rows
	}
	if sess.Remote != nil {
		sess.Remote.Cols, sess.Remote.Rows = cols, rows
	}
	sess.touch()
	sess.mu.Unlock()
	return nil
}

// TerminateSession kills the underlying shell, flushes the buffer, and
// marks the session terminated.
func (m *Manager) TerminateSession(sessionID string) error {
	sess := m.get(sessionID)
	if sess == nil {
		return ErrSessionNotFound
	}

	var killErr error
	if sess.Type == TypeRemoteShell {
		killErr = m.remoteHost.Kill(sessionID)
	} else {
		killErr = m.localHost.Kill(sessionID)
	}
	if killErr != nil {
		logrus.Warnf("session: kill %s failed: %v", sessionID, killErr)
	}

	sess.mu.Lock()
	sess.setStatus(StatusTerminated)
	exitCode := sess.exitCode
	sess.mu.Unlock()

	m.buffers.Flush(m.bufStore)
	m.persist(sess, exitCode)
	m.emitSessionEvent(sess, "session:terminated", exitCode)
	return nil
}

// TerminateProjectSessions best-effort terminates every session belonging
// to projectID, in parallel.
func (m *Manager) TerminateProjectSessions(projectID string) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.byProject[projectID]))
	for id := range m.byProject[projectID] {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sessID := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := m.TerminateSession(id); err != nil {
				logrus.Warnf("session: terminate %s for project %s failed: %v", id, projectID, err)
			}
		}(sessID)
	}
	wg.Wait()
}

// HandleClientDisconnect marks every session owned by clientID as
// disconnected (the shell stays alive) and clears ownership.
func (m *Manager) HandleClientDisconnect(clientID string) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.byClient[clientID]))
	for id := range m.byClient[clientID] {
		ids = append(ids, id)
	}
	delete(m.byClient, clientID)
	m.mu.Unlock()

	for _, sessID := range ids {
		sess := m.get(sessID)
		if sess == nil {
			continue
		}
		m.buffers.MarkDisconnect(sessID)
		sess.mu.Lock()
		if sess.status != StatusTerminated {
			sess.setStatus(StatusDisconnected)
		}
		sess.ownerClientID = ""
		sess.mu.Unlock()
		m.persist(sess, nil)
	}
}

// ReconnectResult is handleClientReconnect's return payload.
type ReconnectResult struct {
	ActiveSessions     []string
	TerminatedSessions []string
	StatusChanges      map[string]status.Activity
	Buffers            map[string]buffer.Snapshot
}

// HandleClientReconnect re-binds ownership of each requested session id to
// clientID, or reports it terminated/unknown.
func (m *Manager) HandleClientReconnect(clientID string, requestedSessionIDs []string) ReconnectResult {
	result := ReconnectResult{
		StatusChanges: make(map[string]status.Activity),
		Buffers:       make(map[string]buffer.Snapshot),
	}

	for _, sessID := range requestedSessionIDs {
		sess := m.get(sessID)
		if sess == nil || sess.Status() == StatusTerminated {
			result.TerminatedSessions = append(result.TerminatedSessions, sessID)
			continue
		}

		sess.mu.Lock()
		sess.ownerClientID = clientID
		sess.setStatus(StatusActive)
		activity := sess.activityStatus
		sess.mu.Unlock()

		m.mu.Lock()
		if m.byClient[clientID] == nil {
			m.byClient[clientID] = make(map[string]bool)
		}
		m.byClient[clientID][sessID] = true
		m.mu.Unlock()

		result.ActiveSessions = append(result.ActiveSessions, sessID)
		result.StatusChanges[sessID] = activity
		result.Buffers[sessID] = m.buffers.GetSnapshot(sessID)

		m.persist(sess, nil)
	}
	return result
}

// SessionsByProject returns every tracked session id belonging to projectID,
// terminated sessions included.
func (m *Manager) SessionsByProject(projectID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byProject[projectID]))
	for id := range m.byProject[projectID] {
		out = append(out, id)
	}
	return out
}

// LastInitStats returns the Stats recorded by the most recent Initialize call.
func (m *Manager) LastInitStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastInit
}

// ListAll returns every session the Manager currently tracks, live or
// terminated-but-not-yet-evicted. Used by the cleanup service's sweep.
func (m *Manager) ListAll() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	return out
}

// ClearBuffer empties sessionID's scrollback in place, for the
// client-initiated terminal:clear event.
func (m *Manager) ClearBuffer(sessionID string) {
	m.buffers.Clear(sessionID)
}

// LiveShellNames unions the local and remote ShellHosts' live shell names,
// so the cleanup service can spot ShellHost entries with no tracked session.
func (m *Manager) LiveShellNames() []string {
	names := m.localHost.List()
	if m.remoteHost != nil {
		names = append(names, m.remoteHost.List()...)
	}
	return names
}
