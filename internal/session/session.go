// Package session implements the Session Manager: the authoritative session
// table, lifecycle operations, and output routing between the ShellHost,
// the Buffer Engine, the Status Detector, and the Event Gateway. Grounded on
// the teacher's ManagedSession/SessionManager pair (background read loop,
// once-guarded close, periodic cleanup), generalized from a single local-PTY
// backing to the local/remote ShellHost split and the richer session
// lifecycle §3/§4.3/§4.5 describe.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/wireterm/termstation/internal/status"
)

// Type is the kind of program a session wraps.
type Type string

const (
	TypeLocalTerminal    Type = "local-terminal"
	TypeRemoteShell      Type = "remote-shell"
	TypeBrowserAutomation Type = "browser-automation"
)

// Status is a session's lifecycle state. See the state machine in §4.5:
// creating -> active -> {paused, disconnected, reconnecting, error} ->
// terminated. Terminated is absorbing.
type Status string

const (
	StatusCreating     Status = "creating"
	StatusActive       Status = "active"
	StatusPaused       Status = "paused"
	StatusDisconnected Status = "disconnected"
	StatusReconnecting Status = "reconnecting"
	StatusTerminated   Status = "terminated"
	StatusError        Status = "error"
)

// LocalDescriptor carries what a local-terminal session was spawned with.
type LocalDescriptor struct {
	Shell      string
	WorkingDir string
	Env        map[string]string
	Cols       uint16
	Rows       uint16
}

// RemoteDescriptor carries what a remote-shell session was spawned with.
// Auth secrets are never stored here — they are decrypted from the
// Credential Vault at connect time and handed to the ShellHost directly.
type RemoteDescriptor struct {
	Host       string
	Port       int
	Username   string
	AuthMethod string
	Cols       uint16
	Rows       uint16
}

// Session is the central entity: an addressable, persistent interactive
// program with a lifecycle independent of any one client connection.
type Session struct {
	mu sync.Mutex

	ID        string
	Type      Type
	ProjectID string

	status Status

	Local  *LocalDescriptor
	Remote *RemoteDescriptor

	activityStatus status.Activity

	CreatedAt    time.Time
	UpdatedAt    time.Time
	lastActiveAt time.Time

	exitCode    *int
	Metadata    map[string]any

	ownerClientID string
}

// Status returns the session's current lifecycle status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ActivityStatus returns the session's last known activity classification.
func (s *Session) ActivityStatus() status.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activityStatus
}

// ExitCode returns the program's exit code, if known.
func (s *Session) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exitCode == nil {
		return 0, false
	}
	return *s.exitCode, true
}

// OwnerClientID returns the id of the client currently bound to this
// session's output, or "" if none.
func (s *Session) OwnerClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerClientID
}

// LastActiveAt returns the last time input, output, or resize touched this
// session.
func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

func (s *Session) touch() {
	s.lastActiveAt = time.Now()
	s.UpdatedAt = s.lastActiveAt
}

func (s *Session) setStatus(next Status) {
	s.status = next
	s.UpdatedAt = time.Now()
}

// Errors returned by Manager operations, carrying the stable codes §6/§7
// require at the gateway boundary.
var (
	ErrSessionNotFound  = errors.New("SESSION_NOT_FOUND")
	ErrSessionTerminated = errors.New("SESSION_TERMINATED")
	ErrPTYSpawnFailed   = errors.New("PTY_SPAWN_FAILED")
	ErrSSHConnectFailed = errors.New("SSH_CONNECTION_FAILED")
	ErrProjectNotFound  = errors.New("PROJECT_NOT_FOUND")
)
