// Package remoteshell is the SSH collaborator behind remote-shell sessions:
// it dials a host, requests an interactive pty-backed shell over the
// connection, and exposes it as a shellhost.Handle-shaped object so the
// Session Manager's output routing treats local and remote sessions
// uniformly. Grounded on control-plane's sshmanager (connection dial with a
// context timeout, client config shape, keyed client pool) but narrowed from
// a long-lived connection-health pool to one shell session per ssh.Client.
package remoteshell

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/wireterm/termstation/internal/session"
	"github.com/wireterm/termstation/internal/shellhost"
)

// DialTimeout bounds how long a single Connect attempt waits before
// failing with ErrTimeout.
const DialTimeout = 10 * time.Second

// ErrTimeout is returned when a dial exceeds DialTimeout. The Session
// Manager wraps it as session.ErrSSHConnectFailed, so the gateway reports a
// timed-out dial as SSH_CONNECTION_FAILED; SSH_TIMEOUT is not sent.
var ErrTimeout = errors.New("remoteshell: connection timed out")

// ErrNotFound is returned when a name has no corresponding live SSH shell.
var ErrNotFound = errors.New("remoteshell: shell not found")

// Host dials and tracks SSH-backed interactive shells, addressable by the
// same session id the Session Manager uses for local shells. It satisfies
// session.RemoteDialer structurally.
type Host struct {
	mu      sync.RWMutex
	clients map[string]*sshHandle
}

// New constructs an empty remote shell host.
func New() *Host {
	return &Host{clients: make(map[string]*sshHandle)}
}

// Spawn dials cfg.Host:cfg.Port, authenticates with cfg.Password or
// cfg.PrivateKey depending on cfg.AuthMethod, opens an interactive PTY
// session sized cfg.Cols x cfg.Rows, and starts the remote shell.
func (h *Host) Spawn(name string, cfg session.RemoteDialConfig) (shellhost.Handle, error) {
	authMethods, err := authMethodsFor(cfg)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         DialTimeout,
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	ctx, cancel := context.WithTimeout(context.Background(), DialTimeout)
	defer cancel()

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		client, err := ssh.Dial("tcp", addr, clientConfig)
		resultCh <- dialResult{client, err}
	}()

	var client *ssh.Client
	select {
	case <-ctx.Done():
		return nil, ErrTimeout
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("remoteshell: dial %s: %w", addr, r.err)
		}
		client = r.client
	}

	handle, err := newSSHHandle(name, client, cfg.Cols, cfg.Rows)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("remoteshell: open shell: %w", err)
	}

	h.mu.Lock()
	h.clients[name] = handle
	h.mu.Unlock()
	return handle, nil
}

// Attach returns the live handle for an already-spawned session name.
func (h *Host) Attach(name string) (shellhost.Handle, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handle, ok := h.clients[name]
	if !ok {
		return nil, ErrNotFound
	}
	return handle, nil
}

// List enumerates every live SSH-backed session name.
func (h *Host) List() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.clients))
	for n := range h.clients {
		out = append(out, n)
	}
	return out
}

// Kill closes the named SSH connection and shell.
func (h *Host) Kill(name string) error {
	h.mu.Lock()
	handle, ok := h.clients[name]
	if ok {
		delete(h.clients, name)
	}
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return handle.Close()
}

func authMethodsFor(cfg session.RemoteDialConfig) ([]ssh.AuthMethod, error) {
	switch cfg.AuthMethod {
	case "private-key":
		signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("remoteshell: parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	default:
		return []ssh.AuthMethod{ssh.Password(cfg.Password)}, nil
	}
}
