package remoteshell

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"
)

// sshHandle wraps one ssh.Client plus the interactive session and pty
// opened on it. It implements shellhost.Handle.
type sshHandle struct {
	name   string
	client *ssh.Client
	sess   *ssh.Session

	stdin  io.WriteCloser
	stdout io.Reader

	mu       sync.Mutex
	closed   bool
	exitCode int
	hasExit  bool
	doneOnce sync.Once
	doneCh   chan struct{}
}

func newSSHHandle(name string, client *ssh.Client, cols, rows uint16) (*sshHandle, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}
	if err := sess.RequestPty("xterm-256color", int(rows), int(cols), modes); err != nil {
		sess.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	h := &sshHandle{
		name:   name,
		client: client,
		sess:   sess,
		stdin:  stdin,
		stdout: stdout,
		doneCh: make(chan struct{}),
	}

	go h.waitExit()
	return h, nil
}

func (h *sshHandle) waitExit() {
	err := h.sess.Wait()
	code := 0
	hasCode := true
	if exitErr, ok := err.(*ssh.ExitError); ok {
		code = exitErr.ExitStatus()
	} else if err != nil {
		hasCode = false
	}
	h.mu.Lock()
	h.exitCode = code
	h.hasExit = hasCode
	h.mu.Unlock()
	h.markDone()
}

func (h *sshHandle) markDone() {
	h.doneOnce.Do(func() { close(h.doneCh) })
}

func (h *sshHandle) Name() string { return h.name }

func (h *sshHandle) Read(p []byte) (int, error) { return h.stdout.Read(p) }

func (h *sshHandle) Write(p []byte) (int, error) { return h.stdin.Write(p) }

func (h *sshHandle) Resize(cols, rows uint16) error {
	return h.sess.WindowChange(int(rows), int(cols))
}

func (h *sshHandle) Done() <-chan struct{} { return h.doneCh }

func (h *sshHandle) ExitCode() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, h.hasExit
}

func (h *sshHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	sessErr := h.sess.Close()
	clientErr := h.client.Close()
	h.markDone()
	if sessErr != nil {
		return sessErr
	}
	return clientErr
}
