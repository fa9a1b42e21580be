package shellhost

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// ptyHandle is a local-terminal Handle backed by a real PTY and child
// process. It is the reference ShellHost implementation: a stand-in for an
// external persistent-shell host such as tmux, useful for local development
// and single-process deployments. Unlike a real tmux-backed host its shells
// do not survive this process's own restart.
type ptyHandle struct {
	name string
	ptmx *os.File
	cmd  *exec.Cmd

	mu      sync.Mutex
	closed  bool
	usePgrp bool

	doneCh   chan struct{}
	doneOnce sync.Once
	exitCode int
	hasExit  bool
}

func startLocalPTY(name string, desc Descriptor) (*ptyHandle, error) {
	shell := desc.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
	}

	cmd := exec.Command(shell)
	if desc.WorkingDir != "" {
		cmd.Dir = desc.WorkingDir
	}
	cmd.Env = buildEnv(desc.Env)

	// Linux only: run the shell in its own process group so Close can kill
	// every descendant it spawned, not just the shell itself.
	usePgrp := runtime.GOOS == "linux"
	if usePgrp {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	cols, rows := desc.Cols, desc.Rows
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	h := &ptyHandle{
		name:    name,
		ptmx:    ptmx,
		cmd:     cmd,
		usePgrp: usePgrp,
		doneCh:  make(chan struct{}),
	}
	go h.waitExit()
	return h, nil
}

// buildEnv overlays desc.Env onto the process's own environment, frozen at
// spawn time, plus a forced TERM for correct terminal emulation downstream.
func buildEnv(overrides map[string]string) []string {
	systemEnv := os.Environ()
	overridden := make(map[string]bool, len(overrides))
	for k := range overrides {
		overridden[k] = true
	}

	final := make([]string, 0, len(systemEnv)+len(overrides)+1)
	for _, kv := range systemEnv {
		if idx := indexByte(kv, '='); idx > 0 && !overridden[kv[:idx]] {
			final = append(final, kv)
		}
	}
	for k, v := range overrides {
		final = append(final, k+"="+v)
	}
	return append(final, "TERM=xterm-256color")
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func (h *ptyHandle) waitExit() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.hasExit = true
	if err == nil {
		h.exitCode = 0
	} else if exitErr, ok := err.(*exec.ExitError); ok {
		h.exitCode = exitErr.ExitCode()
	} else {
		h.exitCode = -1
	}
	h.mu.Unlock()
	h.markDone()
}

func (h *ptyHandle) markDone() {
	h.doneOnce.Do(func() { close(h.doneCh) })
}

func (h *ptyHandle) Name() string { return h.name }

func (h *ptyHandle) Read(p []byte) (int, error) { return h.ptmx.Read(p) }

func (h *ptyHandle) Write(p []byte) (int, error) { return h.ptmx.Write(p) }

func (h *ptyHandle) Resize(cols, rows uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return io.ErrClosedPipe
	}
	return pty.Setsize(h.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

func (h *ptyHandle) Done() <-chan struct{} { return h.doneCh }

func (h *ptyHandle) ExitCode() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, h.hasExit
}

func (h *ptyHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	// Close the PTY master first so readers see EOF promptly.
	_ = h.ptmx.Close()

	if h.cmd.Process != nil {
		pid := h.cmd.Process.Pid
		if h.usePgrp {
			_ = syscall.Kill(-pid, syscall.SIGKILL)
		} else {
			_ = h.cmd.Process.Kill()
		}
	}
	h.markDone()
	return nil
}
