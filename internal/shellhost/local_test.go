package shellhost

import (
	"strings"
	"testing"
	"time"
)

func TestLocalSpawnEchoAndKill(t *testing.T) {
	host := NewLocal()
	h, err := host.Spawn("ses_1", Descriptor{Shell: "/bin/sh", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Close()

	if _, err := h.Write([]byte("echo HELLO\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	found := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		var sb strings.Builder
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			n, err := h.Read(buf)
			if n > 0 {
				sb.Write(buf[:n])
				if strings.Contains(sb.String(), "HELLO") {
					close(found)
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	select {
	case <-found:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for echoed output")
	}
}

func TestLocalAttachAndList(t *testing.T) {
	host := NewLocal()
	if _, err := host.Spawn("ses_a", Descriptor{Shell: "/bin/sh"}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer host.Kill("ses_a")

	names := host.List()
	if len(names) != 1 || names[0] != "ses_a" {
		t.Fatalf("expected [ses_a], got %v", names)
	}

	h, err := host.Attach("ses_a")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if h.Name() != "ses_a" {
		t.Errorf("expected name ses_a, got %s", h.Name())
	}

	if _, err := host.Attach("missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalKillClosesHandle(t *testing.T) {
	host := NewLocal()
	h, err := host.Spawn("ses_k", Descriptor{Shell: "/bin/sh"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := host.Kill("ses_k"); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	select {
	case <-h.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("handle did not report done after kill")
	}
	if names := host.List(); len(names) != 0 {
		t.Errorf("expected no shells after kill, got %v", names)
	}
}
