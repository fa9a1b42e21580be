package buffer

import (
	"fmt"
	"testing"
)

func TestAppendSplitsOnNewlineAndTracksOpenTail(t *testing.T) {
	e := New(100)
	e.Create("s1")
	e.Append("s1", []byte("hello "))
	e.Append("s1", []byte("world\nsecond line\nthird"))

	if got := e.GetFull("s1"); got != "hello world\nsecond line\nthird" {
		t.Fatalf("got %q", got)
	}
}

func TestCapEvictionFIFO(t *testing.T) {
	// S3: maxLines = 3, append five lines, getLastLines(5) == "L2\nL3\nL4",
	// totalLinesEverWritten == 5, no error.
	e := New(3)
	e.Create("s1")
	for i := 0; i < 5; i++ {
		e.Append("s1", []byte(fmt.Sprintf("L%d\n", i)))
	}
	if got := e.GetLastLines("s1", 5); got != "L2\nL3\nL4" {
		t.Fatalf("got %q", got)
	}
	stats := e.GetStats("s1")
	if stats.TotalLinesEverWritten != 5 {
		t.Fatalf("expected 5 total lines, got %d", stats.TotalLinesEverWritten)
	}
	if stats.CurrentLines != 3 {
		t.Fatalf("expected 3 current lines (bound respected), got %d", stats.CurrentLines)
	}
}

func TestDisconnectAnchoringSurvivesEviction(t *testing.T) {
	e := New(3)
	e.Create("s1")
	e.Append("s1", []byte("A\nB\n"))
	e.MarkDisconnect("s1")
	e.Append("s1", []byte("C\nD\nE\n")) // 3 more closed lines -> evicts A, B

	snap := e.GetSnapshot("s1")
	// A and B evicted (2 evictions), disconnectIndex anchored to 0: C, D, E
	// all arrived after disconnect and all survive (maxLines=3 keeps C,D,E).
	want := ansiReset + "C\nD\nE"
	if snap.OutputSinceDisconnect != want {
		t.Fatalf("got %q want %q", snap.OutputSinceDisconnect, want)
	}
}

func TestSnapshotIdempotenceWithoutDisconnect(t *testing.T) {
	e := New(100)
	e.Create("s1")
	e.Append("s1", []byte("one\ntwo\n"))

	snap1 := e.GetSnapshot("s1")
	if snap1.OutputSinceDisconnect != ansiReset+"one\ntwo" {
		t.Fatalf("first snapshot got %q", snap1.OutputSinceDisconnect)
	}

	snap2 := e.GetSnapshot("s1")
	if snap2.OutputSinceDisconnect != ansiReset+"one\ntwo" {
		t.Fatalf("second snapshot (no intervening disconnect) got %q", snap2.OutputSinceDisconnect)
	}
}

func TestGetSnapshotClearsMarkerAtomically(t *testing.T) {
	e := New(100)
	e.Create("s1")
	e.Append("s1", []byte("one\n"))
	e.MarkDisconnect("s1")
	e.Append("s1", []byte("two\n"))

	first := e.GetSnapshot("s1")
	if first.OutputSinceDisconnect != ansiReset+"two" {
		t.Fatalf("got %q", first.OutputSinceDisconnect)
	}

	// marker cleared: a second snapshot with no new disconnect returns the
	// full buffer, not an empty suffix re-marked as "since disconnect".
	second := e.GetSnapshot("s1")
	if second.OutputSinceDisconnect != ansiReset+"one\ntwo" {
		t.Fatalf("got %q", second.OutputSinceDisconnect)
	}
}

func TestAppendToUnknownSessionIsNoOp(t *testing.T) {
	e := New(100)
	e.Append("ghost", []byte("data\n")) // must not panic
	if e.Exists("ghost") {
		t.Fatal("append must not implicitly create a buffer")
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	e := New(100)
	e.Create("s1")
	e.Append("s1", []byte("keep\n"))
	e.Create("s1")
	if got := e.GetFull("s1"); got != "keep" {
		t.Fatalf("Create must preserve existing buffer, got %q", got)
	}
}

func TestDeleteBuffer(t *testing.T) {
	e := New(100)
	e.Create("s1")
	e.DeleteBuffer("s1")
	if e.Exists("s1") {
		t.Fatal("expected buffer to be deleted")
	}
}
