package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "termstation.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBufferSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveBufferSnapshot("ses_1", "line one\nline two", 2); err != nil {
		t.Fatalf("SaveBufferSnapshot: %v", err)
	}

	content, total, found, err := s.LoadBufferSnapshot("ses_1")
	if err != nil {
		t.Fatalf("LoadBufferSnapshot: %v", err)
	}
	if !found {
		t.Fatal("expected snapshot to be found")
	}
	if content != "line one\nline two" || total != 2 {
		t.Fatalf("got %q %d", content, total)
	}
}

func TestLoadBufferSnapshotMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, _, found, err := s.LoadBufferSnapshot("nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected not found")
	}
}

func TestSaveBufferSnapshotIsUpsert(t *testing.T) {
	s := openTestStore(t)
	s.SaveBufferSnapshot("ses_1", "first", 1)
	s.SaveBufferSnapshot("ses_1", "second", 2)

	content, total, _, _ := s.LoadBufferSnapshot("ses_1")
	if content != "second" || total != 2 {
		t.Fatalf("expected overwrite, got %q %d", content, total)
	}
}

func TestSessionRecordRoundTrip(t *testing.T) {
	s := openTestStore(t)
	rec := SessionRecord{ID: "ses_1", Type: "local", ProjectID: "prj_1", Status: "active"}
	if err := s.UpsertSession(rec); err != nil {
		t.Fatalf("UpsertSession: %v", err)
	}

	got, found, err := s.GetSession("ses_1")
	if err != nil || !found {
		t.Fatalf("GetSession: found=%v err=%v", found, err)
	}
	if got.ProjectID != "prj_1" {
		t.Fatalf("got %q", got.ProjectID)
	}
}

func TestDeleteSessionRemovesBufferToo(t *testing.T) {
	s := openTestStore(t)
	s.UpsertSession(SessionRecord{ID: "ses_1", ProjectID: "prj_1"})
	s.SaveBufferSnapshot("ses_1", "data", 1)

	if err := s.DeleteSession("ses_1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, found, _ := s.GetSession("ses_1"); found {
		t.Fatal("expected session deleted")
	}
	if _, _, found, _ := s.LoadBufferSnapshot("ses_1"); found {
		t.Fatal("expected buffer deleted")
	}
}

func TestListSessionsByProject(t *testing.T) {
	s := openTestStore(t)
	s.UpsertSession(SessionRecord{ID: "ses_1", ProjectID: "prj_1"})
	s.UpsertSession(SessionRecord{ID: "ses_2", ProjectID: "prj_1"})
	s.UpsertSession(SessionRecord{ID: "ses_3", ProjectID: "prj_2"})

	recs, err := s.ListSessionRecordsByProject("prj_1")
	if err != nil {
		t.Fatalf("ListSessionRecordsByProject: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(recs))
	}
}

func TestEncodeDecodeDescriptor(t *testing.T) {
	type desc struct {
		Shell string
		Cols  uint16
	}
	blob, err := EncodeDescriptor(desc{Shell: "/bin/bash", Cols: 80})
	if err != nil {
		t.Fatalf("EncodeDescriptor: %v", err)
	}
	var out desc
	if err := DecodeDescriptor(blob, &out); err != nil {
		t.Fatalf("DecodeDescriptor: %v", err)
	}
	if out.Shell != "/bin/bash" || out.Cols != 80 {
		t.Fatalf("got %+v", out)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpsertProject(Project{ID: "prj_1", Name: "demo", Path: "/tmp/demo"}); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}
	got, found, err := s.GetProject("prj_1")
	if err != nil || !found {
		t.Fatalf("GetProject: found=%v err=%v", found, err)
	}
	if got.Name != "demo" {
		t.Fatalf("got %q", got.Name)
	}
}
