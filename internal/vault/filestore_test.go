package vault

import (
	"path/filepath"
	"testing"
)

func TestFileStoreSaveGetRoundTrip(t *testing.T) {
	fs, err := OpenFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}

	rec := Record{ID: "cred_1", Name: "prod box", Host: "example.com", Port: 22, Username: "deploy", Method: AuthPassword, EncryptedPassword: "aa:bb:cc"}
	if err := fs.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := fs.Get("cred_1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Host != rec.Host || got.EncryptedPassword != rec.EncryptedPassword {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestFileStoreGetMissing(t *testing.T) {
	fs, _ := OpenFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	_, ok, err := fs.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected not found")
	}
}

func TestFileStoreDelete(t *testing.T) {
	fs, _ := OpenFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	fs.Save(Record{ID: "cred_1", Name: "x"})
	if err := fs.Delete("cred_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, _ := fs.Get("cred_1")
	if ok {
		t.Fatal("expected deleted record to be gone")
	}
}

func TestFileStoreListReturnsAll(t *testing.T) {
	fs, _ := OpenFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	fs.Save(Record{ID: "cred_1", Name: "a"})
	fs.Save(Record{ID: "cred_2", Name: "b"})
	list, err := fs.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
}
