package vault

import (
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New("correct horse battery staple")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	record, err := v.Encrypt("s3cr3t-password")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	parts := strings.Split(record, ":")
	if len(parts) != 3 {
		t.Fatalf("expected iv:authTag:ciphertext, got %d parts", len(parts))
	}

	got, err := v.Decrypt(record)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "s3cr3t-password" {
		t.Fatalf("got %q", got)
	}
}

func TestDecryptWithWrongMasterPasswordFails(t *testing.T) {
	v1, _ := New("password-one")
	v2, _ := New("password-two")

	record, err := v1.Encrypt("topsecret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := v2.Decrypt(record); err != ErrAuthentication {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestDecryptEmptyStringIsEmpty(t *testing.T) {
	v, _ := New("master")
	got, err := v.Decrypt("")
	if err != nil || got != "" {
		t.Fatalf("expected empty, nil; got %q, %v", got, err)
	}
}

func TestDecryptMalformedRecord(t *testing.T) {
	v, _ := New("master")
	if _, err := v.Decrypt("not-a-valid-record"); err != ErrInvalidFormat {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	if _, err := v.Decrypt("zz:yy:xx"); err == nil {
		t.Fatal("expected error for non-hex segments")
	}
}

func TestNewRejectsEmptyMasterPassword(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty master password")
	}
}

func TestMask(t *testing.T) {
	if got := Mask(""); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := Mask("ab"); got != "****" {
		t.Fatalf("got %q", got)
	}
	if got := Mask("mypassword"); got != "****word" {
		t.Fatalf("got %q", got)
	}
}

func TestSealAndReveal(t *testing.T) {
	v, _ := New("master")
	r := Record{ID: "cred_1", Name: "prod box", Host: "example.com", Port: 22, Username: "deploy"}

	sealed, err := v.Seal(r, AuthPassword, "hunter2")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed.EncryptedPassword == "" {
		t.Fatal("expected EncryptedPassword to be set")
	}

	auth, err := v.Reveal(sealed)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if auth.Password != "hunter2" {
		t.Fatalf("got %q", auth.Password)
	}
}

func TestEncryptProducesDistinctCiphertextsForSamePlaintext(t *testing.T) {
	v, _ := New("master")
	a, _ := v.Encrypt("same")
	b, _ := v.Encrypt("same")
	if a == b {
		t.Fatal("expected distinct ciphertexts due to random nonce")
	}
}
