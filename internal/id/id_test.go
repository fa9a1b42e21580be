package id

import (
	"regexp"
	"testing"
)

var validSuffix = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)

func TestNewHasPrefixAndValidAlphabet(t *testing.T) {
	got := New(PrefixSession)
	if !HasPrefix(got, PrefixSession) {
		t.Fatalf("expected %q to carry prefix %q", got, PrefixSession)
	}
	suffix := got[len(PrefixSession):]
	if !validSuffix.MatchString(suffix) {
		t.Fatalf("suffix %q does not match the allowed alphabet / min length", suffix)
	}
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		v := New(PrefixSession)
		if _, dup := seen[v]; dup {
			t.Fatalf("generated duplicate id %q", v)
		}
		seen[v] = struct{}{}
	}
}
