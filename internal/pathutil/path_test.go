package pathutil

import "testing"

func TestFormatPathDefault(t *testing.T) {
	got, err := FormatPath("")
	if err != nil {
		t.Fatalf("FormatPath: %v", err)
	}
	if got != "." {
		t.Errorf("expected \".\", got %q", got)
	}
}

func TestFormatPathCollapsesSlashes(t *testing.T) {
	got, err := FormatPath("/home//user///project")
	if err != nil {
		t.Fatalf("FormatPath: %v", err)
	}
	if got != "/home/user/project" {
		t.Errorf("got %q", got)
	}
}

func TestFormatPathExpandsHome(t *testing.T) {
	t.Setenv("HOME", "/home/alice")
	got, err := FormatPath("~/project")
	if err != nil {
		t.Fatalf("FormatPath: %v", err)
	}
	if got != "/home/alice/project" {
		t.Errorf("got %q", got)
	}
}
