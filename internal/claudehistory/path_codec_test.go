package claudehistory

import (
	"path/filepath"
	"testing"
)

func TestDecodeProjectPathWindowsDrive(t *testing.T) {
	if got := DecodeProjectPath("G--ClaudeProjects-Test"); got != `G:\ClaudeProjects\Test` {
		t.Fatalf("unexpected decode: %q", got)
	}
	if got := DecodeProjectPath("c--Users-me--cfg"); got != `c:\Users\me\cfg` {
		t.Fatalf("unexpected decode: %q", got)
	}
}

func TestDecodeProjectPathHostSeparator(t *testing.T) {
	sep := string(filepath.Separator)
	cases := map[string]string{
		"-home-user-app":     sep + "home" + sep + "user" + sep + "app",
		"-home-user--hidden": sep + "home" + sep + "user" + sep + "hidden",
		"plain":              "plain",
		"":                   "",
		"1--not-a-drive":     "1" + sep + "not" + sep + "a" + sep + "drive",
	}
	for in, want := range cases {
		if got := DecodeProjectPath(in); got != want {
			t.Fatalf("DecodeProjectPath(%q)=%q want %q", in, got, want)
		}
	}
}

func TestDecodeProjectPathHyphenAmbiguity(t *testing.T) {
	// A literal hyphen cannot be told apart from a separator.
	if got, want := DecodeProjectPath(EncodeProjectPath("/srv/my-app")), DecodeProjectPath("-srv-my-app"); got != want {
		t.Fatalf("expected identical decode, got %q and %q", got, want)
	}
}

func TestEncodeProjectPath(t *testing.T) {
	cases := map[string]string{
		"/home/user/app":     "-home-user-app",
		`C:\Users\me`:        "C--Users-me",
		"/tmp/.hidden/x_y.z": "-tmp--hidden-x-y-z",
	}
	for in, want := range cases {
		if got := EncodeProjectPath(in); got != want {
			t.Fatalf("EncodeProjectPath(%q)=%q want %q", in, got, want)
		}
	}
}
