package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	home := t.TempDir()
	t.Setenv("WPPCRM_HOME", home)
	t.Setenv("WPPCRM_SESSION", "")

	if got := Resolve(""); got != DefaultSessionName {
		t.Errorf("Resolve without config = %q, want %q", got, DefaultSessionName)
	}

	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte("default_session = \"ops\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "ops" {
		t.Errorf("Resolve from config = %q, want ops", got)
	}

	t.Setenv("WPPCRM_SESSION", "night")
	if got := Resolve(""); got != "night" {
		t.Errorf("Resolve from env = %q, want night", got)
	}
	if got := Resolve("work"); got != "work" {
		t.Errorf("Resolve with flag = %q, want work", got)
	}
}
