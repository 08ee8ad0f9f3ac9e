package tui

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in    string
		want  Command
		known bool
	}{
		{"contacts", Command{Name: "contacts"}, true},
		{"  C  ", Command{Name: "contacts"}, true},
		{"open Ana Lima", Command{Name: "open", Args: "Ana Lima"}, true},
		{"o   5511 ", Command{Name: "open", Args: "5511"}, true},
		{"tpl", Command{Name: "templates"}, true},
		{"q!", Command{Name: "quit"}, true},
		{"?", Command{Name: "help"}, true},
		{"frobnicate now", Command{Name: "frobnicate", Args: "now"}, false},
		{"", Command{}, false},
	}
	for _, tt := range tests {
		got := ParseCommand(tt.in)
		if got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if got.Known() != tt.known {
			t.Errorf("ParseCommand(%q).Known() = %v, want %v", tt.in, got.Known(), tt.known)
		}
	}
}
