package main

import (
	"bytes"
	"flag"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/realtime"
)

func TestParseInterspersed(t *testing.T) {
	tests := []struct {
		args     []string
		wantPos  []string
		wantPage int
	}{
		{[]string{"3"}, []string{"3"}, 1},
		{[]string{"3", "--page", "2"}, []string{"3"}, 2},
		{[]string{"--page=4", "3"}, []string{"3"}, 4},
		{[]string{"1", "--page", "2", "9"}, []string{"1", "9"}, 2},
	}
	for _, tt := range tests {
		fs := flag.NewFlagSet("t", flag.ContinueOnError)
		page := fs.Int("page", 1, "")
		pos, err := parseInterspersed(fs, tt.args)
		if err != nil {
			t.Fatalf("parseInterspersed(%v): %v", tt.args, err)
		}
		if !reflect.DeepEqual(pos, tt.wantPos) || *page != tt.wantPage {
			t.Errorf("parseInterspersed(%v) = %v page %d, want %v page %d", tt.args, pos, *page, tt.wantPos, tt.wantPage)
		}
	}
}

func TestParseInterspersedUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := parseInterspersed(fs, []string{"3", "--nope"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestParseParams(t *testing.T) {
	in := "name: Ana\ncount: 3\nvip: true\nempty:\n"
	got, err := parseParams(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"name": "Ana", "count": "3", "vip": "true", "empty": ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseParams = %v, want %v", got, want)
	}

	if got, err := parseParams(strings.NewReader("")); err != nil || len(got) != 0 {
		t.Errorf("empty input = (%v, %v)", got, err)
	}
	if _, err := parseParams(strings.NewReader("list:\n  - a\n")); err == nil {
		t.Error("expected error for non-scalar value")
	}
}

func TestParseID(t *testing.T) {
	for _, s := range []string{"", "0", "-1", "x"} {
		if _, err := parseID(s); err == nil {
			t.Errorf("parseID(%q) accepted", s)
		}
	}
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Errorf("parseID(42) = (%d, %v)", id, err)
	}
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		ev   realtime.Event
		want string
	}{
		{
			realtime.NewMessage{Message: api.Message{ContactID: 3, ContactName: "Ana", IsFromUser: true, Content: "hi\nthere"}},
			"new_message contact=3 from=Ana: hi there",
		},
		{
			realtime.NewMessage{Message: api.Message{ContactID: 3, Content: "ok"}},
			"new_message contact=3 from=you: ok",
		},
		{
			realtime.StatusUpdate{ContactID: 3, MessageID: "wamid.1", Status: "read"},
			"status_update contact=3 message=wamid.1 status=read",
		},
		{
			realtime.ContactUpdate{ContactID: 5, Name: "Bo"},
			"contact_update contact=5 name=Bo",
		},
	}
	for _, tt := range tests {
		if got := describeEvent(tt.ev); got != tt.want {
			t.Errorf("describeEvent(%T) = %q, want %q", tt.ev, got, tt.want)
		}
	}
}

func TestEmitJSON(t *testing.T) {
	var buf bytes.Buffer
	c := &cli{json: true, out: &buf}
	err := c.emit(map[string]int{"a": 1}, func(w io.Writer) {
		t.Error("text renderer called in json mode")
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "{\n  \"a\": 1\n}\n" {
		t.Errorf("emit = %q", got)
	}
}

func TestOneLine(t *testing.T) {
	if got := oneLine("a  b\tc", 10); got != "a b c" {
		t.Errorf("oneLine = %q", got)
	}
	if got := oneLine("abcdef", 4); got != "abc…" {
		t.Errorf("oneLine = %q", got)
	}
}
