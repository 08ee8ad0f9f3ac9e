package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matheus3301/wppcrm/internal/config"
	"github.com/matheus3301/wppcrm/internal/console"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "a1",
			"refresh_token": "r1",
			"user":          map[string]any{"username": "op", "first_name": "Olga", "last_name": "P"},
		})
	})
	mux.HandleFunc("/api/contacts/with_last_message/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"contacts": []map[string]any{
				{"id": 3, "name": "Ana", "phone_number": "5511999", "unread_count": 2},
				{"id": 4, "name": "Bruno", "phone_number": "5511888", "unread_count": 1},
			},
			"pagination": map[string]any{"current_page": 1, "has_next": false, "total_contacts": 2},
		})
	})
	mux.HandleFunc("/api/contacts/3/messages/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"contact": map[string]any{"id": 3, "name": "Ana"},
			"messages": []map[string]any{
				{"message_id": "b", "contact": 3, "content": "today", "is_from_user": true, "timestamp": time.Now().Format(time.RFC3339)},
				{"message_id": "a", "contact": 3, "content": "before", "is_from_user": true, "timestamp": time.Now().AddDate(0, 0, -1).Format(time.RFC3339)},
			},
			"pagination": map[string]any{"current_page": 1, "has_next": false, "total_messages": 2},
		})
	})
	mux.HandleFunc("/api/templates/send_text_to_contact/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message_id": "s1", "contact": 3, "content": "hi", "status": "sent",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestViewModel(t *testing.T, apiURL string) *ViewModel {
	t.Helper()
	t.Setenv("WPPCRM_HOME", t.TempDir())
	cfg := config.Default()
	cfg.APIBaseURL = apiURL
	cfg.WSURL = "ws://127.0.0.1:1"
	cfg.ReconnectBaseDelay.Duration = 10 * time.Millisecond
	cfg.RequestTimeout.Duration = 2 * time.Second

	var app *console.App
	fxApp := fxtest.New(t, console.Module(console.Params{SessionName: "test", Config: cfg}), fx.Populate(&app))
	fxApp.RequireStart()
	t.Cleanup(fxApp.RequireStop)
	return NewViewModel(app)
}

func TestDisplayUser(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{``, ""},
		{`not json`, ""},
		{`{"first_name":"Ana","last_name":"Lima","username":"ana"}`, "Ana Lima"},
		{`{"username":"ana","email":"a@x"}`, "ana"},
		{`{"email":"a@x"}`, "a@x"},
	}
	for _, tt := range tests {
		if got := DisplayUser([]byte(tt.raw)); got != tt.want {
			t.Errorf("DisplayUser(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestLoginOpenSendLogout(t *testing.T) {
	srv := backend(t)
	vm := newTestViewModel(t, srv.URL+"/api")
	ctx := context.Background()

	if vm.HasCredentials() {
		t.Fatal("fresh session should have no credentials")
	}
	if _, err := vm.SendText(ctx, "hi"); !errors.Is(err, ErrNoContact) {
		t.Fatalf("send without conversation: err = %v", err)
	}

	if err := vm.Login(ctx, "op", "secret"); err != nil {
		t.Fatal(err)
	}
	if vm.User() != "Olga P" {
		t.Errorf("user = %q", vm.User())
	}
	if got := len(vm.Contacts("")); got != 2 {
		t.Fatalf("contacts = %d, want 2", got)
	}
	if vm.UnreadTotal() != 3 {
		t.Errorf("unread = %d, want 3", vm.UnreadTotal())
	}
	if c, ok := vm.FindContact("bru"); !ok || c.ID != 4 {
		t.Errorf("find = %+v %v", c, ok)
	}

	if _, err := vm.OpenContact(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if vm.UnreadTotal() != 1 {
		t.Errorf("unread after open = %d, want 1", vm.UnreadTotal())
	}
	buckets := vm.Buckets()
	if len(buckets) != 2 || buckets[0].Label != "Yesterday" || buckets[1].Label != "Today" {
		t.Fatalf("buckets = %+v", buckets)
	}

	msg, err := vm.SendText(ctx, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if msg.MessageID != "s1" {
		t.Errorf("sent = %+v", msg)
	}
	msgs := vm.Timeline().Messages()
	if len(msgs) != 3 || msgs[2].MessageID != "s1" {
		t.Fatalf("timeline = %+v", msgs)
	}
	if vm.LastContact() != 3 {
		t.Errorf("last contact = %d", vm.LastContact())
	}

	if err := vm.Logout(); err != nil {
		t.Fatal(err)
	}
	if vm.HasCredentials() || vm.User() != "" || len(vm.Contacts("")) != 0 || vm.OpenContactID() != 0 {
		t.Error("logout left state behind")
	}
}
