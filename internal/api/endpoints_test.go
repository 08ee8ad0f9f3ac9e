package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoginStoresTokensAndUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login/", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "ops" || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","user":{"username":"ops"}}`))
	}))
	defer srv.Close()

	tokens := NewMemoryTokenStore("", "")
	c := newTestClient(srv, tokens)

	_, err := c.Login(context.Background(), "ops", "wrong")
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.NotErrorIs(t, err, ErrAuthFailed)

	resp, err := c.Login(context.Background(), "ops", "secret")
	require.NoError(t, err)
	assert.Equal(t, "a", resp.AccessToken)
	assert.True(t, c.HasCredentials())
	assert.JSONEq(t, `{"username":"ops"}`, string(tokens.User()))

	require.NoError(t, c.Logout())
	assert.False(t, c.HasCredentials())
}

func TestListMessagesDecodesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts/3/messages/", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("page_size"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{
			"contact": {"id": 3, "name": "Bia", "phone_number": "551100"},
			"messages": [
				{"id": 2, "message_id": "wamid.2", "contact": 3, "content": "later", "message_type": "text",
				 "is_from_user": true, "status": "read", "timestamp": "2025-01-05T10:05:00Z",
				 "delivered_at": "2025-01-05T10:05:01Z", "read_at": null},
				{"id": 1, "message_id": "wamid.1", "contact": 3, "content": "earlier", "message_type": "text",
				 "is_from_user": false, "status": "sent", "timestamp": "2025-01-05T10:00:00Z"}
			],
			"pagination": {"current_page": 2, "page_size": 10, "total_messages": 12, "total_pages": 2,
			               "has_next": false, "has_previous": true, "next_page": null, "previous_page": 1}
		}`))
	}))
	defer srv.Close()
	c := newTestClient(srv, NewMemoryTokenStore("t", "r"))

	page, err := c.ListMessages(context.Background(), 3, 2, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)

	first := page.Messages[0]
	assert.Equal(t, "wamid.2", first.MessageID)
	assert.Equal(t, FromContact, first.Direction())
	require.NotNil(t, first.DeliveredAt)
	assert.Nil(t, first.ReadAt)
	assert.Equal(t, FromOperator, page.Messages[1].Direction())

	assert.Equal(t, 12, page.Pagination.Total)
	assert.False(t, page.Pagination.HasNext)
	require.NotNil(t, page.Pagination.PreviousPage)
	assert.Equal(t, 1, *page.Pagination.PreviousPage)
	assert.Equal(t, "Bia", page.Contact.Name)
}

func TestListContactsTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts/with_last_message/", r.URL.Path)
		_, _ = w.Write([]byte(`{"contacts":[{"id":1,"name":"Ana","unread_count":2,
			"last_message":{"content":"oi","timestamp":"2025-01-05T10:00:00Z","status":"read","is_from_user":true}}],
			"pagination":{"current_page":1,"page_size":10,"total_contacts":31,"total_pages":4,"has_next":true}}`))
	}))
	defer srv.Close()
	c := newTestClient(srv, NewMemoryTokenStore("t", "r"))

	page, err := c.ListContacts(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Contacts, 1)
	assert.Equal(t, 2, page.Contacts[0].UnreadCount)
	assert.Equal(t, "oi", page.Contacts[0].LastMessage.Content)
	assert.Equal(t, 31, page.Pagination.Total)
	assert.True(t, page.Pagination.HasNext)
}

func TestSendBodies(t *testing.T) {
	var got map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		got = nil
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":9,"message_id":"wamid.9","contact":4,"content":"hi","status":"sent","timestamp":"2025-01-05T10:00:00Z"}`))
	}))
	defer srv.Close()
	c := newTestClient(srv, NewMemoryTokenStore("t", "r"))

	msg, err := c.SendText(context.Background(), 4, "hi")
	require.NoError(t, err)
	assert.Equal(t, "wamid.9", msg.MessageID)
	assert.Equal(t, "/templates/send_text_to_contact/", path)
	assert.Equal(t, map[string]any{"contact_id": float64(4), "content": "hi"}, got)

	_, err = c.SendTemplate(context.Background(), 12, 4, map[string]string{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "/templates/12/send_to_contact/", path)
	assert.Equal(t, map[string]any{"contact_id": float64(4), "parameters": map[string]any{"name": "Ana"}}, got)
}

func TestListTemplatesAcceptsBothShapes(t *testing.T) {
	bodies := map[string]string{
		"/templates/": `{"count":1,"results":[{"id":1,"name":"welcome","payload_structure":{"parameters":[{"name":"first_name","type":"text"}]}}]}`,
		"/flows/":     `[{"id":2,"name":"signup","status":"Active"}]`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bodies[r.URL.Path]))
	}))
	defer srv.Close()
	c := newTestClient(srv, NewMemoryTokenStore("t", "r"))

	templates, err := c.ListTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, []string{"first_name"}, templates[0].MissingParameters(nil))
	assert.Empty(t, templates[0].MissingParameters(map[string]string{"first_name": "Ana"}))

	flows, err := c.ListFlows(context.Background())
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "signup", flows[0].Name)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()
	c := NewClient(Options{BaseURL: srv.URL, RateLimit: 0.1, RateBurst: 1}, NewMemoryTokenStore("t", "r"), zap.NewNop())

	_, err := c.GetContact(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.GetContact(ctx, 1)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestTokenExpiry(t *testing.T) {
	// {"exp": 1736078400} == 2025-01-05T12:00:00Z
	token := "eyJhbGciOiJIUzI1NiJ9.eyJleHAiOjE3MzYwNzg0MDB9.sig"
	exp, err := TokenExpiry(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1736078400), exp.Unix())

	assert.False(t, TokenExpired(token, exp.Add(-time.Minute)))
	assert.True(t, TokenExpired(token, exp))
	assert.True(t, TokenExpired("not-a-jwt", time.Now()))
}
