package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Login exchanges credentials for a token pair and stores it with the user.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, call{
		name:   "login",
		method: http.MethodPost,
		path:   "/login/",
		body:   map[string]string{"username": username, "password": password},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("login: response carried no access token")
	}
	if err := c.tokens.SaveTokens(out.AccessToken, out.RefreshToken); err != nil {
		return nil, fmt.Errorf("save tokens: %w", err)
	}
	if len(out.User) > 0 {
		if err := c.tokens.SaveUser(out.User); err != nil {
			return nil, fmt.Errorf("save user: %w", err)
		}
	}
	return &out, nil
}

// Logout clears stored credentials. The backend keeps no session to end.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

func pageQuery(page, pageSize int) string {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))
	return q.Encode()
}

// ListContacts returns one page of contact summaries with their last message.
func (c *Client) ListContacts(ctx context.Context, page, pageSize int) (*ContactPage, error) {
	var out ContactPage
	err := c.do(ctx, call{
		name:   "contacts.list",
		method: http.MethodGet,
		path:   "/contacts/with_last_message/?" + pageQuery(page, pageSize),
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContact returns the detailed contact record.
func (c *Client) GetContact(ctx context.Context, id int64) (*ContactDetail, error) {
	var out ContactDetail
	err := c.do(ctx, call{
		name:   "contacts.get",
		method: http.MethodGet,
		path:   fmt.Sprintf("/contacts/%d/", id),
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages returns one page of a conversation. Messages come newest first.
func (c *Client) ListMessages(ctx context.Context, contactID int64, page, pageSize int) (*MessagePage, error) {
	var out MessagePage
	err := c.do(ctx, call{
		name:   "messages.list",
		method: http.MethodGet,
		path:   fmt.Sprintf("/contacts/%d/messages/?%s", contactID, pageQuery(page, pageSize)),
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SendText sends a free-form text message and returns the created record.
func (c *Client) SendText(ctx context.Context, contactID int64, content string) (*Message, error) {
	var out Message
	err := c.do(ctx, call{
		name:   "messages.send_text",
		method: http.MethodPost,
		path:   "/templates/send_text_to_contact/",
		body: struct {
			ContactID int64  `json:"contact_id"`
			Content   string `json:"content"`
		}{contactID, content},
		auth: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTemplates returns the configured message templates.
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		name:   "templates.list",
		method: http.MethodGet,
		path:   "/templates/",
		auth:   true,
	}, &raw)
	if err != nil {
		return nil, err
	}
	var out []Template
	if err := decodeList(raw, &out); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	return out, nil
}

// GetTemplate returns one template.
func (c *Client) GetTemplate(ctx context.Context, id int64) (*Template, error) {
	var out Template
	err := c.do(ctx, call{
		name:   "templates.get",
		method: http.MethodGet,
		path:   fmt.Sprintf("/templates/%d/", id),
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SendTemplate sends a template with its parameters to a contact.
func (c *Client) SendTemplate(ctx context.Context, templateID, contactID int64, params map[string]string) (*Message, error) {
	if params == nil {
		params = map[string]string{}
	}
	var out Message
	err := c.do(ctx, call{
		name:   "templates.send",
		method: http.MethodPost,
		path:   fmt.Sprintf("/templates/%d/send_to_contact/", templateID),
		body: struct {
			ContactID  int64             `json:"contact_id"`
			Parameters map[string]string `json:"parameters"`
		}{contactID, params},
		auth: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFlows returns the configured WhatsApp flows.
func (c *Client) ListFlows(ctx context.Context) ([]Flow, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		name:   "flows.list",
		method: http.MethodGet,
		path:   "/flows/",
		auth:   true,
	}, &raw)
	if err != nil {
		return nil, err
	}
	var out []Flow
	if err := decodeList(raw, &out); err != nil {
		return nil, fmt.Errorf("decode flows: %w", err)
	}
	return out, nil
}

// GetFlow returns one flow.
func (c *Client) GetFlow(ctx context.Context, id int64) (*Flow, error) {
	var out Flow
	err := c.do(ctx, call{
		name:   "flows.get",
		method: http.MethodGet,
		path:   fmt.Sprintf("/flows/%d/", id),
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// decodeList accepts either a bare JSON array or a {"results": [...]} page.
func decodeList(raw json.RawMessage, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}
	var page struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return err
	}
	if len(page.Results) == 0 {
		return nil
	}
	return json.Unmarshal(page.Results, out)
}
