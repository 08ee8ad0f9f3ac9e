package api

import (
	"encoding/json"
	"time"
)

// Direction says who authored a message.
type Direction int

const (
	FromOperator Direction = iota
	FromContact
)

// Message statuses as reported by the backend.
const (
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Message kinds.
const (
	KindText     = "text"
	KindTemplate = "template"
	KindFlow     = "flow"
)

// Message is a single chat message. MessageID is the server-issued identifier
// and the de-duplication key within a conversation.
type Message struct {
	ID                 int64               `json:"id"`
	MessageID          string              `json:"message_id"`
	ContactID          int64               `json:"contact"`
	ContactName        string              `json:"contact_name"`
	ContactPhone       string              `json:"contact_phone"`
	Content            string              `json:"content"`
	MessageType        string              `json:"message_type"`
	IsFromUser         bool                `json:"is_from_user"`
	Status             string              `json:"status"`
	Timestamp          time.Time           `json:"timestamp"`
	CreatedAt          time.Time           `json:"created_at"`
	DeliveredAt        *time.Time          `json:"delivered_at"`
	ReadAt             *time.Time          `json:"read_at"`
	MediaURL           string              `json:"media_url"`
	ReplyTo            *int64              `json:"reply_to"`
	ReplyToInfo        *ReplyToInfo        `json:"reply_to_info,omitempty"`
	TemplateName       *string             `json:"template_name"`
	TemplateComponents []TemplateComponent `json:"template_components"`
	FlowResponses      []FlowResponse      `json:"flow_responses"`
	Metadata           map[string]any      `json:"metadata,omitempty"`
}

// Direction maps the backend's is_from_user flag, which is true for messages
// written by the contact.
func (m Message) Direction() Direction {
	if m.IsFromUser {
		return FromContact
	}
	return FromOperator
}

// ReplyToInfo is the quoted message preview attached to replies.
type ReplyToInfo struct {
	ID          int64  `json:"id"`
	MessageID   string `json:"message_id"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	IsFromUser  bool   `json:"is_from_user"`
}

// FlowResponse is a submitted screen of a WhatsApp flow.
type FlowResponse struct {
	ID           int64          `json:"id"`
	FlowName     string         `json:"flow_name"`
	ScreenTitle  string         `json:"screen_title"`
	ResponseData map[string]any `json:"response_data"`
	Action       string         `json:"action"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TemplateComponent is one HEADER, BODY, FOOTER or BUTTONS block.
type TemplateComponent struct {
	Type    string           `json:"type"`
	Text    string           `json:"text,omitempty"`
	Format  string           `json:"format,omitempty"`
	Buttons []TemplateButton `json:"buttons,omitempty"`
}

type TemplateButton struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	URL    string `json:"url,omitempty"`
	FlowID int64  `json:"flow_id,omitempty"`
}

// LastMessage is the denormalized preview carried by contact summaries.
type LastMessage struct {
	MessageID   string     `json:"message_id"`
	Content     string     `json:"content"`
	Timestamp   time.Time  `json:"timestamp"`
	IsFromUser  bool       `json:"is_from_user"`
	MessageType string     `json:"message_type"`
	Status      string     `json:"status"`
	DeliveredAt *time.Time `json:"delivered_at"`
	ReadAt      *time.Time `json:"read_at"`
}

// Contact is the summary shown in the contact list.
type Contact struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	PhoneNumber string       `json:"phone_number"`
	CountryCode string       `json:"country_code"`
	UnreadCount int          `json:"unread_count"`
	LastMessage *LastMessage `json:"last_message"`
}

// ContactDetail is returned by GET /contacts/<id>/.
type ContactDetail struct {
	Contact
	ProfilePicture *string    `json:"profile_picture"`
	Labels         []string   `json:"lables"`
	Notes          *string    `json:"notes"`
	IsBlocked      bool       `json:"is_blocked"`
	LastSeen       *time.Time `json:"last_seen"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Pagination is the cursor block returned by paged endpoints.
type Pagination struct {
	CurrentPage  int  `json:"current_page"`
	PageSize     int  `json:"page_size"`
	Total        int  `json:"-"`
	TotalPages   int  `json:"total_pages"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
	NextPage     *int `json:"next_page"`
	PreviousPage *int `json:"previous_page"`
}

// UnmarshalJSON accepts both total_messages and total_contacts.
func (p *Pagination) UnmarshalJSON(data []byte) error {
	type plain Pagination
	var aux struct {
		plain
		TotalMessages *int `json:"total_messages"`
		TotalContacts *int `json:"total_contacts"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Pagination(aux.plain)
	switch {
	case aux.TotalMessages != nil:
		p.Total = *aux.TotalMessages
	case aux.TotalContacts != nil:
		p.Total = *aux.TotalContacts
	}
	return nil
}

// MessagePage is one page of a conversation, newest first.
type MessagePage struct {
	Contact    Contact    `json:"contact"`
	Messages   []Message  `json:"messages"`
	Pagination Pagination `json:"pagination"`
}

// ContactPage is one page of contact summaries.
type ContactPage struct {
	Contacts   []Contact  `json:"contacts"`
	Pagination Pagination `json:"pagination"`
}

// TemplateParameter is a placeholder the operator fills before sending.
type TemplateParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Example     string `json:"example,omitempty"`
	Description string `json:"description,omitempty"`
}

// Template is an approved WhatsApp message template.
type Template struct {
	ID               int64               `json:"id"`
	Name             string              `json:"name"`
	Category         string              `json:"category"`
	Language         string              `json:"language"`
	Status           string              `json:"status"`
	Components       []TemplateComponent `json:"components"`
	PayloadStructure struct {
		Parameters []TemplateParameter `json:"parameters"`
	} `json:"payload_structure"`
}

// MissingParameters returns the names of declared parameters absent or blank
// in params.
func (t Template) MissingParameters(params map[string]string) []string {
	var missing []string
	for _, p := range t.PayloadStructure.Parameters {
		if v, ok := params[p.Name]; !ok || v == "" {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// Flow is a WhatsApp flow definition.
type Flow struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	FlowID      string          `json:"flow_id,omitempty"`
	Categories  []string        `json:"categories,omitempty"`
	Screens     json.RawMessage `json:"screens,omitempty"`
}

// LoginResponse is returned by POST /login/ and POST /token/refresh/.
type LoginResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         json.RawMessage `json:"user,omitempty"`
}
