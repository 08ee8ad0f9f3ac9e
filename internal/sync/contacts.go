package sync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/realtime"
)

// ContactFetcher loads one page of contact summaries.
type ContactFetcher interface {
	ListContacts(ctx context.Context, page, pageSize int) (*api.ContactPage, error)
}

// ContactBook is the shared contact summary list. Every mutation goes through
// one of its idempotent update functions.
type ContactBook struct {
	fetcher  ContactFetcher
	pageSize int
	timeout  time.Duration

	mu       sync.Mutex
	contacts []api.Contact
	open     int64
	cursor   Cursor
	inflight map[int]bool
	changes  chan struct{}
}

// NewContactBook creates an empty book.
func NewContactBook(fetcher ContactFetcher, pageSize int, timeout time.Duration) *ContactBook {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &ContactBook{
		fetcher:  fetcher,
		pageSize: pageSize,
		timeout:  timeout,
		cursor:   Cursor{PageSize: pageSize},
		inflight: make(map[int]bool),
		changes:  make(chan struct{}, 1),
	}
}

// Changes signals, coalesced, that the book changed.
func (b *ContactBook) Changes() <-chan struct{} {
	return b.changes
}

func (b *ContactBook) notify() {
	select {
	case b.changes <- struct{}{}:
	default:
	}
}

// LoadPage fetches a page of contacts. Page 1 replaces the book; later pages
// are appended, skipping contacts already present.
func (b *ContactBook) LoadPage(ctx context.Context, page int) (Cursor, error) {
	if page < 1 {
		return Cursor{}, fmt.Errorf("invalid page %d", page)
	}
	b.mu.Lock()
	if b.inflight[page] {
		b.mu.Unlock()
		return Cursor{}, ErrLoadInFlight
	}
	b.inflight[page] = true
	b.mu.Unlock()

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	res, err := b.fetcher.ListContacts(ctx, page, b.pageSize)

	b.mu.Lock()
	defer b.notify()
	defer b.mu.Unlock()
	delete(b.inflight, page)
	if err != nil {
		return b.cursor, fmt.Errorf("load contacts page %d: %w", page, err)
	}
	b.applyPageLocked(page, res.Contacts)
	if page == 1 || page >= b.cursor.Page {
		b.cursor = Cursor{
			Page:        page,
			PageSize:    b.pageSize,
			Total:       res.Pagination.Total,
			HasNext:     res.Pagination.HasNext,
			HasPrevious: res.Pagination.HasPrevious,
		}
	}
	return b.cursor, nil
}

// LoadMore fetches the page after the cursor.
func (b *ContactBook) LoadMore(ctx context.Context) (Cursor, error) {
	c := b.Cursor()
	if c.Page > 0 && !c.HasNext {
		return c, ErrNoMorePages
	}
	return b.LoadPage(ctx, c.Page+1)
}

// Cursor returns the contact list cursor.
func (b *ContactBook) Cursor() Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

func (b *ContactBook) applyPageLocked(page int, contacts []api.Contact) {
	if page == 1 {
		b.contacts = make([]api.Contact, 0, len(contacts))
	}
	for _, c := range contacts {
		if i := b.indexLocked(c.ID); i >= 0 {
			b.contacts[i] = c
			continue
		}
		b.contacts = append(b.contacts, c)
	}
	if i := b.indexLocked(b.open); i >= 0 {
		b.contacts[i].UnreadCount = 0
	}
}

func (b *ContactBook) indexLocked(id int64) int {
	for i := range b.contacts {
		if b.contacts[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *ContactBook) moveToFrontLocked(i int) {
	if i <= 0 {
		return
	}
	c := b.contacts[i]
	copy(b.contacts[1:i+1], b.contacts[:i])
	b.contacts[0] = c
}

// Contacts returns a snapshot filtered by a case-insensitive match on name
// or phone number. An empty filter returns everything.
func (b *ContactBook) Contacts(filter string) []api.Contact {
	b.mu.Lock()
	defer b.mu.Unlock()
	filter = strings.ToLower(strings.TrimSpace(filter))
	out := make([]api.Contact, 0, len(b.contacts))
	for _, c := range b.contacts {
		if filter != "" &&
			!strings.Contains(strings.ToLower(c.Name), filter) &&
			!strings.Contains(c.PhoneNumber, filter) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Get returns one contact summary.
func (b *ContactBook) Get(id int64) (api.Contact, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexLocked(id); i >= 0 {
		return b.contacts[i], true
	}
	return api.Contact{}, false
}

// Open returns the contact whose conversation is open, or 0.
func (b *ContactBook) Open() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// SetOpen records the open conversation and marks it read. 0 closes it.
func (b *ContactBook) SetOpen(id int64) {
	b.mu.Lock()
	b.open = id
	if i := b.indexLocked(id); i >= 0 {
		b.contacts[i].UnreadCount = 0
	}
	b.mu.Unlock()
	b.notify()
}

// MarkRead zeroes the unread counter of a contact.
func (b *ContactBook) MarkRead(id int64) {
	b.mu.Lock()
	changed := false
	if i := b.indexLocked(id); i >= 0 && b.contacts[i].UnreadCount != 0 {
		b.contacts[i].UnreadCount = 0
		changed = true
	}
	b.mu.Unlock()
	if changed {
		b.notify()
	}
}

// ApplyNewMessage updates the last-message snapshot of the message's contact
// and counts it as unread when it came from the contact and the conversation
// is not open. A replay of the snapshot message only merges its status, and a
// message older than the snapshot is ignored.
func (b *ContactBook) ApplyNewMessage(msg api.Message) bool {
	if msg.ContactID == 0 {
		return false
	}
	b.mu.Lock()
	i := b.indexLocked(msg.ContactID)
	if i >= 0 {
		if last := b.contacts[i].LastMessage; last != nil {
			if msg.MessageID != "" && last.MessageID == msg.MessageID {
				merged := mergeLastStatus(*last, msg.Status, msg.DeliveredAt, msg.ReadAt)
				changed := merged != *last
				b.contacts[i].LastMessage = &merged
				b.mu.Unlock()
				if changed {
					b.notify()
				}
				return false
			}
			if !msg.Timestamp.IsZero() && msg.Timestamp.Before(last.Timestamp) {
				b.mu.Unlock()
				return false
			}
		}
	} else {
		b.contacts = append(b.contacts, api.Contact{
			ID:          msg.ContactID,
			Name:        msg.ContactName,
			PhoneNumber: msg.ContactPhone,
		})
		i = len(b.contacts) - 1
	}

	c := &b.contacts[i]
	c.LastMessage = &api.LastMessage{
		MessageID:   msg.MessageID,
		Content:     msg.Content,
		Timestamp:   msg.Timestamp,
		IsFromUser:  msg.IsFromUser,
		MessageType: msg.MessageType,
		Status:      msg.Status,
		DeliveredAt: msg.DeliveredAt,
		ReadAt:      msg.ReadAt,
	}
	if msg.Direction() == api.FromContact && msg.ContactID != b.open {
		c.UnreadCount++
	}
	b.moveToFrontLocked(i)
	b.mu.Unlock()
	b.notify()
	return true
}

// ApplyStatusUpdate refreshes the last-message snapshot when it is the
// updated message.
func (b *ContactBook) ApplyStatusUpdate(u realtime.StatusUpdate) bool {
	b.mu.Lock()
	i := b.indexLocked(u.ContactID)
	if i < 0 || b.contacts[i].LastMessage == nil || b.contacts[i].LastMessage.MessageID != u.MessageID {
		b.mu.Unlock()
		return false
	}
	last := mergeLastStatus(*b.contacts[i].LastMessage, u.Status, u.DeliveredAt, u.ReadAt)
	b.contacts[i].LastMessage = &last
	b.mu.Unlock()
	b.notify()
	return true
}

// ApplyContactUpdate merges a pushed contact summary. Unknown contacts are
// added at the top.
func (b *ContactBook) ApplyContactUpdate(u realtime.ContactUpdate) {
	b.mu.Lock()
	i := b.indexLocked(u.ContactID)
	added := i < 0
	if added {
		b.contacts = append(b.contacts, api.Contact{ID: u.ContactID})
		i = len(b.contacts) - 1
	}
	c := &b.contacts[i]
	if u.Name != "" {
		c.Name = u.Name
	}
	if u.PhoneNumber != "" {
		c.PhoneNumber = u.PhoneNumber
	}
	if u.UnreadCount != nil {
		c.UnreadCount = *u.UnreadCount
	}
	if u.ContactID == b.open {
		c.UnreadCount = 0
	}
	if u.LastMessage != nil {
		last := *u.LastMessage
		c.LastMessage = &last
	}
	if added || u.LastMessage != nil {
		b.moveToFrontLocked(i)
	}
	b.mu.Unlock()
	b.notify()
}

// Clear empties the book and its cursor.
func (b *ContactBook) Clear() {
	b.mu.Lock()
	b.contacts = nil
	b.open = 0
	b.cursor = Cursor{PageSize: b.pageSize}
	b.mu.Unlock()
	b.notify()
}

func mergeLastStatus(last api.LastMessage, status string, deliveredAt, readAt *time.Time) api.LastMessage {
	if status != "" && statusRank(status) >= statusRank(last.Status) {
		last.Status = status
	}
	if deliveredAt != nil {
		last.DeliveredAt = deliveredAt
	}
	if readAt != nil {
		last.ReadAt = readAt
	}
	return last
}
