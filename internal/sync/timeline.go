package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/matheus3301/wppcrm/internal/api"
	"go.uber.org/zap"
)

var (
	// ErrLoadInFlight is returned when the same page is already being fetched.
	ErrLoadInFlight = errors.New("page load already in flight")
	// ErrStale is returned when the conversation was reset while a page was
	// being fetched. The result was discarded.
	ErrStale = errors.New("conversation changed during load")
	// ErrNoMorePages is returned by LoadOlder once the oldest page is loaded.
	ErrNoMorePages = errors.New("no older messages")
	// ErrNoConversation is returned when no conversation is open.
	ErrNoConversation = errors.New("no conversation open")
)

// MessageFetcher loads one page of a conversation, newest first.
type MessageFetcher interface {
	ListMessages(ctx context.Context, contactID int64, page, pageSize int) (*api.MessagePage, error)
}

// Cursor is the pagination position of the open conversation. Page only
// moves forward.
type Cursor struct {
	Page        int
	PageSize    int
	Total       int
	HasNext     bool
	HasPrevious bool
}

// PageResult describes an applied page load.
type PageResult struct {
	Page    int
	Count   int
	Cursor  Cursor
	Contact api.Contact
}

// Timeline is the message list of the open conversation. It merges paged
// history, local sends and push events into one list ordered oldest first
// with each message identifier present once.
type Timeline struct {
	fetcher  MessageFetcher
	pageSize int
	timeout  time.Duration
	log      *zap.Logger

	mu         sync.Mutex
	contactID  int64
	gen        uint64
	headLoaded bool // page 1 of the current generation was applied
	pages      map[int][]api.Message
	tail       []api.Message
	inflight   map[int]bool
	cursor     Cursor
	changes    chan struct{}
}

// NewTimeline creates an empty timeline. timeout bounds each page fetch; zero
// means the caller's context alone decides.
func NewTimeline(fetcher MessageFetcher, pageSize int, timeout time.Duration, log *zap.Logger) *Timeline {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Timeline{
		fetcher:  fetcher,
		pageSize: pageSize,
		timeout:  timeout,
		log:      log,
		pages:    make(map[int][]api.Message),
		inflight: make(map[int]bool),
		cursor:   Cursor{PageSize: pageSize},
		changes:  make(chan struct{}, 1),
	}
}

// Changes signals, coalesced, that the list or loading state changed.
func (t *Timeline) Changes() <-chan struct{} {
	return t.changes
}

func (t *Timeline) notify() {
	select {
	case t.changes <- struct{}{}:
	default:
	}
}

// Reset clears the list and cursor and switches to contactID. Loads started
// before the reset are discarded when they return.
func (t *Timeline) Reset(contactID int64) {
	t.mu.Lock()
	t.gen++
	t.contactID = contactID
	t.headLoaded = false
	t.pages = make(map[int][]api.Message)
	t.tail = nil
	t.inflight = make(map[int]bool)
	t.cursor = Cursor{PageSize: t.pageSize}
	t.mu.Unlock()
	t.notify()
}

// ContactID returns the open conversation, or 0.
func (t *Timeline) ContactID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.contactID
}

// Cursor returns the current pagination cursor.
func (t *Timeline) Cursor() Cursor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

// Loading reports whether any page fetch is outstanding.
func (t *Timeline) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) > 0
}

// LoadPage fetches one page of history. Higher pages hold older messages and
// sit ahead of everything loaded so far. Page 1 is the newest page: loading it
// again replaces the list, dropping older pages and the local tail messages
// the server page now covers. A failed fetch leaves the list untouched.
func (t *Timeline) LoadPage(ctx context.Context, page int) (PageResult, error) {
	if page < 1 {
		return PageResult{}, fmt.Errorf("invalid page %d", page)
	}

	t.mu.Lock()
	if t.contactID == 0 {
		t.mu.Unlock()
		return PageResult{}, ErrNoConversation
	}
	if t.inflight[page] {
		t.mu.Unlock()
		return PageResult{}, ErrLoadInFlight
	}
	t.inflight[page] = true
	gen, contactID := t.gen, t.contactID
	t.mu.Unlock()
	t.notify()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	res, err := t.fetcher.ListMessages(ctx, contactID, page, t.pageSize)

	t.mu.Lock()
	defer t.notify()
	defer t.mu.Unlock()

	if gen != t.gen || contactID != t.contactID {
		t.log.Debug("discarding stale page",
			zap.Int64("contact_id", contactID),
			zap.Int("page", page),
		)
		return PageResult{}, ErrStale
	}
	delete(t.inflight, page)
	if err != nil {
		return PageResult{}, fmt.Errorf("load page %d: %w", page, err)
	}

	msgs := make([]api.Message, len(res.Messages))
	copy(msgs, res.Messages)
	slices.Reverse(msgs)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	reload := false
	if page == 1 {
		reload = t.headLoaded
		t.headLoaded = true
		t.tail = pruneTail(t.tail, msgs)
		if reload {
			for n := range t.pages {
				if n > 1 {
					delete(t.pages, n)
				}
			}
		}
	}
	t.pages[page] = msgs

	if reload || page >= t.cursor.Page {
		t.cursor = Cursor{
			Page:        page,
			PageSize:    t.pageSize,
			Total:       res.Pagination.Total,
			HasNext:     res.Pagination.HasNext,
			HasPrevious: res.Pagination.HasPrevious,
		}
	}
	t.log.Debug("page loaded",
		zap.Int64("contact_id", contactID),
		zap.Int("page", page),
		zap.Int("messages", len(msgs)),
	)
	return PageResult{Page: page, Count: len(msgs), Cursor: t.cursor, Contact: res.Contact}, nil
}

// LoadOlder fetches the page after the cursor.
func (t *Timeline) LoadOlder(ctx context.Context) (PageResult, error) {
	c := t.Cursor()
	if c.Page > 0 && !c.HasNext {
		return PageResult{}, ErrNoMorePages
	}
	return t.LoadPage(ctx, c.Page+1)
}

// AppendLocal adds msg at the newest position. It returns false, changing
// nothing, when the identifier is already present or msg belongs to another
// conversation.
func (t *Timeline) AppendLocal(msg api.Message) bool {
	if msg.MessageID == "" {
		return false
	}
	t.mu.Lock()
	if t.contactID == 0 || (msg.ContactID != 0 && msg.ContactID != t.contactID) || t.containsLocked(msg.MessageID) {
		t.mu.Unlock()
		return false
	}
	if msg.ContactID == 0 {
		msg.ContactID = t.contactID
	}
	t.tail = append(t.tail, msg)
	t.mu.Unlock()
	t.notify()
	return true
}

func (t *Timeline) containsLocked(messageID string) bool {
	for _, m := range t.tail {
		if m.MessageID == messageID {
			return true
		}
	}
	for _, p := range t.pages {
		for _, m := range p {
			if m.MessageID == messageID {
				return true
			}
		}
	}
	return false
}

// ApplyStatusUpdate moves a loaded message along its delivery lifecycle. Nil
// timestamps keep the stored value and a status never moves backwards. It
// returns false when the message is not loaded.
func (t *Timeline) ApplyStatusUpdate(messageID, status string, deliveredAt, readAt *time.Time) bool {
	t.mu.Lock()
	found := false
	update := func(list []api.Message) {
		for i := range list {
			if list[i].MessageID != messageID {
				continue
			}
			found = true
			list[i] = withStatus(list[i], status, deliveredAt, readAt)
		}
	}
	update(t.tail)
	for _, p := range t.pages {
		update(p)
	}
	t.mu.Unlock()
	if found {
		t.notify()
	}
	return found
}

// Messages returns a snapshot of the list, oldest first: older pages, then
// page 1, then messages appended since.
func (t *Timeline) Messages() []api.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	pageNums := make([]int, 0, len(t.pages))
	for n := range t.pages {
		pageNums = append(pageNums, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(pageNums)))

	out := make([]api.Message, 0, len(t.tail)+len(pageNums)*t.pageSize)
	index := make(map[string]int)
	add := func(m api.Message) {
		key := messageKey(m)
		if i, ok := index[key]; ok {
			out[i] = merge(out[i], m)
			return
		}
		index[key] = len(out)
		out = append(out, m)
	}
	for _, n := range pageNums {
		for _, m := range t.pages[n] {
			add(m)
		}
	}
	for _, m := range t.tail {
		add(m)
	}
	return out
}

// pruneTail drops local messages that the newest server page either contains
// or has moved past. head is ordered oldest first.
func pruneTail(tail, head []api.Message) []api.Message {
	if len(tail) == 0 || len(head) == 0 {
		return tail
	}
	newest := head[len(head)-1].Timestamp
	onPage := make(map[string]bool, len(head))
	for _, m := range head {
		onPage[messageKey(m)] = true
	}
	kept := make([]api.Message, 0, len(tail))
	for _, m := range tail {
		if onPage[messageKey(m)] || m.Timestamp.Before(newest) {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

func messageKey(m api.Message) string {
	if m.MessageID != "" {
		return m.MessageID
	}
	return fmt.Sprintf("#%d", m.ID)
}

// statusRank orders delivery statuses. failed only outranks sending.
func statusRank(s string) int {
	switch s {
	case api.StatusSending:
		return 0
	case api.StatusFailed:
		return 1
	case api.StatusSent:
		return 2
	case api.StatusDelivered:
		return 3
	case api.StatusRead:
		return 4
	}
	return -1
}

func withStatus(m api.Message, status string, deliveredAt, readAt *time.Time) api.Message {
	if status != "" && statusRank(status) >= statusRank(m.Status) {
		m.Status = status
	}
	if deliveredAt != nil {
		m.DeliveredAt = deliveredAt
	}
	if readAt != nil {
		m.ReadAt = readAt
	}
	return m
}

// merge keeps the first copy of a duplicated message, taking the most
// advanced delivery state of both.
func merge(first, dup api.Message) api.Message {
	return withStatus(first, dup.Status, dup.DeliveredAt, dup.ReadAt)
}
