package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/console"
	"github.com/matheus3301/wppcrm/internal/dategroup"
	"github.com/matheus3301/wppcrm/internal/realtime"
	"github.com/matheus3301/wppcrm/internal/status"
	intsync "github.com/matheus3301/wppcrm/internal/sync"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"go.uber.org/zap"
)

// ErrNoContact is returned by conversation actions when none is open.
var ErrNoContact = errors.New("no conversation open")

// ViewModel adapts the console core to what the views render. Views never
// talk to the API directly.
type ViewModel struct {
	app   *console.App
	Flash *ui.FlashModel
	now   func() time.Time

	mu        sync.RWMutex
	user      string
	templates []api.Template
	flows     []api.Flow

	refreshCh chan struct{}
}

// NewViewModel creates a view model over a started console.
func NewViewModel(app *console.App) *ViewModel {
	vm := &ViewModel{
		app:       app,
		Flash:     ui.NewFlashModel(),
		now:       time.Now,
		refreshCh: make(chan struct{}, 1),
	}
	vm.loadUser()
	return vm
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Session returns the session name.
func (vm *ViewModel) Session() string { return vm.app.Session }

// APIBase returns the configured backend URL.
func (vm *ViewModel) APIBase() string { return vm.app.Config.APIBaseURL }

// Connection returns the realtime connection state.
func (vm *ViewModel) Connection() status.State { return vm.app.Machine.Current() }

// Timeline returns the open conversation's message list.
func (vm *ViewModel) Timeline() *intsync.Timeline { return vm.app.Engine.Timeline() }

// Book returns the contact list.
func (vm *ViewModel) Book() *intsync.ContactBook { return vm.app.Engine.Contacts() }

// HasCredentials reports whether a login is stored.
func (vm *ViewModel) HasCredentials() bool { return vm.app.API.HasCredentials() }

// User returns a display name for the logged-in operator.
func (vm *ViewModel) User() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.user
}

func (vm *ViewModel) loadUser() {
	raw, err := vm.app.Store.User()
	if err != nil {
		vm.app.Logger.Debug("no stored user", zap.Error(err))
	}
	vm.mu.Lock()
	vm.user = DisplayUser(raw)
	vm.mu.Unlock()
}

// DisplayUser picks a printable name from the user object returned at login.
func DisplayUser(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var u struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return ""
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// Login authenticates, connects the realtime socket and loads the first
// contact page.
func (vm *ViewModel) Login(ctx context.Context, username, password string) error {
	if _, err := vm.app.API.Login(ctx, username, password); err != nil {
		return err
	}
	vm.loadUser()
	if err := vm.app.Connect(ctx); err != nil && !errors.Is(err, realtime.ErrNoToken) {
		vm.app.Logger.Warn("realtime connect after login failed", zap.Error(err))
	}
	vm.signalRefresh()
	_, err := vm.LoadContacts(ctx)
	return err
}

// Logout drops the socket, the tokens and every cached view.
func (vm *ViewModel) Logout() error {
	vm.app.Realtime.Disconnect()
	err := vm.app.API.Logout()
	vm.app.Engine.Close()
	vm.Book().Clear()
	_ = vm.app.Machine.Transition(status.AuthRequired)
	vm.mu.Lock()
	vm.user = ""
	vm.templates = nil
	vm.flows = nil
	vm.mu.Unlock()
	vm.signalRefresh()
	return err
}

// LoadContacts reloads the first contact page.
func (vm *ViewModel) LoadContacts(ctx context.Context) (intsync.Cursor, error) {
	return vm.Book().LoadPage(ctx, 1)
}

// LoadMoreContacts appends the next contact page.
func (vm *ViewModel) LoadMoreContacts(ctx context.Context) (intsync.Cursor, error) {
	return vm.Book().LoadMore(ctx)
}

// Contacts returns the contact list matching filter.
func (vm *ViewModel) Contacts(filter string) []api.Contact {
	return vm.Book().Contacts(filter)
}

// UnreadTotal sums unread counters over the loaded contacts.
func (vm *ViewModel) UnreadTotal() int {
	n := 0
	for _, c := range vm.Book().Contacts("") {
		n += c.UnreadCount
	}
	return n
}

// FindContact returns the first loaded contact whose name or phone matches.
func (vm *ViewModel) FindContact(query string) (api.Contact, bool) {
	cs := vm.Book().Contacts(query)
	if len(cs) == 0 {
		return api.Contact{}, false
	}
	return cs[0], true
}

// OpenContact switches the conversation and loads its newest page.
func (vm *ViewModel) OpenContact(ctx context.Context, contactID int64) (intsync.PageResult, error) {
	return vm.app.Engine.Open(ctx, contactID)
}

// CloseContact closes the open conversation.
func (vm *ViewModel) CloseContact() {
	vm.app.Engine.Close()
}

// OpenContactID returns the open conversation, or 0.
func (vm *ViewModel) OpenContactID() int64 {
	return vm.Timeline().ContactID()
}

// LastContact returns the conversation open when the previous run ended.
func (vm *ViewModel) LastContact() int64 {
	return vm.app.Engine.LastContact()
}

// ContactTitle names a contact for headers, falling back to the phone.
func (vm *ViewModel) ContactTitle(id int64) string {
	c, ok := vm.Book().Get(id)
	if !ok {
		return fmt.Sprintf("contact %d", id)
	}
	if c.Name != "" {
		return c.Name
	}
	return c.PhoneNumber
}

// LoadOlder loads the next older page of the open conversation.
func (vm *ViewModel) LoadOlder(ctx context.Context) (intsync.PageResult, error) {
	return vm.Timeline().LoadOlder(ctx)
}

// Reload fetches the newest page of the open conversation again. It replaces
// the list, so older pages have to be loaded again.
func (vm *ViewModel) Reload(ctx context.Context) (intsync.PageResult, error) {
	return vm.Timeline().LoadPage(ctx, 1)
}

// Buckets groups the open conversation by calendar day.
func (vm *ViewModel) Buckets() []dategroup.Bucket {
	return dategroup.Group(vm.Timeline().Messages(), vm.now())
}

// SendText sends text to the open conversation.
func (vm *ViewModel) SendText(ctx context.Context, text string) (*api.Message, error) {
	id := vm.OpenContactID()
	if id == 0 {
		return nil, ErrNoContact
	}
	return vm.app.Sender.SendText(ctx, id, text)
}

// SendTemplate sends tmpl to the open conversation.
func (vm *ViewModel) SendTemplate(ctx context.Context, tmpl api.Template, params map[string]string) (*api.Message, error) {
	id := vm.OpenContactID()
	if id == 0 {
		return nil, ErrNoContact
	}
	return vm.app.Sender.SendTemplate(ctx, id, tmpl, params)
}

// LoadTemplates fetches the template catalogue.
func (vm *ViewModel) LoadTemplates(ctx context.Context) error {
	ts, err := vm.app.API.ListTemplates(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.templates = ts
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Templates returns the last fetched template catalogue.
func (vm *ViewModel) Templates() []api.Template {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.templates
}

// LoadFlows fetches the flow catalogue.
func (vm *ViewModel) LoadFlows(ctx context.Context) error {
	fs, err := vm.app.API.ListFlows(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.flows = fs
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Flows returns the last fetched flow catalogue.
func (vm *ViewModel) Flows() []api.Flow {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.flows
}

// Flow fetches one flow with its screens.
func (vm *ViewModel) Flow(ctx context.Context, id int64) (*api.Flow, error) {
	return vm.app.API.GetFlow(ctx, id)
}

// ContactDetail fetches the full record of a contact.
func (vm *ViewModel) ContactDetail(ctx context.Context, id int64) (*api.ContactDetail, error) {
	return vm.app.API.GetContact(ctx, id)
}
