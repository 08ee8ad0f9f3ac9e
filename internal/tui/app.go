package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/console"
	"github.com/matheus3301/wppcrm/internal/outbox"
	intsync "github.com/matheus3301/wppcrm/internal/sync"
	"github.com/matheus3301/wppcrm/internal/tui/keys"
	"github.com/matheus3301/wppcrm/internal/tui/model"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/matheus3301/wppcrm/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const headerHeight = 7

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	core     *console.App
	vm       *model.ViewModel
	theme    *ui.Theme
	registry *keys.Registry
	log      *zap.Logger

	root      *tview.Flex
	pages     *ui.Pages
	info      *ui.SessionInfo
	menu      *ui.Menu
	logo      *ui.Logo
	crumbs    *ui.Crumbs
	prompt    *ui.Prompt
	flashBar  *ui.FlashBar
	statusBar *views.StatusBar

	contacts  *views.ContactList
	thread    *views.MessageThread
	details   *views.ContactInfo
	login     *views.LoginView
	templates *views.TemplatesView
	flows     *views.FlowsView
	help      *views.HelpView

	filter       string
	promptActive bool
	detailsID    int64
	started      time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application over a started console.
func NewApp(core *console.App) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		core:      core,
		vm:        model.NewViewModel(core),
		theme:     theme,
		registry:  keys.NewRegistry(),
		log:       core.Logger.Named("tui"),
		pages:     ui.NewPages(),
		info:      ui.NewSessionInfo(theme),
		menu:      ui.NewMenu(theme),
		logo:      ui.NewLogo(theme),
		crumbs:    ui.NewCrumbs(theme),
		prompt:    ui.NewPrompt(theme),
		flashBar:  ui.NewFlashBar(theme),
		statusBar: views.NewStatusBar(theme),
		contacts:  views.NewContactList(theme),
		thread:    views.NewMessageThread(theme),
		details:   views.NewContactInfo(theme),
		login:     views.NewLoginView(theme),
		templates: views.NewTemplatesView(theme),
		flows:     views.NewFlowsView(theme),
		help:      views.NewHelpView(theme),
		started:   time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetSession(core.Session)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':',
		Hint: ui.MenuHint{Key: ":", Description: "Command"}, Visible: true,
		Handler: func() { a.activatePrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?',
		Hint: ui.MenuHint{Key: "?", Description: "Help"}, Visible: true,
		Handler: func() { a.pages.Push(a.help) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q',
		Hint: ui.MenuHint{Key: "q", Description: "Quit"}, Visible: true,
		Handler: a.Stop,
	})

	contacts := a.contacts.Name()
	a.registry.AddView(contacts, &keys.Action{Key: tcell.KeyRune, Rune: '/', Handler: func() { a.activatePrompt(ui.PromptFilter) }})
	a.registry.AddView(contacts, &keys.Action{Key: tcell.KeyRune, Rune: 'm', Handler: a.loadMoreContacts})
	a.registry.AddView(contacts, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Handler: a.reloadContacts})
	a.registry.AddView(contacts, &keys.Action{Key: tcell.KeyRune, Rune: 'd', Handler: func() {
		if id := a.contacts.SelectedContact(); id != 0 {
			a.showDetails(id)
		}
	}})

	chat := a.thread.Name()
	a.registry.AddView(chat, &keys.Action{Key: tcell.KeyRune, Rune: 'i', Handler: func() { a.app.SetFocus(a.thread.Composer()) }})
	a.registry.AddView(chat, &keys.Action{Key: tcell.KeyRune, Rune: 'o', Handler: a.loadOlder})
	a.registry.AddView(chat, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Handler: a.reloadThread})
	a.registry.AddView(chat, &keys.Action{Key: tcell.KeyRune, Rune: 't', Handler: a.showTemplates})
	a.registry.AddView(chat, &keys.Action{Key: tcell.KeyRune, Rune: 'd', Handler: func() {
		if id := a.vm.OpenContactID(); id != 0 {
			a.showDetails(id)
		}
	}})

	a.registry.AddView(a.details.Name(), &keys.Action{Key: tcell.KeyEnter, Handler: func() {
		if a.detailsID != 0 {
			a.openContact(a.detailsID)
		}
	}})
	a.registry.AddView(a.templates.Name(), &keys.Action{Key: tcell.KeyRune, Rune: 'r', Handler: a.loadTemplates})
	a.registry.AddView(a.flows.Name(), &keys.Action{Key: tcell.KeyRune, Rune: 'r', Handler: a.loadFlows})
}

func (a *App) setupCallbacks() {
	a.contacts.SetOnOpen(a.openContact)
	a.contacts.SetOnLoadMore(a.loadMoreContacts)

	a.thread.SetOnSend(func(text string) {
		go func() {
			if _, err := a.vm.SendText(a.ctx, text); err != nil {
				a.vm.Flash.Err(fmt.Errorf("send failed: %w", err))
				return
			}
			a.app.QueueUpdateDraw(a.thread.Follow)
		}()
	})
	a.thread.Composer().SetOnCancel(func() {
		a.app.SetFocus(a.thread.Messages())
	})

	a.templates.SetFocusFunc(func(p tview.Primitive) { a.app.SetFocus(p) })
	a.templates.SetOnSend(func(tmpl api.Template, params map[string]string) {
		go func() {
			if _, err := a.vm.SendTemplate(a.ctx, tmpl, params); err != nil {
				a.vm.Flash.Err(fmt.Errorf("template %s: %w", tmpl.Name, err))
				return
			}
			a.app.QueueUpdateDraw(func() {
				if a.pages.Current() == a.templates {
					a.pages.Pop()
				}
				a.thread.Follow()
			})
		}()
	})

	a.flows.SetOnSelect(func(id int64) {
		go func() {
			f, err := a.vm.Flow(a.ctx, id)
			if err != nil {
				a.vm.Flash.Err(err)
				return
			}
			a.app.QueueUpdateDraw(func() { a.flows.ShowFlow(f) })
		}()
	})

	a.login.SetOnSubmit(func(username, password string) {
		go func() {
			err := a.vm.Login(a.ctx, username, password)
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					a.login.ShowError(err.Error())
					return
				}
				a.login.Reset()
				a.vm.Flash.Infof("signed in as %s", a.vm.User())
				a.pages.Reset(a.contacts)
			})
		}()
	})

	a.prompt.SetOnChange(func(mode ui.PromptMode, text string) {
		if mode == ui.PromptFilter {
			a.filter = text
			a.renderContacts()
		}
	})
	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.deactivatePrompt()
		if mode == ui.PromptCommand {
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(func() {
		if a.prompt.Mode() == ui.PromptFilter {
			a.filter = ""
			a.renderContacts()
		}
		a.deactivatePrompt()
	})

	a.pages.SetOnChange(func(stack []ui.Component) {
		a.crumbs.Update(a.pages.Names())
		if len(stack) > 0 {
			a.app.SetFocus(a.focusTarget(stack[len(stack)-1]))
		}
		a.renderChrome()
	})
}

func (a *App) setupLayout() {
	header := tview.NewFlex().
		AddItem(a.info, 40, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 16, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerHeight, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)
	a.root.SetBackgroundColor(a.theme.BgColor)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() == tcell.KeyCtrlC {
		a.Stop()
		return nil
	}
	if a.promptActive {
		return ev
	}
	switch a.app.GetFocus().(type) {
	case *tview.InputField, *views.Composer, *tview.Button:
		return ev
	}

	current := a.pages.Current()
	if current == nil {
		return ev
	}
	if ev.Key() == tcell.KeyEscape {
		a.back()
		return nil
	}
	if current == a.contacts && ev.Key() == tcell.KeyRune && ev.Rune() >= '1' && ev.Rune() <= '9' {
		if id := a.contacts.ContactByIndex(int(ev.Rune() - '0')); id != 0 {
			a.openContact(id)
		}
		return nil
	}
	if current == a.login {
		return ev
	}
	if a.registry.HandleEvent(current.Name(), ev) {
		return nil
	}
	return ev
}

func (a *App) focusTarget(c ui.Component) tview.Primitive {
	switch c {
	case a.thread:
		return a.thread.Messages()
	case a.templates:
		return a.templates.Table()
	case a.login:
		return a.login.Form()
	}
	return c
}

func (a *App) activatePrompt(mode ui.PromptMode) {
	a.promptActive = true
	a.prompt.Activate(mode)
	if mode == ui.PromptFilter {
		a.prompt.SetText(a.filter)
	}
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) deactivatePrompt() {
	a.promptActive = false
	a.root.ResizeItem(a.prompt, 0, 0)
	if c := a.pages.Current(); c != nil {
		a.app.SetFocus(a.focusTarget(c))
	}
}

// back pops the current page. Leaving the chat closes the conversation so
// new messages count as unread again.
func (a *App) back() {
	if a.pages.Current() == a.login {
		return
	}
	if popped := a.pages.Pop(); popped == a.thread {
		a.vm.CloseContact()
	}
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "contacts":
		a.showContacts()
	case "open":
		if cmd.Args == "" {
			a.vm.Flash.Warn("usage: open <name or phone>")
			return
		}
		c, ok := a.vm.FindContact(cmd.Args)
		if !ok {
			a.vm.Flash.Warn(fmt.Sprintf("no contact matches %q", cmd.Args))
			return
		}
		a.openContact(c.ID)
	case "templates":
		a.showTemplates()
	case "flows":
		a.pages.Push(a.flows)
		a.loadFlows()
	case "details":
		id := a.vm.OpenContactID()
		if id == 0 {
			id = a.contacts.SelectedContact()
		}
		if id != 0 {
			a.showDetails(id)
		}
	case "reconnect":
		go func() {
			a.core.Realtime.Disconnect()
			if err := a.core.Connect(a.ctx); err != nil {
				a.vm.Flash.Err(err)
				return
			}
			a.vm.Flash.Info("reconnecting")
		}()
	case "logout":
		if err := a.vm.Logout(); err != nil {
			a.vm.Flash.Err(err)
		}
		a.showLogin()
	case "help":
		a.pages.Push(a.help)
	case "quit":
		a.Stop()
	default:
		a.vm.Flash.Warn(fmt.Sprintf("unknown command %q", cmd.Name))
	}
}

func (a *App) showLogin() {
	a.login.Reset()
	a.pages.Reset(a.login)
}

func (a *App) showContacts() {
	if a.vm.OpenContactID() != 0 {
		a.vm.CloseContact()
	}
	a.pages.Reset(a.contacts)
	a.renderContacts()
}

func (a *App) showDetails(id int64) {
	a.detailsID = id
	a.details.ShowLoading(a.vm.ContactTitle(id))
	a.pages.Push(a.details)
	go func() {
		d, err := a.vm.ContactDetail(a.ctx, id)
		if err != nil {
			a.vm.Flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			if a.detailsID == id {
				a.details.Update(d)
			}
		})
	}()
}

func (a *App) showTemplates() {
	id := a.vm.OpenContactID()
	target := ""
	if id != 0 {
		target = a.vm.ContactTitle(id)
	}
	a.templates.SetTarget(target)
	a.pages.Push(a.templates)
	a.loadTemplates()
}

func (a *App) openContact(id int64) {
	a.thread.Update(views.ThreadState{Contact: a.vm.ContactTitle(id), Loading: true})
	a.pages.Reset(a.contacts)
	a.pages.Push(a.thread)
	go func() {
		if _, err := a.vm.OpenContact(a.ctx, id); err != nil && !errors.Is(err, intsync.ErrStale) {
			a.vm.Flash.Err(err)
		}
	}()
}

func (a *App) loadOlder() {
	go func() {
		_, err := a.vm.LoadOlder(a.ctx)
		switch {
		case err == nil, errors.Is(err, intsync.ErrLoadInFlight), errors.Is(err, intsync.ErrStale):
		case errors.Is(err, intsync.ErrNoMorePages):
			a.vm.Flash.Info("no older messages")
		default:
			a.vm.Flash.Err(err)
		}
	}()
}

func (a *App) reloadThread() {
	go func() {
		if _, err := a.vm.Reload(a.ctx); err != nil && !errors.Is(err, intsync.ErrLoadInFlight) && !errors.Is(err, intsync.ErrStale) {
			a.vm.Flash.Err(err)
		}
	}()
}

func (a *App) reloadContacts() {
	go func() {
		if _, err := a.vm.LoadContacts(a.ctx); err != nil && !errors.Is(err, intsync.ErrLoadInFlight) {
			a.vm.Flash.Err(err)
		}
	}()
}

func (a *App) loadMoreContacts() {
	go func() {
		_, err := a.vm.LoadMoreContacts(a.ctx)
		switch {
		case err == nil, errors.Is(err, intsync.ErrLoadInFlight):
		case errors.Is(err, intsync.ErrNoMorePages):
			a.vm.Flash.Info("all contacts loaded")
		default:
			a.vm.Flash.Err(err)
		}
	}()
}

func (a *App) loadTemplates() {
	go func() {
		if err := a.vm.LoadTemplates(a.ctx); err != nil {
			a.vm.Flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() { a.templates.Update(a.vm.Templates()) })
	}()
}

func (a *App) loadFlows() {
	go func() {
		if err := a.vm.LoadFlows(a.ctx); err != nil {
			a.vm.Flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() { a.flows.Update(a.vm.Flows()) })
	}()
}

func (a *App) renderContacts() {
	a.contacts.Update(a.vm.Contacts(a.filter), a.vm.Book().Cursor(), a.filter, time.Now())
}

func (a *App) renderThread() {
	id := a.vm.OpenContactID()
	if id == 0 {
		return
	}
	tl := a.vm.Timeline()
	st := views.ThreadState{
		Contact: a.vm.ContactTitle(id),
		Buckets: a.vm.Buckets(),
		Cursor:  tl.Cursor(),
		Loading: tl.Loading(),
	}
	if a.thread.Update(st) {
		a.vm.Flash.Info("new message from " + st.Contact)
	}
	a.statusBar.SetLoading(st.Loading)
}

func (a *App) renderChrome() {
	a.info.Update(&ui.SessionData{
		Session:    a.core.Session,
		User:       a.vm.User(),
		API:        a.vm.APIBase(),
		Connection: string(a.vm.Connection()),
		Contacts:   len(a.vm.Contacts("")),
		Unread:     a.vm.UnreadTotal(),
		Uptime:     time.Since(a.started),
	})
	a.statusBar.SetState(a.vm.Connection())
	a.statusBar.SetUser(a.vm.User())
	if c := a.pages.Current(); c != nil {
		a.menu.Update(append(c.Hints(), a.registry.Hints("")...))
	}
	a.flashBar.Update(a.vm.Flash.GetMessage())
}

// watch funnels core change signals into redraws. All view mutation happens
// on the tview goroutine through QueueUpdateDraw.
func (a *App) watch() {
	connCh, unsubConn := a.core.Bus.Subscribe("connection.", 16)
	defer unsubConn()
	authCh, unsubAuth := a.core.Bus.Subscribe(bus.KindAuthExpired, 4)
	defer unsubAuth()
	sentCh, unsubSent := a.core.Bus.Subscribe(bus.KindMessageSent, 16)
	defer unsubSent()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.vm.Book().Changes():
			a.app.QueueUpdateDraw(func() {
				a.renderContacts()
				a.renderChrome()
			})
		case <-a.vm.Timeline().Changes():
			a.app.QueueUpdateDraw(a.renderThread)
		case <-a.vm.RefreshCh():
			a.app.QueueUpdateDraw(a.renderChrome)
		case <-connCh:
			a.app.QueueUpdateDraw(a.renderChrome)
		case <-authCh:
			a.app.QueueUpdateDraw(func() {
				a.vm.Flash.Warn("session expired, please log in again")
				a.showLogin()
			})
		case ev := <-sentCh:
			if s, ok := ev.Payload.(outbox.Sent); ok {
				a.log.Debug("send confirmed",
					zap.String("client_msg_id", s.ClientMsgID),
					zap.String("message_id", s.Message.MessageID),
				)
			}
		case <-a.vm.Flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(a.vm.Flash.GetMessage()) })
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.renderChrome)
		}
	}
}

func (a *App) bootstrap() {
	if _, err := a.vm.LoadContacts(a.ctx); err != nil {
		a.vm.Flash.Err(err)
		return
	}
	if last := a.vm.LastContact(); last != 0 {
		a.app.QueueUpdateDraw(func() { a.openContact(last) })
	}
}

// Run starts the TUI application. It blocks until the user quits.
func (a *App) Run() error {
	if a.vm.HasCredentials() {
		a.pages.Reset(a.contacts)
		go a.bootstrap()
	} else {
		a.showLogin()
	}
	go a.watch()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
