package views

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/dategroup"
	"github.com/matheus3301/wppcrm/internal/status"
	intsync "github.com/matheus3301/wppcrm/internal/sync"
	"github.com/matheus3301/wppcrm/internal/tui/ui"
	"github.com/rivo/tview"
)

var now = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC) // a Wednesday

func msg(id string, fromContact bool, status string, at time.Time, content string) api.Message {
	return api.Message{MessageID: id, ContactID: 7, IsFromUser: fromContact, Status: status, Timestamp: at, Content: content}
}

func TestStatusGlyph(t *testing.T) {
	theme := ui.DefaultTheme()
	tests := []struct {
		dir    api.Direction
		status string
		want   string
	}{
		{api.FromOperator, api.StatusSending, "✓"},
		{api.FromOperator, api.StatusSent, "✓"},
		{api.FromOperator, api.StatusDelivered, "✓✓"},
		{api.FromOperator, api.StatusRead, "[" + ui.Tag(theme.ReadColor) + "]✓✓[-]"},
		{api.FromOperator, api.StatusFailed, "[" + ui.Tag(theme.FailedColor) + "]✗[-]"},
		{api.FromOperator, "", ""},
		{api.FromContact, api.StatusRead, ""},
	}
	for _, tt := range tests {
		if got := statusGlyph(tt.dir, tt.status, theme); got != tt.want {
			t.Errorf("statusGlyph(%v, %q) = %q, want %q", tt.dir, tt.status, got, tt.want)
		}
	}
}

func TestRenderThread(t *testing.T) {
	msgs := []api.Message{
		msg("a", true, api.StatusRead, now.AddDate(0, 0, -1), "hello"),
		msg("b", false, api.StatusDelivered, now.Add(-time.Hour), "hi there"),
		msg("c", true, "", now.Add(-30*time.Minute), "[not a tag]"),
	}
	st := ThreadState{
		Contact: "Ana",
		Buckets: dategroup.Group(msgs, now),
		Cursor:  intsync.Cursor{Page: 1, HasNext: true},
	}
	out := RenderThread(st, ui.DefaultTheme())

	yesterday := strings.Index(out, "Yesterday")
	today := strings.Index(out, "Today")
	if yesterday < 0 || today < 0 || yesterday > today {
		t.Fatalf("day separators missing or out of order:\n%s", out)
	}
	if !strings.Contains(out, "load older") {
		t.Error("older page hint missing")
	}
	if strings.Count(out, "✓✓") != 1 {
		t.Errorf("only the operator message carries a glyph:\n%s", out)
	}
	if !strings.Contains(out, "[not a tag[]") {
		t.Error("message content must be escaped")
	}
	if !strings.Contains(out, "You") || !strings.Contains(out, "Ana") {
		t.Error("authors missing")
	}

	st.Cursor.HasNext = false
	st.Loading = true
	if out := RenderThread(st, ui.DefaultTheme()); !strings.Contains(out, "loading") || strings.Contains(out, "load older") {
		t.Errorf("loading state:\n%s", out)
	}
	if out := RenderThread(ThreadState{Contact: "Ana"}, ui.DefaultTheme()); !strings.Contains(out, "no messages yet") {
		t.Errorf("empty state:\n%s", out)
	}
}

func TestRenderThreadReplyPreview(t *testing.T) {
	m := msg("r", true, "", now, "yes")
	m.ReplyToInfo = &api.ReplyToInfo{Content: "are you coming?\nlater"}
	out := RenderThread(ThreadState{Contact: "Ana", Buckets: dategroup.Group([]api.Message{m}, now)}, ui.DefaultTheme())
	if !strings.Contains(out, "┃ are you coming? later") {
		t.Errorf("reply preview:\n%s", out)
	}
}

func TestMessageBody(t *testing.T) {
	name := "welcome"
	tmpl := api.Message{
		MessageType:  api.KindTemplate,
		TemplateName: &name,
		TemplateComponents: []api.TemplateComponent{
			{Type: "HEADER", Text: "Hi"},
			{Type: "BODY", Text: "Welcome aboard"},
		},
	}
	if got := messageBody(tmpl); got != "[template: welcome]\nWelcome aboard" {
		t.Errorf("template body = %q", got)
	}

	flow := api.Message{
		MessageType: api.KindFlow,
		FlowResponses: []api.FlowResponse{{
			FlowName:     "signup",
			ScreenTitle:  "Details",
			ResponseData: map[string]any{"name": "Ana", "age": 30},
		}},
	}
	if got := messageBody(flow); got != "[flow: signup / Details] age=30, name=Ana" {
		t.Errorf("flow body = %q", got)
	}

	media := api.Message{Content: "look", MediaURL: "https://x/y.jpg"}
	if got := messageBody(media); got != "look\n[media] https://x/y.jpg" {
		t.Errorf("media body = %q", got)
	}
}

func TestFormatListTime(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, ""},
		{time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC), "09:30"},
		{time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC), "Mon"},
		{time.Date(2025, 2, 20, 9, 30, 0, 0, time.UTC), "Feb 20"},
		{time.Date(2024, 12, 25, 9, 30, 0, 0, time.UTC), "25/12/24"},
	}
	for _, tt := range tests {
		if got := formatListTime(tt.at, now); got != tt.want {
			t.Errorf("formatListTime(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"👍\U0001F3FB", "👍"},
		{"a\u200Db", "ab"},
		{"bell\x07\x1b[31m", "bell[31m"},
		{"line\nnext\ttab", "line\nnext\ttab"},
	}
	for _, tt := range tests {
		if got := sanitizeForTerminal(tt.in); got != tt.want {
			t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := singleLine("a\n  b\tc"); got != "a b c" {
		t.Errorf("singleLine = %q", got)
	}
}

func TestContactList(t *testing.T) {
	cl := NewContactList(ui.DefaultTheme())
	var opened int64
	loadMore := false
	cl.SetOnOpen(func(id int64) { opened = id })
	cl.SetOnLoadMore(func() { loadMore = true })

	contacts := []api.Contact{
		{ID: 1, Name: "Ana", PhoneNumber: "5511", UnreadCount: 3, LastMessage: &api.LastMessage{Content: "oi", IsFromUser: true, Timestamp: now}},
		{ID: 2, PhoneNumber: "5522", LastMessage: &api.LastMessage{Content: "ok", Status: api.StatusDelivered, Timestamp: now}},
	}
	cl.Update(contacts, intsync.Cursor{Page: 1, HasNext: true, Total: 5}, "", now)

	if cl.Len() != 2 || cl.ContactByIndex(2) != 2 || cl.ContactByIndex(3) != 0 {
		t.Fatalf("rows: len=%d", cl.Len())
	}
	if got := cl.GetCell(1, 4).Text; got != "3 " {
		t.Errorf("unread cell = %q", got)
	}
	if got := cl.GetCell(2, 0).Text; got != " 5522" {
		t.Errorf("nameless contact falls back to phone: %q", got)
	}
	if got := cl.GetCell(2, 2).Text; !strings.HasPrefix(got, " ✓✓ ok") {
		t.Errorf("preview = %q", got)
	}
	if got := cl.GetCell(3, 0).Text; got != loadMoreLabel {
		t.Errorf("load more row = %q", got)
	}
	if title := cl.GetTitle(); !strings.Contains(title, "2/5") {
		t.Errorf("title = %q", title)
	}

	enter := func() {
		cl.InputHandler()(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), func(tview.Primitive) {})
	}
	cl.Select(3, 0)
	enter()
	if !loadMore {
		t.Error("enter on the last row should load more")
	}
	cl.Select(2, 0)
	enter()
	if cl.SelectedContact() != 2 || opened != 2 {
		t.Fatalf("selected = %d opened = %d", cl.SelectedContact(), opened)
	}
	// Reordering keeps the highlighted contact.
	cl.Update([]api.Contact{contacts[1], contacts[0]}, intsync.Cursor{Page: 1}, "", now)
	if row, _ := cl.GetSelection(); row != 1 {
		t.Errorf("selection row = %d, want 1", row)
	}
	if cl.GetCell(3, 0).Text == loadMoreLabel {
		t.Error("load more shown without a next page")
	}
}

func TestMessageThreadFlagsUnseenArrivals(t *testing.T) {
	mt := NewMessageThread(ui.DefaultTheme())
	base := []api.Message{msg("a", true, "", now.Add(-time.Hour), "one")}
	state := func(msgs []api.Message) ThreadState {
		return ThreadState{Contact: "Ana", Buckets: dategroup.Group(msgs, now)}
	}

	if mt.Update(state(base)) {
		t.Fatal("first render is never an arrival")
	}
	withNew := append(base, msg("b", true, "", now, "two"))
	if mt.Update(state(withNew)) {
		t.Error("arrival while following should not flag")
	}

	mt.follow = false
	withMore := append(withNew, msg("c", true, "", now.Add(time.Minute), "three"))
	if !mt.Update(state(withMore)) {
		t.Error("contact message while scrolled up should flag")
	}
	if mt.Update(state(withMore)) {
		t.Error("same newest message flagged twice")
	}
	own := append(withMore, msg("d", false, api.StatusSent, now.Add(2*time.Minute), "mine"))
	if mt.Update(state(own)) {
		t.Error("operator messages never flag")
	}

	mt.Update(ThreadState{Contact: "Bruno"})
	if !mt.Following() {
		t.Error("switching conversation resumes following")
	}
}

func TestFormatContactDetail(t *testing.T) {
	notes := "VIP"
	d := &api.ContactDetail{
		Contact: api.Contact{Name: "Ana", PhoneNumber: "+55 (11) 9999-0000", UnreadCount: 1},
		Labels:  []string{"lead", "sp"},
		Notes:   &notes,
	}
	out := FormatContactDetail(d, ui.DefaultTheme())
	for _, want := range []string{"https://wa.me/551199990000", "lead, sp", "VIP", "█"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail missing %q", want)
		}
	}

	d.PhoneNumber = ""
	if out := FormatContactDetail(d, ui.DefaultTheme()); strings.Contains(out, "wa.me") {
		t.Error("no link without a phone number")
	}
}

func TestFormatTemplate(t *testing.T) {
	var tmpl api.Template
	raw := `{"id":1,"name":"promo","category":"MARKETING","language":"pt_BR","status":"APPROVED",
		"components":[{"type":"body","text":"Hi {{name}}"},{"type":"BUTTONS","buttons":[{"type":"URL","text":"Open","url":"https://x"}]}],
		"payload_structure":{"parameters":[{"name":"name","type":"text","example":"Ana"}]}}`
	if err := json.Unmarshal([]byte(raw), &tmpl); err != nil {
		t.Fatal(err)
	}
	out := FormatTemplate(tmpl, ui.DefaultTheme())
	for _, want := range []string{"promo", "BODY", "Hi {{name}}", "(URL) Open → https://x", "PARAMETERS", "name (text) e.g. Ana"} {
		if !strings.Contains(out, want) {
			t.Errorf("template missing %q:\n%s", want, out)
		}
	}
}

func TestTemplatesViewCollectsParameters(t *testing.T) {
	tv := NewTemplatesView(ui.DefaultTheme())
	var sent map[string]string
	tv.SetOnSend(func(_ api.Template, params map[string]string) { sent = params })

	tmpl := api.Template{ID: 1, Name: "promo"}
	tmpl.PayloadStructure.Parameters = []api.TemplateParameter{{Name: "name"}, {Name: "code"}}
	tv.Update([]api.Template{tmpl})
	tv.edit(tmpl)
	if !tv.Editing() {
		t.Fatal("form not open")
	}
	for name, v := range map[string]string{"name": " Ana ", "code": "X1"} {
		tv.form.GetFormItemByLabel(name).(*tview.InputField).SetText(v)
	}
	tv.submit()
	if tv.Editing() {
		t.Error("form still open after submit")
	}
	if sent["name"] != "Ana" || sent["code"] != "X1" {
		t.Errorf("params = %v", sent)
	}
}

func TestFormatFlow(t *testing.T) {
	f := &api.Flow{Name: "signup", Status: "PUBLISHED", Screens: json.RawMessage(`[{"id":"WELCOME","title":"Welcome"},{"id":"DONE"}]`)}
	out := FormatFlow(f, ui.DefaultTheme())
	if !strings.Contains(out, "WELCOME  Welcome") || !strings.Contains(out, "DONE") {
		t.Errorf("screens:\n%s", out)
	}
	if !strings.Contains(out, "Flow ID:") {
		t.Error("attributes missing")
	}

	f.Screens = json.RawMessage(`{"layout":"single"}`)
	if out := FormatFlow(f, ui.DefaultTheme()); !strings.Contains(out, `"layout": "single"`) {
		t.Errorf("raw screens:\n%s", out)
	}
}

func TestFormatStatus(t *testing.T) {
	out := FormatStatus("work", status.Connected, "", true, now, ui.DefaultTheme())
	for _, want := range []string{"work", "[limegreen]CONNECTED", "not logged in", "15:00", "~"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q: %s", want, out)
		}
	}
}
