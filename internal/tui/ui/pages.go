package ui

import "github.com/rivo/tview"

// Pages is a stack-based page manager wrapping tview.Pages.
// It provides push/pop semantics and notifies on stack changes.
type Pages struct {
	*tview.Pages
	stack    []Component
	onChange func(stack []Component)
}

// NewPages creates a new stack-based page manager.
func NewPages() *Pages {
	return &Pages{
		Pages: tview.NewPages(),
	}
}

// SetOnChange sets a callback that fires when the stack changes.
func (p *Pages) SetOnChange(fn func(stack []Component)) {
	p.onChange = fn
}

// Push shows c on top of the stack, registering it on first use. Pushing the
// component already on top only refreshes the notification.
func (p *Pages) Push(c Component) {
	if top := p.Current(); top == c {
		p.notify()
		return
	}
	if !p.HasPage(c.Name()) {
		p.AddPage(c.Name(), c, true, false)
	}
	if top := p.Current(); top != nil {
		p.HidePage(top.Name())
	}
	p.stack = append(p.stack, c)
	p.ShowPage(c.Name())
	p.SendToFront(c.Name())
	p.notify()
}

// Pop removes the top page and shows the previous one. The last page is
// never popped; nil is returned instead.
func (p *Pages) Pop() Component {
	if len(p.stack) < 2 {
		return nil
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(top.Name())
	p.stack = p.stack[:len(p.stack)-1]
	current := p.stack[len(p.stack)-1]
	p.ShowPage(current.Name())
	p.SendToFront(current.Name())
	p.notify()
	return top
}

// Current returns the top component, or nil.
func (p *Pages) Current() Component {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

// Names returns the stack as component names, bottom first.
func (p *Pages) Names() []string {
	names := make([]string, len(p.stack))
	for i, c := range p.stack {
		names[i] = c.Name()
	}
	return names
}

// Depth returns the current stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}

// Reset clears the stack and shows only c.
func (p *Pages) Reset(c Component) {
	for _, old := range p.stack {
		p.HidePage(old.Name())
	}
	if !p.HasPage(c.Name()) {
		p.AddPage(c.Name(), c, true, false)
	}
	p.stack = []Component{c}
	p.ShowPage(c.Name())
	p.SendToFront(c.Name())
	p.notify()
}

func (p *Pages) notify() {
	if p.onChange != nil {
		stack := make([]Component, len(p.stack))
		copy(stack, p.stack)
		p.onChange(stack)
	}
}
