package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Pages is a stack of named components on top of tview.Pages. Only the top
// of the stack is visible.
type Pages struct {
	*tview.Pages
	components map[string]Component
	stack      []string
	onChange   func(top Component, stack []string)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{
		Pages:      tview.NewPages(),
		components: make(map[string]Component),
	}
}

// Add registers c under id without showing it.
func (p *Pages) Add(id string, c Component) {
	p.components[id] = c
	p.AddPage(id, c, true, false)
}

// SetOnChange sets a callback that fires when the stack changes.
func (p *Pages) SetOnChange(fn func(top Component, stack []string)) {
	p.onChange = fn
}

// Push shows id on top of the stack. Pushing the current top is a no-op.
func (p *Pages) Push(id string) {
	if p.Current() == id {
		return
	}
	if top := p.Current(); top != "" {
		p.HidePage(top)
	}
	p.stack = append(p.stack, id)
	p.show(id)
}

// Pop removes the top page and shows the one below. The last page is
// never popped. Returns the id of the popped page, or "".
func (p *Pages) Pop() string {
	if len(p.stack) < 2 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(top)
	p.stack = p.stack[:len(p.stack)-1]
	p.show(p.Current())
	return top
}

// Reset clears the stack and shows only id.
func (p *Pages) Reset(id string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{id}
	p.show(id)
}

// Current returns the id of the top page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Top returns the component on top of the stack, or nil.
func (p *Pages) Top() Component {
	return p.components[p.Current()]
}

// Stack returns the ids on the stack, bottom first.
func (p *Pages) Stack() []string {
	return slices.Clone(p.stack)
}

// Crumbs returns the names of the stacked components, bottom first.
func (p *Pages) Crumbs() []string {
	names := make([]string, 0, len(p.stack))
	for _, id := range p.stack {
		if c, ok := p.components[id]; ok {
			names = append(names, c.Name())
		}
	}
	return names
}

func (p *Pages) show(id string) {
	p.ShowPage(id)
	p.SendToFront(id)
	if p.onChange != nil {
		p.onChange(p.Top(), p.Stack())
	}
}
