package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the menu column.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // 0-9 shortcuts render in a different color
}

// Component is a page of the terminal client.
type Component interface {
	tview.Primitive
	// Name is the crumb shown while the page is on the stack.
	Name() string
	Hints() []MenuHint
}
