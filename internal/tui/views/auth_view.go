package views

import (
	"fmt"

	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// AuthMode selects which form the auth view shows.
type AuthMode int

const (
	ModeLogIn AuthMode = iota
	ModeSignUp
)

// AuthView is the log in / sign up form shown while anonymous.
type AuthView struct {
	*tview.Flex
	theme  *ui.Theme
	status *tview.TextView
	form   *tview.Form
	mode   AuthMode

	fullName string
	email    string
	password string

	onLogIn  func(protocol.LogInRequest)
	onSignUp func(protocol.SignUpRequest)
}

// NewAuthView creates the auth form in log in mode.
func NewAuthView(theme *ui.Theme) *AuthView {
	status := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	status.SetBackgroundColor(theme.BgColor)
	status.SetTextColor(theme.FgColor)

	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitleColor(theme.TitleColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.BorderColor)
	form.SetButtonTextColor(theme.BgColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(status, 2, 0, false).
		AddItem(form, 0, 1, true)
	flex.SetBackgroundColor(theme.BgColor)

	av := &AuthView{
		Flex:   flex,
		theme:  theme,
		status: status,
		form:   form,
	}
	av.SetMode(ModeLogIn)
	return av
}

// Name implements ui.Component.
func (av *AuthView) Name() string {
	if av.mode == ModeSignUp {
		return "Sign up"
	}
	return "Log in"
}

// Hints implements ui.Component.
func (av *AuthView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Submit"},
		{Key: "Ctrl-C", Description: "Quit"},
	}
}

// SetOnLogIn sets the callback for a submitted log in form.
func (av *AuthView) SetOnLogIn(fn func(protocol.LogInRequest)) { av.onLogIn = fn }

// SetOnSignUp sets the callback for a submitted sign up form.
func (av *AuthView) SetOnSignUp(fn func(protocol.SignUpRequest)) { av.onSignUp = fn }

// Mode returns the form currently shown.
func (av *AuthView) Mode() AuthMode { return av.mode }

// Form returns the form primitive (for focus management).
func (av *AuthView) Form() *tview.Form { return av.form }

// SetMode rebuilds the form for mode. Typed email and name are kept; the
// password is cleared.
func (av *AuthView) SetMode(mode AuthMode) {
	av.mode = mode
	av.password = ""
	av.form.Clear(true)

	if mode == ModeSignUp {
		av.form.SetTitle(" Create account ")
		av.form.AddInputField("Full name", av.fullName, 32, nil, func(s string) { av.fullName = s })
	} else {
		av.form.SetTitle(" Log in ")
	}
	av.form.AddInputField("Email", av.email, 32, nil, func(s string) { av.email = s })
	av.form.AddPasswordField("Password", "", 32, '*', func(s string) { av.password = s })

	if mode == ModeSignUp {
		av.form.AddButton("Sign up", av.Submit)
		av.form.AddButton("I have an account", func() { av.SetMode(ModeLogIn) })
	} else {
		av.form.AddButton("Log in", av.Submit)
		av.form.AddButton("Create account", func() { av.SetMode(ModeSignUp) })
	}
	av.form.SetFocus(0)
}

// Submit hands the typed credentials to the callback of the current mode.
func (av *AuthView) Submit() {
	switch av.mode {
	case ModeSignUp:
		if av.onSignUp != nil {
			av.onSignUp(protocol.SignUpRequest{FullName: av.fullName, Email: av.email, Password: av.password})
		}
	default:
		if av.onLogIn != nil {
			av.onLogIn(protocol.LogInRequest{Email: av.email, Password: av.password})
		}
	}
}

// ShowMessage displays a status line above the form.
func (av *AuthView) ShowMessage(msg string) {
	av.status.Clear()
	if msg != "" {
		_, _ = fmt.Fprintf(av.status, "\n[::d]%s[-:-:-]", tview.Escape(msg))
	}
}
