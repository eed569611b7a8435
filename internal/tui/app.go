package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatsync/internal/app"
	"github.com/matheus3301/chatsync/internal/media"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/tui/keys"
	"github.com/matheus3301/chatsync/internal/tui/model"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/matheus3301/chatsync/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// Page ids.
const (
	pageAuth     = "auth"
	pageContacts = "contacts"
	pageThread   = "thread"
	pageDetails  = "details"
	pageHelp     = "help"
)

const opTimeout = 15 * time.Second

// Options configures the terminal client.
type Options struct {
	Profile string
	Theme   *ui.Theme
	// SaveTheme persists a theme choice. Nil disables :theme.
	SaveTheme func(name string) error
	Logger    *zap.Logger
}

// App is the terminal client shell. It renders snapshots of the managers
// and turns keys and commands into manager operations.
type App struct {
	app    *tview.Application
	chat   *app.App
	vm     *model.ViewModel
	opts   Options
	theme  *ui.Theme
	logger *zap.Logger

	registry *keys.Registry
	root     *tview.Flex
	pages    *ui.Pages
	info     *ui.IdentityInfo
	menu     *ui.Menu
	logo     *ui.Logo
	crumbs   *ui.Crumbs
	flash    *ui.FlashBar
	prompt   *ui.Prompt

	auth     *views.AuthView
	contacts *views.ContactList
	thread   *views.MessageThread
	details  *views.ContactInfo
	help     *views.HelpView

	promptActive bool
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewApp creates the terminal client over the wired managers.
func NewApp(chat *app.App, opts Options) *App {
	theme := opts.Theme
	if theme == nil {
		theme = ui.DefaultTheme()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:      tview.NewApplication(),
		chat:     chat,
		vm:       model.NewViewModel(chat),
		opts:     opts,
		theme:    theme,
		logger:   logger,
		registry: keys.NewRegistry(),
		pages:    ui.NewPages(),
		info:     ui.NewIdentityInfo(theme),
		menu:     ui.NewMenu(theme),
		logo:     ui.NewLogo(theme),
		crumbs:   ui.NewCrumbs(theme),
		flash:    ui.NewFlashBar(theme),
		prompt:   ui.NewPrompt(theme),
		auth:     views.NewAuthView(theme),
		contacts: views.NewContactList(theme),
		thread:   views.NewMessageThread(theme),
		details:  views.NewContactInfo(theme),
		help:     views.NewHelpView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.setupPages()
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	a.render()

	return a
}

func (a *App) setupPages() {
	a.pages.Add(pageAuth, a.auth)
	a.pages.Add(pageContacts, a.contacts)
	a.pages.Add(pageThread, a.thread)
	a.pages.Add(pageDetails, a.details)
	a.pages.Add(pageHelp, a.help)
	a.pages.SetOnChange(func(top ui.Component, _ []string) {
		a.menu.Update(top.Hints())
		a.crumbs.Update(a.pages.Crumbs())
	})
	a.pages.Reset(pageAuth)
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(
		keys.OnRune(':', func() { a.showPrompt(ui.PromptCommand) }),
		keys.OnRune('?', func() { a.push(pageHelp) }),
	)
	a.registry.AddPage(pageContacts,
		keys.OnRune('q', a.Stop),
		keys.OnRune('/', func() { a.showPrompt(ui.PromptFilter) }),
		keys.OnRune('o', a.contacts.ToggleOnlineOnly),
		keys.OnRune('r', a.reload),
		keys.OnRune('d', func() {
			if c := a.contacts.Selected(); c != nil {
				a.showDetails(*c)
			}
		}),
	)
	for n := '1'; n <= '9'; n++ {
		idx := int(n - '0')
		a.registry.AddPage(pageContacts, keys.OnRune(n, func() {
			if c := a.contacts.At(idx); c != nil {
				a.openContact(*c)
			}
		}))
	}
	a.registry.AddPage(pageThread,
		keys.OnRune('i', func() { a.app.SetFocus(a.thread.Composer()) }),
		keys.OnRune('r', a.reload),
		keys.OnRune('d', func() {
			if sel, ok := a.chat.Conversation.Selection(); ok {
				a.showDetails(sel)
			}
		}),
	)
}

func (a *App) setupCallbacks() {
	a.auth.SetOnLogIn(func(req protocol.LogInRequest) {
		a.background("login", func(ctx context.Context) error {
			return a.chat.Session.LogIn(ctx, req)
		})
	})
	a.auth.SetOnSignUp(func(req protocol.SignUpRequest) {
		a.background("signup", func(ctx context.Context) error {
			return a.chat.Session.SignUp(ctx, req)
		})
	})

	a.contacts.SetSelectedFunc(func(row, _ int) {
		if c := a.contacts.At(row); c != nil {
			a.openContact(*c)
		}
	})

	a.thread.SetOnSend(func(text string) {
		a.background("send", func(ctx context.Context) error {
			_, err := a.chat.Conversation.SendMessage(ctx, protocol.SendRequest{Text: text})
			return err
		})
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptFilter:
			a.contacts.SetFilter(strings.TrimSpace(text))
		case ui.PromptCommand:
			a.execute(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(func() {
		if a.prompt.Mode() == ui.PromptFilter {
			a.contacts.SetFilter("")
		}
		a.hidePrompt()
	})
}

func (a *App) setupLayout() {
	header := tview.NewFlex().
		AddItem(a.info, 0, 1, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 16, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flash, 1, 0, false)
	a.root.SetBackgroundColor(a.theme.BgColor)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
	a.focusTop()
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if a.promptActive {
		return ev
	}
	page := a.pages.Current()
	focus := a.app.GetFocus()

	if ev.Key() == tcell.KeyEscape {
		if focus == a.thread.Composer() {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		if page == pageContacts && a.contacts.Filter() != "" {
			a.contacts.SetFilter("")
			return nil
		}
		a.back()
		return nil
	}

	// The auth form and the composer own every printable key.
	if page == pageAuth {
		return ev
	}
	if _, ok := focus.(*tview.InputField); ok {
		return ev
	}
	if a.registry.HandleEvent(page, ev) {
		return nil
	}
	return ev
}

// execute runs a parsed ':' command.
func (a *App) execute(cmd Command) {
	authed := a.vm.Snapshot().Identity != nil
	switch cmd.Name {
	case "":
	case "quit":
		a.Stop()
	case "help":
		a.push(pageHelp)
	case "theme":
		a.setTheme(cmd.Args)
	case "logout", "chat", "image", "name", "avatar", "reload":
		if !authed {
			a.chat.Flash.Warn("Log in first")
			return
		}
		a.executeAuthed(cmd)
	default:
		a.chat.Flash.Warn("Unknown command: " + cmd.Name)
	}
}

func (a *App) executeAuthed(cmd Command) {
	switch cmd.Name {
	case "logout":
		a.background("logout", func(ctx context.Context) error {
			return a.chat.Session.LogOut(ctx)
		})
	case "chat":
		c, ok := a.findContact(cmd.Args)
		if !ok {
			a.chat.Flash.Warn(fmt.Sprintf("No contact matches %q", cmd.Args))
			return
		}
		a.openContact(c)
	case "image":
		if cmd.Args == "" {
			a.chat.Flash.Warn("Usage: :image <file or url>")
			return
		}
		image, err := imageArg(cmd.Args)
		if err != nil {
			a.chat.Flash.Error(fmt.Sprintf("Cannot attach %s: %v", cmd.Args, err))
			return
		}
		a.background("send image", func(ctx context.Context) error {
			_, err := a.chat.Conversation.SendMessage(ctx, protocol.SendRequest{Image: image})
			return err
		})
	case "name":
		if cmd.Args == "" {
			a.chat.Flash.Warn("Usage: :name <full name>")
			return
		}
		a.updateProfile(protocol.UpdateProfileRequest{FullName: cmd.Args})
	case "avatar":
		if cmd.Args == "" {
			a.chat.Flash.Warn("Usage: :avatar <url>")
			return
		}
		a.updateProfile(protocol.UpdateProfileRequest{ProfilePic: cmd.Args})
	case "reload":
		a.reload()
	}
}

// imageArg turns a local file into a data URL; anything else is sent as a
// link.
func imageArg(arg string) (string, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") || media.IsDataURL(arg) {
		return arg, nil
	}
	return media.ReadImage(arg)
}

func (a *App) updateProfile(req protocol.UpdateProfileRequest) {
	a.background("update profile", func(ctx context.Context) error {
		return a.chat.Session.UpdateProfile(ctx, req)
	})
}

func (a *App) setTheme(name string) {
	if name != "dark" && name != "light" {
		a.chat.Flash.Warn("Usage: :theme dark|light")
		return
	}
	if a.opts.SaveTheme == nil {
		a.chat.Flash.Warn("Theme cannot be saved")
		return
	}
	if err := a.opts.SaveTheme(name); err != nil {
		a.logger.Warn("saving theme failed", zap.Error(err))
		a.chat.Flash.Error("Failed to save theme")
		return
	}
	a.chat.Flash.Success(fmt.Sprintf("Theme set to %s, restart to apply", name))
}

// findContact matches name against the contact list: an exact
// case-insensitive match wins over the first partial one.
func (a *App) findContact(name string) (protocol.Contact, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return protocol.Contact{}, false
	}
	contacts := a.chat.Conversation.Contacts()
	if i := slices.IndexFunc(contacts, func(c protocol.Contact) bool {
		return strings.ToLower(c.FullName) == name
	}); i >= 0 {
		return contacts[i], true
	}
	if i := slices.IndexFunc(contacts, func(c protocol.Contact) bool {
		return strings.Contains(strings.ToLower(c.FullName), name)
	}); i >= 0 {
		return contacts[i], true
	}
	return protocol.Contact{}, false
}

func (a *App) openContact(c protocol.Contact) {
	a.background("select", func(ctx context.Context) error {
		return a.chat.Conversation.Select(ctx, &c)
	})
	// Select publishes the selection before it fetches, so the thread is
	// rendered with the new peer as soon as the next refresh lands.
	a.thread.Update(views.ThreadData{Peer: c, Loading: true})
	for a.pages.Current() != pageContacts && a.pages.Pop() != "" {
	}
	a.push(pageThread)
}

func (a *App) showDetails(c protocol.Contact) {
	s := a.vm.Snapshot()
	count := 0
	if s.Selection != nil && s.Selection.ID == c.ID {
		count = len(s.Messages)
	}
	a.details.Update(c, s.IsOnline(c.ID), count)
	a.push(pageDetails)
}

func (a *App) reload() {
	a.background("load contacts", a.chat.Conversation.LoadContacts)
	if sel, ok := a.chat.Conversation.Selection(); ok {
		a.background("load history", func(ctx context.Context) error {
			return a.chat.Conversation.LoadHistory(ctx, sel.ID)
		})
	}
}

func (a *App) push(page string) {
	a.pages.Push(page)
	a.focusTop()
}

func (a *App) back() {
	popped := a.pages.Pop()
	if popped == pageThread {
		a.background("deselect", func(ctx context.Context) error {
			return a.chat.Conversation.Select(ctx, nil)
		})
	}
	a.focusTop()
}

func (a *App) focusTop() {
	switch a.pages.Current() {
	case pageAuth:
		a.app.SetFocus(a.auth.Form())
	case pageContacts:
		a.app.SetFocus(a.contacts)
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageDetails:
		a.app.SetFocus(a.details)
	case pageHelp:
		a.app.SetFocus(a.help)
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.promptActive = true
	a.prompt.Activate(mode)
	if mode == ui.PromptFilter {
		a.prompt.SetText(a.contacts.Filter())
	}
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.promptActive = false
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusTop()
}

// background runs op off the UI goroutine. Failures are already reported
// to the user by the managers; they are only logged here.
func (a *App) background(name string, op func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, opTimeout)
		defer cancel()
		if err := op(ctx); err != nil {
			a.logger.Debug("operation failed", zap.String("op", name), zap.Error(err))
		}
	}()
}

// render applies the current snapshot to every view. It runs on the UI
// goroutine.
func (a *App) render() {
	s := a.vm.Snapshot()

	switch {
	case s.Identity == nil && a.pages.Current() != pageAuth:
		a.pages.Reset(pageAuth)
		a.focusTop()
	case s.Identity != nil && a.pages.Current() == pageAuth:
		a.pages.Reset(pageContacts)
		a.focusTop()
		a.background("load contacts", a.chat.Conversation.LoadContacts)
	}

	switch {
	case s.SessionLoading.Checking:
		a.auth.ShowMessage("Checking session...")
	case s.SessionLoading.LoggingIn:
		a.auth.ShowMessage("Logging in...")
	case s.SessionLoading.SigningUp:
		a.auth.ShowMessage("Creating account...")
	default:
		a.auth.ShowMessage("")
	}

	a.contacts.Update(s.Contacts, s.IsOnline)
	if s.Selection != nil {
		selfID := ""
		if s.Identity != nil {
			selfID = s.Identity.ID
		}
		a.thread.Update(views.ThreadData{
			Peer:     *s.Selection,
			SelfID:   selfID,
			Online:   s.IsOnline(s.Selection.ID),
			Messages: s.Messages,
			Loading:  s.ConversationLoading.Messages,
			Sending:  s.ConversationLoading.Sending,
		})
	}

	data := &ui.IdentityData{
		Profile:  a.opts.Profile,
		Status:   string(s.Status),
		Online:   len(s.Online),
		Contacts: len(s.Contacts),
	}
	if s.Identity != nil {
		data.Name = s.Identity.FullName
		data.Email = s.Identity.Email
	}
	a.info.Update(data)
	a.logo.SetStatus(string(s.Status))
	a.flash.Update(s.Notice)
	if top := a.pages.Top(); top != nil {
		a.menu.Update(top.Hints())
	}
	a.crumbs.Update(a.pages.Crumbs())
}

// Run resumes the stored session and runs the UI until Stop.
func (a *App) Run() error {
	a.vm.Start(a.ctx)
	go a.refreshLoop()
	a.background("resume", func(ctx context.Context) error {
		_, _ = a.chat.Resume(ctx)
		return nil
	})
	return a.app.Run()
}

// refreshLoop redraws on every manager change and once a second so
// notices expire on time.
func (a *App) refreshLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
		case <-ticker.C:
		case <-a.ctx.Done():
			return
		}
		a.app.QueueUpdateDraw(a.render)
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
