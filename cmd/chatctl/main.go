package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/matheus3301/chatsync/internal/app"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/media"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/realtime"
	"github.com/matheus3301/chatsync/internal/session"
	"github.com/olekukonko/tablewriter"
	"github.com/shirou/gopsutil/process"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

type cli struct {
	cfg     *config.Config
	profile string
	json    bool
	chat    *app.App
}

func main() {
	profileFlag := flag.String("profile", "", "client profile (overrides config default)")
	configFlag := flag.String("config", session.ConfigPath(), "path to config.toml")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Resolve(*configFlag)
	if err != nil {
		fatalf("load config: %v", err)
	}
	profile := session.ResolveProfile(*profileFlag, cfg)
	if err := session.ValidateProfile(profile); err != nil {
		fatalf("%v", err)
	}

	chat, err := app.New(app.Options{
		BaseURL:   cfg.BaseURL,
		TokenPath: session.TokenPath(profile),
	})
	if err != nil {
		fatalf("%v", err)
	}
	chat.Start()
	defer chat.Close()

	c := &cli{cfg: cfg, profile: profile, json: *jsonFlag, chat: chat}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		err = c.status(ctx)
	case "login":
		err = c.login(ctx, args[1:])
	case "signup":
		err = c.signup(ctx, args[1:])
	case "logout":
		err = c.logout(ctx)
	case "whoami":
		err = c.whoami(ctx)
	case "contacts":
		err = c.contacts(ctx)
	case "history":
		err = c.history(ctx, args[1:])
	case "send":
		err = c.send(ctx, args[1:])
	case "send-image":
		err = c.sendImage(ctx, args[1:])
	case "online":
		err = c.online(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		chat.Close()
		fatalf("%s", notify.Message(err, err.Error()))
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatctl [--profile <name>] [--config <path>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                           Show daemon health and the profile's identity")
	fmt.Fprintln(os.Stderr, "  login <email> <password>         Log in and store the session")
	fmt.Fprintln(os.Stderr, "  signup <email> <password> <name> Create an account")
	fmt.Fprintln(os.Stderr, "  logout                           End the session")
	fmt.Fprintln(os.Stderr, "  whoami                           Show the current identity")
	fmt.Fprintln(os.Stderr, "  contacts                         List contacts")
	fmt.Fprintln(os.Stderr, "  history <contact>                Show the conversation with a contact")
	fmt.Fprintln(os.Stderr, "  send <contact> <text>            Send a message")
	fmt.Fprintln(os.Stderr, "  send-image <contact> <file>      Send an image file")
	fmt.Fprintln(os.Stderr, "  online                           Show who is online")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// daemonStatus is the --json shape of the status command.
type daemonStatus struct {
	Profile  string             `json:"profile"`
	BaseURL  string             `json:"baseUrl"`
	DataDir  string             `json:"dataDir"`
	LockPID  int                `json:"lockPid,omitempty"`
	Uptime   string             `json:"uptime,omitempty"`
	RSSBytes uint64             `json:"rssBytes,omitempty"`
	Health   json.RawMessage    `json:"health,omitempty"`
	Identity *protocol.Identity `json:"identity,omitempty"`
}

func (c *cli) status(ctx context.Context) error {
	dataDir := c.cfg.Server.DataDir
	if dataDir == "" {
		dataDir = session.ServerDataDir()
	}
	st := daemonStatus{Profile: c.profile, BaseURL: c.cfg.BaseURL, DataDir: dataDir}

	// The lock only tells something when chatd runs on this machine.
	if pid, ok, err := lock.Holder(dataDir); err == nil && ok {
		st.LockPID = pid
		describeProcess(&st)
	}

	healthText := color.Yellow.Sprint("unknown (no grpc_addr configured)")
	if addr := c.cfg.Server.GRPCAddr; addr != "" {
		resp, err := checkHealth(ctx, addr)
		switch {
		case err != nil:
			healthText = color.Red.Sprint("unreachable: " + err.Error())
		case resp.GetStatus() == healthpb.HealthCheckResponse_SERVING:
			healthText = color.Green.Sprint(resp.GetStatus().String())
		default:
			healthText = color.Red.Sprint(resp.GetStatus().String())
		}
		if err == nil {
			if st.Health, err = protojson.Marshal(resp); err != nil {
				return err
			}
		}
	}

	if id, ok := c.chat.Resume(ctx); ok {
		st.Identity = &id
	}

	if c.json {
		return outputJSON(st)
	}
	fmt.Printf("Profile:  %s\n", st.Profile)
	fmt.Printf("Service:  %s\n", st.BaseURL)
	fmt.Printf("Health:   %s\n", healthText)
	if st.LockPID != 0 {
		fmt.Printf("Daemon:   running locally (pid %d", st.LockPID)
		if st.Uptime != "" {
			fmt.Printf(", up %s, %.1f MiB", st.Uptime, float64(st.RSSBytes)/(1<<20))
		}
		fmt.Println(")")
	}
	if st.Identity != nil {
		fmt.Printf("Identity: %s <%s>\n", st.Identity.FullName, st.Identity.Email)
	} else {
		fmt.Println("Identity: not logged in")
	}
	return nil
}

// describeProcess adds uptime and memory of the local daemon. The fields stay
// empty when the process cannot be inspected.
func describeProcess(st *daemonStatus) {
	p, err := process.NewProcess(int32(st.LockPID))
	if err != nil {
		return
	}
	if created, err := p.CreateTime(); err == nil {
		st.Uptime = time.Since(time.UnixMilli(created)).Round(time.Second).String()
	}
	if mem, err := p.MemoryInfo(); err == nil {
		st.RSSBytes = mem.RSS
	}
}

func checkHealth(ctx context.Context, addr string) (*healthpb.HealthCheckResponse, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: protocol.HealthService})
}

func (c *cli) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: chatctl login <email> <password>")
	}
	if err := c.chat.Session.LogIn(ctx, protocol.LogInRequest{Email: args[0], Password: args[1]}); err != nil {
		return err
	}
	return c.whoami(ctx)
}

func (c *cli) signup(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: chatctl signup <email> <password> <full name>")
	}
	req := protocol.SignUpRequest{
		Email:    args[0],
		Password: args[1],
		FullName: strings.Join(args[2:], " "),
	}
	if err := c.chat.Session.SignUp(ctx, req); err != nil {
		return err
	}
	return c.whoami(ctx)
}

func (c *cli) logout(ctx context.Context) error {
	if err := c.chat.Session.LogOut(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func (c *cli) whoami(ctx context.Context) error {
	id, ok := c.chat.Session.Identity()
	if !ok {
		if id, ok = c.chat.Resume(ctx); !ok {
			return errors.New("not logged in")
		}
	}
	if c.json {
		return outputJSON(id)
	}
	fmt.Printf("%s <%s> (%s)\n", id.FullName, id.Email, id.ID)
	return nil
}

// requireSession resumes the stored session or fails.
func (c *cli) requireSession(ctx context.Context) (protocol.Identity, error) {
	id, ok := c.chat.Resume(ctx)
	if !ok {
		return protocol.Identity{}, errors.New("not logged in, run chatctl login first")
	}
	return id, nil
}

func (c *cli) contacts(ctx context.Context) error {
	if _, err := c.requireSession(ctx); err != nil {
		return err
	}
	contacts, err := c.chat.Client.ListContacts(ctx)
	if err != nil {
		return err
	}
	if c.json {
		return outputJSON(contacts)
	}
	if len(contacts) == 0 {
		fmt.Println("No contacts found.")
		return nil
	}
	table := newTable("ID", "NAME")
	for _, ct := range contacts {
		table.Append([]string{ct.ID, ct.FullName})
	}
	table.Render()
	return nil
}

// resolvePeer accepts a contact id or a case-insensitive full name.
func (c *cli) resolvePeer(ctx context.Context, ref string) (protocol.Contact, error) {
	contacts, err := c.chat.Client.ListContacts(ctx)
	if err != nil {
		return protocol.Contact{}, err
	}
	for _, ct := range contacts {
		if ct.ID == ref {
			return ct, nil
		}
	}
	for _, ct := range contacts {
		if strings.EqualFold(ct.FullName, ref) {
			return ct, nil
		}
	}
	return protocol.Contact{}, fmt.Errorf("no contact matches %q", ref)
}

func (c *cli) history(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: chatctl history <contact>")
	}
	self, err := c.requireSession(ctx)
	if err != nil {
		return err
	}
	peer, err := c.resolvePeer(ctx, args[0])
	if err != nil {
		return err
	}
	msgs, err := c.chat.Client.ListMessages(ctx, peer.ID)
	if err != nil {
		return err
	}
	if c.json {
		return outputJSON(msgs)
	}
	if len(msgs) == 0 {
		fmt.Printf("No messages with %s yet.\n", peer.FullName)
		return nil
	}
	table := newTable("TIME", "FROM", "MESSAGE")
	for _, m := range msgs {
		table.Append(messageRow(m, self, peer))
	}
	table.Render()
	return nil
}

func (c *cli) send(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: chatctl send <contact> <text>")
	}
	return c.deliver(ctx, args[0], protocol.SendRequest{Text: strings.Join(args[1:], " ")})
}

// deliver sends req to the contact named by ref through the conversation
// manager, as the terminal client does.
func (c *cli) deliver(ctx context.Context, ref string, req protocol.SendRequest) error {
	self, err := c.requireSession(ctx)
	if err != nil {
		return err
	}
	peer, err := c.resolvePeer(ctx, ref)
	if err != nil {
		return err
	}
	if err := c.chat.Conversation.Select(ctx, &peer); err != nil {
		return err
	}
	msg, err := c.chat.Conversation.SendMessage(ctx, req)
	if err != nil {
		return err
	}
	if c.json {
		return outputJSON(msg)
	}
	fmt.Println(strings.Join(messageRow(msg, self, peer), "  "))
	return nil
}

func (c *cli) sendImage(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: chatctl send-image <contact> <file>")
	}
	image, err := media.ReadImage(args[1])
	if err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}
	return c.deliver(ctx, args[0], protocol.SendRequest{Image: image})
}

func (c *cli) online(ctx context.Context) error {
	events, unsub := c.chat.Bus.Subscribe("realtime.", 16)
	defer unsub()

	if _, err := c.requireSession(ctx); err != nil {
		return err
	}

	connected := false
	for {
		select {
		case <-ctx.Done():
			return errors.New("timed out waiting for the hub")
		case evt := <-events:
			switch evt.Kind {
			case realtime.KindConnected:
				connected = true
			case realtime.KindRoster:
				if !connected {
					continue
				}
				online, _ := evt.Payload.([]string)
				return c.printOnline(ctx, online)
			}
		}
	}
}

func (c *cli) printOnline(ctx context.Context, online []string) error {
	if c.json {
		return outputJSON(online)
	}
	names := map[string]string{}
	if contacts, err := c.chat.Client.ListContacts(ctx); err == nil {
		for _, ct := range contacts {
			names[ct.ID] = ct.FullName
		}
	}
	self, _ := c.chat.Session.Identity()
	table := newTable("ID", "NAME")
	for _, id := range online {
		name := names[id]
		if id == self.ID {
			name = self.FullName + " (you)"
		}
		table.Append([]string{id, color.Green.Sprint("● ") + name})
	}
	table.Render()
	return nil
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func messageRow(m protocol.Message, self protocol.Identity, peer protocol.Contact) []string {
	from := peer.FullName
	if m.SenderID == self.ID {
		from = "me"
	}
	text := m.Text
	if m.Image != "" {
		if text != "" {
			text += " "
		}
		text += "[image]"
	}
	return []string{m.CreatedAt.Local().Format("2006-01-02 15:04"), from, text}
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
