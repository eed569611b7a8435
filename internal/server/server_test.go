package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/client"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/realtime"
	"go.uber.org/fx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func testParams(t *testing.T) Params {
	t.Helper()
	return Params{Server: config.Server{
		Port:      0,
		DataDir:   t.TempDir(),
		JWTSecret: "daemon-test-secret-0123",
		GRPCAddr:  "127.0.0.1:0",
	}}
}

func startApp(t *testing.T, p Params) (*HTTPServer, *HealthServer) {
	t.Helper()
	var (
		httpSrv *HTTPServer
		health  *HealthServer
	)
	app := fx.New(
		Module(p),
		fx.Populate(&httpSrv, &health),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		t.Fatalf("fx.New() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("app.Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			t.Errorf("app.Stop() error = %v", err)
		}
	})
	return httpSrv, health
}

func baseURL(s *HTTPServer) string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.Addr().(*net.TCPAddr).Port)
}

// TestFxModuleWiring verifies the fx dependency graph resolves without errors.
func TestFxModuleWiring(t *testing.T) {
	if err := fx.ValidateApp(Module(testParams(t)), fx.NopLogger); err != nil {
		t.Fatalf("ValidateApp() error = %v", err)
	}
}

func TestDaemonServesRESTAndHub(t *testing.T) {
	httpSrv, _ := startApp(t, testParams(t))
	base := baseURL(httpSrv)

	c, err := client.New(base)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	alice, err := c.SignUp(ctx, protocol.SignUpRequest{FullName: "Alice", Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := c.CheckSession(ctx); err != nil {
		t.Fatalf("CheckSession() error = %v", err)
	}

	dialer := &realtime.WebSocketDialer{BaseURL: base, SessionToken: c.SessionToken}
	tr, err := dialer.Dial(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = tr.Close() }()

	data, err := tr.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	evt, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	roster, ok := evt.(protocol.RosterUpdate)
	if !ok {
		t.Fatalf("first event = %T, want RosterUpdate", evt)
	}
	if len(roster.Online) != 1 || roster.Online[0] != alice.ID {
		t.Errorf("roster = %v, want [%s]", roster.Online, alice.ID)
	}
}

func TestDaemonHealth(t *testing.T) {
	_, health := startApp(t, testParams(t))
	if health == nil {
		t.Fatal("health server not provided")
	}

	conn, err := grpc.NewClient(health.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: protocol.HealthService})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.Status)
	}
}

func TestDaemonWithoutHealthAddr(t *testing.T) {
	p := testParams(t)
	p.Server.GRPCAddr = ""
	httpSrv, health := startApp(t, p)
	if health != nil {
		t.Error("health server provided with empty grpc_addr")
	}
	if httpSrv == nil {
		t.Fatal("http server not provided")
	}
}

func TestSecondDaemonRefusesDataDir(t *testing.T) {
	p := testParams(t)
	startApp(t, p)

	app := fx.New(Module(p), fx.NopLogger)
	err := app.Err()
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Stop(ctx)
		t.Fatal("second daemon on the same data dir should fail")
	}
	var held *lock.HeldError
	if !errors.As(err, &held) {
		t.Errorf("error = %v, want *lock.HeldError", err)
	}
}

func TestTokensWithoutSecret(t *testing.T) {
	p := testParams(t)
	p.Server.JWTSecret = ""
	httpSrv, _ := startApp(t, p)

	c, err := client.New(baseURL(httpSrv))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.SignUp(context.Background(), protocol.SignUpRequest{FullName: "Bob", Email: "bob@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("SignUp() with generated secret error = %v", err)
	}
	if c.SessionToken() == "" {
		t.Error("no session token issued")
	}
}
