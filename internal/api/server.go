package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// maxBodyBytes bounds request bodies; images travel inline as data URLs.
const maxBodyBytes = 10 << 20

// Deliverer relays a stored message to the receiver's live connections.
type Deliverer interface {
	Deliver(receiverID string, msg protocol.Message) int
}

// Options configures a Server.
type Options struct {
	DB     *store.DB
	Tokens *Tokens
	// Hub relays sent messages. Nil disables live delivery.
	Hub Deliverer
	// Realtime, when set, is mounted at /ws behind the session cookie.
	Realtime http.Handler
	// AllowedOrigins are the browser origins granted CORS with credentials.
	AllowedOrigins []string
	// Production marks cookies Secure and enables StaticDir serving.
	Production bool
	StaticDir  string
	// HashCost is the bcrypt cost; zero selects bcrypt.DefaultCost.
	HashCost int
	Logger   *zap.Logger
}

// Server is the identity and message service.
type Server struct {
	db         *store.DB
	tokens     *Tokens
	hub        Deliverer
	production bool
	hashCost   int
	logger     *zap.Logger
	validate   *validator.Validate
	handler    http.Handler
}

// NewServer builds the service and its routes.
func NewServer(opts Options) *Server {
	s := &Server{
		db:         opts.DB,
		tokens:     opts.Tokens,
		hub:        opts.Hub,
		production: opts.Production,
		hashCost:   opts.HashCost,
		logger:     logging.OrNop(opts.Logger),
		validate:   validator.New(),
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/check", s.requireAuth(s.handleCheck))
	mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/auth/login", s.handleLogIn)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogOut)
	mux.HandleFunc("PUT /api/auth/update-profile", s.requireAuth(s.handleUpdateProfile))
	mux.HandleFunc("GET /api/messages/users", s.requireAuth(s.handleListUsers))
	mux.HandleFunc("GET /api/messages/{peerId}", s.requireAuth(s.handleListMessages))
	mux.HandleFunc("POST /api/messages/send/{peerId}", s.requireAuth(s.handleSend))
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, notFound("Not found"))
	})
	if opts.Realtime != nil {
		mux.HandleFunc("/ws", s.requireAuth(s.requireSelf(opts.Realtime)))
	}
	if opts.Production && opts.StaticDir != "" {
		mux.Handle("/", spa(opts.StaticDir))
	}

	s.handler = s.logRequests(cors(opts.AllowedOrigins, mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// spa serves files from dir and falls back to index.html for client routes.
func spa(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := filepath.Clean("/" + r.URL.Path)
		if clean != "/" && !strings.HasSuffix(r.URL.Path, "/") {
			if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean))); err == nil && !info.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
		}
		http.ServeFile(w, r, index)
	})
}
