package dashboard

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sergeknystautas/landed/internal/api/contracts"
	"github.com/sergeknystautas/landed/internal/config"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 2 * time.Minute // a large batch can take a while
	maxBodyBytes = 1 << 20
)

// Engine is the inclusion engine as seen by the API. *inclusion.Engine
// satisfies it.
type Engine interface {
	Check(ctx context.Context, project, branch string, targets []string) (contracts.InclusionResponse, error)
	CheckNotify(ctx context.Context, project, branch string, targets []string, notify func(int, contracts.InclusionResult)) (contracts.InclusionResponse, error)
	CompareMany(ctx context.Context, req contracts.MultiCompareRequest) (contracts.MultiCompareResponse, error)
	Branches(ctx context.Context, project, search string) (contracts.BranchesResponse, error)
}

// ProjectLister lists configured projects. *config.Provider satisfies it.
type ProjectLister interface {
	Projects() []contracts.Project
}

// Server represents the API server.
type Server struct {
	mu       sync.RWMutex
	config   *config.Config
	engine   Engine
	projects ProjectLister

	httpServer *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, engine Engine, projects ProjectLister) *Server {
	return &Server{
		config:   cfg,
		engine:   engine,
		projects: projects,
	}
}

// Update swaps config and engine after a config reload. Requests already in
// flight finish on the engine they started with.
func (s *Server) Update(cfg *config.Config, engine Engine) {
	s.mu.Lock()
	s.config = cfg
	s.engine = engine
	s.mu.Unlock()
}

func (s *Server) current() (*config.Config, Engine) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.engine
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/healthz", s.withCORS(s.handleHealthz))
	mux.HandleFunc("/api/config", s.withCORS(s.handleConfig))
	mux.HandleFunc("/api/projects", s.withCORS(s.handleProjects))
	mux.HandleFunc("/api/projects/{name}/branches", s.withCORS(s.handleBranches))
	mux.HandleFunc("/api/projects/{name}/inclusion", s.withCORS(s.handleInclusion))
	mux.HandleFunc("/api/compare/multi", s.withCORS(s.handleCompareMulti))

	// WebSocket for streaming inclusion results
	mux.HandleFunc("/ws/inclusion/{name}", s.handleInclusionWebSocket)

	return mux
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	cfg, _ := s.current()
	addr := net.JoinHostPort(cfg.GetBindAddress(), strconv.Itoa(cfg.GetPort()))

	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	fmt.Printf("[dashboard] listening on http://%s\n", addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop() error {
	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// withCORS wraps a handler with CORS headers. Requests without an Origin
// (the CLI, curl) pass; browser requests must come from an allowed origin.
func (s *Server) withCORS(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && !s.isAllowedOrigin(origin) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h(w, r)
	}
}

// isAllowedOrigin accepts http origins on the configured port. Only
// localhost names are accepted unless the server binds to 0.0.0.0.
func (s *Server) isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "http" {
		return false
	}
	cfg, _ := s.current()
	if u.Port() != strconv.Itoa(cfg.GetPort()) {
		return false
	}
	if cfg.GetNetworkAccess() {
		return true
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}
}
