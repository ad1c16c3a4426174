// Package server exposes robotdriver over HTTP: page snapshots (so one
// instance can serve as another's context service), logged-in product
// searches and free-text goals.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/entrhq/robotdriver/pkg/browser"
	"github.com/entrhq/robotdriver/pkg/catalog"
	"github.com/entrhq/robotdriver/pkg/config"
	"github.com/entrhq/robotdriver/pkg/driver"
	"github.com/entrhq/robotdriver/pkg/logging"
	"github.com/entrhq/robotdriver/pkg/page"
	"github.com/entrhq/robotdriver/pkg/snapshot"
)

// DefaultMaxBodyBytes limits request bodies when Options leave it unset.
const DefaultMaxBodyBytes = 64 << 10

// ProductSearch runs a logged-in product search.
type ProductSearch interface {
	Run(ctx context.Context, creds driver.Credentials, product string) catalog.Result
}

// GoalRunner pursues a free-text goal.
type GoalRunner interface {
	Run(ctx context.Context, goal string) (driver.GoalOutcome, error)
}

// Options wires the server. Nil components disable their endpoints with 501.
type Options struct {
	Search       ProductSearch
	Goals        GoalRunner
	Pages        page.Factory
	Builder      *snapshot.Builder
	Logger       *logging.Logger
	MaxBodyBytes int64
}

// Server is the HTTP API server for robotdriver.
type Server struct {
	router  chi.Router
	search  ProductSearch
	goals   GoalRunner
	pages   page.Factory
	builder *snapshot.Builder
	log     *logging.Logger
	maxBody int64
}

// New creates and configures the HTTP server.
func New(opts Options) *Server {
	s := &Server{
		search:  opts.Search,
		goals:   opts.Goals,
		pages:   opts.Pages,
		builder: opts.Builder,
		log:     opts.Logger,
		maxBody: opts.MaxBodyBytes,
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	if s.builder == nil {
		s.builder = snapshot.NewBuilder(snapshot.WithLogger(s.log))
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Post("/context", s.handleContext)
	r.Post("/search", s.handleSearch)
	r.Post("/goal", s.handleGoal)

	s.router = r
}

// pagePool is implemented by browser pools that report their open pages.
type pagePool interface {
	Engine() config.Engine
	Sessions() []browser.SessionInfo
}

type healthResponse struct {
	Status   string                `json:"status"`
	Engine   config.Engine         `json:"engine,omitempty"`
	Sessions []browser.SessionInfo `json:"sessions,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if pool, ok := s.pages.(pagePool); ok {
		resp.Engine = pool.Engine()
		resp.Sessions = pool.Sessions()
	}
	writeJSON(w, http.StatusOK, resp)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
