package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"subgen/internal/pipeline"
	"subgen/internal/userstore"
)

type jobService interface {
	Submit(ctx context.Context, req pipeline.Request) (*pipeline.Job, error)
	Jobs() []*pipeline.Job
	GetJob(id string) *pipeline.Job
}

type userService interface {
	EnsureUser(ctx context.Context, id, username, name string) (*userstore.User, error)
	GetUser(ctx context.Context, id string) (*userstore.User, error)
	UpdateSettings(ctx context.Context, id string, settings userstore.Settings) error
	RecentRequests(ctx context.Context, userID string, limit int) ([]userstore.RequestRecord, error)
}

type Server struct {
	jobs  jobService
	users userService

	corsOrigin string

	router *mux.Router
	server *http.Server
}

type Option func(*Server)

// WithCORSOrigin sets the browser origin allowed to call the API.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		s.corsOrigin = origin
	}
}

func NewServer(jobs jobService, users userService, opts ...Option) *Server {
	s := &Server{
		jobs:       jobs,
		users:      users,
		corsOrigin: "*",
		router:     mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{s.corsOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/requests", s.handleSubmitRequest).Methods(http.MethodPost)
	api.HandleFunc("/requests", s.handleListRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests/stream", s.handleRequestStream).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id}", s.handleGetRequest).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", s.handleGetUser).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/settings", s.handleUpdateSettings).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}/history", s.handleHistory).Methods(http.MethodGet)
}
