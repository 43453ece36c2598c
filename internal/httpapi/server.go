package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/rodrigomiquilino/wwm-review/internal/github"
	"github.com/rodrigomiquilino/wwm-review/internal/review"
	"github.com/rodrigomiquilino/wwm-review/internal/service"
)

type identityGate interface {
	Authorize(ctx context.Context) (*github.User, error)
}

type Server struct {
	hub         *service.Hub
	submitter   *review.Submitter
	adjudicator *review.Adjudicator
	gate        identityGate

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithAdmin enables the privileged review endpoints.
func WithAdmin(adjudicator *review.Adjudicator, gate identityGate) Option {
	return func(s *Server) {
		s.adjudicator = adjudicator
		s.gate = gate
	}
}

func NewServer(hub *service.Hub, submitter *review.Submitter, opts ...Option) *Server {
	s := &Server{
		hub:       hub,
		submitter: submitter,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
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
	s.mux.HandleFunc("/api/units", s.handleListUnits)
	s.mux.HandleFunc("/api/units/", s.handleUnitSubresource)
	s.mux.HandleFunc("/api/glossary", s.handleGlossary)
	s.mux.HandleFunc("/api/consistency", s.handleConsistency)
	s.mux.HandleFunc("/api/cart", s.handleCart)
	s.mux.HandleFunc("/api/cart/", s.handleCartEntry)
	s.mux.HandleFunc("/api/submit", s.handleSubmit)
	s.mux.HandleFunc("/api/pending", s.handlePending)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/me", s.handleMe)
	s.mux.HandleFunc("/api/admin/requests", s.handleAdminRequests)
	s.mux.HandleFunc("/api/admin/requests/", s.handleAdminRequestAction)
	s.mux.HandleFunc("/api/admin/applied", s.handleAdminApplied)
}

// adminEnabled reports whether privileged endpoints were wired in.
func (s *Server) adminEnabled() bool {
	return s.adjudicator != nil && s.gate != nil
}
