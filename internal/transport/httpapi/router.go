// Package httpapi wires the engine to the HTTP surface: seven device/account
// endpoints, a stats endpoint, a diagnostic endpoint, and a fallback for
// anything else, routed with github.com/go-chi/chi/v5.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/domizei385/pogoAccountServer/internal/cache"
	"github.com/domizei385/pogoAccountServer/internal/concurrency"
	"github.com/domizei385/pogoAccountServer/internal/engine"
	"github.com/domizei385/pogoAccountServer/internal/ratelimit"
	"github.com/domizei385/pogoAccountServer/internal/store"
)

// Server bundles the engine with the transport-level infrastructure that
// sits in front of it: a device rate limiter, a concurrency gate, and a
// stats cache.
type Server struct {
	engine      *engine.Engine
	limiter     *ratelimit.Limiter
	gate        *concurrency.Gate
	statsCache  *cache.Cache
	authUser    string
	authPass    string
	pingDB      func(r *http.Request) error
}

// NewServer constructs a Server. pingDB backs the /test diagnostic endpoint.
func NewServer(eng *engine.Engine, limiter *ratelimit.Limiter, gate *concurrency.Gate, authUser, authPass string, st *store.Store) *Server {
	return &Server{
		engine:     eng,
		limiter:    limiter,
		gate:       gate,
		statsCache: cache.New(cache.Config{MaxSize: 4, TTL: 10 * time.Second}),
		authUser:   authUser,
		authPass:   authPass,
		pingDB:     func(r *http.Request) error { return st.Ping(r.Context()) },
	}
}

// Router builds the chi router for the broker's HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequests)
	r.Use(limitBody)
	r.Use(basicAuth(s.authUser, s.authPass))
	r.Use(concurrencyGate(s.gate))

	r.Get("/get/availability", s.handleGetAvailability)
	r.Get("/get/{device}", s.handleGetAccount)
	r.Post("/get/{device}", s.handleGetAccount)
	r.Get("/get/{device}/info", s.handleGetAccountInfo)

	r.Post("/set/{device}/level/{level}", s.handleSetLevel)
	r.Post("/set/{device}/burned", s.handleSetBurned)
	r.Post("/set/{device}/login", s.handleSetLogin)
	r.Post("/set/{device}/logout", s.handleSetLogout)
	r.Post("/set/{device}/softban", s.handleSetSoftban)

	r.Get("/stats", s.handleStats)
	r.Get("/test", s.handleTest)

	r.NotFound(s.handleFallback)
	r.MethodNotAllowed(s.handleFallback)

	return r
}
