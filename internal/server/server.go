package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/grocer/internal/event"
	"github.com/dukerupert/grocer/internal/handler"
	"github.com/dukerupert/grocer/internal/middleware"
	"github.com/dukerupert/grocer/internal/store"
	ws "github.com/dukerupert/grocer/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options carries the optional collaborators of a Server.
type Options struct {
	// RateLimit is the number of write requests a client may make per
	// minute. Zero disables limiting.
	RateLimit int

	// TrustProxy keys the rate limit on CF-Connecting-IP or X-Forwarded-For
	// instead of the connection address.
	TrustProxy bool

	// Publisher receives every change event in addition to websocket
	// clients. Nil means websocket only.
	Publisher event.Broadcaster

	// OriginPatterns are the cross-origin hosts allowed to open /ws.
	OriginPatterns []string
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	customerH      *handler.CustomerHandler
	listH          *handler.GroceryListHandler
	itemH          *handler.GroceryItemHandler
	rateLimiter    *middleware.RateLimiter
	rateLimit      int
	trustProxy     bool
	registry       *prometheus.Registry
	metrics        *middleware.Metrics
	originPatterns []string
	logger         *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	var events event.Broadcaster = hub
	if opts.Publisher != nil {
		events = event.Fanout{hub, opts.Publisher}
	}

	customerStore := store.NewCustomerStore(db)
	listStore := store.NewGroceryListStore(db)
	itemStore := store.NewGroceryItemStore(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		db:             db,
		hub:            hub,
		customerH:      handler.NewCustomerHandler(customerStore, events, logger),
		listH:          handler.NewGroceryListHandler(listStore, itemStore, events, logger),
		itemH:          handler.NewGroceryItemHandler(itemStore, events, logger),
		rateLimiter:    middleware.NewRateLimiter(),
		rateLimit:      opts.RateLimit,
		trustProxy:     opts.TrustProxy,
		registry:       registry,
		metrics:        middleware.NewMetrics(registry),
		originPatterns: opts.OriginPatterns,
		logger:         logger,
	}
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.originPatterns, s.logger.With("component", "websocket")))

	s.registerAPIRoutes(mux)

	key := middleware.RemoteIP
	if s.trustProxy {
		key = middleware.RealIP
	}

	var h http.Handler = mux
	h = middleware.RateLimit(s.rateLimiter, middleware.RateLimitOptions{
		Limit:  s.rateLimit,
		Period: time.Minute,
		Key:    key,
		Skip:   middleware.ReadOnly,
		Deny:   http.HandlerFunc(handler.WriteTooManyRequests),
	})(h)
	h = s.metrics.Middleware(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

// registerAPIRoutes wires collection routes (POST only) separately from item
// routes, so a write against a collection path gets a 405 from the mux.
func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/customer", s.customerH.Create)
	mux.HandleFunc("GET /api/customer/{id}", s.customerH.Get)
	mux.HandleFunc("PATCH /api/customer/{id}", s.customerH.Patch)
	mux.HandleFunc("DELETE /api/customer/{id}", s.customerH.Delete)

	mux.HandleFunc("POST /api/grocery_list", s.listH.Create)
	mux.HandleFunc("GET /api/grocery_list/{id}", s.listH.Get)
	mux.HandleFunc("PATCH /api/grocery_list/{id}", s.listH.Patch)
	mux.HandleFunc("DELETE /api/grocery_list/{id}", s.listH.Delete)
	mux.HandleFunc("PUT /api/grocery_list/{id}/grocery_item/{item_id}", s.listH.AttachItem)
	mux.HandleFunc("DELETE /api/grocery_list/{id}/grocery_item/{item_id}", s.listH.DetachItem)

	mux.HandleFunc("POST /api/grocery_item", s.itemH.Create)
	mux.HandleFunc("GET /api/grocery_item/{id}", s.itemH.Get)
	mux.HandleFunc("PATCH /api/grocery_item/{id}", s.itemH.Patch)
	mux.HandleFunc("DELETE /api/grocery_item/{id}", s.itemH.Delete)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}
