package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cuemby/datadex/pkg/catalog"
	"github.com/cuemby/datadex/pkg/log"
	"github.com/cuemby/datadex/pkg/metrics"
	"github.com/cuemby/datadex/pkg/types"
)

// Uploader is the slice of the bucket manager the registration endpoint
// needs.
type Uploader interface {
	RegisterDataset(ctx context.Context, cfg *types.DatasetConfig) error
}

// Server is the JSON HTTP surface over the catalog.
type Server struct {
	catalog  catalog.Service
	uploader Uploader
	router   chi.Router
}

// NewServer wires the route table. The uploader is consulted only by
// dataset registration; everything else reads or writes the catalog.
func NewServer(cat catalog.Service, uploader Uploader) *Server {
	s := &Server{catalog: cat, uploader: uploader}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	r.Use(s.observe)

	r.Route("/api", func(r chi.Router) {
		r.Post("/manager/register", s.registerManager)
		r.Get("/manager/datasets", s.managerDatasets)

		r.Post("/dataset/register", s.registerDataset)
		r.Get("/datasets", s.listDatasets)
		r.Get("/datasets/search", s.searchDatasets)

		r.Route("/dataset/{name}", func(r chi.Router) {
			r.Get("/", s.findDataset)
			r.Get("/partitions", s.rangePartitions)
			r.Get("/latest", s.latestPartition)
			r.Get("/*", s.findPartition)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", s.ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the root handler for mounting in an http.Server.
func (s *Server) Handler() http.Handler { return s.router }

// observe records request counts and latency per route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		timer.ObserveDuration(metrics.APIRequestDuration.WithLabelValues(route))
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.catalog.Ping(ctx); err != nil {
		log.WithComponent("api").Error().Err(err).Msg("readiness check failed")
		writeError(w, http.StatusServiceUnavailable, "catalog unreachable")
		return
	}
	w.WriteHeader(http.StatusOK)
}
