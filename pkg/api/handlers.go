package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cuemby/datadex/pkg/catalog"
	"github.com/cuemby/datadex/pkg/log"
	"github.com/cuemby/datadex/pkg/types"
)

// bearerKey extracts the api key from the Authorization header.
func bearerKey(r *http.Request) (uuid.UUID, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return uuid.Nil, types.AuthError("missing bearer token")
	}
	key, err := uuid.Parse(token)
	if err != nil {
		return uuid.Nil, types.AuthError("malformed bearer token")
	}
	return key, nil
}

type registerManagerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) registerManager(w http.ResponseWriter, r *http.Request) {
	var req registerManagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	manager, err := s.catalog.RegisterManager(r.Context(), req.Email, req.Password)
	if err != nil {
		if catalog.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, manager.Restricted())
}

func (s *Server) managerDatasets(w http.ResponseWriter, r *http.Request) {
	key, err := bearerKey(r)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	if _, err := s.catalog.FindManager(r.Context(), key); err != nil {
		writeTaxonomyError(w, err)
		return
	}

	datasets, err := s.catalog.ManagerDatasets(r.Context(), key)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(datasets))
}

// registerDataset is the one endpoint that touches both sides of the
// system. Order matters: the existence pre-check comes before anything
// else, and the descriptor upload comes before the catalog insert so a
// failed upload never leaves a dataset without its path prefix. The
// converse, an uploaded descriptor without a catalog row, is tolerated and
// repaired by re-registration.
func (s *Server) registerDataset(w http.ResponseWriter, r *http.Request) {
	var cfg types.DatasetConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := validateConfig(&cfg); err != nil {
		writeTaxonomyError(w, err)
		return
	}

	// the duplicate check runs before authentication so a taken name
	// reports 409 regardless of credentials
	if _, err := s.catalog.FindDataset(r.Context(), cfg.Name); err == nil {
		writeError(w, http.StatusConflict, "dataset already exists")
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		writeTaxonomyError(w, err)
		return
	}

	key, err := bearerKey(r)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	manager, err := s.catalog.FindManager(r.Context(), key)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	if err := s.uploader.RegisterDataset(r.Context(), &cfg); err != nil {
		log.WithDataset(cfg.Name).Error().Err(err).Msg("descriptor upload failed")
		writeError(w, http.StatusInternalServerError, "failed to store dataset descriptor")
		return
	}

	dataset, err := s.catalog.RegisterDataset(r.Context(), manager, &cfg)
	if err != nil {
		log.WithDataset(cfg.Name).Error().Err(err).Msg("catalog insert failed after descriptor upload")
		writeError(w, http.StatusInternalServerError, "failed to register dataset")
		return
	}
	writeJSON(w, http.StatusOK, dataset)
}

func validateConfig(cfg *types.DatasetConfig) error {
	switch {
	case cfg.Name == "" || strings.Contains(cfg.Name, "/"):
		return types.InputValidationError("dataset name must be a non-empty path segment")
	case !cfg.Classification.Valid():
		return types.InputValidationError("unknown classification %q", cfg.Classification)
	case !cfg.Compression.Valid():
		return types.InputValidationError("unknown compression %q", cfg.Compression)
	case !cfg.Format.Valid():
		return types.InputValidationError("unknown format %q", cfg.Format)
	}
	return nil
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	params, err := parseRangeParams(r)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	datasets, err := s.catalog.ListDatasets(r.Context(), params)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(datasets))
}

func (s *Server) searchDatasets(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	if term == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'term' is required")
		return
	}
	datasets, err := s.catalog.SearchDatasets(r.Context(), term)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(datasets))
}

func (s *Server) findDataset(w http.ResponseWriter, r *http.Request) {
	dataset, err := s.catalog.FindDataset(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dataset)
}

func (s *Server) rangePartitions(w http.ResponseWriter, r *http.Request) {
	dataset, err := s.catalog.FindDataset(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	params, err := parseRangeParams(r)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	partitions, err := s.catalog.RangePartitions(r.Context(), dataset, params)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(partitions))
}

func (s *Server) latestPartition(w http.ResponseWriter, r *http.Request) {
	s.servePartition(w, r, types.PartitionLatest)
}

// findPartition serves the wildcard route: everything after the dataset
// segment is the partition name, slashes included.
func (s *Server) findPartition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.servePartition(w, r, name)
}

func (s *Server) servePartition(w http.ResponseWriter, r *http.Request, name string) {
	dataset, err := s.catalog.FindDataset(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	partition, err := s.catalog.FindPartition(r.Context(), dataset, name)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, partition)
}

// parseRangeParams reads the optional start/end/count/offset query
// parameters shared by the listing endpoints.
func parseRangeParams(r *http.Request) (*types.RangeParams, error) {
	query := r.URL.Query()
	params := &types.RangeParams{}

	for key, dst := range map[string]**time.Time{"start": &params.Start, "end": &params.End} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, types.InputValidationError("query parameter %q must be an RFC 3339 timestamp", key)
		}
		*dst = &t
	}

	for key, dst := range map[string]**int{"count": &params.Count, "offset": &params.Offset} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, types.InputValidationError("query parameter %q must be a non-negative integer", key)
		}
		*dst = &n
	}

	return params, nil
}

// nonNil keeps empty listings rendering as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
