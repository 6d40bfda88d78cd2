// Package server exposes the feature pipeline and narrative generation over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/credit-delta/internal/feature"
	"github.com/sells-group/credit-delta/internal/model"
	"github.com/sells-group/credit-delta/internal/narrative"
	"github.com/sells-group/credit-delta/internal/store"
	"github.com/sells-group/credit-delta/internal/table"
	"github.com/sells-group/credit-delta/internal/tableio"
)

// Config wires the server's collaborators.
type Config struct {
	Input          tableio.Options
	Features       feature.Options
	Narrative      narrative.Options
	AllowedOrigins []string
	MaxBodyBytes   int64
	// Store persists narrative runs when a request asks for it; nil disables saving.
	Store store.Store
}

// Server handles HTTP requests.
type Server struct {
	cfg Config
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 20
	}
	return &Server{cfg: cfg}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Run-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/features", s.handleFeatures)
		r.Post("/narratives", s.handleNarratives)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Get("/runs/{runID}/pairs", s.handleListPairs)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFeatures engineers the posted paired table and returns it as CSV.
func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	in, _, err := s.readInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := feature.Engineer(in, s.cfg.Features)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	if err := tableio.WriteCSV(w, out); err != nil {
		zap.L().Error("server: write features response", zap.Error(err))
	}
}

// handleNarratives renders report pairs for the posted engineered table.
// With raw=true the table is engineered first. With save=true the pairs are
// persisted and the run id returned in X-Run-ID.
func (s *Server) handleNarratives(w http.ResponseWriter, r *http.Request) {
	in, enquiries, err := s.readInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if queryBool(r, "raw") {
		in, err = feature.Engineer(in, s.cfg.Features)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	}

	pairs, err := narrative.Generate(r.Context(), in, enquiries, s.cfg.Narrative)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if queryBool(r, "save") {
		if s.cfg.Store == nil {
			writeError(w, http.StatusServiceUnavailable, eris.New("server: no store configured"))
			return
		}
		runID, err := store.SaveRun(r.Context(), s.cfg.Store, "http", pairs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("X-Run-ID", runID)
	}

	writeJSON(w, http.StatusOK, pairs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("server: no store configured"))
		return
	}
	run, err := s.cfg.Store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("server: no store configured"))
		return
	}
	pairs, err := s.cfg.Store.ListPairs(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if pairs == nil {
		pairs = []model.ReportPair{}
	}
	writeJSON(w, http.StatusOK, pairs)
}

// readInput accepts either a bare CSV body or a multipart form with a
// "table" file and an optional "enquiries" file.
func (s *Server) readInput(w http.ResponseWriter, r *http.Request) (*table.Table, []model.Enquiry, error) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer body.Close() //nolint:errcheck

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		t, err := tableio.ReadCSV(r.Context(), body, s.cfg.Input)
		return t, nil, err
	}

	r.Body = body
	if err := r.ParseMultipartForm(s.cfg.MaxBodyBytes); err != nil {
		return nil, nil, eris.Wrap(err, "server: parse multipart form")
	}

	tf, _, err := r.FormFile("table")
	if err != nil {
		return nil, nil, eris.Wrap(err, "server: missing table file")
	}
	defer tf.Close() //nolint:errcheck
	t, err := tableio.ReadCSV(r.Context(), tf, s.cfg.Input)
	if err != nil {
		return nil, nil, err
	}

	ef, _, err := r.FormFile("enquiries")
	if errors.Is(err, http.ErrMissingFile) {
		return t, nil, nil
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "server: read enquiries file")
	}
	defer ef.Close() //nolint:errcheck
	enquiries, err := tableio.DecodeEnquiries(ef)
	if err != nil {
		return nil, nil, err
	}
	return t, enquiries, nil
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, feature.ErrMissingCustomerColumn) || errors.Is(err, narrative.ErrMissingCustomerColumn) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	zap.L().Warn("server: request failed", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
