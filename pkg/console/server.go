// Package console is the HTTP surface of the review console. It wires the
// review session, the audit ledger and the analytics views behind a JSON API
// with RFC 7807 error responses.
package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sentinel-labs/sentinel/pkg/analytics"
	"github.com/sentinel-labs/sentinel/pkg/api"
	"github.com/sentinel-labs/sentinel/pkg/auth"
	"github.com/sentinel-labs/sentinel/pkg/config"
	"github.com/sentinel-labs/sentinel/pkg/ledger"
	"github.com/sentinel-labs/sentinel/pkg/observability"
	"github.com/sentinel-labs/sentinel/pkg/session"
)

// Server defines the HTTP server for the console.
type Server struct {
	session *session.ReviewSession
	ledger  *ledger.AuditLedger
	profile *config.Profile
	obs     *observability.Provider
	logger  *slog.Logger
}

// NewServer wires the console's collaborators together.
func NewServer(sess *session.ReviewSession, ldg *ledger.AuditLedger, profile *config.Profile, obs *observability.Provider) *Server {
	if profile == nil {
		profile = config.DefaultProfile()
	}
	return &Server{
		session: sess,
		ledger:  ldg,
		profile: profile,
		obs:     obs,
		logger:  slog.Default().With("component", "console"),
	}
}

// WithLogger overrides the structured logger.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Handler builds the route table. Mutating routes sit behind the rate
// limiter; the whole API sits behind bearer auth when a validator is set.
func (s *Server) Handler(validator *auth.Validator, limiter *api.RateLimiter) http.Handler {
	mux := http.NewServeMux()

	limited := func(h http.HandlerFunc) http.Handler {
		if limiter == nil {
			return h
		}
		return limiter.Middleware(h)
	}

	mux.Handle("/api/review", limited(s.handleReview))
	mux.Handle("/api/override", limited(s.handleOverride))
	mux.Handle("/api/ledger/clear", limited(s.handleClear))
	mux.HandleFunc("/api/ledger/export", s.handleExport)
	mux.HandleFunc("/api/ledger", s.handleLedger)
	mux.HandleFunc("/api/analytics", s.handleAnalytics)
	mux.HandleFunc("/api/contexts", s.handleContexts)
	mux.HandleFunc("/health", s.handleHealth)

	return auth.Middleware(validator)(mux)
}

// Start runs the console server on the given port. Blocks until the listener
// fails.
func (s *Server) Start(port string, validator *auth.Validator, limiter *api.RateLimiter) error {
	addr := ":" + port
	s.logger.Info("console listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler(validator, limiter))
}

type reviewRequest struct {
	Task    string `json:"task"`
	Context string `json:"context"`
}

type reviewResponse struct {
	State              session.State `json:"state"`
	Entry              any           `json:"entry,omitempty"`
	Result             any           `json:"result,omitempty"`
	PersistenceWarning string        `json:"persistence_warning,omitempty"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w, "POST required")
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	done := func(error) {}
	if s.obs != nil {
		ctx, done = s.obs.TrackReview(ctx, "console.review")
	}
	outcome, err := s.session.Submit(ctx, req.Task, req.Context)
	done(err)

	if err != nil {
		s.writeSubmitError(w, r, err)
		return
	}

	s.logger.Info("review recorded",
		"entry_id", outcome.Entry.ID,
		"decision", outcome.Entry.Decision,
		"risk_score", outcome.Entry.RiskScore,
	)
	s.writeJSON(w, http.StatusOK, reviewResponse{
		State:              s.session.State(),
		Entry:              outcome.Entry,
		Result:             outcome.Result,
		PersistenceWarning: outcome.PersistenceWarning,
	})
}

func (s *Server) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *session.ValidationError
	var terr *session.TransportError
	switch {
	case errors.As(err, &verr):
		api.WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", verr.Error())
	case errors.Is(err, session.ErrSubmissionInFlight):
		api.WriteErrorR(w, r, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &terr):
		api.WriteErrorR(w, r, http.StatusBadGateway, "Upstream Coordinator Error", terr.Error())
	case errors.Is(err, session.ErrInvalidResponse):
		api.WriteErrorR(w, r, http.StatusBadGateway, "Invalid Coordinator Response", session.ErrInvalidResponse.Error())
	default:
		api.WriteInternalError(w, err.Error())
	}
}

type overrideRequest struct {
	EntryID       string `json:"entry_id"`
	Justification string `json:"justification"`
	Acknowledged  bool   `json:"acknowledged"`
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w, "POST required")
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body")
		return
	}

	err := s.ledger.Override(r.Context(), req.EntryID, req.Justification, req.Acknowledged)

	var oerr *ledger.OverrideError
	var perr *ledger.PersistenceError
	switch {
	case err == nil:
		s.logger.Info("decision overridden", "entry_id", req.EntryID)
		s.writeJSON(w, http.StatusOK, map[string]any{"status": "overridden"})
	case errors.As(err, &oerr):
		api.WriteUnprocessable(w, fmt.Sprintf("override rejected: %s", oerr.Reason))
	case errors.Is(err, ledger.ErrEntryNotFound):
		api.WriteNotFound(w, fmt.Sprintf("no audit entry %q", req.EntryID))
	case errors.As(err, &perr):
		s.logger.Warn("override recorded but not persisted", "entry_id", req.EntryID, "error", err)
		s.writeJSON(w, http.StatusOK, map[string]any{
			"status":              "overridden",
			"persistence_warning": err.Error(),
		})
	default:
		api.WriteInternalError(w, err.Error())
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w, "POST required")
		return
	}

	resp := map[string]any{"status": "cleared"}
	if err := s.ledger.Clear(r.Context()); err != nil {
		var perr *ledger.PersistenceError
		if !errors.As(err, &perr) {
			api.WriteInternalError(w, err.Error())
			return
		}
		resp["persistence_warning"] = err.Error()
	}
	s.logger.Info("audit ledger cleared")
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, "GET required")
		return
	}

	q := r.URL.Query()
	entries := s.ledger.Filter(ledger.Criteria{
		Decision: q.Get("decision"),
		Severity: q.Get("severity"),
		Search:   q.Get("q"),
	})

	s.writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   s.ledger.Len(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, "GET required")
		return
	}

	bundle, err := s.ledger.ExportBundle()
	if err != nil {
		api.WriteInternalError(w, err.Error())
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "sentinel_audit_"+bundle.BundleID+".json"))
	s.writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, "GET required")
		return
	}
	s.writeJSON(w, http.StatusOK, analytics.Summarize(s.ledger.Snapshot()))
}

func (s *Server) handleContexts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, "GET required")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"contexts": s.profile.TaskContexts})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"entries": s.ledger.Len(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}
