package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"factcheck/backend/internal/auth"
	"factcheck/backend/internal/factcheck"
	"factcheck/backend/internal/history"
	"factcheck/backend/internal/logger"
	"factcheck/backend/internal/pipeline"
	"factcheck/backend/internal/sources"
)

// Request bodies carry at most one base64 image; base64 inflates by 4/3.
const bodyOverhead = 64 << 10

type Checker interface {
	Run(ctx context.Context, req factcheck.ContentRequest) (pipeline.Result, error)
}

type HistoryStore interface {
	Get(ctx context.Context, id string) (history.Record, error)
	List(ctx context.Context, limit int) ([]history.Record, error)
}

type Handler struct {
	checker       Checker
	history       HistoryStore
	directory     sources.Directory
	verifier      auth.Verifier
	log           logger.Logger
	maxImageBytes int
}

func NewHandler(checker Checker, historyStore HistoryStore, directory sources.Directory, verifier auth.Verifier, log logger.Logger, maxImageBytes int) Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return Handler{
		checker:       checker,
		history:       historyStore,
		directory:     directory,
		verifier:      verifier,
		log:           log,
		maxImageBytes: maxImageBytes,
	}
}

type contextKey string

const identityContextKey contextKey = "caller_identity"

func (h Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h Handler) FactCheck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxImageBytes)*4/3+bodyOverhead)

	var req factcheck.ContentRequest
	if err := decodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if caller, ok := identityFromContext(r.Context()); ok {
		h.log.Debug("fact-check requested",
			logger.String("caller", caller.Email),
			logger.String("content_type", string(req.Kind)),
		)
	}

	result, err := h.checker.Run(r.Context(), req)
	if result.CheckID != "" {
		w.Header().Set("X-Check-ID", result.CheckID)
	}
	if err != nil {
		fe := factcheck.AsError(err)
		writeError(w, fe.HTTPStatus(), fe.UserMessage())
		return
	}
	if result.Cached {
		w.Header().Set("X-Cache", "hit")
	}
	writeJSON(w, http.StatusOK, result.Verdict.Public())
}

func (h Handler) ListChecks(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "Check history is disabled")
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.log.Error("failed to list checks", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read check history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checks": records})
}

func (h Handler) GetCheck(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "Check history is disabled")
		return
	}

	record, err := h.history.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Check not found")
		return
	}
	if err != nil {
		h.log.Error("failed to read check", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read check history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"check": record})
}

func (h Handler) ListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": h.directory.Entries()})
}

func (h Handler) RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.verifier.Required() {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityContextKey, auth.Anonymous)))
			return
		}

		identity, err := h.verifier.Verify(r.Context(), auth.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			h.log.Debug("rejected caller", logger.Error(err))
			writeError(w, http.StatusUnauthorized, "Missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityContextKey, identity)))
	})
}

func identityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(auth.Identity)
	return identity, ok
}
