package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"RefineAPI/internal/auth"
	"RefineAPI/internal/db"
	"RefineAPI/internal/logger"
	"RefineAPI/internal/model"
	"RefineAPI/internal/refine"

	"github.com/Masterminds/squirrel"
)

// Handler serves refined reads over the resources of the registry.
type Handler struct {
	DB      model.Querier
	Builder *model.Builder
	Lookup  func(name string) (*model.Resource, bool)
}

func New(q model.Querier, b *model.Builder) *Handler {
	return &Handler{DB: q, Builder: b, Lookup: model.Lookup}
}

var errNotFound = errors.New("resource not found")

// prepare resolves the resource and builds its orchestrator over base.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request, endpoint string, base func(*model.Resource, string) squirrel.SelectBuilder) (*model.Resource, *refine.Refine, bool) {
	if r.Method != http.MethodGet {
		logger.Warn("method_not_allowed", map[string]any{
			"endpoint": endpoint,
			"method":   r.Method,
		})
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Only GET allowed", http.StatusMethodNotAllowed)
		return nil, nil, false
	}

	name := r.PathValue("resource")
	res, ok := h.Lookup(name)
	if !ok {
		writeError(w, endpoint, http.StatusNotFound, errNotFound, map[string]any{"resource": name})
		return nil, nil, false
	}

	ref, err := h.Builder.NewRefine(r.Context(), res, base(res, h.Builder.Config.Qualifier), refine.FromHTTP(r))
	if err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err, map[string]any{"resource": name})
		return nil, nil, false
	}
	if sub, ok := auth.Subject(r.Context()); ok {
		ref.Provide("subject", sub)
	}
	return res, ref, true
}

// pageParams reads the scoped limit/offset keys. Malformed values fall back
// to the resource defaults.
func pageParams(r *http.Request, ref *refine.Refine, res *model.Resource) (int, int) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(strings.TrimSpace(q.Get(ref.Key("limit"))))
	offset, _ := strconv.Atoi(strings.TrimSpace(q.Get(ref.Key("offset"))))
	return res.Page(limit, offset)
}

func statusFor(err error) int {
	if db.IsClientError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, endpoint string, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write_response_failed", map[string]any{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
	}
}

func writeError(w http.ResponseWriter, endpoint string, status int, err error, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["endpoint"] = endpoint
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request_failed", fields)
	} else {
		logger.Warn("request_failed", fields)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
