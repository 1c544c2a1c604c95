package handler

import (
	"net/http"

	"RefineAPI/internal/logger"
	"RefineAPI/internal/model"
	"RefineAPI/internal/refine"
)

type CountResponse struct {
	Count  int64         `json:"count"`
	Refine refine.Report `json:"refine"`
}

// Count serves GET /api/{resource}/count. Sorting is disabled: ORDER BY is
// meaningless under COUNT(*).
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/{resource}/count"
	res, ref, ok := h.prepare(w, r, endpoint, (*model.Resource).CountQuery)
	if !ok {
		return
	}
	if err := ref.DisableSorting().Refine(); err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err, map[string]any{"resource": res.Name})
		return
	}

	sqlStr, args, err := ref.Query().ToSql()
	if err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err, map[string]any{"resource": res.Name})
		return
	}
	logger.Debug("count_sql", map[string]any{"resource": res.Name, "sql": sqlStr, "args": args})

	rows, err := h.DB.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		writeError(w, endpoint, statusFor(err), err, map[string]any{"resource": res.Name})
		return
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			writeError(w, endpoint, http.StatusInternalServerError, err, map[string]any{"resource": res.Name})
			return
		}
	}
	if err := rows.Err(); err != nil {
		writeError(w, endpoint, statusFor(err), err, map[string]any{"resource": res.Name})
		return
	}

	writeJSON(w, endpoint, CountResponse{Count: count, Refine: ref.Report()})
}
