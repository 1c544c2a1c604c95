package handler

import (
	"net/http"

	"RefineAPI/internal/logger"
	"RefineAPI/internal/model"
	"RefineAPI/internal/refine"
)

type IndexResponse struct {
	Data   []map[string]any `json:"data"`
	Refine refine.Report    `json:"refine"`
	Meta   PageMeta         `json:"meta"`
}

type PageMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Index serves GET /api/{resource}: the refined, paginated rows and the
// report a client renders its controls from.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/{resource}"
	res, ref, ok := h.prepare(w, r, endpoint, (*model.Resource).SelectQuery)
	if !ok {
		return
	}
	if err := ref.Refine(); err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err, map[string]any{"resource": res.Name})
		return
	}

	limit, offset := pageParams(r, ref, res)
	query := ref.Query().Limit(uint64(limit)).Offset(uint64(offset))
	sqlStr, args, err := query.ToSql()
	if err != nil {
		writeError(w, endpoint, http.StatusInternalServerError, err, map[string]any{"resource": res.Name})
		return
	}
	logger.Debug("index_sql", map[string]any{"resource": res.Name, "sql": sqlStr, "args": args})

	rows, err := h.DB.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		writeError(w, endpoint, statusFor(err), err, map[string]any{"resource": res.Name})
		return
	}
	defer rows.Close()
	data, err := model.ScanRows(rows)
	if err != nil {
		writeError(w, endpoint, statusFor(err), err, map[string]any{"resource": res.Name})
		return
	}

	writeJSON(w, endpoint, IndexResponse{
		Data:   data,
		Refine: ref.Report(),
		Meta:   PageMeta{Limit: limit, Offset: offset},
	})
}
