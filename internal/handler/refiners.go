package handler

import (
	"net/http"

	"RefineAPI/internal/model"
	"RefineAPI/internal/refine"
)

type RefinersResponse struct {
	Resource string        `json:"resource"`
	Refine   refine.Report `json:"refine"`
}

// Refiners serves GET /api/{resource}/refiners. It describes the refiners
// without refining, so nothing reaches the database except option lists.
func (h *Handler) Refiners(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/{resource}/refiners"
	res, ref, ok := h.prepare(w, r, endpoint, (*model.Resource).SelectQuery)
	if !ok {
		return
	}
	writeJSON(w, endpoint, RefinersResponse{Resource: res.Name, Refine: ref.Report()})
}
