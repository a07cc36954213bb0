package http

import (
	"net/http"

	"pantry/internal/colors"
	"pantry/internal/core"
	applog "pantry/internal/log"
)

// categoryView adds a hex rendering of the color for clients that cannot
// parse hsl() expressions.
type categoryView struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Hex   string `json:"hex,omitempty"`
}

func viewCategory(c core.Category) categoryView {
	v := categoryView{Name: c.Name, Color: c.Color}
	if hex, ok := colors.ToHex(c.Color); ok {
		v.Hex = hex
	}
	return v
}

func viewCategories(cats []core.Category) []categoryView {
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, viewCategory(c))
	}
	return out
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.pantry.ListCategories(r.Context())
	if err != nil {
		s.respondError(w, r, applog.OpList, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"categories": viewCategories(cats)})
}

type createCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// handleCreateCategory answers 201 for a new category and 200 with the
// existing entry when the name is taken.
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, applog.OpCreate, err)
		return
	}

	cat, created, err := s.pantry.CreateCategory(r.Context(), sanitizeInput(req.Name), sanitizeInput(req.Color))
	if err != nil {
		s.respondError(w, r, applog.OpCreate, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, r, status, map[string]any{
		"category": viewCategory(cat),
		"created":  created,
	})
}

func (s *Server) handleSeedCategories(w http.ResponseWriter, r *http.Request) {
	created, err := s.pantry.SeedDefaults(r.Context())
	if err != nil {
		s.respondError(w, r, applog.OpCreate, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"created": viewCategories(created)})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.pantry.DeleteCategory(r.Context(), sanitizeInput(r.PathValue("name"))); err != nil {
		s.respondError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
