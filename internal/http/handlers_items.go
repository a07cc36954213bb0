package http

import (
	"net/http"
	"time"

	"pantry/internal/core"
	applog "pantry/internal/log"
	"pantry/internal/merger"
	"pantry/internal/services"
)

type itemView struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Amount     string         `json:"amount"`
	Categories []categoryView `json:"categories"`
	CreatedAt  string         `json:"createdAt,omitempty"`
}

func viewItem(it core.Item) itemView {
	v := itemView{
		ID:         it.ID,
		Name:       it.Name,
		Amount:     it.Amount,
		Categories: viewCategories(it.Categories),
	}
	if !it.CreatedAt.IsZero() {
		v.CreatedAt = it.CreatedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func viewItems(items []core.Item) []itemView {
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, viewItem(it))
	}
	return out
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.pantry.ListItems(r.Context())
	if err != nil {
		s.respondError(w, r, applog.OpList, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"items": viewItems(items)})
}

func (s *Server) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.pantry.SearchItems(r.Context(), QueryParam(r, "q"), QueryParam(r, "category"))
	if err != nil {
		s.respondError(w, r, applog.OpSearch, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"items": viewItems(items)})
}

func decodeItemInput(w http.ResponseWriter, r *http.Request) (services.ItemInput, error) {
	var in services.ItemInput
	if err := DecodeJSON(w, r, &in); err != nil {
		return in, err
	}
	in.Name = sanitizeInput(in.Name)
	in.Amount = sanitizeInput(in.Amount)
	in.Categories = sanitizeAll(in.Categories)
	return in, nil
}

// handleAddItem answers 201 when a new item was created and 200 when the
// amount was accumulated into an existing item with the same name.
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	in, err := decodeItemInput(w, r)
	if err != nil {
		s.respondError(w, r, applog.OpCreate, err)
		return
	}

	res, err := s.pantry.AddItem(r.Context(), in)
	if err != nil {
		s.respondError(w, r, applog.OpCreate, err)
		return
	}

	resp := NewJSONResponse().Status(http.StatusOK)
	if res.Action == merger.Create {
		resp.Status(http.StatusCreated).Header("Location", "/api/items/"+res.Item.ID)
	}
	resp.Body(map[string]any{
		"action": res.Action,
		"item":   viewItem(res.Item),
	}).Write(r.Context(), w)
}

func (s *Server) handleEditItem(w http.ResponseWriter, r *http.Request) {
	in, err := decodeItemInput(w, r)
	if err != nil {
		s.respondError(w, r, applog.OpUpdate, err)
		return
	}

	it, err := s.pantry.EditItem(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.respondError(w, r, applog.OpUpdate, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"item": viewItem(it)})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.pantry.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		s.respondError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
