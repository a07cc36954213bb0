package http

import (
	"fmt"
	"net/http"
	"time"

	"pantry/internal/core"
	applog "pantry/internal/log"
	"pantry/internal/pending"
	"pantry/internal/recognition"
	"pantry/internal/services"
)

type recognizedItemView struct {
	Name       string         `json:"name"`
	Amount     string         `json:"amount"`
	Categories []categoryView `json:"categories"`
}

type batchView struct {
	ID                string               `json:"id"`
	Items             []recognizedItemView `json:"items"`
	CreatedCategories []categoryView       `json:"createdCategories"`
	Dropped           int                  `json:"dropped"`
	CreatedAt         string               `json:"createdAt"`
}

func viewBatch(b pending.Batch) batchView {
	v := batchView{
		ID:                b.ID,
		Items:             make([]recognizedItemView, 0, len(b.Items)),
		CreatedCategories: viewCategories(b.Created),
		Dropped:           b.Dropped,
		CreatedAt:         b.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, it := range b.Items {
		v.Items = append(v.Items, recognizedItemView{
			Name:       it.Name,
			Amount:     it.Amount,
			Categories: viewCategories(it.Resolved),
		})
	}
	return v
}

// previewRequest carries either the raw text of a recognition response or
// already structured items.
type previewRequest struct {
	Output string                `json:"output"`
	Items  []core.RecognizedItem `json:"items"`
}

func (s *Server) handlePreviewRecognition(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, applog.OpRecognize, err)
		return
	}
	if req.Output == "" && req.Items == nil {
		s.respondError(w, r, applog.OpRecognize, fmt.Errorf("%w: output or items required", core.ErrInvalidItem))
		return
	}

	items, dropped := req.Items, 0
	if req.Output != "" {
		parsed, n := recognition.ParseRecognitionOutput(r.Context(), req.Output)
		items = append(items, parsed...)
		dropped = n
	}

	batch, err := s.pantry.PreviewRecognition(r.Context(), items, dropped)
	if err != nil {
		s.respondError(w, r, applog.OpRecognize, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, map[string]any{"batch": viewBatch(batch)})
}

type recognizeImageRequest struct {
	ImageURL string `json:"imageUrl"`
}

func (s *Server) handleRecognizeImage(w http.ResponseWriter, r *http.Request) {
	var req recognizeImageRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, applog.OpRecognize, err)
		return
	}
	imageURL := sanitizeInput(req.ImageURL)
	if imageURL == "" {
		s.respondError(w, r, applog.OpRecognize, fmt.Errorf("%w: imageUrl required", core.ErrInvalidItem))
		return
	}

	batch, err := s.pantry.RecognizeImage(r.Context(), imageURL)
	if err != nil {
		s.respondError(w, r, applog.OpRecognize, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, map[string]any{"batch": viewBatch(batch)})
}

type confirmRequest struct {
	Items             []core.RecognizedItem `json:"items"`
	PersistCategories bool                  `json:"persistCategories"`
}

type itemResultView struct {
	Action string   `json:"action"`
	Item   itemView `json:"item"`
}

// handleConfirmRecognition accepts an empty body to confirm the batch as
// previewed.
func (s *Server) handleConfirmRecognition(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if r.ContentLength != 0 {
		if err := DecodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, applog.OpConfirm, err)
			return
		}
	}

	res, err := s.pantry.ConfirmRecognition(r.Context(), services.ConfirmRequest{
		BatchID:           r.PathValue("id"),
		Items:             req.Items,
		PersistCategories: req.PersistCategories,
	})
	if err != nil {
		s.respondError(w, r, applog.OpConfirm, err)
		return
	}

	saved := make([]itemResultView, 0, len(res.Items))
	for _, ir := range res.Items {
		saved = append(saved, itemResultView{Action: string(ir.Action), Item: viewItem(ir.Item)})
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"items":               saved,
		"skipped":             res.Skipped,
		"persistedCategories": viewCategories(res.PersistedCategories),
	})
}

type interpretRequest struct {
	Transcript string `json:"transcript"`
}

func (s *Server) handleInterpretTranscript(w http.ResponseWriter, r *http.Request) {
	var req interpretRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, applog.OpInterpret, err)
		return
	}

	ops, dropped, err := s.pantry.InterpretTranscript(r.Context(), sanitizeInput(req.Transcript))
	if err != nil {
		s.respondError(w, r, applog.OpInterpret, err)
		return
	}
	if ops == nil {
		ops = []core.Operation{}
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"operations": ops,
		"dropped":    dropped,
	})
}

type operationsRequest struct {
	Operations []core.Operation `json:"operations"`
}

// handleApplyOperations always answers 200; per-operation outcomes are in
// the results.
func (s *Server) handleApplyOperations(w http.ResponseWriter, r *http.Request) {
	var req operationsRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, applog.OpUpdate, err)
		return
	}

	results, err := s.pantry.ApplyOperations(r.Context(), req.Operations)
	if err != nil {
		s.respondError(w, r, applog.OpUpdate, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"results": results})
}
