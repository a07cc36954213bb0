package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pantry/internal/core"
	"pantry/internal/merger"
	"pantry/internal/pending"
	"pantry/internal/recognition"
)

// RecognizeImage sends the image to the recognition endpoint and stores the
// resolved result as a pending batch.
func (s *PantryService) RecognizeImage(ctx context.Context, imageURL string) (pending.Batch, error) {
	if s.recognizer == nil {
		return pending.Batch{}, recognition.ErrEndpointNotConfigured
	}
	items, dropped, err := s.recognizer.Recognize(ctx, strings.TrimSpace(imageURL))
	if err != nil {
		return pending.Batch{}, fmt.Errorf("recognize image: %w", err)
	}
	return s.PreviewRecognition(ctx, items, dropped)
}

// PreviewRecognition resolves the categories of recognized items in a single
// pass and stores the batch until it is confirmed or expires.
func (s *PantryService) PreviewRecognition(ctx context.Context, items []core.RecognizedItem, dropped int) (pending.Batch, error) {
	var raw []string
	for _, it := range items {
		raw = append(raw, it.Categories...)
	}

	colorMap := core.CategoryColorMap{}
	var created []core.Category
	if names := trimNames(raw); len(names) > 0 {
		res, err := s.engine.Resolve(ctx, names)
		if err != nil {
			return pending.Batch{}, fmt.Errorf("resolve categories: %w", err)
		}
		colorMap = res.Colors.Clone()
		created = res.Created
	}

	out := make([]core.RecognizedItem, 0, len(items))
	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		it.Resolved, _ = merger.ResolveItemCategories(it.Categories, colorMap, s.colors)
		out = append(out, it)
	}

	batch := s.batches.Put(pending.Batch{
		Items:     out,
		Created:   created,
		Dropped:   dropped,
		CreatedAt: time.Now(),
	})
	slog.InfoContext(ctx, "Recognition batch ready",
		"batch_id", batch.ID,
		"items", len(out),
		"new_categories", len(created),
		"dropped", dropped)
	return batch, nil
}

// ConfirmRequest confirms a pending batch. Items, when set, replace the
// batch items (the user edited the preview); BatchID may then be empty.
type ConfirmRequest struct {
	BatchID           string                `json:"batchId"`
	Items             []core.RecognizedItem `json:"items"`
	PersistCategories bool                  `json:"persistCategories"`
}

type ConfirmResult struct {
	Items               []ItemResult    `json:"items"`
	Skipped             int             `json:"skipped"`
	PersistedCategories []core.Category `json:"persistedCategories"`
}

// ConfirmRecognition stores every named item of a batch, accumulating into
// existing items by name. Categories the saved items use are written
// remotely only when PersistCategories is set.
//
// The batch is taken out of the pending store before anything is saved, so
// concurrent confirmations of one batch cannot both apply it. On failure the
// items not yet saved go back under the same ID for a retry.
func (s *PantryService) ConfirmRecognition(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	var batch pending.Batch
	if req.BatchID != "" {
		b, ok := s.batches.Take(req.BatchID)
		if !ok {
			return ConfirmResult{}, fmt.Errorf("confirm %s: %w", req.BatchID, core.ErrBatchNotFound)
		}
		batch = b
	}
	items := batch.Items
	if req.Items != nil {
		items = req.Items
	}

	var result ConfirmResult
	toSave := make([]core.Item, 0, len(items))
	sources := make([]core.RecognizedItem, 0, len(items))
	for _, ri := range items {
		it := core.Item{Name: ri.Name, Amount: ri.Amount}
		it.Normalize()
		if it.Name == "" {
			result.Skipped++
			continue
		}

		cats := ri.Resolved
		if req.Items != nil || cats == nil {
			resolved, err := s.resolveCategories(ctx, ri.Categories)
			if err != nil {
				s.restoreBatch(req.BatchID, batch, batch.Items)
				return ConfirmResult{}, err
			}
			cats = resolved
		}
		it.Categories = cats
		ri.Resolved = cats
		toSave = append(toSave, it)
		sources = append(sources, ri)
	}

	if req.PersistCategories {
		persisted, err := s.persistCategories(ctx, itemCategories(toSave))
		result.PersistedCategories = persisted
		if err != nil {
			s.restoreBatch(req.BatchID, batch, sources)
			return result, err
		}
	}

	for i, it := range toSave {
		res, err := s.mergeAndSave(ctx, it)
		if err != nil {
			s.restoreBatch(req.BatchID, batch, sources[i:])
			return result, err
		}
		result.Items = append(result.Items, res)
	}

	slog.InfoContext(ctx, "Recognition batch confirmed",
		"batch_id", req.BatchID,
		"saved", len(result.Items),
		"skipped", result.Skipped,
		"persisted_categories", len(result.PersistedCategories))
	return result, nil
}

// restoreBatch puts the unsaved remainder of a taken batch back.
func (s *PantryService) restoreBatch(id string, batch pending.Batch, remaining []core.RecognizedItem) {
	if id == "" {
		return
	}
	batch.Items = remaining
	s.batches.Restore(batch)
}

// itemCategories lists the categories of items in first-use order without
// duplicates.
func itemCategories(items []core.Item) []core.Category {
	seen := make(map[string]bool)
	var out []core.Category
	for _, it := range items {
		for _, c := range it.Categories {
			if !seen[c.Name] {
				seen[c.Name] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// InterpretTranscript turns free text into item operations.
func (s *PantryService) InterpretTranscript(ctx context.Context, transcript string) ([]core.Operation, int, error) {
	if s.recognizer == nil {
		return nil, 0, recognition.ErrEndpointNotConfigured
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, 0, core.ErrEmptyName
	}
	ops, dropped, err := s.recognizer.Interpret(ctx, transcript)
	if err != nil {
		return nil, dropped, fmt.Errorf("interpret transcript: %w", err)
	}
	return ops, dropped, nil
}

type OperationStatus string

const (
	StatusCreated     OperationStatus = "created"
	StatusAccumulated OperationStatus = "accumulated"
	StatusDeleted     OperationStatus = "deleted"
	StatusUpdated     OperationStatus = "updated"
	StatusNotFound    OperationStatus = "not_found"
	StatusAmbiguous   OperationStatus = "ambiguous"
	StatusInvalid     OperationStatus = "invalid"
	StatusFailed      OperationStatus = "failed"
)

type OperationResult struct {
	Operation core.Operation  `json:"operation"`
	Status    OperationStatus `json:"status"`
	Item      *core.Item      `json:"item,omitempty"`
	Matches   int             `json:"matches,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ApplyOperations applies each operation independently; a failing operation
// is reported in its result and does not stop the rest.
func (s *PantryService) ApplyOperations(ctx context.Context, ops []core.Operation) ([]OperationResult, error) {
	results := make([]OperationResult, 0, len(ops))
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		op.Item = strings.TrimSpace(op.Item)
		results = append(results, s.applyOperation(ctx, op))
	}
	return results, nil
}

func (s *PantryService) applyOperation(ctx context.Context, op core.Operation) OperationResult {
	r := OperationResult{Operation: op}
	if err := op.Validate(); err != nil {
		r.Status, r.Error = StatusInvalid, err.Error()
		return r
	}

	if op.Kind == core.OpAdd {
		res, err := s.mergeAndSave(ctx, core.Item{Name: op.Item, Amount: core.QuantityToAmount(op.Quantity)})
		if err != nil {
			r.Status, r.Error = StatusFailed, err.Error()
			return r
		}
		r.Status = StatusCreated
		if res.Action == merger.Accumulate {
			r.Status = StatusAccumulated
		}
		r.Item = &res.Item
		return r
	}

	matches, err := s.items.FindItemsByName(ctx, op.Item)
	if err != nil {
		r.Status, r.Error = StatusFailed, err.Error()
		return r
	}
	r.Matches = len(matches)
	switch len(matches) {
	case 0:
		r.Status = StatusNotFound
		return r
	case 1:
	default:
		r.Status = StatusAmbiguous
		return r
	}

	target := matches[0]
	switch op.Kind {
	case core.OpDelete:
		err = s.DeleteItem(ctx, target.ID)
		r.Status = StatusDeleted
	case core.OpEdit:
		target.Amount = core.QuantityToAmount(op.Quantity)
		err = s.items.UpdateItem(ctx, target)
		r.Status = StatusUpdated
	}
	if err != nil {
		r.Status, r.Error = StatusFailed, err.Error()
		if errors.Is(err, core.ErrItemNotFound) {
			r.Status = StatusNotFound
		}
		return r
	}
	r.Item = &target
	slog.InfoContext(ctx, "Voice operation applied", "operation", op.Kind, "item", op.Item, "status", r.Status)
	return r
}

func trimNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
