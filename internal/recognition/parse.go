package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"pantry/internal/core"
)

// defaultAmount is used when a recognized entry carries no amount.
const defaultAmount = "1"

type rawItem struct {
	Name       *string         `json:"name"`
	Amount     json.RawMessage `json:"amount"`
	Categories json.RawMessage `json:"categories"`
}

type rawOperation struct {
	Operation string          `json:"operation"`
	Item      string          `json:"item"`
	Quantity  json.RawMessage `json:"quantity"`
}

// ParseRecognitionBatch parses one JSON object per entry. Malformed entries are
// dropped individually and counted; the rest keep their input order.
func ParseRecognitionBatch(ctx context.Context, lines []string) ([]core.RecognizedItem, int) {
	items := make([]core.RecognizedItem, 0, len(lines))
	dropped := 0
	for i, line := range lines {
		it, err := parseRecognizedItem([]byte(line))
		if err != nil {
			dropped++
			slog.DebugContext(ctx, "Dropping malformed recognition entry", "index", i, "error", err)
			continue
		}
		items = append(items, it)
	}
	if dropped > 0 {
		slog.WarnContext(ctx, "Recognition batch had malformed entries", "dropped", dropped, "kept", len(items))
	}
	return items, dropped
}

// ParseRecognitionOutput accepts the raw text of a recognition response: a
// JSON array, one object per line, or either wrapped in a ```json fence.
func ParseRecognitionOutput(ctx context.Context, text string) ([]core.RecognizedItem, int) {
	body := StripCodeFence(text)
	if strings.HasPrefix(body, "[") {
		var entries []json.RawMessage
		if err := json.Unmarshal([]byte(body), &entries); err == nil {
			lines := make([]string, len(entries))
			for i, e := range entries {
				lines[i] = string(e)
			}
			return ParseRecognitionBatch(ctx, lines)
		}
	}

	var lines []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSuffix(line, ",")
		if line == "" || line == "[" || line == "]" {
			continue
		}
		lines = append(lines, line)
	}
	return ParseRecognitionBatch(ctx, lines)
}

func parseRecognizedItem(data []byte) (core.RecognizedItem, error) {
	var raw rawItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.RecognizedItem{}, fmt.Errorf("%w: %v", core.ErrMalformedRecognitionOutput, err)
	}
	if raw.Name == nil || strings.TrimSpace(*raw.Name) == "" {
		return core.RecognizedItem{}, fmt.Errorf("%w: missing name", core.ErrMalformedRecognitionOutput)
	}

	amount, err := parseAmountField(raw.Amount)
	if err != nil {
		return core.RecognizedItem{}, err
	}
	cats, err := parseCategoriesField(raw.Categories)
	if err != nil {
		return core.RecognizedItem{}, err
	}

	return core.RecognizedItem{
		Name:       strings.TrimSpace(*raw.Name),
		Amount:     amount,
		Categories: cats,
	}, nil
}

// parseAmountField accepts a JSON number or string.
func parseAmountField(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return defaultAmount, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return defaultAmount, nil
		}
		return s, nil
	}
	return "", fmt.Errorf("%w: amount %s", core.ErrMalformedRecognitionOutput, raw)
}

// parseCategoriesField accepts a list of names or {name} objects.
func parseCategoriesField(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: categories %s", core.ErrMalformedRecognitionOutput, raw)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		var name string
		if err := json.Unmarshal(e, &name); err == nil {
			out = append(out, name)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(e, &obj); err == nil && obj.Name != "" {
			out = append(out, obj.Name)
			continue
		}
		return nil, fmt.Errorf("%w: category %s", core.ErrMalformedRecognitionOutput, e)
	}
	return out, nil
}

// ParseOperations parses interpreted voice operations. The payload is a JSON
// array, optionally fenced. A payload that is not an array fails the whole
// call; individual bad entries are dropped and counted.
func ParseOperations(ctx context.Context, text string) ([]core.Operation, int, error) {
	body := StripCodeFence(text)
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		return nil, 0, fmt.Errorf("%w: operations: %v", core.ErrMalformedRecognitionOutput, err)
	}
	return parseOperationEntries(ctx, entries)
}

func parseOperationEntries(ctx context.Context, entries []json.RawMessage) ([]core.Operation, int, error) {
	ops := make([]core.Operation, 0, len(entries))
	dropped := 0
	for i, e := range entries {
		op, err := parseOperation(e)
		if err != nil {
			dropped++
			slog.DebugContext(ctx, "Dropping malformed operation", "index", i, "error", err)
			continue
		}
		ops = append(ops, op)
	}
	if dropped > 0 {
		slog.WarnContext(ctx, "Interpreted operations had malformed entries", "dropped", dropped, "kept", len(ops))
	}
	return ops, dropped, nil
}

func parseOperation(data json.RawMessage) (core.Operation, error) {
	var raw rawOperation
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.Operation{}, fmt.Errorf("%w: %v", core.ErrMalformedRecognitionOutput, err)
	}
	q, err := parseQuantity(raw.Quantity)
	if err != nil {
		return core.Operation{}, err
	}
	op := core.Operation{
		Kind:     core.OperationKind(strings.ToLower(strings.TrimSpace(raw.Operation))),
		Item:     strings.TrimSpace(raw.Item),
		Quantity: q,
	}
	if err := op.Validate(); err != nil {
		return core.Operation{}, fmt.Errorf("%w: %v", core.ErrMalformedRecognitionOutput, err)
	}
	return op, nil
}

// parseQuantity accepts an integral JSON number or numeric string that fits
// in an int64. A missing quantity is zero.
func parseQuantity(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	// Exponent forms such as 2e1. float64(math.MaxInt64) rounds up to 2^63,
	// hence the >= bound.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) ||
		f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: quantity %s", core.ErrMalformedRecognitionOutput, raw)
	}
	return int64(f), nil
}

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
