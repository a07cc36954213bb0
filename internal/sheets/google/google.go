// Package google stores pantry categories in a Google Sheet, one category per
// row with columns Name and Color below a header row.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"pantry/internal/core"
	applog "pantry/internal/log"
	ports "pantry/internal/sheets"
	"pantry/internal/store"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	DefaultSheetName    = "Categories"
	DefaultPollInterval = 30 * time.Second

	// First data row; row 1 holds the header.
	firstRow = 2
)

var (
	_ ports.ValuesClient  = (*apiValues)(nil)
	_ store.CategoryStore = (*Client)(nil)
)

// Client is a store.CategoryStore backed by a spreadsheet. Sheets has no push
// notifications, so subscribers are fed by polling.
type Client struct {
	store.Broadcaster

	values ports.ValuesClient
	sheet  string
	poll   time.Duration

	writeMu sync.Mutex // serializes read-modify-write cycles

	pollMu   sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastSeen []core.Category
}

// New creates a Sheets category store authenticated with service account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetName string, poll time.Duration) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return NewWithValues(&apiValues{svc: svc, spreadsheetID: spreadsheetID}, sheetName, poll), nil
}

// NewWithValues builds the store on top of any ValuesClient.
func NewWithValues(values ports.ValuesClient, sheetName string, poll time.Duration) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Client{values: values, sheet: sheetName, poll: poll}
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Subscribe implements store.CategoryStore. The first subscriber starts the
// poller; Close stops it.
func (c *Client) Subscribe(ctx context.Context, onChange func([]core.Category)) (func(), error) {
	cats, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	unsub := c.Broadcaster.Add(onChange)
	onChange(cats)

	c.pollMu.Lock()
	if c.stopCh == nil {
		c.lastSeen = cats
		c.stopCh = make(chan struct{})
		c.doneCh = make(chan struct{})
		go c.pollLoop(c.stopCh, c.doneCh)
	}
	c.pollMu.Unlock()

	return unsub, nil
}

func (c *Client) pollLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.poll)
			if err := c.Refresh(ctx); err != nil {
				slog.WarnContext(ctx, "Failed to poll categories sheet",
					applog.FieldComponent, applog.ComponentSheets, "sheet", c.sheet, applog.FieldError, err)
			}
			cancel()
		}
	}
}

// Refresh re-reads the sheet and notifies subscribers when the content changed.
func (c *Client) Refresh(ctx context.Context) error {
	cats, err := c.List(ctx)
	if err != nil {
		return err
	}
	c.pollMu.Lock()
	changed := !sameCategories(c.lastSeen, cats)
	c.lastSeen = cats
	c.pollMu.Unlock()

	if changed {
		c.Publish(cats)
	}
	return nil
}

// Close stops the poller.
func (c *Client) Close() error {
	c.pollMu.Lock()
	stopCh, doneCh := c.stopCh, c.doneCh
	c.stopCh, c.doneCh = nil, nil
	c.pollMu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}
	return nil
}

// List implements store.CategoryStore
func (c *Client) List(ctx context.Context) ([]core.Category, error) {
	rows, err := c.values.Read(ctx, c.dataRange())
	if err != nil {
		return nil, fmt.Errorf("read categories sheet %s: %w", c.sheet, err)
	}
	return parseCategoryRows(rows), nil
}

// FindByName implements store.CategoryStore
func (c *Client) FindByName(ctx context.Context, name string) (core.Category, bool, error) {
	cats, err := c.List(ctx)
	if err != nil {
		return core.Category{}, false, err
	}
	for _, cat := range cats {
		if cat.Name == name {
			return cat, true, nil
		}
	}
	return core.Category{}, false, nil
}

// Add implements store.CategoryStore
func (c *Client) Add(ctx context.Context, cat core.Category) error {
	if err := cat.Validate(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	rows, err := c.values.Read(ctx, c.dataRange())
	if err != nil {
		return fmt.Errorf("read categories sheet %s: %w", c.sheet, err)
	}
	for _, existing := range parseCategoryRows(rows) {
		if existing.Name == cat.Name {
			return fmt.Errorf("add %q: %w", cat.Name, core.ErrDuplicateCategoryName)
		}
	}

	next := firstRow + len(rows)
	rng := fmt.Sprintf("%s!A%d:B%d", c.sheet, next, next)
	if err := c.values.Write(ctx, rng, [][]any{{cat.Name, cat.Color}}); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}

	slog.InfoContext(ctx, "Category appended to sheet",
		applog.FieldComponent, applog.ComponentSheets, "sheet", c.sheet, applog.FieldCategory, cat.Name, "row", next)
	c.refreshAfterWrite(ctx, cat.Name)
	return nil
}

// Delete implements store.CategoryStore. Remaining rows are rewritten
// contiguously so that Add can keep appending after the last row.
func (c *Client) Delete(ctx context.Context, name string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	rows, err := c.values.Read(ctx, c.dataRange())
	if err != nil {
		return fmt.Errorf("read categories sheet %s: %w", c.sheet, err)
	}

	kept := make([][]any, 0, len(rows))
	removed := false
	for _, row := range rows {
		if cellString(row, 0) == name {
			removed = true
			continue
		}
		kept = append(kept, row)
	}
	if !removed {
		return nil
	}

	if err := c.values.Clear(ctx, c.dataRange()); err != nil {
		return fmt.Errorf("clear %s: %w", c.dataRange(), err)
	}
	if len(kept) > 0 {
		last := firstRow + len(kept) - 1
		rng := fmt.Sprintf("%s!A%d:B%d", c.sheet, firstRow, last)
		if err := c.values.Write(ctx, rng, normalizeRows(kept)); err != nil {
			return fmt.Errorf("write %s: %w", rng, err)
		}
	}

	slog.InfoContext(ctx, "Category removed from sheet",
		applog.FieldComponent, applog.ComponentSheets, "sheet", c.sheet, applog.FieldCategory, name)
	c.refreshAfterWrite(ctx, name)
	return nil
}

// refreshAfterWrite notifies subscribers of a write that already landed. A
// failed read is left to the next poll.
func (c *Client) refreshAfterWrite(ctx context.Context, name string) {
	if err := c.Refresh(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to refresh categories after write",
			applog.FieldComponent, applog.ComponentSheets, "sheet", c.sheet, applog.FieldCategory, name, applog.FieldError, err)
	}
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!A%d:B", c.sheet, firstRow)
}

// apiValues adapts the Sheets v4 values API to ports.ValuesClient.
type apiValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (a *apiValues) Read(ctx context.Context, rng string) ([][]any, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(a.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (a *apiValues) Write(ctx context.Context, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := a.svc.Spreadsheets.Values.Update(a.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (a *apiValues) Clear(ctx context.Context, rng string) error {
	_, err := a.svc.Spreadsheets.Values.Clear(a.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	return err
}
