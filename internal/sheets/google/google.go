package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"zpend/internal/core"
	"zpend/internal/ports"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Tabs names the sheets used inside the spreadsheet.
type Tabs struct {
	Expenses  string
	Profiles  string
	Snapshots string
}

// DefaultTabs returns the tab names used when none are configured.
func DefaultTabs() Tabs {
	return Tabs{Expenses: "Expenses", Profiles: "Profiles", Snapshots: "Snapshots"}
}

// Options configure a Sheets-backed store.
type Options struct {
	SpreadsheetID string
	Tabs          Tabs
	// ServiceAccountJSON takes precedence over ServiceAccountFile.
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabs          Tabs
	now           func() time.Time
}

var _ ports.Store = (*Client)(nil)

// New creates a Sheets store authenticated with a service account. When no
// credentials are given GOOGLE_APPLICATION_CREDENTIALS is consulted.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, opts.SpreadsheetID, opts.Tabs), nil
}

func newClient(svc *gsheet.Service, spreadsheetID string, tabs Tabs) *Client {
	def := DefaultTabs()
	if strings.TrimSpace(tabs.Expenses) == "" {
		tabs.Expenses = def.Expenses
	}
	if strings.TrimSpace(tabs.Profiles) == "" {
		tabs.Profiles = def.Profiles
	}
	if strings.TrimSpace(tabs.Snapshots) == "" {
		tabs.Snapshots = def.Snapshots
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, tabs: tabs, now: time.Now}
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(opts.ServiceAccountJSON))
	file := strings.TrimSpace(opts.ServiceAccountFile)
	if len(credentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		slog.InfoContext(ctx, "Using inline service account credentials")
	case file != "":
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", file, "size", len(credentialsJSON))
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

func (c *Client) read(ctx context.Context, rng string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) append(ctx context.Context, rng string, rows [][]interface{}) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	vr := &gsheet.ValueRange{Values: rows}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", rng, err)
	}
	if resp.Updates == nil {
		return "", nil
	}
	return resp.Updates.UpdatedRange, nil
}

// GetProfile implements ports.ProfileReader
func (c *Client) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	values, err := c.read(ctx, c.tabs.Profiles+"!A:C")
	if err != nil {
		return core.Profile{}, err
	}
	p, _, ok := findProfile(values, userID)
	if !ok {
		return core.Profile{}, ports.ErrNotFound
	}
	return p, nil
}

// SaveProfile updates the user's row in place or appends a new one.
func (c *Client) SaveProfile(ctx context.Context, userID string, p core.Profile) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUserID
	}
	values, err := c.read(ctx, c.tabs.Profiles+"!A:C")
	if err != nil {
		return err
	}
	row := [][]interface{}{{userID, p.Income.String(), p.SavingsGoal.String()}}

	if _, idx, ok := findProfile(values, userID); ok {
		rng := fmt.Sprintf("%s!A%d:C%d", c.tabs.Profiles, idx+1, idx+1)
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: row}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}
	_, err = c.append(ctx, c.tabs.Profiles+"!A:C", row)
	return err
}

// AppendExpenses writes the batch in a single append call. References are
// the A1 ranges of the written rows.
func (c *Client) AppendExpenses(ctx context.Context, userID string, records []core.ExpenseRecord) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUserID
	}
	if len(records) == 0 {
		return []string{}, nil
	}
	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		rows = append(rows, expenseRow(userID, r))
	}
	updated, err := c.append(ctx, c.tabs.Expenses+"!A:F", rows)
	if err != nil {
		return nil, err
	}
	return rowRefs(updated, len(records)), nil
}

// ListExpenses implements ports.ExpenseLister
func (c *Client) ListExpenses(ctx context.Context, userID string) ([]core.ExpenseRecord, error) {
	values, err := c.read(ctx, c.tabs.Expenses+"!A:F")
	if err != nil {
		return nil, err
	}
	return parseExpenses(values, userID, c.tabs.Expenses), nil
}

// SaveSnapshot implements ports.SnapshotStore
func (c *Client) SaveSnapshot(ctx context.Context, s core.Snapshot) error {
	if strings.TrimSpace(s.UserID) == "" {
		return core.ErrEmptyUserID
	}
	created := s.CreatedAt
	if created.IsZero() {
		created = c.now()
	}
	row := [][]interface{}{{s.UserID, s.ReferenceDate, created.UTC().Format(time.RFC3339), string(s.Report)}}
	_, err := c.append(ctx, c.tabs.Snapshots+"!A:D", row)
	return err
}

// LatestSnapshot implements ports.SnapshotStore
func (c *Client) LatestSnapshot(ctx context.Context, userID string) (core.Snapshot, error) {
	values, err := c.read(ctx, c.tabs.Snapshots+"!A:D")
	if err != nil {
		return core.Snapshot{}, err
	}
	s, ok := lastSnapshot(values, userID)
	if !ok {
		return core.Snapshot{}, ports.ErrNotFound
	}
	return s, nil
}
