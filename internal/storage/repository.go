package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"zpend/internal/core"
	"zpend/internal/ports"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements the readiness check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetProfile implements ports.ProfileReader
func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	row, err := r.queries.GetProfile(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, ports.ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return core.Profile{
		Income:      core.CoerceAmount(row.Income),
		SavingsGoal: core.CoerceAmount(row.SavingsGoal),
	}, nil
}

// SaveProfile implements ports.ProfileWriter
func (r *SQLiteRepository) SaveProfile(ctx context.Context, userID string, p core.Profile) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUserID
	}
	err := r.queries.UpsertProfile(ctx, UpsertProfileParams{
		UserID:      userID,
		Income:      p.Income.String(),
		SavingsGoal: p.SavingsGoal.String(),
	})
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	slog.InfoContext(ctx, "Profile saved to SQLite",
		"user_id", userID,
		"income", p.Income.String(),
		"savings_goal", p.SavingsGoal.String())
	return nil
}

// AppendExpenses implements ports.ExpenseWriter. The batch is written in one
// transaction.
func (r *SQLiteRepository) AppendExpenses(ctx context.Context, userID string, records []core.ExpenseRecord) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUserID
	}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	refs := make([]string, 0, len(records))
	for _, rec := range records {
		id, err := q.CreateExpense(ctx, CreateExpenseParams{
			UserID:         userID,
			Category:       rec.Category,
			Amount:         rec.Amount.String(),
			MonthlyPlanned: rec.MonthlyPlanned.String(),
			Note:           rec.Note,
			Date:           rec.Date,
		})
		if err != nil {
			return nil, fmt.Errorf("create expense: %w", err)
		}
		refs = append(refs, strconv.FormatInt(id, 10))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit expenses: %w", err)
	}

	slog.InfoContext(ctx, "Expenses saved to SQLite",
		"user_id", userID,
		"count", len(refs))
	return refs, nil
}

// ListExpenses implements ports.ExpenseLister
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string) ([]core.ExpenseRecord, error) {
	rows, err := r.queries.ListExpensesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	expenses := make([]core.ExpenseRecord, len(rows))
	for i, e := range rows {
		expenses[i] = core.ExpenseRecord{
			ID:             strconv.FormatInt(e.ID, 10),
			Category:       e.Category,
			Amount:         core.CoerceAmount(e.Amount),
			Date:           e.Date,
			MonthlyPlanned: core.CoerceAmount(e.MonthlyPlanned),
			Note:           e.Note,
		}
	}
	return expenses, nil
}

// SaveSnapshot implements ports.SnapshotStore
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s core.Snapshot) error {
	if strings.TrimSpace(s.UserID) == "" {
		return core.ErrEmptyUserID
	}
	err := r.queries.CreateSnapshot(ctx, CreateSnapshotParams{
		UserID:        s.UserID,
		ReferenceDate: s.ReferenceDate,
		Report:        string(s.Report),
		CreatedAt:     s.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot implements ports.SnapshotStore
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context, userID string) (core.Snapshot, error) {
	row, err := r.queries.LatestSnapshot(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, ports.ErrNotFound
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return core.Snapshot{
		UserID:        row.UserID,
		ReferenceDate: row.ReferenceDate,
		Report:        []byte(row.Report),
		CreatedAt:     row.CreatedAt,
	}, nil
}

var _ ports.Store = (*SQLiteRepository)(nil)
