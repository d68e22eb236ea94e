package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Profile struct {
	UserID      string
	Income      string
	SavingsGoal string
	UpdatedAt   time.Time
}

type Expense struct {
	ID             int64
	UserID         string
	Category       string
	Amount         string
	MonthlyPlanned string
	Note           string
	Date           string
	CreatedAt      time.Time
}

type InsightSnapshot struct {
	ID            int64
	UserID        string
	ReferenceDate string
	Report        string
	CreatedAt     time.Time
}

const getProfile = `SELECT user_id, income, savings_goal, updated_at FROM profiles WHERE user_id = ?`

func (q *Queries) GetProfile(ctx context.Context, userID string) (Profile, error) {
	row := q.db.QueryRowContext(ctx, getProfile, userID)
	var p Profile
	err := row.Scan(&p.UserID, &p.Income, &p.SavingsGoal, &p.UpdatedAt)
	return p, err
}

const upsertProfile = `INSERT INTO profiles (user_id, income, savings_goal, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(user_id) DO UPDATE SET
    income = excluded.income,
    savings_goal = excluded.savings_goal,
    updated_at = CURRENT_TIMESTAMP`

type UpsertProfileParams struct {
	UserID      string
	Income      string
	SavingsGoal string
}

func (q *Queries) UpsertProfile(ctx context.Context, arg UpsertProfileParams) error {
	_, err := q.db.ExecContext(ctx, upsertProfile, arg.UserID, arg.Income, arg.SavingsGoal)
	return err
}

const createExpense = `INSERT INTO expenses (user_id, category, amount, monthly_planned, note, date)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

type CreateExpenseParams struct {
	UserID         string
	Category       string
	Amount         string
	MonthlyPlanned string
	Note           string
	Date           string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.UserID, arg.Category, arg.Amount, arg.MonthlyPlanned, arg.Note, arg.Date)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listExpensesByUser = `SELECT id, user_id, category, amount, monthly_planned, note, date, created_at
FROM expenses WHERE user_id = ? ORDER BY id`

func (q *Queries) ListExpensesByUser(ctx context.Context, userID string) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.UserID, &e.Category, &e.Amount, &e.MonthlyPlanned, &e.Note, &e.Date, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createSnapshot = `INSERT INTO insight_snapshots (user_id, reference_date, report, created_at)
VALUES (?, ?, ?, ?)`

type CreateSnapshotParams struct {
	UserID        string
	ReferenceDate string
	Report        string
	CreatedAt     time.Time
}

func (q *Queries) CreateSnapshot(ctx context.Context, arg CreateSnapshotParams) error {
	_, err := q.db.ExecContext(ctx, createSnapshot, arg.UserID, arg.ReferenceDate, arg.Report, arg.CreatedAt)
	return err
}

const latestSnapshot = `SELECT id, user_id, reference_date, report, created_at
FROM insight_snapshots WHERE user_id = ? ORDER BY id DESC LIMIT 1`

func (q *Queries) LatestSnapshot(ctx context.Context, userID string) (InsightSnapshot, error) {
	row := q.db.QueryRowContext(ctx, latestSnapshot, userID)
	var s InsightSnapshot
	err := row.Scan(&s.ID, &s.UserID, &s.ReferenceDate, &s.Report, &s.CreatedAt)
	return s, err
}
