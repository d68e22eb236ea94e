// Package ports declares the storage interfaces the insight service and
// worker depend on. Every backend (memory, sqlite, sheets) implements all of
// them.
package ports

import (
	"context"
	"errors"

	"zpend/internal/core"
)

// ErrNotFound is returned when a user has no stored profile or snapshot.
var ErrNotFound = errors.New("not found")

// Ports for outbound adapters.
type (
	ProfileReader interface {
		// GetProfile returns ErrNotFound when the user never saved a profile.
		GetProfile(ctx context.Context, userID string) (core.Profile, error)
	}

	ProfileWriter interface {
		SaveProfile(ctx context.Context, userID string, p core.Profile) error
	}

	ExpenseWriter interface {
		// AppendExpenses stores records in order and returns one reference per record.
		AppendExpenses(ctx context.Context, userID string, records []core.ExpenseRecord) (refs []string, err error)
	}

	// ExpenseLister returns a user's expenses in insertion order.
	ExpenseLister interface {
		ListExpenses(ctx context.Context, userID string) ([]core.ExpenseRecord, error)
	}

	// SnapshotStore keeps reports computed by the worker.
	SnapshotStore interface {
		SaveSnapshot(ctx context.Context, s core.Snapshot) error
		// LatestSnapshot returns ErrNotFound when no snapshot exists.
		LatestSnapshot(ctx context.Context, userID string) (core.Snapshot, error)
	}

	// Store is the full set of operations a backend provides.
	Store interface {
		ProfileReader
		ProfileWriter
		ExpenseWriter
		ExpenseLister
		SnapshotStore
	}
)
