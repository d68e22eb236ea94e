package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"zpend/internal/amqp"
	"zpend/internal/core"
	applog "zpend/internal/log"
	"zpend/internal/services"
)

// SnapshotRefresher recomputes and stores a user's report.
type SnapshotRefresher interface {
	RefreshSnapshot(ctx context.Context, req services.ReportRequest) (core.Snapshot, error)
}

// InsightsWorker keeps per-user report snapshots current in response to bus
// events. It remembers every user it has seen so snapshots can be rolled
// forward when the day changes.
type InsightsWorker struct {
	refresher SnapshotRefresher
	classify  bool
	logger    *applog.Logger

	mu    sync.Mutex
	known map[string]struct{}
}

var _ amqp.Handler = (*InsightsWorker)(nil)

func NewInsightsWorker(refresher SnapshotRefresher, classify bool, logger *applog.Logger) *InsightsWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &InsightsWorker{
		refresher: refresher,
		classify:  classify,
		logger:    logger.WithComponent(applog.ComponentWorker),
		known:     make(map[string]struct{}),
	}
}

// HandleExpensesLogged refreshes the user's snapshot for today.
func (w *InsightsWorker) HandleExpensesLogged(ctx context.Context, msg *amqp.ExpensesLoggedMessage) error {
	w.logger.InfoContext(ctx, "Processing expenses logged message",
		applog.FieldMessageType, amqp.TypeExpensesLogged,
		applog.FieldUserID, msg.UserID,
		applog.FieldExpenseCount, msg.Count)
	return w.refresh(ctx, msg.UserID)
}

// HandleGoalApplied refreshes the snapshot so it reflects the new goal.
func (w *InsightsWorker) HandleGoalApplied(ctx context.Context, msg *amqp.GoalAppliedMessage) error {
	w.logger.InfoContext(ctx, "Processing goal applied message",
		applog.FieldMessageType, amqp.TypeGoalApplied,
		applog.FieldUserID, msg.UserID,
		applog.FieldSuggestedGoal, msg.SavingsGoal.String())
	return w.refresh(ctx, msg.UserID)
}

func (w *InsightsWorker) refresh(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		// Retrying cannot fix a message without a user.
		w.logger.WarnContext(ctx, "Skipping message without user id")
		return nil
	}
	snap, err := w.refresher.RefreshSnapshot(ctx, services.ReportRequest{
		UserID:             userID,
		ClassifyEssentials: w.classify,
	})
	if err != nil {
		return fmt.Errorf("refresh snapshot for %s: %w", userID, err)
	}
	w.remember(userID)
	w.logger.InfoContext(ctx, "Snapshot refreshed",
		applog.FieldUserID, userID,
		applog.FieldReferenceDate, snap.ReferenceDate)
	return nil
}

func (w *InsightsWorker) remember(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.known[userID] = struct{}{}
}

// KnownUsers returns the users seen so far, sorted.
func (w *InsightsWorker) KnownUsers() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	users := make([]string, 0, len(w.known))
	for u := range w.known {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// RefreshKnown recomputes snapshots for every known user. It is the backup
// path for the day rolling over without new events. Failures are logged and
// counted; processing continues with the next user.
func (w *InsightsWorker) RefreshKnown(ctx context.Context) (refreshed, failed int) {
	users := w.KnownUsers()
	if len(users) == 0 {
		return 0, 0
	}
	w.logger.InfoContext(ctx, "Refreshing known users", "count", len(users))

	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		if err := w.refresh(ctx, u); err != nil {
			w.logger.ErrorContext(ctx, "Periodic snapshot refresh failed",
				applog.FieldUserID, u, applog.FieldError, err)
			failed++
			continue
		}
		refreshed++
	}

	w.logger.InfoContext(ctx, "Periodic refresh completed",
		"total", len(users),
		"refreshed", refreshed,
		"errors", failed)
	return refreshed, failed
}
