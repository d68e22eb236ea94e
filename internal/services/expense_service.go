package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zpend/internal/core"
	applog "zpend/internal/log"
	"zpend/internal/ports"
)

// ErrNoExpenses is returned when a logging request carries no records.
var ErrNoExpenses = errors.New("no expenses to log")

// LogExpenses cleans and stores a batch of records, then publishes an
// expenses-logged message. The batch is rejected as a whole if any record
// fails validation.
func (s *InsightService) LogExpenses(ctx context.Context, userID string, records []core.ExpenseRecord) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	if len(records) == 0 {
		return nil, ErrNoExpenses
	}

	today := s.today()
	cleaned := make([]core.ExpenseRecord, 0, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("expense %d: %w", i, err)
		}
		cleaned = append(cleaned, r.Cleaned(today))
	}

	// Save first; the bus is best effort.
	refs, err := s.store.AppendExpenses(ctx, userID, cleaned)
	if err != nil {
		return nil, fmt.Errorf("save expenses: %w", err)
	}
	s.Invalidate(userID)

	applog.NewStructuredLogger(s.logger).LogExpensesLogged(ctx, userID, len(refs))

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not available, skipping expenses logged message")
		return refs, nil
	}
	if err := s.publisher.PublishExpensesLogged(ctx, userID, len(refs)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expenses logged message",
			applog.FieldUserID, userID, applog.FieldError, err)
		// Don't fail the request - expenses are saved
	}
	return refs, nil
}

// ListExpenses returns the user's stored expenses in insertion order.
func (s *InsightService) ListExpenses(ctx context.Context, userID string) ([]core.ExpenseRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	list, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if list == nil {
		list = []core.ExpenseRecord{}
	}
	return list, nil
}

// GetProfile returns the stored profile, or a zero profile if the user has
// never saved one.
func (s *InsightService) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.Profile{}, core.ErrEmptyUserID
	}
	p, err := s.store.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return core.Profile{}, nil
	case err != nil:
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// SaveProfile upserts the user's profile. Negative values are rejected.
func (s *InsightService) SaveProfile(ctx context.Context, userID string, p core.Profile) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.ErrEmptyUserID
	}
	if p.Income.IsNegative() || p.SavingsGoal.IsNegative() {
		return core.ErrInvalidAmount
	}
	if err := s.store.SaveProfile(ctx, userID, p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.Invalidate(userID)
	s.logger.InfoContext(ctx, "Profile saved",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldUserID, userID)
	return nil
}
