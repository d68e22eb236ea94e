package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"zpend/internal/core"
	"zpend/internal/ports"
)

// SeedFile is the name of the optional seed read by NewFromFiles.
const SeedFile = "seed_expenses.json"

type userData struct {
	profile   *core.Profile
	expenses  []core.ExpenseRecord
	snapshots []core.Snapshot
}

type Store struct {
	mu    sync.Mutex
	users map[string]*userData
}

// Seed is the on-disk shape of SeedFile, keyed by user id.
type Seed map[string]struct {
	Profile  *core.Profile        `json:"profile"`
	Expenses []core.ExpenseRecord `json:"expenses"`
}

func New() *Store {
	return &Store{users: make(map[string]*userData)}
}

// NewFromFiles returns a store preloaded from base/seed_expenses.json. A
// missing or malformed seed yields an empty store.
func NewFromFiles(base string) *Store {
	s := New()
	seed, err := readSeed(filepath.Join(base, SeedFile))
	if err != nil {
		return s
	}
	for userID, u := range seed {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		d := s.user(userID)
		if u.Profile != nil {
			p := *u.Profile
			d.profile = &p
		}
		d.expenses = append(d.expenses, u.Expenses...)
	}
	return s
}

func readSeed(path string) (Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed Seed
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return seed, nil
}

// user returns the entry for userID, creating it. Callers hold mu or own s.
func (s *Store) user(userID string) *userData {
	d, ok := s.users[userID]
	if !ok {
		d = &userData{}
		s.users[userID] = d
	}
	return d
}

func (s *Store) GetProfile(_ context.Context, userID string) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.users[userID]
	if !ok || d.profile == nil {
		return core.Profile{}, ports.ErrNotFound
	}
	return *d.profile, nil
}

func (s *Store) SaveProfile(_ context.Context, userID string, p core.Profile) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user(userID).profile = &p
	return nil
}

// AppendExpenses stores the records and returns synthetic row references.
func (s *Store) AppendExpenses(_ context.Context, userID string, records []core.ExpenseRecord) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUserID
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.user(userID)
	refs := make([]string, 0, len(records))
	for _, r := range records {
		ref := "mem:" + uuid.NewString()
		r.ID = ref
		d.expenses = append(d.expenses, r)
		refs = append(refs, ref)
	}
	return refs, nil
}

// ListExpenses returns a copy of the user's expenses in insertion order.
func (s *Store) ListExpenses(_ context.Context, userID string) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.users[userID]
	if !ok {
		return []core.ExpenseRecord{}, nil
	}
	return append([]core.ExpenseRecord{}, d.expenses...), nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap core.Snapshot) error {
	if strings.TrimSpace(snap.UserID) == "" {
		return core.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.user(snap.UserID)
	d.snapshots = append(d.snapshots, snap)
	return nil
}

func (s *Store) LatestSnapshot(_ context.Context, userID string) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.users[userID]
	if !ok || len(d.snapshots) == 0 {
		return core.Snapshot{}, ports.ErrNotFound
	}
	return d.snapshots[len(d.snapshots)-1], nil
}

var _ ports.Store = (*Store)(nil)
