package inmemdb

import (
	"context"
	"sort"

	"github.com/studentbuddy/backend/core/test"
)

type TestRepository struct {
	db *DB
}

func NewTestRepository(db *DB) *TestRepository {
	return &TestRepository{db: db}
}

func (repo *TestRepository) CreateTest(_ context.Context, t test.Test) (test.Test, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	t.ID = newID(t.ID)
	repo.db.tests[t.ID] = t
	return t, nil
}

func (repo *TestRepository) GetTestByID(_ context.Context, id string) (test.Test, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	t, ok := repo.db.tests[id]
	if !ok {
		return test.Test{}, test.ErrNotFound
	}
	return t, nil
}

func (repo *TestRepository) QueryTestsByID(_ context.Context, ids []string) ([]test.Test, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tests := make([]test.Test, 0, len(ids))
	for _, id := range ids {
		if t, ok := repo.db.tests[id]; ok {
			tests = append(tests, t)
		}
	}
	return tests, nil
}

func (repo *TestRepository) FilterTests(_ context.Context, filter test.TestFilter) ([]test.Test, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tests := make([]test.Test, 0, len(repo.db.tests))
	for _, t := range repo.db.tests {
		if filter.ActiveOnly && !t.IsActive {
			continue
		}
		if filter.CreatedBy != "" && t.CreatedBy != filter.CreatedBy {
			continue
		}
		tests = append(tests, t)
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].CreatedAt.After(tests[j].CreatedAt) })
	return tests, nil
}

func (repo *TestRepository) UpdateTest(_ context.Context, t test.Test) (test.Test, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.tests[t.ID]; !ok {
		return test.Test{}, test.ErrNotFound
	}
	repo.db.tests[t.ID] = t
	return t, nil
}

func (repo *TestRepository) DeleteTestByID(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.tests[id]; !ok {
		return test.ErrNotFound
	}
	delete(repo.db.tests, id)
	return nil
}

func (repo *TestRepository) CreateAttempt(_ context.Context, att test.Attempt) (test.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.attempts {
		if existing.UserID == att.UserID && existing.TestID == att.TestID {
			return test.Attempt{}, test.ErrTestAlreadyAttempted
		}
	}
	att.ID = newID(att.ID)
	repo.db.attempts[att.ID] = att
	return att, nil
}

func (repo *TestRepository) GetAttemptByID(_ context.Context, id string) (test.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	att, ok := repo.db.attempts[id]
	if !ok {
		return test.Attempt{}, test.ErrAttemptNotFound
	}
	return att, nil
}

func (repo *TestRepository) FilterAttempts(_ context.Context, filter test.AttemptFilter) ([]test.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	attempts := make([]test.Attempt, 0, len(repo.db.attempts))
	for _, att := range repo.db.attempts {
		if filter.UserID != "" && att.UserID != filter.UserID {
			continue
		}
		if filter.TestID != "" && att.TestID != filter.TestID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsString(filter.Statuses, att.Status) {
			continue
		}
		attempts = append(attempts, att)
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].StartedAt.After(attempts[j].StartedAt) })
	return attempts, nil
}

func (repo *TestRepository) CloseAttempt(_ context.Context, att test.Attempt) (test.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	existing, ok := repo.db.attempts[att.ID]
	if !ok || existing.Status != test.StatusInProgress {
		return test.Attempt{}, test.ErrAttemptClosed
	}
	repo.db.attempts[att.ID] = att
	return att, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
