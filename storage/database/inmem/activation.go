package inmemdb

import (
	"context"
	"time"

	"github.com/studentbuddy/backend/core/activation"
)

type CodeRepository struct {
	db *DB
}

func NewCodeRepository(db *DB) *CodeRepository {
	return &CodeRepository{db: db}
}

func (repo *CodeRepository) DeleteCodes(_ context.Context, key activation.Key) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, code := range repo.db.codes {
		if matchesKey(code, key) {
			delete(repo.db.codes, id)
		}
	}
	return nil
}

func (repo *CodeRepository) CreateCode(_ context.Context, code activation.Code) (activation.Code, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	code.ID = newID(code.ID)
	repo.db.codes[code.ID] = code
	return code, nil
}

func (repo *CodeRepository) RedeemCode(_ context.Context, key activation.Key, code string, now time.Time) (activation.Code, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, c := range repo.db.codes {
		if matchesKey(c, key) && c.Code == code && !c.Used && !c.Expired(now) {
			c.Used = true
			repo.db.codes[id] = c
			return c, nil
		}
	}
	return activation.Code{}, activation.ErrCodeInvalid
}

func matchesKey(code activation.Code, key activation.Key) bool {
	if code.Type != key.Type {
		return false
	}
	if key.UserID != "" && code.UserID != key.UserID {
		return false
	}
	if key.Email != "" && code.Email != key.Email {
		return false
	}
	if key.MentorID != "" && code.MentorID != key.MentorID {
		return false
	}
	return true
}
