package inmemdb

import (
	"context"

	"github.com/studentbuddy/backend/core/student"
)

type StudentRepository struct {
	db *DB
}

func NewStudentRepository(db *DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (repo *StudentRepository) CreateProfile(_ context.Context, p student.Profile) (student.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.profiles[p.UserID]; ok {
		return student.Profile{}, student.ErrProfileExists
	}
	p.ID = newID(p.ID)
	repo.db.profiles[p.UserID] = p
	return p, nil
}

func (repo *StudentRepository) GetProfileByUserID(_ context.Context, userID string) (student.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	p, ok := repo.db.profiles[userID]
	if !ok {
		return student.Profile{}, student.ErrProfileNotFound
	}
	return p, nil
}

func (repo *StudentRepository) UpdateProfile(_ context.Context, p student.Profile) (student.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.profiles[p.UserID]; !ok {
		return student.Profile{}, student.ErrProfileNotFound
	}
	repo.db.profiles[p.UserID] = p
	return p, nil
}
