package inmemdb

import (
	"context"
	"sort"

	"github.com/studentbuddy/backend/core/mentor"
)

type MentorRepository struct {
	db *DB
}

func NewMentorRepository(db *DB) *MentorRepository {
	return &MentorRepository{db: db}
}

func (repo *MentorRepository) CreateMentor(_ context.Context, m mentor.Mentor) (mentor.Mentor, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	m.ID = newID(m.ID)
	repo.db.mentors[m.ID] = m
	return m, nil
}

func (repo *MentorRepository) GetMentorByID(_ context.Context, id string) (mentor.Mentor, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	m, ok := repo.db.mentors[id]
	if !ok {
		return mentor.Mentor{}, mentor.ErrNotFound
	}
	return m, nil
}

func (repo *MentorRepository) FilterMentors(_ context.Context, filter mentor.MentorFilter) ([]mentor.Mentor, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	mentors := make([]mentor.Mentor, 0, len(repo.db.mentors))
	for _, m := range repo.db.mentors {
		if filter.ActiveOnly && !m.IsActive {
			continue
		}
		if filter.Domain != "" && m.Domain != filter.Domain {
			continue
		}
		if filter.Level != "" && m.Level != filter.Level {
			continue
		}
		mentors = append(mentors, m)
	}
	sort.Slice(mentors, func(i, j int) bool { return mentors[i].Name < mentors[j].Name })
	return mentors, nil
}

func (repo *MentorRepository) UpdateMentor(_ context.Context, m mentor.Mentor) (mentor.Mentor, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.mentors[m.ID]; !ok {
		return mentor.Mentor{}, mentor.ErrNotFound
	}
	repo.db.mentors[m.ID] = m
	return m, nil
}

func (repo *MentorRepository) DeleteMentorByID(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.mentors[id]; !ok {
		return mentor.ErrNotFound
	}
	delete(repo.db.mentors, id)
	return nil
}

func (repo *MentorRepository) CreateActivation(_ context.Context, act mentor.Activation) (mentor.Activation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.activations {
		if existing.UserID == act.UserID && existing.MentorID == act.MentorID {
			return mentor.Activation{}, mentor.ErrMentorAlreadyActivated
		}
	}
	act.ID = newID(act.ID)
	repo.db.activations[act.ID] = act
	return act, nil
}

func (repo *MentorRepository) GetActivationBySessionID(_ context.Context, sessionID string) (mentor.Activation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, act := range repo.db.activations {
		if act.SessionID == sessionID {
			return act, nil
		}
	}
	return mentor.Activation{}, mentor.ErrSessionNotFound
}

func (repo *MentorRepository) FilterActivations(_ context.Context, filter mentor.ActivationFilter) ([]mentor.Activation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	acts := make([]mentor.Activation, 0, len(repo.db.activations))
	for _, act := range repo.db.activations {
		if filter.UserID != "" && act.UserID != filter.UserID {
			continue
		}
		if filter.MentorID != "" && act.MentorID != filter.MentorID {
			continue
		}
		if filter.ActiveOnly && !act.IsActive {
			continue
		}
		acts = append(acts, act)
	}
	sort.Slice(acts, func(i, j int) bool { return acts[i].ActivatedAt.After(acts[j].ActivatedAt) })
	return acts, nil
}

func (repo *MentorRepository) UpdateActivation(_ context.Context, act mentor.Activation) (mentor.Activation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.activations[act.ID]; !ok {
		return mentor.Activation{}, mentor.ErrSessionNotFound
	}
	repo.db.activations[act.ID] = act
	return act, nil
}

func (repo *MentorRepository) CreateChatMessages(_ context.Context, msgs ...mentor.ChatMessage) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, msg := range msgs {
		msg.ID = newID(msg.ID)
		repo.db.chat = append(repo.db.chat, msg)
	}
	return nil
}

func (repo *MentorRepository) QueryChatHistory(_ context.Context, sessionID string, limit int) ([]mentor.ChatMessage, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	// insertion order is chronological
	var msgs []mentor.ChatMessage
	for _, msg := range repo.db.chat {
		if msg.SessionID == sessionID {
			msgs = append(msgs, msg)
		}
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}
