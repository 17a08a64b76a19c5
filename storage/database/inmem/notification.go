package inmemdb

import (
	"context"
	"sort"

	"github.com/studentbuddy/backend/core/notification"
)

type NotificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (repo *NotificationRepository) CreateNotifications(_ context.Context, notifs []notification.Notification) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, n := range notifs {
		n.ID = newID(n.ID)
		repo.db.notifs[n.ID] = n
	}
	return nil
}

func (repo *NotificationRepository) FilterNotifications(_ context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notifs := make([]notification.Notification, 0, len(repo.db.notifs))
	for _, n := range repo.db.notifs {
		if n.UserID != filter.UserID {
			continue
		}
		if filter.UnreadOnly && n.Read {
			continue
		}
		notifs = append(notifs, n)
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	if filter.Limit > 0 && len(notifs) > filter.Limit {
		notifs = notifs[:filter.Limit]
	}
	return notifs, nil
}

func (repo *NotificationRepository) MarkRead(_ context.Context, id, userID string) (notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n, ok := repo.db.notifs[id]
	if !ok || n.UserID != userID {
		return notification.Notification{}, notification.ErrNotFound
	}
	n.Read = true
	repo.db.notifs[id] = n
	return n, nil
}

func (repo *NotificationRepository) CountUnread(_ context.Context, userID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, n := range repo.db.notifs {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}
