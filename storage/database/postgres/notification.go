package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core/notification"
)

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Link      string    `db:"link"`
	Read      bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

func newNotificationRow(n notification.Notification) notificationRow {
	return notificationRow{
		ID:        newID(n.ID),
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func (row notificationRow) toCore() notification.Notification {
	return notification.Notification{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		Link:      row.Link,
		Read:      row.Read,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (repo *NotificationRepository) CreateNotifications(ctx context.Context, notifs []notification.Notification) error {
	if len(notifs) == 0 {
		return nil
	}

	rows := make([]notificationRow, len(notifs))
	for i, n := range notifs {
		rows[i] = newNotificationRow(n)
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, link, is_read, created_at)
		VALUES (:id, :user_id, :type, :title, :message, :link, :is_read, :created_at)`,
		rows,
	)
	return errors.Wrap(err, "creating notifications")
}

func (repo *NotificationRepository) FilterNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	query := "SELECT * FROM notifications WHERE user_id = ?"
	args := []interface{}{filter.UserID}
	if filter.UnreadOnly {
		query += " AND is_read = false"
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering notifications")
	}

	notifs := make([]notification.Notification, len(rows))
	for i, row := range rows {
		notifs[i] = row.toCore()
	}
	return notifs, nil
}

func (repo *NotificationRepository) MarkRead(ctx context.Context, id, userID string) (notification.Notification, error) {
	var row notificationRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE notifications SET is_read = true
		WHERE id = $1 AND user_id = $2
		RETURNING *`,
		id, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "marking notification read")
	}
	return row.toCore(), nil
}

func (repo *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false", userID)
	return count, errors.Wrap(err, "counting unread notifications")
}
