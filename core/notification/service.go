package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core"
	"github.com/studentbuddy/backend/core/test"
	"github.com/studentbuddy/backend/core/user"
)

const defaultListLimit = 50

var (
	ErrNotFound = errors.New("notification not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notifs []Notification) error
		FilterNotifications(ctx context.Context, filter QueryFilter) ([]Notification, error)
		// MarkRead marks the user's notification as read; ErrNotFound if it
		// does not exist or belongs to someone else.
		MarkRead(ctx context.Context, id, userID string) (Notification, error)
		CountUnread(ctx context.Context, userID string) (int, error)
	}

	Service struct {
		repo    Repository
		userSvc *user.Service
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, userSvc *user.Service, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, userSvc: userSvc, mailSvc: mailSvc, logger: logger}
}

// ForUser returns the user's latest notifications, newest first.
func (svc *Service) ForUser(ctx context.Context, userID string) ([]Notification, error) {
	return svc.repo.FilterNotifications(ctx, QueryFilter{UserID: userID, Limit: defaultListLimit})
}

func (svc *Service) MarkRead(ctx context.Context, id, userID string) (Notification, error) {
	return svc.repo.MarkRead(ctx, id, userID)
}

func (svc *Service) CountUnread(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnread(ctx, userID)
}

// NotifyTestAssigned fans a new test out to its audience: an in-app
// notification per student plus a best-effort email. The audience is the
// assigned students, or every student when the test is open to all.
func (svc *Service) NotifyTestAssigned(ctx context.Context, t test.Test) error {
	recipients, err := svc.testAudience(ctx, t)
	if err != nil {
		return errors.Wrap(err, "resolving test audience")
	}
	if len(recipients) == 0 {
		return nil
	}

	now := nowFunc().UTC()
	notifs := make([]Notification, 0, len(recipients))
	msgs := make([]*core.EmailMessage, 0, len(recipients))
	due := ""
	if t.EndTime != nil {
		due = t.EndTime.Format("Jan 2, 2006 15:04 MST")
	}
	for _, usr := range recipients {
		notifs = append(notifs, Notification{
			ID:        uuid.NewString(),
			UserID:    usr.ID,
			Type:      TypeTestAssigned,
			Title:     "New Test Assigned",
			Message:   fmt.Sprintf("A new test is available: %s", t.Title),
			Link:      "/tests",
			CreatedAt: now,
		})
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
			Subject:      fmt.Sprintf("New Test: %s", t.Title),
			TemplateName: "test-assigned",
			TemplateData: struct {
				Title string
				Due   string
			}{Title: t.Title, Due: due},
		})
	}

	if err = svc.repo.CreateNotifications(ctx, notifs); err != nil {
		return err
	}
	svc.mailSvc.SendMessages(msgs...)
	return nil
}

func (svc *Service) testAudience(ctx context.Context, t test.Test) ([]user.User, error) {
	if len(t.AssignedTo) == 0 {
		return svc.userSvc.Filter(ctx, user.QueryFilter{Role: user.RoleStudent})
	}

	recipients := make([]user.User, 0, len(t.AssignedTo))
	for _, id := range t.AssignedTo {
		usr, err := svc.userSvc.GetByID(ctx, id)
		if err != nil {
			// a stale assignee is not worth failing the whole fan-out
			svc.logger.Warn(fmt.Sprintf("test %s assigned to unknown user %s", t.ID, id))
			continue
		}
		recipients = append(recipients, usr)
	}
	return recipients, nil
}
