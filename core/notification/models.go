package notification

import "time"

// Notification types.
const (
	TypeTestAssigned = "test_assigned"
	TypeTestGraded   = "test_graded"
	TypeMentor       = "mentor"
	TypeSystem       = "system"
)

type (
	Notification struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Type      string    `json:"type"`
		Title     string    `json:"title"`
		Message   string    `json:"message"`
		Link      string    `json:"link,omitempty"`
		Read      bool      `json:"read"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	// QueryFilter restricts notification listings.
	QueryFilter struct {
		UserID     string
		UnreadOnly bool
		Limit      int
	}
)
