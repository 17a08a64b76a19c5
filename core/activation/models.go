package activation

import "time"

// Code types. Each type gates one sensitive transition and carries its
// own expiry delta.
const (
	TypePasswordReset    = "password_reset"
	TypeMentorActivation = "mentor_activation"
)

type (
	// Code is a short-lived, single-use numeric credential.
	Code struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id,omitempty"`
		Email     string    `json:"email"`
		Code      string    `json:"code"`
		Type      string    `json:"type"`
		MentorID  string    `json:"mentor_id,omitempty"`
		ExpiresAt time.Time `json:"expires_at"` // UTC
		Used      bool      `json:"is_used"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	// Key identifies the set of codes issued for one (owner, purpose) pair.
	// Empty fields are ignored when matching.
	Key struct {
		UserID   string
		Email    string
		Type     string
		MentorID string
	}
)

func (c Code) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
