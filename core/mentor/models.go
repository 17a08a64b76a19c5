package mentor

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studentbuddy/backend/core"
)

// Mentor levels.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Chat message senders.
const (
	SenderUser   = "user"
	SenderMentor = "mentor"
)

type (
	// Mentor is an AI tutor persona. SystemPrompt drives the model and is
	// never exposed to students.
	Mentor struct {
		ID              string    `json:"id"`
		Name            string    `json:"name"`
		Domain          string    `json:"domain"`
		Level           string    `json:"level"`
		Description     string    `json:"description,omitempty"`
		AvatarURL       string    `json:"avatar_url,omitempty"`
		SystemPrompt    string    `json:"system_prompt,omitempty"`
		Specializations []string  `json:"specializations,omitempty"`
		IsActive        bool      `json:"is_active"`
		CreatedBy       string    `json:"created_by,omitempty"`
		CreatedAt       time.Time `json:"created_at"` // UTC
		UpdatedAt       time.Time `json:"updated_at"` // UTC
	}

	// Note is an observation recorded about the student's sessions.
	Note struct {
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	// Activation links a student to a mentor they unlocked. SessionID keys
	// the chat session.
	Activation struct {
		ID               string     `json:"id"`
		UserID           string     `json:"user_id"`
		MentorID         string     `json:"mentor_id"`
		SessionID        string     `json:"session_id"`
		IsActive         bool       `json:"is_active"`
		TotalMessages    int        `json:"total_messages"`
		TotalTimeMinutes int        `json:"total_time_minutes"`
		LastInteraction  *time.Time `json:"last_interaction,omitempty"`
		Notes            []Note     `json:"notes,omitempty"`
		Recommendations  []string   `json:"recommendations,omitempty"`
		ActivatedAt      time.Time  `json:"activated_at"` // UTC
		CreatedAt        time.Time  `json:"created_at"`   // UTC
		UpdatedAt        time.Time  `json:"updated_at"`   // UTC
	}

	// ActivatedMentor pairs an activation with its (sanitized) mentor.
	ActivatedMentor struct {
		Activation Activation `json:"activation"`
		Mentor     Mentor     `json:"mentor"`
	}

	ChatMessage struct {
		ID        string    `json:"id"`
		SessionID string    `json:"session_id"`
		UserID    string    `json:"user_id,omitempty"`
		MentorID  string    `json:"mentor_id,omitempty"`
		Sender    string    `json:"sender"`
		Message   string    `json:"message"`
		CreatedAt time.Time `json:"timestamp"` // UTC
	}

	// ChatEvent is what gets pushed to connected clients of a session.
	ChatEvent struct {
		SessionID string    `json:"sessionId"`
		Sender    string    `json:"sender"`
		Message   string    `json:"message"`
		Timestamp time.Time `json:"timestamp"` // UTC
	}
)

// Sanitized returns a copy of the mentor stripped of the system prompt.
func (m Mentor) Sanitized() Mentor {
	m.SystemPrompt = ""
	return m
}

// NewMentor contains information needed to create a Mentor.
type NewMentor struct {
	Name            string   `json:"name" validate:"required"`
	Domain          string   `json:"domain" validate:"required"`
	Level           string   `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	Description     string   `json:"description" validate:"required"`
	AvatarURL       string   `json:"avatar_url" validate:"omitempty,url"`
	SystemPrompt    string   `json:"system_prompt" validate:"required"`
	Specializations []string `json:"specializations"`
	IsActive        *bool    `json:"is_active"`
}

func (nm *NewMentor) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Domain = core.CleanString(nm.Domain)
	return validate.Struct(nm)
}

// UpdateMentor contains the updatable fields of a Mentor. Nil fields are
// left untouched.
type UpdateMentor struct {
	Name            *string  `json:"name"`
	Domain          *string  `json:"domain"`
	Level           *string  `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Description     *string  `json:"description"`
	AvatarURL       *string  `json:"avatar_url" validate:"omitempty,url"`
	SystemPrompt    *string  `json:"system_prompt"`
	Specializations []string `json:"specializations"`
	IsActive        *bool    `json:"is_active"`
}

func (um *UpdateMentor) Validate(validate *validator.Validate) error {
	return validate.Struct(um)
}

// MentorFilter restricts mentor listings.
type MentorFilter struct {
	ActiveOnly bool
	Domain     string
	Level      string
}

// ActivationFilter restricts activation listings. Empty fields are
// ignored.
type ActivationFilter struct {
	UserID     string
	MentorID   string
	ActiveOnly bool
}
