package todo

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studentbuddy/backend/core"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Categories.
const (
	CategoryStudy    = "study"
	CategoryHomework = "homework"
	CategoryExam     = "exam"
	CategoryPersonal = "personal"
	CategoryOther    = "other"
)

type (
	Todo struct {
		ID          string     `json:"id"`
		UserID      string     `json:"user_id"`
		Title       string     `json:"title"`
		Description string     `json:"description,omitempty"`
		Priority    string     `json:"priority"`
		Category    string     `json:"category"`
		DueDate     *time.Time `json:"due_date,omitempty"` // UTC
		Completed   bool       `json:"completed"`
		CompletedAt *time.Time `json:"completed_at,omitempty"`
		CreatedAt   time.Time  `json:"created_at"` // UTC
		UpdatedAt   time.Time  `json:"updated_at"` // UTC
	}

	// NewTodo contains information needed to create a Todo.
	NewTodo struct {
		Title       string     `json:"title" validate:"required"`
		Description string     `json:"description"`
		Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
		Category    string     `json:"category" validate:"omitempty,oneof=study homework exam personal other"`
		DueDate     *time.Time `json:"due_date"`
	}

	// UpdateTodo contains the updatable fields of a Todo. Nil fields are
	// left untouched.
	UpdateTodo struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Priority    *string    `json:"priority" validate:"omitempty,oneof=low medium high"`
		Category    *string    `json:"category" validate:"omitempty,oneof=study homework exam personal other"`
		DueDate     *time.Time `json:"due_date"`
	}

	// QueryFilter restricts todo listings. Completed is a tri-state:
	// nil means both.
	QueryFilter struct {
		UserID    string
		Completed *bool
	}
)

func (nt *NewTodo) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	return validate.Struct(nt)
}

func (ut *UpdateTodo) Validate(validate *validator.Validate) error {
	return validate.Struct(ut)
}
