package test

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studentbuddy/backend/core"
)

// Question types.
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionShortAnswer    = "short_answer"
	QuestionEssay          = "essay"
)

// Attempt statuses. An attempt starts in_progress and ends in exactly one
// of the terminal statuses.
const (
	StatusInProgress    = "in_progress"
	StatusSubmitted     = "submitted"
	StatusAutoSubmitted = "auto_submitted"
)

type (
	// Question is one test item. Which fields are meaningful depends on
	// Type: choice questions carry Options and a CorrectAnswer, free-text
	// questions carry neither and are not auto-graded.
	Question struct {
		ID            string   `json:"id"`
		Text          string   `json:"text"`
		Type          string   `json:"type"`
		Options       []string `json:"options,omitempty"`
		CorrectAnswer string   `json:"correct_answer,omitempty"`
		Points        int      `json:"points"`
	}

	Test struct {
		ID              string     `json:"id"`
		Title           string     `json:"title"`
		Description     string     `json:"description,omitempty"`
		Subject         string     `json:"subject"`
		GradeLevel      string     `json:"grade_level,omitempty"`
		Questions       []Question `json:"questions"`
		TotalPoints     int        `json:"total_points"`
		DurationMinutes int        `json:"duration_minutes"`
		AssignedTo      []string   `json:"assigned_to,omitempty"` // user IDs; empty means everyone
		IsActive        bool       `json:"is_active"`
		StartTime       *time.Time `json:"start_time,omitempty"` // UTC
		EndTime         *time.Time `json:"end_time,omitempty"`   // UTC
		CreatedBy       string     `json:"created_by,omitempty"`
		CreatedAt       time.Time  `json:"created_at"` // UTC
		UpdatedAt       time.Time  `json:"updated_at"` // UTC
	}

	// Answer records a student's response to one question, graded.
	Answer struct {
		QuestionID   string `json:"question_id"`
		Answer       string `json:"answer"`
		Correct      bool   `json:"correct"`
		PointsEarned int    `json:"points_earned"`
	}

	Attempt struct {
		ID               string     `json:"id"`
		UserID           string     `json:"user_id"`
		TestID           string     `json:"test_id"`
		Status           string     `json:"status"`
		Answers          []Answer   `json:"answers,omitempty"`
		Score            int        `json:"score"`
		TotalPoints      int        `json:"total_points"`
		Percentage       int        `json:"percentage"`
		StartedAt        time.Time  `json:"started_at"` // UTC
		SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
		TimeTakenSeconds int        `json:"time_taken_seconds"`
		CreatedAt        time.Time  `json:"created_at"` // UTC
		UpdatedAt        time.Time  `json:"updated_at"` // UTC
	}
)

// Grade scores an answer against the question. Free-text questions
// (short answer, essay) are never auto-graded and always earn zero.
func (q Question) Grade(answer string) (pointsEarned int, correct bool) {
	switch q.Type {
	case QuestionMultipleChoice, QuestionTrueFalse:
		if answer != "" && answer == q.CorrectAnswer {
			return q.Points, true
		}
		return 0, false
	case QuestionShortAnswer, QuestionEssay:
		return 0, false
	default:
		return 0, false
	}
}

// Sanitized returns a copy of the question stripped of the correct answer.
func (q Question) Sanitized() Question {
	q.CorrectAnswer = ""
	return q
}

// Sanitized returns a copy of the test safe to expose to students.
func (t Test) Sanitized() Test {
	qs := make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		qs[i] = q.Sanitized()
	}
	t.Questions = qs
	return t
}

// InWindow reports whether now falls inside the test's availability
// window. A test with no window set is always available; a test with
// only one bound set is never available.
func (t Test) InWindow(now time.Time) bool {
	if t.StartTime == nil && t.EndTime == nil {
		return true
	}
	if t.StartTime == nil || t.EndTime == nil {
		return false
	}
	return !now.Before(*t.StartTime) && !now.After(*t.EndTime)
}

// AssignedToUser reports whether the test is assigned to the user. A test
// with no explicit assignees is open to all students.
func (t Test) AssignedToUser(userID string) bool {
	if len(t.AssignedTo) == 0 {
		return true
	}
	for _, id := range t.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

func (a Attempt) IsTerminal() bool {
	return a.Status == StatusSubmitted || a.Status == StatusAutoSubmitted
}

// NewQuestion contains information needed to create a Question.
type NewQuestion struct {
	Text          string   `json:"text" validate:"required"`
	Type          string   `json:"type" validate:"required"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Points        int      `json:"points" validate:"omitempty,min=1"`
}

// NewTest contains information needed to create a Test.
type NewTest struct {
	Title           string        `json:"title" validate:"required"`
	Description     string        `json:"description"`
	Subject         string        `json:"subject" validate:"required"`
	GradeLevel      string        `json:"grade_level"`
	Questions       []NewQuestion `json:"questions" validate:"required,min=1,dive"`
	DurationMinutes int           `json:"duration_minutes" validate:"required,min=1"`
	AssignedTo      []string      `json:"assigned_to"`
	IsActive        *bool         `json:"is_active"`
	StartTime       *time.Time    `json:"start_time"`
	EndTime         *time.Time    `json:"end_time"`
}

func (nt *NewTest) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Subject = core.CleanString(nt.Subject)
	return validate.Struct(nt)
}

// UpdateTest contains the updatable fields of a Test. Nil fields are
// left untouched.
type UpdateTest struct {
	Title           *string       `json:"title"`
	Description     *string       `json:"description"`
	Subject         *string       `json:"subject"`
	GradeLevel      *string       `json:"grade_level"`
	Questions       []NewQuestion `json:"questions" validate:"omitempty,min=1,dive"`
	DurationMinutes *int          `json:"duration_minutes" validate:"omitempty,min=1"`
	AssignedTo      []string      `json:"assigned_to"`
	IsActive        *bool         `json:"is_active"`
	StartTime       *time.Time    `json:"start_time"`
	EndTime         *time.Time    `json:"end_time"`
}

func (ut *UpdateTest) Validate(validate *validator.Validate) error {
	return validate.Struct(ut)
}
