package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studentbuddy/backend/core"
)

// Learning styles.
const (
	StyleVisual      = "Visual"
	StyleAuditory    = "Auditory"
	StyleKinesthetic = "Kinesthetic"
	StyleMixed       = "Mixed"
)

type (
	// Profile holds the student-specific attributes that do not belong on
	// the account itself.
	Profile struct {
		ID                 string    `json:"id"`
		UserID             string    `json:"user_id"`
		GradeLevel         string    `json:"grade_level"`
		SubjectsEnrolled   []string  `json:"subjects_enrolled"`
		LearningStyle      string    `json:"learning_style"`
		AcademicGoals      string    `json:"academic_goals,omitempty"`
		Interests          []string  `json:"interests,omitempty"`
		PreferredStudyTime string    `json:"preferred_study_time,omitempty"`
		CreatedAt          time.Time `json:"created_at"` // UTC
		UpdatedAt          time.Time `json:"updated_at"` // UTC
	}

	// NewProfile contains information needed to create a Profile.
	NewProfile struct {
		GradeLevel         string   `json:"grade_level" validate:"required"`
		SubjectsEnrolled   []string `json:"subjects_enrolled"`
		LearningStyle      string   `json:"learning_style" validate:"omitempty,oneof=Visual Auditory Kinesthetic Mixed"`
		AcademicGoals      string   `json:"academic_goals"`
		Interests          []string `json:"interests"`
		PreferredStudyTime string   `json:"preferred_study_time"`
	}

	// UpdateProfile contains the updatable fields of a Profile. Nil fields
	// are left untouched.
	UpdateProfile struct {
		GradeLevel         *string  `json:"grade_level"`
		SubjectsEnrolled   []string `json:"subjects_enrolled"`
		LearningStyle      *string  `json:"learning_style" validate:"omitempty,oneof=Visual Auditory Kinesthetic Mixed"`
		AcademicGoals      *string  `json:"academic_goals"`
		Interests          []string `json:"interests"`
		PreferredStudyTime *string  `json:"preferred_study_time"`
	}

	// Dashboard is the student's landing page summary.
	Dashboard struct {
		TotalTests          int `json:"total_tests"`
		AverageScore        int `json:"average_score"` // percent
		ActiveMentors       int `json:"active_mentors"`
		UnreadNotifications int `json:"unread_notifications"`
		PendingTodos        int `json:"pending_todos"`
	}

	// TestResult is one completed attempt annotated with its test.
	TestResult struct {
		AttemptID   string     `json:"attempt_id"`
		TestID      string     `json:"test_id"`
		Title       string     `json:"title"`
		Subject     string     `json:"subject"`
		Score       int        `json:"score"`
		TotalPoints int        `json:"total_points"`
		Percentage  int        `json:"percentage"`
		Status      string     `json:"status"`
		SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	}

	// MentorStat summarizes the student's engagement with one mentor.
	MentorStat struct {
		MentorID        string     `json:"mentor_id"`
		Name            string     `json:"name"`
		Domain          string     `json:"domain"`
		TotalMessages   int        `json:"total_messages"`
		LastInteraction *time.Time `json:"last_interaction,omitempty"`
	}

	// SubjectPerformance aggregates attempt percentages per subject.
	SubjectPerformance struct {
		Subject           string `json:"subject"`
		Attempts          int    `json:"attempts"`
		AveragePercentage int    `json:"average_percentage"`
	}

	Analytics struct {
		TestResults        []TestResult         `json:"test_results"`
		Mentors            []MentorStat         `json:"mentors"`
		SubjectPerformance []SubjectPerformance `json:"subject_performance"`
	}
)

func (np *NewProfile) Validate(validate *validator.Validate) error {
	np.GradeLevel = core.CleanString(np.GradeLevel)
	return validate.Struct(np)
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	return validate.Struct(up)
}
