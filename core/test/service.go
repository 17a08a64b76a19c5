package test

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound             = errors.New("test not found")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrTestNotAvailable     = errors.New("test is not available")
	ErrTestAlreadyAttempted = errors.New("test already attempted")
	ErrAttemptClosed        = errors.New("attempt already submitted")

	nowFunc = time.Now // mockable
)

type (
	// TestFilter restricts test listings.
	TestFilter struct {
		ActiveOnly bool
		CreatedBy  string
	}

	// AttemptFilter restricts attempt listings. Empty fields are ignored.
	AttemptFilter struct {
		UserID   string
		TestID   string
		Statuses []string
	}

	Repository interface {
		CreateTest(ctx context.Context, t Test) (Test, error)
		GetTestByID(ctx context.Context, id string) (Test, error)
		// QueryTestsByID returns the tests matching the given IDs; missing
		// IDs are silently skipped.
		QueryTestsByID(ctx context.Context, ids []string) ([]Test, error)
		FilterTests(ctx context.Context, filter TestFilter) ([]Test, error)
		UpdateTest(ctx context.Context, t Test) (Test, error)
		DeleteTestByID(ctx context.Context, id string) error

		// CreateAttempt returns ErrTestAlreadyAttempted if the user already
		// has an attempt for the test, whatever its status. The check and
		// the insert must be one atomic operation.
		CreateAttempt(ctx context.Context, att Attempt) (Attempt, error)
		GetAttemptByID(ctx context.Context, id string) (Attempt, error)
		FilterAttempts(ctx context.Context, filter AttemptFilter) ([]Attempt, error)
		// CloseAttempt persists the graded attempt only if it is still
		// in progress, atomically; ErrAttemptClosed otherwise.
		CloseAttempt(ctx context.Context, att Attempt) (Attempt, error)
	}

	Service struct {
		repo Repository
	}

	// ActiveAttempt pairs an in-progress attempt with its (sanitized) test.
	ActiveAttempt struct {
		Attempt Attempt `json:"attempt"`
		Test    Test    `json:"test"`
	}

	// ActiveTests is what a student sees on their test page.
	ActiveTests struct {
		Available  []Test          `json:"available"`
		InProgress []ActiveAttempt `json:"in_progress"`
	}

	// Result pairs a terminal attempt with its full test, correct answers
	// included.
	Result struct {
		Attempt Attempt `json:"attempt"`
		Test    Test    `json:"test"`
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nt NewTest, createdBy string) (Test, error) {
	now := nowFunc().UTC()
	t := Test{
		Title:           nt.Title,
		Description:     nt.Description,
		Subject:         nt.Subject,
		GradeLevel:      nt.GradeLevel,
		Questions:       buildQuestions(nt.Questions),
		DurationMinutes: nt.DurationMinutes,
		AssignedTo:      nt.AssignedTo,
		IsActive:        true,
		StartTime:       nt.StartTime,
		EndTime:         nt.EndTime,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if nt.IsActive != nil {
		t.IsActive = *nt.IsActive
	}
	t.TotalPoints = totalPoints(t.Questions)
	return svc.repo.CreateTest(ctx, t)
}

func (svc *Service) Get(ctx context.Context, id string) (Test, error) {
	return svc.repo.GetTestByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter TestFilter) ([]Test, error) {
	return svc.repo.FilterTests(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, up UpdateTest) (Test, error) {
	t, err := svc.repo.GetTestByID(ctx, id)
	if err != nil {
		return Test{}, err
	}

	if up.Title != nil {
		t.Title = *up.Title
	}
	if up.Description != nil {
		t.Description = *up.Description
	}
	if up.Subject != nil {
		t.Subject = *up.Subject
	}
	if up.GradeLevel != nil {
		t.GradeLevel = *up.GradeLevel
	}
	if up.Questions != nil {
		t.Questions = buildQuestions(up.Questions)
		t.TotalPoints = totalPoints(t.Questions)
	}
	if up.DurationMinutes != nil {
		t.DurationMinutes = *up.DurationMinutes
	}
	if up.AssignedTo != nil {
		t.AssignedTo = up.AssignedTo
	}
	if up.IsActive != nil {
		t.IsActive = *up.IsActive
	}
	if up.StartTime != nil {
		t.StartTime = up.StartTime
	}
	if up.EndTime != nil {
		t.EndTime = up.EndTime
	}
	t.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateTest(ctx, t)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteTestByID(ctx, id)
}

// Active returns the tests the student can start right now plus their
// in-progress attempts. A test already attempted, in any status, is
// never available again. In-progress attempts are resolved from the
// attempts themselves, not the listable tests: an attempt stays open
// even after its test is deactivated or its window closes.
func (svc *Service) Active(ctx context.Context, userID string) (ActiveTests, error) {
	now := nowFunc().UTC()

	tests, err := svc.repo.FilterTests(ctx, TestFilter{ActiveOnly: true})
	if err != nil {
		return ActiveTests{}, err
	}
	attempts, err := svc.repo.FilterAttempts(ctx, AttemptFilter{UserID: userID})
	if err != nil {
		return ActiveTests{}, err
	}

	attempted := make(map[string]struct{}, len(attempts))
	for _, att := range attempts {
		attempted[att.TestID] = struct{}{}
	}

	active := ActiveTests{Available: []Test{}, InProgress: []ActiveAttempt{}}
	for _, t := range tests {
		if !t.InWindow(now) || !t.AssignedToUser(userID) {
			continue
		}
		if _, ok := attempted[t.ID]; ok {
			continue
		}
		active.Available = append(active.Available, t.Sanitized())
	}

	var openIDs []string
	for _, att := range attempts {
		if att.Status == StatusInProgress {
			openIDs = append(openIDs, att.TestID)
		}
	}
	openTests, err := svc.repo.QueryTestsByID(ctx, openIDs)
	if err != nil {
		return ActiveTests{}, err
	}
	byID := make(map[string]Test, len(openTests))
	for _, t := range openTests {
		byID[t.ID] = t
	}
	for _, att := range attempts {
		if att.Status != StatusInProgress {
			continue
		}
		t, ok := byID[att.TestID]
		if !ok { // test deleted since the attempt started
			continue
		}
		active.InProgress = append(active.InProgress, ActiveAttempt{Attempt: att, Test: t.Sanitized()})
	}
	return active, nil
}

// Start opens an attempt on the test. The uniqueness of (user, test) is
// enforced by the repository, not checked up front, so two concurrent
// starts can never both succeed.
func (svc *Service) Start(ctx context.Context, userID, testID string) (ActiveAttempt, error) {
	t, err := svc.repo.GetTestByID(ctx, testID)
	if err != nil {
		return ActiveAttempt{}, err
	}

	now := nowFunc().UTC()
	if !t.IsActive || !t.InWindow(now) || !t.AssignedToUser(userID) {
		return ActiveAttempt{}, ErrTestNotAvailable
	}

	att := Attempt{
		ID:          uuid.NewString(),
		UserID:      userID,
		TestID:      testID,
		Status:      StatusInProgress,
		TotalPoints: t.TotalPoints,
		StartedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	att, err = svc.repo.CreateAttempt(ctx, att)
	if err != nil {
		return ActiveAttempt{}, err
	}
	return ActiveAttempt{Attempt: att, Test: t.Sanitized()}, nil
}

// Submit grades and closes the attempt. answers maps question ID to the
// student's response; unanswered questions score zero. isAuto marks a
// timer-driven submission.
func (svc *Service) Submit(ctx context.Context, userID, attemptID string, answers map[string]string, isAuto bool) (Attempt, error) {
	att, err := svc.getOwnedAttempt(ctx, userID, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if att.IsTerminal() {
		return Attempt{}, ErrAttemptClosed
	}

	t, err := svc.repo.GetTestByID(ctx, att.TestID)
	if err != nil {
		return Attempt{}, err
	}

	var score int
	graded := make([]Answer, 0, len(t.Questions))
	for _, q := range t.Questions {
		resp := answers[q.ID]
		pts, correct := q.Grade(resp)
		score += pts
		graded = append(graded, Answer{
			QuestionID:   q.ID,
			Answer:       resp,
			Correct:      correct,
			PointsEarned: pts,
		})
	}

	now := nowFunc().UTC()
	att.Answers = graded
	att.Score = score
	att.TotalPoints = t.TotalPoints
	att.Percentage = percentage(score, t.TotalPoints)
	att.Status = StatusSubmitted
	if isAuto {
		att.Status = StatusAutoSubmitted
	}
	att.SubmittedAt = &now
	att.TimeTakenSeconds = int(now.Sub(att.StartedAt).Seconds())
	att.UpdatedAt = now
	return svc.repo.CloseAttempt(ctx, att)
}

// Results returns the graded attempt with its full test, correct answers
// included. Only terminal attempts have results.
func (svc *Service) Results(ctx context.Context, userID, attemptID string) (Result, error) {
	att, err := svc.getOwnedAttempt(ctx, userID, attemptID)
	if err != nil {
		return Result{}, err
	}
	if !att.IsTerminal() {
		return Result{}, ErrAttemptNotFound
	}

	t, err := svc.repo.GetTestByID(ctx, att.TestID)
	if err != nil {
		return Result{}, err
	}
	return Result{Attempt: att, Test: t}, nil
}

// FilterAttempts exposes attempt listings to other services (dashboards,
// analytics).
func (svc *Service) FilterAttempts(ctx context.Context, filter AttemptFilter) ([]Attempt, error) {
	return svc.repo.FilterAttempts(ctx, filter)
}

// QueryTestsByID exposes bulk test lookups to other services.
func (svc *Service) QueryTestsByID(ctx context.Context, ids []string) ([]Test, error) {
	return svc.repo.QueryTestsByID(ctx, ids)
}

// getOwnedAttempt hides other users' attempts behind ErrAttemptNotFound.
func (svc *Service) getOwnedAttempt(ctx context.Context, userID, attemptID string) (Attempt, error) {
	att, err := svc.repo.GetAttemptByID(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if att.UserID != userID {
		return Attempt{}, ErrAttemptNotFound
	}
	return att, nil
}

func buildQuestions(nqs []NewQuestion) []Question {
	qs := make([]Question, len(nqs))
	for i, nq := range nqs {
		pts := nq.Points
		if pts == 0 {
			pts = 1
		}
		qs[i] = Question{
			ID:            uuid.NewString(),
			Text:          nq.Text,
			Type:          nq.Type,
			Options:       nq.Options,
			CorrectAnswer: nq.CorrectAnswer,
			Points:        pts,
		}
	}
	return qs
}

func totalPoints(qs []Question) (total int) {
	for _, q := range qs {
		total += q.Points
	}
	return total
}

// percentage rounds score/total to the nearest whole percent; a test
// with zero total points scores zero, not NaN.
func percentage(score, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}
