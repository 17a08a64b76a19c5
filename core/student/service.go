package student

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core/mentor"
	"github.com/studentbuddy/backend/core/notification"
	"github.com/studentbuddy/backend/core/test"
	"github.com/studentbuddy/backend/core/todo"
)

var (
	ErrProfileNotFound = errors.New("student profile not found")
	ErrProfileExists   = errors.New("student profile already exists")

	nowFunc = time.Now // mockable

	terminalStatuses = []string{test.StatusSubmitted, test.StatusAutoSubmitted}
)

type (
	Repository interface {
		// CreateProfile returns ErrProfileExists if the user already has one.
		CreateProfile(ctx context.Context, p Profile) (Profile, error)
		GetProfileByUserID(ctx context.Context, userID string) (Profile, error)
		UpdateProfile(ctx context.Context, p Profile) (Profile, error)
	}

	Service struct {
		repo      Repository
		testSvc   *test.Service
		mentorSvc *mentor.Service
		notifSvc  *notification.Service
		todoSvc   *todo.Service
	}
)

func NewService(
	repo Repository,
	testSvc *test.Service,
	mentorSvc *mentor.Service,
	notifSvc *notification.Service,
	todoSvc *todo.Service,
) *Service {
	return &Service{
		repo:      repo,
		testSvc:   testSvc,
		mentorSvc: mentorSvc,
		notifSvc:  notifSvc,
		todoSvc:   todoSvc,
	}
}

func (svc *Service) CreateProfile(ctx context.Context, userID string, np NewProfile) (Profile, error) {
	now := nowFunc().UTC()
	p := Profile{
		UserID:             userID,
		GradeLevel:         np.GradeLevel,
		SubjectsEnrolled:   np.SubjectsEnrolled,
		LearningStyle:      np.LearningStyle,
		AcademicGoals:      np.AcademicGoals,
		Interests:          np.Interests,
		PreferredStudyTime: np.PreferredStudyTime,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if p.LearningStyle == "" {
		p.LearningStyle = StyleMixed
	}
	return svc.repo.CreateProfile(ctx, p)
}

func (svc *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	return svc.repo.GetProfileByUserID(ctx, userID)
}

func (svc *Service) UpdateProfile(ctx context.Context, userID string, up UpdateProfile) (Profile, error) {
	p, err := svc.repo.GetProfileByUserID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	if up.GradeLevel != nil {
		p.GradeLevel = *up.GradeLevel
	}
	if up.SubjectsEnrolled != nil {
		p.SubjectsEnrolled = up.SubjectsEnrolled
	}
	if up.LearningStyle != nil {
		p.LearningStyle = *up.LearningStyle
	}
	if up.AcademicGoals != nil {
		p.AcademicGoals = *up.AcademicGoals
	}
	if up.Interests != nil {
		p.Interests = up.Interests
	}
	if up.PreferredStudyTime != nil {
		p.PreferredStudyTime = *up.PreferredStudyTime
	}
	p.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateProfile(ctx, p)
}

// Dashboard aggregates the student's landing page counters.
func (svc *Service) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	attempts, err := svc.testSvc.FilterAttempts(ctx, test.AttemptFilter{UserID: userID, Statuses: terminalStatuses})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "loading attempts")
	}

	acts, err := svc.mentorSvc.FilterActivations(ctx, mentor.ActivationFilter{UserID: userID, ActiveOnly: true})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "loading mentor activations")
	}

	unread, err := svc.notifSvc.CountUnread(ctx, userID)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "counting notifications")
	}

	pending := false
	todos, err := svc.todoSvc.Filter(ctx, todo.QueryFilter{UserID: userID, Completed: &pending})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "loading todos")
	}

	return Dashboard{
		TotalTests:          len(attempts),
		AverageScore:        averagePercentage(attempts),
		ActiveMentors:       len(acts),
		UnreadNotifications: unread,
		PendingTodos:        len(todos),
	}, nil
}

// Analytics builds the student's progress report: every completed
// attempt with its test, mentor engagement, and per-subject averages.
func (svc *Service) Analytics(ctx context.Context, userID string) (Analytics, error) {
	attempts, err := svc.testSvc.FilterAttempts(ctx, test.AttemptFilter{UserID: userID, Statuses: terminalStatuses})
	if err != nil {
		return Analytics{}, errors.Wrap(err, "loading attempts")
	}

	testIDs := make([]string, 0, len(attempts))
	for _, att := range attempts {
		testIDs = append(testIDs, att.TestID)
	}
	tests, err := svc.testSvc.QueryTestsByID(ctx, testIDs)
	if err != nil {
		return Analytics{}, errors.Wrap(err, "loading tests")
	}
	testsByID := make(map[string]test.Test, len(tests))
	for _, t := range tests {
		testsByID[t.ID] = t
	}

	results := make([]TestResult, 0, len(attempts))
	perSubject := make(map[string][]int)
	for _, att := range attempts {
		res := TestResult{
			AttemptID:   att.ID,
			TestID:      att.TestID,
			Score:       att.Score,
			TotalPoints: att.TotalPoints,
			Percentage:  att.Percentage,
			Status:      att.Status,
			SubmittedAt: att.SubmittedAt,
		}
		// the test may have been deleted since; keep the attempt anyway
		if t, ok := testsByID[att.TestID]; ok {
			res.Title = t.Title
			res.Subject = t.Subject
			perSubject[t.Subject] = append(perSubject[t.Subject], att.Percentage)
		}
		results = append(results, res)
	}

	acts, err := svc.mentorSvc.FilterActivations(ctx, mentor.ActivationFilter{UserID: userID})
	if err != nil {
		return Analytics{}, errors.Wrap(err, "loading mentor activations")
	}
	stats := make([]MentorStat, 0, len(acts))
	for _, act := range acts {
		m, err := svc.mentorSvc.Get(ctx, act.MentorID)
		if err != nil {
			return Analytics{}, errors.Wrapf(err, "loading mentor %s", act.MentorID)
		}
		stats = append(stats, MentorStat{
			MentorID:        m.ID,
			Name:            m.Name,
			Domain:          m.Domain,
			TotalMessages:   act.TotalMessages,
			LastInteraction: act.LastInteraction,
		})
	}

	return Analytics{
		TestResults:        results,
		Mentors:            stats,
		SubjectPerformance: subjectPerformance(perSubject),
	}, nil
}

func averagePercentage(attempts []test.Attempt) int {
	if len(attempts) == 0 {
		return 0
	}
	var sum int
	for _, att := range attempts {
		sum += att.Percentage
	}
	return int(math.Round(float64(sum) / float64(len(attempts))))
}

func subjectPerformance(perSubject map[string][]int) []SubjectPerformance {
	perf := make([]SubjectPerformance, 0, len(perSubject))
	for subject, pcts := range perSubject {
		var sum int
		for _, p := range pcts {
			sum += p
		}
		perf = append(perf, SubjectPerformance{
			Subject:           subject,
			Attempts:          len(pcts),
			AveragePercentage: int(math.Round(float64(sum) / float64(len(pcts)))),
		})
	}
	sort.Slice(perf, func(i, j int) bool { return perf[i].Subject < perf[j].Subject })
	return perf
}
