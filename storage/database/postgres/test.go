package pgrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core/test"
)

type testRow struct {
	ID              string         `db:"id"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	Subject         string         `db:"subject"`
	GradeLevel      string         `db:"grade_level"`
	DurationMinutes int            `db:"duration_minutes"`
	TotalPoints     int            `db:"total_points"`
	Questions       string         `db:"questions"` // jsonb
	CreatedBy       string         `db:"created_by"`
	AssignedTo      pq.StringArray `db:"assigned_to"`
	IsActive        bool           `db:"is_active"`
	AvailableFrom   sql.NullTime   `db:"available_from"`
	AvailableUntil  sql.NullTime   `db:"available_until"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func newTestRow(t test.Test) testRow {
	return testRow{
		ID:              newID(t.ID),
		Title:           t.Title,
		Description:     t.Description,
		Subject:         t.Subject,
		GradeLevel:      t.GradeLevel,
		DurationMinutes: t.DurationMinutes,
		TotalPoints:     t.TotalPoints,
		Questions:       string(mustJSON(t.Questions)),
		CreatedBy:       t.CreatedBy,
		AssignedTo:      t.AssignedTo,
		IsActive:        t.IsActive,
		AvailableFrom:   nullTime(t.StartTime),
		AvailableUntil:  nullTime(t.EndTime),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func (row testRow) toCore() (test.Test, error) {
	var questions []test.Question
	if err := json.Unmarshal([]byte(row.Questions), &questions); err != nil {
		return test.Test{}, errors.Wrapf(err, "decoding questions of test %s", row.ID)
	}
	return test.Test{
		ID:              row.ID,
		Title:           row.Title,
		Description:     row.Description,
		Subject:         row.Subject,
		GradeLevel:      row.GradeLevel,
		Questions:       questions,
		TotalPoints:     row.TotalPoints,
		DurationMinutes: row.DurationMinutes,
		AssignedTo:      row.AssignedTo,
		IsActive:        row.IsActive,
		StartTime:       timePtr(row.AvailableFrom),
		EndTime:         timePtr(row.AvailableUntil),
		CreatedBy:       row.CreatedBy,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}, nil
}

type attemptRow struct {
	ID               string       `db:"id"`
	UserID           string       `db:"user_id"`
	TestID           string       `db:"test_id"`
	StartedAt        time.Time    `db:"started_at"`
	SubmittedAt      sql.NullTime `db:"submitted_at"`
	TimeTakenSeconds int          `db:"time_taken_seconds"`
	Answers          string       `db:"answers"` // jsonb
	Score            int          `db:"score"`
	TotalPoints      int          `db:"total_points"`
	Percentage       int          `db:"percentage"`
	Status           string       `db:"status"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

func newAttemptRow(att test.Attempt) attemptRow {
	answers := att.Answers
	if answers == nil {
		answers = []test.Answer{}
	}
	return attemptRow{
		ID:               newID(att.ID),
		UserID:           att.UserID,
		TestID:           att.TestID,
		StartedAt:        att.StartedAt,
		SubmittedAt:      nullTime(att.SubmittedAt),
		TimeTakenSeconds: att.TimeTakenSeconds,
		Answers:          string(mustJSON(answers)),
		Score:            att.Score,
		TotalPoints:      att.TotalPoints,
		Percentage:       att.Percentage,
		Status:           att.Status,
		CreatedAt:        att.CreatedAt,
		UpdatedAt:        att.UpdatedAt,
	}
}

func (row attemptRow) toCore() (test.Attempt, error) {
	var answers []test.Answer
	if err := json.Unmarshal([]byte(row.Answers), &answers); err != nil {
		return test.Attempt{}, errors.Wrapf(err, "decoding answers of attempt %s", row.ID)
	}
	return test.Attempt{
		ID:               row.ID,
		UserID:           row.UserID,
		TestID:           row.TestID,
		Status:           row.Status,
		Answers:          answers,
		Score:            row.Score,
		TotalPoints:      row.TotalPoints,
		Percentage:       row.Percentage,
		StartedAt:        row.StartedAt.UTC(),
		SubmittedAt:      timePtr(row.SubmittedAt),
		TimeTakenSeconds: row.TimeTakenSeconds,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}, nil
}

type TestRepository struct {
	db *sqlx.DB
}

func NewTestRepository(db *sqlx.DB) *TestRepository {
	return &TestRepository{db: db}
}

func (repo *TestRepository) CreateTest(ctx context.Context, t test.Test) (test.Test, error) {
	row := newTestRow(t)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO tests (id, title, description, subject, grade_level, duration_minutes, total_points,
		                   questions, created_by, assigned_to, is_active, available_from, available_until,
		                   created_at, updated_at)
		VALUES (:id, :title, :description, :subject, :grade_level, :duration_minutes, :total_points,
		        :questions, :created_by, :assigned_to, :is_active, :available_from, :available_until,
		        :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return test.Test{}, errors.Wrap(err, "creating test")
	}
	return row.toCore()
}

func (repo *TestRepository) GetTestByID(ctx context.Context, id string) (test.Test, error) {
	var row testRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM tests WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return test.Test{}, test.ErrNotFound
		}
		return test.Test{}, errors.Wrap(err, "getting test")
	}
	return row.toCore()
}

func (repo *TestRepository) QueryTestsByID(ctx context.Context, ids []string) ([]test.Test, error) {
	if len(ids) == 0 {
		return []test.Test{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM tests WHERE id IN (?)", ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying tests")
	}

	var rows []testRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying tests")
	}
	return testRowsToCore(rows)
}

func (repo *TestRepository) FilterTests(ctx context.Context, filter test.TestFilter) ([]test.Test, error) {
	query := "SELECT * FROM tests WHERE true"
	var args []interface{}
	if filter.ActiveOnly {
		query += " AND is_active = true"
	}
	if filter.CreatedBy != "" {
		query += " AND created_by = ?"
		args = append(args, filter.CreatedBy)
	}
	query += " ORDER BY created_at DESC"

	var rows []testRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering tests")
	}
	return testRowsToCore(rows)
}

func (repo *TestRepository) UpdateTest(ctx context.Context, t test.Test) (test.Test, error) {
	row := newTestRow(t)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE tests
		SET title = :title, description = :description, subject = :subject, grade_level = :grade_level,
		    duration_minutes = :duration_minutes, total_points = :total_points, questions = :questions,
		    assigned_to = :assigned_to, is_active = :is_active, available_from = :available_from,
		    available_until = :available_until, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return test.Test{}, errors.Wrap(err, "updating test")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return test.Test{}, test.ErrNotFound
	}
	return row.toCore()
}

func (repo *TestRepository) DeleteTestByID(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM tests WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting test")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return test.ErrNotFound
	}
	return nil
}

func (repo *TestRepository) CreateAttempt(ctx context.Context, att test.Attempt) (test.Attempt, error) {
	row := newAttemptRow(att)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO test_attempts (id, user_id, test_id, started_at, submitted_at, time_taken_seconds,
		                           answers, score, total_points, percentage, status, created_at, updated_at)
		VALUES (:id, :user_id, :test_id, :started_at, :submitted_at, :time_taken_seconds,
		        :answers, :score, :total_points, :percentage, :status, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, "test_attempts_user_test_key") {
			return test.Attempt{}, test.ErrTestAlreadyAttempted
		}
		return test.Attempt{}, errors.Wrap(err, "creating attempt")
	}
	return row.toCore()
}

func (repo *TestRepository) GetAttemptByID(ctx context.Context, id string) (test.Attempt, error) {
	var row attemptRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM test_attempts WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return test.Attempt{}, test.ErrAttemptNotFound
		}
		return test.Attempt{}, errors.Wrap(err, "getting attempt")
	}
	return row.toCore()
}

func (repo *TestRepository) FilterAttempts(ctx context.Context, filter test.AttemptFilter) ([]test.Attempt, error) {
	query := "SELECT * FROM test_attempts WHERE true"
	var args []interface{}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.TestID != "" {
		query += " AND test_id = ?"
		args = append(args, filter.TestID)
	}
	if len(filter.Statuses) > 0 {
		query += " AND status IN (?)"
		args = append(args, filter.Statuses)
	}
	query += " ORDER BY started_at DESC"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "filtering attempts")
	}

	var rows []attemptRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering attempts")
	}

	attempts := make([]test.Attempt, len(rows))
	for i, row := range rows {
		att, err := row.toCore()
		if err != nil {
			return nil, err
		}
		attempts[i] = att
	}
	return attempts, nil
}

// CloseAttempt persists the graded attempt only if it is still in
// progress; the status check rides along in the WHERE clause so two
// concurrent submits cannot both win.
func (repo *TestRepository) CloseAttempt(ctx context.Context, att test.Attempt) (test.Attempt, error) {
	row := newAttemptRow(att)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE test_attempts
		SET submitted_at = :submitted_at, time_taken_seconds = :time_taken_seconds, answers = :answers,
		    score = :score, total_points = :total_points, percentage = :percentage, status = :status,
		    updated_at = :updated_at
		WHERE id = :id AND status = 'in_progress'`,
		row,
	)
	if err != nil {
		return test.Attempt{}, errors.Wrap(err, "closing attempt")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return test.Attempt{}, test.ErrAttemptClosed
	}
	return row.toCore()
}

func testRowsToCore(rows []testRow) ([]test.Test, error) {
	tests := make([]test.Test, len(rows))
	for i, row := range rows {
		t, err := row.toCore()
		if err != nil {
			return nil, err
		}
		tests[i] = t
	}
	return tests, nil
}
