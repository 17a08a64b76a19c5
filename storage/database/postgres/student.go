package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core/student"
)

type profileRow struct {
	ID                 string         `db:"id"`
	UserID             string         `db:"user_id"`
	GradeLevel         string         `db:"grade_level"`
	SubjectsEnrolled   pq.StringArray `db:"subjects_enrolled"`
	LearningStyle      string         `db:"learning_style"`
	AcademicGoals      string         `db:"academic_goals"`
	Interests          pq.StringArray `db:"interests"`
	PreferredStudyTime string         `db:"preferred_study_time"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func newProfileRow(p student.Profile) profileRow {
	return profileRow{
		ID:                 newID(p.ID),
		UserID:             p.UserID,
		GradeLevel:         p.GradeLevel,
		SubjectsEnrolled:   p.SubjectsEnrolled,
		LearningStyle:      p.LearningStyle,
		AcademicGoals:      p.AcademicGoals,
		Interests:          p.Interests,
		PreferredStudyTime: p.PreferredStudyTime,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func (row profileRow) toCore() student.Profile {
	return student.Profile{
		ID:                 row.ID,
		UserID:             row.UserID,
		GradeLevel:         row.GradeLevel,
		SubjectsEnrolled:   row.SubjectsEnrolled,
		LearningStyle:      row.LearningStyle,
		AcademicGoals:      row.AcademicGoals,
		Interests:          row.Interests,
		PreferredStudyTime: row.PreferredStudyTime,
		CreatedAt:          row.CreatedAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
	}
}

type StudentRepository struct {
	db *sqlx.DB
}

func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (repo *StudentRepository) CreateProfile(ctx context.Context, p student.Profile) (student.Profile, error) {
	row := newProfileRow(p)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO student_profiles (id, user_id, grade_level, subjects_enrolled, learning_style,
		                              academic_goals, interests, preferred_study_time, created_at, updated_at)
		VALUES (:id, :user_id, :grade_level, :subjects_enrolled, :learning_style,
		        :academic_goals, :interests, :preferred_study_time, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, "student_profiles_user_id_key") {
			return student.Profile{}, student.ErrProfileExists
		}
		return student.Profile{}, errors.Wrap(err, "creating profile")
	}
	return row.toCore(), nil
}

func (repo *StudentRepository) GetProfileByUserID(ctx context.Context, userID string) (student.Profile, error) {
	var row profileRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM student_profiles WHERE user_id = $1", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return student.Profile{}, student.ErrProfileNotFound
		}
		return student.Profile{}, errors.Wrap(err, "getting profile")
	}
	return row.toCore(), nil
}

func (repo *StudentRepository) UpdateProfile(ctx context.Context, p student.Profile) (student.Profile, error) {
	row := newProfileRow(p)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE student_profiles
		SET grade_level = :grade_level, subjects_enrolled = :subjects_enrolled,
		    learning_style = :learning_style, academic_goals = :academic_goals,
		    interests = :interests, preferred_study_time = :preferred_study_time,
		    updated_at = :updated_at
		WHERE user_id = :user_id`,
		row,
	)
	if err != nil {
		return student.Profile{}, errors.Wrap(err, "updating profile")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.Profile{}, student.ErrProfileNotFound
	}
	return row.toCore(), nil
}
