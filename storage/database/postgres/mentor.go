package pgrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core/mentor"
)

type mentorRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	Domain          string         `db:"domain"`
	Level           string         `db:"level"`
	Description     string         `db:"description"`
	AvatarURL       string         `db:"avatar_url"`
	SystemPrompt    string         `db:"system_prompt"`
	Specializations pq.StringArray `db:"specializations"`
	IsActive        bool           `db:"is_active"`
	CreatedBy       sql.NullString `db:"created_by"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func newMentorRow(m mentor.Mentor) mentorRow {
	return mentorRow{
		ID:              newID(m.ID),
		Name:            m.Name,
		Domain:          m.Domain,
		Level:           m.Level,
		Description:     m.Description,
		AvatarURL:       m.AvatarURL,
		SystemPrompt:    m.SystemPrompt,
		Specializations: m.Specializations,
		IsActive:        m.IsActive,
		CreatedBy:       nullString(m.CreatedBy),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func (row mentorRow) toCore() mentor.Mentor {
	return mentor.Mentor{
		ID:              row.ID,
		Name:            row.Name,
		Domain:          row.Domain,
		Level:           row.Level,
		Description:     row.Description,
		AvatarURL:       row.AvatarURL,
		SystemPrompt:    row.SystemPrompt,
		Specializations: row.Specializations,
		IsActive:        row.IsActive,
		CreatedBy:       row.CreatedBy.String,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

type activationRow struct {
	ID               string       `db:"id"`
	UserID           string       `db:"user_id"`
	MentorID         string       `db:"mentor_id"`
	SessionID        string       `db:"session_id"`
	ActivatedAt      time.Time    `db:"activated_at"`
	TotalMessages    int          `db:"total_messages"`
	TotalTimeMinutes int          `db:"total_time_minutes"`
	LastInteraction  sql.NullTime `db:"last_interaction"`
	IsActive         bool         `db:"is_active"`
	Notes            string       `db:"notes"`           // jsonb
	Recommendations  string       `db:"recommendations"` // jsonb
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

func newActivationRow(act mentor.Activation) activationRow {
	notes := act.Notes
	if notes == nil {
		notes = []mentor.Note{}
	}
	recs := act.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return activationRow{
		ID:               newID(act.ID),
		UserID:           act.UserID,
		MentorID:         act.MentorID,
		SessionID:        act.SessionID,
		ActivatedAt:      act.ActivatedAt,
		TotalMessages:    act.TotalMessages,
		TotalTimeMinutes: act.TotalTimeMinutes,
		LastInteraction:  nullTime(act.LastInteraction),
		IsActive:         act.IsActive,
		Notes:            string(mustJSON(notes)),
		Recommendations:  string(mustJSON(recs)),
		CreatedAt:        act.CreatedAt,
		UpdatedAt:        act.UpdatedAt,
	}
}

func (row activationRow) toCore() (mentor.Activation, error) {
	var notes []mentor.Note
	if err := json.Unmarshal([]byte(row.Notes), &notes); err != nil {
		return mentor.Activation{}, errors.Wrapf(err, "decoding notes of activation %s", row.ID)
	}
	var recs []string
	if err := json.Unmarshal([]byte(row.Recommendations), &recs); err != nil {
		return mentor.Activation{}, errors.Wrapf(err, "decoding recommendations of activation %s", row.ID)
	}
	return mentor.Activation{
		ID:               row.ID,
		UserID:           row.UserID,
		MentorID:         row.MentorID,
		SessionID:        row.SessionID,
		IsActive:         row.IsActive,
		TotalMessages:    row.TotalMessages,
		TotalTimeMinutes: row.TotalTimeMinutes,
		LastInteraction:  timePtr(row.LastInteraction),
		Notes:            notes,
		Recommendations:  recs,
		ActivatedAt:      row.ActivatedAt.UTC(),
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}, nil
}

type chatMessageRow struct {
	ID          string    `db:"id"`
	Seq         int64     `db:"seq"`
	SessionID   string    `db:"session_id"`
	UserID      string    `db:"user_id"`
	MentorID    string    `db:"mentor_id"`
	Sender      string    `db:"sender"`
	MessageText string    `db:"message_text"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row chatMessageRow) toCore() mentor.ChatMessage {
	return mentor.ChatMessage{
		ID:        row.ID,
		SessionID: row.SessionID,
		UserID:    row.UserID,
		MentorID:  row.MentorID,
		Sender:    row.Sender,
		Message:   row.MessageText,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type MentorRepository struct {
	db *sqlx.DB
}

func NewMentorRepository(db *sqlx.DB) *MentorRepository {
	return &MentorRepository{db: db}
}

func (repo *MentorRepository) CreateMentor(ctx context.Context, m mentor.Mentor) (mentor.Mentor, error) {
	row := newMentorRow(m)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO mentors (id, name, domain, level, description, avatar_url, system_prompt,
		                     specializations, is_active, created_by, created_at, updated_at)
		VALUES (:id, :name, :domain, :level, :description, :avatar_url, :system_prompt,
		        :specializations, :is_active, :created_by, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return mentor.Mentor{}, errors.Wrap(err, "creating mentor")
	}
	return row.toCore(), nil
}

func (repo *MentorRepository) GetMentorByID(ctx context.Context, id string) (mentor.Mentor, error) {
	var row mentorRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM mentors WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mentor.Mentor{}, mentor.ErrNotFound
		}
		return mentor.Mentor{}, errors.Wrap(err, "getting mentor")
	}
	return row.toCore(), nil
}

func (repo *MentorRepository) FilterMentors(ctx context.Context, filter mentor.MentorFilter) ([]mentor.Mentor, error) {
	query := "SELECT * FROM mentors WHERE true"
	var args []interface{}
	if filter.ActiveOnly {
		query += " AND is_active = true"
	}
	if filter.Domain != "" {
		query += " AND domain = ?"
		args = append(args, filter.Domain)
	}
	if filter.Level != "" {
		query += " AND level = ?"
		args = append(args, filter.Level)
	}
	query += " ORDER BY name"

	var rows []mentorRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering mentors")
	}

	mentors := make([]mentor.Mentor, len(rows))
	for i, row := range rows {
		mentors[i] = row.toCore()
	}
	return mentors, nil
}

func (repo *MentorRepository) UpdateMentor(ctx context.Context, m mentor.Mentor) (mentor.Mentor, error) {
	row := newMentorRow(m)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE mentors
		SET name = :name, domain = :domain, level = :level, description = :description,
		    avatar_url = :avatar_url, system_prompt = :system_prompt, specializations = :specializations,
		    is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return mentor.Mentor{}, errors.Wrap(err, "updating mentor")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mentor.Mentor{}, mentor.ErrNotFound
	}
	return row.toCore(), nil
}

func (repo *MentorRepository) DeleteMentorByID(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM mentors WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting mentor")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mentor.ErrNotFound
	}
	return nil
}

func (repo *MentorRepository) CreateActivation(ctx context.Context, act mentor.Activation) (mentor.Activation, error) {
	row := newActivationRow(act)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO user_mentors (id, user_id, mentor_id, session_id, activated_at, total_messages,
		                          total_time_minutes, last_interaction, is_active, notes, recommendations,
		                          created_at, updated_at)
		VALUES (:id, :user_id, :mentor_id, :session_id, :activated_at, :total_messages,
		        :total_time_minutes, :last_interaction, :is_active, :notes, :recommendations,
		        :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, "user_mentors_user_mentor_key") {
			return mentor.Activation{}, mentor.ErrMentorAlreadyActivated
		}
		return mentor.Activation{}, errors.Wrap(err, "creating activation")
	}
	return row.toCore()
}

func (repo *MentorRepository) GetActivationBySessionID(ctx context.Context, sessionID string) (mentor.Activation, error) {
	var row activationRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM user_mentors WHERE session_id = $1", sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mentor.Activation{}, mentor.ErrSessionNotFound
		}
		return mentor.Activation{}, errors.Wrap(err, "getting activation")
	}
	return row.toCore()
}

func (repo *MentorRepository) FilterActivations(ctx context.Context, filter mentor.ActivationFilter) ([]mentor.Activation, error) {
	query := "SELECT * FROM user_mentors WHERE true"
	var args []interface{}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.MentorID != "" {
		query += " AND mentor_id = ?"
		args = append(args, filter.MentorID)
	}
	if filter.ActiveOnly {
		query += " AND is_active = true"
	}
	query += " ORDER BY activated_at DESC"

	var rows []activationRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering activations")
	}

	acts := make([]mentor.Activation, len(rows))
	for i, row := range rows {
		act, err := row.toCore()
		if err != nil {
			return nil, err
		}
		acts[i] = act
	}
	return acts, nil
}

func (repo *MentorRepository) UpdateActivation(ctx context.Context, act mentor.Activation) (mentor.Activation, error) {
	row := newActivationRow(act)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE user_mentors
		SET total_messages = :total_messages, total_time_minutes = :total_time_minutes,
		    last_interaction = :last_interaction, is_active = :is_active, notes = :notes,
		    recommendations = :recommendations, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return mentor.Activation{}, errors.Wrap(err, "updating activation")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mentor.Activation{}, mentor.ErrSessionNotFound
	}
	return row.toCore()
}

func (repo *MentorRepository) CreateChatMessages(ctx context.Context, msgs ...mentor.ChatMessage) error {
	rows := make([]map[string]interface{}, len(msgs))
	for i, msg := range msgs {
		rows[i] = map[string]interface{}{
			"id":           newID(msg.ID),
			"session_id":   msg.SessionID,
			"user_id":      msg.UserID,
			"mentor_id":    msg.MentorID,
			"sender":       msg.Sender,
			"message_text": msg.Message,
			"created_at":   msg.CreatedAt,
		}
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, user_id, mentor_id, sender, message_text, created_at)
		VALUES (:id, :session_id, :user_id, :mentor_id, :sender, :message_text, :created_at)`,
		rows,
	)
	return errors.Wrap(err, "creating chat messages")
}

func (repo *MentorRepository) QueryChatHistory(ctx context.Context, sessionID string, limit int) ([]mentor.ChatMessage, error) {
	query := "SELECT * FROM chat_messages WHERE session_id = $1 ORDER BY seq"
	args := []interface{}{sessionID}
	if limit > 0 {
		// latest N, returned in chronological order
		query = `
			SELECT * FROM (
				SELECT * FROM chat_messages WHERE session_id = $1 ORDER BY seq DESC LIMIT $2
			) latest ORDER BY seq`
		args = append(args, limit)
	}

	var rows []chatMessageRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying chat history")
	}

	msgs := make([]mentor.ChatMessage, len(rows))
	for i, row := range rows {
		msgs[i] = row.toCore()
	}
	return msgs, nil
}
