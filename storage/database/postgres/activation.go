package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core/activation"
)

type codeRow struct {
	ID        string         `db:"id"`
	UserID    sql.NullString `db:"user_id"`
	Email     string         `db:"email"`
	Code      string         `db:"code"`
	Type      string         `db:"type"`
	MentorID  sql.NullString `db:"mentor_id"`
	ExpiresAt time.Time      `db:"expires_at"`
	Used      bool           `db:"is_used"`
	CreatedAt time.Time      `db:"created_at"`
}

func newCodeRow(code activation.Code) codeRow {
	return codeRow{
		ID:        newID(code.ID),
		UserID:    nullString(code.UserID),
		Email:     code.Email,
		Code:      code.Code,
		Type:      code.Type,
		MentorID:  nullString(code.MentorID),
		ExpiresAt: code.ExpiresAt,
		Used:      code.Used,
		CreatedAt: code.CreatedAt,
	}
}

func (row codeRow) toCore() activation.Code {
	return activation.Code{
		ID:        row.ID,
		UserID:    row.UserID.String,
		Email:     row.Email,
		Code:      row.Code,
		Type:      row.Type,
		MentorID:  row.MentorID.String,
		ExpiresAt: row.ExpiresAt.UTC(),
		Used:      row.Used,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type CodeRepository struct {
	db *sqlx.DB
}

func NewCodeRepository(db *sqlx.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

func (repo *CodeRepository) DeleteCodes(ctx context.Context, key activation.Key) error {
	query, args := codeKeyWhere("DELETE FROM activation_codes", key)
	if _, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting codes")
	}
	return nil
}

func (repo *CodeRepository) CreateCode(ctx context.Context, code activation.Code) (activation.Code, error) {
	row := newCodeRow(code)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO activation_codes (id, user_id, email, code, type, mentor_id, expires_at, is_used, created_at)
		VALUES (:id, :user_id, :email, :code, :type, :mentor_id, :expires_at, :is_used, :created_at)`,
		row,
	)
	if err != nil {
		return activation.Code{}, errors.Wrap(err, "creating code")
	}
	return row.toCore(), nil
}

func (repo *CodeRepository) RedeemCode(ctx context.Context, key activation.Key, code string, now time.Time) (activation.Code, error) {
	query, args := codeKeyWhere("UPDATE activation_codes SET is_used = true", key)
	query += " AND code = ? AND is_used = false AND expires_at > ? RETURNING *"
	args = append(args, code, now)

	var row codeRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind(query), args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return activation.Code{}, activation.ErrCodeInvalid
		}
		return activation.Code{}, errors.Wrap(err, "redeeming code")
	}
	return row.toCore(), nil
}

// codeKeyWhere appends the key's non-empty fields as a WHERE clause with
// "?" bindvars.
func codeKeyWhere(query string, key activation.Key) (string, []interface{}) {
	query += " WHERE type = ?"
	args := []interface{}{key.Type}
	if key.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, key.UserID)
	}
	if key.Email != "" {
		query += " AND email = ?"
		args = append(args, key.Email)
	}
	if key.MentorID != "" {
		query += " AND mentor_id = ?"
		args = append(args, key.MentorID)
	}
	return query, args
}
