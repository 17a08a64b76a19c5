package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core/todo"
)

type todoRow struct {
	ID          string       `db:"id"`
	UserID      string       `db:"user_id"`
	Title       string       `db:"title"`
	Description string       `db:"description"`
	Priority    string       `db:"priority"`
	DueDate     sql.NullTime `db:"due_date"`
	Completed   bool         `db:"is_completed"`
	CompletedAt sql.NullTime `db:"completed_at"`
	Category    string       `db:"category"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

func newTodoRow(td todo.Todo) todoRow {
	return todoRow{
		ID:          newID(td.ID),
		UserID:      td.UserID,
		Title:       td.Title,
		Description: td.Description,
		Priority:    td.Priority,
		DueDate:     nullTime(td.DueDate),
		Completed:   td.Completed,
		CompletedAt: nullTime(td.CompletedAt),
		Category:    td.Category,
		CreatedAt:   td.CreatedAt,
		UpdatedAt:   td.UpdatedAt,
	}
}

func (row todoRow) toCore() todo.Todo {
	return todo.Todo{
		ID:          row.ID,
		UserID:      row.UserID,
		Title:       row.Title,
		Description: row.Description,
		Priority:    row.Priority,
		Category:    row.Category,
		DueDate:     timePtr(row.DueDate),
		Completed:   row.Completed,
		CompletedAt: timePtr(row.CompletedAt),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type TodoRepository struct {
	db *sqlx.DB
}

func NewTodoRepository(db *sqlx.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

func (repo *TodoRepository) CreateTodo(ctx context.Context, td todo.Todo) (todo.Todo, error) {
	row := newTodoRow(td)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO todos (id, user_id, title, description, priority, due_date, is_completed,
		                   completed_at, category, created_at, updated_at)
		VALUES (:id, :user_id, :title, :description, :priority, :due_date, :is_completed,
		        :completed_at, :category, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return todo.Todo{}, errors.Wrap(err, "creating todo")
	}
	return row.toCore(), nil
}

func (repo *TodoRepository) GetTodoByID(ctx context.Context, id string) (todo.Todo, error) {
	var row todoRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM todos WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return todo.Todo{}, todo.ErrNotFound
		}
		return todo.Todo{}, errors.Wrap(err, "getting todo")
	}
	return row.toCore(), nil
}

func (repo *TodoRepository) FilterTodos(ctx context.Context, filter todo.QueryFilter) ([]todo.Todo, error) {
	query := "SELECT * FROM todos WHERE user_id = ?"
	args := []interface{}{filter.UserID}
	if filter.Completed != nil {
		query += " AND is_completed = ?"
		args = append(args, *filter.Completed)
	}
	query += " ORDER BY due_date NULLS LAST, created_at DESC"

	var rows []todoRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering todos")
	}

	todos := make([]todo.Todo, len(rows))
	for i, row := range rows {
		todos[i] = row.toCore()
	}
	return todos, nil
}

func (repo *TodoRepository) UpdateTodo(ctx context.Context, td todo.Todo) (todo.Todo, error) {
	row := newTodoRow(td)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE todos
		SET title = :title, description = :description, priority = :priority, due_date = :due_date,
		    is_completed = :is_completed, completed_at = :completed_at, category = :category,
		    updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return todo.Todo{}, errors.Wrap(err, "updating todo")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return todo.Todo{}, todo.ErrNotFound
	}
	return row.toCore(), nil
}

func (repo *TodoRepository) DeleteTodoByID(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM todos WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting todo")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return todo.ErrNotFound
	}
	return nil
}
