package inmemdb

import (
	"context"
	"sort"

	"github.com/studentbuddy/backend/core/todo"
)

type TodoRepository struct {
	db *DB
}

func NewTodoRepository(db *DB) *TodoRepository {
	return &TodoRepository{db: db}
}

func (repo *TodoRepository) CreateTodo(_ context.Context, td todo.Todo) (todo.Todo, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	td.ID = newID(td.ID)
	repo.db.todos[td.ID] = td
	return td, nil
}

func (repo *TodoRepository) GetTodoByID(_ context.Context, id string) (todo.Todo, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	td, ok := repo.db.todos[id]
	if !ok {
		return todo.Todo{}, todo.ErrNotFound
	}
	return td, nil
}

func (repo *TodoRepository) FilterTodos(_ context.Context, filter todo.QueryFilter) ([]todo.Todo, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	todos := make([]todo.Todo, 0, len(repo.db.todos))
	for _, td := range repo.db.todos {
		if td.UserID != filter.UserID {
			continue
		}
		if filter.Completed != nil && td.Completed != *filter.Completed {
			continue
		}
		todos = append(todos, td)
	}
	sort.Slice(todos, func(i, j int) bool {
		ti, tj := todos[i], todos[j]
		switch {
		case ti.DueDate != nil && tj.DueDate != nil:
			return ti.DueDate.Before(*tj.DueDate)
		case ti.DueDate != nil:
			return true
		case tj.DueDate != nil:
			return false
		default:
			return ti.CreatedAt.After(tj.CreatedAt)
		}
	})
	return todos, nil
}

func (repo *TodoRepository) UpdateTodo(_ context.Context, td todo.Todo) (todo.Todo, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.todos[td.ID]; !ok {
		return todo.Todo{}, todo.ErrNotFound
	}
	repo.db.todos[td.ID] = td
	return td, nil
}

func (repo *TodoRepository) DeleteTodoByID(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.todos[id]; !ok {
		return todo.ErrNotFound
	}
	delete(repo.db.todos, id)
	return nil
}
