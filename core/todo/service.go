package todo

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("todo not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateTodo(ctx context.Context, td Todo) (Todo, error)
		GetTodoByID(ctx context.Context, id string) (Todo, error)
		FilterTodos(ctx context.Context, filter QueryFilter) ([]Todo, error)
		UpdateTodo(ctx context.Context, td Todo) (Todo, error)
		DeleteTodoByID(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, userID string, nt NewTodo) (Todo, error) {
	now := nowFunc().UTC()
	td := Todo{
		UserID:      userID,
		Title:       nt.Title,
		Description: nt.Description,
		Priority:    nt.Priority,
		Category:    nt.Category,
		DueDate:     nt.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if td.Priority == "" {
		td.Priority = PriorityMedium
	}
	if td.Category == "" {
		td.Category = CategoryOther
	}
	return svc.repo.CreateTodo(ctx, td)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Todo, error) {
	return svc.repo.FilterTodos(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, userID, id string, ut UpdateTodo) (Todo, error) {
	td, err := svc.getOwned(ctx, userID, id)
	if err != nil {
		return Todo{}, err
	}

	if ut.Title != nil {
		td.Title = *ut.Title
	}
	if ut.Description != nil {
		td.Description = *ut.Description
	}
	if ut.Priority != nil {
		td.Priority = *ut.Priority
	}
	if ut.Category != nil {
		td.Category = *ut.Category
	}
	if ut.DueDate != nil {
		td.DueDate = ut.DueDate
	}
	td.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateTodo(ctx, td)
}

// Toggle flips completion; CompletedAt tracks the completion time and is
// cleared when the todo is reopened.
func (svc *Service) Toggle(ctx context.Context, userID, id string) (Todo, error) {
	td, err := svc.getOwned(ctx, userID, id)
	if err != nil {
		return Todo{}, err
	}

	now := nowFunc().UTC()
	td.Completed = !td.Completed
	if td.Completed {
		td.CompletedAt = &now
	} else {
		td.CompletedAt = nil
	}
	td.UpdatedAt = now
	return svc.repo.UpdateTodo(ctx, td)
}

func (svc *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := svc.getOwned(ctx, userID, id); err != nil {
		return err
	}
	return svc.repo.DeleteTodoByID(ctx, id)
}

// getOwned hides other users' todos behind ErrNotFound.
func (svc *Service) getOwned(ctx context.Context, userID, id string) (Todo, error) {
	td, err := svc.repo.GetTodoByID(ctx, id)
	if err != nil {
		return Todo{}, err
	}
	if td.UserID != userID {
		return Todo{}, ErrNotFound
	}
	return td, nil
}
