package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core/todo"
)

type todoApi struct {
	deps ServerDeps
}

func registerTodoAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := todoApi{deps: deps}

	tg := g.Group("/todos", jwt)
	tg.GET("", api.list)
	tg.POST("", api.create)
	tg.PUT("/:id", api.update)
	tg.PUT("/:id/toggle", api.toggle)
	tg.DELETE("/:id", api.delete)
}

// Handlers

func (api *todoApi) list(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	filter := todo.QueryFilter{UserID: claims.Subject}
	if v := ctx.QueryParam("completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "completed must be a boolean")
		}
		filter.Completed = &completed
	}

	todos, err := api.deps.TodoSvc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing todos")
	}
	return ctx.JSON(http.StatusOK, todos)
}

func (api *todoApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data todo.NewTodo
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTodo")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	td, err := api.deps.TodoSvc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating todo")
	}
	return ctx.JSON(http.StatusCreated, td)
}

func (api *todoApi) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data todo.UpdateTodo
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTodo")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	td, err := api.deps.TodoSvc.Update(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating todo")
	}
	return ctx.JSON(http.StatusOK, td)
}

func (api *todoApi) toggle(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	td, err := api.deps.TodoSvc.Toggle(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "toggling todo")
	}
	return ctx.JSON(http.StatusOK, td)
}

func (api *todoApi) delete(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err := api.deps.TodoSvc.Delete(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting todo")
	}
	return ctx.NoContent(http.StatusNoContent)
}
