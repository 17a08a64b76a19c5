package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core/user"
)

type testApi struct {
	deps ServerDeps
}

func registerTestAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := testApi{deps: deps}

	tg := g.Group("/test", jwt, roleMiddleware(user.RoleStudent))
	tg.GET("/active", api.active)
	tg.POST("/:id/start", api.start)
	tg.POST("/attempts/:id/submit", api.submit)
	tg.GET("/attempts/:id/results", api.results)
}

// Handlers

func (api *testApi) active(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	active, err := api.deps.TestSvc.Active(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing active tests")
	}
	return ctx.JSON(http.StatusOK, active)
}

func (api *testApi) start(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	att, err := api.deps.TestSvc.Start(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *testApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data SubmitAttemptRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAttemptRequest")
	}

	att, err := api.deps.TestSvc.Submit(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data.Answers, data.IsAuto)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *testApi) results(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	res, err := api.deps.TestSvc.Results(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "loading results")
	}
	return ctx.JSON(http.StatusOK, res)
}

// SubmitAttemptRequest carries the student's answers, keyed by question
// ID. IsAuto marks a timer-driven submission.
type SubmitAttemptRequest struct {
	Answers map[string]string `json:"answers"`
	IsAuto  bool              `json:"is_auto"`
}
