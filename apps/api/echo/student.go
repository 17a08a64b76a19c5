package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core/student"
	"github.com/studentbuddy/backend/core/user"
)

type studentApi struct {
	deps ServerDeps
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{deps: deps}

	sg := g.Group("/student", jwt, roleMiddleware(user.RoleStudent))
	sg.GET("/dashboard", api.dashboard)
	sg.GET("/analytics", api.analytics)
	sg.GET("/profile", api.profile)
	sg.PUT("/profile", api.updateProfile)
	sg.GET("/notifications", api.notifications)
	sg.PUT("/notifications/:id/read", api.markNotificationRead)
}

// Handlers

func (api *studentApi) dashboard(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	dash, err := api.deps.StudentSvc.Dashboard(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *studentApi) analytics(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	analytics, err := api.deps.StudentSvc.Analytics(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "building analytics")
	}
	return ctx.JSON(http.StatusOK, analytics)
}

func (api *studentApi) profile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	profile, err := api.deps.StudentSvc.Profile(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "loading profile")
	}
	return ctx.JSON(http.StatusOK, profile)
}

func (api *studentApi) updateProfile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data student.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	profile, err := api.deps.StudentSvc.UpdateProfile(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, profile)
}

func (api *studentApi) notifications(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	notifs, err := api.deps.NotifSvc.ForUser(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *studentApi) markNotificationRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	notif, err := api.deps.NotifSvc.MarkRead(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, notif)
}
