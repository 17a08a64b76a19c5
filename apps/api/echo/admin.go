package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core/mentor"
	"github.com/studentbuddy/backend/core/test"
	"github.com/studentbuddy/backend/core/user"
)

type adminApi struct {
	deps ServerDeps
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{deps: deps}

	ag := g.Group("/admin", jwt, adminMiddleware())

	ag.GET("/users", api.listUsers)
	ag.POST("/users", api.createAdmin, superAdminMiddleware())
	ag.DELETE("/users/:id", api.deleteUser)
	ag.PUT("/users/:id/toggle-active", api.toggleUserActive)
	ag.POST("/users/:id/reset-password", api.resetUserPassword)

	ag.GET("/tests", api.listTests)
	ag.POST("/tests", api.createTest)
	ag.GET("/tests/:id", api.getTest)
	ag.PUT("/tests/:id", api.updateTest)
	ag.DELETE("/tests/:id", api.deleteTest)
	ag.GET("/tests/:id/attempts", api.listTestAttempts)

	ag.GET("/mentors", api.listMentors)
	ag.POST("/mentors", api.createMentor)
	ag.PUT("/mentors/:id", api.updateMentor)
	ag.DELETE("/mentors/:id", api.deleteMentor)
}

// User management

func (api *adminApi) listUsers(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	// plain admins never see super admin accounts
	if !contextHasAnyRole(ctx, []string{user.RoleSuperAdmin}) {
		filter.ExcludeRoles = []string{user.RoleSuperAdmin}
		if filter.Role == user.RoleSuperAdmin {
			return ctx.JSON(http.StatusOK, []user.User{})
		}
	}

	users, err := api.deps.UserSvc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *adminApi) createAdmin(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	usr, err := api.deps.UserSvc.Create(ctx.Request().Context(), data, user.RoleAdmin)
	if err != nil {
		return errors.Wrap(err, "creating admin")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *adminApi) deleteUser(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if id == claims.Subject {
		return errHttpForbidden // no self-delete
	}

	target, err := api.deps.UserSvc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	// only a higher-privileged caller may delete an account
	if user.RolePriority(target.Role) >= user.RolePriority(claims.Role) {
		return errHttpForbidden
	}

	if err = api.deps.UserSvc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) toggleUserActive(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if id == claims.Subject {
		return errHttpForbidden // no self-deactivation
	}

	usr, err := api.deps.UserSvc.ToggleActive(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "toggling user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *adminApi) resetUserPassword(ctx echo.Context) error {
	tempPwd, err := api.deps.UserSvc.AdminResetPassword(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "resetting user password")
	}
	return ctx.JSON(http.StatusOK, TempPasswordResponse{Password: tempPwd})
}

// Test management

func (api *adminApi) listTests(ctx echo.Context) error {
	tests, err := api.deps.TestSvc.Filter(ctx.Request().Context(), test.TestFilter{})
	if err != nil {
		return errors.Wrap(err, "listing tests")
	}
	return ctx.JSON(http.StatusOK, tests)
}

func (api *adminApi) createTest(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data test.NewTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	t, err := api.deps.TestSvc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating test")
	}

	// fan-out failures must not fail the creation itself
	if err = api.deps.NotifSvc.NotifyTestAssigned(ctx.Request().Context(), t); err != nil {
		api.deps.Logger.Error("notifying test assignees", err)
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *adminApi) getTest(ctx echo.Context) error {
	t, err := api.deps.TestSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "loading test")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *adminApi) updateTest(ctx echo.Context) error {
	var data test.UpdateTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	t, err := api.deps.TestSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating test")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *adminApi) deleteTest(ctx echo.Context) error {
	if err := api.deps.TestSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting test")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) listTestAttempts(ctx echo.Context) error {
	attempts, err := api.deps.TestSvc.FilterAttempts(ctx.Request().Context(), test.AttemptFilter{TestID: ctx.Param("id")})
	if err != nil {
		return errors.Wrap(err, "listing attempts")
	}
	return ctx.JSON(http.StatusOK, attempts)
}

// Mentor management

func (api *adminApi) listMentors(ctx echo.Context) error {
	mentors, err := api.deps.MentorSvc.Filter(ctx.Request().Context(), mentor.MentorFilter{})
	if err != nil {
		return errors.Wrap(err, "listing mentors")
	}
	return ctx.JSON(http.StatusOK, mentors)
}

func (api *adminApi) createMentor(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data mentor.NewMentor
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMentor")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	m, err := api.deps.MentorSvc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating mentor")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *adminApi) updateMentor(ctx echo.Context) error {
	var data mentor.UpdateMentor
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMentor")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	m, err := api.deps.MentorSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating mentor")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *adminApi) deleteMentor(ctx echo.Context) error {
	if err := api.deps.MentorSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting mentor")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// TempPasswordResponse relays the temporary password set on an account.
type TempPasswordResponse struct {
	Password string `json:"password"`
}
