package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core"
	"github.com/studentbuddy/backend/core/student"
	"github.com/studentbuddy/backend/core/user"
)

type authApi struct {
	deps ServerDeps
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := authApi{deps: deps}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/forgot-password` & `/reset-password`
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
	ag.POST("/forgot-password", api.forgotPassword)
	ag.POST("/reset-password", api.resetPassword)

	// authed endpoints
	tg := ag.Group("", jwt)
	tg.POST("/token-refresh", api.refreshToken)
	tg.GET("/me", api.me)
}

// Handlers

func (api *authApi) signup(ctx echo.Context) error {
	var data SignupRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignupRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	usr, err := api.deps.UserSvc.Create(reqCtx, data.NewUser(), user.RoleStudent)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	if _, err = api.deps.StudentSvc.CreateProfile(reqCtx, usr.ID, data.NewProfile()); err != nil {
		return errors.Wrap(err, "creating student profile")
	}

	token, err := GenerateToken(api.deps.Conf, GetUserClaims(api.deps.Conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, AuthResponse{Token: token, User: usr})
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx, data.Email, data.Password, api.deps)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.deps.Conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	usr, err := api.deps.UserSvc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, AuthResponse{Token: token, User: usr})
}

func (api *authApi) forgotPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if err := api.deps.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with a code to reset your password.",
	})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data ConfirmPasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmPasswordResetRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if _, err := api.deps.UserSvc.ResetPassword(ctx.Request().Context(), data.Email, data.Code, data.NewPassword); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.deps)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

type (
	SignupRequest struct {
		Email              string   `json:"email" validate:"required,email"`
		Password           string   `json:"password" validate:"required"`
		FullName           string   `json:"full_name" validate:"required"`
		GradeLevel         string   `json:"grade_level" validate:"required"`
		SubjectsEnrolled   []string `json:"subjects_enrolled"`
		LearningStyle      string   `json:"learning_style" validate:"omitempty,oneof=Visual Auditory Kinesthetic Mixed"`
		AcademicGoals      string   `json:"academic_goals"`
		Interests          []string `json:"interests"`
		PreferredStudyTime string   `json:"preferred_study_time"`
	}

	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	AuthResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	ConfirmPasswordResetRequest struct {
		Email       string `json:"email" validate:"required,email"`
		Code        string `json:"code" validate:"required,numcode"`
		NewPassword string `json:"new_password" validate:"required"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (sr *SignupRequest) Validate(validate *validator.Validate) error {
	nu := sr.NewUser()
	if err := nu.Validate(validate); err != nil {
		return err
	}
	sr.Email = nu.Email
	sr.FullName = nu.FullName
	np := sr.NewProfile()
	if err := np.Validate(validate); err != nil {
		return err
	}
	sr.GradeLevel = np.GradeLevel
	return nil
}

func (sr *SignupRequest) NewUser() user.NewUser {
	return user.NewUser{Email: sr.Email, Password: sr.Password, FullName: sr.FullName}
}

func (sr *SignupRequest) NewProfile() student.NewProfile {
	return student.NewProfile{
		GradeLevel:         sr.GradeLevel,
		SubjectsEnrolled:   sr.SubjectsEnrolled,
		LearningStyle:      sr.LearningStyle,
		AcademicGoals:      sr.AcademicGoals,
		Interests:          sr.Interests,
		PreferredStudyTime: sr.PreferredStudyTime,
	}
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (cr *ConfirmPasswordResetRequest) Validate(validate *validator.Validate) error {
	cr.Email = core.CleanString(cr.Email, true /* lower */)
	return validate.Struct(cr)
}
