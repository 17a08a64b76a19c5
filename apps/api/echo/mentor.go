package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core"
	"github.com/studentbuddy/backend/core/user"
)

type mentorApi struct {
	deps ServerDeps
}

func registerMentorAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := mentorApi{deps: deps}

	mg := g.Group("/mentor", jwt, roleMiddleware(user.RoleStudent))
	mg.GET("/available", api.available)
	mg.GET("/activated", api.activated)
	mg.POST("/:id/register", api.register)
	mg.POST("/:id/activate", api.activate)
	mg.POST("/chat/:sessionId/message", api.sendMessage)
	mg.GET("/chat/:sessionId/history", api.history)

	// browsers cannot set headers on websocket handshakes; the token
	// travels as a query param instead
	wsJwt := middleware.JWTWithConfig(newWSJWTConfig(deps.Conf))
	g.GET("/mentor/chat/:sessionId/ws", api.chatSocket,
		wsJwt, requireActiveUser(deps.UserSvc), roleMiddleware(user.RoleStudent))
}

func newWSJWTConfig(conf *core.Config) middleware.JWTConfig {
	jwtConf := newJWTConfig(conf)
	jwtConf.TokenLookup = "query:token"
	return jwtConf
}

// Handlers

func (api *mentorApi) available(ctx echo.Context) error {
	mentors, err := api.deps.MentorSvc.Available(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing available mentors")
	}
	return ctx.JSON(http.StatusOK, mentors)
}

func (api *mentorApi) activated(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	activated, err := api.deps.MentorSvc.Activated(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing activated mentors")
	}
	return ctx.JSON(http.StatusOK, activated)
}

func (api *mentorApi) register(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.deps.MentorSvc.Register(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "registering for mentor")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "An activation code has been sent to your email address.",
	})
}

func (api *mentorApi) activate(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data ActivateMentorRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ActivateMentorRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	activated, err := api.deps.MentorSvc.Activate(ctx.Request().Context(), usr, ctx.Param("id"), data.Code)
	if err != nil {
		return errors.Wrap(err, "activating mentor")
	}
	return ctx.JSON(http.StatusCreated, activated)
}

func (api *mentorApi) sendMessage(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data ChatMessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChatMessageRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	exchange, err := api.deps.MentorSvc.SendMessage(ctx.Request().Context(), claims.Subject, ctx.Param("sessionId"), data.Message)
	if err != nil {
		return errors.Wrap(err, "sending chat message")
	}
	return ctx.JSON(http.StatusOK, exchange)
}

func (api *mentorApi) history(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	history, err := api.deps.MentorSvc.History(ctx.Request().Context(), claims.Subject, ctx.Param("sessionId"))
	if err != nil {
		return errors.Wrap(err, "loading chat history")
	}
	return ctx.JSON(http.StatusOK, history)
}

func (api *mentorApi) chatSocket(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	sessionID := ctx.Param("sessionId")
	if err = api.deps.MentorSvc.OwnsSession(ctx.Request().Context(), claims.Subject, sessionID); err != nil {
		return errors.Wrap(err, "checking session ownership")
	}
	return api.deps.Hub.ServeWS(ctx.Response(), ctx.Request(), sessionID)
}

type (
	ActivateMentorRequest struct {
		Code string `json:"code" validate:"required,numcode"`
	}

	ChatMessageRequest struct {
		Message string `json:"message" validate:"required"`
	}
)

func (ar *ActivateMentorRequest) Validate(validate *validator.Validate) error {
	ar.Code = core.CleanString(ar.Code)
	return validate.Struct(ar)
}

func (cr *ChatMessageRequest) Validate(validate *validator.Validate) error {
	cr.Message = core.CleanString(cr.Message)
	return validate.Struct(cr)
}
