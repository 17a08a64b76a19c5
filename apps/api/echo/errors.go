package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core"
	"github.com/studentbuddy/backend/core/activation"
	"github.com/studentbuddy/backend/core/mentor"
	"github.com/studentbuddy/backend/core/notification"
	"github.com/studentbuddy/backend/core/student"
	"github.com/studentbuddy/backend/core/test"
	"github.com/studentbuddy/backend/core/todo"
	"github.com/studentbuddy/backend/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	// business errors and their HTTP statuses
	errStatusCodes = map[error]int{
		user.ErrNotFound:                 http.StatusNotFound,
		student.ErrProfileNotFound:       http.StatusNotFound,
		test.ErrNotFound:                 http.StatusNotFound,
		test.ErrAttemptNotFound:          http.StatusNotFound,
		mentor.ErrNotFound:               http.StatusNotFound,
		mentor.ErrSessionNotFound:        http.StatusNotFound,
		todo.ErrNotFound:                 http.StatusNotFound,
		notification.ErrNotFound:         http.StatusNotFound,
		user.ErrEmailExists:              http.StatusConflict,
		student.ErrProfileExists:         http.StatusConflict,
		test.ErrTestAlreadyAttempted:     http.StatusConflict,
		test.ErrAttemptClosed:            http.StatusConflict,
		mentor.ErrMentorAlreadyActivated: http.StatusConflict,
		activation.ErrCodeInvalid:        http.StatusBadRequest,
		test.ErrTestNotAvailable:         http.StatusForbidden,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		// the type switch must run before the errStatusCodes lookup:
		// validator.ValidationErrors is a slice and cannot be a map key
		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if status, ok := errStatusCodes[origErr]; ok {
				code = status
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Email = claims.Email
				usr.FullName = claims.FullName
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
