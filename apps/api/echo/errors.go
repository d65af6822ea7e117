package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

var (
	errUnauthorized     = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errSessionRevoked   = echo.NewHTTPError(http.StatusUnauthorized, "session has been signed out")
	errRefreshExpired   = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden    = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errInProgress       = echo.NewHTTPError(http.StatusConflict, attendance.ErrSubmissionInProgress.Error())
	msgUnavailable      = "Service temporarily unavailable. Please try again."
	msgSignOutFailed    = "Failed to sign out. Please try again."
	msgCameraPermission = "Camera access denied"
)

// authHTTPError maps an identity provider failure to the message the user sees.
func authHTTPError(err error, message string) *echo.HTTPError {
	code := http.StatusBadRequest
	switch user.ProviderErrorCode(err) {
	case user.CodeNetworkFailure, user.CodeUnknown:
		code = http.StatusBadGateway
	}
	return &echo.HTTPError{Code: code, Message: message, Internal: err}
}

// kindStatus returns the status and message of failures coming from outside the process.
func kindStatus(kind core.Kind) (int, string) {
	switch kind {
	case core.KindPermission:
		return http.StatusForbidden, msgCameraPermission
	case core.KindAuth:
		return http.StatusBadGateway, user.SignInMessage(nil)
	case core.KindStorage, core.KindRecord:
		return http.StatusBadGateway, attendance.MsgFailed
	default:
		return http.StatusBadGateway, msgUnavailable
	}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

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
				fldErrs[vErr.Field()] = vErr.Translate(translator)
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
		case *core.KindError:
			var msg string
			code, msg = kindStatus(origErr.Kind)
			message = msg
			logger.Error(origErr.Kind.String()+" failure", err, contextProfile(ctx))
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			logger.Error(msg, errors.Wrap(err, msg), contextProfile(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
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

// contextProfile is the best known identity of the request, for error reports.
func contextProfile(ctx echo.Context) user.Profile {
	if p, ok := ctx.Get(profileContextKey).(user.Profile); ok {
		return p
	}
	if claims, err := getContextClaims(ctx); err == nil {
		return claims.profile()
	}
	return user.Profile{}
}
