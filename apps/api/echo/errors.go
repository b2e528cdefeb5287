package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/otp"
	"github.com/trezcool/hocsinh/core/student"
	exportsvc "github.com/trezcool/hocsinh/services/export"
)

var (
	errUnauthorized     = echo.NewHTTPError(http.StatusUnauthorized, "Chưa đăng nhập quản trị")
	errMethodNotAllowed = "Phương thức không được phép cho endpoint này"
	errMissingEmail     = "Thiếu email đăng ký"
	errMissingEmailArg  = "Thiếu tham số email"
	errPDFNotReady      = echo.NewHTTPError(http.StatusNotImplemented, "PDF export đang được phát triển")
)

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
				message = errUnauthorized.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
			switch code {
			case http.StatusMethodNotAllowed:
				message = errMethodNotAllowed
			case http.StatusUnauthorized: // invalid or expired jwt
				message = errUnauthorized.Message
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = echo.Map{"success": false, "error": firstMessage(fldErrs), "fields": fldErrs}
		case *core.ValidationError:
			code = http.StatusBadRequest
			if len(origErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				msg := origErr.Error()
				if origErr.Err == nil {
					msg = origErr.Fields[0].Error
				}
				message = echo.Map{"success": false, "error": msg, "fields": fldErrs}
			} else {
				message = origErr.Error()
			}
		default:
			code, message = domainError(origErr)
			if code != 0 {
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var person core.LogPerson
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				person = core.LogPerson{ID: claims.Subject, Email: claims.Email}
			}
			logger.Error(msg, errors.Wrap(err, msg), person)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if m, ok := message.(string); ok {
			if ctx.Echo().Debug && code == http.StatusInternalServerError {
				m = err.Error()
			}
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

// domainError maps the sentinel errors of the core packages to a status and message.
// It returns a zero code for anything else.
func domainError(err error) (int, interface{}) {
	switch err {
	case student.ErrNotFound:
		return http.StatusNotFound, err.Error()
	case exportsvc.ErrNoRows, exportsvc.ErrUnknownFormat:
		return http.StatusBadRequest, err.Error()
	case otp.ErrMissingFields, otp.ErrNotFound, otp.ErrExpired, otp.ErrMismatch:
		return http.StatusBadRequest, err.Error()
	case otp.ErrInvalidCredentials, otp.ErrNotAllowed:
		return http.StatusUnauthorized, err.Error()
	case otp.ErrTooManyRequests:
		return http.StatusTooManyRequests, err.Error()
	}
	return 0, nil
}

func firstMessage(fldErrs map[string]string) string {
	for _, key := range []string{"email", "otp", "password", "count"} {
		if msg, ok := fldErrs[key]; ok {
			return msg
		}
	}
	for _, msg := range fldErrs {
		return msg
	}
	return ""
}
