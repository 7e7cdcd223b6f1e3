package responses

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error          bool   `json:"error"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
}

var GeneralServerError = ErrorResponse{
	Error:          true,
	Code:           6,
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: http.StatusInternalServerError,
}

var BadArgumentsError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "Bad arguments",
	HttpStatusCode: http.StatusBadRequest,
}

var BadAuthError = ErrorResponse{
	Error:          true,
	Code:           1,
	Message:        "bad auth",
	HttpStatusCode: http.StatusUnauthorized,
}

var UnauthorizedWebhookError = ErrorResponse{
	Error:          true,
	Code:           2,
	Message:        "invalid webhook secret token",
	HttpStatusCode: http.StatusUnauthorized,
}

var UserNotFoundError = ErrorResponse{
	Error:          true,
	Code:           11,
	Message:        "user not found",
	HttpStatusCode: http.StatusNotFound,
}

var TransactionNotFoundError = ErrorResponse{
	Error:          true,
	Code:           12,
	Message:        "transaction not found",
	HttpStatusCode: http.StatusNotFound,
}

// HTTPErrorHandler renders every error as an ErrorResponse. Unexpected errors
// become GeneralServerError and are reported to Sentry.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil && isErrAllowedForSentry(err) {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("UserID", c.Get("UserID"))
			scope.SetExtra("ChatID", c.Get("ChatID"))
			hub.CaptureException(err)
		})
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = c.JSON(GeneralServerError.HttpStatusCode, GeneralServerError)
		return
	}
	switch msg := he.Message.(type) {
	case ErrorResponse, *ErrorResponse, echo.Map:
		_ = c.JSON(he.Code, msg)
	default:
		_ = c.JSON(he.Code, ErrorResponse{Error: true, Code: he.Code, Message: fmt.Sprint(msg)})
	}
}

// client errors, bad auth included, are expected noise
func isErrAllowedForSentry(err error) bool {
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		return true
	}
	if code, ok := errorCode(he.Message); ok && code == BadAuthError.Code {
		return false
	}
	return he.Code >= http.StatusInternalServerError
}

func errorCode(msg interface{}) (int, bool) {
	switch m := msg.(type) {
	case ErrorResponse:
		return m.Code, true
	case *ErrorResponse:
		if m == nil {
			return 0, false
		}
		return m.Code, true
	case echo.Map:
		code, ok := m["code"].(int)
		return code, ok
	}
	return 0, false
}
