// Package response writes the uniform JSON envelope used by every endpoint:
//
//	success: {"statusCode": 200, "message": "OK", "data": ...}
//	failure: {"statusCode": 400, "message": "...", "errorCode": 1006}
//
// Failures are classified through apperror; only the client-safe message is
// written, the underlying cause goes to the request logger.
package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rbac-admin/internal/apperror"
	"github.com/iliyamo/rbac-admin/internal/logging"
)

// Error codes carried in the failure envelope.
const (
	CodeNotFound           = 1001
	CodeInvalidCredentials = 1002
	CodeUnauthorized       = 1003
	CodeServerError        = 1004
	CodeValidation         = 1006
	CodeAlreadyExists      = 1007
	CodeOther              = 1008
	CodeForbidden          = 1009
	CodeConflict           = 1010
)

// Success is the envelope written for successful requests.
type Success struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

// Failure is the envelope written for failed requests.
type Failure struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	ErrorCode  *int   `json:"errorCode"`
}

// OK writes a success envelope.  An empty msg falls back to the status text.
func OK(c echo.Context, status int, data any, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return c.JSON(status, Success{StatusCode: status, Message: msg, Data: data})
}

// Fail writes a failure envelope with an explicit status and code.
func Fail(c echo.Context, status int, msg string, code int) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	f := Failure{StatusCode: status, Message: msg}
	if code != 0 {
		f.ErrorCode = &code
	}
	return c.JSON(status, f)
}

// Error classifies err and writes the matching failure envelope.
func Error(c echo.Context, err error) error {
	var ae *apperror.Error
	if !errors.As(err, &ae) {
		ae = apperror.Internal(err)
	}
	status, code := Classify(ae.Kind)

	l := logging.FromContext(c.Request().Context())
	if status >= http.StatusInternalServerError {
		l.Error("request_failed", "status", status, "kind", ae.Kind.String(), "error", err)
	} else {
		l.Debug("request_rejected", "status", status, "kind", ae.Kind.String(), "reason", ae.Message)
	}
	return Fail(c, status, ae.Message, code)
}

// Classify maps an error kind to its HTTP status and envelope code.
func Classify(kind apperror.Kind) (int, int) {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest, CodeValidation
	case apperror.KindAlreadyExists:
		return http.StatusBadRequest, CodeAlreadyExists
	case apperror.KindInvalidCredentials:
		return http.StatusBadRequest, CodeInvalidCredentials
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized, CodeUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden, CodeForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound, CodeNotFound
	case apperror.KindConflict:
		return http.StatusConflict, CodeConflict
	default:
		return http.StatusInternalServerError, CodeServerError
	}
}

// ErrorHandler renders errors that escape handlers, including echo's own
// HTTPErrors (unknown route, method not allowed, bind failures), through
// the same envelope.  Install it as echo.Echo.HTTPErrorHandler.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(he.Code)
		} else {
			werr = Fail(c, he.Code, msg, codeForStatus(he.Code))
		}
		if werr != nil {
			c.Logger().Error(werr)
		}
		return
	}
	if werr := Error(c, err); werr != nil {
		c.Logger().Error(werr)
	}
}

func codeForStatus(status int) int {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	}
	if status >= http.StatusInternalServerError {
		return CodeServerError
	}
	return CodeOther
}
