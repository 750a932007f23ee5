package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"visit-tracker/internal/auth"
	"visit-tracker/internal/errs"
	"visit-tracker/internal/middleware"
	"visit-tracker/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusFor is the single mapping from error kind to HTTP status.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation, errs.KindInsufficientQuota, errs.KindInvalidRange:
		return http.StatusBadRequest
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInvalidTransition, errs.KindConflict:
		return http.StatusConflict
	case errs.KindRateLimited:
		return http.StatusTooManyRequests
	case errs.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err in the standard envelope. Server-side failures are logged, never echoed.
func respondError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"kind", kind,
			"error", err,
		)
	}
	_ = c.Error(err)

	fields := errs.FieldsOf(err)
	out := make([]response.FieldError, 0, len(fields))
	for _, f := range fields {
		out = append(out, response.FieldError{Field: f.Field, Message: f.Message})
	}
	c.JSON(status, response.Fail(status, string(kind), errs.Message(err), out...))
}

// bind decodes a JSON or form body into dst. An empty body leaves dst untouched.
func bind(c *gin.Context, dst interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBind(dst); err != nil && !errors.Is(err, io.EOF) {
		return errs.Wrap(errs.KindValidation, "Invalid request payload", err)
	}
	return nil
}

// principal returns the caller set by the auth guard. Routes using it are always guarded.
func principal(c *gin.Context) auth.Principal {
	p, _ := middleware.CurrentUser(c)
	return p
}
