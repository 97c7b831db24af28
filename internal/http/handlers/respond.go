package handlers

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/gin-gonic/gin"
)

// Every response travels in one envelope: "success" with data, "fail" for
// client errors, "error" for server errors.

func RespondData(ctx *gin.Context, status int, data gin.H) {
	ctx.JSON(status, gin.H{
		"status": "success",
		"data":   data,
	})
}

// RespondList includes the result count alongside the page of items.
func RespondList(ctx *gin.Context, key string, items any, count int) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"results": count,
		"data":    gin.H{key: items},
	})
}

func RespondNoContent(ctx *gin.Context) {
	ctx.Status(http.StatusNoContent)
}

// Fail records the error for the translator middleware and stops the chain.
func Fail(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.Abort()
}

func statusWord(httpStatus int) string {
	if httpStatus >= 500 {
		return "error"
	}
	return "fail"
}

// ErrorHandler is the single boundary where errors become responses.
// Operational errors surface their message in any environment; programming
// errors are logged with full detail and masked outside dev.
func ErrorHandler(env string, logger *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()

		if len(ctx.Errors) == 0 || ctx.Writer.Written() {
			return
		}

		err := ctx.Errors.Last().Err
		writeError(ctx, env, logger, err, nil)
	}
}

// Recovery converts panics into the same envelope instead of a bare 500.
func Recovery(env string, logger *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			stack := debug.Stack()
			err, ok := r.(error)
			if !ok {
				err = &panicError{value: r}
			}

			logger.ErrorContext(ctx.Request.Context(), "panic recovered",
				"error", err,
				"path", ctx.Request.URL.Path,
				"stack", string(stack),
			)

			if ctx.Writer.Written() {
				ctx.Abort()
				return
			}
			writeError(ctx, env, logger, apperr.Internal(err), stack)
			ctx.Abort()
		}()

		ctx.Next()
	}
}

type panicError struct{ value any }

func (e *panicError) Error() string { return "panic" }

func writeError(ctx *gin.Context, env string, logger *slog.Logger, err error, stack []byte) {
	appErr, ok := apperr.From(err)

	if !ok || !appErr.Operational() {
		cause := err
		if ok {
			appErr = apperr.Internal(appErr.Err)
			if appErr.Err != nil {
				cause = appErr.Err
			}
		} else {
			appErr = apperr.Internal(err)
		}

		logger.ErrorContext(ctx.Request.Context(), "unhandled error",
			"error", cause,
			"method", ctx.Request.Method,
			"path", ctx.Request.URL.Path,
		)
	}

	body := gin.H{
		"status":  statusWord(appErr.Status),
		"message": appErr.Message,
	}

	if appErr.Details != nil {
		body["details"] = appErr.Details
	}

	// Dev gets the raw cause and stack; prod never does.
	if env == "dev" {
		body["error"] = appErr.Error()
		if stack != nil {
			body["stack"] = string(stack)
		}
	}

	ctx.JSON(appErr.Status, body)
}
