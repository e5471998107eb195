package response

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/ideagraph/pkg/apperror"
	"github.com/d60-Lab/ideagraph/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Kind    string      `json:"kind,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "success", Data: data})
}

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Code: http.StatusBadRequest, Kind: string(apperror.KindValidation), Message: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: http.StatusUnauthorized, Message: msg})
}

func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Code: http.StatusTooManyRequests, Message: "rate limit exceeded"})
}

// InternalError logs the cause, reports it to sentry and hides it from the caller.
func InternalError(c *gin.Context, err error) {
	logger.Error("internal error", zap.String("path", c.FullPath()), zap.Error(err))
	sentry.CaptureException(err)
	c.JSON(http.StatusInternalServerError, Response{
		Code:    http.StatusInternalServerError,
		Kind:    string(apperror.KindInternal),
		Message: apperror.ErrInternal.Message,
	})
}

// Error writes an engine error with the status derived from its kind.
func Error(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		InternalError(c, err)
		return
	}
	if status == http.StatusServiceUnavailable {
		logger.Warn("dependency unavailable", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, Response{
		Code:    status,
		Kind:    string(apperror.KindOf(err)),
		Message: apperror.PublicMessage(err),
	})
}
