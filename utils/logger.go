package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dbautorest/pkg/apperror"
	"dbautorest/pkg/logger"
)

// LoggerMiddleware logs every request with a level derived from its status.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()

		// Log based on status code level
		if status >= 500 {
			logger.Errorf("HTTP %s %s - Status: %d, Duration: %v, IP: %s",
				c.Request.Method, c.Request.URL.Path, status, elapsed, c.ClientIP())
		} else if status >= 400 {
			logger.Warnf("HTTP %s %s - Status: %d, Duration: %v, IP: %s",
				c.Request.Method, c.Request.URL.Path, status, elapsed, c.ClientIP())
		} else {
			logger.Infof("HTTP %s %s - Status: %d, Duration: %v, IP: %s",
				c.Request.Method, c.Request.URL.Path, status, elapsed, c.ClientIP())
		}
	}
}

// ErrorBody is the error payload returned to callers.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the stable code and a caller-safe message.
type ErrorDetail struct {
	Code    apperror.Code `json:"code" example:"ENTITY_NOT_FOUND"`
	Message string        `json:"message" example:"entity \"orders\" is not exposed"`
}

// JSONResponse sends a JSON response with the specified HTTP status code.
func JSONResponse(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// ErrorResponse maps err to its HTTP status and writes the error payload.
// Server-side errors are logged in full but only their code is returned.
func ErrorResponse(c *gin.Context, err error) {
	code := apperror.CodeOf(err)
	status := apperror.HTTPStatus(code)
	if apperror.IsClientError(code) {
		logger.Debugf("API client error on %s: %v", c.Request.URL.Path, err)
	} else {
		logger.Errorf("API Error on %s: %v", c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, ErrorBody{Error: ErrorDetail{
		Code:    code,
		Message: apperror.PublicMessage(err),
	}})
}

// BadRequest reports a malformed request body or parameter.
func BadRequest(c *gin.Context, err error) {
	ErrorResponse(c, apperror.Wrap(apperror.CodeValidation, err, "invalid request: %v", err))
}

// NoContent writes 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
