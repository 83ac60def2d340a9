// internal/api/responses/responses.go
package responses

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIResponse defines the standard envelope for API responses.
type APIResponse struct {
	Status  string      `json:"status"` // "success" or "error"
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

// Responder writes the envelope and logs every response it sends.
type Responder struct {
	logger *zap.Logger
}

// New creates a Responder. A nil logger discards the response logs.
func New(logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{logger: logger}
}

// Success sends a successful response with the provided data and message.
func (r *Responder) Success(c *gin.Context, data interface{}, message string) {
	r.Respond(c, http.StatusOK, data, message)
}

// Respond sends a successful response with an explicit status code.
func (r *Responder) Respond(c *gin.Context, code int, data interface{}, message string) {
	resp := APIResponse{Status: "success", Data: data, Message: message}
	c.JSON(code, resp)
	r.logger.Info("API success", zap.String("path", c.Request.URL.Path), zap.Int("status", code))
}

// Error sends an error response with the provided code, message, and optional errors.
func (r *Responder) Error(c *gin.Context, code int, message string, errs ...string) {
	resp := APIResponse{Status: "error", Message: message, Errors: errs}
	c.AbortWithStatusJSON(code, resp)
	if code >= http.StatusInternalServerError {
		r.logger.Error("API error", zap.String("path", c.Request.URL.Path), zap.Int("status", code), zap.Strings("errors", errs))
		return
	}
	r.logger.Warn("API error", zap.String("path", c.Request.URL.Path), zap.Int("status", code), zap.Strings("errors", errs))
}
