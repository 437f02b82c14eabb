package errors

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the body of every failed request.
// Error is a code from codes.go, Message is shown to the shopper as is.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

var defaultMessages = map[int]string{
	http.StatusUnauthorized:        "Authentication required",
	http.StatusForbidden:           "You do not have access to this resource",
	http.StatusInternalServerError: "Something went wrong, please try again later",
}

// RespondWithError writes the standard error body and aborts the handler chain
func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	if message == "" {
		message = defaultMessages[statusCode]
	}
	c.AbortWithStatusJSON(statusCode, ErrorResponse{Error: errorCode, Message: message})
}

func Unauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, AuthUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, AuthzForbidden, message)
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func NotFound(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusNotFound, errorCode, message)
}

func Conflict(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusConflict, errorCode, message)
}

// BindingError answers a body that failed ShouldBindJSON. Struct tag
// violations are reported per field, anything else (malformed JSON,
// wrong types) gets the fallback message.
func BindingError(c *gin.Context, err error, fallback string) {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		BadRequest(c, ValidationInvalidFormat, fallback)
		return
	}

	fields := make(map[string]string, len(invalid))
	for _, fe := range invalid {
		fields[jsonName(fe.Field())] = describe(fe)
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   ValidationInvalidInput,
		Message: fallback,
		Fields:  fields,
	})
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be " + fe.Param() + " or more"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
