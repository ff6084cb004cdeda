package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// validationErrorBody converts a binding failure into the API's validation
// error shape: {message: "Validation error", errors: [{field, message}]}.
func validationErrorBody(err error) gin.H {
	var fieldErrors validator.ValidationErrors

	if !errors.As(err, &fieldErrors) {
		return gin.H{"message": "Validation error"}
	}

	details := make([]gin.H, 0, len(fieldErrors))

	for _, fe := range fieldErrors {
		details = append(details, gin.H{
			"field":   strings.ToLower(fe.Field()),
			"message": fieldMessage(fe),
		})
	}

	return gin.H{"message": "Validation error", "errors": details}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		if fe.Field() == "Password" {
			return "Password must be at least 6 characters"
		}
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " too long"
	case "oneof":
		return "Invalid " + strings.ToLower(fe.Field())
	default:
		return "Invalid " + strings.ToLower(fe.Field())
	}
}
