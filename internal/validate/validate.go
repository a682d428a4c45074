package validate

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct validates a request payload against its `validate` tags and returns
// a field → problem map suitable for a 422 body, or nil when clean.
func Struct(s any) map[string]string {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	out := map[string]string{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["request"] = "invalid payload"
		return out
	}
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			out[field] = "The " + field + " field is required."
		case "email":
			out[field] = "The " + field + " must be a valid email address."
		case "min":
			out[field] = "The " + field + " must be at least " + fe.Param() + " characters."
		case "max":
			out[field] = "The " + field + " may not be greater than " + fe.Param() + "."
		case "oneof":
			out[field] = "The selected " + field + " is invalid."
		default:
			out[field] = "The " + field + " is invalid."
		}
	}
	return out
}
