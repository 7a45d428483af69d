package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Init configures the global validator used by gin's binding: JSON tag names
// in error output plus a couple of local aliases.
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterAlias("pwd", "min=8")
		v.RegisterAlias("uname", "min=3,alphanum,lowercase")
	}
}

// ToDetails converts binding/validation errors into a map[field]message for
// the API error payload.
func ToDetails(err error) map[string]string {
	if err == nil {
		return nil
	}

	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	if errors.As(err, &se) || errors.As(err, &ute) {
		return map[string]string{"payload": "invalid json"}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = fieldMessage(fe)
		}
		return out
	}

	return map[string]string{"payload": "invalid payload"}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters long"
	case "max":
		return "must be at most " + fe.Param() + " characters long"
	case "alphanum":
		return "must contain alphanumeric characters only"
	case "lowercase":
		return "must be in lowercase"
	case "pwd":
		return "must be at least 8 characters long"
	case "uname":
		return "must be a lowercase alphanumeric name of at least 3 characters"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("validation failed for '%s' with parameter '%s'", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("validation failed for '%s'", fe.Tag())
	}
}
