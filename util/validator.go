package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwise1/waste_patrol/util/values"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("latitude", validateLatitude)
	validate.RegisterValidation("longitude", validateLongitude)
	validate.RegisterValidation("role", oneOf(values.RoleCitizen, values.RoleAuthority, values.RoleAdmin))
	validate.RegisterValidation("report_status", oneOf(values.StatusPending, values.StatusInProgress, values.StatusResolved, values.StatusRejected))
	validate.RegisterValidation("priority", oneOf(values.PriorityLow, values.PriorityMedium, values.PriorityHigh, values.PriorityUrgent))
}

func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90 && lat <= 90
}

func validateLongitude(fl validator.FieldLevel) bool {
	lon := fl.Field().Float()
	return lon >= -180 && lon <= 180
}

func oneOf(allowed ...string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, a := range allowed {
			if v == a {
				return true
			}
		}
		return false
	}
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidateVar checks a single value against a tag such as "role".
func ValidateVar(v interface{}, tag string) error {
	return validate.Var(v, tag)
}

// ValidationMessages flattens validator errors into field -> message.
// It returns nil when err is not a validation error.
func ValidationMessages(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := toSnake(fe.Field())
		switch fe.Tag() {
		case "required":
			out[field] = "is required"
		case "min":
			out[field] = fmt.Sprintf("must be at least %s characters", fe.Param())
		case "max":
			out[field] = fmt.Sprintf("must be at most %s characters", fe.Param())
		case "email":
			out[field] = "must be a valid email address"
		case "latitude":
			out[field] = "must be between -90 and 90"
		case "longitude":
			out[field] = "must be between -180 and 180"
		case "oneof":
			out[field] = "must be one of: " + fe.Param()
		default:
			out[field] = "is invalid"
		}
	}
	return out
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
