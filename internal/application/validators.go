package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-gavel-ratings/internal/domain"
)

// maxCourseCodeLength bounds a course code after trimming.
const maxCourseCodeLength = 32

// RegisterValidators adds the service's custom tags to v:
//
//   - ratingpolicy: a domain.MissingRatingsPolicy ("", "reject", "neutral")
//   - sourcetype:   a known domain.SourceType, empty allowed
//   - facultyname:  at least two non-space characters
//   - coursecode:   non-blank, at most 32 characters, no whitespace inside
func RegisterValidators(v *validator.Validate) error {
	validators := map[string]validator.Func{
		"ratingpolicy": validateRatingPolicy,
		"sourcetype":   validateSourceType,
		"facultyname":  validateFacultyName,
		"coursecode":   validateCourseCode,
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

func validateRatingPolicy(fl validator.FieldLevel) bool {
	_, err := domain.ParseMissingRatingsPolicy(fl.Field().String())
	return err == nil
}

func validateSourceType(fl validator.FieldLevel) bool {
	_, err := domain.ParseSourceType(fl.Field().String())
	return err == nil
}

func validateFacultyName(fl validator.FieldLevel) bool {
	return domain.ValidateFacultyName(fl.Field().String()) == nil
}

func validateCourseCode(fl validator.FieldLevel) bool {
	code := strings.TrimSpace(fl.Field().String())
	if code == "" || len(code) > maxCourseCodeLength {
		return false
	}
	return !strings.ContainsAny(code, " \t\r\n")
}

// toValidationError converts validator output into a domain.ValidationError
// with one readable message per failing field.
func toValidationError(entity string, err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := domain.NewValidationError(entity)
	for _, fe := range fieldErrs {
		verr.AddError(describeFieldError(fe))
	}
	return verr
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "facultyname":
		return fmt.Sprintf("%s must be at least %d characters", field, domain.MinFacultyNameLength)
	case "coursecode":
		return field + " must be a non-blank code without spaces"
	case "sourcetype":
		return fmt.Sprintf("%s %q is not a known source type", field, fe.Value())
	case "gte", "lte", "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
