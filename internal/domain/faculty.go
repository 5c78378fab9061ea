package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MinFacultyNameLength is the shortest accepted faculty name after trimming.
const MinFacultyNameLength = 2

// UnknownCourse is recorded when an analysis request names no course.
const UnknownCourse = "UNKNOWN"

// Faculty is a named instructor record with cached review aggregates.
// Names are not unique; DuplicateConsolidator merges records that share one.
type Faculty struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	Aggregates
}

// NormalizeName trims surrounding whitespace, collapses interior runs of
// whitespace and upper-cases the name. Two names refer to the same faculty
// identity exactly when their normalized forms are equal.
func NormalizeName(name string) string {
	return cases.Upper(language.Und).String(strings.Join(strings.Fields(name), " "))
}

// NormalizeCourseCode upper-cases and trims a course code.
func NormalizeCourseCode(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}

// ValidateFacultyName checks a raw faculty name before it is normalized.
func ValidateFacultyName(name string) error {
	verr := NewValidationError("Faculty")
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		verr.AddError("name is required")
	case utf8.RuneCountInString(trimmed) < MinFacultyNameLength:
		verr.AddErrorf("name must be at least %d characters", MinFacultyNameLength)
	}
	return verr.OrNil()
}
