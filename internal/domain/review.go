package domain

import (
	"fmt"
	"time"
)

// SourceType records how a review entered the system.
type SourceType string

const (
	SourceDirectSubmission   SourceType = "direct_submission"
	SourceGeminiAnalysis     SourceType = "gemini_analysis"
	SourceScreenshotAnalysis SourceType = "screenshot_analysis"
	SourceTestData           SourceType = "test_data"
)

// SourceTypes lists every recognized source type.
var SourceTypes = []SourceType{
	SourceDirectSubmission,
	SourceGeminiAnalysis,
	SourceScreenshotAnalysis,
	SourceTestData,
}

// Valid reports whether s is a recognized source type.
func (s SourceType) Valid() bool {
	for _, known := range SourceTypes {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSourceType converts s to a SourceType. The empty string maps to
// SourceDirectSubmission.
func ParseSourceType(s string) (SourceType, error) {
	if s == "" {
		return SourceDirectSubmission, nil
	}
	st := SourceType(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown source type %q: %w", s, ErrValidation)
	}
	return st, nil
}

// Review is one evaluation of one faculty for one course.
// Reviews are immutable once persisted except for re-parenting during
// consolidation.
type Review struct {
	ID             uint        `json:"id"`
	FacultyID      uint        `json:"faculty_id"`
	CourseCode     string      `json:"course_code"`
	Ratings        Ratings     `json:"ratings"`
	Feedback       string      `json:"feedback,omitempty"`
	Recommendation string      `json:"recommendation,omitempty"`
	SourceType     SourceType  `json:"source_type"`
	CreatedAt      time.Time   `json:"created_at"`
	State          ReviewState `json:"-"`
}

// Validate checks the invariants a review must satisfy before it is stored.
func (r *Review) Validate() error {
	verr := NewValidationError("Review")
	if r.FacultyID == 0 {
		verr.AddError("faculty_id is required")
	}
	if r.CourseCode == "" {
		verr.AddError("course_code is required")
	}
	for _, d := range Dimensions {
		if v := r.Ratings.Get(d); !ValidRating(v) {
			verr.AddErrorf("%s must be between %.0f and %.0f, got %v", d, MinRating, MaxRating, v)
		}
	}
	if !r.SourceType.Valid() {
		verr.AddErrorf("unknown source_type %q", r.SourceType)
	}
	return verr.OrNil()
}

// ReviewState is a review's position in its lifecycle.
type ReviewState int

const (
	// ReviewProposed is a review that has been built but not stored.
	ReviewProposed ReviewState = iota
	// ReviewPersisted is a stored review that contributes to aggregates.
	ReviewPersisted
	// ReviewDeleted is terminal.
	ReviewDeleted
)

// String implements fmt.Stringer.
func (s ReviewState) String() string {
	switch s {
	case ReviewProposed:
		return "proposed"
	case ReviewPersisted:
		return "persisted"
	case ReviewDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("ReviewState(%d)", int(s))
	}
}

// Transition moves the review to next, rejecting anything other than
// Proposed -> Persisted -> Deleted.
func (r *Review) Transition(next ReviewState) error {
	ok := (r.State == ReviewProposed && next == ReviewPersisted) ||
		(r.State == ReviewPersisted && next == ReviewDeleted)
	if !ok {
		return &TransitionError{From: r.State, To: next}
	}
	r.State = next
	return nil
}
