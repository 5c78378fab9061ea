package domain

import (
	"math"
	"strings"
)

// Rating bounds. Every sub-rating and overall rating lives on a 0–5 scale.
const (
	MinRating = 0.0
	MaxRating = 5.0

	// NeutralRating is the value the analysis prompt tells the model to
	// use when a dimension has no evidence.
	NeutralRating = 3.0
)

// Dimension identifies one of the four rated aspects of teaching.
type Dimension string

// The four rating dimensions in their canonical order.
const (
	DimensionTeachingEffectiveness Dimension = "teaching_effectiveness"
	DimensionStudentEngagement     Dimension = "student_engagement"
	DimensionClarity               Dimension = "clarity"
	DimensionProfessionalism       Dimension = "professionalism"
)

// Dimensions lists every dimension in canonical order.
var Dimensions = []Dimension{
	DimensionTeachingEffectiveness,
	DimensionStudentEngagement,
	DimensionClarity,
	DimensionProfessionalism,
}

// Label returns the human-readable label used in generated reports.
func (d Dimension) Label() string {
	switch d {
	case DimensionTeachingEffectiveness:
		return "Teaching effectiveness"
	case DimensionStudentEngagement:
		return "Student engagement"
	case DimensionClarity:
		return "Clarity of presentation"
	case DimensionProfessionalism:
		return "Overall professionalism"
	default:
		return string(d)
	}
}

// ValidRating reports whether v is a finite number inside the rating scale.
func ValidRating(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= MinRating && v <= MaxRating
}

// Round2 rounds v half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Ratings holds the four required sub-ratings of a persisted review.
type Ratings struct {
	TeachingEffectiveness float64 `json:"teaching_effectiveness"`
	StudentEngagement     float64 `json:"student_engagement"`
	Clarity               float64 `json:"clarity"`
	Professionalism       float64 `json:"professionalism"`
}

// Get returns the value stored for dimension d.
func (r Ratings) Get(d Dimension) float64 {
	switch d {
	case DimensionTeachingEffectiveness:
		return r.TeachingEffectiveness
	case DimensionStudentEngagement:
		return r.StudentEngagement
	case DimensionClarity:
		return r.Clarity
	case DimensionProfessionalism:
		return r.Professionalism
	default:
		return 0
	}
}

// Mean returns the arithmetic mean of the four sub-ratings.
func (r Ratings) Mean() float64 {
	return (r.TeachingEffectiveness + r.StudentEngagement + r.Clarity + r.Professionalism) / 4
}

// RatingResult is the output of parsing one generated review. Any field may
// be absent (nil) when the corresponding line was missing or malformed.
type RatingResult struct {
	TeachingEffectiveness *float64 `json:"teaching_effectiveness"`
	StudentEngagement     *float64 `json:"student_engagement"`
	Clarity               *float64 `json:"clarity"`
	Professionalism       *float64 `json:"professionalism"`

	// Overall is the explicit overall rating when present, otherwise the
	// mean of the sub-ratings that were found.
	Overall *float64 `json:"overall"`

	// Recommendation is the trimmed text of the final recommendation block.
	Recommendation *string `json:"recommendation,omitempty"`
}

// Get returns the extracted value for d, or nil when it is absent.
func (r RatingResult) Get(d Dimension) *float64 {
	switch d {
	case DimensionTeachingEffectiveness:
		return r.TeachingEffectiveness
	case DimensionStudentEngagement:
		return r.StudentEngagement
	case DimensionClarity:
		return r.Clarity
	case DimensionProfessionalism:
		return r.Professionalism
	default:
		return nil
	}
}

// Set stores v for dimension d.
func (r *RatingResult) Set(d Dimension, v *float64) {
	switch d {
	case DimensionTeachingEffectiveness:
		r.TeachingEffectiveness = v
	case DimensionStudentEngagement:
		r.StudentEngagement = v
	case DimensionClarity:
		r.Clarity = v
	case DimensionProfessionalism:
		r.Professionalism = v
	}
}

// Missing lists the dimensions that could not be extracted.
// A non-empty result means the extraction was partial.
func (r RatingResult) Missing() []Dimension {
	var missing []Dimension
	for _, d := range Dimensions {
		if r.Get(d) == nil {
			missing = append(missing, d)
		}
	}
	return missing
}

// Complete reports whether all four sub-ratings were extracted.
func (r RatingResult) Complete() bool { return len(r.Missing()) == 0 }

// Empty reports whether no sub-rating was extracted.
func (r RatingResult) Empty() bool { return len(r.Missing()) == len(Dimensions) }

// MissingRatingsPolicy selects how absent sub-ratings are handled before a
// parsed result becomes a persisted review.
type MissingRatingsPolicy string

const (
	// PolicyReject refuses results with no sub-ratings at all and fills
	// partial gaps with the extracted overall rating.
	PolicyReject MissingRatingsPolicy = "reject"

	// PolicyNeutral fills every missing dimension with NeutralRating.
	PolicyNeutral MissingRatingsPolicy = "neutral"
)

// Resolve turns a parsed result into four concrete ratings under policy p.
func (p MissingRatingsPolicy) Resolve(r RatingResult) (Ratings, error) {
	fill := NeutralRating
	if p != PolicyNeutral {
		if r.Empty() {
			return Ratings{}, ErrInsufficientEvidence
		}
		// Overall is never nil when at least one dimension was found.
		fill = *r.Overall
	}

	value := func(d Dimension) float64 {
		if v := r.Get(d); v != nil {
			return *v
		}
		return fill
	}
	return Ratings{
		TeachingEffectiveness: value(DimensionTeachingEffectiveness),
		StudentEngagement:     value(DimensionStudentEngagement),
		Clarity:               value(DimensionClarity),
		Professionalism:       value(DimensionProfessionalism),
	}, nil
}

// ParseMissingRatingsPolicy converts a configuration string to a policy.
func ParseMissingRatingsPolicy(s string) (MissingRatingsPolicy, error) {
	switch p := MissingRatingsPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyNeutral:
		return PolicyNeutral, nil
	default:
		return "", ErrInvalidConfiguration
	}
}
