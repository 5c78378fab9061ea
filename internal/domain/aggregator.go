package domain

// Aggregates are the per-faculty averages derived from its reviews.
// OverallRating is always the mean of the four dimension averages, and a
// faculty with no reviews has every field equal to zero.
type Aggregates struct {
	AvgTeachingEffectiveness float64 `json:"avg_teaching_effectiveness"`
	AvgStudentEngagement     float64 `json:"avg_student_engagement"`
	AvgClarity               float64 `json:"avg_clarity"`
	AvgProfessionalism       float64 `json:"avg_professionalism"`
	OverallRating            float64 `json:"overall_rating"`
	TotalReviews             int     `json:"total_reviews"`
}

// Averages returns the four dimension averages as a Ratings value.
func (a Aggregates) Averages() Ratings {
	return Ratings{
		TeachingEffectiveness: a.AvgTeachingEffectiveness,
		StudentEngagement:     a.AvgStudentEngagement,
		Clarity:               a.AvgClarity,
		Professionalism:       a.AvgProfessionalism,
	}
}

// ComputeAggregates averages every review in reviews without rounding.
//
// The result is what RecomputeAll persists on the faculty record:
//
//	avg_d   = sum(review.d) / len(reviews)   for each dimension d
//	overall = (avg_te + avg_se + avg_cl + avg_pr) / 4
//
// An empty slice yields the zero Aggregates.
func ComputeAggregates(reviews []Review) Aggregates {
	if len(reviews) == 0 {
		return Aggregates{}
	}

	var sum Ratings
	for _, r := range reviews {
		sum.TeachingEffectiveness += r.Ratings.TeachingEffectiveness
		sum.StudentEngagement += r.Ratings.StudentEngagement
		sum.Clarity += r.Ratings.Clarity
		sum.Professionalism += r.Ratings.Professionalism
	}

	n := float64(len(reviews))
	avg := Ratings{
		TeachingEffectiveness: sum.TeachingEffectiveness / n,
		StudentEngagement:     sum.StudentEngagement / n,
		Clarity:               sum.Clarity / n,
		Professionalism:       sum.Professionalism / n,
	}
	return Aggregates{
		AvgTeachingEffectiveness: avg.TeachingEffectiveness,
		AvgStudentEngagement:     avg.StudentEngagement,
		AvgClarity:               avg.Clarity,
		AvgProfessionalism:       avg.Professionalism,
		OverallRating:            avg.Mean(),
		TotalReviews:             len(reviews),
	}
}

// RoundedAggregates averages reviews for display: each dimension is rounded
// to two decimals and the overall is the rounded mean of those rounded
// values.
func RoundedAggregates(reviews []Review) Aggregates {
	a := ComputeAggregates(reviews)
	if a.TotalReviews == 0 {
		return a
	}
	a.AvgTeachingEffectiveness = Round2(a.AvgTeachingEffectiveness)
	a.AvgStudentEngagement = Round2(a.AvgStudentEngagement)
	a.AvgClarity = Round2(a.AvgClarity)
	a.AvgProfessionalism = Round2(a.AvgProfessionalism)
	a.OverallRating = Round2(a.Averages().Mean())
	return a
}

// FilteredAggregates returns the rounded averages of only the reviews whose
// source type equals source. The input is not modified.
func FilteredAggregates(reviews []Review, source SourceType) Aggregates {
	subset := make([]Review, 0, len(reviews))
	for _, r := range reviews {
		if r.SourceType == source {
			subset = append(subset, r)
		}
	}
	return RoundedAggregates(subset)
}
