package testutils

import (
	"fmt"
	"strings"
)

// Scores are the four sub-ratings in display order: teaching effectiveness,
// student engagement, clarity of presentation and overall professionalism.
type Scores [4]float64

// ReviewText renders a model reply in the layout the extractor parses. The
// overall line is omitted; use ReviewTextWithOverall to include one.
func ReviewText(name string, s Scores, recommendation string) string {
	return reviewText(name, s, nil, recommendation)
}

// ReviewTextWithOverall is ReviewText with an explicit overall rating line.
func ReviewTextWithOverall(name string, s Scores, overall float64, recommendation string) string {
	return reviewText(name, s, &overall, recommendation)
}

func reviewText(name string, s Scores, overall *float64, recommendation string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Faculty Review Analysis\n===========================\nFACULTY REVIEW: %s\n", name)
	b.WriteString("===========================\n\n")
	fmt.Fprintf(&b, "DETAILED RATINGS FOR %s:\n", name)
	fmt.Fprintf(&b, "1. Teaching effectiveness: %g/5\n- Explains concepts with examples.\n\n", s[0])
	fmt.Fprintf(&b, "2. Student engagement: %g/5\n- Encourages questions.\n\n", s[1])
	fmt.Fprintf(&b, "3. Clarity of presentation: %g/5\n- Slides are well organized.\n\n", s[2])
	fmt.Fprintf(&b, "4. Overall professionalism: %g/5\n- Punctual and fair.\n\n", s[3])
	if overall != nil {
		fmt.Fprintf(&b, "===========================\nOVERALL RATING FOR %s: %g/5\n", name, *overall)
	}
	b.WriteString("===========================\n\n")
	b.WriteString("STUDENT FEEDBACK SUMMARY:\nPositive Points:\n- Helpful office hours\n\n")
	fmt.Fprintf(&b, "FINAL RECOMMENDATION:\n%s\n", recommendation)
	return b.String()
}
