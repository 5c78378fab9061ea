// Package extraction parses the fixed-layout review text produced by the
// generative model into numeric ratings.
//
// The expected layout carries one line per dimension,
//
//	1. Teaching effectiveness: 4.5/5
//	2. Student engagement: 4/5
//	3. Clarity of presentation: 3.5/5
//	4. Overall professionalism: 5/5
//
// an overall line such as "OVERALL RATING FOR DR. ARD: 4.3/5", and a
// "FINAL RECOMMENDATION:" block terminated by a rule of three or more '='
// characters or the end of the text. Anything else in the text is ignored.
package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ahrav/go-gavel-ratings/internal/domain"
)

// NoFeedbackSentinel is emitted by the model when the input held nothing
// about the requested faculty.
const NoFeedbackSentinel = "NO_FEEDBACK_FOUND"

const recommendationMarker = "FINAL RECOMMENDATION:"

var (
	dimensionPatterns = map[domain.Dimension]*regexp.Regexp{
		domain.DimensionTeachingEffectiveness: regexp.MustCompile(`(?i)Teaching effectiveness:\s*([\d.]+)/5`),
		domain.DimensionStudentEngagement:     regexp.MustCompile(`(?i)Student engagement:\s*([\d.]+)/5`),
		domain.DimensionClarity:               regexp.MustCompile(`(?i)Clarity of presentation:\s*([\d.]+)/5`),
		domain.DimensionProfessionalism:       regexp.MustCompile(`(?i)Overall professionalism:\s*([\d.]+)/5`),
	}

	overallPattern = regexp.MustCompile(`(?i)OVERALL RATING.*?:\s*([\d.]+)/5`)

	// recommendationStart consumes the marker and the whitespace after it.
	recommendationStart = regexp.MustCompile(regexp.QuoteMeta(recommendationMarker) + `\s*`)

	ruleLine = regexp.MustCompile(`={3,}`)
)

// Extractor turns generated review text into a domain.RatingResult.
// The zero value is ready to use and safe for concurrent use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor { return &Extractor{} }

// Extract parses text. It returns domain.ErrNoFeedbackFound when the text
// carries the no-feedback sentinel. Otherwise it never fails: dimensions
// that are missing, malformed or outside 0–5 are simply absent from the
// result, and callers inspect RatingResult.Missing to detect a partial
// extraction.
func (e *Extractor) Extract(text string) (domain.RatingResult, error) {
	if strings.Contains(text, NoFeedbackSentinel) {
		return domain.RatingResult{}, domain.ErrNoFeedbackFound
	}

	var result domain.RatingResult
	var found []float64
	for _, d := range domain.Dimensions {
		if v, ok := matchRating(dimensionPatterns[d], text); ok {
			result.Set(d, &v)
			found = append(found, v)
		}
	}

	if v, ok := matchRating(overallPattern, text); ok {
		result.Overall = &v
	} else if len(found) > 0 {
		mean := sum(found) / float64(len(found))
		result.Overall = &mean
	}

	result.Recommendation = extractRecommendation(text)
	return result, nil
}

// Extract parses text with a zero Extractor.
func Extract(text string) (domain.RatingResult, error) {
	return (&Extractor{}).Extract(text)
}

// matchRating returns the first numeric capture of re in text when it
// parses as a float inside the rating scale.
func matchRating(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || !domain.ValidRating(v) {
		return 0, false
	}
	return v, true
}

// extractRecommendation returns the trimmed text between the recommendation
// marker and the next '=' rule, or nil when the block is absent or empty.
func extractRecommendation(text string) *string {
	loc := recommendationStart.FindStringIndex(text)
	if loc == nil {
		return nil
	}
	rest := text[loc[1]:]
	if end := ruleLine.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	rec := strings.TrimSpace(rest)
	if rec == "" {
		return nil
	}
	return &rec
}

func sum(vs []float64) float64 {
	var total float64
	for _, v := range vs {
		total += v
	}
	return total
}
