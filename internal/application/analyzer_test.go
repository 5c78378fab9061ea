package application

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gavel-ratings/infrastructure/extraction"
	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
	"github.com/ahrav/go-gavel-ratings/internal/testutils"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type analyzerFixture struct {
	analyzer  *Analyzer
	driver    *Driver
	generator *testutils.MockTextGenerator
	store     Store
}

func newAnalyzerFixture(t *testing.T, mutate func(*AnalysisConfig)) *analyzerFixture {
	t.Helper()
	store, _ := newTestStore(t)
	d := newTestDriver(t, store)
	c, err := NewConsolidator(store)
	require.NoError(t, err)

	cfg := DefaultConfig().Analysis
	if mutate != nil {
		mutate(&cfg)
	}
	gen := testutils.NewMockTextGenerator("mock-model")
	a, err := NewAnalyzer(AnalyzerDeps{
		Driver:       d,
		Consolidator: c,
		Generator:    gen,
		Extractor:    extraction.New(),
	}, cfg)
	require.NoError(t, err)
	return &analyzerFixture{analyzer: a, driver: d, generator: gen, store: store}
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name     string
		courses  []string
		feedback string
		contains []string
		excludes []string
	}{
		{
			name:    "with courses",
			courses: []string{"CSE110", "CSE220"},
			contains: []string{
				"Look ONLY for reviews of DR ALICE's courses: CSE110, CSE220.",
				"Course: CSE110, CSE220",
			},
			excludes: []string{"FEEDBACK TO ANALYZE"},
		},
		{
			name:     "without courses",
			feedback: "  great lectures  ",
			contains: []string{
				"Look ONLY for mentions and reviews of DR ALICE.",
				"Course: All Courses",
				"FEEDBACK TO ANALYZE:\ngreat lectures\n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := BuildPrompt("DR ALICE", tt.courses, tt.feedback)
			require.NoError(t, err)

			common := []string{
				"You are analyzing student feedback about faculty member DR ALICE.",
				"respond with exactly " + extraction.NoFeedbackSentinel,
				"1. Teaching effectiveness: [X]/5",
				"2. Student engagement: [X]/5",
				"3. Clarity of presentation: [X]/5",
				"4. Overall professionalism: [X]/5",
				"OVERALL RATING FOR DR ALICE: [X]/5",
				"FINAL RECOMMENDATION:",
				"Default to 3.0 ONLY if there's no clear evidence",
			}
			for _, s := range append(common, tt.contains...) {
				assert.Contains(t, prompt, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, prompt, s)
			}
		})
	}
}

func TestAnalyzer_AnalyzeText(t *testing.T) {
	fx := newAnalyzerFixture(t, nil)
	ctx := context.Background()
	fx.generator.AddResponse("DR ALICE",
		testutils.ReviewTextWithOverall("DR ALICE", testutils.Scores{4, 3, 2, 5}, 3.0, "Take the course."))

	res, err := fx.analyzer.AnalyzeText(ctx, AnalysisRequest{
		FacultyName: "dr alice",
		CourseCodes: []string{"cse110", "CSE220"},
		Text:        "lectures were clear, exams were hard",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Ratings{TeachingEffectiveness: 4, StudentEngagement: 3, Clarity: 2, Professionalism: 5}, res.Ratings)
	assert.Equal(t, 3.0, res.Overall, "explicit overall wins over the mean")
	assert.Equal(t, "Take the course.", res.Recommendation)
	assert.Contains(t, res.Report, "FACULTY REVIEW: DR ALICE\nCourse: CSE110\n")
	assert.Contains(t, res.Report, "1. Teaching effectiveness: 4/5")
	assert.Contains(t, res.Report, "OVERALL RATING FOR DR ALICE: 3/5")
	assert.True(t, strings.HasSuffix(res.Report, "FINAL RECOMMENDATION:\nTake the course.\n==========================="))
	assert.Nil(t, res.Consolidation)

	reviews, err := fx.driver.ListReviews(ctx, res.FacultyID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, res.ReviewID, reviews[0].ID)
	assert.Equal(t, "CSE110", reviews[0].CourseCode)
	assert.Equal(t, domain.SourceGeminiAnalysis, reviews[0].SourceType)
	assert.Contains(t, reviews[0].Feedback, "DETAILED RATINGS FOR DR ALICE")

	agg, err := fx.driver.GetAggregates(ctx, res.FacultyID)
	require.NoError(t, err)
	assert.Equal(t, 3.5, agg.OverallRating, "stored overall is the mean of the stored sub-averages")

	calls := fx.generator.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "lectures were clear, exams were hard")
	assert.Empty(t, calls[0].Images)
}

func TestAnalyzer_MissingRatings(t *testing.T) {
	partial := "Teaching effectiveness: 4/5\nClarity of presentation: 2/5\n"
	none := "The feedback was mostly about parking.\n"

	tests := []struct {
		name    string
		policy  string
		reply   string
		want    domain.Ratings
		wantErr error
	}{
		{
			name:   "reject policy fills gaps with the overall",
			policy: "reject",
			reply:  partial,
			want:   domain.Ratings{TeachingEffectiveness: 4, StudentEngagement: 3, Clarity: 2, Professionalism: 3},
		},
		{
			name:    "reject policy refuses empty results",
			policy:  "reject",
			reply:   none,
			wantErr: domain.ErrInsufficientEvidence,
		},
		{
			name:   "neutral policy fills gaps with three",
			policy: "neutral",
			reply:  partial,
			want:   domain.Ratings{TeachingEffectiveness: 4, StudentEngagement: 3, Clarity: 2, Professionalism: 3},
		},
		{
			name:   "neutral policy accepts empty results",
			policy: "neutral",
			reply:  none,
			want:   domain.Ratings{TeachingEffectiveness: 3, StudentEngagement: 3, Clarity: 3, Professionalism: 3},
		},
		{
			name:    "no feedback sentinel",
			policy:  "neutral",
			reply:   extraction.NoFeedbackSentinel,
			wantErr: domain.ErrNoFeedbackFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newAnalyzerFixture(t, func(c *AnalysisConfig) { c.MissingRatingsPolicy = tt.policy })
			fx.generator.AddResponse("", tt.reply)
			ctx := context.Background()

			res, err := fx.analyzer.AnalyzeText(ctx, AnalysisRequest{FacultyName: "dr bob", Text: "feedback"})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				n, err := fx.store.Faculty.Count(ctx)
				require.NoError(t, err)
				assert.Zero(t, n, "rejected analyses must not create faculty")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Ratings)

			reviews, err := fx.driver.ListReviews(ctx, res.FacultyID)
			require.NoError(t, err)
			require.Len(t, reviews, 1)
			assert.Equal(t, domain.UnknownCourse, reviews[0].CourseCode)
			assert.Empty(t, reviews[0].Recommendation)
		})
	}
}

func TestAnalyzer_GeneratorFailure(t *testing.T) {
	fx := newAnalyzerFixture(t, nil)
	ctx := context.Background()
	fx.generator.SetError(ports.ErrServiceUnavailable)

	_, err := fx.analyzer.AnalyzeText(ctx, AnalysisRequest{FacultyName: "dr carol", Text: "feedback"})
	require.ErrorIs(t, err, ports.ErrServiceUnavailable)

	n, err := fx.store.Faculty.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAnalyzer_Validation(t *testing.T) {
	fx := newAnalyzerFixture(t, func(c *AnalysisConfig) {
		c.MaxImages = 2
		c.MaxImageBytes = 64
	})
	ctx := context.Background()
	png := ports.Image{Data: pngHeader, Name: "a.png"}

	textTests := []struct {
		name string
		req  AnalysisRequest
	}{
		{"short name", AnalysisRequest{FacultyName: "A", Text: "x"}},
		{"blank text", AnalysisRequest{FacultyName: "dr dan", Text: "  "}},
		{"course with spaces", AnalysisRequest{FacultyName: "dr dan", Text: "x", CourseCodes: []string{"CSE 110"}}},
	}
	for _, tt := range textTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.analyzer.AnalyzeText(ctx, tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	imageTests := []struct {
		name   string
		images []ports.Image
	}{
		{"no images", nil},
		{"too many images", []ports.Image{png, png, png}},
		{"too large", []ports.Image{{Data: append(bytes.Clone(pngHeader), make([]byte, 64)...)}}},
		{"not an image", []ports.Image{{Data: []byte("plain text, not a screenshot")}}},
		{"empty image", []ports.Image{{Name: "empty.png"}}},
	}
	for _, tt := range imageTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.analyzer.AnalyzeScreenshots(ctx, AnalysisRequest{FacultyName: "dr dan", Images: tt.images})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	assert.Empty(t, fx.generator.Calls(), "invalid requests never reach the generator")
}

func TestAnalyzer_AnalyzeScreenshots(t *testing.T) {
	fx := newAnalyzerFixture(t, nil)
	ctx := context.Background()

	res, err := fx.analyzer.AnalyzeScreenshots(ctx, AnalysisRequest{
		FacultyName: "dr erin",
		CourseCodes: []string{"CSE330"},
		Images:      []ports.Image{{Data: pngHeader, Name: "shot.png"}},
	})
	require.NoError(t, err)

	calls := fx.generator.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Images, 1)
	assert.Equal(t, "image/png", calls[0].Images[0].MIMEType)
	assert.NotContains(t, calls[0].Prompt, "FEEDBACK TO ANALYZE")

	reviews, err := fx.driver.ListReviews(ctx, res.FacultyID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, domain.SourceScreenshotAnalysis, reviews[0].SourceType)
	assert.Equal(t, "Recommended for motivated students.", reviews[0].Recommendation)
	assert.Equal(t, 4.0, res.Overall, "overall falls back to the mean without an explicit line")
}

func TestAnalyzer_AutoConsolidate(t *testing.T) {
	fx := newAnalyzerFixture(t, func(c *AnalysisConfig) { c.AutoConsolidate = true })
	ctx := context.Background()

	first := mustFaculty(t, fx.driver, "dr frank")
	mustFaculty(t, fx.driver, "dr frank")

	res, err := fx.analyzer.AnalyzeText(ctx, AnalysisRequest{FacultyName: "Dr Frank", Text: "feedback"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, res.FacultyID)
	require.NotNil(t, res.Consolidation)
	assert.Equal(t, 1, res.Consolidation.MergedCount)

	n, err := fx.store.Faculty.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNewAnalyzerRequiresCollaborators(t *testing.T) {
	store, _ := newTestStore(t)
	d := newTestDriver(t, store)
	gen := testutils.NewMockTextGenerator("m")
	cfg := DefaultConfig().Analysis

	_, err := NewAnalyzer(AnalyzerDeps{Driver: d, Generator: gen}, cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	auto := cfg
	auto.AutoConsolidate = true
	_, err = NewAnalyzer(AnalyzerDeps{Driver: d, Generator: gen, Extractor: extraction.New()}, auto)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	bad := cfg
	bad.MissingRatingsPolicy = "guess"
	_, err = NewAnalyzer(AnalyzerDeps{Driver: d, Generator: gen, Extractor: extraction.New()}, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestAnalyzer_LoadImages(t *testing.T) {
	fx := newAnalyzerFixture(t, func(c *AnalysisConfig) { c.MaxImageBytes = 1024 })
	ctx := context.Background()
	dir := t.TempDir()

	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o600))
		return p
	}
	a := write("a.png", pngHeader)
	b := write("b.png", pngHeader)
	txt := write("notes.txt", []byte("not an image"))
	big := write("big.png", append(bytes.Clone(pngHeader), make([]byte, 2048)...))

	images, err := fx.analyzer.LoadImages(ctx, []string{a, b})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "a.png", images[0].Name)
	assert.Equal(t, "image/png", images[1].MIMEType)

	_, err = fx.analyzer.LoadImages(ctx, []string{a, txt})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = fx.analyzer.LoadImages(ctx, []string{big})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = fx.analyzer.LoadImages(ctx, []string{filepath.Join(dir, "missing.png")})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseCourseCodes(t *testing.T) {
	assert.Equal(t, []string{"CSE110", "CSE220"}, ParseCourseCodes(" cse110, ,CSE220 ,"))
	assert.Nil(t, ParseCourseCodes(""))
}
