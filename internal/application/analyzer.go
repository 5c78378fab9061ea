package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

const metricAnalyses = "analyses_total"

// allCourses is shown in prompts and reports when no course was named.
const allCourses = "All Courses"

var templateFuncs = template.FuncMap{
	"rating": formatRating,
	"join":   strings.Join,
	"inc":    func(i int) int { return i + 1 },
}

var promptTemplate = template.Must(template.New("prompt").Funcs(templateFuncs).Parse(
	`You are analyzing student feedback about faculty member {{.Name}}.
Some feedback may be short, meme-like, or use slang. Interpret all comments, even if brief or informal, as genuine feedback and extract as much meaning as possible. Do not use the word 'Professor' in your response, as the faculty member's title is unknown.
{{if .Courses}}Look ONLY for reviews of {{.Name}}'s courses: {{join .Courses ", "}}.{{else}}Look ONLY for mentions and reviews of {{.Name}}.{{end}}
If the material contains no feedback about {{.Name}}, respond with exactly {{.Sentinel}} and nothing else.

PRIVACY AND CONFIDENTIALITY REQUIREMENTS:
1. NEVER include or mention any student names in your analysis
2. REDACT or REMOVE any personally identifiable information about students
3. If you encounter student names or personal details, replace them with "[Student]"
4. Focus only on the academic feedback content
5. Do not include specific dates, class times, or other details that could identify students
6. If feedback mentions other faculty members, refer to them as "[Other Faculty]"

IMPORTANT GUIDELINES:
1. Focus on DIRECT STUDENT EXPERIENCES, not second-hand accounts
2. Consider RECENT feedback more heavily than older feedback
3. Look for SPECIFIC examples and incidents (while maintaining privacy)
4. Pay attention to both POSITIVE and NEGATIVE comments
5. Consider CONSISTENCY across multiple reviews
6. If feedback is mixed, it should be reflected in the ratings
7. Default to 3.0 ONLY if there's no clear evidence

REQUIRED OUTPUT FORMAT:
Faculty Review Analysis
===========================
FACULTY REVIEW: {{.Name}}
Course: {{if .Courses}}{{join .Courses ", "}}{{else}}` + allCourses + `{{end}}
===========================

DETAILED RATINGS FOR {{.Name}}:
{{range $i, $label := .Labels}}{{if $i}}
{{end}}{{inc $i}}. {{$label}}: [X]/5
- [Detailed evidence and quotes from student feedback, with all personal information redacted]
{{end}}
===========================
OVERALL RATING FOR {{.Name}}: [X]/5
===========================

STUDENT FEEDBACK SUMMARY FOR {{.Name}}:
Positive Points:
- [List specific positive points with evidence, ensuring student privacy]

Areas for Improvement:
- [List specific areas needing improvement with evidence, ensuring student privacy]

FINAL RECOMMENDATION:
[Clear advice for future students about taking courses with this faculty, maintaining privacy and confidentiality]
{{if .Feedback}}
FEEDBACK TO ANALYZE:
{{.Feedback}}
{{end}}`))

var reportTemplate = template.Must(template.New("report").Funcs(templateFuncs).Parse(
	`Faculty Review Analysis
===========================
FACULTY REVIEW: {{.Name}}
Course: {{.Course}}
===========================

DETAILED RATINGS FOR {{.Name}}:
1. Teaching effectiveness: {{rating .Ratings.TeachingEffectiveness}}/5
2. Student engagement: {{rating .Ratings.StudentEngagement}}/5
3. Clarity of presentation: {{rating .Ratings.Clarity}}/5
4. Overall professionalism: {{rating .Ratings.Professionalism}}/5

===========================
OVERALL RATING FOR {{.Name}}: {{rating .Overall}}/5
===========================

{{.Analysis}}

FINAL RECOMMENDATION:
{{.Recommendation}}
===========================`))

func formatRating(v float64) string {
	return strconv.FormatFloat(domain.Round2(v), 'f', -1, 64)
}

// AnalysisRequest asks for feedback about one faculty to be analyzed. Text
// is used by AnalyzeText and Images by AnalyzeScreenshots.
type AnalysisRequest struct {
	FacultyName string        `json:"faculty_name" validate:"required,facultyname,max=200"`
	CourseCodes []string      `json:"course_codes" validate:"max=20,dive,coursecode"`
	Text        string        `json:"text" validate:"max=200000"`
	Images      []ports.Image `json:"-"`
}

// AnalysisResult is the stored outcome of an accepted analysis.
type AnalysisResult struct {
	FacultyID      uint           `json:"faculty_id"`
	ReviewID       uint           `json:"review_id"`
	Ratings        domain.Ratings `json:"ratings"`
	Overall        float64        `json:"overall"`
	Recommendation string         `json:"recommendation,omitempty"`
	Report         string         `json:"analysis"`
	// Consolidation is set when duplicates were merged after storing.
	Consolidation *ConsolidationResult `json:"consolidation,omitempty"`
}

// AnalyzerDeps are the collaborators of an Analyzer. Consolidator is only
// needed when auto consolidation is enabled.
type AnalyzerDeps struct {
	Driver       *Driver
	Consolidator *Consolidator
	Generator    ports.TextGenerator
	Extractor    ports.RatingExtractor
}

// Analyzer turns free-form feedback into stored reviews: it prompts the
// generator, extracts ratings from the reply, applies the missing-ratings
// policy and submits the result through the Driver.
type Analyzer struct {
	deps     AnalyzerDeps
	cfg      AnalysisConfig
	policy   domain.MissingRatingsPolicy
	validate *validator.Validate
	logger   zerolog.Logger
	metrics  ports.MetricsCollector
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(deps AnalyzerDeps, cfg AnalysisConfig, opts ...Option) (*Analyzer, error) {
	if deps.Driver == nil || deps.Generator == nil || deps.Extractor == nil {
		return nil, fmt.Errorf("analyzer requires driver, generator and extractor: %w", domain.ErrInvalidConfiguration)
	}
	if cfg.AutoConsolidate && deps.Consolidator == nil {
		return nil, fmt.Errorf("auto consolidation requires a consolidator: %w", domain.ErrInvalidConfiguration)
	}
	policy, err := domain.ParseMissingRatingsPolicy(cfg.MissingRatingsPolicy)
	if err != nil {
		return nil, fmt.Errorf("missing ratings policy %q: %w", cfg.MissingRatingsPolicy, err)
	}
	v, err := newValidator()
	if err != nil {
		return nil, err
	}

	o := newOptions(opts)
	return &Analyzer{
		deps:     deps,
		cfg:      cfg,
		policy:   policy,
		validate: v,
		logger:   o.logger.With().Str("component", "analyzer").Logger(),
		metrics:  o.metrics,
	}, nil
}

// ParseCourseCodes splits a comma separated list, normalizing each code and
// dropping blanks.
func ParseCourseCodes(s string) []string {
	var codes []string
	for _, part := range strings.Split(s, ",") {
		if code := domain.NormalizeCourseCode(part); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// BuildPrompt renders the analysis prompt for name and courses. When
// feedback is non-empty it is appended for the model to analyze.
func BuildPrompt(name string, courses []string, feedback string) (string, error) {
	labels := make([]string, len(domain.Dimensions))
	for i, d := range domain.Dimensions {
		labels[i] = d.Label()
	}

	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, struct {
		Name     string
		Courses  []string
		Labels   []string
		Sentinel string
		Feedback string
	}{name, courses, labels, noFeedbackSentinel, strings.TrimSpace(feedback)})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// noFeedbackSentinel must match the marker the extractor recognizes.
const noFeedbackSentinel = "NO_FEEDBACK_FOUND"

// AnalyzeText analyzes pasted feedback text and stores the result as a
// gemini_analysis review.
func (a *Analyzer) AnalyzeText(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if err := a.validateRequest(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" {
		verr := domain.NewValidationError("Analysis")
		verr.AddError("text is required")
		return nil, verr
	}
	return a.analyze(ctx, req, domain.SourceGeminiAnalysis)
}

// AnalyzeScreenshots analyzes up to MaxImages screenshots and stores the
// result as a screenshot_analysis review.
func (a *Analyzer) AnalyzeScreenshots(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if err := a.validateRequest(req); err != nil {
		return nil, err
	}
	verr := domain.NewValidationError("Analysis")
	switch {
	case len(req.Images) == 0:
		verr.AddError("at least one image is required")
	case len(req.Images) > a.cfg.MaxImages:
		verr.AddErrorf("at most %d images are accepted, got %d", a.cfg.MaxImages, len(req.Images))
	}
	for i := range req.Images {
		if err := a.checkImage(&req.Images[i]); err != nil {
			verr.AddError(err.Error())
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return a.analyze(ctx, req, domain.SourceScreenshotAnalysis)
}

func (a *Analyzer) validateRequest(req AnalysisRequest) error {
	return toValidationError("Analysis", a.validate.Struct(req))
}

// checkImage enforces the size limit and fills in a sniffed MIME type when
// none was given.
func (a *Analyzer) checkImage(img *ports.Image) error {
	label := img.Name
	if label == "" {
		label = "image"
	}
	if len(img.Data) == 0 {
		return fmt.Errorf("%s is empty", label)
	}
	if int64(len(img.Data)) > a.cfg.MaxImageBytes {
		return fmt.Errorf("%s exceeds %d bytes", label, a.cfg.MaxImageBytes)
	}
	if img.MIMEType == "" || img.MIMEType == "application/octet-stream" {
		img.MIMEType = http.DetectContentType(img.Data)
	}
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return fmt.Errorf("%s has unsupported type %s", label, img.MIMEType)
	}
	return nil
}

func (a *Analyzer) analyze(ctx context.Context, req AnalysisRequest, source domain.SourceType) (_ *AnalysisResult, err error) {
	ctx, span := startSpan(ctx, "Analyzer.Analyze",
		attribute.String("source_type", string(source)),
		attribute.Int("images", len(req.Images)))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	outcome := "stored"
	defer func() {
		labels := map[string]string{"source_type": string(source), "outcome": outcome}
		a.metrics.RecordCounter(metricAnalyses, 1, labels)
		a.metrics.RecordLatency("analysis", time.Since(start), labels)
	}()

	name := domain.NormalizeName(req.FacultyName)
	courses := make([]string, 0, len(req.CourseCodes))
	for _, c := range req.CourseCodes {
		courses = append(courses, domain.NormalizeCourseCode(c))
	}

	prompt, err := BuildPrompt(name, courses, req.Text)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	text, err := a.deps.Generator.Generate(ctx, prompt, req.Images)
	if err != nil {
		outcome = "generator_error"
		return nil, fmt.Errorf("generate analysis for %q: %w", name, err)
	}

	parsed, err := a.deps.Extractor.Extract(text)
	if err != nil {
		outcome = "no_feedback"
		if errors.Is(err, domain.ErrNoFeedbackFound) {
			a.logger.Info().Str("faculty", name).Msg("no feedback found")
		}
		return nil, err
	}
	if missing := parsed.Missing(); len(missing) > 0 {
		a.logger.Warn().
			Str("faculty", name).
			Int("missing", len(missing)).
			Str("policy", string(a.policy)).
			Msg("incomplete ratings in model output")
	}
	ratings, err := a.policy.Resolve(parsed)
	if err != nil {
		outcome = "insufficient_evidence"
		return nil, err
	}

	var course, recommendation string
	if len(courses) > 0 {
		course = courses[0]
	}
	if parsed.Recommendation != nil {
		recommendation = *parsed.Recommendation
	}

	faculty, review, err := a.deps.Driver.SubmitAnalysis(ctx, AnalysisSubmission{
		FacultyName:    name,
		Department:     a.cfg.DefaultDepartment,
		CourseCode:     course,
		Ratings:        ratings,
		Feedback:       text,
		Recommendation: recommendation,
		SourceType:     source,
	})
	if err != nil {
		outcome = "store_error"
		return nil, err
	}

	overall := ratings.Mean()
	if parsed.Overall != nil {
		overall = *parsed.Overall
	}
	report, err := renderReport(name, courses, ratings, overall, text, recommendation)
	if err != nil {
		outcome = "error"
		return nil, err
	}

	result := &AnalysisResult{
		FacultyID:      faculty.ID,
		ReviewID:       review.ID,
		Ratings:        ratings,
		Overall:        overall,
		Recommendation: recommendation,
		Report:         report,
	}
	if a.cfg.AutoConsolidate {
		cons, err := a.deps.Consolidator.Consolidate(ctx, name)
		if err != nil {
			// The review is already stored; consolidation can be retried.
			a.logger.Error().Err(err).Str("faculty", name).Msg("auto consolidation failed")
		} else {
			result.Consolidation = &cons
		}
	}

	a.logger.Info().
		Str("faculty", name).
		Uint("review_id", review.ID).
		Str("source_type", string(source)).
		Str("model", a.deps.Generator.GetModel()).
		Msg("analysis stored")
	return result, nil
}

func renderReport(name string, courses []string, ratings domain.Ratings, overall float64, analysis, recommendation string) (string, error) {
	course := allCourses
	if len(courses) > 0 {
		course = courses[0]
	}

	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, struct {
		Name           string
		Course         string
		Ratings        domain.Ratings
		Overall        float64
		Analysis       string
		Recommendation string
	}{name, course, ratings, overall, strings.TrimSpace(analysis), recommendation})
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// LoadImages reads the files at paths concurrently. Each file must be an
// image no larger than MaxImageBytes.
func (a *Analyzer) LoadImages(ctx context.Context, paths []string) ([]ports.Image, error) {
	if len(paths) > a.cfg.MaxImages {
		verr := domain.NewValidationError("Analysis")
		verr.AddErrorf("at most %d images are accepted, got %d", a.cfg.MaxImages, len(paths))
		return nil, verr
	}

	images := make([]ports.Image, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if info.Size() > a.cfg.MaxImageBytes {
				return fmt.Errorf("%s exceeds %d bytes: %w", path, a.cfg.MaxImageBytes, domain.ErrValidation)
			}
			data, err := os.ReadFile(filepath.Clean(path))
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			img := ports.Image{Data: data, Name: filepath.Base(path)}
			if err := a.checkImage(&img); err != nil {
				return fmt.Errorf("%w: %w", domain.ErrValidation, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}
