package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gavel-ratings/infrastructure/extraction"
	"github.com/ahrav/go-gavel-ratings/infrastructure/observability"
	"github.com/ahrav/go-gavel-ratings/internal/application"
	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
	"github.com/ahrav/go-gavel-ratings/internal/testutils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testAPI struct {
	router    *gin.Engine
	driver    *application.Driver
	generator *testutils.MockTextGenerator
	metrics   *observability.PrometheusMetrics
}

func newTestAPI(t *testing.T, withAnalyzer bool) *testAPI {
	t.Helper()
	ts := testutils.NewTestStore(t)
	store := application.Store{Faculty: ts.Faculty, Reviews: ts.Reviews, UnitOfWork: ts.UnitOfWork}
	metrics := observability.NewPrometheusMetrics()

	driver, err := application.NewDriver(store, application.WithMetrics(metrics))
	require.NoError(t, err)
	consolidator, err := application.NewConsolidator(store)
	require.NoError(t, err)
	maintenance, err := application.NewMaintenance(store)
	require.NoError(t, err)

	svc := Services{Driver: driver, Consolidator: consolidator, Maintenance: maintenance}
	gen := testutils.NewMockTextGenerator("mock-model")
	if withAnalyzer {
		cfg := application.DefaultConfig().Analysis
		svc.Analyzer, err = application.NewAnalyzer(application.AnalyzerDeps{
			Driver:    driver,
			Generator: gen,
			Extractor: extraction.New(),
		}, cfg)
		require.NoError(t, err)
	}

	router, err := NewRouter(svc,
		WithMetrics(metrics),
		WithMetricsHandler(metrics.Handler()),
		WithHealthCheck(func(context.Context) error { return nil }),
	)
	require.NoError(t, err)
	return &testAPI{router: router, driver: driver, generator: gen, metrics: metrics}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) createFaculty(t *testing.T, name string) domain.Faculty {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/faculty", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Faculty](t, rec)
}

func reviewBody(course string, v float64) map[string]any {
	return map[string]any{
		"course_code":            course,
		"teaching_effectiveness": v,
		"student_engagement":     v,
		"clarity":                v,
		"professionalism":        v,
	}
}

// TestRouter_FacultyAndReviews walks a faculty through review creation,
// aggregate reads and the delete routes.
func TestRouter_FacultyAndReviews(t *testing.T) {
	api := newTestAPI(t, false)
	f := api.createFaculty(t, "  dr   ada lovelace ")
	assert.Equal(t, "DR ADA LOVELACE", f.Name)

	rec := api.do(t, http.MethodPost, fmt.Sprintf("/api/faculty/%d/reviews", f.ID), reviewBody("cs101", 4))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	review := decode[domain.Review](t, rec)
	assert.Equal(t, "CS101", review.CourseCode)
	assert.Equal(t, domain.SourceDirectSubmission, review.SourceType)

	body := reviewBody("CS102", 2)
	body["source_type"] = "test_data"
	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/faculty/%d/reviews", f.ID), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/faculty/%d/aggregates", f.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agg := decode[domain.Aggregates](t, rec)
	assert.Equal(t, 2, agg.TotalReviews)
	assert.InDelta(t, 3.0, agg.OverallRating, 1e-9)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/faculty/%d/aggregates?source=direct_submission", f.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decode[domain.Aggregates](t, rec)
	assert.Equal(t, 1, filtered.TotalReviews)
	assert.InDelta(t, 4.0, filtered.AvgClarity, 1e-9)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/faculty/%d", f.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[application.FacultyDetail](t, rec)
	assert.Len(t, detail.Reviews, 2)

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/faculty/%d/reviews/course/cs102", f.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[deletedResponse](t, rec).Deleted)

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/reviews/%d", review.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/faculty/%d/aggregates", f.ID), nil)
	assert.Equal(t, domain.Aggregates{}, decode[domain.Aggregates](t, rec), "no reviews left means zero aggregates")

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/faculty/%d", f.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/faculty/%d", f.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestRouter_Errors checks status codes and the shared error body.
func TestRouter_Errors(t *testing.T) {
	api := newTestAPI(t, false)
	f := api.createFaculty(t, "Grace Hopper")

	outOfRange := reviewBody("CS101", 6)
	missing := reviewBody("CS101", 3)
	delete(missing, "clarity")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown faculty", http.MethodGet, "/api/faculty/999", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/faculty/abc", nil, http.StatusBadRequest},
		{"zero id", http.MethodDelete, "/api/reviews/0", nil, http.StatusBadRequest},
		{"short name", http.MethodPost, "/api/faculty", map[string]string{"name": "x"}, http.StatusBadRequest},
		{"rating out of range", http.MethodPost, fmt.Sprintf("/api/faculty/%d/reviews", f.ID), outOfRange, http.StatusBadRequest},
		{"rating missing", http.MethodPost, fmt.Sprintf("/api/faculty/%d/reviews", f.ID), missing, http.StatusBadRequest},
		{"review for unknown faculty", http.MethodPost, "/api/faculty/999/reviews", reviewBody("CS101", 3), http.StatusNotFound},
		{"unknown source filter", http.MethodGet, fmt.Sprintf("/api/faculty/%d/aggregates?source=rumor", f.ID), nil, http.StatusBadRequest},
		{"unknown review", http.MethodDelete, "/api/reviews/424242", nil, http.StatusNotFound},
		{"combined view of unknown name", http.MethodGet, "/api/faculty/by-name/NOBODY/reviews", nil, http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/nothing", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			body := decode[errorResponse](t, rec)
			assert.True(t, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

// TestRouter_ConsolidateAndSearch merges duplicates through the API.
func TestRouter_ConsolidateAndSearch(t *testing.T) {
	api := newTestAPI(t, false)
	first := api.createFaculty(t, "Alan Turing")
	second := api.createFaculty(t, "alan turing")
	api.createFaculty(t, "Alonzo Church")

	for i, f := range []domain.Faculty{first, second} {
		rec := api.do(t, http.MethodPost, fmt.Sprintf("/api/faculty/%d/reviews", f.ID), reviewBody("CS10"+fmt.Sprint(i), float64(2+2*i)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := api.do(t, http.MethodGet, "/api/faculty/by-name/alan%20turing/reviews", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[application.CombinedView](t, rec)
	assert.ElementsMatch(t, []uint{first.ID, second.ID}, view.FacultyIDs)
	assert.Equal(t, 2, view.Aggregates.TotalReviews)

	rec = api.do(t, http.MethodGet, "/api/faculty/search/TUR", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, rec)["count"])

	rec = api.do(t, http.MethodPost, "/api/faculty/consolidate/ALAN%20TURING", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[application.ConsolidationResult](t, rec)
	assert.Equal(t, first.ID, res.SurvivorID)
	assert.Equal(t, 1, res.MergedCount)
	assert.Equal(t, int64(1), res.ReviewsMoved)
	require.NotNil(t, res.Aggregates)
	assert.InDelta(t, 3.0, res.Aggregates.OverallRating, 1e-9)

	rec = api.do(t, http.MethodPost, "/api/faculty/consolidate/ALONZO%20CHURCH", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, application.MessageNoConsolidation, decode[application.ConsolidationResult](t, rec).Message)

	rec = api.do(t, http.MethodGet, "/api/faculty", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, rec)["count"])
}

// TestRouter_Maintenance covers the bulk cleanup routes and verify-data.
func TestRouter_Maintenance(t *testing.T) {
	api := newTestAPI(t, false)
	person := api.createFaculty(t, "Real Person")
	fake := api.createFaculty(t, "Test Person")

	rec := api.do(t, http.MethodPost, fmt.Sprintf("/api/faculty/%d/reviews", person.ID), reviewBody("CS101", 5))
	require.Equal(t, http.StatusCreated, rec.Code)
	body := reviewBody("CS101", 1)
	body["source_type"] = "test_data"
	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/faculty/%d/reviews", fake.ID), body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/verify-data", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[application.Stats](t, rec)
	assert.Equal(t, int64(2), stats.FacultyCount)
	assert.Equal(t, int64(2), stats.ReviewCount)

	rec = api.do(t, http.MethodPost, "/api/maintenance/clear-test-data", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := decode[application.CleanupResult](t, rec)
	assert.Equal(t, int64(1), cleared.ReviewsDeleted)
	assert.Equal(t, int64(1), cleared.FacultyDeleted)

	rec = api.do(t, http.MethodPost, "/api/maintenance/dedupe-screenshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[application.CleanupResult](t, rec).ReviewsDeleted)

	rec = api.do(t, http.MethodPost, "/api/maintenance/remove-last-screenshot", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/reviews/course/cs101", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[deletedResponse](t, rec).Deleted)

	rec = api.do(t, http.MethodPost, "/api/reviews/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[application.CleanupResult](t, rec).ReviewsDeleted)
}

// TestRouter_AnalyzeText stores model output as a gemini_analysis review
// and maps analysis failures.
func TestRouter_AnalyzeText(t *testing.T) {
	api := newTestAPI(t, true)

	rec := api.do(t, http.MethodPost, "/api/analyze/text", analyzeTextRequest{
		FacultyName: "Barbara Liskov",
		CourseCodes: "cs201, cs202",
		Text:        "Great lectures, clear slides.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[application.AnalysisResult](t, rec)
	assert.NotZero(t, res.ReviewID)
	assert.InDelta(t, 4.0, res.Overall, 1e-9)
	assert.Contains(t, res.Report, "BARBARA LISKOV")

	calls := api.generator.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Great lectures")

	tests := []struct {
		name     string
		setup    func(*testutils.MockTextGenerator)
		body     analyzeTextRequest
		wantCode int
	}{
		{
			name:     "missing text",
			body:     analyzeTextRequest{FacultyName: "Barbara Liskov"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no feedback sentinel",
			setup:    func(m *testutils.MockTextGenerator) { m.AddResponse("", "NO_FEEDBACK_FOUND") },
			body:     analyzeTextRequest{FacultyName: "Barbara Liskov", Text: "unrelated"},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "nothing parseable",
			setup:    func(m *testutils.MockTextGenerator) { m.AddResponse("", "I cannot rate this person.") },
			body:     analyzeTextRequest{FacultyName: "Barbara Liskov", Text: "meh"},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name: "generator unavailable",
			setup: func(m *testutils.MockTextGenerator) {
				m.SetError(ports.NewLLMError("mock-model", "generate", ports.ErrServiceUnavailable))
			},
			body:     analyzeTextRequest{FacultyName: "Barbara Liskov", Text: "fine"},
			wantCode: http.StatusBadGateway,
		},
		{
			name: "generator rate limited",
			setup: func(m *testutils.MockTextGenerator) {
				m.SetError(ports.NewLLMError("mock-model", "generate", ports.ErrRateLimited))
			},
			body:     analyzeTextRequest{FacultyName: "Barbara Liskov", Text: "fine"},
			wantCode: http.StatusTooManyRequests,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api.generator.Reset()
			if tt.setup != nil {
				tt.setup(api.generator)
			}
			rec := api.do(t, http.MethodPost, "/api/analyze/text", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.True(t, decode[errorResponse](t, rec).Error)
		})
	}
}

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func screenshotForm(t *testing.T, name string, courses []string, images map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("faculty_name", name))
	for _, c := range courses {
		require.NoError(t, w.WriteField("course_codes", c))
	}
	for filename, data := range images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, filename))
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

// TestRouter_AnalyzeScreenshots accepts multipart uploads and sends every
// image to the generator.
func TestRouter_AnalyzeScreenshots(t *testing.T) {
	api := newTestAPI(t, true)

	body, contentType := screenshotForm(t, "Edsger Dijkstra", []string{"cs301"}, map[string][]byte{
		"one.png": pngHeader,
		"two.png": pngHeader,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/screenshots", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	calls := api.generator.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Images, 2)
	assert.Equal(t, "image/png", calls[0].Images[0].MIMEType)

	res := decode[application.AnalysisResult](t, rec)
	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/faculty/%d", res.FacultyID), nil)
	detail := decode[application.FacultyDetail](t, rec)
	require.Len(t, detail.Reviews, 1)
	assert.Equal(t, domain.SourceScreenshotAnalysis, detail.Reviews[0].SourceType)
	assert.Equal(t, "CS301", detail.Reviews[0].CourseCode)

	t.Run("no images", func(t *testing.T) {
		body, contentType := screenshotForm(t, "Edsger Dijkstra", nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/analyze/screenshots", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/analyze/screenshots", map[string]string{"faculty_name": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestRouter_AnalyzerNotConfigured answers 503 without a generator.
func TestRouter_AnalyzerNotConfigured(t *testing.T) {
	api := newTestAPI(t, false)
	rec := api.do(t, http.MethodPost, "/api/analyze/text", analyzeTextRequest{FacultyName: "Someone", Text: "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// TestRouter_RequestID keeps a caller supplied UUID and replaces anything
// else.
func TestRouter_RequestID(t *testing.T) {
	api := newTestAPI(t, false)

	supplied := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, supplied)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, supplied, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	got := rec.Header().Get(RequestIDHeader)
	assert.NotEqual(t, "not-a-uuid", got)
	_, err := uuid.Parse(got)
	assert.NoError(t, err)
}

// TestRouter_HealthAndMetrics serves the probe and the Prometheus registry.
func TestRouter_HealthAndMetrics(t *testing.T) {
	api := newTestAPI(t, false)
	api.createFaculty(t, "Donald Knuth")

	rec := api.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gavel_faculty_created_total 1")
	assert.Contains(t, rec.Body.String(), "gavel_http_request_duration_seconds")

	failing, err := NewRouter(Services{
		Driver:       api.driver,
		Consolidator: mustConsolidator(t),
		Maintenance:  mustMaintenance(t),
	}, WithHealthCheck(func(context.Context) error { return errors.New("db down") }))
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func mustConsolidator(t *testing.T) *application.Consolidator {
	t.Helper()
	ts := testutils.NewTestStore(t)
	c, err := application.NewConsolidator(application.Store{Faculty: ts.Faculty, Reviews: ts.Reviews, UnitOfWork: ts.UnitOfWork})
	require.NoError(t, err)
	return c
}

func mustMaintenance(t *testing.T) *application.Maintenance {
	t.Helper()
	ts := testutils.NewTestStore(t)
	m, err := application.NewMaintenance(application.Store{Faculty: ts.Faculty, Reviews: ts.Reviews, UnitOfWork: ts.UnitOfWork})
	require.NoError(t, err)
	return m
}

// TestNewRouterRequiresServices rejects a partial service set.
func TestNewRouterRequiresServices(t *testing.T) {
	_, err := NewRouter(Services{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewNotFoundError("Faculty", 1), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrNoFeedbackFound, http.StatusUnprocessableEntity},
		{domain.ErrInsufficientEvidence, http.StatusUnprocessableEntity},
		{ports.NewLLMError("m", "generate", ports.ErrTimeout), http.StatusGatewayTimeout},
		{ports.NewLLMError("m", "generate", ports.ErrAuthenticationFailed), http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
