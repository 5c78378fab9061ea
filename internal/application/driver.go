package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// Metric names emitted by the driver.
const (
	metricReviewsCreated   = "reviews_created_total"
	metricReviewsDeleted   = "reviews_deleted_total"
	metricFacultyCreated   = "faculty_created_total"
	metricMutationLatency  = "rating_mutation"
	metricOverallHistogram = "review_overall_rating"
)

// ReviewInput is a proposed review as it arrives at the boundary. Ratings
// are pointers so that an omitted rating is distinguishable from zero.
type ReviewInput struct {
	FacultyID             uint     `json:"faculty_id" validate:"required"`
	CourseCode            string   `json:"course_code" validate:"coursecode"`
	TeachingEffectiveness *float64 `json:"teaching_effectiveness" validate:"required,gte=0,lte=5"`
	StudentEngagement     *float64 `json:"student_engagement" validate:"required,gte=0,lte=5"`
	Clarity               *float64 `json:"clarity" validate:"required,gte=0,lte=5"`
	Professionalism       *float64 `json:"professionalism" validate:"required,gte=0,lte=5"`
	Feedback              string   `json:"feedback" validate:"max=50000"`
	Recommendation        string   `json:"recommendation" validate:"max=10000"`
	SourceType            string   `json:"source_type" validate:"sourcetype"`
}

// FacultyInput is a request to create a faculty record.
type FacultyInput struct {
	Name       string `json:"name" validate:"required,facultyname,max=200"`
	Department string `json:"department" validate:"max=200"`
}

// Driver is the entry point for every mutation of the rating store. Each
// mutation runs as one unit of work that also recomputes the aggregates of
// every faculty whose review set changed.
type Driver struct {
	store      Store
	aggregates *AggregateService
	validate   *validator.Validate
	logger     zerolog.Logger
	metrics    ports.MetricsCollector

	// lookups collapses concurrent lookup-or-create calls for one name.
	lookups singleflight.Group
}

// Option configures the logger and metrics of an application service.
type Option func(*options)

type options struct {
	logger  zerolog.Logger
	metrics ports.MetricsCollector
}

func newOptions(opts []Option) options {
	o := options{logger: zerolog.Nop(), metrics: ports.NopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the service metrics collector.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// NewDriver creates a Driver over store.
func NewDriver(store Store, opts ...Option) (*Driver, error) {
	aggregates, err := NewAggregateService(store)
	if err != nil {
		return nil, err
	}
	v, err := newValidator()
	if err != nil {
		return nil, err
	}

	o := newOptions(opts)
	return &Driver{
		store:      store,
		aggregates: aggregates,
		validate:   v,
		logger:     o.logger.With().Str("component", "driver").Logger(),
		metrics:    o.metrics,
	}, nil
}

// Aggregates exposes the driver's aggregate service.
func (d *Driver) Aggregates() *AggregateService { return d.aggregates }

// CreateFaculty always inserts a new record, even when the name is already
// taken. Duplicates are reconciled later by the Consolidator.
func (d *Driver) CreateFaculty(ctx context.Context, in FacultyInput) (*domain.Faculty, error) {
	if err := toValidationError("Faculty", d.validate.Struct(in)); err != nil {
		return nil, err
	}
	f := &domain.Faculty{Name: domain.NormalizeName(in.Name), Department: in.Department}
	if err := d.store.Faculty.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("create faculty %q: %w", f.Name, err)
	}
	d.metrics.RecordCounter(metricFacultyCreated, 1, nil)
	d.logger.Info().Uint("faculty_id", f.ID).Str("name", f.Name).Msg("faculty created")
	return f, nil
}

// LookupOrCreateFaculty returns the lowest-id faculty whose normalized name
// equals name, creating one with zero aggregates when none exists. Repeated
// calls with the same name return the same record.
func (d *Driver) LookupOrCreateFaculty(ctx context.Context, name, department string) (*domain.Faculty, error) {
	if err := domain.ValidateFacultyName(name); err != nil {
		return nil, err
	}
	normalized := domain.NormalizeName(name)

	v, err, _ := d.lookups.Do(normalized, func() (any, error) {
		var f domain.Faculty
		err := d.store.UnitOfWork.WithTx(ctx, func(ctx context.Context) error {
			existing, err := d.store.Faculty.FindByName(ctx, normalized)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				f = existing[0]
				return nil
			}
			f = domain.Faculty{Name: normalized, Department: department}
			if err := d.store.Faculty.Create(ctx, &f); err != nil {
				return err
			}
			d.metrics.RecordCounter(metricFacultyCreated, 1, nil)
			d.logger.Info().Uint("faculty_id", f.ID).Str("name", f.Name).Msg("faculty created on lookup")
			return nil
		})
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("lookup or create faculty %q: %w", normalized, err)
	}
	f := v.(domain.Faculty)
	return &f, nil
}

// GetFaculty returns the faculty with the given id.
func (d *Driver) GetFaculty(ctx context.Context, id uint) (*domain.Faculty, error) {
	return d.store.Faculty.Get(ctx, id)
}

// ListReviews returns the reviews of facultyID, newest first.
func (d *Driver) ListReviews(ctx context.Context, facultyID uint) ([]domain.Review, error) {
	if _, err := d.store.Faculty.Get(ctx, facultyID); err != nil {
		return nil, err
	}
	return d.store.Reviews.List(ctx, ports.ReviewFilter{FacultyIDs: []uint{facultyID}})
}

// CreateReview validates in, persists it and recomputes its faculty's
// aggregates in one unit of work.
func (d *Driver) CreateReview(ctx context.Context, in ReviewInput) (_ *domain.Review, err error) {
	ctx, span := startSpan(ctx, "Driver.CreateReview", attribute.Int64("faculty.id", int64(in.FacultyID)))
	defer func() { endSpan(span, err) }()

	if err := toValidationError("Review", d.validate.Struct(in)); err != nil {
		return nil, err
	}
	source, err := domain.ParseSourceType(in.SourceType)
	if err != nil {
		return nil, err
	}

	review := &domain.Review{
		FacultyID:  in.FacultyID,
		CourseCode: domain.NormalizeCourseCode(in.CourseCode),
		Ratings: domain.Ratings{
			TeachingEffectiveness: *in.TeachingEffectiveness,
			StudentEngagement:     *in.StudentEngagement,
			Clarity:               *in.Clarity,
			Professionalism:       *in.Professionalism,
		},
		Feedback:       in.Feedback,
		Recommendation: in.Recommendation,
		SourceType:     source,
	}
	if err := review.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	err = d.store.UnitOfWork.WithTx(ctx, func(ctx context.Context) error {
		if _, err := d.store.Faculty.Get(ctx, review.FacultyID); err != nil {
			return err
		}
		if err := d.store.Reviews.Create(ctx, review); err != nil {
			return err
		}
		if err := review.Transition(domain.ReviewPersisted); err != nil {
			return err
		}
		_, err := d.aggregates.RecomputeAll(ctx, review.FacultyID)
		return err
	})
	d.recordMutation("create_review", start, err)
	if err != nil {
		d.logger.Error().Err(err).Uint("faculty_id", review.FacultyID).Msg("create review failed")
		return nil, fmt.Errorf("create review: %w", err)
	}

	labels := map[string]string{"source_type": string(source)}
	d.metrics.RecordCounter(metricReviewsCreated, 1, labels)
	d.metrics.RecordHistogram(metricOverallHistogram, review.Ratings.Mean(), labels)
	d.logger.Info().
		Uint("review_id", review.ID).
		Uint("faculty_id", review.FacultyID).
		Str("course_code", review.CourseCode).
		Str("source_type", string(source)).
		Msg("review created")
	return review, nil
}

// AnalysisSubmission is an accepted model analysis ready to be stored.
type AnalysisSubmission struct {
	FacultyName    string
	Department     string
	CourseCode     string
	Ratings        domain.Ratings
	Feedback       string
	Recommendation string
	SourceType     domain.SourceType
}

// SubmitAnalysis looks up or creates the named faculty and stores the
// analysis as a review of it. A blank course is recorded as
// domain.UnknownCourse.
func (d *Driver) SubmitAnalysis(ctx context.Context, sub AnalysisSubmission) (*domain.Faculty, *domain.Review, error) {
	f, err := d.LookupOrCreateFaculty(ctx, sub.FacultyName, sub.Department)
	if err != nil {
		return nil, nil, err
	}

	course := sub.CourseCode
	if strings.TrimSpace(course) == "" {
		course = domain.UnknownCourse
	}
	r := sub.Ratings
	review, err := d.CreateReview(ctx, ReviewInput{
		FacultyID:             f.ID,
		CourseCode:            course,
		TeachingEffectiveness: &r.TeachingEffectiveness,
		StudentEngagement:     &r.StudentEngagement,
		Clarity:               &r.Clarity,
		Professionalism:       &r.Professionalism,
		Feedback:              sub.Feedback,
		Recommendation:        sub.Recommendation,
		SourceType:            string(sub.SourceType),
	})
	if err != nil {
		return nil, nil, err
	}
	return f, review, nil
}

// DeleteReview removes one review and recomputes its former owner.
func (d *Driver) DeleteReview(ctx context.Context, id uint) (err error) {
	ctx, span := startSpan(ctx, "Driver.DeleteReview", attribute.Int64("review.id", int64(id)))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	err = d.store.UnitOfWork.WithTx(ctx, func(ctx context.Context) error {
		review, err := d.store.Reviews.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := d.store.Reviews.Delete(ctx, id); err != nil {
			return err
		}
		if err := review.Transition(domain.ReviewDeleted); err != nil {
			return err
		}
		_, err = d.aggregates.RecomputeAll(ctx, review.FacultyID)
		return err
	})
	d.recordMutation("delete_review", start, err)
	if err != nil {
		return fmt.Errorf("delete review %d: %w", id, err)
	}

	d.metrics.RecordCounter(metricReviewsDeleted, 1, map[string]string{"scope": "review"})
	d.logger.Info().Uint("review_id", id).Msg("review deleted")
	return nil
}

// DeleteReviewsForFaculty removes every review of facultyID.
func (d *Driver) DeleteReviewsForFaculty(ctx context.Context, facultyID uint) (int64, error) {
	return d.deleteMatching(ctx, "faculty", &facultyID, ports.ReviewFilter{FacultyIDs: []uint{facultyID}})
}

// DeleteReviewsForCourse removes every review of courseCode across all
// faculty and recomputes exactly the faculty that owned one.
func (d *Driver) DeleteReviewsForCourse(ctx context.Context, courseCode string) (int64, error) {
	code := domain.NormalizeCourseCode(courseCode)
	if code == "" {
		verr := domain.NewValidationError("Review")
		verr.AddError("course_code is required")
		return 0, verr
	}
	return d.deleteMatching(ctx, "course", nil, ports.ReviewFilter{CourseCode: code})
}

// DeleteReviewsForFacultyCourse removes the reviews of facultyID for one
// course.
func (d *Driver) DeleteReviewsForFacultyCourse(ctx context.Context, facultyID uint, courseCode string) (int64, error) {
	code := domain.NormalizeCourseCode(courseCode)
	if code == "" {
		verr := domain.NewValidationError("Review")
		verr.AddError("course_code is required")
		return 0, verr
	}
	return d.deleteMatching(ctx, "faculty_course", &facultyID,
		ports.ReviewFilter{FacultyIDs: []uint{facultyID}, CourseCode: code})
}

// DeleteAllReviews removes every review and resets every aggregate that
// was derived from one.
func (d *Driver) DeleteAllReviews(ctx context.Context) (int64, error) {
	return d.deleteMatching(ctx, "all", nil, ports.ReviewFilter{})
}

// deleteMatching removes the reviews selected by filter and recomputes
// their owners in one unit of work. When owner is set the faculty must
// exist.
func (d *Driver) deleteMatching(ctx context.Context, scope string, owner *uint, filter ports.ReviewFilter) (n int64, err error) {
	ctx, span := startSpan(ctx, "Driver.DeleteReviews", attribute.String("scope", scope))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	err = d.store.UnitOfWork.WithTx(ctx, func(ctx context.Context) error {
		if owner != nil {
			if _, err := d.store.Faculty.Get(ctx, *owner); err != nil {
				return err
			}
		}
		affected, err := d.store.Reviews.FacultyIDs(ctx, filter)
		if err != nil {
			return err
		}
		if n, err = d.store.Reviews.DeleteMatching(ctx, filter); err != nil {
			return err
		}
		return d.aggregates.recomputeMany(ctx, affected)
	})
	d.recordMutation("delete_reviews_"+scope, start, err)
	if err != nil {
		return 0, fmt.Errorf("delete reviews by %s: %w", scope, err)
	}

	d.metrics.RecordCounter(metricReviewsDeleted, float64(n), map[string]string{"scope": scope})
	d.logger.Info().Str("scope", scope).Int64("deleted", n).Msg("reviews deleted")
	return n, nil
}

// GetAggregates returns the stored aggregates of facultyID.
func (d *Driver) GetAggregates(ctx context.Context, facultyID uint) (domain.Aggregates, error) {
	return d.aggregates.Get(ctx, facultyID)
}

// GetFilteredAggregates returns rounded averages over the reviews of
// facultyID that came from source.
func (d *Driver) GetFilteredAggregates(ctx context.Context, facultyID uint, source domain.SourceType) (domain.Aggregates, error) {
	return d.aggregates.Filtered(ctx, facultyID, source)
}

// RecomputeAllFaculty recomputes every faculty record. It repairs stores
// whose aggregates were written by other tools.
func (d *Driver) RecomputeAllFaculty(ctx context.Context) (int, error) {
	all, err := d.store.Faculty.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, f := range all {
		if _, err := d.aggregates.RecomputeAll(ctx, f.ID); err != nil {
			return 0, fmt.Errorf("recompute faculty %d: %w", f.ID, err)
		}
	}
	d.logger.Info().Int("faculty", len(all)).Msg("aggregates recomputed")
	return len(all), nil
}

func (d *Driver) recordMutation(op string, start time.Time, err error) {
	d.metrics.RecordLatency(metricMutationLatency, time.Since(start), map[string]string{
		"operation": op,
		"success":   strconv.FormatBool(err == nil),
	})
}
