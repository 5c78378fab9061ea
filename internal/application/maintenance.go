package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// FacultyDetail is one faculty record with its reviews, newest first.
type FacultyDetail struct {
	Faculty domain.Faculty  `json:"faculty"`
	Reviews []domain.Review `json:"reviews"`
}

// CombinedView collects the reviews of every record sharing a name. It is
// what readers see for a name before its duplicates are consolidated.
type CombinedView struct {
	Name       string            `json:"name"`
	FacultyIDs []uint            `json:"faculty_ids"`
	Aggregates domain.Aggregates `json:"aggregates"`
	Reviews    []domain.Review   `json:"reviews"`
}

// Stats summarizes the store contents.
type Stats struct {
	FacultyCount       int64  `json:"faculty_count"`
	ReviewCount        int64  `json:"review_count"`
	LatestFaculty      string `json:"latest_faculty,omitempty"`
	LatestReviewCourse string `json:"latest_review_course,omitempty"`
}

// CleanupResult reports the rows removed by a maintenance sweep.
type CleanupResult struct {
	ReviewsDeleted int64 `json:"reviews_deleted"`
	FacultyDeleted int64 `json:"faculty_deleted"`
	// Recomputed lists the faculty whose aggregates were refreshed.
	Recomputed []uint `json:"recomputed,omitempty"`
}

// Maintenance groups administrative reads and bulk cleanups. Every mutation
// is one unit of work that recomputes the faculty it touched.
type Maintenance struct {
	store      Store
	aggregates *AggregateService
	logger     zerolog.Logger
	metrics    ports.MetricsCollector
}

// NewMaintenance creates a Maintenance service over store.
func NewMaintenance(store Store, opts ...Option) (*Maintenance, error) {
	aggregates, err := NewAggregateService(store)
	if err != nil {
		return nil, err
	}
	o := newOptions(opts)
	return &Maintenance{
		store:      store,
		aggregates: aggregates,
		logger:     o.logger.With().Str("component", "maintenance").Logger(),
		metrics:    o.metrics,
	}, nil
}

// ListFaculty returns every faculty record ordered by name.
func (m *Maintenance) ListFaculty(ctx context.Context) ([]domain.Faculty, error) {
	return m.store.Faculty.List(ctx)
}

// SearchFaculty returns the records whose name contains fragment.
func (m *Maintenance) SearchFaculty(ctx context.Context, fragment string) ([]domain.Faculty, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		verr := domain.NewValidationError("Faculty")
		verr.AddError("search term is required")
		return nil, verr
	}
	return m.store.Faculty.Search(ctx, fragment)
}

// FacultyDetail returns faculty id and its reviews.
func (m *Maintenance) FacultyDetail(ctx context.Context, id uint) (*FacultyDetail, error) {
	f, err := m.store.Faculty.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	reviews, err := m.store.Reviews.List(ctx, ports.ReviewFilter{FacultyIDs: []uint{id}})
	if err != nil {
		return nil, err
	}
	return &FacultyDetail{Faculty: *f, Reviews: reviews}, nil
}

// CombinedReviews returns every review held by any record named name, with
// averages rounded to two decimals. Nothing is persisted.
func (m *Maintenance) CombinedReviews(ctx context.Context, name string) (*CombinedView, error) {
	normalized := domain.NormalizeName(name)
	records, err := m.store.Faculty.FindByName(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.NewNotFoundError("Faculty", normalized)
	}

	ids := make([]uint, len(records))
	for i, f := range records {
		ids[i] = f.ID
	}
	reviews, err := m.store.Reviews.List(ctx, ports.ReviewFilter{FacultyIDs: ids})
	if err != nil {
		return nil, err
	}
	return &CombinedView{
		Name:       normalized,
		FacultyIDs: ids,
		Aggregates: domain.RoundedAggregates(reviews),
		Reviews:    reviews,
	}, nil
}

// DeleteFaculty removes faculty id together with its reviews.
func (m *Maintenance) DeleteFaculty(ctx context.Context, id uint) (CleanupResult, error) {
	var res CleanupResult
	err := m.run(ctx, "delete_faculty", func(ctx context.Context) error {
		if _, err := m.store.Faculty.Get(ctx, id); err != nil {
			return err
		}
		n, err := m.store.Reviews.DeleteMatching(ctx, ports.ReviewFilter{FacultyIDs: []uint{id}})
		if err != nil {
			return err
		}
		if err := m.store.Faculty.Delete(ctx, id); err != nil {
			return err
		}
		res.ReviewsDeleted, res.FacultyDeleted = n, 1
		return nil
	})
	if err != nil {
		return CleanupResult{}, fmt.Errorf("delete faculty %d: %w", id, err)
	}
	m.logger.Info().Uint("faculty_id", id).Int64("reviews_deleted", res.ReviewsDeleted).Msg("faculty deleted")
	return res, nil
}

// ClearAllReviews removes every review and resets every faculty to zero
// aggregates.
func (m *Maintenance) ClearAllReviews(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	err := m.run(ctx, "clear_reviews", func(ctx context.Context) error {
		n, err := m.store.Reviews.DeleteMatching(ctx, ports.ReviewFilter{})
		if err != nil {
			return err
		}
		all, err := m.store.Faculty.List(ctx)
		if err != nil {
			return err
		}
		for _, f := range all {
			if _, err := m.aggregates.RecomputeAll(ctx, f.ID); err != nil {
				return err
			}
			res.Recomputed = append(res.Recomputed, f.ID)
		}
		res.ReviewsDeleted = n
		return nil
	})
	if err != nil {
		return CleanupResult{}, fmt.Errorf("clear reviews: %w", err)
	}
	m.logger.Info().Int64("reviews_deleted", res.ReviewsDeleted).Msg("all reviews cleared")
	return res, nil
}

// ClearTestData removes every test_data review and then every faculty left
// without reviews.
func (m *Maintenance) ClearTestData(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	err := m.run(ctx, "clear_test_data", func(ctx context.Context) error {
		filter := ports.ReviewFilter{SourceType: domain.SourceTestData}
		affected, err := m.store.Reviews.FacultyIDs(ctx, filter)
		if err != nil {
			return err
		}
		if res.ReviewsDeleted, err = m.store.Reviews.DeleteMatching(ctx, filter); err != nil {
			return err
		}
		if res.FacultyDeleted, err = m.store.Faculty.DeleteWithoutReviews(ctx); err != nil {
			return err
		}
		res.Recomputed, err = m.recomputeExisting(ctx, affected)
		return err
	})
	if err != nil {
		return CleanupResult{}, fmt.Errorf("clear test data: %w", err)
	}
	m.logger.Info().
		Int64("reviews_deleted", res.ReviewsDeleted).
		Int64("faculty_deleted", res.FacultyDeleted).
		Msg("test data cleared")
	return res, nil
}

// dedupeKey identifies screenshot reviews that carry the same content.
type dedupeKey struct {
	facultyID  uint
	courseCode string
	ratings    domain.Ratings
	feedback   string
}

// DedupeScreenshotReviews keeps the lowest-id review of each group of
// screenshot_analysis reviews that share faculty, course, ratings and
// feedback, and deletes the rest.
func (m *Maintenance) DedupeScreenshotReviews(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	err := m.run(ctx, "dedupe_screenshots", func(ctx context.Context) error {
		reviews, err := m.store.Reviews.List(ctx, ports.ReviewFilter{SourceType: domain.SourceScreenshotAnalysis})
		if err != nil {
			return err
		}

		keep := make(map[dedupeKey]uint, len(reviews))
		for _, r := range reviews {
			k := dedupeKey{r.FacultyID, r.CourseCode, r.Ratings, r.Feedback}
			if id, ok := keep[k]; !ok || r.ID < id {
				keep[k] = r.ID
			}
		}

		var drop []uint
		owners := make(map[uint]struct{})
		for _, r := range reviews {
			if keep[dedupeKey{r.FacultyID, r.CourseCode, r.Ratings, r.Feedback}] != r.ID {
				drop = append(drop, r.ID)
				owners[r.FacultyID] = struct{}{}
			}
		}
		if res.ReviewsDeleted, err = m.store.Reviews.DeleteIDs(ctx, drop); err != nil {
			return err
		}

		affected := make([]uint, 0, len(owners))
		for id := range owners {
			affected = append(affected, id)
		}
		res.Recomputed, err = m.recomputeExisting(ctx, affected)
		return err
	})
	if err != nil {
		return CleanupResult{}, fmt.Errorf("dedupe screenshot reviews: %w", err)
	}
	m.logger.Info().Int64("reviews_deleted", res.ReviewsDeleted).Msg("screenshot reviews deduplicated")
	return res, nil
}

// RemoveLatestScreenshotReview deletes the most recent screenshot_analysis
// review and returns it.
func (m *Maintenance) RemoveLatestScreenshotReview(ctx context.Context) (*domain.Review, error) {
	var removed *domain.Review
	err := m.run(ctx, "remove_latest_screenshot", func(ctx context.Context) error {
		r, err := m.store.Reviews.LatestBySource(ctx, domain.SourceScreenshotAnalysis)
		if err != nil {
			return err
		}
		if err := m.store.Reviews.Delete(ctx, r.ID); err != nil {
			return err
		}
		if err := r.Transition(domain.ReviewDeleted); err != nil {
			return err
		}
		if _, err := m.aggregates.RecomputeAll(ctx, r.FacultyID); err != nil {
			return err
		}
		removed = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("remove latest screenshot review: %w", err)
	}
	m.logger.Info().Uint("review_id", removed.ID).Uint("faculty_id", removed.FacultyID).Msg("latest screenshot review removed")
	return removed, nil
}

// Stats returns record counts and the most recent entries.
func (m *Maintenance) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var err error
	if s.FacultyCount, err = m.store.Faculty.Count(ctx); err != nil {
		return Stats{}, err
	}
	if s.ReviewCount, err = m.store.Reviews.Count(ctx); err != nil {
		return Stats{}, err
	}

	if f, err := m.store.Faculty.Latest(ctx); err == nil {
		s.LatestFaculty = f.Name
	} else if !errors.Is(err, domain.ErrNotFound) {
		return Stats{}, err
	}
	if r, err := m.store.Reviews.Latest(ctx); err == nil {
		s.LatestReviewCourse = r.CourseCode
	} else if !errors.Is(err, domain.ErrNotFound) {
		return Stats{}, err
	}

	m.metrics.RecordGauge("faculty_records", float64(s.FacultyCount), nil)
	m.metrics.RecordGauge("review_records", float64(s.ReviewCount), nil)
	return s, nil
}

// recomputeExisting recomputes each id that still exists and returns those
// that were refreshed.
func (m *Maintenance) recomputeExisting(ctx context.Context, ids []uint) ([]uint, error) {
	var done []uint
	for _, id := range ids {
		_, err := m.aggregates.RecomputeAll(ctx, id)
		switch {
		case err == nil:
			done = append(done, id)
		case errors.Is(err, domain.ErrNotFound):
		default:
			return nil, err
		}
	}
	return done, nil
}

func (m *Maintenance) run(ctx context.Context, op string, fn func(ctx context.Context) error) (err error) {
	ctx, span := startSpan(ctx, "Maintenance."+op)
	defer func() { endSpan(span, err) }()

	start := time.Now()
	err = m.store.UnitOfWork.WithTx(ctx, fn)
	m.metrics.RecordLatency(metricMutationLatency, time.Since(start), map[string]string{
		"operation": op,
		"success":   strconv.FormatBool(err == nil),
	})
	return err
}
