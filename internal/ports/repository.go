package ports

import (
	"context"

	"github.com/ahrav/go-gavel-ratings/internal/domain"
)

// FacultyRepository persists faculty records and their cached aggregates.
// Lookups of a missing record return an error matching domain.ErrNotFound.
type FacultyRepository interface {
	// Create inserts f and sets its ID and CreatedAt.
	Create(ctx context.Context, f *domain.Faculty) error

	// Get returns the faculty with the given id.
	Get(ctx context.Context, id uint) (*domain.Faculty, error)

	// FindByName returns every record whose stored name equals name
	// exactly, ordered by ascending id.
	FindByName(ctx context.Context, name string) ([]domain.Faculty, error)

	// Search returns records whose name contains fragment, case-insensitively.
	Search(ctx context.Context, fragment string) ([]domain.Faculty, error)

	// List returns every faculty ordered by name then id.
	List(ctx context.Context) ([]domain.Faculty, error)

	// DuplicateNames lists names held by more than one record.
	DuplicateNames(ctx context.Context) ([]string, error)

	// UpdateAggregates overwrites the cached aggregates of faculty id.
	UpdateAggregates(ctx context.Context, id uint, agg domain.Aggregates) error

	// Delete removes the faculty record. Reviews must be removed first.
	Delete(ctx context.Context, id uint) error

	// DeleteWithoutReviews removes every faculty that owns no review and
	// returns how many were removed.
	DeleteWithoutReviews(ctx context.Context) (int64, error)

	// Count returns the number of faculty records.
	Count(ctx context.Context) (int64, error)

	// Latest returns the most recently created faculty.
	Latest(ctx context.Context) (*domain.Faculty, error)
}

// ReviewFilter selects reviews for listing or bulk deletion. Zero-valued
// fields do not constrain the selection.
type ReviewFilter struct {
	FacultyIDs []uint
	CourseCode string
	SourceType domain.SourceType
}

// ReviewRepository persists reviews.
type ReviewRepository interface {
	// Create inserts r and sets its ID and CreatedAt.
	Create(ctx context.Context, r *domain.Review) error

	// Get returns the review with the given id.
	Get(ctx context.Context, id uint) (*domain.Review, error)

	// List returns reviews matching filter, newest first.
	List(ctx context.Context, filter ReviewFilter) ([]domain.Review, error)

	// FacultyIDs returns the distinct owners of reviews matching filter.
	FacultyIDs(ctx context.Context, filter ReviewFilter) ([]uint, error)

	// Delete removes the review with the given id.
	Delete(ctx context.Context, id uint) error

	// DeleteMatching removes every review matching filter and returns the
	// number removed.
	DeleteMatching(ctx context.Context, filter ReviewFilter) (int64, error)

	// DeleteIDs removes the reviews with the given ids.
	DeleteIDs(ctx context.Context, ids []uint) (int64, error)

	// Reparent moves every review owned by from to the faculty to.
	Reparent(ctx context.Context, from, to uint) (int64, error)

	// LatestBySource returns the most recently created review with source.
	LatestBySource(ctx context.Context, source domain.SourceType) (*domain.Review, error)

	// Count returns the number of stored reviews.
	Count(ctx context.Context) (int64, error)

	// Latest returns the most recently created review.
	Latest(ctx context.Context) (*domain.Review, error)
}
