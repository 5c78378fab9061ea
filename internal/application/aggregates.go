// Package application orchestrates review intake, aggregate maintenance and
// faculty consolidation on top of the ports interfaces.
package application

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

const tracerName = "github.com/ahrav/go-gavel-ratings/internal/application"

// Store bundles the persistence ports every service needs.
type Store struct {
	Faculty    ports.FacultyRepository
	Reviews    ports.ReviewRepository
	UnitOfWork ports.UnitOfWork
}

func (s Store) validate() error {
	if s.Faculty == nil || s.Reviews == nil || s.UnitOfWork == nil {
		return fmt.Errorf("store requires faculty, review and unit of work ports: %w", domain.ErrInvalidConfiguration)
	}
	return nil
}

// AggregateService keeps each faculty's cached aggregates equal to the
// averages of its current review set.
type AggregateService struct {
	store Store
}

// NewAggregateService creates an AggregateService over store.
func NewAggregateService(store Store) (*AggregateService, error) {
	if err := store.validate(); err != nil {
		return nil, err
	}
	return &AggregateService{store: store}, nil
}

// RecomputeAll recalculates and persists every aggregate of facultyID from
// its full review set. When ctx already carries a transaction the work
// joins it, so callers recompute in the same unit of work as the mutation
// that changed the review set.
func (s *AggregateService) RecomputeAll(ctx context.Context, facultyID uint) (domain.Aggregates, error) {
	var agg domain.Aggregates
	err := s.store.UnitOfWork.WithTx(ctx, func(ctx context.Context) error {
		reviews, err := s.store.Reviews.List(ctx, ports.ReviewFilter{FacultyIDs: []uint{facultyID}})
		if err != nil {
			return fmt.Errorf("list reviews of faculty %d: %w", facultyID, err)
		}
		agg = domain.ComputeAggregates(reviews)
		if err := s.store.Faculty.UpdateAggregates(ctx, facultyID, agg); err != nil {
			return fmt.Errorf("update aggregates of faculty %d: %w", facultyID, err)
		}
		return nil
	})
	return agg, err
}

// recomputeMany recomputes each faculty in ids. Faculty that no longer
// exist are skipped.
func (s *AggregateService) recomputeMany(ctx context.Context, ids []uint) error {
	for _, id := range ids {
		if _, err := s.RecomputeAll(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Get returns the stored aggregates of facultyID.
func (s *AggregateService) Get(ctx context.Context, facultyID uint) (domain.Aggregates, error) {
	f, err := s.store.Faculty.Get(ctx, facultyID)
	if err != nil {
		return domain.Aggregates{}, err
	}
	return f.Aggregates, nil
}

// Filtered returns rounded averages over only the reviews of facultyID
// whose source is source. Nothing is persisted.
func (s *AggregateService) Filtered(ctx context.Context, facultyID uint, source domain.SourceType) (domain.Aggregates, error) {
	if _, err := s.store.Faculty.Get(ctx, facultyID); err != nil {
		return domain.Aggregates{}, err
	}
	reviews, err := s.store.Reviews.List(ctx, ports.ReviewFilter{FacultyIDs: []uint{facultyID}})
	if err != nil {
		return domain.Aggregates{}, fmt.Errorf("list reviews of faculty %d: %w", facultyID, err)
	}
	return domain.FilteredAggregates(reviews, source), nil
}

// startSpan opens a span for a service operation.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
