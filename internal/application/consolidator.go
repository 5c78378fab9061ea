package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// MessageNoConsolidation is reported when a name has at most one record.
const MessageNoConsolidation = "no consolidation needed"

const metricConsolidations = "faculty_consolidations_total"

// ConsolidationResult describes the outcome of consolidating one name.
type ConsolidationResult struct {
	Name string `json:"name"`
	// SurvivorID is the lowest id among the matching records, or zero when
	// no record matched.
	SurvivorID uint `json:"survivor_id,omitempty"`
	// MergedCount is the number of duplicate records removed.
	MergedCount int `json:"merged_count"`
	// ReviewsMoved is the number of reviews re-parented to the survivor.
	ReviewsMoved int64              `json:"reviews_moved"`
	Aggregates   *domain.Aggregates `json:"aggregates,omitempty"`
	Message      string             `json:"message"`
}

// Consolidator merges faculty records that share an exact name.
type Consolidator struct {
	store      Store
	aggregates *AggregateService
	logger     zerolog.Logger
	metrics    ports.MetricsCollector
}

// NewConsolidator creates a Consolidator over store.
func NewConsolidator(store Store, opts ...Option) (*Consolidator, error) {
	aggregates, err := NewAggregateService(store)
	if err != nil {
		return nil, err
	}
	o := newOptions(opts)
	return &Consolidator{
		store:      store,
		aggregates: aggregates,
		logger:     o.logger.With().Str("component", "consolidator").Logger(),
		metrics:    o.metrics,
	}, nil
}

// Consolidate merges every record named exactly name into the lowest-id
// record. Reviews of the duplicates are re-parented, the duplicates are
// deleted and the survivor's aggregates recomputed, all in one unit of
// work; any failure leaves every record untouched. Consolidating a name
// that has at most one record is a no-op, which makes the operation
// idempotent.
func (c *Consolidator) Consolidate(ctx context.Context, name string) (_ ConsolidationResult, err error) {
	ctx, span := startSpan(ctx, "Consolidator.Consolidate", attribute.String("faculty.name", name))
	defer func() { endSpan(span, err) }()

	result := ConsolidationResult{Name: name}
	start := time.Now()
	err = c.store.UnitOfWork.WithTx(ctx, func(ctx context.Context) error {
		records, err := c.store.Faculty.FindByName(ctx, name)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			result.SurvivorID = records[0].ID
		}
		if len(records) <= 1 {
			result.Message = MessageNoConsolidation
			return nil
		}

		survivor := records[0]
		for _, dup := range records[1:] {
			moved, err := c.store.Reviews.Reparent(ctx, dup.ID, survivor.ID)
			if err != nil {
				return fmt.Errorf("reparent reviews of faculty %d: %w", dup.ID, err)
			}
			if err := c.store.Faculty.Delete(ctx, dup.ID); err != nil {
				return fmt.Errorf("delete duplicate faculty %d: %w", dup.ID, err)
			}
			result.ReviewsMoved += moved
			result.MergedCount++
		}

		agg, err := c.aggregates.RecomputeAll(ctx, survivor.ID)
		if err != nil {
			return err
		}
		result.Aggregates = &agg
		result.Message = fmt.Sprintf("merged %d duplicate records into faculty %d", result.MergedCount, survivor.ID)
		return nil
	})
	c.metrics.RecordLatency("consolidation", time.Since(start), map[string]string{"success": strconv.FormatBool(err == nil)})
	if err != nil {
		c.logger.Error().Err(err).Str("name", name).Msg("consolidation rolled back")
		return ConsolidationResult{}, fmt.Errorf("consolidate %q: %w", name, err)
	}

	if result.MergedCount > 0 {
		c.metrics.RecordCounter(metricConsolidations, 1, nil)
		c.logger.Info().
			Str("name", name).
			Uint("survivor_id", result.SurvivorID).
			Int("merged", result.MergedCount).
			Int64("reviews_moved", result.ReviewsMoved).
			Msg("faculty consolidated")
	}
	return result, nil
}

// ConsolidateAll consolidates every name held by more than one record.
// Each name is its own unit of work; the first failure stops the sweep and
// is returned with the results gathered so far.
func (c *Consolidator) ConsolidateAll(ctx context.Context) ([]ConsolidationResult, error) {
	names, err := c.store.Faculty.DuplicateNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("find duplicate names: %w", err)
	}

	results := make([]ConsolidationResult, 0, len(names))
	for _, name := range names {
		res, err := c.Consolidate(ctx, name)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
