package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
	"github.com/ahrav/go-gavel-ratings/internal/testutils"
)

var errInjected = errors.New("injected store failure")

func newTestStore(t *testing.T) (Store, *testutils.TestStore) {
	t.Helper()
	ts := testutils.NewTestStore(t)
	return Store{Faculty: ts.Faculty, Reviews: ts.Reviews, UnitOfWork: ts.UnitOfWork}, ts
}

func newTestDriver(t *testing.T, store Store) *Driver {
	t.Helper()
	d, err := NewDriver(store)
	require.NoError(t, err)
	return d
}

func f64(v float64) *float64 { return &v }

func reviewInput(facultyID uint, course string, source domain.SourceType, te, se, cl, pr float64) ReviewInput {
	return ReviewInput{
		FacultyID:             facultyID,
		CourseCode:            course,
		TeachingEffectiveness: f64(te),
		StudentEngagement:     f64(se),
		Clarity:               f64(cl),
		Professionalism:       f64(pr),
		SourceType:            string(source),
	}
}

// uniform creates a review whose four ratings all equal v.
func uniform(t *testing.T, d *Driver, facultyID uint, course string, source domain.SourceType, v float64) *domain.Review {
	t.Helper()
	r, err := d.CreateReview(context.Background(), reviewInput(facultyID, course, source, v, v, v, v))
	require.NoError(t, err)
	return r
}

func mustFaculty(t *testing.T, d *Driver, name string) *domain.Faculty {
	t.Helper()
	f, err := d.CreateFaculty(context.Background(), FacultyInput{Name: name})
	require.NoError(t, err)
	return f
}

// failingFaculty wraps a FacultyRepository and fails selected operations.
type failingFaculty struct {
	ports.FacultyRepository
	failDeleteID         uint
	failUpdateAggregates bool
}

func (f *failingFaculty) Delete(ctx context.Context, id uint) error {
	if id == f.failDeleteID {
		return errInjected
	}
	return f.FacultyRepository.Delete(ctx, id)
}

func (f *failingFaculty) UpdateAggregates(ctx context.Context, id uint, agg domain.Aggregates) error {
	if f.failUpdateAggregates {
		return errInjected
	}
	return f.FacultyRepository.UpdateAggregates(ctx, id, agg)
}
