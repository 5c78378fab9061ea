package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ahrav/go-gavel-ratings/infrastructure/persistence/sqlite/model"
	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

const reviewEntity = "review"

// ReviewRepository implements ports.ReviewRepository with gorm.
type ReviewRepository struct {
	db *gorm.DB
}

var _ ports.ReviewRepository = (*ReviewRepository)(nil)

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// applyFilter narrows q by filter. It always adds a WHERE clause so that
// an empty filter still passes gorm's global-delete guard.
func applyFilter(q *gorm.DB, filter ports.ReviewFilter) *gorm.DB {
	q = q.Where("1 = 1")
	if len(filter.FacultyIDs) > 0 {
		q = q.Where("faculty_id IN ?", filter.FacultyIDs)
	}
	if filter.CourseCode != "" {
		q = q.Where("course_code = ?", filter.CourseCode)
	}
	if filter.SourceType != "" {
		q = q.Where("source_type = ?", string(filter.SourceType))
	}
	return q
}

func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := toReviewModel(*rv)
	if err := db.Create(&row).Error; err != nil {
		return storeErr(reviewEntity, "Create", rv.FacultyID, err)
	}
	rv.ID = row.ID
	rv.CreatedAt = row.CreatedAt
	return nil
}

func (r *ReviewRepository) Get(ctx context.Context, id uint) (*domain.Review, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var row model.Review
	if err := db.First(&row, id).Error; err != nil {
		return nil, storeErr(reviewEntity, "Get", id, err)
	}
	rv := toDomainReview(row)
	return &rv, nil
}

func (r *ReviewRepository) List(ctx context.Context, filter ports.ReviewFilter) ([]domain.Review, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Review
	if err := applyFilter(db, filter).Order("created_at desc, id desc").Find(&rows).Error; err != nil {
		return nil, storeErr(reviewEntity, "List", nil, err)
	}

	items := make([]domain.Review, 0, len(rows))
	for _, row := range rows {
		items = append(items, toDomainReview(row))
	}
	return items, nil
}

func (r *ReviewRepository) FacultyIDs(ctx context.Context, filter ports.ReviewFilter) ([]uint, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var ids []uint
	err = applyFilter(db.Model(&model.Review{}), filter).
		Distinct("faculty_id").
		Order("faculty_id asc").
		Pluck("faculty_id", &ids).Error
	if err != nil {
		return nil, storeErr(reviewEntity, "FacultyIDs", nil, err)
	}
	return ids, nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id uint) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	res := db.Delete(&model.Review{}, id)
	if res.Error != nil {
		return storeErr(reviewEntity, "Delete", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewNotFoundError(reviewEntity, id)
	}
	return nil
}

func (r *ReviewRepository) DeleteMatching(ctx context.Context, filter ports.ReviewFilter) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	res := applyFilter(db, filter).Delete(&model.Review{})
	if res.Error != nil {
		return 0, storeErr(reviewEntity, "DeleteMatching", nil, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ReviewRepository) DeleteIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	res := db.Where("id IN ?", ids).Delete(&model.Review{})
	if res.Error != nil {
		return 0, storeErr(reviewEntity, "DeleteIDs", ids, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ReviewRepository) Reparent(ctx context.Context, from, to uint) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	res := db.Model(&model.Review{}).Where("faculty_id = ?", from).Update("faculty_id", to)
	if res.Error != nil {
		return 0, storeErr(reviewEntity, "Reparent", from, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ReviewRepository) LatestBySource(ctx context.Context, source domain.SourceType) (*domain.Review, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var row model.Review
	err = db.Where("source_type = ?", string(source)).Order("created_at desc, id desc").First(&row).Error
	if err != nil {
		return nil, storeErr(reviewEntity, "LatestBySource", source, err)
	}
	rv := toDomainReview(row)
	return &rv, nil
}

func (r *ReviewRepository) Count(ctx context.Context) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := db.Model(&model.Review{}).Count(&n).Error; err != nil {
		return 0, storeErr(reviewEntity, "Count", nil, err)
	}
	return n, nil
}

func (r *ReviewRepository) Latest(ctx context.Context) (*domain.Review, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var row model.Review
	if err := db.Order("created_at desc, id desc").First(&row).Error; err != nil {
		return nil, storeErr(reviewEntity, "Latest", "latest", err)
	}
	rv := toDomainReview(row)
	return &rv, nil
}

func toReviewModel(rv domain.Review) model.Review {
	return model.Review{
		ID:                    rv.ID,
		FacultyID:             rv.FacultyID,
		CourseCode:            rv.CourseCode,
		TeachingEffectiveness: rv.Ratings.TeachingEffectiveness,
		StudentEngagement:     rv.Ratings.StudentEngagement,
		Clarity:               rv.Ratings.Clarity,
		Professionalism:       rv.Ratings.Professionalism,
		Feedback:              rv.Feedback,
		Recommendation:        rv.Recommendation,
		SourceType:            string(rv.SourceType),
		CreatedAt:             rv.CreatedAt,
	}
}

func toDomainReview(row model.Review) domain.Review {
	return domain.Review{
		ID:         row.ID,
		FacultyID:  row.FacultyID,
		CourseCode: row.CourseCode,
		Ratings: domain.Ratings{
			TeachingEffectiveness: row.TeachingEffectiveness,
			StudentEngagement:     row.StudentEngagement,
			Clarity:               row.Clarity,
			Professionalism:       row.Professionalism,
		},
		Feedback:       row.Feedback,
		Recommendation: row.Recommendation,
		SourceType:     domain.SourceType(row.SourceType),
		CreatedAt:      row.CreatedAt,
		State:          domain.ReviewPersisted,
	}
}
