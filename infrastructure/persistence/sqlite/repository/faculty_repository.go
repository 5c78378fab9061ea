package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/ahrav/go-gavel-ratings/infrastructure/persistence/sqlite/model"
	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

const facultyEntity = "faculty"

// FacultyRepository implements ports.FacultyRepository with gorm.
type FacultyRepository struct {
	db *gorm.DB
}

var _ ports.FacultyRepository = (*FacultyRepository)(nil)

func NewFacultyRepository(db *gorm.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

func (r *FacultyRepository) Create(ctx context.Context, f *domain.Faculty) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := toFacultyModel(*f)
	if err := db.Create(&row).Error; err != nil {
		return storeErr(facultyEntity, "Create", f.Name, err)
	}
	f.ID = row.ID
	f.CreatedAt = row.CreatedAt
	return nil
}

func (r *FacultyRepository) Get(ctx context.Context, id uint) (*domain.Faculty, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var row model.Faculty
	if err := db.First(&row, id).Error; err != nil {
		return nil, storeErr(facultyEntity, "Get", id, err)
	}
	f := toDomainFaculty(row)
	return &f, nil
}

func (r *FacultyRepository) FindByName(ctx context.Context, name string) ([]domain.Faculty, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Faculty
	if err := db.Where("name = ?", name).Order("id asc").Find(&rows).Error; err != nil {
		return nil, storeErr(facultyEntity, "FindByName", name, err)
	}
	return mapFaculty(rows), nil
}

func (r *FacultyRepository) Search(ctx context.Context, fragment string) ([]domain.Faculty, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	pattern := "%" + strings.ToLower(strings.TrimSpace(fragment)) + "%"
	var rows []model.Faculty
	if err := db.Where("LOWER(name) LIKE ?", pattern).Order("name asc, id asc").Find(&rows).Error; err != nil {
		return nil, storeErr(facultyEntity, "Search", fragment, err)
	}
	return mapFaculty(rows), nil
}

func (r *FacultyRepository) List(ctx context.Context) ([]domain.Faculty, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Faculty
	if err := db.Order("name asc, id asc").Find(&rows).Error; err != nil {
		return nil, storeErr(facultyEntity, "List", nil, err)
	}
	return mapFaculty(rows), nil
}

func (r *FacultyRepository) DuplicateNames(ctx context.Context) ([]string, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var names []string
	err = db.Model(&model.Faculty{}).
		Select("name").
		Group("name").
		Having("COUNT(*) > 1").
		Order("name asc").
		Pluck("name", &names).Error
	if err != nil {
		return nil, storeErr(facultyEntity, "DuplicateNames", nil, err)
	}
	return names, nil
}

func (r *FacultyRepository) UpdateAggregates(ctx context.Context, id uint, agg domain.Aggregates) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	// A map is used so that zero values are written too.
	res := db.Model(&model.Faculty{}).Where("id = ?", id).Updates(map[string]any{
		"avg_teaching_effectiveness": agg.AvgTeachingEffectiveness,
		"avg_student_engagement":     agg.AvgStudentEngagement,
		"avg_clarity":                agg.AvgClarity,
		"avg_professionalism":        agg.AvgProfessionalism,
		"overall_rating":             agg.OverallRating,
		"total_reviews":              agg.TotalReviews,
	})
	if res.Error != nil {
		return storeErr(facultyEntity, "UpdateAggregates", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewNotFoundError(facultyEntity, id)
	}
	return nil
}

func (r *FacultyRepository) Delete(ctx context.Context, id uint) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	res := db.Delete(&model.Faculty{}, id)
	if res.Error != nil {
		return storeErr(facultyEntity, "Delete", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewNotFoundError(facultyEntity, id)
	}
	return nil
}

func (r *FacultyRepository) DeleteWithoutReviews(ctx context.Context) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	owners := db.Model(&model.Review{}).Select("faculty_id")
	res := db.Where("id NOT IN (?)", owners).Delete(&model.Faculty{})
	if res.Error != nil {
		return 0, storeErr(facultyEntity, "DeleteWithoutReviews", nil, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *FacultyRepository) Count(ctx context.Context) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := db.Model(&model.Faculty{}).Count(&n).Error; err != nil {
		return 0, storeErr(facultyEntity, "Count", nil, err)
	}
	return n, nil
}

func (r *FacultyRepository) Latest(ctx context.Context) (*domain.Faculty, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var row model.Faculty
	if err := db.Order("created_at desc, id desc").First(&row).Error; err != nil {
		return nil, storeErr(facultyEntity, "Latest", "latest", err)
	}
	f := toDomainFaculty(row)
	return &f, nil
}

func toFacultyModel(f domain.Faculty) model.Faculty {
	return model.Faculty{
		ID:                       f.ID,
		Name:                     f.Name,
		Department:               f.Department,
		AvgTeachingEffectiveness: f.AvgTeachingEffectiveness,
		AvgStudentEngagement:     f.AvgStudentEngagement,
		AvgClarity:               f.AvgClarity,
		AvgProfessionalism:       f.AvgProfessionalism,
		OverallRating:            f.OverallRating,
		TotalReviews:             f.TotalReviews,
		CreatedAt:                f.CreatedAt,
	}
}

func toDomainFaculty(row model.Faculty) domain.Faculty {
	return domain.Faculty{
		ID:         row.ID,
		Name:       row.Name,
		Department: row.Department,
		CreatedAt:  row.CreatedAt,
		Aggregates: domain.Aggregates{
			AvgTeachingEffectiveness: row.AvgTeachingEffectiveness,
			AvgStudentEngagement:     row.AvgStudentEngagement,
			AvgClarity:               row.AvgClarity,
			AvgProfessionalism:       row.AvgProfessionalism,
			OverallRating:            row.OverallRating,
			TotalReviews:             row.TotalReviews,
		},
	}
}

func mapFaculty(rows []model.Faculty) []domain.Faculty {
	items := make([]domain.Faculty, 0, len(rows))
	for _, row := range rows {
		items = append(items, toDomainFaculty(row))
	}
	return items
}
