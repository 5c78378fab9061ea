package model

import "time"

type Faculty struct {
	ID                       uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Name                     string    `gorm:"column:name;type:text;not null;index"`
	Department               string    `gorm:"column:department;type:text"`
	AvgTeachingEffectiveness float64   `gorm:"column:avg_teaching_effectiveness;not null;default:0"`
	AvgStudentEngagement     float64   `gorm:"column:avg_student_engagement;not null;default:0"`
	AvgClarity               float64   `gorm:"column:avg_clarity;not null;default:0"`
	AvgProfessionalism       float64   `gorm:"column:avg_professionalism;not null;default:0"`
	OverallRating            float64   `gorm:"column:overall_rating;not null;default:0"`
	TotalReviews             int       `gorm:"column:total_reviews;not null;default:0"`
	CreatedAt                time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

func (Faculty) TableName() string {
	return "faculty"
}
