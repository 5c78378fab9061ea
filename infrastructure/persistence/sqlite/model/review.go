package model

import "time"

type Review struct {
	ID                    uint      `gorm:"column:id;primaryKey;autoIncrement"`
	FacultyID             uint      `gorm:"column:faculty_id;not null;index"`
	CourseCode            string    `gorm:"column:course_code;type:text;not null;index"`
	TeachingEffectiveness float64   `gorm:"column:teaching_effectiveness;not null"`
	StudentEngagement     float64   `gorm:"column:student_engagement;not null"`
	Clarity               float64   `gorm:"column:clarity;not null"`
	Professionalism       float64   `gorm:"column:professionalism;not null"`
	Feedback              string    `gorm:"column:feedback;type:text"`
	Recommendation        string    `gorm:"column:recommendation;type:text"`
	SourceType            string    `gorm:"column:source_type;type:text;not null;default:direct_submission;index"`
	CreatedAt             time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

func (Review) TableName() string {
	return "reviews"
}
