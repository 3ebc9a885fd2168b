package repositories

import (
	"context"

	"gorm.io/gorm"

	"cleanzone-api/models"
)

type AttendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func (r *AttendanceRepository) Create(ctx context.Context, attendance *models.Attendance) error {
	return translateError(r.db.WithContext(ctx).Create(attendance).Error, "attendance")
}

func (r *AttendanceRepository) ListByEvent(ctx context.Context, eventID uint32) ([]models.Attendance, error) {
	var list []models.Attendance
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Order("checked_in_at ASC, id ASC").Find(&list).Error; err != nil {
		return nil, translateError(err, "attendance")
	}
	return list, nil
}

func (r *AttendanceRepository) Exists(ctx context.Context, eventID, userID uint32) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).Count(&count).Error
	if err != nil {
		return false, translateError(err, "attendance")
	}
	return count > 0, nil
}
