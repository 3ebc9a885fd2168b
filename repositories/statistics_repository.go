package repositories

import (
	"context"

	"gorm.io/gorm"

	"cleanzone-api/models"
)

type StatisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// ForUser aggregates activity counters for a user.
func (r *StatisticsRepository) ForUser(ctx context.Context, userID uint32) (*models.StatisticsResponse, error) {
	db := r.db.WithContext(ctx)
	stats := &models.StatisticsResponse{UserID: userID}

	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&stats.EventsOrganized, db.Model(&models.Event{}).Where("organizer_id = ?", userID)},
		{&stats.EventsCompleted, db.Model(&models.Event{}).Where("organizer_id = ? AND status = ?", userID, models.EventStatusCompleted)},
		{&stats.EventsJoined, db.Model(&models.EventParticipant{}).Where("user_id = ?", userID)},
		{&stats.EventsAttended, db.Model(&models.Attendance{}).Where("user_id = ?", userID)},
		{&stats.ZonesReported, db.Model(&models.Zone{}).Where("reporter_id = ?", userID)},
		{&stats.ZonesCleaned, db.Model(&models.Zone{}).Where("reporter_id = ? AND status = ?", userID, models.ZoneStatusCleaned)},
		{&stats.MessagesSent, db.Model(&models.Message{}).Where("sender_id = ?", userID)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, translateError(err, "statistics")
		}
	}
	return stats, nil
}
