package repositories

import (
	"context"

	"gorm.io/gorm"

	"cleanzone-api/models"
)

// StateChangeRepository is append-only.
type StateChangeRepository struct {
	db *gorm.DB
}

func NewStateChangeRepository(db *gorm.DB) *StateChangeRepository {
	return &StateChangeRepository{db: db}
}

func (r *StateChangeRepository) AppendEvent(ctx context.Context, change *models.EventStateChange) error {
	return translateError(r.db.WithContext(ctx).Create(change).Error, "event state change")
}

func (r *StateChangeRepository) AppendZone(ctx context.Context, change *models.ZoneStateChange) error {
	return translateError(r.db.WithContext(ctx).Create(change).Error, "zone state change")
}

func (r *StateChangeRepository) ListForEvent(ctx context.Context, eventID uint32) ([]models.EventStateChange, error) {
	var changes []models.EventStateChange
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Order("changed_at ASC, id ASC").Find(&changes).Error; err != nil {
		return nil, translateError(err, "event state change")
	}
	return changes, nil
}

func (r *StateChangeRepository) ListForZone(ctx context.Context, zoneID uint32) ([]models.ZoneStateChange, error) {
	var changes []models.ZoneStateChange
	if err := r.db.WithContext(ctx).Where("zone_id = ?", zoneID).Order("changed_at ASC, id ASC").Find(&changes).Error; err != nil {
		return nil, translateError(err, "zone state change")
	}
	return changes, nil
}
