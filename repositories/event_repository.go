package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"cleanzone-api/models"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) withParticipants(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Participants", func(db *gorm.DB) *gorm.DB {
		return db.Order("event_participants.id ASC")
	})
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	err := r.db.WithContext(ctx).Omit("Participants").Create(event).Error
	return translateError(err, "event")
}

func (r *EventRepository) FindByID(ctx context.Context, id uint32) (*models.Event, error) {
	var event models.Event
	if err := r.withParticipants(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "event")
	}
	return &event, nil
}

func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int64, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset)

	query := r.db.WithContext(ctx).Model(&models.Event{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ZoneID != nil {
		query = query.Where("zone_id = ?", *filter.ZoneID)
	}
	if filter.OrganizerID != nil {
		query = query.Where("organizer_id = ?", *filter.OrganizerID)
	}
	if filter.ParticipantID != nil {
		query = query.Where("id IN (?)",
			r.db.Model(&models.EventParticipant{}).Select("event_id").Where("user_id = ?", *filter.ParticipantID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "event")
	}

	var ids []uint32
	if err := query.Order("start_at ASC, id ASC").Offset(offset).Limit(limit).Pluck("id", &ids).Error; err != nil {
		return nil, 0, translateError(err, "event")
	}
	events := make([]models.Event, 0, len(ids))
	if len(ids) == 0 {
		return events, total, nil
	}
	if err := r.withParticipants(ctx).Where("id IN ?", ids).Order("start_at ASC, id ASC").Find(&events).Error; err != nil {
		return nil, 0, translateError(err, "event")
	}
	return events, total, nil
}

func (r *EventRepository) Update(ctx context.Context, id uint32, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", id).Updates(updates)
	return translateError(res.Error, "event")
}

// ClearTransfer drops any pending ownership transfer.
func (r *EventRepository) ClearTransfer(ctx context.Context, id uint32) error {
	return r.Update(ctx, id, map[string]interface{}{
		"pending_organizer_id":  nil,
		"transfer_request_time": nil,
	})
}

// Delete removes the event with its participants, attendance and chat. State history is kept.
func (r *EventRepository) Delete(ctx context.Context, id uint32) error {
	db := r.db.WithContext(ctx)
	for _, model := range []interface{}{&models.EventParticipant{}, &models.Attendance{}, &models.Message{}} {
		if err := db.Where("event_id = ?", id).Delete(model).Error; err != nil {
			return translateError(err, "event")
		}
	}
	res := db.Delete(&models.Event{}, "id = ?", id)
	if res.Error != nil {
		return translateError(res.Error, "event")
	}
	if res.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "event")
	}
	return nil
}

// Lock touches the event row so concurrent writers to the same event serialize.
// Call it first inside a transaction.
func (r *EventRepository) Lock(ctx context.Context, id uint32, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", id).UpdateColumn("updated_at", now)
	return translateError(res.Error, "event")
}

func (r *EventRepository) AddParticipant(ctx context.Context, eventID, userID uint32) error {
	p := models.EventParticipant{EventID: eventID, UserID: userID}
	return translateError(r.db.WithContext(ctx).Create(&p).Error, "participant")
}

func (r *EventRepository) RemoveParticipant(ctx context.Context, eventID, userID uint32) error {
	res := r.db.WithContext(ctx).Where("event_id = ? AND user_id = ?", eventID, userID).Delete(&models.EventParticipant{})
	if res.Error != nil {
		return translateError(res.Error, "participant")
	}
	if res.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "participant")
	}
	return nil
}

// NextChatPosition increments and returns the event's chat counter. Call it inside a transaction.
func (r *EventRepository) NextChatPosition(ctx context.Context, eventID uint32) (uint32, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.Event{}).Where("id = ?", eventID).
		UpdateColumn("last_chat_position", gorm.Expr("last_chat_position + ?", 1))
	if res.Error != nil {
		return 0, translateError(res.Error, "event")
	}
	if res.RowsAffected == 0 {
		return 0, translateError(gorm.ErrRecordNotFound, "event")
	}
	var position uint32
	if err := db.Model(&models.Event{}).Where("id = ?", eventID).Pluck("last_chat_position", &position).Error; err != nil {
		return 0, translateError(err, "event")
	}
	return position, nil
}

// HasActiveForZone reports whether a non-terminal event is attached to the zone.
func (r *EventRepository) HasActiveForZone(ctx context.Context, zoneID uint32) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("zone_id = ? AND status IN ?", zoneID, []models.EventStatus{models.EventStatusPlanned, models.EventStatusInProgress}).
		Count(&count).Error
	if err != nil {
		return false, translateError(err, "event")
	}
	return count > 0, nil
}

// ListStarted returns events still persisted as PLANNED whose start has passed.
func (r *EventRepository) ListStarted(ctx context.Context, now time.Time) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_at <= ?", models.EventStatusPlanned, now).
		Order("start_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, translateError(err, "event")
	}
	return events, nil
}

// ListStaleTransfers returns events whose pending transfer was requested at or before cutoff.
func (r *EventRepository) ListStaleTransfers(ctx context.Context, cutoff time.Time) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("pending_organizer_id IS NOT NULL AND transfer_request_time <= ?", cutoff).
		Find(&events).Error
	if err != nil {
		return nil, translateError(err, "event")
	}
	return events, nil
}
