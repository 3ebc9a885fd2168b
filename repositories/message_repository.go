package repositories

import (
	"context"

	"gorm.io/gorm"

	"cleanzone-api/models"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	return translateError(r.db.WithContext(ctx).Create(message).Error, "message")
}

// List returns one page of an event's chat in ascending chat position.
func (r *MessageRepository) List(ctx context.Context, eventID uint32, page models.MessagePage) ([]models.Message, error) {
	limit, _ := normalizePage(page.Limit, 0)

	query := r.db.WithContext(ctx).Where("event_id = ?", eventID)
	if page.BeforePosition > 0 {
		query = query.Where("chat_position < ?", page.BeforePosition)
	}

	var messages []models.Message
	if err := query.Order("chat_position DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, translateError(err, "message")
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
