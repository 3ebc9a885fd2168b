package models

import (
	"time"
)

type Message struct {
	ID           uint32    `json:"id" gorm:"primaryKey"`
	EventID      uint32    `json:"event_id" gorm:"not null;uniqueIndex:uk_messages_event_position"`
	SenderID     uint32    `json:"sender_id" gorm:"not null;index"`
	SenderName   string    `json:"sender_name" gorm:"not null;size:255"`
	Content      string    `json:"content" gorm:"not null;type:text"`
	ChatPosition uint32    `json:"chat_position" gorm:"not null;uniqueIndex:uk_messages_event_position"`
	SentAt       time.Time `json:"sent_at" gorm:"not null"`
}

type MessageResponse struct {
	ID           uint32    `json:"id"`
	EventID      uint32    `json:"event_id"`
	SenderID     uint32    `json:"sender_id"`
	SenderName   string    `json:"sender_name"`
	Content      string    `json:"content"`
	ChatPosition uint32    `json:"chat_position"`
	SentAt       time.Time `json:"sent_at"`
}

func (m *Message) ToResponse() MessageResponse {
	return MessageResponse{
		ID:           m.ID,
		EventID:      m.EventID,
		SenderID:     m.SenderID,
		SenderName:   m.SenderName,
		Content:      m.Content,
		ChatPosition: m.ChatPosition,
		SentAt:       m.SentAt,
	}
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// MessagePage selects messages older than BeforePosition (0 = newest), newest first.
type MessagePage struct {
	BeforePosition uint32
	Limit          int
}

// TileCacheEntry is one cached map tile, keyed z/x/y. Last write wins.
type TileCacheEntry struct {
	Key         string    `gorm:"primaryKey;column:tile_key;size:64"`
	Data        []byte    `gorm:"not null"`
	ContentType string    `gorm:"not null;size:100"`
	FetchedAt   time.Time `gorm:"not null"`
}
