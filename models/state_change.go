package models

import (
	"time"
)

// EventStateChange is an append-only audit record of an event status change.
// It is never the source of truth for the current status.
type EventStateChange struct {
	ID        uint32      `json:"id" gorm:"primaryKey"`
	EventID   uint32      `json:"event_id" gorm:"not null;index"`
	Status    EventStatus `json:"status" gorm:"not null;size:16"`
	ChangedBy *uint32     `json:"changed_by"`
	ChangedAt time.Time   `json:"changed_at" gorm:"not null;index"`
}

// ZoneStateChange is an append-only audit record of a zone status change.
type ZoneStateChange struct {
	ID               uint32     `json:"id" gorm:"primaryKey"`
	ZoneID           uint32     `json:"zone_id" gorm:"not null;index"`
	Status           ZoneStatus `json:"status" gorm:"not null;size:32"`
	ChangedBy        *uint32    `json:"changed_by"`
	TriggeredByEvent *uint32    `json:"triggered_by_event"`
	ChangedAt        time.Time  `json:"changed_at" gorm:"not null;index"`
}

// StateChangeResponse is the wire shape shared by event and zone history.
type StateChangeResponse struct {
	ID               uint32    `json:"id"`
	EntityID         uint32    `json:"entity_id"`
	Status           string    `json:"status"`
	ChangedBy        *uint32   `json:"changed_by,omitempty"`
	TriggeredByEvent *uint32   `json:"triggered_by_event,omitempty"`
	ChangedAt        time.Time `json:"changed_at"`
}

func (c *EventStateChange) ToResponse() StateChangeResponse {
	return StateChangeResponse{
		ID:        c.ID,
		EntityID:  c.EventID,
		Status:    string(c.Status),
		ChangedBy: c.ChangedBy,
		ChangedAt: c.ChangedAt,
	}
}

func (c *ZoneStateChange) ToResponse() StateChangeResponse {
	return StateChangeResponse{
		ID:               c.ID,
		EntityID:         c.ZoneID,
		Status:           string(c.Status),
		ChangedBy:        c.ChangedBy,
		TriggeredByEvent: c.TriggeredByEvent,
		ChangedAt:        c.ChangedAt,
	}
}

// StateChangeMessage is published to the notification pipeline for every status change.
type StateChangeMessage struct {
	Entity    string    `json:"entity"` // event, zone
	EntityID  uint32    `json:"entity_id"`
	Status    string    `json:"status"`
	ChangedBy *uint32   `json:"changed_by,omitempty"`
	EventID   *uint32   `json:"event_id,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}
