package models

import (
	"time"

	"cleanzone-api/apperrors"
)

type EventStatus string

const (
	EventStatusPlanned    EventStatus = "PLANNED"
	EventStatusInProgress EventStatus = "IN_PROGRESS"
	EventStatusCompleted  EventStatus = "COMPLETED"
	EventStatusCancelled  EventStatus = "CANCELLED"
)

func ParseEventStatus(s string) (EventStatus, error) {
	switch st := EventStatus(s); st {
	case EventStatusPlanned, EventStatusInProgress, EventStatusCompleted, EventStatusCancelled:
		return st, nil
	}
	return "", apperrors.Validation("unknown event status %q", s)
}

// IsTerminal reports whether no further transition is possible.
func (s EventStatus) IsTerminal() bool {
	return s == EventStatusCompleted || s == EventStatusCancelled
}

// IsActive reports whether the event is still PLANNED or IN_PROGRESS.
func (s EventStatus) IsActive() bool {
	return s == EventStatusPlanned || s == EventStatusInProgress
}

type Event struct {
	ID                  uint32      `json:"id" gorm:"primaryKey"`
	Title               string      `json:"title" gorm:"not null;size:255"`
	Description         string      `json:"description" gorm:"not null;type:text"`
	StartAt             time.Time   `json:"start_at" gorm:"not null;index"`
	EndAt               *time.Time  `json:"end_at"`
	ZoneID              uint32      `json:"zone_id" gorm:"not null;index"`
	OrganizerID         uint32      `json:"organizer_id" gorm:"not null;index"`
	Status              EventStatus `json:"status" gorm:"not null;size:16;index"`
	MaxParticipants     *int        `json:"max_participants"`
	PendingOrganizerID  *uint32     `json:"pending_organizer_id"`
	TransferRequestTime *time.Time  `json:"transfer_request_time"`
	LastChatPosition    uint32      `json:"last_chat_position" gorm:"not null;default:0"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`

	Participants []EventParticipant `json:"participants" gorm:"foreignKey:EventID"`
}

type EventParticipant struct {
	ID        uint32    `json:"id" gorm:"primaryKey"`
	EventID   uint32    `json:"event_id" gorm:"not null;uniqueIndex:uk_event_participants_event_user"`
	UserID    uint32    `json:"user_id" gorm:"not null;uniqueIndex:uk_event_participants_event_user;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *Event) Period() Period {
	return Period{Start: e.StartAt, End: e.EndAt}
}

// EffectiveStatus overlays the time-derived IN_PROGRESS state on the persisted one.
// COMPLETED and CANCELLED are final and authoritative.
func (e *Event) EffectiveStatus(now time.Time) EventStatus {
	if e.Status.IsTerminal() {
		return e.Status
	}
	if e.Period().Contains(now) {
		return EventStatusInProgress
	}
	return e.Status
}

func (e *Event) ParticipantIDs() IDSet {
	ids := make(IDSet, 0, len(e.Participants))
	for _, p := range e.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

func (e *Event) ParticipantCount() int {
	return len(e.Participants)
}

func (e *Event) IsOrganizer(userID uint32) bool {
	return e.OrganizerID == userID
}

func (e *Event) IsParticipant(userID uint32) bool {
	for _, p := range e.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (e *Event) IsFull() bool {
	return e.MaxParticipants != nil && e.ParticipantCount() >= *e.MaxParticipants
}

func (e *Event) HasPendingTransfer() bool {
	return e.PendingOrganizerID != nil
}

// AddParticipant appends userID to the snapshot, enforcing capacity and uniqueness.
func (e *Event) AddParticipant(userID uint32) error {
	if e.IsOrganizer(userID) {
		return apperrors.Conflict("organizer cannot join their own event")
	}
	if e.IsParticipant(userID) {
		return apperrors.Conflict("already joined this event")
	}
	if e.IsFull() {
		return apperrors.Conflict("event is full")
	}
	e.Participants = append(e.Participants, EventParticipant{EventID: e.ID, UserID: userID})
	return nil
}

// EventPermissions is the set of actions a viewer may take on an event snapshot.
type EventPermissions struct {
	CanJoin            bool `json:"can_join"`
	CanLeave           bool `json:"can_leave"`
	CanEdit            bool `json:"can_edit"`
	CanCancel          bool `json:"can_cancel"`
	CanComplete        bool `json:"can_complete"`
	CanDelete          bool `json:"can_delete"`
	CanTransfer        bool `json:"can_transfer"`
	CanRespondTransfer bool `json:"can_respond_transfer"`
	CanCheckIn         bool `json:"can_check_in"`
	CanAccessChat      bool `json:"can_access_chat"`
	IsChatReadOnly     bool `json:"is_chat_read_only"`
	IsOrganizer        bool `json:"is_organizer"`
	IsParticipant      bool `json:"is_participant"`
	IsPendingOrganizer bool `json:"is_pending_organizer"`
}

func (e *Event) CanUserJoin(viewerID uint32, now time.Time) bool {
	return e.EffectiveStatus(now).IsActive() &&
		!e.IsFull() &&
		!e.IsOrganizer(viewerID) &&
		!e.IsParticipant(viewerID)
}

func (e *Event) CanUserLeave(viewerID uint32, now time.Time) bool {
	return e.EffectiveStatus(now) == EventStatusPlanned &&
		e.IsParticipant(viewerID) &&
		!e.IsOrganizer(viewerID)
}

func (e *Event) CanOrganizerEdit(viewerID uint32, now time.Time) bool {
	return e.IsOrganizer(viewerID) && e.EffectiveStatus(now) == EventStatusPlanned
}

func (e *Event) CanOrganizerCancel(viewerID uint32, now time.Time) bool {
	return e.IsOrganizer(viewerID) && e.EffectiveStatus(now).IsActive()
}

func (e *Event) CanOrganizerComplete(viewerID uint32, now time.Time) bool {
	return e.IsOrganizer(viewerID) && e.EffectiveStatus(now) == EventStatusInProgress
}

func (e *Event) CanOrganizerDelete(viewerID uint32, now time.Time) bool {
	st := e.EffectiveStatus(now)
	return e.IsOrganizer(viewerID) && (st == EventStatusPlanned || st == EventStatusCancelled)
}

func (e *Event) CanOrganizerTransfer(viewerID uint32, now time.Time) bool {
	return e.IsOrganizer(viewerID) && e.EffectiveStatus(now).IsActive() && !e.HasPendingTransfer()
}

// CanRespondToTransfer is true for the pending organizer while the request is fresh.
func (e *Event) CanRespondToTransfer(viewerID uint32, now time.Time, ttl time.Duration) bool {
	if e.PendingOrganizerID == nil || *e.PendingOrganizerID != viewerID {
		return false
	}
	if e.TransferExpired(now, ttl) {
		return false
	}
	return e.EffectiveStatus(now).IsActive()
}

func (e *Event) TransferExpired(now time.Time, ttl time.Duration) bool {
	if e.TransferRequestTime == nil || ttl <= 0 {
		return false
	}
	return !now.Before(e.TransferRequestTime.Add(ttl))
}

func (e *Event) CanCheckIn(viewerID uint32, now time.Time) bool {
	return (e.IsOrganizer(viewerID) || e.IsParticipant(viewerID)) &&
		e.EffectiveStatus(now) == EventStatusInProgress
}

func (e *Event) CanAccessChat(viewerID uint32) bool {
	return e.IsOrganizer(viewerID) || e.IsParticipant(viewerID)
}

func (e *Event) IsChatReadOnly(now time.Time) bool {
	return e.EffectiveStatus(now).IsTerminal()
}

func (e *Event) Permissions(viewerID uint32, now time.Time, transferTTL time.Duration) EventPermissions {
	return EventPermissions{
		CanJoin:            e.CanUserJoin(viewerID, now),
		CanLeave:           e.CanUserLeave(viewerID, now),
		CanEdit:            e.CanOrganizerEdit(viewerID, now),
		CanCancel:          e.CanOrganizerCancel(viewerID, now),
		CanComplete:        e.CanOrganizerComplete(viewerID, now),
		CanDelete:          e.CanOrganizerDelete(viewerID, now),
		CanTransfer:        e.CanOrganizerTransfer(viewerID, now),
		CanRespondTransfer: e.CanRespondToTransfer(viewerID, now, transferTTL),
		CanCheckIn:         e.CanCheckIn(viewerID, now),
		CanAccessChat:      e.CanAccessChat(viewerID),
		IsChatReadOnly:     e.IsChatReadOnly(now),
		IsOrganizer:        e.IsOrganizer(viewerID),
		IsParticipant:      e.IsParticipant(viewerID),
		IsPendingOrganizer: e.PendingOrganizerID != nil && *e.PendingOrganizerID == viewerID,
	}
}

// EventResponse represents an event on the wire, projected for one viewer.
type EventResponse struct {
	ID                  uint32           `json:"id"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	StartAt             time.Time        `json:"start_at"`
	EndAt               *time.Time       `json:"end_at,omitempty"`
	ZoneID              uint32           `json:"zone_id"`
	OrganizerID         uint32           `json:"organizer_id"`
	Status              EventStatus      `json:"status"`
	PersistedStatus     EventStatus      `json:"persisted_status"`
	MaxParticipants     *int             `json:"max_participants,omitempty"`
	ParticipantIDs      IDSet            `json:"participant_ids"`
	ParticipantsCount   int              `json:"participants_count"`
	IsFull              bool             `json:"is_full"`
	PendingOrganizerID  *uint32          `json:"pending_organizer_id,omitempty"`
	TransferRequestTime *time.Time       `json:"transfer_request_time,omitempty"`
	Permissions         EventPermissions `json:"permissions"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

func (e *Event) ToResponse(viewerID uint32, now time.Time, transferTTL time.Duration) EventResponse {
	return EventResponse{
		ID:                  e.ID,
		Title:               e.Title,
		Description:         e.Description,
		StartAt:             e.StartAt,
		EndAt:               e.EndAt,
		ZoneID:              e.ZoneID,
		OrganizerID:         e.OrganizerID,
		Status:              e.EffectiveStatus(now),
		PersistedStatus:     e.Status,
		MaxParticipants:     e.MaxParticipants,
		ParticipantIDs:      e.ParticipantIDs(),
		ParticipantsCount:   e.ParticipantCount(),
		IsFull:              e.IsFull(),
		PendingOrganizerID:  e.PendingOrganizerID,
		TransferRequestTime: e.TransferRequestTime,
		Permissions:         e.Permissions(viewerID, now, transferTTL),
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

type CreateEventRequest struct {
	Title           string     `json:"title" binding:"required"`
	Description     string     `json:"description" binding:"required"`
	StartAt         time.Time  `json:"start_at" binding:"required"`
	EndAt           *time.Time `json:"end_at"`
	ZoneID          uint32     `json:"zone_id" binding:"required"`
	MaxParticipants *int       `json:"max_participants"`
}

type UpdateEventRequest struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	StartAt         *time.Time `json:"start_at"`
	EndAt           *time.Time `json:"end_at"`
	MaxParticipants *int       `json:"max_participants"`
}

type TransferRequest struct {
	NewOrganizerID uint32 `json:"new_organizer_id" binding:"required"`
}

// EventFilter narrows event listings.
type EventFilter struct {
	Status        *EventStatus
	ZoneID        *uint32
	OrganizerID   *uint32
	ParticipantID *uint32
	Limit         int
	Offset        int
}

type Attendance struct {
	ID          uint32    `json:"id" gorm:"primaryKey"`
	EventID     uint32    `json:"event_id" gorm:"not null;uniqueIndex:uk_attendances_event_user"`
	UserID      uint32    `json:"user_id" gorm:"not null;uniqueIndex:uk_attendances_event_user;index"`
	CheckedInAt time.Time `json:"checked_in_at" gorm:"not null"`
}

type AttendanceResponse struct {
	ID          uint32    `json:"id"`
	EventID     uint32    `json:"event_id"`
	UserID      uint32    `json:"user_id"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

func (a *Attendance) ToResponse() AttendanceResponse {
	return AttendanceResponse{ID: a.ID, EventID: a.EventID, UserID: a.UserID, CheckedInAt: a.CheckedInAt}
}
