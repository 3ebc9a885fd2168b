package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"cleanzone-api/apperrors"
	"cleanzone-api/clock"
	"cleanzone-api/models"
	"cleanzone-api/repositories"
)

// ChatRevoker closes live chat streams of viewers who lost access to an event.
type ChatRevoker interface {
	Disconnect(eventID, userID uint32)
	CloseRoom(eventID uint32)
}

type EventService struct {
	store       *repositories.Store
	clock       clock.Clock
	publisher   StateChangePublisher
	notifier    Notifier
	chat        ChatRevoker
	transferTTL time.Duration
	log         *logrus.Logger

	// dispatch runs notifications off the request path.
	dispatch func(func())
}

func NewEventService(
	store *repositories.Store,
	clk clock.Clock,
	publisher StateChangePublisher,
	notifier Notifier,
	chat ChatRevoker,
	transferTTL time.Duration,
	log *logrus.Logger,
) *EventService {
	return &EventService{
		store:       store,
		clock:       clk,
		publisher:   publisher,
		notifier:    notifier,
		chat:        chat,
		transferTTL: transferTTL,
		log:         log,
		dispatch:    func(f func()) { go f() },
	}
}

// Project renders the event for one viewer, including the permission set.
func (s *EventService) Project(event *models.Event, viewerID uint32) models.EventResponse {
	return event.ToResponse(viewerID, s.clock.Now(), s.transferTTL)
}

func (s *EventService) Get(ctx context.Context, id uint32) (*models.Event, error) {
	return s.store.Events.FindByID(ctx, id)
}

func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int64, error) {
	return s.store.Events.List(ctx, filter)
}

func (s *EventService) History(ctx context.Context, id uint32) ([]models.EventStateChange, error) {
	if _, err := s.store.Events.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.StateChanges.ListForEvent(ctx, id)
}

// Create schedules a cleanup on a zone that has no active event.
func (s *EventService) Create(ctx context.Context, organizerID uint32, req models.CreateEventRequest) (*models.Event, error) {
	now := s.clock.Now()

	title, err := models.NewTitle(req.Title)
	if err != nil {
		return nil, err
	}
	description, err := models.NewDescription(req.Description)
	if err != nil {
		return nil, err
	}
	period, err := models.NewPeriod(req.StartAt, req.EndAt)
	if err != nil {
		return nil, err
	}
	if !period.Start.After(now) {
		return nil, apperrors.Validation("event must start in the future")
	}
	maxParticipants, err := models.NewMaxParticipants(req.MaxParticipants)
	if err != nil {
		return nil, err
	}

	var created *models.Event
	changes := &changeSet{}
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		zone, err := tx.Zones.FindByID(ctx, req.ZoneID)
		if err != nil {
			return err
		}
		if zone.Status == models.ZoneStatusCleaned {
			return apperrors.Conflict("zone is already cleaned")
		}
		busy, err := tx.Events.HasActiveForZone(ctx, zone.ID)
		if err != nil {
			return err
		}
		if busy {
			return apperrors.Conflict("zone already has an active cleanup event")
		}

		event := &models.Event{
			Title:           title.String(),
			Description:     description.String(),
			StartAt:         period.Start,
			EndAt:           period.End,
			ZoneID:          zone.ID,
			OrganizerID:     organizerID,
			Status:          models.EventStatusPlanned,
			MaxParticipants: maxParticipants,
		}
		if err := tx.Events.Create(ctx, event); err != nil {
			return err
		}
		if err := changes.event(ctx, tx, event.ID, models.EventStatusPlanned, &organizerID, now); err != nil {
			return err
		}

		if err := tx.Zones.Update(ctx, zone.ID, map[string]interface{}{"event_id": event.ID}); err != nil {
			return err
		}
		if err := changes.moveZone(ctx, tx, zone, models.ZoneStatusCleaningScheduled, &organizerID, &event.ID, now); err != nil {
			return err
		}
		created = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	changes.flush(ctx, s.publisher, s.log)
	s.log.WithFields(logrus.Fields{"event_id": created.ID, "zone_id": created.ZoneID}).Info("event created")
	return s.store.Events.FindByID(ctx, created.ID)
}

// Update edits a PLANNED event. Only the organizer may edit.
func (s *EventService) Update(ctx context.Context, viewerID, id uint32, req models.UpdateEventRequest) (*models.Event, error) {
	now := s.clock.Now()

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		event, err := s.lockedEvent(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !event.IsOrganizer(viewerID) {
			return apperrors.Authorization("only the organizer can edit this event")
		}
		if !event.CanOrganizerEdit(viewerID, now) {
			return apperrors.Conflict("only planned events can be edited")
		}

		updates := map[string]interface{}{}
		if req.Title != nil {
			title, err := models.NewTitle(*req.Title)
			if err != nil {
				return err
			}
			updates["title"] = title.String()
		}
		if req.Description != nil {
			description, err := models.NewDescription(*req.Description)
			if err != nil {
				return err
			}
			updates["description"] = description.String()
		}
		if req.StartAt != nil || req.EndAt != nil {
			start := event.StartAt
			if req.StartAt != nil {
				start = *req.StartAt
			}
			end := event.EndAt
			if req.EndAt != nil {
				end = req.EndAt
			}
			period, err := models.NewPeriod(start, end)
			if err != nil {
				return err
			}
			if !period.Start.After(now) {
				return apperrors.Validation("event must start in the future")
			}
			updates["start_at"] = period.Start
			updates["end_at"] = period.End
		}
		if req.MaxParticipants != nil {
			capacity, err := models.NewMaxParticipants(req.MaxParticipants)
			if err != nil {
				return err
			}
			if *capacity < event.ParticipantCount() {
				return apperrors.Conflict("max participants cannot be lower than the current participant count")
			}
			updates["max_participants"] = *capacity
		}

		if len(updates) == 0 {
			return nil
		}
		return tx.Events.Update(ctx, id, updates)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Events.FindByID(ctx, id)
}

func (s *EventService) Join(ctx context.Context, userID, id uint32) (*models.Event, error) {
	now := s.clock.Now()

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		event, err := s.lockedEvent(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !event.EffectiveStatus(now).IsActive() {
			return apperrors.Conflict("event is no longer open")
		}
		if err := event.AddParticipant(userID); err != nil {
			return err
		}
		return tx.Events.AddParticipant(ctx, id, userID)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Events.FindByID(ctx, id)
}

func (s *EventService) Leave(ctx context.Context, userID, id uint32) (*models.Event, error) {
	now := s.clock.Now()

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		event, err := s.lockedEvent(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !event.IsParticipant(userID) {
			return apperrors.Conflict("not a participant of this event")
		}
		if !event.CanUserLeave(userID, now) {
			return apperrors.Conflict("participants can only leave planned events")
		}
		return tx.Events.RemoveParticipant(ctx, id, userID)
	})
	if err != nil {
		return nil, err
	}

	s.chat.Disconnect(id, userID)
	return s.store.Events.FindByID(ctx, id)
}

// Cancel ends the event and releases its zone back to REPORTED.
func (s *EventService) Cancel(ctx context.Context, viewerID, id uint32) (*models.Event, error) {
	now := s.clock.Now()
	changes := &changeSet{}
	var cancelled *models.Event

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		event, err := s.lockedEvent(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !event.IsOrganizer(viewerID) {
			return apperrors.Authorization("only the organizer can cancel this event")
		}
		if !event.CanOrganizerCancel(viewerID, now) {
			return apperrors.Conflict("event is already %s", event.EffectiveStatus(now))
		}

		if event.Status == models.EventStatusPlanned && event.EffectiveStatus(now) == models.EventStatusInProgress {
			if err := changes.event(ctx, tx, id, models.EventStatusInProgress, nil, event.StartAt); err != nil {
				return err
			}
		}
		if err := tx.Events.Update(ctx, id, map[string]interface{}{
			"status":                models.EventStatusCancelled,
			"pending_organizer_id":  nil,
			"transfer_request_time": nil,
		}); err != nil {
			return err
		}
		if err := changes.event(ctx, tx, id, models.EventStatusCancelled, &viewerID, now); err != nil {
			return err
		}
		if err := s.releaseZone(ctx, tx, changes, event, &viewerID, now); err != nil {
			return err
		}
		cancelled = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	changes.flush(ctx, s.publisher, s.log)
	s.notifyCancelled(cancelled)
	return s.store.Events.FindByID(ctx, id)
}

// Complete closes an IN_PROGRESS event and marks its zone CLEANED.
func (s *EventService) Complete(ctx context.Context, viewerID, id uint32) (*models.Event, error) {
	now := s.clock.Now()
	changes := &changeSet{}

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		event, err := s.lockedEvent(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !event.IsOrganizer(viewerID) {
			return apperrors.Authorization("only the organizer can complete this event")
		}
		if !event.CanOrganizerComplete(viewerID, now) {
			return apperrors.Conflict("only events in progress can be completed")
		}

		if event.Status == models.EventStatusPlanned {
			// started but not yet picked up by the lifecycle job
			if err := changes.event(ctx, tx, id, models.EventStatusInProgress, nil, event.StartAt); err != nil {
				return err
			}
		}
		if err := tx.Events.Update(ctx, id, map[string]interface{}{
			"status":                models.EventStatusCompleted,
			"pending_organizer_id":  nil,
			"transfer_request_time": nil,
		}); err != nil {
			return err
		}
		if err := changes.event(ctx, tx, id, models.EventStatusCompleted, &viewerID, now); err != nil {
			return err
		}

		zone, err := tx.Zones.FindByID(ctx, event.ZoneID)
		if err != nil {
			return err
		}
		return changes.moveZone(ctx, tx, zone, models.ZoneStatusCleaned, &viewerID, &event.ID, now)
	})
	if err != nil {
		return nil, err
	}

	changes.flush(ctx, s.publisher, s.log)
	return s.store.Events.FindByID(ctx, id)
}

// Delete removes a PLANNED or CANCELLED event. A planned event releases its zone first.
func (s *EventService) Delete(ctx context.Context, viewerID, id uint32) error {
	now := s.clock.Now()
	changes := &changeSet{}

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		event, err := s.lockedEvent(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !event.IsOrganizer(viewerID) {
			return apperrors.Authorization("only the organizer can delete this event")
		}
		if !event.CanOrganizerDelete(viewerID, now) {
			return apperrors.Conflict("only planned or cancelled events can be deleted")
		}
		if event.Status == models.EventStatusPlanned {
			if err := s.releaseZone(ctx, tx, changes, event, &viewerID, now); err != nil {
				return err
			}
		}
		return tx.Events.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	changes.flush(ctx, s.publisher, s.log)
	s.chat.CloseRoom(id)
	s.log.WithField("event_id", id).Info("event deleted")
	return nil
}

func (s *EventService) RequestTransfer(ctx context.Context, viewerID, id, newOrganizerID uint32) (*models.Event, error) {
	now := s.clock.Now()
	var event *models.Event
	var from, to *models.User

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		event, err = s.lockedEvent(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !event.IsOrganizer(viewerID) {
			return apperrors.Authorization("only the organizer can transfer this event")
		}
		if newOrganizerID == viewerID {
			return apperrors.Validation("cannot transfer an event to its current organizer")
		}
		if event.HasPendingTransfer() {
			return apperrors.Conflict("an ownership transfer is already pending")
		}
		if !event.CanOrganizerTransfer(viewerID, now) {
			return apperrors.Conflict("event can no longer be transferred")
		}

		if from, err = tx.Users.FindByID(ctx, viewerID); err != nil {
			return err
		}
		if to, err = tx.Users.FindByID(ctx, newOrganizerID); err != nil {
			return err
		}

		return tx.Events.Update(ctx, id, map[string]interface{}{
			"pending_organizer_id":  newOrganizerID,
			"transfer_request_time": now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(func() { s.notifier.TransferRequested(event, from, to) })
	return s.store.Events.FindByID(ctx, id)
}

// AcceptTransfer hands the event to the pending organizer, who leaves the participant set.
func (s *EventService) AcceptTransfer(ctx context.Context, viewerID, id uint32) (*models.Event, error) {
	now := s.clock.Now()
	var previousOrganizer uint32

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		event, err := s.lockedEvent(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if err := s.checkTransferResponder(event, viewerID, now); err != nil {
			return err
		}
		previousOrganizer = event.OrganizerID
		if event.IsParticipant(viewerID) {
			if err := tx.Events.RemoveParticipant(ctx, id, viewerID); err != nil {
				return err
			}
		}
		return tx.Events.Update(ctx, id, map[string]interface{}{
			"organizer_id":          viewerID,
			"pending_organizer_id":  nil,
			"transfer_request_time": nil,
		})
	})
	if err != nil {
		return nil, err
	}

	s.chat.Disconnect(id, previousOrganizer)
	s.log.WithFields(logrus.Fields{"event_id": id, "organizer_id": viewerID}).Info("event ownership transferred")
	return s.store.Events.FindByID(ctx, id)
}

func (s *EventService) DeclineTransfer(ctx context.Context, viewerID, id uint32) (*models.Event, error) {
	now := s.clock.Now()

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		event, err := s.lockedEvent(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if event.PendingOrganizerID == nil || *event.PendingOrganizerID != viewerID {
			return apperrors.Authorization("no ownership transfer is pending for you")
		}
		return tx.Events.ClearTransfer(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Events.FindByID(ctx, id)
}

// WithdrawTransfer lets the organizer take back a pending request.
func (s *EventService) WithdrawTransfer(ctx context.Context, viewerID, id uint32) (*models.Event, error) {
	now := s.clock.Now()

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		event, err := s.lockedEvent(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !event.IsOrganizer(viewerID) {
			return apperrors.Authorization("only the organizer can withdraw a transfer")
		}
		if !event.HasPendingTransfer() {
			return apperrors.Conflict("no ownership transfer is pending")
		}
		return tx.Events.ClearTransfer(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Events.FindByID(ctx, id)
}

func (s *EventService) CheckIn(ctx context.Context, userID, id uint32) (*models.Attendance, error) {
	now := s.clock.Now()

	event, err := s.store.Events.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.CanAccessChat(userID) {
		return nil, apperrors.Authorization("only the organizer and participants can check in")
	}
	if !event.CanCheckIn(userID, now) {
		return nil, apperrors.Conflict("check-in is only open while the event is in progress")
	}

	checkedIn, err := s.store.Attendance.Exists(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if checkedIn {
		return nil, apperrors.Conflict("already checked in")
	}

	attendance := &models.Attendance{EventID: id, UserID: userID, CheckedInAt: now}
	if err := s.store.Attendance.Create(ctx, attendance); err != nil {
		if apperrors.Is(err, apperrors.KindConflict) {
			return nil, apperrors.Conflict("already checked in")
		}
		return nil, err
	}
	return attendance, nil
}

func (s *EventService) Attendance(ctx context.Context, viewerID, id uint32) ([]models.Attendance, error) {
	event, err := s.store.Events.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.CanAccessChat(viewerID) {
		return nil, apperrors.Authorization("only the organizer and participants can view attendance")
	}
	return s.store.Attendance.ListByEvent(ctx, id)
}

// MarkStarted persists IN_PROGRESS for a started event and moves its zone to CLEANING_IN_PROGRESS.
// It is a no-op when the event moved on in the meantime.
func (s *EventService) MarkStarted(ctx context.Context, id uint32) error {
	now := s.clock.Now()
	changes := &changeSet{}

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		event, err := s.lockedEvent(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if event.Status != models.EventStatusPlanned || now.Before(event.StartAt) {
			return nil
		}

		if err := tx.Events.Update(ctx, id, map[string]interface{}{"status": models.EventStatusInProgress}); err != nil {
			return err
		}
		if err := changes.event(ctx, tx, id, models.EventStatusInProgress, nil, now); err != nil {
			return err
		}

		zone, err := tx.Zones.FindByID(ctx, event.ZoneID)
		if err != nil {
			return err
		}
		if zone.EventID == nil || *zone.EventID != event.ID {
			return nil
		}
		return changes.moveZone(ctx, tx, zone, models.ZoneStatusCleaningInProgress, nil, &event.ID, now)
	})
	if err != nil {
		return err
	}

	changes.flush(ctx, s.publisher, s.log)
	return nil
}

// ExpireTransfer clears a pending transfer older than the TTL.
func (s *EventService) ExpireTransfer(ctx context.Context, id uint32) error {
	now := s.clock.Now()
	return s.store.Transaction(ctx, func(tx *repositories.Store) error {
		event, err := s.lockedEvent(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !event.HasPendingTransfer() || !event.TransferExpired(now, s.transferTTL) {
			return nil
		}
		return tx.Events.ClearTransfer(ctx, id)
	})
}

func (s *EventService) TransferTTL() time.Duration {
	return s.transferTTL
}

func (s *EventService) lockedEvent(ctx context.Context, tx *repositories.Store, id uint32, now time.Time) (*models.Event, error) {
	if err := tx.Events.Lock(ctx, id, now); err != nil {
		return nil, err
	}
	return tx.Events.FindByID(ctx, id)
}

func (s *EventService) checkTransferResponder(event *models.Event, viewerID uint32, now time.Time) error {
	if event.PendingOrganizerID == nil || *event.PendingOrganizerID != viewerID {
		return apperrors.Authorization("no ownership transfer is pending for you")
	}
	if event.TransferExpired(now, s.transferTTL) {
		return apperrors.Conflict("the ownership transfer request has expired")
	}
	if !event.CanRespondToTransfer(viewerID, now, s.transferTTL) {
		return apperrors.Conflict("event can no longer be transferred")
	}
	return nil
}

// releaseZone returns the event's zone to REPORTED if the zone still points at it.
func (s *EventService) releaseZone(ctx context.Context, tx *repositories.Store, changes *changeSet, event *models.Event, by *uint32, now time.Time) error {
	zone, err := tx.Zones.FindByID(ctx, event.ZoneID)
	if err != nil {
		return err
	}
	if zone.EventID == nil || *zone.EventID != event.ID {
		return nil
	}
	if err := tx.Zones.ClearEvent(ctx, zone.ID); err != nil {
		return err
	}
	return changes.moveZone(ctx, tx, zone, models.ZoneStatusReported, by, &event.ID, now)
}

func (s *EventService) notifyCancelled(event *models.Event) {
	if event == nil || len(event.Participants) == 0 {
		return
	}
	s.dispatch(func() {
		users, err := s.store.Users.FindByIDs(context.Background(), event.ParticipantIDs())
		if err != nil {
			s.log.WithError(err).WithField("event_id", event.ID).Warn("failed to load participants for cancellation notice")
			return
		}
		s.notifier.EventCancelled(event, users)
	})
}
