package services

import (
	"context"

	"cleanzone-api/apperrors"
	"cleanzone-api/clock"
	"cleanzone-api/metrics"
	"cleanzone-api/models"
	"cleanzone-api/repositories"
)

// ChatBroadcaster pushes accepted messages to live subscribers.
type ChatBroadcaster interface {
	BroadcastToEvent(eventID uint32, v interface{})
}

type MessageService struct {
	store       *repositories.Store
	clock       clock.Clock
	broadcaster ChatBroadcaster
}

func NewMessageService(store *repositories.Store, clk clock.Clock, broadcaster ChatBroadcaster) *MessageService {
	return &MessageService{store: store, clock: clk, broadcaster: broadcaster}
}

// Send appends a message to the event chat. Chat positions strictly increase per event.
func (s *MessageService) Send(ctx context.Context, senderID, eventID uint32, content string) (*models.Message, error) {
	body, err := models.NewMessageContent(content)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var message *models.Message
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		// allocating the position first serializes senders on the event row
		position, err := tx.Events.NextChatPosition(ctx, eventID)
		if err != nil {
			return err
		}
		event, err := tx.Events.FindByID(ctx, eventID)
		if err != nil {
			return err
		}
		if !event.CanAccessChat(senderID) {
			return apperrors.Authorization("only the organizer and participants can use this chat")
		}
		if event.IsChatReadOnly(now) {
			return apperrors.Conflict("chat is read-only because the event is %s", event.EffectiveStatus(now))
		}
		sender, err := tx.Users.FindByID(ctx, senderID)
		if err != nil {
			return err
		}

		message = &models.Message{
			EventID:      eventID,
			SenderID:     senderID,
			SenderName:   sender.Name,
			Content:      body.String(),
			ChatPosition: position,
			SentAt:       now,
		}
		return tx.Messages.Create(ctx, message)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordChatMessage()
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToEvent(eventID, message.ToResponse())
	}
	return message, nil
}

func (s *MessageService) List(ctx context.Context, viewerID, eventID uint32, page models.MessagePage) ([]models.Message, error) {
	if err := s.CheckAccess(ctx, viewerID, eventID); err != nil {
		return nil, err
	}
	return s.store.Messages.List(ctx, eventID, page)
}

// CheckAccess verifies the viewer may read the event chat.
func (s *MessageService) CheckAccess(ctx context.Context, viewerID, eventID uint32) error {
	event, err := s.store.Events.FindByID(ctx, eventID)
	if err != nil {
		return err
	}
	if !event.CanAccessChat(viewerID) {
		return apperrors.Authorization("only the organizer and participants can use this chat")
	}
	return nil
}
