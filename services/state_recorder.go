package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"cleanzone-api/metrics"
	"cleanzone-api/models"
	"cleanzone-api/repositories"
)

// changeSet accumulates state changes written inside a transaction so they are
// published only after it commits.
type changeSet struct {
	messages []models.StateChangeMessage
}

func (c *changeSet) event(ctx context.Context, tx *repositories.Store, eventID uint32, status models.EventStatus, by *uint32, at time.Time) error {
	if err := tx.StateChanges.AppendEvent(ctx, &models.EventStateChange{
		EventID:   eventID,
		Status:    status,
		ChangedBy: by,
		ChangedAt: at,
	}); err != nil {
		return err
	}
	id := eventID
	c.messages = append(c.messages, models.StateChangeMessage{
		Entity:    "event",
		EntityID:  eventID,
		Status:    string(status),
		ChangedBy: by,
		EventID:   &id,
		ChangedAt: at,
	})
	return nil
}

func (c *changeSet) zone(ctx context.Context, tx *repositories.Store, zoneID uint32, status models.ZoneStatus, by, eventID *uint32, at time.Time) error {
	if err := tx.StateChanges.AppendZone(ctx, &models.ZoneStateChange{
		ZoneID:           zoneID,
		Status:           status,
		ChangedBy:        by,
		TriggeredByEvent: eventID,
		ChangedAt:        at,
	}); err != nil {
		return err
	}
	c.messages = append(c.messages, models.StateChangeMessage{
		Entity:    "zone",
		EntityID:  zoneID,
		Status:    string(status),
		ChangedBy: by,
		EventID:   eventID,
		ChangedAt: at,
	})
	return nil
}

// moveZone sets the zone status and records it, skipping no-op transitions.
func (c *changeSet) moveZone(ctx context.Context, tx *repositories.Store, zone *models.Zone, status models.ZoneStatus, by, eventID *uint32, at time.Time) error {
	if zone.Status == status {
		return nil
	}
	if err := tx.Zones.Update(ctx, zone.ID, map[string]interface{}{"status": status}); err != nil {
		return err
	}
	zone.Status = status
	return c.zone(ctx, tx, zone.ID, status, by, eventID, at)
}

// flush publishes the collected changes. Delivery failures are logged; the
// database state is already committed.
func (c *changeSet) flush(ctx context.Context, publisher StateChangePublisher, log *logrus.Logger) {
	for _, msg := range c.messages {
		metrics.RecordTransition(msg.Entity, msg.Status)
		if err := publisher.Publish(ctx, msg); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"entity":    msg.Entity,
				"entity_id": msg.EntityID,
				"status":    msg.Status,
			}).Error("failed to publish state change")
		}
	}
	c.messages = nil
}
