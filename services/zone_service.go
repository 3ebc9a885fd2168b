package services

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"cleanzone-api/apperrors"
	"cleanzone-api/clock"
	"cleanzone-api/models"
	"cleanzone-api/repositories"
)

type ZoneService struct {
	store     *repositories.Store
	clock     clock.Clock
	publisher StateChangePublisher
	log       *logrus.Logger
}

func NewZoneService(store *repositories.Store, clk clock.Clock, publisher StateChangePublisher, log *logrus.Logger) *ZoneService {
	return &ZoneService{store: store, clock: clk, publisher: publisher, log: log}
}

// Report creates a zone in REPORTED state.
func (s *ZoneService) Report(ctx context.Context, reporterID uint32, req models.CreateZoneRequest) (*models.Zone, error) {
	location, err := models.NewLocation(req.Latitude, req.Longitude)
	if err != nil {
		return nil, err
	}
	radius, err := models.NewRadius(req.RadiusMeters)
	if err != nil {
		return nil, err
	}
	description, err := models.NewDescription(req.Description)
	if err != nil {
		return nil, err
	}
	severity := models.SeverityUnknown
	if req.Severity != "" {
		if severity, err = models.ParseSeverity(req.Severity); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	zone := &models.Zone{
		Latitude:       location.Latitude,
		Longitude:      location.Longitude,
		RadiusMeters:   radius.Meters(),
		Description:    description.String(),
		ReporterID:     reporterID,
		Status:         models.ZoneStatusReported,
		Severity:       severity,
		BeforePhotoIDs: models.IDSet{},
		AfterPhotoIDs:  models.IDSet{},
	}

	changes := &changeSet{}
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if err := tx.Zones.Create(ctx, zone); err != nil {
			return err
		}
		return changes.zone(ctx, tx, zone.ID, models.ZoneStatusReported, &reporterID, nil, now)
	})
	if err != nil {
		return nil, err
	}

	changes.flush(ctx, s.publisher, s.log)
	s.log.WithFields(logrus.Fields{"zone_id": zone.ID, "severity": zone.Severity}).Info("zone reported")
	return zone, nil
}

func (s *ZoneService) Get(ctx context.Context, id uint32) (*models.Zone, error) {
	return s.store.Zones.FindByID(ctx, id)
}

func (s *ZoneService) List(ctx context.Context, filter models.ZoneFilter) ([]models.Zone, int64, error) {
	if filter.Near != nil && (filter.RadiusKm <= 0 || math.IsNaN(filter.RadiusKm) || math.IsInf(filter.RadiusKm, 0)) {
		return nil, 0, apperrors.Validation("radius_km must be a positive finite number")
	}
	return s.store.Zones.List(ctx, filter)
}

func (s *ZoneService) History(ctx context.Context, id uint32) ([]models.ZoneStateChange, error) {
	if _, err := s.store.Zones.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.StateChanges.ListForZone(ctx, id)
}

// Update edits description, radius and severity. Reporter or ADMIN only.
func (s *ZoneService) Update(ctx context.Context, viewerID uint32, role models.Role, id uint32, req models.UpdateZoneRequest) (*models.Zone, error) {
	zone, err := s.store.Zones.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !zone.CanManage(viewerID, role) {
		return nil, apperrors.Authorization("only the reporter or an administrator can edit this zone")
	}

	updates := map[string]interface{}{}
	if req.Description != nil {
		description, err := models.NewDescription(*req.Description)
		if err != nil {
			return nil, err
		}
		updates["description"] = description.String()
	}
	if req.RadiusMeters != nil {
		radius, err := models.NewRadius(*req.RadiusMeters)
		if err != nil {
			return nil, err
		}
		updates["radius_meters"] = radius.Meters()
	}
	if req.Severity != nil {
		severity, err := models.ParseSeverity(*req.Severity)
		if err != nil {
			return nil, err
		}
		updates["severity"] = severity
	}

	if len(updates) > 0 {
		if err := s.store.Zones.Update(ctx, id, updates); err != nil {
			return nil, err
		}
	}
	return s.store.Zones.FindByID(ctx, id)
}

// SetStatus is an administrative override. A zone bound to an active event keeps its
// event-driven status.
func (s *ZoneService) SetStatus(ctx context.Context, viewerID uint32, role models.Role, id uint32, status models.ZoneStatus) (*models.Zone, error) {
	if role != models.RoleAdmin {
		return nil, apperrors.Authorization("only administrators can change zone status")
	}

	now := s.clock.Now()
	changes := &changeSet{}
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		zone, err := tx.Zones.FindByID(ctx, id)
		if err != nil {
			return err
		}
		busy, err := tx.Events.HasActiveForZone(ctx, id)
		if err != nil {
			return err
		}
		if busy {
			return apperrors.Conflict("zone status is driven by its active cleanup event")
		}
		return changes.moveZone(ctx, tx, zone, status, &viewerID, nil, now)
	})
	if err != nil {
		return nil, err
	}

	changes.flush(ctx, s.publisher, s.log)
	return s.store.Zones.FindByID(ctx, id)
}
