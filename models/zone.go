package models

import (
	"time"

	"cleanzone-api/apperrors"
)

type ZoneStatus string

const (
	ZoneStatusReported           ZoneStatus = "REPORTED"
	ZoneStatusCleaningScheduled  ZoneStatus = "CLEANING_SCHEDULED"
	ZoneStatusCleaningInProgress ZoneStatus = "CLEANING_IN_PROGRESS"
	ZoneStatusCleaned            ZoneStatus = "CLEANED"
)

func ParseZoneStatus(s string) (ZoneStatus, error) {
	switch st := ZoneStatus(s); st {
	case ZoneStatusReported, ZoneStatusCleaningScheduled, ZoneStatusCleaningInProgress, ZoneStatusCleaned:
		return st, nil
	}
	return "", apperrors.Validation("unknown zone status %q", s)
}

type Severity string

const (
	SeverityUnknown  Severity = "UNKNOWN"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(s); sev {
	case SeverityUnknown, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	}
	return "", apperrors.Validation("unknown severity %q", s)
}

type PhotoKind string

const (
	PhotoKindBefore PhotoKind = "BEFORE"
	PhotoKindAfter  PhotoKind = "AFTER"
)

func ParsePhotoKind(s string) (PhotoKind, error) {
	switch k := PhotoKind(s); k {
	case PhotoKindBefore, PhotoKindAfter:
		return k, nil
	}
	return "", apperrors.Validation("photo kind must be BEFORE or AFTER")
}

type Zone struct {
	ID             uint32     `json:"id" gorm:"primaryKey"`
	Latitude       float64    `json:"latitude" gorm:"not null"`
	Longitude      float64    `json:"longitude" gorm:"not null"`
	RadiusMeters   float64    `json:"radius_meters" gorm:"not null"`
	Description    string     `json:"description" gorm:"not null;type:text"`
	ReporterID     uint32     `json:"reporter_id" gorm:"not null;index"`
	EventID        *uint32    `json:"event_id" gorm:"index"`
	Status         ZoneStatus `json:"status" gorm:"not null;size:32;index"`
	Severity       Severity   `json:"severity" gorm:"not null;size:16"`
	BeforePhotoIDs IDSet      `json:"before_photo_ids" gorm:"type:json"`
	AfterPhotoIDs  IDSet      `json:"after_photo_ids" gorm:"type:json"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (z *Zone) Location() Location {
	return Location{Latitude: z.Latitude, Longitude: z.Longitude}
}

// CanManage tells whether the viewer may edit descriptive fields and severity.
func (z *Zone) CanManage(viewerID uint32, role Role) bool {
	return role == RoleAdmin || z.ReporterID == viewerID
}

type ZonePhoto struct {
	ID          uint32    `json:"id" gorm:"primaryKey"`
	ZoneID      uint32    `json:"zone_id" gorm:"not null;index"`
	Kind        PhotoKind `json:"kind" gorm:"not null;size:16"`
	UploaderID  uint32    `json:"uploader_id" gorm:"not null"`
	Path        string    `json:"-" gorm:"not null;size:500"`
	ContentType string    `json:"content_type" gorm:"not null;size:100"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CreatedAt   time.Time `json:"created_at"`
}

// ZoneResponse represents a zone on the wire.
type ZoneResponse struct {
	ID             uint32     `json:"id"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	RadiusMeters   float64    `json:"radius_meters"`
	Description    string     `json:"description"`
	ReporterID     uint32     `json:"reporter_id"`
	EventID        *uint32    `json:"event_id,omitempty"`
	Status         ZoneStatus `json:"status"`
	Severity       Severity   `json:"severity"`
	BeforePhotoIDs IDSet      `json:"before_photo_ids"`
	AfterPhotoIDs  IDSet      `json:"after_photo_ids"`
	DistanceKm     *float64   `json:"distance_km,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (z *Zone) ToResponse() ZoneResponse {
	return ZoneResponse{
		ID:             z.ID,
		Latitude:       z.Latitude,
		Longitude:      z.Longitude,
		RadiusMeters:   z.RadiusMeters,
		Description:    z.Description,
		ReporterID:     z.ReporterID,
		EventID:        z.EventID,
		Status:         z.Status,
		Severity:       z.Severity,
		BeforePhotoIDs: z.BeforePhotoIDs,
		AfterPhotoIDs:  z.AfterPhotoIDs,
		CreatedAt:      z.CreatedAt,
		UpdatedAt:      z.UpdatedAt,
	}
}

type CreateZoneRequest struct {
	Latitude     float64 `json:"latitude" binding:"latitude"`
	Longitude    float64 `json:"longitude" binding:"longitude"`
	RadiusMeters float64 `json:"radius_meters" binding:"required"`
	Description  string  `json:"description" binding:"required"`
	Severity     string  `json:"severity" binding:"omitempty,severity"`
}

type UpdateZoneRequest struct {
	Description  *string  `json:"description"`
	RadiusMeters *float64 `json:"radius_meters"`
	Severity     *string  `json:"severity" binding:"omitempty,severity"`
}

type UpdateZoneStatusRequest struct {
	Status string `json:"status" binding:"required,zonestatus"`
}

// ZoneFilter narrows zone listings. Near/RadiusKm restrict to a circle around a point.
type ZoneFilter struct {
	Status     *ZoneStatus
	Severity   *Severity
	ReporterID *uint32
	Near       *Location
	RadiusKm   float64
	Limit      int
	Offset     int
}
