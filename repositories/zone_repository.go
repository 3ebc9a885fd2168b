package repositories

import (
	"context"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"cleanzone-api/models"
)

type ZoneRepository struct {
	db *gorm.DB
}

func NewZoneRepository(db *gorm.DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

func (r *ZoneRepository) Create(ctx context.Context, zone *models.Zone) error {
	return translateError(r.db.WithContext(ctx).Create(zone).Error, "zone")
}

func (r *ZoneRepository) FindByID(ctx context.Context, id uint32) (*models.Zone, error) {
	var zone models.Zone
	if err := r.db.WithContext(ctx).First(&zone, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "zone")
	}
	return &zone, nil
}

func (r *ZoneRepository) Update(ctx context.Context, id uint32, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Zone{}).Where("id = ?", id).Updates(updates)
	return translateError(res.Error, "zone")
}

// Lock touches the zone row so concurrent writers to the same zone serialize.
// Call it first inside a transaction.
func (r *ZoneRepository) Lock(ctx context.Context, id uint32, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Zone{}).Where("id = ?", id).UpdateColumn("updated_at", now)
	return translateError(res.Error, "zone")
}

// ClearEvent detaches the zone from its event.
func (r *ZoneRepository) ClearEvent(ctx context.Context, id uint32) error {
	err := r.db.WithContext(ctx).Model(&models.Zone{}).Where("id = ?", id).Update("event_id", nil).Error
	return translateError(err, "zone")
}

func (r *ZoneRepository) SetPhotoIDs(ctx context.Context, id uint32, kind models.PhotoKind, ids models.IDSet) error {
	column := "before_photo_ids"
	if kind == models.PhotoKindAfter {
		column = "after_photo_ids"
	}
	err := r.db.WithContext(ctx).Model(&models.Zone{}).Where("id = ?", id).Update(column, ids).Error
	return translateError(err, "zone")
}

// List returns zones matching the filter. A geographic filter is prefiltered with a bounding box
// in SQL and refined with the haversine distance, nearest first.
func (r *ZoneRepository) List(ctx context.Context, filter models.ZoneFilter) ([]models.Zone, int64, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset)

	query := r.db.WithContext(ctx).Model(&models.Zone{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Severity != nil {
		query = query.Where("severity = ?", *filter.Severity)
	}
	if filter.ReporterID != nil {
		query = query.Where("reporter_id = ?", *filter.ReporterID)
	}

	if filter.Near == nil {
		var total int64
		if err := query.Count(&total).Error; err != nil {
			return nil, 0, translateError(err, "zone")
		}
		var zones []models.Zone
		if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&zones).Error; err != nil {
			return nil, 0, translateError(err, "zone")
		}
		return zones, total, nil
	}

	center := *filter.Near
	latDelta := filter.RadiusKm / 111.0
	lonDelta := 180.0
	if cos := math.Cos(center.Latitude * math.Pi / 180); cos > 0.01 {
		lonDelta = filter.RadiusKm / (111.0 * cos)
	}
	query = query.
		Where("latitude BETWEEN ? AND ?", center.Latitude-latDelta, center.Latitude+latDelta).
		Where("longitude BETWEEN ? AND ?", center.Longitude-lonDelta, center.Longitude+lonDelta)

	var candidates []models.Zone
	if err := query.Find(&candidates).Error; err != nil {
		return nil, 0, translateError(err, "zone")
	}

	within := candidates[:0]
	for _, z := range candidates {
		if center.DistanceKm(z.Location()) <= filter.RadiusKm {
			within = append(within, z)
		}
	}
	sort.SliceStable(within, func(i, j int) bool {
		return center.DistanceKm(within[i].Location()) < center.DistanceKm(within[j].Location())
	})

	total := int64(len(within))
	if offset >= len(within) {
		return []models.Zone{}, total, nil
	}
	end := offset + limit
	if end > len(within) {
		end = len(within)
	}
	return within[offset:end], total, nil
}

type PhotoRepository struct {
	db *gorm.DB
}

func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

func (r *PhotoRepository) Create(ctx context.Context, photo *models.ZonePhoto) error {
	return translateError(r.db.WithContext(ctx).Create(photo).Error, "photo")
}

func (r *PhotoRepository) FindByID(ctx context.Context, id uint32) (*models.ZonePhoto, error) {
	var photo models.ZonePhoto
	if err := r.db.WithContext(ctx).First(&photo, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "photo")
	}
	return &photo, nil
}
