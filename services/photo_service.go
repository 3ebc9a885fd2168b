package services

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cleanzone-api/apperrors"
	"cleanzone-api/clock"
	"cleanzone-api/models"
	"cleanzone-api/repositories"
)

type PhotoService struct {
	store   *repositories.Store
	files   FileStorage
	clock   clock.Clock
	maxEdge int
	log     *logrus.Logger
}

func NewPhotoService(store *repositories.Store, files FileStorage, clk clock.Clock, maxEdge int, log *logrus.Logger) *PhotoService {
	if maxEdge <= 0 {
		maxEdge = 2048
	}
	return &PhotoService{store: store, files: files, clock: clk, maxEdge: maxEdge, log: log}
}

// Upload normalizes the image (orientation, size, JPEG) and attaches it to the zone.
// AFTER photos are accepted once cleaning has started.
func (s *PhotoService) Upload(ctx context.Context, uploaderID, zoneID uint32, kind models.PhotoKind, data io.Reader) (*models.ZonePhoto, error) {
	zone, err := s.store.Zones.FindByID(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	if kind == models.PhotoKindAfter &&
		zone.Status != models.ZoneStatusCleaningInProgress && zone.Status != models.ZoneStatusCleaned {
		return nil, apperrors.Conflict("after photos can only be added once cleaning has started")
	}

	img, err := imaging.Decode(data, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.Validation("file is not a supported image")
	}
	bounds := img.Bounds()
	if bounds.Dx() > s.maxEdge || bounds.Dy() > s.maxEdge {
		img = imaging.Fit(img, s.maxEdge, s.maxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, apperrors.Internal(err, "failed to encode photo")
	}

	path := fmt.Sprintf("zones/%d/%s.jpg", zoneID, uuid.NewString())
	if err := s.files.Save(path, &buf); err != nil {
		return nil, apperrors.Internal(err, "failed to store photo")
	}

	photo := &models.ZonePhoto{
		ZoneID:      zoneID,
		Kind:        kind,
		UploaderID:  uploaderID,
		Path:        path,
		ContentType: "image/jpeg",
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		CreatedAt:   s.clock.Now(),
	}

	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if err := tx.Zones.Lock(ctx, zoneID, photo.CreatedAt); err != nil {
			return err
		}
		current, err := tx.Zones.FindByID(ctx, zoneID)
		if err != nil {
			return err
		}
		if err := tx.Photos.Create(ctx, photo); err != nil {
			return err
		}
		ids := current.BeforePhotoIDs
		if kind == models.PhotoKindAfter {
			ids = current.AfterPhotoIDs
		}
		return tx.Zones.SetPhotoIDs(ctx, zoneID, kind, ids.With(photo.ID))
	})
	if err != nil {
		if rmErr := s.files.Delete(path); rmErr != nil {
			s.log.WithError(rmErr).WithField("path", path).Warn("failed to remove orphaned photo")
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"zone_id": zoneID, "photo_id": photo.ID, "kind": kind}).Info("photo uploaded")
	return photo, nil
}

// Open returns the photo metadata and its content. The caller closes the reader.
func (s *PhotoService) Open(ctx context.Context, id uint32) (*models.ZonePhoto, io.ReadCloser, error) {
	photo, err := s.store.Photos.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(photo.Path)
	if err != nil {
		return nil, nil, err
	}
	return photo, rc, nil
}
