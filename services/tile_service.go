package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"cleanzone-api/apperrors"
	"cleanzone-api/clock"
	"cleanzone-api/metrics"
	"cleanzone-api/models"
)

const (
	MaxTileZoom      = 19
	maxTileBodyBytes = 2 << 20
)

// TileStore is the check-then-store cache behind the tile proxy.
type TileStore interface {
	Get(ctx context.Context, key string) (*models.TileCacheEntry, error)
	Put(ctx context.Context, entry *models.TileCacheEntry) error
}

type TileService struct {
	store     TileStore
	client    *http.Client
	upstream  string
	userAgent string
	clock     clock.Clock
	log       *logrus.Logger
}

func NewTileService(store TileStore, upstream, userAgent string, timeout time.Duration, clk clock.Clock, log *logrus.Logger) *TileService {
	return &TileService{
		store:     store,
		client:    &http.Client{Timeout: timeout},
		upstream:  upstream,
		userAgent: userAgent,
		clock:     clk,
		log:       log,
	}
}

func TileKey(z, x, y int) string {
	return fmt.Sprintf("%d/%d/%d", z, x, y)
}

func ValidateTile(z, x, y int) error {
	if z < 0 || z > MaxTileZoom {
		return apperrors.Validation("zoom must be between 0 and %d", MaxTileZoom)
	}
	n := 1 << uint(z)
	if x < 0 || x >= n || y < 0 || y >= n {
		return apperrors.Validation("tile coordinates out of range for zoom %d", z)
	}
	return nil
}

// Get reads the cache; on a miss it fetches upstream and writes through. Last write wins.
func (s *TileService) Get(ctx context.Context, z, x, y int) (*models.TileCacheEntry, error) {
	if err := ValidateTile(z, x, y); err != nil {
		return nil, err
	}
	key := TileKey(z, x, y)

	entry, err := s.store.Get(ctx, key)
	if err == nil {
		metrics.RecordTileLookup(true)
		return entry, nil
	}
	if !apperrors.Is(err, apperrors.KindNotFound) {
		// a broken cache must not take the map down
		s.log.WithError(err).WithField("tile", key).Warn("tile cache read failed")
	}
	metrics.RecordTileLookup(false)

	entry, err = s.fetch(ctx, z, x, y)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, entry); err != nil {
		s.log.WithError(err).WithField("tile", key).Warn("tile cache write failed")
	}
	return entry, nil
}

func (s *TileService) fetch(ctx context.Context, z, x, y int) (*models.TileCacheEntry, error) {
	url := strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	).Replace(s.upstream)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Internal(err, "invalid tile upstream")
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Internal(err, "tile upstream unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFound("tile not found")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Internal(fmt.Errorf("upstream status %d", resp.StatusCode), "tile upstream unavailable")
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBodyBytes))
	if err != nil {
		return nil, apperrors.Internal(err, "failed to read tile")
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &models.TileCacheEntry{
		Key:         TileKey(z, x, y),
		Data:        data,
		ContentType: contentType,
		FetchedAt:   s.clock.Now(),
	}, nil
}
