package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cleanzone-api/apperrors"
	"cleanzone-api/models"
)

// TileCacheRepository keeps map tiles in the SQL database.
type TileCacheRepository struct {
	db *gorm.DB
}

func NewTileCacheRepository(db *gorm.DB) *TileCacheRepository {
	return &TileCacheRepository{db: db}
}

func (r *TileCacheRepository) Get(ctx context.Context, key string) (*models.TileCacheEntry, error) {
	var entry models.TileCacheEntry
	if err := r.db.WithContext(ctx).First(&entry, "tile_key = ?", key).Error; err != nil {
		return nil, translateError(err, "tile")
	}
	return &entry, nil
}

// Put upserts the tile; the last write wins.
func (r *TileCacheRepository) Put(ctx context.Context, entry *models.TileCacheEntry) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tile_key"}},
		UpdateAll: true,
	}).Create(entry).Error
	return translateError(err, "tile")
}

// RedisTileStore keeps map tiles in redis with a TTL.
type RedisTileStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTileStore(client *redis.Client, ttl time.Duration) *RedisTileStore {
	return &RedisTileStore{client: client, ttl: ttl}
}

func (s *RedisTileStore) Get(ctx context.Context, key string) (*models.TileCacheEntry, error) {
	data, err := s.client.Get(ctx, "tile:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFound("tile not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err, "tile cache read failed")
	}

	var entry models.TileCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, apperrors.Internal(err, "tile cache entry is corrupt")
	}
	return &entry, nil
}

func (s *RedisTileStore) Put(ctx context.Context, entry *models.TileCacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return apperrors.Internal(err, "tile cache encode failed")
	}
	if err := s.client.Set(ctx, "tile:"+entry.Key, data, s.ttl).Err(); err != nil {
		return apperrors.Internal(err, "tile cache write failed")
	}
	return nil
}
