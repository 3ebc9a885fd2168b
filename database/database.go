package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cleanzone-api/config"
	"cleanzone-api/models"
)

// Initialize opens the configured database and applies the connection pool settings.
func Initialize(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   newGormLogger(log, cfg.LogLevel),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

func newGormLogger(log *logrus.Logger, level string) logger.Interface {
	lvl := logger.Warn
	switch level {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	if log == nil {
		return logger.Default.LogMode(lvl)
	}
	return logger.New(log, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})
}

// Models lists every persisted entity.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Zone{},
		&models.ZonePhoto{},
		&models.ZoneStateChange{},
		&models.Event{},
		&models.EventParticipant{},
		&models.EventStateChange{},
		&models.Attendance{},
		&models.Message{},
		&models.TileCacheEntry{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := addCustomIndexes(db); err != nil {
		return fmt.Errorf("failed to add custom indexes: %w", err)
	}

	return nil
}

type compositeIndex struct {
	model   interface{}
	table   string
	name    string
	columns string
}

func addCustomIndexes(db *gorm.DB) error {
	indexes := []compositeIndex{
		// active event lookup per zone
		{&models.Event{}, "events", "idx_events_zone_status", "zone_id, status"},
		// lifecycle job scan
		{&models.Event{}, "events", "idx_events_status_start", "status, start_at"},
		{&models.Zone{}, "zones", "idx_zones_lat_lon", "latitude, longitude"},
		{&models.EventStateChange{}, "event_state_changes", "idx_event_state_changes_event_time", "event_id, changed_at"},
		{&models.ZoneStateChange{}, "zone_state_changes", "idx_zone_state_changes_zone_time", "zone_id, changed_at"},
	}

	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.model, idx.name) {
			continue
		}
		stmt := fmt.Sprintf("CREATE INDEX %s ON %s(%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// SeedData creates an administrator and a sample zone on an empty database.
func SeedData(db *gorm.DB, adminPasswordHash string, log *logrus.Logger) error {
	var userCount int64
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if userCount > 0 {
		log.Info("database already has data, skipping seed")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		admin := models.User{
			Name:     "Administrator",
			Email:    "admin@cleanzone.app",
			Password: adminPasswordHash,
			Role:     models.RoleAdmin,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}

		zone := models.Zone{
			Latitude:     48.8566,
			Longitude:    2.3522,
			RadiusMeters: 150,
			Description:  "Litter along the riverbank near the bridge",
			ReporterID:   admin.ID,
			Status:       models.ZoneStatusReported,
			Severity:     models.SeverityMedium,
		}
		if err := tx.Create(&zone).Error; err != nil {
			return fmt.Errorf("seed zone: %w", err)
		}
		if err := tx.Create(&models.ZoneStateChange{
			ZoneID:    zone.ID,
			Status:    zone.Status,
			ChangedBy: &admin.ID,
			ChangedAt: time.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("seed zone history: %w", err)
		}

		log.WithField("admin_email", admin.Email).Info("database seeded")
		return nil
	})
}
