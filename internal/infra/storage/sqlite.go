package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"trade_sim/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MaxRecentLimit caps RecentSimulations.
const MaxRecentLimit = 500

// Storage is the SQLite journal of simulations plus a small key-value table.
type Storage struct {
	db *gorm.DB
}

var _ domain.SimulationRecorder = (*Storage)(nil)

// NewStorage opens (or creates) the database at dbPath. An empty path
// resolves to the per-user data directory.
func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		var err error
		dbPath, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &Storage{db: db}, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.SimulationRecord{}, &domain.AppConfig{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "TradeSim", "data", "tradesim.db"), nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Simulation Journal
// ======================================================================================

// RecordSimulation implements domain.SimulationRecorder.
func (s *Storage) RecordSimulation(ctx context.Context, p domain.SimulateParams, est domain.CostEstimate) error {
	rec := domain.NewSimulationRecord(uuid.NewString(), p, est)
	return s.db.WithContext(ctx).Create(rec).Error
}

// RecentSimulations returns up to limit records, newest first.
func (s *Storage) RecentSimulations(ctx context.Context, limit int) ([]domain.SimulationRecord, error) {
	if limit <= 0 || limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	var records []domain.SimulationRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// CountSimulations returns the number of journaled records.
func (s *Storage) CountSimulations(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.SimulationRecord{}).Count(&n).Error
	return n, err
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig stores a key-value pair, replacing any previous value.
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&config).Error
}

// LoadConfigMap loads all stored key-value pairs as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
