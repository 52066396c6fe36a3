package database

import (
	"context"
	"fmt"
	"time"

	"github.com/straye-as/production-api/internal/config"
	"github.com/straye-as/production-api/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts    = 5
	connectBackoff     = 2 * time.Second
	healthCheckTimeout = 3 * time.Second
)

// Config returns the gorm settings shared by the service and the tests.
// Duplicate key violations are translated to gorm.ErrDuplicatedKey.
func Config() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewDatabase creates a new database connection, retrying while the server comes up
func NewDatabase(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dsn := cfg.ConnectionString()

	var lastErr error
	backoff := connectBackoff
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := open(dsn, cfg)
		if err == nil {
			log.Info("Database connected",
				zap.String("host", cfg.Host),
				zap.String("database", cfg.Name),
				zap.Int("attempt", attempt),
			)
			return db, nil
		}
		lastErr = err
		log.Warn("Database connection failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", connectAttempts),
		)
		if attempt < connectAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", connectAttempts, lastErr)
}

func open(dsn string, cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), Config())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Models lists every persisted type, in dependency order
func Models() []interface{} {
	return []interface{}{
		&domain.Machine{},
		&domain.NumberSequence{},
		&domain.OrderSheet{},
		&domain.OrderSheetLine{},
		&domain.WorkOrder{},
		&domain.WorkOrderStatusHistory{},
		&domain.ProductionEntry{},
	}
}

// AutoMigrate runs automatic migrations (for development and tests only;
// deployed databases are migrated with goose)
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// HealthStats is the connection pool state reported by the health endpoint
type HealthStats struct {
	Status       string `json:"status"`
	LatencyMs    int64  `json:"latencyMs"`
	OpenConns    int    `json:"openConnections"`
	InUse        int    `json:"inUse"`
	Idle         int    `json:"idle"`
	WaitCount    int64  `json:"waitCount"`
	MaxOpenConns int    `json:"maxOpenConnections"`
	Error        string `json:"error,omitempty"`
}

// HealthCheck pings the database
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// HealthCheckWithStats pings the database and reports pool statistics
func HealthCheckWithStats(ctx context.Context, db *gorm.DB) *HealthStats {
	start := time.Now()
	err := HealthCheck(ctx, db)
	stats := &HealthStats{
		Status:    "healthy",
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		stats.Status = "unhealthy"
		stats.Error = err.Error()
	}
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		s := sqlDB.Stats()
		stats.OpenConns = s.OpenConnections
		stats.InUse = s.InUse
		stats.Idle = s.Idle
		stats.WaitCount = s.WaitCount
		stats.MaxOpenConns = s.MaxOpenConnections
	}
	return stats
}
