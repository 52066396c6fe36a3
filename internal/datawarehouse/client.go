// Package datawarehouse reads approved sales orders from the ERP's MS SQL Server warehouse.
// Order sheets can be created from these orders instead of a posted payload.
package datawarehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver
	"github.com/straye-as/production-api/internal/config"
	"go.uber.org/zap"
)

const (
	defaultPort         = "1433"
	connectAttempts     = 3
	pingTimeout         = 5 * time.Second
	logQueryMaxLen      = 200
	firstConnectBackoff = 1 * time.Second
	maxConnectBackoff   = 10 * time.Second
)

// ErrNotConnected is returned by lookups on a disabled or closed client
var ErrNotConnected = errors.New("data warehouse client not initialized")

// Client is a read-only handle on the warehouse. A nil *Client is valid and behaves as disabled.
type Client struct {
	db           *sql.DB
	logger       *zap.Logger
	queryTimeout time.Duration
	salesView    string
}

// HealthStatus is reported by the readiness endpoint
type HealthStatus struct {
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
	Open      int           `json:"open_connections"`
	InUse     int           `json:"in_use"`
	WaitCount int64         `json:"wait_count"`
}

// NewClient connects to the warehouse. It returns nil, nil when the warehouse is
// disabled or its credentials are incomplete, so callers can run without it.
func NewClient(cfg *config.DataWarehouseConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Data warehouse disabled, sales orders must be posted directly")
		return nil, nil
	}
	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("Data warehouse enabled without full credentials, continuing without it",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	dsn, err := buildConnectionString(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	db, err := connect(dsn, cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Data warehouse connected",
		zap.String("sales_order_view", cfg.SalesOrderView),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return &Client{
		db:           db,
		logger:       logger,
		queryTimeout: cfg.QueryTimeoutDuration(),
		salesView:    cfg.SalesOrderView,
	}, nil
}

// connect opens the pool and pings it, backing off between failed attempts
func connect(dsn string, cfg *config.DataWarehouseConfig, logger *zap.Logger) (*sql.DB, error) {
	var lastErr error
	wait := firstConnectBackoff

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(wait)
			wait = min(wait*2, maxConnectBackoff)
		}

		db, err := sql.Open("sqlserver", dsn)
		if err != nil {
			lastErr = err
			logger.Warn("Data warehouse open failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			return db, nil
		}

		lastErr = err
		logger.Warn("Data warehouse ping failed", zap.Int("attempt", attempt), zap.Error(err))
		_ = db.Close()
	}

	return nil, fmt.Errorf("data warehouse unreachable after %d attempts: %w", connectAttempts, lastErr)
}

// buildConnectionString turns "host[:port][/database]" plus credentials into a sqlserver URL
func buildConnectionString(cfg *config.DataWarehouseConfig) (string, error) {
	address, database, _ := strings.Cut(cfg.URL, "/")
	host, port, found := strings.Cut(address, ":")
	if !found || port == "" {
		port = defaultPort
	}
	if host == "" {
		return "", fmt.Errorf("missing host in %q", cfg.URL)
	}

	params := url.Values{}
	params.Set("encrypt", "true")
	params.Set("TrustServerCertificate", "false")
	params.Set("connection timeout", "30")
	if database != "" {
		params.Set("database", database)
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(host, port),
		RawQuery: params.Encode(),
	}
	return u.String(), nil
}

// IsEnabled reports whether lookups can be served
func (c *Client) IsEnabled() bool {
	return c != nil && c.db != nil
}

// Close releases the pool. Safe on a nil client.
func (c *Client) Close() error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close data warehouse connection: %w", err)
	}
	c.logger.Info("Data warehouse connection closed")
	return nil
}

// HealthCheck pings the warehouse. A disabled client reports "disabled" rather than failing.
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	if !c.IsEnabled() {
		return &HealthStatus{Status: "disabled"}
	}

	ctx, cancel := c.withTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	err := c.db.PingContext(ctx)
	stats := c.db.Stats()

	status := &HealthStatus{
		Status:    "healthy",
		Latency:   time.Since(start),
		Open:      stats.OpenConnections,
		InUse:     stats.InUse,
		WaitCount: stats.WaitCount,
	}
	if err != nil {
		c.logger.Warn("Data warehouse health check failed", zap.Error(err))
		status.Status = "unhealthy"
		status.Error = err.Error()
	}
	return status
}

// queryRows runs a read-only query and returns each row keyed by column name
func (c *Client) queryRows(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	if !c.IsEnabled() {
		return nil, ErrNotConnected
	}

	ctx, cancel := c.withTimeout(ctx, c.queryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		c.logger.Error("Data warehouse query failed",
			zap.String("query", truncateQuery(query, logQueryMaxLen)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, name := range columns {
			row[name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	c.logger.Debug("Data warehouse query completed",
		zap.Int("rows", len(out)),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// withTimeout applies d unless the caller already set a deadline
func (c *Client) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func truncateQuery(query string, maxLen int) string {
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "..."
}
