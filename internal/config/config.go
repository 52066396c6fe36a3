package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/straye-as/production-api/internal/secrets"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	DataWarehouse DataWarehouseConfig
	Storage       StorageConfig
	Secrets       SecretsConfig
	Logging       LoggingConfig
	Server        ServerConfig
	CORS          CORSConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Report        ReportConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// DataWarehouseConfig points at the ERP's read-only MS SQL Server warehouse
type DataWarehouseConfig struct {
	Enabled bool
	// URL is host[:port][/database]
	URL             string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
	QueryTimeout    int // seconds
	// SalesOrderView exposes one row per approved sales order line
	SalesOrderView string
}

type StorageConfig struct {
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
}

type SecretsConfig struct {
	Source       string // environment, vault or auto
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
}

// CORSConfig configures cross-origin access for the planning and shop floor UIs.
// An empty AllowedOrigins list allows every origin in development and none elsewhere.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int // seconds
}

// SecurityConfig holds response security headers. Empty strings disable a header.
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int // seconds
	HSTSIncludeSubdomains bool
	HSTSPreload           bool
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeNosniff    bool
	XSSProtection         string
	ReferrerPolicy        string
	PermissionsPolicy     string
}

// RateLimitConfig limits requests per client IP and, when the X-Operator-ID header
// is present, per operator, since shop floor terminals share the plant gateway's IP.
type RateLimitConfig struct {
	Enabled                   bool
	RequestsPerMinute         int
	RequestsPerMinuteOperator int
	WhitelistIPs              []string
	WhitelistPaths            []string
}

// ReportConfig holds production report settings
type ReportConfig struct {
	// Timezone is the IANA zone report dates are interpreted in
	Timezone string
	// ExportEnabled schedules the nightly DPR workbook export
	ExportEnabled bool
	// ExportCron is the cron expression of the nightly export
	ExportCron string
}

// Location resolves the report time zone, falling back to UTC
func (r *ReportConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid report timezone %q: %w", r.Timezone, err)
	}
	return loc, nil
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DataWarehouseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// QueryTimeoutDuration returns query timeout as duration
func (d *DataWarehouseConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(d.QueryTimeout) * time.Second
}

// Load reads config.json (from . or ./config) and then environment overrides.
// Secrets are not resolved here; see LoadWithSecrets.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Flat variable names used by the plant deployment
	if tz := v.GetString("REPORT_TIMEZONE"); tz != "" {
		cfg.Report.Timezone = tz
	}
	if v.GetBool("DATAWAREHOUSE_ENABLED") {
		cfg.DataWarehouse.Enabled = true
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}

	return &cfg, nil
}

// CacheTTLDuration returns the secret cache ttl as duration
func (s *SecretsConfig) CacheTTLDuration() time.Duration {
	return time.Duration(s.CacheTTL) * time.Second
}

// LoadWithSecrets loads the configuration and fills credentials from the secret source.
//
// Database and storage credentials come from Key Vault only when USE_AZURE_KEY_VAULT=true
// in staging or production; otherwise the environment values from Load are kept.
// Warehouse credentials always come from Key Vault when the warehouse is enabled and a
// vault is named, since the ERP team only publishes them there. A failure there is
// logged and the warehouse stays disconnected.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	var vault *secrets.Provider
	openVault := func() (*secrets.Provider, error) {
		if vault != nil {
			return vault, nil
		}
		p, err := secrets.NewProvider(&secrets.ProviderConfig{
			Source:       secrets.SourceVault,
			VaultName:    cfg.Secrets.KeyVaultName,
			Environment:  cfg.App.Environment,
			CacheEnabled: cfg.Secrets.CacheEnabled,
			CacheTTL:     cfg.Secrets.CacheTTLDuration(),
		}, logger)
		if err != nil {
			return nil, err
		}
		vault = p
		return vault, nil
	}

	if cfg.DataWarehouse.Enabled && cfg.Secrets.KeyVaultName != "" {
		if p, err := openVault(); err != nil {
			logger.Warn("Key Vault unavailable, data warehouse stays disconnected", zap.Error(err))
		} else if err := loadWarehouseCredentials(ctx, p, &cfg.DataWarehouse); err != nil {
			logger.Warn("Data warehouse credentials not loaded", zap.Error(err))
		}
	}

	if !strings.EqualFold(os.Getenv("USE_AZURE_KEY_VAULT"), "true") {
		logger.Info("Using environment for database and storage credentials",
			zap.String("environment", cfg.App.Environment))
		return cfg, nil
	}
	if cfg.App.Environment != "staging" && cfg.App.Environment != "production" {
		logger.Warn("USE_AZURE_KEY_VAULT ignored outside staging and production",
			zap.String("environment", cfg.App.Environment))
		return cfg, nil
	}
	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	p, err := openVault()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	// Port and database name differ per environment and stay in env vars
	resolved := p.Resolve(ctx, []secrets.Binding{
		{Secret: "POSTGRES-MAIN-HOST", Env: "DATABASE_HOST", Target: &cfg.Database.Host},
		{Secret: "POSTGRES-MAIN-USER", Env: "DATABASE_USER", Target: &cfg.Database.User},
		{Secret: "POSTGRES-MAIN-PASSWORD", Env: "DATABASE_PASSWORD", Target: &cfg.Database.Password},
		{Secret: "storage-connection-string", Env: "STORAGE_CLOUDCONNECTIONSTRING", Target: &cfg.Storage.CloudConnectionString},
	})
	if name := os.Getenv("DEFAULT_DATABASE"); name != "" {
		cfg.Database.Name = name
	}
	if mode := os.Getenv("DATABASE_SSLMODE"); mode != "" {
		cfg.Database.SSLMode = mode
	}

	logger.Info("Secrets loaded from Key Vault",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
		zap.Strings("resolved", resolved),
	)
	return cfg, nil
}

// loadWarehouseCredentials reads the three warehouse secrets; all of them must exist
func loadWarehouseCredentials(ctx context.Context, p *secrets.Provider, dw *DataWarehouseConfig) error {
	fields := []struct {
		secret string
		target *string
	}{
		{"WAREHOUSE-URL", &dw.URL},
		{"WAREHOUSE-USERNAME", &dw.User},
		{"WAREHOUSE-PASSWORD", &dw.Password},
	}
	for _, f := range fields {
		value, err := p.GetSecret(ctx, f.secret)
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", f.secret, err)
		}
		*f.target = value
	}
	return nil
}

var defaults = map[string]interface{}{
	"app.name":        "Straye Production API",
	"app.environment": "development",
	"app.port":        8080,

	"database.host":            "localhost",
	"database.port":            5432,
	"database.name":            "production",
	"database.user":            "production_user",
	"database.password":        "production_password",
	"database.sslMode":         "disable",
	"database.maxOpenConns":    25,
	"database.maxIdleConns":    5,
	"database.connMaxLifetime": 300,

	"dataWarehouse.enabled":         false,
	"dataWarehouse.maxOpenConns":    10,
	"dataWarehouse.maxIdleConns":    2,
	"dataWarehouse.connMaxLifetime": 300,
	"dataWarehouse.queryTimeout":    30,
	"dataWarehouse.salesOrderView":  "dbo.v_ApprovedSalesOrderLines",

	"secrets.source":       "auto",
	"secrets.cacheEnabled": true,
	"secrets.cacheTTL":     300,

	"storage.mode":          "local",
	"storage.localBasePath": "./storage",

	"logging.level":  "info",
	"logging.format": "console",

	"server.readTimeout":    30,
	"server.writeTimeout":   30,
	"server.requestTimeout": 60,
	"server.enableSwagger":  true,

	"cors.allowedOrigins":   []string{},
	"cors.allowedMethods":   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"cors.allowedHeaders":   []string{"Accept", "Content-Type", "X-Operator-ID", "X-Request-ID"},
	"cors.exposedHeaders":   []string{"Location", "Content-Disposition", "X-Request-ID"},
	"cors.allowCredentials": true,
	"cors.maxAge":           300,

	// HSTS is switched on per deployment once TLS terminates in front of the API
	"security.enableHSTS":            false,
	"security.hstsMaxAge":            31536000,
	"security.hstsIncludeSubdomains": true,
	"security.hstsPreload":           false,
	"security.contentSecurityPolicy": "default-src 'self'",
	"security.frameOptions":          "DENY",
	"security.contentTypeNosniff":    true,
	"security.xssProtection":         "1; mode=block",
	"security.referrerPolicy":        "strict-origin-when-cross-origin",
	"security.permissionsPolicy":     "geolocation=(), microphone=(), camera=()",

	"rateLimit.enabled":                   true,
	"rateLimit.requestsPerMinute":         120,
	"rateLimit.requestsPerMinuteOperator": 240,
	"rateLimit.whitelistIPs":              []string{"127.0.0.1", "::1"},
	"rateLimit.whitelistPaths":            []string{"/health", "/health/db", "/health/ready"},

	"report.timezone":      "UTC",
	"report.exportEnabled": false,
	// 00:15:00 daily, exporting the previous day
	"report.exportCron": "0 15 0 * * *",
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
