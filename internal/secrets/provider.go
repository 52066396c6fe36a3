// Package secrets resolves credentials for the database, the data warehouse and
// export storage from the environment or from Azure Key Vault.
package secrets

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// SecretSource names where secrets are read from
type SecretSource string

const (
	SourceEnvironment SecretSource = "environment"
	SourceVault       SecretSource = "vault"
	// SourceAuto picks the environment for local work and the vault everywhere else
	SourceAuto SecretSource = "auto"
)

// getter is implemented by each backing store
type getter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

type envGetter struct{}

func (envGetter) GetSecret(_ context.Context, name string) (string, error) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", fmt.Errorf("environment variable '%s' not set", name)
	}
	return value, nil
}

// Provider reads secrets from one configured source
type Provider struct {
	source SecretSource
	store  getter
	logger *zap.Logger
}

// ProviderConfig holds configuration for the secrets provider
type ProviderConfig struct {
	Source       SecretSource
	VaultName    string
	Environment  string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// resolveSource turns "auto" into a concrete source for the environment
func resolveSource(source SecretSource, environment string) SecretSource {
	if source != SourceAuto {
		return source
	}
	switch environment {
	case "development", "local", "":
		return SourceEnvironment
	default:
		return SourceVault
	}
}

// NewProvider builds a provider for the configured source
func NewProvider(cfg *ProviderConfig, logger *zap.Logger) (*Provider, error) {
	source := resolveSource(cfg.Source, cfg.Environment)
	p := &Provider{source: source, logger: logger}

	switch source {
	case SourceEnvironment:
		p.store = envGetter{}
	case SourceVault:
		if cfg.VaultName == "" {
			return nil, fmt.Errorf("vault name required when using vault secret source")
		}
		vault, err := NewVaultClient(&VaultConfig{
			VaultName:    cfg.VaultName,
			CacheEnabled: cfg.CacheEnabled,
			CacheTTL:     cfg.CacheTTL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vault client: %w", err)
		}
		p.store = vault
	default:
		return nil, fmt.Errorf("unknown secret source: %s", source)
	}

	logger.Info("Secrets provider initialized",
		zap.String("source", string(source)),
		zap.String("environment", cfg.Environment),
	)
	return p, nil
}

// GetSecret reads name from the configured source. For the environment source
// name is the variable name, for the vault it is the Key Vault secret name.
func (p *Provider) GetSecret(ctx context.Context, name string) (string, error) {
	return p.store.GetSecret(ctx, name)
}

// GetSecretOrEnv returns envName when it is set, otherwise the secret from the configured source
func (p *Provider) GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error) {
	if value := os.Getenv(envName); value != "" {
		p.logger.Debug("Using environment variable override", zap.String("env_name", envName))
		return value, nil
	}
	return p.GetSecret(ctx, secretName)
}

// Binding maps a secret (and its environment override) onto a config field
type Binding struct {
	Secret string
	Env    string
	Target *string
}

// Resolve fills every binding that has a value, leaving the others untouched,
// and returns the names of the secrets that were found.
func (p *Provider) Resolve(ctx context.Context, bindings []Binding) []string {
	resolved := make([]string, 0, len(bindings))
	for _, b := range bindings {
		value, err := p.GetSecretOrEnv(ctx, b.Secret, b.Env)
		if err != nil || value == "" {
			p.logger.Debug("Secret not resolved, keeping configured value",
				zap.String("secret_name", b.Secret),
				zap.String("env_name", b.Env),
			)
			continue
		}
		*b.Target = value
		resolved = append(resolved, b.Secret)
	}
	return resolved
}

// Source returns the resolved secret source
func (p *Provider) Source() SecretSource {
	return p.source
}

// IsVaultEnabled returns true if secrets are loaded from vault
func (p *Provider) IsVaultEnabled() bool {
	return p.source == SourceVault
}
