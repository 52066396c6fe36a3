package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"go.uber.org/zap"
)

const defaultCacheTTL = 5 * time.Minute

// VaultClient reads secrets from Azure Key Vault, optionally through a TTL cache
type VaultClient struct {
	client *azsecrets.Client
	logger *zap.Logger
	cache  *secretCache // nil when caching is off
}

// VaultConfig holds configuration for the vault client
type VaultConfig struct {
	VaultName    string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NewVaultClient authenticates with DefaultAzureCredential (workload or managed
// identity in Azure, the Azure CLI locally) against https://<name>.vault.azure.net/.
func NewVaultClient(cfg *VaultConfig, logger *zap.Logger) (*VaultClient, error) {
	if cfg.VaultName == "" {
		return nil, fmt.Errorf("vault name is required")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	vaultURL := "https://" + cfg.VaultName + ".vault.azure.net/"
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	v := &VaultClient{client: client, logger: logger}
	if cfg.CacheEnabled {
		ttl := cfg.CacheTTL
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		v.cache = newSecretCache(ttl)
	}

	logger.Info("Azure Key Vault client ready",
		zap.String("vault_url", vaultURL),
		zap.Bool("cache_enabled", v.cache != nil),
	)
	return v, nil
}

// GetSecret returns the current version of the named secret
func (v *VaultClient) GetSecret(ctx context.Context, name string) (string, error) {
	if v.cache != nil {
		if value, ok := v.cache.get(name); ok {
			return value, nil
		}
	}

	resp, err := v.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		v.logger.Error("Key Vault lookup failed", zap.String("secret_name", name), zap.Error(err))
		return "", fmt.Errorf("failed to get secret '%s': %w", name, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret '%s' has no value", name)
	}

	if v.cache != nil {
		v.cache.put(name, *resp.Value)
	}
	return *resp.Value, nil
}
