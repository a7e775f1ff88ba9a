// Package config provides configuration loading for the patch-precheck
// application. The pipeline consumes one flat key/value record (the
// `.configure` file written by the setup wizard), with environment-variable
// overrides and an optional HashiCorp Vault source for deployments that do
// not keep the record on disk.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	ch "github.com/MyCarrier-DevOps/goLibMyCarrier/clickhouse"
	"github.com/MyCarrier-DevOps/goLibMyCarrier/vault"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/viper"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// Environment variable names.
const (
	// EnvConfigFile is the path to the flat key/value configuration record.
	EnvConfigFile = "PRECHECK_CONFIG"

	// EnvLogLevel is the log level (debug, info, error).
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogAppName is the application name for log context.
	EnvLogAppName = "LOG_APP_NAME"

	// EnvVaultConfigPath is the path in Vault KV where the record is stored.
	EnvVaultConfigPath = "VAULT_CONFIG_PATH"

	// EnvVaultConfigMount is the Vault KV mount point (defaults to "secret").
	EnvVaultConfigMount = "VAULT_CONFIG_MOUNT"
)

// Default values.
const (
	DefaultConfigFile   = ".configure"
	DefaultLogLevel     = "info"
	DefaultLogAppName   = "patch-precheck"
	DefaultVaultMount   = "secret"
	DefaultCategory     = "bugfix"
	DefaultBuildThreads = 256
	DefaultMakeTarget   = "allmodconfig"
	DefaultArtifactsDir = "patches"
	DefaultLogsDir      = "logs"
)

// Configuration errors.
var (
	// ErrConfigNotFound indicates no configuration record could be located.
	ErrConfigNotFound = errors.New("configuration record not found")

	// ErrVaultClientFailed indicates failure to create or authenticate with Vault.
	ErrVaultClientFailed = errors.New("failed to create Vault client")

	// ErrVaultSecretNotFound indicates the record was not found in Vault.
	ErrVaultSecretNotFound = errors.New("configuration not found in Vault")
)

// Valid patch categories accepted for PATCH_CATEGORY.
var validCategories = map[string]bool{
	"feature":     true,
	"bugfix":      true,
	"performance": true,
	"security":    true,
}

// VaultClient defines the interface for Vault operations.
// This interface allows for dependency injection and testing.
type VaultClient interface {
	// GetKVSecret retrieves a secret from Vault's KV v2 secrets engine.
	GetKVSecret(ctx context.Context, path, mount string) (map[string]interface{}, error)
}

// VaultClientFactory creates a VaultClient using AppRole authentication.
type VaultClientFactory func(ctx context.Context) (VaultClient, error)

// DefaultVaultClientFactory creates a VaultClient using goLibMyCarrier/vault
// with AppRole auth (VAULT_ADDRESS, VAULT_ROLE_ID, VAULT_SECRET_ID).
func DefaultVaultClientFactory(ctx context.Context) (VaultClient, error) {
	vaultConfig, err := vault.VaultLoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	client, err := vault.CreateVaultClient(ctx, vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	return client, nil
}

// Config holds all application configuration, resolved and validated.
// It is immutable after Load and passed explicitly into every component.
type Config struct {
	// TreePath is the kernel source tree under validation.
	TreePath string

	// SignerName and SignerEmail identify the submitter for sign-off lines.
	SignerName  string
	SignerEmail string

	// BugzillaID is the tracking-issue identifier inserted into provenance blocks.
	BugzillaID string

	// Category is the patch category (feature, bugfix, performance, security).
	Category string

	// PatchCount is the number of commits to extract and validate.
	PatchCount int

	// BuildThreads is the -j value handed to the build system.
	BuildThreads int

	// MakeTarget is the kernel configuration target selected before builds.
	MakeTarget string

	// MakeExtraArgs carries operator-supplied extra make arguments.
	MakeExtraArgs []string

	// ReferenceRepo is the local path of the read-only upstream history.
	ReferenceRepo string

	// ReferenceRepoURL is the clone source used when ReferenceRepo is absent.
	ReferenceRepoURL string

	// ArtifactsDir holds extracted patch files; LogsDir holds per-step logs.
	ArtifactsDir string
	LogsDir      string

	// Per-check enable flags.
	CheckDependency bool
	CheckStyle      bool
	CheckKabi       bool
	CheckFormat     bool

	// ReportHistory enables recording run summaries to ClickHouse.
	ReportHistory bool

	// ClickHouse holds the ClickHouse connection configuration. Nil unless
	// ReportHistory is enabled.
	ClickHouse *ch.ClickhouseConfig

	// LogLevel is the logging level (debug, info, error).
	LogLevel string

	// LogAppName is the application name for log context.
	LogAppName string
}

// Load loads the application configuration from the default sources: the
// `.configure` record (path overridable via PRECHECK_CONFIG), environment
// variables, and Vault when VAULT_CONFIG_PATH is set.
func Load() (*Config, error) {
	return LoadWithVaultClient(context.Background(), nil)
}

// LoadWithVaultClient loads configuration using the provided VaultClient
// factory. If vaultClientFactory is nil, DefaultVaultClientFactory is used.
// This function enables dependency injection for testing.
func LoadWithVaultClient(ctx context.Context, vaultClientFactory VaultClientFactory) (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	setDefaults(v)

	if vaultPath := os.Getenv(EnvVaultConfigPath); vaultPath != "" {
		if err := mergeFromVault(ctx, v, vaultClientFactory, vaultPath); err != nil {
			return nil, err
		}
	} else {
		path := os.Getenv(EnvConfigFile)
		if path == "" {
			path = DefaultConfigFile
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return nil, fmt.Errorf("%w: failed to read %s: %w", domain.ErrConfiguration, path, err)
		}
	}

	v.AutomaticEnv()

	return build(v)
}

// setDefaults registers built-in defaults for every optional key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("PATCH_CATEGORY", DefaultCategory)
	v.SetDefault("NUM_PATCHES", domain.DefaultPatchCount)
	v.SetDefault("BUILD_THREADS", DefaultBuildThreads)
	v.SetDefault("MAKE_TARGET", DefaultMakeTarget)
	v.SetDefault("MAKE_EXTRA_ARGS", "")
	v.SetDefault("ARTIFACTS_DIR", DefaultArtifactsDir)
	v.SetDefault("LOGS_DIR", DefaultLogsDir)
	v.SetDefault("REFERENCE_REPO", ".torvalds-linux")
	v.SetDefault("REFERENCE_REPO_URL", "")
	v.SetDefault("CHECK_DEPENDENCY", "yes")
	v.SetDefault("CHECK_STYLE", "yes")
	v.SetDefault("CHECK_KABI", "yes")
	v.SetDefault("CHECK_FORMAT", "yes")
	v.SetDefault("REPORT_HISTORY", "no")
	v.SetDefault(EnvLogLevel, DefaultLogLevel)
	v.SetDefault(EnvLogAppName, DefaultLogAppName)
}

// mergeFromVault reads the configuration record from Vault KV v2 and merges
// it into the viper instance.
func mergeFromVault(ctx context.Context, v *viper.Viper, factory VaultClientFactory, path string) error {
	if factory == nil {
		factory = DefaultVaultClientFactory
	}

	client, err := factory(ctx)
	if err != nil {
		return err
	}

	mount := os.Getenv(EnvVaultConfigMount)
	if mount == "" {
		mount = DefaultVaultMount
	}

	secretData, err := client.GetKVSecret(ctx, path, mount)
	if err != nil {
		return fmt.Errorf("%w at path %s: %w", ErrVaultSecretNotFound, path, err)
	}

	if err := v.MergeConfigMap(secretData); err != nil {
		return fmt.Errorf("%w: failed to merge Vault data: %w", domain.ErrConfiguration, err)
	}

	return nil
}

// build resolves and validates the final Config from the merged sources.
func build(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		TreePath:         v.GetString("LINUX_SRC_PATH"),
		SignerName:       v.GetString("SIGNER_NAME"),
		SignerEmail:      v.GetString("SIGNER_EMAIL"),
		BugzillaID:       v.GetString("BUGZILLA_ID"),
		Category:         v.GetString("PATCH_CATEGORY"),
		PatchCount:       v.GetInt("NUM_PATCHES"),
		BuildThreads:     v.GetInt("BUILD_THREADS"),
		MakeTarget:       v.GetString("MAKE_TARGET"),
		ReferenceRepo:    v.GetString("REFERENCE_REPO"),
		ReferenceRepoURL: v.GetString("REFERENCE_REPO_URL"),
		ArtifactsDir:     v.GetString("ARTIFACTS_DIR"),
		LogsDir:          v.GetString("LOGS_DIR"),
		CheckDependency:  flag(v, "CHECK_DEPENDENCY"),
		CheckStyle:       flag(v, "CHECK_STYLE"),
		CheckKabi:        flag(v, "CHECK_KABI"),
		CheckFormat:      flag(v, "CHECK_FORMAT"),
		ReportHistory:    flag(v, "REPORT_HISTORY"),
		LogLevel:         v.GetString(EnvLogLevel),
		LogAppName:       v.GetString(EnvLogAppName),
	}

	if cfg.ReportHistory {
		chConfig, err := ch.ClickhouseLoadConfig()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load ClickHouse config: %w", domain.ErrConfiguration, err)
		}
		cfg.ClickHouse = chConfig
	}

	extra, err := shellquote.Split(v.GetString("MAKE_EXTRA_ARGS"))
	if err != nil {
		return nil, fmt.Errorf("%w: MAKE_EXTRA_ARGS is not parseable: %w", domain.ErrConfiguration, err)
	}
	cfg.MakeExtraArgs = extra

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// flag interprets the original yes/no check flags, tolerating bare booleans
// supplied through the environment.
func flag(v *viper.Viper, key string) bool {
	val := strings.ToLower(strings.TrimSpace(v.GetString(key)))
	return val == "yes" || val == "true" || val == "1"
}

// validate enforces the required keys and value constraints. Missing required
// keys are a fatal configuration error, detected pre-flight.
func (c *Config) validate() error {
	var missing []string
	for _, kv := range []struct{ key, val string }{
		{"LINUX_SRC_PATH", c.TreePath},
		{"SIGNER_NAME", c.SignerName},
		{"SIGNER_EMAIL", c.SignerEmail},
		{"BUGZILLA_ID", c.BugzillaID},
	} {
		if strings.TrimSpace(kv.val) == "" {
			missing = append(missing, kv.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required keys: %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}

	if c.PatchCount < 1 {
		return fmt.Errorf("%w: NUM_PATCHES must be >= 1, got %d", domain.ErrConfiguration, c.PatchCount)
	}
	if c.BuildThreads < 1 {
		return fmt.Errorf("%w: BUILD_THREADS must be >= 1, got %d", domain.ErrConfiguration, c.BuildThreads)
	}
	if !validCategories[c.Category] {
		return fmt.Errorf("%w: PATCH_CATEGORY %q is not one of feature, bugfix, performance, security",
			domain.ErrConfiguration, c.Category)
	}
	if !strings.Contains(c.SignerEmail, "@") {
		return fmt.Errorf("%w: SIGNER_EMAIL %q is not an email address", domain.ErrConfiguration, c.SignerEmail)
	}

	return nil
}

// Signer returns the submitter identity in "Name <email>" form.
func (c *Config) Signer() string {
	return c.SignerName + " <" + c.SignerEmail + ">"
}
