package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"photostore/internal/hasher"
)

const (
	DefaultDBFileName    = ".photostore.db"
	DefaultLogLevel      = "debug"
	DefaultHashAlgorithm = hasher.Default
	DefaultAPIURL        = "http://127.0.0.1:7433"

	DefaultDerivativesEnabled = true
	DefaultDerivativesAsync   = false
	DefaultDerivativeTimeout  = 10 * time.Second

	DefaultSweepBatchSize = 500
	DefaultSweepInterval  = 15 * time.Minute
	DefaultSweepLeaseTTL  = 5 * time.Minute

	DefaultHashCacheEntries = 4096

	configFileName           = ".photostore.toml"
	configDirEnvKey          = "PHOTOSTORE_CONFIG_DIR"
	trustProjectConfigEnvKey = "PHOTOSTORE_TRUST_PROJECT_CONFIG"
	dbPathEnvKey             = "PHOTOSTORE_DB"
	hashAlgorithmEnvKey      = "PHOTOSTORE_HASH_ALGORITHM"
	apiURLEnvKey             = "PHOTOSTORE_API_URL"
)

// DerivativeConfig controls thumbnail generation.
type DerivativeConfig struct {
	Enabled bool          `toml:"enabled"`
	Async   bool          `toml:"async"`
	Timeout time.Duration `toml:"timeout"`
}

// SweepConfig controls the cleanup sweep.
type SweepConfig struct {
	BatchSize int           `toml:"batch_size"`
	Interval  time.Duration `toml:"interval"`
	LeaseTTL  time.Duration `toml:"lease_ttl"`
}

// CacheConfig sizes in-process caches.
type CacheConfig struct {
	HashEntries int `toml:"hash_entries"`
}

// Config defines runtime configuration for photostore.
type Config struct {
	APIURL                   string           `toml:"api_url"`
	DBPath                   string           `toml:"db_path"`
	LogLevel                 string           `toml:"log_level"`
	HashAlgorithm            string           `toml:"hash_algorithm"`
	Derivatives              DerivativeConfig `toml:"derivatives"`
	Sweep                    SweepConfig      `toml:"sweep"`
	Cache                    CacheConfig      `toml:"cache"`
	TrustedProjectConfigPath string           `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:        DefaultAPIURL,
		DBPath:        "",
		LogLevel:      DefaultLogLevel,
		HashAlgorithm: DefaultHashAlgorithm,
		Derivatives: DerivativeConfig{
			Enabled: DefaultDerivativesEnabled,
			Async:   DefaultDerivativesAsync,
			Timeout: DefaultDerivativeTimeout,
		},
		Sweep: SweepConfig{
			BatchSize: DefaultSweepBatchSize,
			Interval:  DefaultSweepInterval,
			LeaseTTL:  DefaultSweepLeaseTTL,
		},
		Cache: CacheConfig{
			HashEntries: DefaultHashCacheEntries,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"hash_algorithm",
	"derivatives.enabled",
	"derivatives.async",
	"derivatives.timeout",
	"sweep.batch_size",
	"sweep.interval",
	"sweep.lease_ttl",
	"cache.hash_entries",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "hash_algorithm":
		return c.HashAlgorithm, nil
	case "derivatives.enabled":
		return strconv.FormatBool(c.Derivatives.Enabled), nil
	case "derivatives.async":
		return strconv.FormatBool(c.Derivatives.Async), nil
	case "derivatives.timeout":
		return c.Derivatives.Timeout.String(), nil
	case "sweep.batch_size":
		return strconv.Itoa(c.Sweep.BatchSize), nil
	case "sweep.interval":
		return c.Sweep.Interval.String(), nil
	case "sweep.lease_ttl":
		return c.Sweep.LeaseTTL.String(), nil
	case "cache.hash_entries":
		return strconv.Itoa(c.Cache.HashEntries), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if apiURL := strings.TrimSpace(os.Getenv(apiURLEnvKey)); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if algorithm := strings.TrimSpace(os.Getenv(hashAlgorithmEnvKey)); algorithm != "" {
		cfg.HashAlgorithm = algorithm
	}

	cfg.normalizeDefaults()

	if _, err := hasher.New(cfg.HashAlgorithm); err != nil {
		return nil, fmt.Errorf("hash_algorithm: %w", err)
	}

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "sweep.batch_size", "cache.hash_entries":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return int64(parsed), nil
	case "derivatives.enabled", "derivatives.async":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "derivatives.timeout", "sweep.interval", "sweep.lease_ttl":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration such as 30s or 5m", key)
		}
		return parsed.String(), nil
	case "hash_algorithm":
		h, err := hasher.New(value)
		if err != nil {
			return nil, err
		}
		return h.Algorithm(), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeDefaults() {
	c.APIURL = strings.TrimSpace(c.APIURL)
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	c.LogLevel = strings.TrimSpace(c.LogLevel)
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.HashAlgorithm = strings.ToLower(strings.TrimSpace(c.HashAlgorithm))
	if c.HashAlgorithm == "" {
		c.HashAlgorithm = DefaultHashAlgorithm
	}
	if c.Derivatives.Timeout <= 0 {
		c.Derivatives.Timeout = DefaultDerivativeTimeout
	}
	if c.Sweep.BatchSize <= 0 {
		c.Sweep.BatchSize = DefaultSweepBatchSize
	}
	if c.Sweep.Interval <= 0 {
		c.Sweep.Interval = DefaultSweepInterval
	}
	if c.Sweep.LeaseTTL <= 0 {
		c.Sweep.LeaseTTL = DefaultSweepLeaseTTL
	}
	if c.Cache.HashEntries <= 0 {
		c.Cache.HashEntries = DefaultHashCacheEntries
	}
}
