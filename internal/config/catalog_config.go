package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Alias conflict policies applied when a reviewer approves a name that already
// aliases a different product in the same store.
const (
	AliasConflictIgnore  = "ignore"  // keep the existing alias, approval succeeds
	AliasConflictReject  = "reject"  // approval fails, inbox row is kept
	AliasConflictRepoint = "repoint" // move the alias to the approved product
)

// CatalogConfig tunes product identity resolution
type CatalogConfig struct {
	MinFuzzyScore   int    `json:"min_fuzzy_score"` // 0-100
	AliasConflict   string `json:"alias_conflict"`  // ignore, reject, repoint
	ContinueOnError bool   `json:"continue_on_error"`
	MaxUploadMB     int    `json:"max_upload_mb"`

	warnings []string
}

// Warnings lists the values that were ignored while loading. Config is read
// before the logger exists, so callers log these once logging is set up.
func (c *CatalogConfig) Warnings() []string {
	return c.warnings
}

// LoadCatalogConfig loads catalog configuration from CATALOG_CONFIG_PATH or the environment
func LoadCatalogConfig() *CatalogConfig {
	// Try to load from file first
	if configPath := os.Getenv("CATALOG_CONFIG_PATH"); configPath != "" {
		cfg, err := loadCatalogConfigFromFile(configPath)
		if err == nil {
			return cfg.sanitized()
		}
		def := getDefaultCatalogConfig()
		def.warnings = append(def.warnings, fmt.Sprintf("catalog config file %s ignored: %v", configPath, err))
		return def.sanitized()
	}

	return getDefaultCatalogConfig().sanitized()
}

func loadCatalogConfigFromFile(path string) (*CatalogConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// start from env/defaults so a partial file only overrides what it names
	cfg := getDefaultCatalogConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func getDefaultCatalogConfig() *CatalogConfig {
	return &CatalogConfig{
		MinFuzzyScore:   getIntEnv("CATALOG_MIN_FUZZY_SCORE", 90),
		AliasConflict:   getEnv("CATALOG_ALIAS_CONFLICT", AliasConflictIgnore),
		ContinueOnError: getBoolEnv("CATALOG_CONTINUE_ON_ERROR", false),
		MaxUploadMB:     getIntEnv("CATALOG_MAX_UPLOAD_MB", 20),
	}
}

// sanitized replaces out-of-range values with defaults.
func (c *CatalogConfig) sanitized() *CatalogConfig {
	if c.MinFuzzyScore < 0 || c.MinFuzzyScore > 100 {
		c.warnings = append(c.warnings, fmt.Sprintf("min fuzzy score %d out of range, using 90", c.MinFuzzyScore))
		c.MinFuzzyScore = 90
	}
	switch c.AliasConflict {
	case AliasConflictIgnore, AliasConflictReject, AliasConflictRepoint:
	default:
		c.warnings = append(c.warnings, fmt.Sprintf("unknown alias conflict policy %q, using ignore", c.AliasConflict))
		c.AliasConflict = AliasConflictIgnore
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 20
	}
	return c
}
