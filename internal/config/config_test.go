package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_HOST", "")
	t.Setenv("PG_PASSWORD", "")
	t.Setenv("PORT", "")
	t.Setenv("CATALOG_CONFIG_PATH", "")
	t.Setenv("CATALOG_MIN_FUZZY_SCORE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "3210" {
		t.Errorf("Port = %s, want 3210", cfg.Port)
	}
	if !cfg.Database.Embedded() {
		t.Error("localhost without password should use embedded postgres")
	}
	if cfg.Catalog.MinFuzzyScore != 90 {
		t.Errorf("MinFuzzyScore = %d, want 90", cfg.Catalog.MinFuzzyScore)
	}
	if cfg.Catalog.AliasConflict != AliasConflictIgnore {
		t.Errorf("AliasConflict = %s, want ignore", cfg.Catalog.AliasConflict)
	}
}

func TestDatabaseURLWins(t *testing.T) {
	d := DatabaseConfig{URL: "postgresql://u:p@db.example/nfe?sslmode=require", Host: "localhost"}
	if d.Embedded() {
		t.Error("DATABASE_URL must disable embedded mode")
	}
	if d.DSN() != d.URL {
		t.Errorf("DSN = %s, want the URL verbatim", d.DSN())
	}
}

func TestInvalidPort(t *testing.T) {
	t.Setenv("PORT", "http")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-numeric PORT")
	}
}

func TestCatalogConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`{"min_fuzzy_score": 80, "alias_conflict": "reject"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CATALOG_CONFIG_PATH", path)
	t.Setenv("CATALOG_MAX_UPLOAD_MB", "5")

	cfg := LoadCatalogConfig()
	if cfg.MinFuzzyScore != 80 {
		t.Errorf("MinFuzzyScore = %d, want 80", cfg.MinFuzzyScore)
	}
	if cfg.AliasConflict != AliasConflictReject {
		t.Errorf("AliasConflict = %s, want reject", cfg.AliasConflict)
	}
	if cfg.MaxUploadMB != 5 {
		t.Errorf("MaxUploadMB = %d, want 5 from env", cfg.MaxUploadMB)
	}
}

func TestCatalogConfigSanitized(t *testing.T) {
	t.Setenv("CATALOG_CONFIG_PATH", "")
	t.Setenv("CATALOG_MIN_FUZZY_SCORE", "150")
	t.Setenv("CATALOG_ALIAS_CONFLICT", "overwrite")

	cfg := LoadCatalogConfig()
	if cfg.MinFuzzyScore != 90 {
		t.Errorf("MinFuzzyScore = %d, want fallback 90", cfg.MinFuzzyScore)
	}
	if cfg.AliasConflict != AliasConflictIgnore {
		t.Errorf("AliasConflict = %s, want fallback ignore", cfg.AliasConflict)
	}
	if got := len(cfg.Warnings()); got != 2 {
		t.Errorf("got %d warnings, want 2: %v", got, cfg.Warnings())
	}
}

func TestCatalogConfigBadFileWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CATALOG_CONFIG_PATH", path)
	t.Setenv("CATALOG_MIN_FUZZY_SCORE", "85")

	cfg := LoadCatalogConfig()
	if cfg.MinFuzzyScore != 85 {
		t.Errorf("MinFuzzyScore = %d, want 85 from env", cfg.MinFuzzyScore)
	}
	if len(cfg.Warnings()) != 1 {
		t.Errorf("got warnings %v, want one for the unreadable file", cfg.Warnings())
	}
}
