// Package testutil starts a throwaway PostgreSQL for storage-backed tests.
package testutil

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/database"
)

// Postgres is a running embedded server with a migrated schema.
type Postgres struct {
	DB      *gorm.DB
	server  *embeddedpostgres.EmbeddedPostgres
	tempDir string
}

// StartPostgres starts an embedded server on port and migrates the catalog schema.
// Each test package must use its own port since packages run in parallel.
func StartPostgres(port uint32) (*Postgres, error) {
	dir, err := os.MkdirTemp("", "nfecatalog-pg-")
	if err != nil {
		return nil, err
	}

	server := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		Port(port).
		Database("nfecatalog_test").
		Username("postgres").
		Password("postgres").
		RuntimePath(filepath.Join(dir, "runtime")).
		DataPath(filepath.Join(dir, "data")).
		Logger(io.Discard))
	if err := server.Start(); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("start embedded postgres: %w", err)
	}

	dsn := fmt.Sprintf("host=localhost port=%d user=postgres password=postgres dbname=nfecatalog_test sslmode=disable", port)
	db, err := database.Open(dsn, true)
	if err == nil {
		err = database.Migrate(db)
	}
	if err != nil {
		_ = server.Stop()
		os.RemoveAll(dir)
		return nil, err
	}

	return &Postgres{DB: db, server: server, tempDir: dir}, nil
}

// Reset empties every catalog table and restarts the id sequences.
func (p *Postgres) Reset() error {
	return p.DB.Exec(
		"TRUNCATE TABLE product_inbox, product_aliases, products, nfe_xmls, clients RESTART IDENTITY CASCADE",
	).Error
}

// Stop closes the connection and removes the server's files.
func (p *Postgres) Stop() {
	if sqlDB, err := p.DB.DB(); err == nil {
		sqlDB.Close()
	}
	_ = p.server.Stop()
	os.RemoveAll(p.tempDir)
}

// Fresh returns an emptied database, or skips t when no server is running.
// Safe to call on a nil *Postgres.
func (p *Postgres) Fresh(t testing.TB) *gorm.DB {
	t.Helper()
	if p == nil {
		t.Skip("embedded postgres not available")
	}
	if err := p.Reset(); err != nil {
		t.Fatalf("reset tables: %v", err)
	}
	return p.DB
}

// RunWithPostgres is a TestMain body: it starts a server unless -short is set,
// stores it in *target, runs the tests and exits. A server that fails to start
// leaves *target nil so storage tests skip.
func RunWithPostgres(m *testing.M, port uint32, target **Postgres) {
	flag.Parse()
	if !testing.Short() {
		p, err := StartPostgres(port)
		if err != nil {
			fmt.Fprintf(os.Stderr, "storage tests skipped: %v\n", err)
		} else {
			*target = p
		}
	}

	code := m.Run()
	if *target != nil {
		(*target).Stop()
	}
	os.Exit(code)
}
