package database

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xelth-com/nfecatalog/internal/config"
	"github.com/xelth-com/nfecatalog/internal/models"
)

const (
	embeddedDataPath = "./db_data"
	embeddedPort     = 5433
	embeddedPassword = "postgres"
)

// DB wraps gorm.DB and includes a reference to an embedded process if active
type DB struct {
	*gorm.DB
	embedded *embeddedpostgres.EmbeddedPostgres
}

// cleanupStaleEmbeddedPostgres cleans up leftover processes from a previous crash
func cleanupStaleEmbeddedPostgres(log *zap.Logger) {
	pidFile := filepath.Join(embeddedDataPath, "postmaster.pid")

	data, err := os.ReadFile(pidFile)
	if err != nil {
		// No pid file = clean state
		return
	}

	// First line of postmaster.pid is the PID
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	if !scanner.Scan() {
		return
	}
	pid, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		log.Warn("could not parse PID from postmaster.pid", zap.Error(err))
		return
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		log.Info("removing stale postmaster.pid", zap.Int("pid", pid))
		os.Remove(pidFile)
		return
	}

	// On Unix, FindProcess always succeeds, so we need to send signal 0 to check
	if err := process.Signal(syscall.Signal(0)); err != nil {
		log.Info("removing stale postmaster.pid", zap.Int("pid", pid))
		os.Remove(pidFile)
		return
	}

	log.Warn("found orphaned PostgreSQL process, stopping", zap.Int("pid", pid))
	if err := process.Signal(syscall.SIGTERM); err != nil {
		log.Warn("could not send SIGTERM", zap.Int("pid", pid), zap.Error(err))
	}

	for i := 0; i < 10; i++ {
		time.Sleep(500 * time.Millisecond)
		if err := process.Signal(syscall.Signal(0)); err != nil {
			log.Info("orphaned PostgreSQL process stopped")
			os.Remove(pidFile)
			return
		}
	}

	log.Warn("process did not stop gracefully, sending SIGKILL", zap.Int("pid", pid))
	process.Kill()
	time.Sleep(500 * time.Millisecond)
	os.Remove(pidFile)
}

// isPortInUse checks if a port is already in use
func isPortInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Connect establishes a connection to a PostgreSQL database (external or embedded)
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	var embedded *embeddedpostgres.EmbeddedPostgres

	if cfg.Embedded() {
		log.Info("starting embedded PostgreSQL", zap.String("data", embeddedDataPath))

		cleanupStaleEmbeddedPostgres(log)

		if isPortInUse(embeddedPort) {
			log.Warn("port still in use, waiting for release", zap.Int("port", embeddedPort))
			for i := 0; i < 6; i++ {
				time.Sleep(500 * time.Millisecond)
				if !isPortInUse(embeddedPort) {
					break
				}
			}
			if isPortInUse(embeddedPort) {
				return nil, fmt.Errorf("port %d is still in use by another process", embeddedPort)
			}
		}

		embeddedCfg := embeddedpostgres.DefaultConfig().
			DataPath(embeddedDataPath).
			Port(uint32(embeddedPort)).
			Database(cfg.Database).
			Username(cfg.Username).
			Password(embeddedPassword)

		embedded = embeddedpostgres.NewDatabase(embeddedCfg)
		if err := embedded.Start(); err != nil {
			return nil, fmt.Errorf("failed to start embedded database: %w", err)
		}

		cfg.Port = strconv.Itoa(embeddedPort)
		cfg.Password = embeddedPassword
		cfg.SSLMode = "disable"
		log.Info("embedded PostgreSQL started", zap.Int("port", embeddedPort))
	} else if cfg.URL == "" {
		log.Info("connecting to external PostgreSQL", zap.String("host", cfg.Host), zap.String("port", cfg.Port))
	} else {
		log.Info("connecting to external PostgreSQL via DATABASE_URL")
	}

	db, err := Open(cfg.DSN(), cfg.Alter)
	if err != nil {
		// Clean up embedded process if GORM connection fails
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, err
	}

	log.Info("database connection established")
	return &DB{DB: db, embedded: embedded}, nil
}

// Open opens a gorm handle on dsn with the pool settings used everywhere.
// quiet silences SQL logging.
func Open(dsn string, quiet bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if quiet {
		logLevel = logger.Silent
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

// Close ensures the database connection and embedded process are shut down
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if db.embedded != nil {
		zap.L().Info("stopping embedded PostgreSQL")
		if stopErr := db.embedded.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}
	return err
}

// Migrate creates or updates the catalog schema.
// The pg_trgm extension is optional; its absence only loses the trigram index.
func Migrate(db *gorm.DB) error {
	trgm := db.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm").Error == nil

	if err := db.AutoMigrate(
		&models.Product{},
		&models.ProductAlias{},
		&models.ProductInbox{},
		&models.Client{},
		&models.NfeXml{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if trgm {
		if err := db.Exec(
			"CREATE INDEX IF NOT EXISTS ix_products_name_norm_trgm ON products USING gin (name_norm gin_trgm_ops)",
		).Error; err != nil {
			zap.L().Warn("trigram index not created", zap.Error(err))
		}
	}
	return nil
}
