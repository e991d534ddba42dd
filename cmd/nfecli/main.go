package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/buildinfo"
	"github.com/xelth-com/nfecatalog/internal/config"
	"github.com/xelth-com/nfecatalog/internal/database"
	"github.com/xelth-com/nfecatalog/internal/logger"
	"github.com/xelth-com/nfecatalog/internal/services/catalog"
	"github.com/xelth-com/nfecatalog/internal/services/clients"
	"github.com/xelth-com/nfecatalog/internal/services/importer"
)

// app is the per-invocation wiring shared by every subcommand.
type app struct {
	cfg      *config.Config
	db       *database.DB
	log      *zap.Logger
	catalog  *catalog.Service
	clients  *clients.Service
	importer *importer.Service
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "nfecli",
		Short:         "Product catalog and NFe import tool",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importXMLCmd())
	rootCmd.AddCommand(importSheetCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(inboxCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.LogLevel,
		Environment: cfg.AppEnv,
		ServiceName: "nfecli",
	}); err != nil {
		return nil, err
	}
	lg := logger.GetLogger()
	for _, w := range cfg.Catalog.Warnings() {
		lg.Warn(w)
	}

	db, err := database.Connect(cfg.Database, lg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	cat := catalog.New(cfg.Catalog, lg)
	cl := clients.NewService(clients.NewCNPJLookup(cfg.CNPJ), lg)
	return &app{
		cfg:      cfg,
		db:       db,
		log:      lg,
		catalog:  cat,
		clients:  cl,
		importer: importer.New(cat, cl, cfg.Catalog, lg),
	}, nil
}

func (a *app) Close() {
	logger.Sync()
	if err := a.db.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

// withApp opens the database, runs fn in one transaction and prints its result.
func withApp(fn func(a *app, tx *gorm.DB) (interface{}, error)) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var out interface{}
	if err := a.db.Transaction(func(tx *gorm.DB) error {
		var ferr error
		out, ferr = fn(a, tx)
		return ferr
	}); err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(map[string]string{"status": "ok"})
		},
	}
}
