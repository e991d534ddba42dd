package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/services/catalog"
	"github.com/xelth-com/nfecatalog/internal/services/importer"
	"github.com/xelth-com/nfecatalog/internal/services/spreadsheet"
)

func importXMLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-xml [file...]",
		Short: "Import NFe XML files, one transaction per file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var results []interface{}
			failed := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				var res *importer.XMLResult
				err = a.db.Transaction(func(tx *gorm.DB) error {
					var terr error
					res, terr = a.importer.ImportXML(tx, data, filepath.Base(path))
					return terr
				})
				if err != nil {
					failed++
					results = append(results, map[string]string{
						"arquivo": filepath.Base(path),
						"status":  importer.StatusError,
						"error":   err.Error(),
					})
					continue
				}
				results = append(results, res)
			}
			if err := printJSON(results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

func importSheetCmd() *cobra.Command {
	var (
		storeID         string
		minScore        int
		continueOnError bool
	)
	cmd := &cobra.Command{
		Use:   "import-sheet [file]",
		Short: "Import a CSV or XLSX product sheet for one store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if storeID == "" {
				return errors.New("--store is required")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := spreadsheet.Read(filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			return withApp(func(a *app, tx *gorm.DB) (interface{}, error) {
				opts := a.importer.DefaultRowOptions()
				if cmd.Flags().Changed("min-score") {
					if minScore < 0 || minScore > 100 {
						return nil, catalog.NewValidationError("min-score", "must be between 0 and 100")
					}
					opts.MinFuzzyScore = minScore
				}
				if cmd.Flags().Changed("continue-on-error") {
					opts.ContinueOnError = continueOnError
				}
				return a.importer.ImportRows(tx, storeID, rows, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&storeID, "store", "s", "", "Store id the rows belong to")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Minimum fuzzy score for suggestions (0-100)")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Record failing rows instead of aborting")
	return cmd
}
