package main

import (
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/services/catalog"
)

func resolveCmd() *cobra.Command {
	var (
		storeID string
		name    string
		code    string
		ncm     string
		unit    string
		cst     string
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve one line item against the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line := catalog.Line{StoreID: storeID, Name: name}
			if code != "" {
				line.Code = &code
			}
			if ncm != "" {
				line.NCM = &ncm
			}
			if unit != "" {
				line.Unit = &unit
			}
			if cst != "" {
				line.CSTICMS = &cst
			}
			return withApp(func(a *app, tx *gorm.DB) (interface{}, error) {
				return a.catalog.ResolveLine(tx, line)
			})
		},
	}

	cmd.Flags().StringVarP(&storeID, "store", "s", "", "Store id")
	cmd.Flags().StringVar(&name, "name", "", "Product name as written on the line")
	cmd.Flags().StringVar(&code, "code", "", "Canonical product code")
	cmd.Flags().StringVar(&ncm, "ncm", "", "NCM classification")
	cmd.Flags().StringVar(&unit, "unit", "", "Unit of measure")
	cmd.Flags().StringVar(&cst, "cst", "", "CST ICMS or CSOSN")
	cmd.MarkFlagRequired("store")
	cmd.MarkFlagRequired("name")
	return cmd
}
