package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/services/catalog"
)

func inboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Review unresolved line items",
	}
	cmd.AddCommand(inboxListCmd())
	cmd.AddCommand(inboxLinkCmd())
	cmd.AddCommand(inboxCreateCmd())
	cmd.AddCommand(inboxDismissCmd())
	return cmd
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, catalog.NewValidationError("id", "invalid id "+strconv.Quote(s))
	}
	return uint(id), nil
}

func inboxListCmd() *cobra.Command {
	var (
		storeID string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending inbox items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app, tx *gorm.DB) (interface{}, error) {
				return a.catalog.ListInbox(tx, catalog.InboxFilter{StoreID: storeID, Limit: limit})
			})
		},
	}
	cmd.Flags().StringVarP(&storeID, "store", "s", "", "Only items of this store")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum items")
	return cmd
}

func inboxLinkCmd() *cobra.Command {
	var (
		productID uint
		storeID   string
		alias     string
	)
	cmd := &cobra.Command{
		Use:   "link [inbox-id]",
		Short: "Approve an item as an alias of an existing product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inboxID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(func(a *app, tx *gorm.DB) (interface{}, error) {
				if err := a.catalog.ApproveLinkAlias(tx, inboxID, productID, storeID, alias); err != nil {
					return nil, err
				}
				return map[string]interface{}{"status": "linked", "inboxId": inboxID, "productId": productID}, nil
			})
		},
	}
	cmd.Flags().UintVarP(&productID, "product", "p", 0, "Id of the product to link to")
	cmd.Flags().StringVarP(&storeID, "store", "s", "", "Store id (defaults to the item's store)")
	cmd.Flags().StringVar(&alias, "alias", "", "Alias text (defaults to the item's raw name)")
	cmd.MarkFlagRequired("product")
	return cmd
}

func inboxCreateCmd() *cobra.Command {
	var (
		storeID string
		code    string
		name    string
		ncm     string
		unit    string
		cst     string
	)
	cmd := &cobra.Command{
		Use:   "create [inbox-id]",
		Short: "Approve an item by creating a new canonical product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inboxID, err := parseID(args[0])
			if err != nil {
				return err
			}
			in := catalog.ProductInput{Code: code, Name: name}
			if ncm != "" {
				in.NCM = &ncm
			}
			if unit != "" {
				in.Unit = &unit
			}
			if cst != "" {
				in.CSTICMS = &cst
			}
			return withApp(func(a *app, tx *gorm.DB) (interface{}, error) {
				productID, err := a.catalog.ApproveCreateProduct(tx, inboxID, storeID, in)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"status": "created", "inboxId": inboxID, "productId": productID}, nil
			})
		},
	}
	cmd.Flags().StringVarP(&storeID, "store", "s", "", "Store id (defaults to the item's store)")
	cmd.Flags().StringVar(&code, "code", "", "Canonical product code")
	cmd.Flags().StringVar(&name, "name", "", "Canonical product name")
	cmd.Flags().StringVar(&ncm, "ncm", "", "NCM classification")
	cmd.Flags().StringVar(&unit, "unit", "", "Unit of measure")
	cmd.Flags().StringVar(&cst, "cst", "", "CST ICMS or CSOSN")
	cmd.MarkFlagRequired("code")
	cmd.MarkFlagRequired("name")
	return cmd
}

func inboxDismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss [inbox-id]",
		Short: "Drop an inbox item without touching the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inboxID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(func(a *app, tx *gorm.DB) (interface{}, error) {
				if err := a.catalog.DismissInbox(tx, inboxID); err != nil {
					return nil, err
				}
				return map[string]interface{}{"status": "dismissed", "inboxId": inboxID}, nil
			})
		},
	}
}
