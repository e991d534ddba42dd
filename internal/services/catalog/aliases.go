package catalog

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xelth-com/nfecatalog/internal/config"
	"github.com/xelth-com/nfecatalog/internal/models"
	"github.com/xelth-com/nfecatalog/internal/utils"
)

var aliasConflictColumns = []clause.Column{{Name: "store_id"}, {Name: "alias_norm"}}

// EnsureAlias maps aliasText to productID within storeID.
// It is a no-op when (storeID, normalized alias) already exists, whatever
// product that alias points to; an existing alias is never repointed.
func (s *Service) EnsureAlias(tx *gorm.DB, productID uint, storeID, aliasText string) error {
	storeID, norm, err := aliasKey(storeID, aliasText)
	if err != nil {
		return err
	}
	if _, err := activeProduct(tx, productID); err != nil {
		return err
	}
	_, err = s.insertAlias(tx, productID, storeID, aliasText, norm)
	return err
}

// LookupAlias returns the alias for (storeID, normalized name), or ErrNotFound.
func (s *Service) LookupAlias(tx *gorm.DB, storeID, name string) (*models.ProductAlias, error) {
	storeID, norm, err := aliasKey(storeID, name)
	if err != nil {
		return nil, err
	}
	return findAlias(tx, storeID, norm)
}

// RepointAlias points (storeID, aliasText) at productID, creating the alias if needed.
func (s *Service) RepointAlias(tx *gorm.DB, storeID, aliasText string, productID uint) (*models.ProductAlias, error) {
	storeID, norm, err := aliasKey(storeID, aliasText)
	if err != nil {
		return nil, err
	}
	if _, err := activeProduct(tx, productID); err != nil {
		return nil, err
	}

	a := models.ProductAlias{ProductID: productID, StoreID: storeID, Alias: aliasText, AliasNorm: norm}
	err = tx.Clauses(clause.OnConflict{
		Columns:   aliasConflictColumns,
		DoUpdates: clause.AssignmentColumns([]string{"product_id", "alias"}),
	}).Create(&a).Error
	if err != nil {
		return nil, fmt.Errorf("repoint alias %q in store %s: %w", norm, storeID, err)
	}

	s.log.Info("alias repointed",
		zap.String("store_id", storeID),
		zap.String("alias_norm", norm),
		zap.Uint("product_id", productID),
	)
	return findAlias(tx, storeID, norm)
}

// approveAlias links an approved name to productID, applying the configured
// policy when the alias already belongs to a different product.
func (s *Service) approveAlias(tx *gorm.DB, productID uint, storeID, aliasText string) error {
	storeID, norm, err := aliasKey(storeID, aliasText)
	if err != nil {
		return err
	}
	if _, err := activeProduct(tx, productID); err != nil {
		return err
	}

	if s.aliasConflict == config.AliasConflictRepoint {
		_, err := s.RepointAlias(tx, storeID, aliasText, productID)
		return err
	}

	created, err := s.insertAlias(tx, productID, storeID, aliasText, norm)
	if err != nil || created {
		return err
	}

	existing, err := findAlias(tx, storeID, norm)
	if err != nil {
		return err
	}
	if existing.ProductID == productID {
		return nil
	}
	if s.aliasConflict == config.AliasConflictReject {
		return fmt.Errorf("alias %q in store %s points to product %d: %w",
			norm, storeID, existing.ProductID, ErrAliasConflict)
	}
	s.log.Info("approved alias already points to another product, kept",
		zap.String("store_id", storeID),
		zap.String("alias_norm", norm),
		zap.Uint("existing_product_id", existing.ProductID),
		zap.Uint("approved_product_id", productID),
	)
	return nil
}

// insertAlias inserts the alias unless the (store, norm) pair exists.
// The unique index makes concurrent inserts safe without extra locking.
func (s *Service) insertAlias(tx *gorm.DB, productID uint, storeID, aliasText, norm string) (bool, error) {
	a := models.ProductAlias{ProductID: productID, StoreID: storeID, Alias: aliasText, AliasNorm: norm}
	res := tx.Clauses(clause.OnConflict{
		Columns:   aliasConflictColumns,
		DoNothing: true,
	}).Create(&a)
	if res.Error != nil {
		return false, fmt.Errorf("insert alias %q in store %s: %w", norm, storeID, res.Error)
	}
	if res.RowsAffected == 1 {
		s.log.Debug("alias created",
			zap.String("store_id", storeID),
			zap.String("alias_norm", norm),
			zap.Uint("product_id", productID),
		)
		return true, nil
	}
	return false, nil
}

func findAlias(tx *gorm.DB, storeID, norm string) (*models.ProductAlias, error) {
	var a models.ProductAlias
	err := tx.Where("store_id = ? AND alias_norm = ?", storeID, norm).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("alias %q in store %s: %w", norm, storeID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find alias %q in store %s: %w", norm, storeID, err)
	}
	return &a, nil
}

func activeProduct(tx *gorm.DB, productID uint) (*models.Product, error) {
	var p models.Product
	err := tx.Take(&p, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	if !p.Active {
		return nil, fmt.Errorf("product %s: %w", p.Code, ErrProductInactive)
	}
	return &p, nil
}

func aliasKey(storeID, aliasText string) (string, string, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return "", "", NewValidationError("store_id", "store id is required")
	}
	norm := utils.NormalizeName(aliasText)
	if norm == "" {
		return "", "", NewValidationError("alias", "alias has no letters or digits")
	}
	return storeID, norm, nil
}
