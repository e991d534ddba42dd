package catalog

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xelth-com/nfecatalog/internal/models"
	"github.com/xelth-com/nfecatalog/internal/utils"
)

// ProductInput carries the mutable fields of a canonical product.
type ProductInput struct {
	Code    string  `json:"code" validate:"required,max=64"`
	Name    string  `json:"name" validate:"max=1000"`
	NCM     *string `json:"ncm,omitempty" validate:"omitempty,max=16"`
	Unit    *string `json:"unit,omitempty" validate:"omitempty,max=16"`
	CSTICMS *string `json:"cstIcms,omitempty" validate:"omitempty,max=16"`
}

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	Query      string // matched against the normalized name, or the exact code
	ActiveOnly bool
	Limit      int
}

// UpsertByCode creates or overwrites the product identified by in.Code.
//
// The row is locked FOR UPDATE so concurrent upserts of one code serialize.
// On re-encounter every mutable field is overwritten and the last committed
// writer wins. The active flag is never changed here.
func (s *Service) UpsertByCode(tx *gorm.DB, in ProductInput) (*models.Product, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, NewValidationError("code", "product code is required")
	}

	p, err := lockProductByCode(tx, code)
	switch {
	case err == nil:
		return s.overwrite(tx, p, in)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("lock product %s: %w", code, err)
	}

	p = &models.Product{
		Code:    code,
		Name:    in.Name,
		NCM:     in.NCM,
		Unit:    in.Unit,
		CSTICMS: in.CSTICMS,
		Active:  true,
	}
	// A concurrent insert of the same code makes this wait on the unique index,
	// then do nothing; the row is re-read and updated on top of it.
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(p)
	if res.Error != nil {
		return nil, fmt.Errorf("insert product %s: %w", code, res.Error)
	}
	if res.RowsAffected == 1 {
		s.log.Debug("product created", zap.String("code", code), zap.Uint("id", p.ID))
		return p, nil
	}

	p, err = lockProductByCode(tx, code)
	if err != nil {
		return nil, fmt.Errorf("lock product %s after insert race: %w", code, err)
	}
	return s.overwrite(tx, p, in)
}

func (s *Service) overwrite(tx *gorm.DB, p *models.Product, in ProductInput) (*models.Product, error) {
	p.Name = in.Name
	p.NCM = in.NCM
	p.Unit = in.Unit
	p.CSTICMS = in.CSTICMS
	// BeforeSave recomputes NameNorm
	if err := tx.Omit(clause.Associations).Save(p).Error; err != nil {
		return nil, fmt.Errorf("update product %s: %w", p.Code, err)
	}
	s.log.Debug("product updated", zap.String("code", p.Code), zap.Uint("id", p.ID))
	return p, nil
}

func lockProductByCode(tx *gorm.DB, code string) (*models.Product, error) {
	var p models.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		Take(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProductByCode returns the product with code, or ErrNotFound.
func (s *Service) GetProductByCode(tx *gorm.DB, code string) (*models.Product, error) {
	var p models.Product
	err := tx.Where("code = ?", strings.TrimSpace(code)).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", code, err)
	}
	return &p, nil
}

// ListProducts returns products ordered by id.
func (s *Service) ListProducts(tx *gorm.DB, f ProductFilter) ([]models.Product, error) {
	q := tx.Model(&models.Product{}).Order("id")
	if f.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		q = q.Where("name_norm LIKE ? OR code = ?", "%"+utils.NormalizeName(query)+"%", query)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// SetProductActive retires or restores a product. Inactive products are
// skipped by suggestions and accept no new aliases.
func (s *Service) SetProductActive(tx *gorm.DB, code string, active bool) (*models.Product, error) {
	p, err := lockProductByCode(tx, strings.TrimSpace(code))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock product %s: %w", code, err)
	}

	if err := tx.Model(p).UpdateColumn("active", active).Error; err != nil {
		return nil, fmt.Errorf("set product %s active=%t: %w", code, active, err)
	}
	p.Active = active
	s.log.Info("product active flag changed", zap.String("code", p.Code), zap.Bool("active", active))
	return p, nil
}
