package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xelth-com/nfecatalog/internal/metrics"
	"github.com/xelth-com/nfecatalog/internal/models"
	"github.com/xelth-com/nfecatalog/internal/utils"
)

// EnqueueInput is an unresolved line item handed to reviewers.
type EnqueueInput struct {
	StoreID            string
	RawName            string
	RawCode            *string
	RawNCM             *string
	RawUnit            *string
	Reason             string
	SuggestedProductID *uint
	Score              float64 // 0 is stored as NULL
	RawData            datatypes.JSON
}

// InboxFilter narrows ListInbox.
type InboxFilter struct {
	StoreID string
	Limit   int
}

// Enqueue inserts a new inbox row. Identical items are not deduplicated.
func (s *Service) Enqueue(tx *gorm.DB, in EnqueueInput) (*models.ProductInbox, error) {
	item := models.ProductInbox{
		StoreID:            in.StoreID,
		RawName:            in.RawName,
		RawCode:            in.RawCode,
		RawNCM:             in.RawNCM,
		RawUnit:            in.RawUnit,
		Reason:             in.Reason,
		SuggestedProductID: in.SuggestedProductID,
		RawData:            in.RawData,
	}
	if item.Reason == "" {
		item.Reason = models.InboxReasonNoMatch
	}
	if in.Score != 0 {
		item.Score = decimal.NewNullDecimal(decimal.NewFromFloat(in.Score).Round(2))
	}

	if err := tx.Create(&item).Error; err != nil {
		return nil, fmt.Errorf("enqueue inbox item for store %s: %w", in.StoreID, err)
	}
	s.log.Info("line item queued for review",
		zap.Uint("inbox_id", item.ID),
		zap.String("store_id", item.StoreID),
		zap.String("raw_name", item.RawName),
		zap.Float64("score", in.Score),
	)
	return &item, nil
}

// ListInbox returns pending items ordered by id, with their suggested product.
func (s *Service) ListInbox(tx *gorm.DB, f InboxFilter) ([]models.ProductInbox, error) {
	q := tx.Preload("SuggestedProduct").Order("id")
	if store := strings.TrimSpace(f.StoreID); store != "" {
		q = q.Where("store_id = ?", store)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var items []models.ProductInbox
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	return items, nil
}

// ApproveLinkAlias links the inbox item to an existing product and removes it.
// Empty storeID and aliasText default to the item's own store and raw name;
// a defaulted raw name that normalizes to nothing gets no alias.
func (s *Service) ApproveLinkAlias(tx *gorm.DB, inboxID, productID uint, storeID, aliasText string) error {
	item, err := lockInbox(tx, inboxID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(storeID) == "" {
		storeID = item.StoreID
	}
	if strings.TrimSpace(aliasText) == "" {
		aliasText = item.RawName
		// a raw name with no letters or digits cannot become an alias
		if utils.NormalizeName(aliasText) == "" {
			aliasText = ""
		}
	}

	if aliasText == "" {
		_, err = activeProduct(tx, productID)
	} else {
		err = s.approveAlias(tx, productID, storeID, aliasText)
	}
	if err != nil {
		return err
	}
	if err := tx.Delete(item).Error; err != nil {
		return fmt.Errorf("delete inbox item %d: %w", inboxID, err)
	}

	metrics.InboxActions.WithLabelValues("link").Inc()
	s.log.Info("inbox item linked to product",
		zap.Uint("inbox_id", inboxID),
		zap.Uint("product_id", productID),
		zap.String("store_id", storeID),
	)
	return nil
}

// ApproveCreateProduct upserts the product described by in, aliases the
// item's raw name to it and removes the item. It returns the product id.
// A raw name that normalizes to nothing gets no alias.
func (s *Service) ApproveCreateProduct(tx *gorm.DB, inboxID uint, storeID string, in ProductInput) (uint, error) {
	item, err := lockInbox(tx, inboxID)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(storeID) == "" {
		storeID = item.StoreID
	}

	p, err := s.UpsertByCode(tx, in)
	if err != nil {
		return 0, err
	}
	if utils.NormalizeName(item.RawName) != "" {
		if err := s.approveAlias(tx, p.ID, storeID, item.RawName); err != nil {
			return 0, err
		}
	}
	if err := tx.Delete(item).Error; err != nil {
		return 0, fmt.Errorf("delete inbox item %d: %w", inboxID, err)
	}

	metrics.InboxActions.WithLabelValues("create").Inc()
	s.log.Info("inbox item approved as product",
		zap.Uint("inbox_id", inboxID),
		zap.Uint("product_id", p.ID),
		zap.String("code", p.Code),
		zap.String("store_id", storeID),
	)
	return p.ID, nil
}

// DismissInbox discards an item without linking it.
func (s *Service) DismissInbox(tx *gorm.DB, inboxID uint) error {
	res := tx.Delete(&models.ProductInbox{}, inboxID)
	if res.Error != nil {
		return fmt.Errorf("dismiss inbox item %d: %w", inboxID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("inbox item %d: %w", inboxID, ErrNotFound)
	}

	metrics.InboxActions.WithLabelValues("dismiss").Inc()
	s.log.Info("inbox item dismissed", zap.Uint("inbox_id", inboxID))
	return nil
}

// GetInboxItem returns one inbox item, locked for the rest of the transaction.
func (s *Service) GetInboxItem(tx *gorm.DB, inboxID uint) (*models.ProductInbox, error) {
	return lockInbox(tx, inboxID)
}

func lockInbox(tx *gorm.DB, id uint) (*models.ProductInbox, error) {
	var item models.ProductInbox
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("inbox item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock inbox item %d: %w", id, err)
	}
	return &item, nil
}
