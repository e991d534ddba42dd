package catalog

import (
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/metrics"
	"github.com/xelth-com/nfecatalog/internal/models"
	"github.com/xelth-com/nfecatalog/internal/utils"
)

// Outcome is how a line item was resolved.
type Outcome string

const (
	OutcomeUpsertByCode   Outcome = "upsert_by_code"
	OutcomeMatchedByAlias Outcome = "matched_by_alias"
	OutcomeQueuedInbox    Outcome = "queued_inbox"
)

// Line is one raw product line item from an invoice or spreadsheet.
type Line struct {
	StoreID string         `json:"storeId" validate:"required,max=64"`
	Name    string         `json:"name"`
	Code    *string        `json:"code,omitempty" validate:"omitempty,max=64"`
	NCM     *string        `json:"ncm,omitempty"`
	Unit    *string        `json:"unit,omitempty"`
	CSTICMS *string        `json:"cstIcms,omitempty"`
	RawData datatypes.JSON `json:"rawData,omitempty"`
}

// Resolution is the result of ResolveLine.
// ProductID is set for the code and alias outcomes; InboxID, SuggestedProductID
// and Score for the inbox outcome.
type Resolution struct {
	Outcome            Outcome  `json:"status"`
	ProductID          *uint    `json:"productId,omitempty"`
	InboxID            *uint    `json:"inboxId,omitempty"`
	SuggestedProductID *uint    `json:"suggestedProductId,omitempty"`
	Score              *float64 `json:"score,omitempty"`
}

// ResolveLine resolves line with the configured fuzzy threshold.
func (s *Service) ResolveLine(tx *gorm.DB, line Line) (*Resolution, error) {
	return s.ResolveLineWithScore(tx, line, s.minScore)
}

// ResolveLineWithScore routes one line item, first match wins:
//
//  1. a code is authoritative: upsert the product and alias the name to it;
//  2. without a code, an existing alias for the normalized name in the store;
//  3. otherwise the item goes to the inbox with the best fuzzy suggestion.
//
// A suggestion above minScore is never linked automatically. Only
// infrastructure and validation failures return an error; the caller owns
// the transaction and decides whether to roll back.
func (s *Service) ResolveLineWithScore(tx *gorm.DB, line Line, minScore int) (*Resolution, error) {
	storeID := strings.TrimSpace(line.StoreID)
	if storeID == "" {
		return nil, NewValidationError("store_id", "store id is required")
	}
	norm := utils.NormalizeName(line.Name)

	if code := strings.TrimSpace(utils.Deref(line.Code)); code != "" {
		p, err := s.UpsertByCode(tx, ProductInput{
			Code:    code,
			Name:    line.Name,
			NCM:     line.NCM,
			Unit:    line.Unit,
			CSTICMS: line.CSTICMS,
		})
		if err != nil {
			return nil, err
		}
		// retired products keep resolving by code but collect no new aliases
		if p.Active && norm != "" {
			if _, err := s.insertAlias(tx, p.ID, storeID, line.Name, norm); err != nil {
				return nil, err
			}
		}
		return s.resolved(OutcomeUpsertByCode, storeID, p.ID), nil
	}

	if norm != "" {
		alias, err := findAlias(tx, storeID, norm)
		if err == nil {
			return s.resolved(OutcomeMatchedByAlias, storeID, alias.ProductID), nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	sug, err := s.Suggest(tx, line.Name, minScore)
	if err != nil {
		return nil, err
	}
	item, err := s.Enqueue(tx, EnqueueInput{
		StoreID:            storeID,
		RawName:            line.Name,
		RawCode:            utils.StringPtr(utils.Deref(line.Code)),
		RawNCM:             line.NCM,
		RawUnit:            line.Unit,
		Reason:             models.InboxReasonNoMatch,
		SuggestedProductID: sug.ProductID,
		Score:              sug.Score,
		RawData:            line.RawData,
	})
	if err != nil {
		return nil, err
	}

	metrics.ResolutionsTotal.WithLabelValues(string(OutcomeQueuedInbox)).Inc()
	metrics.FuzzyScore.Observe(sug.Score)
	score := sug.Score
	return &Resolution{
		Outcome:            OutcomeQueuedInbox,
		InboxID:            &item.ID,
		SuggestedProductID: sug.ProductID,
		Score:              &score,
	}, nil
}

func (s *Service) resolved(outcome Outcome, storeID string, productID uint) *Resolution {
	metrics.ResolutionsTotal.WithLabelValues(string(outcome)).Inc()
	s.log.Debug("line item resolved",
		zap.String("outcome", string(outcome)),
		zap.String("store_id", storeID),
		zap.Uint("product_id", productID),
	)
	return &Resolution{Outcome: outcome, ProductID: &productID}
}
