// Package catalog resolves raw invoice line items to canonical products.
//
// Every operation takes the caller's *gorm.DB, normally an open transaction.
// The catalog never commits or rolls back on its own.
package catalog

import (
	"go.uber.org/zap"

	"github.com/xelth-com/nfecatalog/internal/config"
)

// DefaultMinFuzzyScore is the threshold used when none is configured.
const DefaultMinFuzzyScore = 90

// Service holds catalog tuning and the logger.
type Service struct {
	minScore      int
	aliasConflict string
	log           *zap.Logger
}

// New creates a catalog service. A nil cfg uses the defaults.
func New(cfg *config.CatalogConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		minScore:      DefaultMinFuzzyScore,
		aliasConflict: config.AliasConflictIgnore,
		log:           log.Named("catalog"),
	}
	if cfg != nil {
		s.minScore = cfg.MinFuzzyScore
		s.aliasConflict = cfg.AliasConflict
	}
	return s
}

// MinFuzzyScore returns the configured suggestion threshold.
func (s *Service) MinFuzzyScore() int { return s.minScore }

// AliasConflictPolicy returns how approvals treat an alias owned by another product.
func (s *Service) AliasConflictPolicy() string { return s.aliasConflict }
