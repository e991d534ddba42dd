package catalog

import (
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/models"
	"github.com/xelth-com/nfecatalog/internal/utils"
)

// Suggestion is the closest active product to a name.
// ProductID is nil when the best score is below the threshold, the name
// normalizes to nothing or the catalog has no active products; Score is
// still the best one observed.
type Suggestion struct {
	ProductID *uint   `json:"productId"`
	Score     float64 `json:"score"`
}

type suggestCandidate struct {
	ID       uint
	NameNorm string
}

// Suggest finds the active product whose normalized name is most similar to name.
// Candidates are scanned by ascending id and only a strictly better score
// replaces the current best, so ties resolve to the lowest id.
// It never writes.
func (s *Service) Suggest(tx *gorm.DB, name string, minScore int) (Suggestion, error) {
	query := utils.NormalizeName(name)
	if query == "" {
		return Suggestion{}, nil
	}

	var candidates []suggestCandidate
	err := tx.Model(&models.Product{}).
		Select("id", "name_norm").
		Where("active = ?", true).
		Order("id").
		Find(&candidates).Error
	if err != nil {
		return Suggestion{}, fmt.Errorf("load suggestion candidates: %w", err)
	}
	if len(candidates) == 0 {
		return Suggestion{}, nil
	}

	bestID := candidates[0].ID
	bestScore := -1.0
	for _, c := range candidates {
		if score := TokenSortRatio(query, c.NameNorm); score > bestScore {
			bestID, bestScore = c.ID, score
		}
	}

	sug := Suggestion{Score: roundScore(bestScore)}
	if bestScore >= float64(minScore) {
		sug.ProductID = &bestID
	}
	return sug, nil
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
