package models

import (
	"time"

	"github.com/xelth-com/nfecatalog/internal/utils"
	"gorm.io/gorm"
)

// Product is the canonical catalog entry, identified by its business code.
type Product struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Code     string  `gorm:"size:64;not null;uniqueIndex" json:"code"`
	Name     string  `gorm:"type:text;not null" json:"name"`
	NameNorm string  `gorm:"type:text;not null;index:ix_products_name_norm" json:"nameNorm"`
	NCM      *string `gorm:"column:ncm;size:16" json:"ncm,omitempty"`
	Unit     *string `gorm:"size:16" json:"unit,omitempty"`
	CSTICMS  *string `gorm:"column:cst_icms;size:16" json:"cstIcms,omitempty"`
	Active   bool    `gorm:"not null;default:true" json:"active"`

	Aliases []ProductAlias `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"aliases,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Product) TableName() string { return "products" }

// BeforeSave keeps NameNorm derived from Name; it is never written on its own.
func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.NameNorm = utils.NormalizeName(p.Name)
	return nil
}
