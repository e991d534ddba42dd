package models

import (
	"time"
)

// ProductAlias maps a store-specific spelling to a canonical product.
// (StoreID, AliasNorm) is unique: within one store an alias resolves to exactly one product.
type ProductAlias struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProductID uint   `gorm:"not null;index" json:"productId"`
	StoreID   string `gorm:"size:64;not null;uniqueIndex:uq_alias_per_store,priority:1" json:"storeId"`
	Alias     string `gorm:"type:text;not null" json:"alias"`
	AliasNorm string `gorm:"type:text;not null;uniqueIndex:uq_alias_per_store,priority:2;index:ix_alias_norm" json:"aliasNorm"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name
func (ProductAlias) TableName() string {
	return "product_aliases"
}
