package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Inbox reasons
const (
	InboxReasonNoMatch = "no_match"
)

// ProductInbox is an unresolved line item waiting for a reviewer.
// Rows are never deduplicated; each enqueue is a new row.
type ProductInbox struct {
	ID                 uint                `gorm:"primaryKey" json:"id"`
	StoreID            string              `gorm:"size:64;not null;index:ix_inbox_store" json:"storeId"`
	RawName            string              `gorm:"type:text;not null" json:"rawName"`
	RawCode            *string             `gorm:"size:64" json:"rawCode,omitempty"`
	RawNCM             *string             `gorm:"column:raw_ncm;size:16" json:"rawNcm,omitempty"`
	RawUnit            *string             `gorm:"size:16" json:"rawUnit,omitempty"`
	Reason             string              `gorm:"size:32" json:"reason"`
	SuggestedProductID *uint               `json:"suggestedProductId,omitempty"`
	SuggestedProduct   *Product            `gorm:"foreignKey:SuggestedProductID" json:"suggestedProduct,omitempty"`
	Score              decimal.NullDecimal `gorm:"type:numeric(5,2)" json:"score"`
	RawData            datatypes.JSON      `gorm:"type:jsonb" json:"rawData,omitempty"` // full source line for the reviewer

	CreatedAt time.Time `json:"createdAt"`
}

func (ProductInbox) TableName() string { return "product_inbox" }
