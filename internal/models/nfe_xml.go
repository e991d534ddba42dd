package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// NfeXml is an imported fiscal document, deduplicated by the SHA-256 of its content.
type NfeXml struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	ClientID   uint                `gorm:"not null;index" json:"clientId"`
	Client     *Client             `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Number     string              `gorm:"column:numero;size:64;not null" json:"numero"`
	TotalValue decimal.NullDecimal `gorm:"column:valor_total;type:numeric(14,2)" json:"valorTotal"`
	IssuedAt   *string             `gorm:"column:emitida_em;size:32" json:"emitidaEm,omitempty"`
	XMLText    string              `gorm:"column:xml_text;type:text;not null" json:"-"`
	Hash       string              `gorm:"size:64;not null;uniqueIndex" json:"hash"`
	Cancelled  bool                `gorm:"column:cancelada;not null;default:false" json:"cancelada"`

	CreatedAt time.Time `json:"createdAt"`
}

func (NfeXml) TableName() string { return "nfe_xmls" }

func uitoa(v uint) string { return strconv.FormatUint(uint64(v), 10) }
