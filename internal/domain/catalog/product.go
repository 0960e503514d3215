// Package catalog holds the upsert targets populated by catalog and offers
// imports. Every entity is keyed by the natural identifiers assigned by the
// ERP (product guid, price-type guid, warehouse guid), so re-importing the
// same document overwrites instead of duplicating.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is one catalog item as delivered by a CommerceML import.
type Product struct {
	GUID        string             `gorm:"type:varchar(36);primaryKey"`
	Article     string             `gorm:"type:varchar(100);index"`
	Name        string             `gorm:"type:varchar(500);not null"`
	Description string             `gorm:"type:text"`
	Unit        string             `gorm:"type:varchar(20)"`
	Attributes  []ProductAttribute `gorm:"foreignKey:ProductGUID;references:GUID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "cml_products"
}

// ProductAttribute is one name/value property of a product. The full set is
// replaced on every catalog import, never merged.
type ProductAttribute struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ProductGUID string `gorm:"type:varchar(36);not null;index"`
	Name        string `gorm:"type:varchar(200);not null"`
	Value       string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ProductAttribute) TableName() string {
	return "cml_product_attributes"
}

// Price is one price point for a product under a given ERP price type.
type Price struct {
	ProductGUID   string          `gorm:"type:varchar(36);primaryKey"`
	PriceTypeGUID string          `gorm:"type:varchar(36);primaryKey"`
	PriceTypeName string          `gorm:"type:varchar(200)"`
	Currency      string          `gorm:"type:varchar(10)"`
	Value         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UpdatedAt     time.Time
}

// TableName returns the table name for GORM
func (Price) TableName() string {
	return "cml_prices"
}

// Stock is the on-hand quantity of a product in one warehouse.
type Stock struct {
	ProductGUID   string          `gorm:"type:varchar(36);primaryKey"`
	WarehouseGUID string          `gorm:"type:varchar(36);primaryKey"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UpdatedAt     time.Time
}

// TableName returns the table name for GORM
func (Stock) TableName() string {
	return "cml_stocks"
}
