package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Burrito is one line of an order and one unit of production capacity.
// Ingredient selections live with the builder and are not modelled here.
type Burrito struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"index;not null" json:"order_id"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	Notes     string          `gorm:"size:255" json:"notes"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
