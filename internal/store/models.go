package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownValue is substituted for brand/name fields the scraper could not
// extract. Resolved here at the store boundary so the query and analytics
// layers never see NULLs.
const UnknownValue = "Unknown"

// PriceChange is one detected price change. Records are append-only: they
// are written by the external scraper and never mutated by this service.
type PriceChange struct {
	ItemID      int64           `json:"item_id"`
	ItemBrand   string          `json:"item_brand"`
	ItemName    string          `json:"item_name"`
	ImageURL    string          `json:"image_url,omitempty"`
	PriceBefore decimal.Decimal `json:"price_before"`
	PriceAfter  decimal.Decimal `json:"price_after"`
	Date        time.Time       `json:"date"`
}
