// Package history computes derived statistics over a single item's full
// price-change history.
package history

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jackmoore7/coles-web-app/internal/errx"
	"github.com/jackmoore7/coles-web-app/internal/store"
)

// seedEpoch anchors the synthetic first price point. It predates any
// ingested record, so the seed always sorts first in the display series.
var seedEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

var hundred = decimal.NewFromInt(100)

// Point is one (date, price) pair of the display series.
type Point struct {
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// History is the analytics payload for one item.
type History struct {
	ItemID            int64           `json:"item_id"`
	Series            []Point         `json:"series"`
	Lowest            decimal.Decimal `json:"lowest"`
	Highest           decimal.Decimal `json:"highest"`
	PctChangeExtremes decimal.Decimal `json:"pct_change_extremes"`
	TotalPriceChanges int             `json:"total_price_changes"`

	// Latest* describe only the most recent record's before→after move.
	// LatestPctChange is null when the denominator is zero.
	LatestChange    decimal.Decimal  `json:"latest_change"`
	LatestPctChange *decimal.Decimal `json:"latest_pct_change"`
}

// Analyze derives the item's statistics from its chronologically ascending
// records. An item with no records is a NotFound.
func Analyze(itemID int64, records []store.PriceChange) (History, error) {
	if len(records) == 0 {
		return History{}, errx.NotFound(fmt.Errorf("no price changes for item %d", itemID))
	}

	h := History{ItemID: itemID}
	h.Series = buildSeries(records)
	h.Lowest, h.Highest = extremes(h.Series)
	if h.Lowest.IsZero() {
		h.PctChangeExtremes = decimal.Zero
	} else {
		h.PctChangeExtremes = h.Highest.Sub(h.Lowest).Div(h.Lowest).Mul(hundred)
	}
	h.TotalPriceChanges = countChanges(records)

	latest := records[len(records)-1]
	h.LatestChange = latest.PriceAfter.Sub(latest.PriceBefore)
	if !latest.PriceBefore.IsZero() {
		pct := h.LatestChange.Div(latest.PriceBefore).Mul(hundred)
		h.LatestPctChange = &pct
	}
	return h, nil
}

// buildSeries seeds the series with the earliest known price, appends one
// point per record, removes exact duplicates and sorts by (date, price).
// The result is a monotonic display series even when several records share
// a timestamp.
func buildSeries(records []store.PriceChange) []Point {
	points := make([]Point, 0, len(records)+1)
	points = append(points, Point{Date: seedEpoch, Price: records[0].PriceBefore})
	for _, r := range records {
		points = append(points, Point{Date: r.Date.UTC(), Price: r.PriceAfter})
	}

	seen := make(map[string]struct{}, len(points))
	uniq := points[:0]
	for _, p := range points {
		key := p.Date.Format(time.RFC3339Nano) + "|" + p.Price.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, p)
	}

	sort.SliceStable(uniq, func(i, j int) bool {
		if !uniq[i].Date.Equal(uniq[j].Date) {
			return uniq[i].Date.Before(uniq[j].Date)
		}
		return uniq[i].Price.LessThan(uniq[j].Price)
	})
	return uniq
}

func extremes(points []Point) (lowest, highest decimal.Decimal) {
	lowest, highest = points[0].Price, points[0].Price
	for _, p := range points[1:] {
		if p.Price.LessThan(lowest) {
			lowest = p.Price
		}
		if p.Price.GreaterThan(highest) {
			highest = p.Price
		}
	}
	return lowest, highest
}

// countChanges walks the raw price sequence, seed price first and then
// every price_after in record order, counting transitions where the price
// actually differs. The walk deliberately uses record order, not the
// deduplicated series.
func countChanges(records []store.PriceChange) int {
	prev := records[0].PriceBefore
	count := 0
	for _, r := range records {
		if !r.PriceAfter.Equal(prev) {
			count++
		}
		prev = r.PriceAfter
	}
	return count
}
