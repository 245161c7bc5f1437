// Package query filters, sorts and paginates a cached snapshot of
// price-change records. Everything here is pure computation over the
// snapshot; it never touches the store.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jackmoore7/coles-web-app/internal/cache"
	"github.com/jackmoore7/coles-web-app/internal/store"
)

// SortIncrease ranks records by percentage increase instead of recency.
const SortIncrease = "increase"

// localeFormat matches the human-readable date shown on the dashboard; the
// date filter is a substring test against this rendering.
const localeFormat = "2 Jan 2006 3:04 PM"

var hundred = decimal.NewFromInt(100)

// Params are the caller-supplied query controls. Location is the caller's
// timezone (nil means UTC); Page is 1-based.
type Params struct {
	Search     string
	DateFilter string
	Location   *time.Location
	SortKey    string
	Page       int
	PerPage    int
}

// Row is a record plus its request-scoped derived fields. Derived fields
// exist only in responses and are never written back to the store.
type Row struct {
	store.PriceChange

	DateISO   string `json:"date_iso"`
	DateUTC   string `json:"date_utc"`
	DateLocal string `json:"date_local"`
	Unix      int64  `json:"timestamp"`

	// IncreasePct is meaningless when InfiniteIncrease is set: a price
	// that rose from zero ranks above every finite increase.
	IncreasePct      decimal.Decimal `json:"increase_pct"`
	InfiniteIncrease bool            `json:"infinite_increase"`
}

// Result is one page of matching rows.
type Result struct {
	Items      []Row `json:"items"`
	TotalCount int   `json:"total_count"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// Run executes the query against the snapshot: derive, filter, sort,
// paginate, in that order.
func Run(snap *cache.Snapshot, p Params) Result {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	search := strings.ToLower(strings.TrimSpace(p.Search))
	dateFilter := strings.TrimSpace(p.DateFilter)

	rows := make([]Row, 0, len(snap.Records))
	for _, rec := range snap.Records {
		row := derive(rec, loc)
		if search != "" && !strings.Contains(searchBlob(rec), search) {
			continue
		}
		if dateFilter != "" && !strings.Contains(row.DateLocal, dateFilter) {
			continue
		}
		rows = append(rows, row)
	}

	sortRows(rows, p.SortKey)
	return paginate(rows, p.Page, p.PerPage)
}

func derive(rec store.PriceChange, loc *time.Location) Row {
	utc := rec.Date.UTC()
	row := Row{
		PriceChange: rec,
		DateISO:     utc.Format(time.RFC3339),
		DateUTC:     utc.Format(localeFormat),
		DateLocal:   utc.In(loc).Format(localeFormat),
		Unix:        utc.Unix(),
	}
	if rec.PriceBefore.IsZero() {
		row.InfiniteIncrease = true
		return row
	}
	row.IncreasePct = rec.PriceAfter.Sub(rec.PriceBefore).
		Div(rec.PriceBefore).Mul(hundred)
	return row
}

// searchBlob concatenates the searchable fields into one lower-cased
// string. Numeric fields participate as their textual rendering, so a
// non-numeric term simply fails to match them.
func searchBlob(rec store.PriceChange) string {
	return strings.ToLower(fmt.Sprintf("%s %s %d %s %s",
		rec.ItemBrand, rec.ItemName, rec.ItemID,
		rec.PriceBefore.String(), rec.PriceAfter.String()))
}

// sortRows orders rows for display. Both orders are stable so ties keep
// the store's natural order.
func sortRows(rows []Row, sortKey string) {
	if sortKey == SortIncrease {
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := rows[i], rows[j]
			if a.InfiniteIncrease != b.InfiniteIncrease {
				return a.InfiniteIncrease
			}
			if a.InfiniteIncrease {
				return false
			}
			return a.IncreasePct.GreaterThan(b.IncreasePct)
		})
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Unix > rows[j].Unix
	})
}

func paginate(rows []Row, page, perPage int) Result {
	if perPage < 1 {
		perPage = 1
	}
	if page < 1 {
		page = 1
	}
	total := len(rows)
	totalPages := (total + perPage - 1) / perPage

	start := (page - 1) * perPage
	if start >= total {
		// Past the end is an empty page, not an error.
		return Result{Items: []Row{}, TotalCount: total, Page: page, PerPage: perPage, TotalPages: totalPages}
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return Result{Items: rows[start:end], TotalCount: total, Page: page, PerPage: perPage, TotalPages: totalPages}
}
