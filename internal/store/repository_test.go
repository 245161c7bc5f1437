package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeRows struct {
	rows [][]any
	pos  int
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.pos-1]
	*(dest[0].(*int64)) = row[0].(int64)
	for i := 1; i <= 5; i++ {
		ns := dest[i].(*sql.NullString)
		if row[i] == nil {
			*ns = sql.NullString{}
		} else {
			*ns = sql.NullString{String: row[i].(string), Valid: true}
		}
	}
	*(dest[6].(*time.Time)) = row[6].(time.Time)
	return nil
}

func (f *fakeRows) Err() error { return nil }

func TestScanResolvesDefaultsAtBoundary(t *testing.T) {
	sydney, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)
	date := time.Date(2025, 3, 10, 20, 0, 0, 0, sydney)

	rows := &fakeRows{rows: [][]any{
		{int64(1), "Cadbury", "Dairy Milk", "https://img/1.png", "4.50", "6.00", date},
		{int64(2), nil, nil, nil, nil, nil, date},
	}}

	out, err := scanPriceChanges(rows)
	require.NoError(t, err)
	require.Len(t, out, 2)

	full := out[0]
	require.Equal(t, "Cadbury", full.ItemBrand)
	require.True(t, full.PriceBefore.Equal(decimal.RequireFromString("4.50")))
	require.True(t, full.PriceAfter.Equal(decimal.NewFromInt(6)))
	require.Equal(t, time.UTC, full.Date.Location(), "dates are normalised to UTC")

	sparse := out[1]
	require.Equal(t, UnknownValue, sparse.ItemBrand)
	require.Equal(t, UnknownValue, sparse.ItemName)
	require.Empty(t, sparse.ImageURL)
	require.True(t, sparse.PriceBefore.IsZero())
	require.True(t, sparse.PriceAfter.IsZero())
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{User: "coles", Password: "p@ss word", Host: "db.local", Port: "5432", Name: "coles"}
	dsn := cfg.DSN()
	require.Contains(t, dsn, "postgres://")
	require.Contains(t, dsn, "p%40ss%20word")
	require.Contains(t, dsn, "db.local:5432/coles")
	require.Contains(t, dsn, "sslmode=disable")

	cfg.URL = "postgres://u:p@elsewhere/other"
	require.Equal(t, "postgres://u:p@elsewhere/other", cfg.DSN())
}
