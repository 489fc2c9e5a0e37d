package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "pos-backend/model"
)

// openSQLite returns a migrated SQLite store seeded with two products.
func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, Credentials{Dialect: SQLite, Path: filepath.Join(t.TempDir(), "pos.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.RunMigrations())
	// second run is a no-op
	require.NoError(t, s.RunMigrations())

	_, err = s.DB.ExecContext(ctx, `INSERT INTO products (code, name, price) VALUES ('A1', 'Pen', 100), ('B2', 'Book', 500)`)
	require.NoError(t, err)
	return s
}

func countRows(t *testing.T, s *SQLStore, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestSQLite_GetProduct(t *testing.T) {
	s := openSQLite(t)

	p, err := s.GetProduct(context.Background(), "B2")
	require.NoError(t, err)
	assert.Equal(t, "Book", p.Name)
	assert.Equal(t, int64(500), p.Price)
	assert.NotZero(t, p.ID)

	_, err = s.GetProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestSQLite_PurchaseRoundTrip(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	hdr := TransactionRow{
		DateTime: time.Now().UTC().Truncate(time.Second),
		EmpCD:    "E001",
		StoreCD:  "30",
		PosNo:    sql.NullString{String: "90", Valid: true},
		Total:    700,
	}
	lines := []models.CartLine{
		{Code: "A1", Name: "Pen", Price: 100, Quantity: 2},
		{Code: "B2", Name: "Book", Price: 500, Quantity: 1},
	}

	tr, details, err := s.Purchase(ctx, hdr, lines, PurchaseOptions{})
	require.NoError(t, err)
	require.NotZero(t, tr.ID)
	require.Len(t, details, 2)

	got, stored, err := s.GetTransaction(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), got.Total)
	assert.Equal(t, "90", got.PosNo.String)
	require.Len(t, stored, 2)

	var sum int64
	for i, d := range stored {
		assert.Equal(t, i+1, d.DetailID)
		assert.Equal(t, lines[i].Code, d.Code)
		sum += d.Price * int64(d.Quantity)
	}
	assert.Equal(t, got.Total, sum)
}

func TestSQLite_UnknownProductLeavesNoRows(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	lines := []models.CartLine{
		{Code: "A1", Name: "Pen", Price: 100, Quantity: 1},
		{Code: "ZZ", Name: "Ghost", Price: 1, Quantity: 1},
	}
	_, _, err := s.Purchase(ctx, TransactionRow{DateTime: time.Now(), EmpCD: "E", StoreCD: "30", Total: 101}, lines, PurchaseOptions{})
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	assert.Equal(t, 0, countRows(t, s, "transactions"))
	assert.Equal(t, 0, countRows(t, s, "transaction_details"))
}

func TestSQLite_GetTransactionMissing(t *testing.T) {
	s := openSQLite(t)

	_, _, err := s.GetTransaction(context.Background(), 999)
	assert.True(t, errors.Is(err, models.ErrTransactionNotFound))
}
