package store

import (
	"context"
	"database/sql"
	"errors"

	models "pos-backend/model"
)

const (
	selectProductSQL      = `SELECT prd_id, code, name, price FROM products WHERE code = ?`
	selectProductPriceSQL = `SELECT prd_id, price FROM products WHERE code = ?`
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetProduct returns the catalog row for code.
func (s *SQLStore) GetProduct(ctx context.Context, code string) (ProductRow, error) {
	var p ProductRow
	err := s.DB.QueryRowContext(ctx, s.Dialect.rebind(selectProductSQL), code).
		Scan(&p.ID, &p.Code, &p.Name, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return ProductRow{}, &models.ProductNotFoundError{Code: code}
	}
	if err != nil {
		return ProductRow{}, err
	}
	return p, nil
}

// lookupProduct reads the id and current price of code inside q.
func (s *SQLStore) lookupProduct(ctx context.Context, q queryer, code string) (ProductRow, error) {
	p := ProductRow{Code: code}
	err := q.QueryRowContext(ctx, s.Dialect.rebind(selectProductPriceSQL), code).Scan(&p.ID, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return ProductRow{}, &models.ProductNotFoundError{Code: code}
	}
	if err != nil {
		return ProductRow{}, err
	}
	return p, nil
}
