package store

import (
	"context"

	models "pos-backend/model"
)

// GET  /product/{code}   - catalog lookup
// POST /purchase         - transaction header + details in one tx
// GET  /transaction/{id} - receipt read-back

type Store interface {
	GetProduct(ctx context.Context, code string) (ProductRow, error)

	Purchase(ctx context.Context, hdr TransactionRow, lines []models.CartLine, opts PurchaseOptions) (TransactionRow, []DetailRow, error)
	GetTransaction(ctx context.Context, id int64) (TransactionRow, []DetailRow, error)

	Close() error
}

type PurchaseOptions struct {
	// VerifyPrices rejects lines whose price differs from the catalog.
	VerifyPrices bool
}
