package events

import (
	"context"
	"time"

	models "pos-backend/model"
)

// PurchaseCompleted is emitted after a purchase commits.
type PurchaseCompleted struct {
	TransactionID int64             `json:"transaction_id"`
	EmpCD         string            `json:"emp_cd"`
	StoreCD       string            `json:"store_cd"`
	PosNo         string            `json:"pos_no,omitempty"`
	TotalPrice    int64             `json:"total_price"`
	Lines         []models.CartLine `json:"lines"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// Publisher delivers purchase events. Callers treat failures as
// non-fatal: the purchase is already committed.
type Publisher interface {
	PublishPurchase(ctx context.Context, ev PurchaseCompleted) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishPurchase(context.Context, PurchaseCompleted) error { return nil }
func (Nop) Close() error                                              { return nil }
