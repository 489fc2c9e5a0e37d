package service

import (
	"context"

	models "pos-backend/model"
)

type ServiceInterface interface {
	GetProduct(ctx context.Context, code string) (models.Product, error)

	NewCartSession() string
	AddToCart(ctx context.Context, session string, line models.CartLine) (models.Cart, error)
	GetCart(ctx context.Context, session string) (models.Cart, error)

	Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error)
	GetTransaction(ctx context.Context, id int64) (models.Transaction, error)
}
