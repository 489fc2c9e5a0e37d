package cart

import (
	"context"
	"errors"

	models "pos-backend/model"
)

// DefaultSession is used when a caller does not name a cart session. A
// client that never sends a session id shares this single cart.
const DefaultSession = "default"

var ErrInvalidQuantity = errors.New("quantity must be > 0")

// Store keeps pending cart lines per session. Add accumulates the quantity
// of an existing code and keeps its original name and price.
type Store interface {
	Add(ctx context.Context, session string, line models.CartLine) (models.Cart, error)
	Get(ctx context.Context, session string) (models.Cart, error)
	Clear(ctx context.Context, session string) error
}
