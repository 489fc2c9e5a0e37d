package cart

import (
	"context"
	"maps"
	"sync"

	models "pos-backend/model"
)

// Memory is a process-local Store.
type Memory struct {
	// Keys are session -> *sessionCart
	sessions sync.Map
}

type sessionCart struct {
	mu    sync.Mutex
	lines models.Cart
}

func NewMemory() *Memory {
	return &Memory{}
}

// lockSession acquires the per-session lock. Returns the cart and the unlock func.
func (m *Memory) lockSession(session string) (*sessionCart, func()) {
	v, _ := m.sessions.LoadOrStore(session, &sessionCart{lines: models.Cart{}})
	sc := v.(*sessionCart)
	sc.mu.Lock()
	return sc, sc.mu.Unlock
}

func (m *Memory) Add(_ context.Context, session string, line models.CartLine) (models.Cart, error) {
	if line.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	sc, unlock := m.lockSession(session)
	defer unlock()

	if cur, ok := sc.lines[line.Code]; ok {
		cur.Quantity += line.Quantity
		sc.lines[line.Code] = cur
	} else {
		sc.lines[line.Code] = line
	}
	return maps.Clone(sc.lines), nil
}

func (m *Memory) Get(_ context.Context, session string) (models.Cart, error) {
	v, ok := m.sessions.Load(session)
	if !ok {
		return models.Cart{}, nil
	}
	sc := v.(*sessionCart)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return maps.Clone(sc.lines), nil
}

func (m *Memory) Clear(_ context.Context, session string) error {
	v, ok := m.sessions.Load(session)
	if !ok {
		return nil
	}
	sc := v.(*sessionCart)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.lines = models.Cart{}
	return nil
}
