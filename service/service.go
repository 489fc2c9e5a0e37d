package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"pos-backend/cart"
	"pos-backend/events"
	models "pos-backend/model"
	"pos-backend/store"
)

const (
	DefaultEmpCD   = "9999999999"
	DefaultStoreCD = "30"

	publishTimeout = 5 * time.Second
	lookupTimeout  = 5 * time.Second
)

type Service struct {
	store        store.Store
	carts        cart.Store
	events       events.Publisher
	log          *slog.Logger
	now          func() time.Time
	verifyPrices bool

	// collapses concurrent lookups of the same product code
	lookups singleflight.Group
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.events = p } }

// WithPriceVerification makes Purchase reject lines whose submitted price
// differs from the catalog price.
func WithPriceVerification(on bool) Option { return func(s *Service) { s.verifyPrices = on } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(st store.Store, carts cart.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		carts:  carts,
		events: events.Nop{},
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetProduct collapses concurrent lookups of the same code into one query.
// The shared query runs detached from any single caller's context; each
// caller still returns as soon as its own ctx is done.
func (s *Service) GetProduct(ctx context.Context, code string) (models.Product, error) {
	ch := s.lookups.DoChan(code, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return s.store.GetProduct(lctx, code)
	})

	select {
	case <-ctx.Done():
		return models.Product{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.Product{}, wrapStore("get product", res.Err)
		}
		p := res.Val.(store.ProductRow)
		return models.Product{ID: p.ID, Code: p.Code, Name: p.Name, Price: p.Price}, nil
	}
}

func (s *Service) NewCartSession() string {
	return uuid.NewString()
}

func (s *Service) AddToCart(ctx context.Context, session string, line models.CartLine) (models.Cart, error) {
	line, err := normalizeLine(line)
	if err != nil {
		return nil, err
	}
	c, err := s.carts.Add(ctx, sessionOrDefault(session), line)
	if err != nil {
		return nil, wrapStore("add to cart", err)
	}
	return c, nil
}

func (s *Service) GetCart(ctx context.Context, session string) (models.Cart, error) {
	c, err := s.carts.Get(ctx, sessionOrDefault(session))
	if err != nil {
		return nil, wrapStore("get cart", err)
	}
	return c, nil
}

// Purchase commits the submitted lines as one transaction. The cart session
// is cleared only after a successful commit; on any failure the database and
// the cart are left as they were.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	if len(req.Lines) == 0 {
		s.log.WarnContext(ctx, "purchase rejected", "reason", models.ErrEmptyCart.Error())
		return PurchaseResult{}, models.ErrEmptyCart
	}

	lines := make([]models.CartLine, 0, len(req.Lines))
	var total int64
	for _, l := range req.Lines {
		l, err := normalizeLine(l)
		if err != nil {
			return PurchaseResult{}, err
		}
		lines = append(lines, l)
		// each subtotal is at most MaxAmount², so neither step can overflow int64
		total += l.Subtotal()
		if total > models.MaxAmount {
			return PurchaseResult{}, fmt.Errorf("%w: total exceeds %d", models.ErrAmountOutOfRange, models.MaxAmount)
		}
	}

	hdr := store.TransactionRow{
		DateTime: s.now(),
		EmpCD:    req.EmpCD,
		StoreCD:  req.StoreCD,
		PosNo:    sql.NullString{String: req.PosNo, Valid: req.PosNo != ""},
		Total:    total,
	}
	if hdr.EmpCD == "" {
		hdr.EmpCD = DefaultEmpCD
	}
	if hdr.StoreCD == "" {
		hdr.StoreCD = DefaultStoreCD
	}

	log := s.log.With("emp_cd", hdr.EmpCD, "store_cd", hdr.StoreCD, "pos_no", req.PosNo)
	log.InfoContext(ctx, "purchase started", "lines", len(lines), "total_price", total)

	tr, details, err := s.store.Purchase(ctx, hdr, lines, store.PurchaseOptions{VerifyPrices: s.verifyPrices})
	if err != nil {
		log.WarnContext(ctx, "purchase rolled back", "error", err)
		return PurchaseResult{}, wrapStore("purchase", err)
	}
	log.InfoContext(ctx, "purchase committed", "transaction_id", tr.ID, "details", len(details), "total_price", tr.Total)

	// The purchase is durable at this point; a cart that fails to clear is
	// logged rather than reported so the client does not retry and pay twice.
	session := sessionOrDefault(req.Session)
	if err := s.carts.Clear(ctx, session); err != nil {
		log.ErrorContext(ctx, "cart clear failed", "session", session, "error", err)
	}

	s.publish(ctx, tr, lines)

	return PurchaseResult{TransactionID: tr.ID, TotalPrice: tr.Total}, nil
}

func (s *Service) publish(ctx context.Context, tr store.TransactionRow, lines []models.CartLine) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ev := events.PurchaseCompleted{
		TransactionID: tr.ID,
		EmpCD:         tr.EmpCD,
		StoreCD:       tr.StoreCD,
		PosNo:         tr.PosNo.String,
		TotalPrice:    tr.Total,
		Lines:         lines,
		OccurredAt:    tr.DateTime,
	}
	if err := s.events.PublishPurchase(pctx, ev); err != nil {
		s.log.ErrorContext(ctx, "purchase event not published", "transaction_id", tr.ID, "error", err)
	}
}

func (s *Service) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	tr, rows, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return models.Transaction{}, wrapStore("get transaction", err)
	}
	out := models.Transaction{
		ID:       tr.ID,
		DateTime: tr.DateTime,
		EmpCD:    tr.EmpCD,
		StoreCD:  tr.StoreCD,
		Total:    tr.Total,
		Details:  make([]models.TransactionDetail, 0, len(rows)),
	}
	if tr.PosNo.Valid {
		posNo := tr.PosNo.String
		out.PosNo = &posNo
	}
	for _, r := range rows {
		out.Details = append(out.Details, models.TransactionDetail{
			TransactionID: r.TransactionID,
			DetailID:      r.DetailID,
			ProductID:     r.ProductID,
			Code:          r.Code,
			Name:          r.Name,
			Price:         r.Price,
			Quantity:      r.Quantity,
		})
	}
	return out, nil
}

// normalizeLine treats a zero Quantity as unset and applies the default of
// 1. Callers that can tell an explicit 0 from an absent field (the HTTP
// layer) reject the explicit 0 before it gets here.
func normalizeLine(l models.CartLine) (models.CartLine, error) {
	if l.Quantity == 0 {
		l.Quantity = 1
	}
	if l.Quantity < 0 {
		return l, cart.ErrInvalidQuantity
	}
	if l.Price < 0 || l.Price > models.MaxAmount || l.Quantity > models.MaxAmount {
		return l, fmt.Errorf("%w: %s price and quantity must be within 0..%d", models.ErrAmountOutOfRange, l.Code, models.MaxAmount)
	}
	return l, nil
}

func sessionOrDefault(session string) string {
	if session == "" {
		return cart.DefaultSession
	}
	return session
}

// wrapStore passes domain errors through and wraps everything else as a
// StoreError.
func wrapStore(op string, err error) error {
	switch {
	case errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrPriceMismatch),
		errors.Is(err, models.ErrTransactionNotFound),
		errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrAmountOutOfRange),
		errors.Is(err, cart.ErrInvalidQuantity):
		return err
	}
	return &models.StoreError{Op: op, Err: err}
}

type PurchaseRequest struct {
	EmpCD   string
	StoreCD string
	PosNo   string
	Lines   []models.CartLine
	// Session is the cart to clear after commit.
	Session string
}

type PurchaseResult struct {
	TransactionID int64 `json:"transaction_id"`
	TotalPrice    int64 `json:"total_price"`
}
