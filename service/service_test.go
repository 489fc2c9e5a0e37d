package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-backend/cart"
	"pos-backend/events"
	models "pos-backend/model"
	"pos-backend/store"
)

// ---- fakeStore implementing store.Store for tests ----
type fakeStore struct {
	GetProductFn     func(ctx context.Context, code string) (store.ProductRow, error)
	PurchaseFn       func(ctx context.Context, hdr store.TransactionRow, lines []models.CartLine, opts store.PurchaseOptions) (store.TransactionRow, []store.DetailRow, error)
	GetTransactionFn func(ctx context.Context, id int64) (store.TransactionRow, []store.DetailRow, error)
}

func (f *fakeStore) GetProduct(ctx context.Context, code string) (store.ProductRow, error) {
	return f.GetProductFn(ctx, code)
}
func (f *fakeStore) Purchase(ctx context.Context, hdr store.TransactionRow, lines []models.CartLine, opts store.PurchaseOptions) (store.TransactionRow, []store.DetailRow, error) {
	return f.PurchaseFn(ctx, hdr, lines, opts)
}
func (f *fakeStore) GetTransaction(ctx context.Context, id int64) (store.TransactionRow, []store.DetailRow, error) {
	return f.GetTransactionFn(ctx, id)
}
func (f *fakeStore) Close() error { return nil }

// ---- fakeCart wraps a Memory cart and can fail on Clear ----
type fakeCart struct {
	*cart.Memory
	clearErr error
}

func (f *fakeCart) Clear(ctx context.Context, session string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.Memory.Clear(ctx, session)
}

type recordingPublisher struct {
	events []events.PurchaseCompleted
	err    error
}

func (r *recordingPublisher) PublishPurchase(_ context.Context, ev events.PurchaseCompleted) error {
	r.events = append(r.events, ev)
	return r.err
}
func (r *recordingPublisher) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func examplePurchase() PurchaseRequest {
	return PurchaseRequest{
		EmpCD: "E001",
		Lines: []models.CartLine{
			{Code: "A1", Name: "Pen", Price: 100, Quantity: 2},
			{Code: "B2", Name: "Book", Price: 500, Quantity: 1},
		},
	}
}

// ---- Tests ----

func TestGetProduct_MapsRowAndErrors(t *testing.T) {
	svc := NewService(&fakeStore{
		GetProductFn: func(_ context.Context, code string) (store.ProductRow, error) {
			switch code {
			case "A1":
				return store.ProductRow{ID: 1, Code: "A1", Name: "Pen", Price: 100}, nil
			case "down":
				return store.ProductRow{}, errors.New("connection refused")
			}
			return store.ProductRow{}, &models.ProductNotFoundError{Code: code}
		},
	}, cart.NewMemory(), WithLogger(quietLogger()))

	p, err := svc.GetProduct(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, models.Product{ID: 1, Code: "A1", Name: "Pen", Price: 100}, p)

	_, err = svc.GetProduct(context.Background(), "ZZ")
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	_, err = svc.GetProduct(context.Background(), "down")
	var se *models.StoreError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Error(), "connection refused")
}

func TestGetProduct_CancelledCallerDoesNotFailSharedLookup(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	svc := NewService(&fakeStore{
		GetProductFn: func(ctx context.Context, code string) (store.ProductRow, error) {
			once.Do(func() { close(started) })
			select {
			case <-release:
				return store.ProductRow{ID: 1, Code: code, Name: "Pen", Price: 100}, nil
			case <-ctx.Done():
				return store.ProductRow{}, ctx.Err()
			}
		},
	}, cart.NewMemory(), WithLogger(quietLogger()))

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.GetProduct(ctxA, "A1")
		errA <- err
	}()
	<-started

	type result struct {
		p   models.Product
		err error
	}
	resB := make(chan result, 1)
	go func() {
		p, err := svc.GetProduct(context.Background(), "A1")
		resB <- result{p, err}
	}()
	// give the second caller time to join the in-flight lookup
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "Pen", b.p.Name)
}

func TestAddToCart_DefaultQuantityAndSession(t *testing.T) {
	carts := cart.NewMemory()
	svc := NewService(&fakeStore{}, carts, WithLogger(quietLogger()))
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, "", models.CartLine{Code: "A1", Name: "Pen", Price: 100})
	require.NoError(t, err)
	c, err := svc.AddToCart(ctx, "", models.CartLine{Code: "A1", Name: "Pen", Price: 100, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, c["A1"].Quantity)

	shared, _ := carts.Get(ctx, cart.DefaultSession)
	assert.Equal(t, 4, shared["A1"].Quantity)

	_, err = svc.AddToCart(ctx, "", models.CartLine{Code: "A1", Quantity: -1})
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
}

func TestNewCartSession_Unique(t *testing.T) {
	svc := NewService(&fakeStore{}, cart.NewMemory())
	a, b := svc.NewCartSession(), svc.NewCartSession()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestPurchase_EmptyCartNeverTouchesStore(t *testing.T) {
	called := false
	svc := NewService(&fakeStore{
		PurchaseFn: func(context.Context, store.TransactionRow, []models.CartLine, store.PurchaseOptions) (store.TransactionRow, []store.DetailRow, error) {
			called = true
			return store.TransactionRow{}, nil, nil
		},
	}, cart.NewMemory(), WithLogger(quietLogger()))

	_, err := svc.Purchase(context.Background(), PurchaseRequest{EmpCD: "E001"})
	assert.ErrorIs(t, err, models.ErrEmptyCart)
	assert.False(t, called)
}

func TestPurchase_AmountOutOfRange(t *testing.T) {
	called := false
	svc := NewService(&fakeStore{
		PurchaseFn: func(_ context.Context, hdr store.TransactionRow, _ []models.CartLine, _ store.PurchaseOptions) (store.TransactionRow, []store.DetailRow, error) {
			called = true
			hdr.ID = 1
			return hdr, nil, nil
		},
	}, cart.NewMemory(), WithLogger(quietLogger()))

	tests := []struct {
		name  string
		lines []models.CartLine
	}{
		{"price wraps int64", []models.CartLine{{Code: "A1", Name: "Pen", Price: 1 << 62, Quantity: 2}}},
		{"quantity too large", []models.CartLine{{Code: "A1", Name: "Pen", Price: 1, Quantity: models.MaxAmount + 1}}},
		{"total too large", []models.CartLine{
			{Code: "A1", Name: "Pen", Price: models.MaxAmount, Quantity: 1},
			{Code: "B2", Name: "Book", Price: 1, Quantity: 1},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Purchase(context.Background(), PurchaseRequest{EmpCD: "E001", Lines: tt.lines})
			assert.ErrorIs(t, err, models.ErrAmountOutOfRange)
		})
	}
	assert.False(t, called)

	res, err := svc.Purchase(context.Background(), PurchaseRequest{
		Lines: []models.CartLine{{Code: "A1", Name: "Pen", Price: models.MaxAmount, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(models.MaxAmount), res.TotalPrice)
}

func TestPurchase_DefaultsAndTotal(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	var gotHdr store.TransactionRow
	var gotOpts store.PurchaseOptions
	pub := &recordingPublisher{}

	svc := NewService(&fakeStore{
		PurchaseFn: func(_ context.Context, hdr store.TransactionRow, lines []models.CartLine, opts store.PurchaseOptions) (store.TransactionRow, []store.DetailRow, error) {
			gotHdr, gotOpts = hdr, opts
			hdr.ID = 77
			return hdr, make([]store.DetailRow, len(lines)), nil
		},
	}, cart.NewMemory(),
		WithLogger(quietLogger()),
		WithClock(func() time.Time { return fixed }),
		WithPublisher(pub),
		WithPriceVerification(true),
	)

	req := examplePurchase()
	req.EmpCD = ""
	res, err := svc.Purchase(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(77), res.TransactionID)
	assert.Equal(t, int64(700), res.TotalPrice)
	assert.Equal(t, DefaultEmpCD, gotHdr.EmpCD)
	assert.Equal(t, DefaultStoreCD, gotHdr.StoreCD)
	assert.False(t, gotHdr.PosNo.Valid)
	assert.Equal(t, fixed, gotHdr.DateTime)
	assert.True(t, gotOpts.VerifyPrices)

	require.Len(t, pub.events, 1)
	assert.Equal(t, int64(77), pub.events[0].TransactionID)
	assert.Equal(t, int64(700), pub.events[0].TotalPrice)
}

func TestPurchase_StoreFailureKeepsCart(t *testing.T) {
	carts := cart.NewMemory()
	ctx := context.Background()
	_, _ = carts.Add(ctx, cart.DefaultSession, models.CartLine{Code: "A1", Name: "Pen", Price: 100, Quantity: 2})

	svc := NewService(&fakeStore{
		PurchaseFn: func(context.Context, store.TransactionRow, []models.CartLine, store.PurchaseOptions) (store.TransactionRow, []store.DetailRow, error) {
			return store.TransactionRow{}, nil, errors.New("deadlock found")
		},
	}, carts, WithLogger(quietLogger()))

	_, err := svc.Purchase(ctx, examplePurchase())
	var se *models.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "purchase", se.Op)

	c, _ := carts.Get(ctx, cart.DefaultSession)
	assert.Equal(t, 2, c["A1"].Quantity)
}

func TestPurchase_CartClearFailureStillSucceeds(t *testing.T) {
	carts := &fakeCart{Memory: cart.NewMemory(), clearErr: errors.New("redis down")}
	svc := NewService(&fakeStore{
		PurchaseFn: func(_ context.Context, hdr store.TransactionRow, _ []models.CartLine, _ store.PurchaseOptions) (store.TransactionRow, []store.DetailRow, error) {
			hdr.ID = 5
			return hdr, nil, nil
		},
	}, carts, WithLogger(quietLogger()))

	res, err := svc.Purchase(context.Background(), examplePurchase())
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.TransactionID)
}

func TestPurchase_PublishFailureIsNotFatal(t *testing.T) {
	svc := NewService(&fakeStore{
		PurchaseFn: func(_ context.Context, hdr store.TransactionRow, _ []models.CartLine, _ store.PurchaseOptions) (store.TransactionRow, []store.DetailRow, error) {
			hdr.ID = 6
			return hdr, nil, nil
		},
	}, cart.NewMemory(), WithLogger(quietLogger()), WithPublisher(&recordingPublisher{err: errors.New("no brokers")}))

	_, err := svc.Purchase(context.Background(), examplePurchase())
	assert.NoError(t, err)
}

func TestGetTransaction_Mapping(t *testing.T) {
	svc := NewService(&fakeStore{
		GetTransactionFn: func(_ context.Context, id int64) (store.TransactionRow, []store.DetailRow, error) {
			if id != 3 {
				return store.TransactionRow{}, nil, models.ErrTransactionNotFound
			}
			return store.TransactionRow{ID: 3, EmpCD: "E", StoreCD: "30", PosNo: sql.NullString{String: "90", Valid: true}, Total: 200},
				[]store.DetailRow{{TransactionID: 3, DetailID: 1, ProductID: 1, Code: "A1", Name: "Pen", Price: 100, Quantity: 2}},
				nil
		},
	}, cart.NewMemory())

	tr, err := svc.GetTransaction(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, tr.PosNo)
	assert.Equal(t, "90", *tr.PosNo)
	require.Len(t, tr.Details, 1)
	assert.Equal(t, "Pen", tr.Details[0].Name)

	_, err = svc.GetTransaction(context.Background(), 4)
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
}
