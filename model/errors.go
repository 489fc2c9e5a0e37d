package models

import (
	"errors"
	"fmt"
	"math"
)

// MaxAmount bounds prices, quantities and totals to the INT columns that
// store them.
const MaxAmount = math.MaxInt32

var (
	ErrEmptyCart           = errors.New("Cart is empty")
	ErrProductNotFound     = errors.New("product not found")
	ErrPriceMismatch       = errors.New("price does not match catalog")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAmountOutOfRange    = errors.New("amount out of range")
)

// ProductNotFoundError reports a product code missing from the catalog.
// It matches ErrProductNotFound with errors.Is.
type ProductNotFoundError struct {
	Code string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product %s not found in master", e.Code)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrProductNotFound }

// PriceMismatchError is returned when price verification is enabled and a
// submitted line disagrees with the catalog.
type PriceMismatchError struct {
	Code      string
	Submitted int64
	Catalog   int64
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("Price of product %s is %d, submitted %d", e.Code, e.Catalog, e.Submitted)
}

func (e *PriceMismatchError) Is(target error) bool { return target == ErrPriceMismatch }

// StoreError wraps a database connectivity, query or constraint failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("Database error: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
