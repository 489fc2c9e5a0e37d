package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	models "pos-backend/model"
)

// ProductRow, TransactionRow etc are simple structs representing DB rows
type ProductRow struct {
	ID    int64
	Code  string
	Name  string
	Price int64
}

type TransactionRow struct {
	ID       int64
	DateTime time.Time
	EmpCD    string
	StoreCD  string
	PosNo    sql.NullString
	Total    int64
}

type DetailRow struct {
	TransactionID int64
	DetailID      int
	ProductID     int64
	Code          string
	Name          string
	Price         int64
	Quantity      int
}

const (
	insertTransactionSQL = `INSERT INTO transactions (datetime, emp_cd, store_cd, pos_no, total_amt) VALUES (?, ?, ?, ?, ?)`
	insertDetailSQL      = `INSERT INTO transaction_details (trd_id, dtl_id, prd_id, prd_code, prd_name, prd_price, quantity) VALUES (?, ?, ?, ?, ?, ?, ?)`
	selectTransactionSQL = `SELECT trd_id, datetime, emp_cd, store_cd, pos_no, total_amt FROM transactions WHERE trd_id = ?`
	selectDetailsSQL     = `SELECT trd_id, dtl_id, prd_id, prd_code, prd_name, prd_price, quantity FROM transaction_details WHERE trd_id = ? ORDER BY dtl_id`
)

// SQLStore is a Store backed by any of the supported SQL dialects.
type SQLStore struct {
	DB      *sql.DB
	Dialect Dialect
}

func (s *SQLStore) Close() error { return s.DB.Close() }

// Purchase writes the transaction header and one detail row per line inside
// a single database transaction. Lines are numbered from 1 in the order
// given. Any failure rolls the whole transaction back.
func (s *SQLStore) Purchase(ctx context.Context, hdr TransactionRow, lines []models.CartLine, opts PurchaseOptions) (TransactionRow, []DetailRow, error) {
	if len(lines) == 0 {
		return TransactionRow{}, nil, models.ErrEmptyCart
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return TransactionRow{}, nil, err
	}
	// ensure rollback on any early return; no-op once committed
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()

	id, err := s.insertTransaction(ctx, tx, hdr)
	if err != nil {
		return TransactionRow{}, nil, err
	}

	details := make([]DetailRow, 0, len(lines))
	for i, l := range lines {
		p, err := s.lookupProduct(ctx, tx, l.Code)
		if err != nil {
			return TransactionRow{}, nil, err
		}
		if opts.VerifyPrices && p.Price != l.Price {
			return TransactionRow{}, nil, &models.PriceMismatchError{Code: l.Code, Submitted: l.Price, Catalog: p.Price}
		}
		details = append(details, DetailRow{
			TransactionID: id,
			DetailID:      i + 1,
			ProductID:     p.ID,
			Code:          l.Code,
			Name:          l.Name,
			Price:         l.Price,
			Quantity:      l.Quantity,
		})
	}

	stmt, err := tx.PrepareContext(ctx, s.Dialect.rebind(insertDetailSQL))
	if err != nil {
		return TransactionRow{}, nil, err
	}
	defer stmt.Close()

	for _, d := range details {
		if _, err := stmt.ExecContext(ctx, d.TransactionID, d.DetailID, d.ProductID, d.Code, d.Name, d.Price, d.Quantity); err != nil {
			return TransactionRow{}, nil, err
		}
	}

	err = tx.Commit()
	done = true
	if err != nil {
		return TransactionRow{}, nil, err
	}

	hdr.ID = id
	return hdr, details, nil
}

func (s *SQLStore) insertTransaction(ctx context.Context, tx *sql.Tx, hdr TransactionRow) (int64, error) {
	args := []any{hdr.DateTime, hdr.EmpCD, hdr.StoreCD, hdr.PosNo, hdr.Total}

	if s.Dialect.returning() {
		var id int64
		err := tx.QueryRowContext(ctx, s.Dialect.rebind(insertTransactionSQL+` RETURNING trd_id`), args...).Scan(&id)
		return id, err
	}

	res, err := tx.ExecContext(ctx, s.Dialect.rebind(insertTransactionSQL), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetTransaction returns a committed transaction and its details ordered by
// line number.
func (s *SQLStore) GetTransaction(ctx context.Context, id int64) (TransactionRow, []DetailRow, error) {
	var tr TransactionRow
	err := s.DB.QueryRowContext(ctx, s.Dialect.rebind(selectTransactionSQL), id).
		Scan(&tr.ID, &tr.DateTime, &tr.EmpCD, &tr.StoreCD, &tr.PosNo, &tr.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return TransactionRow{}, nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return TransactionRow{}, nil, err
	}

	rows, err := s.DB.QueryContext(ctx, s.Dialect.rebind(selectDetailsSQL), id)
	if err != nil {
		return TransactionRow{}, nil, err
	}
	defer rows.Close()

	out := []DetailRow{}
	for rows.Next() {
		var d DetailRow
		if err := rows.Scan(&d.TransactionID, &d.DetailID, &d.ProductID, &d.Code, &d.Name, &d.Price, &d.Quantity); err != nil {
			return TransactionRow{}, nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return TransactionRow{}, nil, err
	}
	return tr, out, nil
}
