package models

import "time"

// Transaction is a committed purchase header.
type Transaction struct {
	ID       int64               `json:"trd_id"`
	DateTime time.Time           `json:"datetime"`
	EmpCD    string              `json:"emp_cd"`
	StoreCD  string              `json:"store_cd"`
	PosNo    *string             `json:"pos_no"`
	Total    int64               `json:"total_amt"`
	Details  []TransactionDetail `json:"details,omitempty"`
}

// TransactionDetail is one purchased line. Code, Name and Price are the
// values submitted at sale time, not the current catalog values.
type TransactionDetail struct {
	TransactionID int64  `json:"trd_id"`
	DetailID      int    `json:"dtl_id"`
	ProductID     int64  `json:"prd_id"`
	Code          string `json:"prd_code"`
	Name          string `json:"prd_name"`
	Price         int64  `json:"prd_price"`
	Quantity      int    `json:"quantity"`
}
