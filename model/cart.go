package models

// CartLine is a pending purchase line. Quantity defaults to 1.
type CartLine struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// Subtotal is Price × Quantity.
func (l CartLine) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

// Cart maps product code to its accumulated line.
type Cart map[string]CartLine

// Total sums the subtotals of every line.
func (c Cart) Total() int64 {
	var total int64
	for _, l := range c {
		total += l.Subtotal()
	}
	return total
}
