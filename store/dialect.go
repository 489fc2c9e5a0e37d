package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the database driver and its SQL quirks.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(s)); d {
	case MySQL, Postgres, SQLite:
		return d, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

// driverName is the name registered with database/sql.
func (d Dialect) driverName() string {
	return string(d)
}

// returning reports whether inserts can hand back generated keys with
// RETURNING. lib/pq does not implement LastInsertId.
func (d Dialect) returning() bool {
	return d == Postgres
}

// rebind rewrites ? placeholders into the dialect's bind syntax.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
