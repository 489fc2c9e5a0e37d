package store

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const mysqlTLSConfigName = "pos-ca"

// Credentials describe how to reach the database. Path is used by SQLite
// only; SSLCA enables TLS verified against the given CA bundle.
type Credentials struct {
	Dialect  Dialect
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLCA    string
	Path     string
}

// Open connects, pings and returns a ready SQLStore.
func Open(ctx context.Context, cred Credentials) (*SQLStore, error) {
	dsn, err := cred.dsn()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cred.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cred.Dialect == SQLite {
		// one writer at a time; concurrent writers would hit SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	return &SQLStore{DB: db, Dialect: cred.Dialect}, nil
}

func (c Credentials) dsn() (string, error) {
	switch c.Dialect {
	case MySQL:
		return c.mysqlDSN()
	case Postgres:
		return c.postgresDSN(), nil
	case SQLite:
		return c.sqliteDSN(), nil
	}
	return "", fmt.Errorf("unsupported database driver %q", c.Dialect)
}

func (c Credentials) mysqlDSN() (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	cfg.Loc = time.Local

	if c.SSLCA != "" {
		pem, err := os.ReadFile(c.SSLCA)
		if err != nil {
			return "", fmt.Errorf("read ssl ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return "", fmt.Errorf("ssl ca %s: no certificates found", c.SSLCA)
		}
		if err := mysql.RegisterTLSConfig(mysqlTLSConfigName, &tls.Config{
			RootCAs:    pool,
			ServerName: c.Host,
			MinVersion: tls.VersionTLS12,
		}); err != nil {
			return "", fmt.Errorf("register tls config: %w", err)
		}
		cfg.TLSConfig = mysqlTLSConfigName
	}
	return cfg.FormatDSN(), nil
}

func (c Credentials) postgresDSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName)
	if c.SSLCA != "" {
		return dsn + " sslmode=verify-full sslrootcert=" + c.SSLCA
	}
	return dsn + " sslmode=disable"
}

func (c Credentials) sqliteDSN() string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + c.Path + "?" + q.Encode()
}
