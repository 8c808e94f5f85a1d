// Package history records fetched quotes in Postgres and reads them back
// for the history endpoint.
package history

import (
	"context"
	"fmt"
	"strings"

	"chonkprice/internal/provider"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS price_history (
		id          BIGSERIAL PRIMARY KEY,
		symbol      TEXT NOT NULL,
		price       DOUBLE PRECISION NOT NULL,
		currency    TEXT NOT NULL,
		source      TEXT NOT NULL,
		received_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS price_history_symbol_received_at_idx
		ON price_history (symbol, received_at DESC)`,
}

type Store struct {
	db  DB
	log logrus.FieldLogger
}

func NewStore(db DB, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{db: db, log: log}
}

// Connect opens a pool for dsn and checks it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the price_history table and its index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Save inserts quotes in a single statement.
func (s *Store) Save(ctx context.Context, quotes []provider.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("INSERT INTO price_history (symbol, price, currency, source, received_at) VALUES ")
	args := make([]any, 0, len(quotes)*5)
	for i, q := range quotes {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * 5
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, q.Symbol, q.Price, q.Currency, q.Source, q.ReceivedAt)
	}

	if _, err := s.db.Exec(ctx, b.String(), args...); err != nil {
		s.log.WithError(err).WithField("quotes", len(quotes)).Error("failed to save quotes")
		return fmt.Errorf("save quotes: %w", err)
	}
	return nil
}

// Recent returns up to limit quotes for symbol, newest first.
func (s *Store) Recent(ctx context.Context, symbol string, limit int) ([]provider.Quote, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	query := `
		SELECT symbol, price, currency, source, received_at
		FROM price_history
		WHERE symbol = $1
		ORDER BY received_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	results := make([]provider.Quote, 0, limit)
	for rows.Next() {
		var q provider.Quote
		if err := rows.Scan(&q.Symbol, &q.Price, &q.Currency, &q.Source, &q.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		results = append(results, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return results, nil
}
