package repos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx so repositories can run
// inside or outside the order transaction.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// OpenDB opens sqlite by default and postgres for postgres:// DSNs, then
// ensures the schema exists.
func OpenDB(dsn string) (*sqlx.DB, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// one connection: ":memory:" databases are per-connection and sqlite
		// serialises writers anyway
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('USER','ADMIN')),
  tier TEXT NOT NULL DEFAULT 'retail' CHECK (tier IN ('retail','wholesale')),
  wholesale_status TEXT NOT NULL DEFAULT 'pending' CHECK (wholesale_status IN ('pending','active','expired')),
  units_accumulated INTEGER NOT NULL DEFAULT 0,
  period_expires_at TIMESTAMP,
  retail_progress_units INTEGER NOT NULL DEFAULT 0,
  version BIGINT NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
  promo_price NUMERIC(12,2),
  wholesale_price NUMERIC(12,2),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  variants_json TEXT NOT NULL DEFAULT '',
  counts_toward_wholesale BOOLEAN NOT NULL DEFAULT TRUE,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  version BIGINT NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS coupons(
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL CHECK (kind IN ('percentage','fixed','free_shipping')),
  value NUMERIC(12,2) NOT NULL DEFAULT 0,
  min_purchase NUMERIC(12,2),
  max_discount NUMERIC(12,2),
  usage_limit INTEGER,
  used_count INTEGER NOT NULL DEFAULT 0,
  starts_at TIMESTAMP,
  ends_at TIMESTAMP,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  version BIGINT NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  number BIGINT NOT NULL UNIQUE,
  user_id TEXT REFERENCES users(id),
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  customer_phone TEXT NOT NULL DEFAULT '',
  tax_id TEXT NOT NULL DEFAULT '',
  ship_address TEXT NOT NULL DEFAULT '',
  ship_city TEXT NOT NULL DEFAULT '',
  ship_province TEXT NOT NULL DEFAULT '',
  ship_postal_code TEXT NOT NULL DEFAULT '',
  subtotal NUMERIC(12,2) NOT NULL,
  discount NUMERIC(12,2) NOT NULL DEFAULT 0,
  total NUMERIC(12,2) NOT NULL CHECK (total >= 0),
  free_shipping BOOLEAN NOT NULL DEFAULT FALSE,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL,
  shipping_method TEXT NOT NULL,
  coupon_id TEXT REFERENCES coupons(id),
  created_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id)`,
	`CREATE TABLE IF NOT EXISTS order_items(
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  line_no INTEGER NOT NULL,
  product_id TEXT NOT NULL REFERENCES products(id),
  product_name TEXT NOT NULL,
  qty INTEGER NOT NULL CHECK (qty >= 1),
  unit_price NUMERIC(12,2) NOT NULL,
  subtotal NUMERIC(12,2) NOT NULL,
  variant TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (order_id, line_no)
)`,
	`CREATE TABLE IF NOT EXISTS coupon_usages(
  coupon_id TEXT NOT NULL REFERENCES coupons(id),
  email TEXT NOT NULL,
  order_id TEXT NOT NULL REFERENCES orders(id),
  discount NUMERIC(12,2) NOT NULL,
  created_at TIMESTAMP NOT NULL,
  PRIMARY KEY (coupon_id, order_id)
)`,
	`CREATE TABLE IF NOT EXISTS counters(
  name TEXT PRIMARY KEY,
  value BIGINT NOT NULL
)`,
	`INSERT INTO counters(name, value) VALUES ('order_number', 1000) ON CONFLICT(name) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS outbox(
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','done','failed')),
  attempts INTEGER NOT NULL DEFAULT 0,
  next_attempt_at BIGINT NOT NULL,
  last_error TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_due ON outbox(status, next_attempt_at)`,
}

func ensureSchema(db *sqlx.DB) error {
	if db.DriverName() == "sqlite" {
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			return err
		}
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Repos bundles the repositories bound to one connection or transaction.
type Repos struct {
	Products *ProductRepo
	Coupons  *CouponRepo
	Users    *UserRepo
	Orders   *OrderRepo
	Counters *CounterRepo
	Outbox   *OutboxRepo
}

func newRepos(db DBTX) Repos {
	return Repos{
		Products: NewProductRepo(db),
		Coupons:  NewCouponRepo(db),
		Users:    NewUserRepo(db),
		Orders:   NewOrderRepo(db),
		Counters: NewCounterRepo(db),
		Outbox:   NewOutboxRepo(db),
	}
}

type Store struct {
	db *sqlx.DB
	Repos
}

func NewStore(db *sqlx.DB) *Store { return &Store{db: db, Repos: newRepos(db)} }

func (s *Store) DB() *sqlx.DB { return s.db }

// WithTx runs fn inside one transaction. Everything fn touches must go
// through the Repos it receives; using the Store's own repos from inside fn
// would wait on the single sqlite connection forever.
func (s *Store) WithTx(ctx context.Context, fn func(Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(newRepos(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
