package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

// GormStore implements domain.Store on top of gorm. Postgres in production,
// sqlite in repository tests.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new gorm backed store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates every ledger table
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(domain.Models()...)
}

// WithinTransaction runs fn in one database transaction. Any error returned by
// fn (or a panic) rolls back every write made through tx.
func (s *GormStore) WithinTransaction(ctx context.Context, fn func(tx domain.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

// Read runs fn in a read-only transaction so every statement in fn sees the
// same snapshot. Stock, ledger and balance reads therefore agree with each
// other even while sales commit concurrently.
func (s *GormStore) Read(ctx context.Context, fn func(tx domain.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	}, readTxOptions(s.db.Dialector.Name()))
}

// readTxOptions picks the snapshot level per dialect. Postgres needs
// REPEATABLE READ for a transaction wide snapshot; sqlite transactions are
// serializable already.
func readTxOptions(dialect string) *sql.TxOptions {
	if dialect == "postgres" {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return &sql.TxOptions{}
}

// NextInvoiceNumber increments the shared counter in a single upsert statement.
// It auto-commits on its own, so a sale that later rolls back leaves a gap.
func (s *GormStore) NextInvoiceNumber(ctx context.Context) (int64, error) {
	var seq int64
	result := s.db.WithContext(ctx).Raw(
		`INSERT INTO invoice_counters (name, seq) VALUES (?, 1)
		 ON CONFLICT (name) DO UPDATE SET seq = invoice_counters.seq + 1
		 RETURNING seq`,
		domain.InvoiceCounterName,
	).Scan(&seq)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 || seq <= 0 {
		return 0, errors.New("invoice counter returned no value")
	}
	return seq, nil
}

// gormTx binds every repository method to one *gorm.DB (a transaction or the
// root handle for reads).
type gormTx struct {
	db *gorm.DB
}

func notFound(err error, entity string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFoundError(entity, id)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
