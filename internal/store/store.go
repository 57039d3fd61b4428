package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"commerce-core/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Lock waits are bounded so an order touching several products cannot hang
// forever behind a competing transaction.
const lockTimeout = 5 * time.Second

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// InTx runs fn inside a single transaction with a bounded lock wait.
// Any error from fn rolls back everything fn wrote.
func (s *Store) InTx(ctx context.Context, fn func(tx models.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

// CartSnapshot reads the buyer's cart lines joined with the current product
// price, ascending product id. A plain read, not a lock.
func (s *Store) CartSnapshot(ctx context.Context, buyerID int64) ([]models.SnapshotLine, error) {
	var lines []models.SnapshotLine
	err := s.db.SelectContext(ctx, &lines, `
		SELECT c.product_id, c.quantity, p.unit_price
		FROM cart_lines c
		JOIN products p ON p.id = c.product_id
		WHERE c.buyer_id = $1
		ORDER BY c.product_id`, buyerID)
	return lines, err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ProductAvailability returns the current available quantity for a product.
func (s *Store) ProductAvailability(ctx context.Context, productID int64) (int, error) {
	var available int
	err := s.db.GetContext(ctx, &available,
		"SELECT available_quantity FROM products WHERE id = $1", productID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("product not found: %d", productID)
	}
	return available, err
}
