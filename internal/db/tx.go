package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Transaction context key
type txKey struct{}

// WithTransaction adds a transaction to the context
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTransaction retrieves a transaction from context, or returns nil if not present
func GetTransaction(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// executeWithTransaction executes a function with proper transaction management.
// If a transaction exists in context, it uses that. Otherwise, it creates a new one.
func executeWithTransaction(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	// Check if transaction exists in context
	if tx := GetTransaction(ctx); tx != nil {
		// Use existing transaction
		return fn(tx)
	}

	// Create new transaction
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Execute the function
	if fnErr := fn(tx); fnErr != nil {
		// Rollback on error
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	// Commit on success
	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}

	return nil
}

// queryWithTransaction executes a query using transaction from context if available
func queryWithTransaction(ctx context.Context, db *sql.DB, query string, args ...any) (*sql.Rows, error) {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	return db.QueryContext(ctx, query, args...)
}
