package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// dbFromContext returns the transaction bound to ctx by the unit of work,
// or the repository's root handle when ctx carries none.
func dbFromContext(ctx context.Context, root *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return root.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// storeErr maps gorm failures onto the domain and port error taxonomy.
func storeErr(entity, op string, key any, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFoundError(entity, key)
	}
	return ports.NewStoreError(entity, op, err)
}
