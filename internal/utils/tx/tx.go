package tx

import (
	"context"

	"gorm.io/gorm"
)

// WithTransaction runs fn inside a single database transaction. Any error
// returned by fn rolls the whole transaction back.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(ctx context.Context, tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
}
