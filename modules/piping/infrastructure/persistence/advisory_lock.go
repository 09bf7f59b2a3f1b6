package persistence

import (
	"context"

	"github.com/pipetrak/pipetrak/pkg/composables"
)

// PgBatchLocker serializes import write phases with transaction-scoped
// advisory locks. The lock releases on commit or rollback, so there is no
// unlock path to forget.
type PgBatchLocker struct{}

func NewPgBatchLocker() *PgBatchLocker {
	return &PgBatchLocker{}
}

// TryLock attempts to take the advisory lock for key within the current
// transaction. Returns false without blocking when another batch holds it.
func (l *PgBatchLocker) TryLock(ctx context.Context, key int64) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, key).Scan(&acquired); err != nil {
		return false, err
	}
	return acquired, nil
}
