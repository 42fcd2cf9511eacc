package db

import (
	"context"
	"time"

	"policyportal/internal/types"
)

// RunLockRepository is a lease in escalation_locks. The Lambda trigger takes
// it so overlapping invocations on separate containers skip instead of
// sweeping the same records twice.
type RunLockRepository struct {
	db  DBTX
	now func() time.Time
}

func NewRunLockRepository(db DBTX) *RunLockRepository {
	return &RunLockRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Acquire takes the lease if it is free or expired. Expiry is computed in Go
// because PostgreSQL cannot parse Go duration strings as intervals.
func (r *RunLockRepository) Acquire(ctx context.Context, lockID, holderID string, ttl time.Duration) (bool, error) {
	now := r.now()
	tag, err := r.db.Exec(ctx,
		`INSERT INTO escalation_locks (id, holder_id, locked_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		   SET holder_id = EXCLUDED.holder_id,
		       locked_at = EXCLUDED.locked_at,
		       expires_at = EXCLUDED.expires_at
		   WHERE escalation_locks.expires_at < $3`,
		lockID, holderID, now, now.Add(ttl),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to acquire run lock", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Release drops the lease if holderID still owns it.
func (r *RunLockRepository) Release(ctx context.Context, lockID, holderID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM escalation_locks WHERE id = $1 AND holder_id = $2`,
		lockID, holderID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release run lock", err)
	}
	return nil
}
