package db

import (
	"context"

	"policyportal/internal/types"
)

// RecipientRepository resolves portal users to notification recipients.
type RecipientRepository struct {
	db DBTX
}

func NewRecipientRepository(db DBTX) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// GetByID returns the active user with id. Deactivated users are reported as
// not found so reminders to former staff fail visibly.
func (r *RecipientRepository) GetByID(ctx context.Context, id string) (*types.Recipient, error) {
	var rc types.Recipient
	err := r.db.QueryRow(ctx,
		`SELECT id, COALESCE(display_name, ''), email
		 FROM users
		 WHERE id = $1 AND deactivated_at IS NULL`,
		id,
	).Scan(&rc.ID, &rc.DisplayName, &rc.Email)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRecipient, "recipient not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load recipient", err)
	}
	return &rc, nil
}
