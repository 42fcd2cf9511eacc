// Package email is the primary email channel. Content rendered by the
// dispatcher is wrapped in an HTML layout and sent through an
// external.EmailProvider; notification types mapped to a provider template
// are sent as dynamic template data instead.
package email

import (
	"errors"

	"policyportal/internal/types"
)

// ErrRecipientBlocked indicates the provider suppressed the recipient.
var ErrRecipientBlocked = errors.New("recipient blocked by provider")

// IsBlocklistError reports whether err is ErrRecipientBlocked or an AppError
// carrying ErrCodeEmailBlocked.
func IsBlocklistError(err error) bool {
	if errors.Is(err, ErrRecipientBlocked) {
		return true
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code == types.ErrCodeEmailBlocked
	}
	return false
}
