package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// boundedContext derives the context for a single store call. A non-positive
// timeout leaves only the caller's deadline in effect.
func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// normalizeEmail trims the address and lower-cases the domain. The local part
// is kept as supplied: mailboxes may be case sensitive.
func normalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

// canonicalID returns id in the hyphenated lower-case form the stores use,
// or false when id could not have been issued by the registration service.
func canonicalID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
