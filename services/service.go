package services

import (
	"context"
	"strings"
	"time"

	"scavenger-hunt/repository"

	"golang.org/x/text/unicode/norm"
)

// DefaultStoreTimeout bounds every operation when none is configured.
const DefaultStoreTimeout = 5 * time.Second

// base carries what every service needs: the store and a per-call deadline.
type base struct {
	store   repository.Store
	timeout time.Duration
	now     func() time.Time
}

func newBase(store repository.Store, timeout time.Duration) base {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return base{store: store, timeout: timeout, now: time.Now}
}

func (b base) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

// NormalizeCode folds compatibility forms (full-width letters from phone
// keyboards), trims and uppercases a typed code.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(norm.NFKC.String(raw)))
}
