package lease

import "context"

// Locker grants short-lived per-order delivery leases so concurrent retry
// triggers (sweep, manual single, manual bulk) cannot both attempt one
// order. Acquire returns ok=false when another trigger holds the lease.
type Locker interface {
	Acquire(ctx context.Context, orderID string) (token string, ok bool, err error)
	Release(ctx context.Context, orderID string, token string) error
}
