package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/storefront/order-intake/internal/lease"
)

const defaultLeaseTTL = 30 * time.Second

// releaseScript deletes the lease only when the caller still holds it, so a
// slow attempt that outlives its TTL cannot release a successor's lease.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lease.Locker = (*DeliveryLease)(nil)

// DeliveryLease is a Redis-backed per-order lease: SET NX PX with a random
// token and a compare-and-delete release.
type DeliveryLease struct {
	client   *goredis.Client
	ttl      time.Duration
	newToken func() string
}

func NewDeliveryLease(client *goredis.Client, ttl time.Duration) (*DeliveryLease, error) {
	return newDeliveryLease(client, ttl, uuid.NewString)
}

func newDeliveryLease(client *goredis.Client, ttl time.Duration, tokenFn func() string) (*DeliveryLease, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	if tokenFn == nil {
		tokenFn = uuid.NewString
	}

	return &DeliveryLease{
		client:   client,
		ttl:      ttl,
		newToken: tokenFn,
	}, nil
}

func (l *DeliveryLease) Acquire(ctx context.Context, orderID string) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, fmt.Errorf("lease is not initialized")
	}

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", false, fmt.Errorf("order id is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	token := l.newToken()
	ok, err := l.client.SetNX(ctx, leaseKey(orderID), token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire delivery lease: %w", err)
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

func (l *DeliveryLease) Release(ctx context.Context, orderID string, token string) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("lease is not initialized")
	}

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("order id is required")
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("lease token is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := releaseScript.Run(ctx, l.client, []string{leaseKey(orderID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release delivery lease: %w", err)
	}

	return nil
}

func leaseKey(orderID string) string {
	return fmt.Sprintf("lease:order-email:%s", orderID)
}
