package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/google/uuid"

	"github.com/motorhub/marketplace-backend/pkg/logger"
	pkgredis "github.com/motorhub/marketplace-backend/pkg/redis"
)

const defaultClaimTTL = 2 * time.Minute

// ErrClaimBusy means another run currently owns the subscription.
var ErrClaimBusy = errors.New("subscription is being processed by another run")

// Claimer grants exclusive access to one subscription while it is billed or blocked.
type Claimer interface {
	Claim(ctx context.Context, subscriptionID uuid.UUID) (release func(), err error)
}

// RedisClaimer implements Claimer with a single-attempt redsync mutex per subscription.
type RedisClaimer struct {
	rs    *redsync.Redsync
	keyFn func(string) string
	ttl   time.Duration
	logg  *logger.Logger
}

// NewRedisClaimer builds a claimer on top of the shared redis connection.
func NewRedisClaimer(client *pkgredis.Client, ttl time.Duration, logg *logger.Logger) (*RedisClaimer, error) {
	if client == nil || client.Raw() == nil {
		return nil, errors.New("redis client required for claims")
	}
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	pool := goredis.NewPool(client.Raw())
	return &RedisClaimer{
		rs:    redsync.New(pool),
		keyFn: client.SubscriptionClaimKey,
		ttl:   ttl,
		logg:  logg,
	}, nil
}

func (c *RedisClaimer) Claim(ctx context.Context, subscriptionID uuid.UUID) (func(), error) {
	mutex := c.rs.NewMutex(
		c.keyFn(subscriptionID.String()),
		redsync.WithExpiry(c.ttl),
		redsync.WithTries(1),
	)
	if err := mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return nil, ErrClaimBusy
		}
		return nil, fmt.Errorf("claim subscription %s: %w", subscriptionID, err)
	}
	return func() {
		// The claim may outlive ctx cancellation; release on a fresh context.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := mutex.UnlockContext(releaseCtx); err != nil && c.logg != nil {
			logCtx := c.logg.WithSubscriptionID(ctx, subscriptionID.String())
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "subscription claim release failed")
		}
	}, nil
}
