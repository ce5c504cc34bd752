// Package credential caches the service authorization token shared by all loops.
package credential

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/logging"
	"github.com/example/seat-scheduler/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TTL is how long a token is trusted before it is fetched again.
const TTL = 90 * time.Minute

const tokenPrefix = "bearer"

type Cache struct {
	Identity reservation.Identity
	Username string
	Password string

	TTL     time.Duration
	Now     func() time.Time
	Log     *zap.Logger
	Metrics *metrics.Metrics

	mu    sync.Mutex
	cur   *reservation.Credential
	group singleflight.Group
}

func New(identity reservation.Identity, username, password string) *Cache {
	return &Cache{Identity: identity, Username: username, Password: password}
}

// Ensure returns the cached credential, fetching a new one when none is cached
// or the cached one is older than the TTL. Concurrent callers share one fetch.
func (c *Cache) Ensure(ctx context.Context) (reservation.Credential, error) {
	if c.Username == "" || c.Password == "" {
		return reservation.Credential{}, reservation.ErrMissingCredentials
	}
	if cred, ok := c.cached(); ok {
		return cred, nil
	}

	v, err, _ := c.group.Do("token", func() (any, error) {
		// a fetch may have finished between cached() and Do
		if cred, ok := c.cached(); ok {
			return cred, nil
		}
		token, err := c.Identity.Authenticate(ctx, c.Username, c.Password)
		if err != nil {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		cred := reservation.Credential{Token: tokenPrefix + token, IssuedAt: c.now()}

		c.mu.Lock()
		c.cur = &cred
		c.mu.Unlock()

		c.Metrics.ObserveCredentialFetch()
		c.log().Info("credential: fetched new token")
		return cred, nil
	})
	if err != nil {
		return reservation.Credential{}, err
	}
	return v.(reservation.Credential), nil
}

// Invalidate forces the next Ensure to fetch a fresh token.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cur = nil
	c.mu.Unlock()
	c.log().Info("credential: token invalidated")
}

func (c *Cache) cached() (reservation.Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil || c.now().Sub(c.cur.IssuedAt) > c.ttl() {
		return reservation.Credential{}, false
	}
	return *c.cur, true
}

func (c *Cache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return TTL
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Cache) log() *zap.Logger {
	return logging.OrNop(c.Log)
}
