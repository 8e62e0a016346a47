// Package session holds the explicit per-session context that replaces any
// ambient "current user": it is created when a session is established, passed
// into every aggregation and visibility decision, and torn down on logout.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"catalog-bff/internal/common/errors"
	"catalog-bff/internal/common/logger"
	"catalog-bff/internal/models"
	"catalog-bff/internal/tier"

	"github.com/google/uuid"
)

// Credentials are forwarded to the auth check unchanged.
type Credentials struct {
	Cookies       []*http.Cookie
	Authorization string
}

type Context struct {
	creds  Credentials
	store  Store
	ttl    time.Duration
	logger logger.Logger
	newID  func() string

	mu     sync.RWMutex
	id     string
	user   *models.User
	closed bool
}

// ID is the session's current id. It changes when Login binds a user the
// store did not already hold under the old id.
func (c *Context) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *Context) Credentials() Credentials {
	return c.creds
}

// Login records user for the rest of the session. Logging in the same user
// again is a no-op. Unless the store already holds this user under the
// current id, the record is saved under a freshly minted id and the old key
// is deleted, so an id chosen before login never carries the user. The user
// is kept in memory even when persisting fails; the store error is returned.
func (c *Context) Login(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("login: nil user")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.ErrSessionClosed
	}
	if c.user != nil && *c.user == *user {
		c.mu.Unlock()
		return nil
	}
	u := *user
	c.user = &u
	oldID := c.id
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}

	persisted, err := c.store.Load(ctx, oldID)
	if err != nil {
		return errors.NewSessionStoreFailedError("load", err)
	}
	id := oldID
	if persisted == nil || persisted.ID != u.ID {
		id = c.newID()
	}

	if err := c.store.Save(ctx, id, &u, c.ttl); err != nil {
		return errors.NewSessionStoreFailedError("save", err)
	}
	if id != oldID {
		c.mu.Lock()
		c.id = id
		c.mu.Unlock()
		if err := c.store.Delete(ctx, oldID); err != nil {
			c.logger.Warn("Stale session record not deleted", map[string]interface{}{
				"sessionId": id,
				"error":     err.Error(),
			})
		}
	}
	c.logger.Debug("Session user persisted", map[string]interface{}{
		"sessionId": id,
		"rotated":   id != oldID,
		"userId":    u.ID.String(),
	})
	return nil
}

// User returns a copy of the logged-in user, or nil when anonymous.
func (c *Context) User() *models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Tier is the viewer's subscription tier, tier.None when anonymous.
func (c *Context) Tier() tier.Tier {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return tier.None
	}
	return c.user.SubscriptionTier
}

func (c *Context) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user != nil
}

func (c *Context) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Teardown ends the session: the user is cleared, the persisted record is
// deleted and later Login calls fail with ErrSessionClosed.
func (c *Context) Teardown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.user = nil
	id := c.id
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return errors.NewSessionStoreFailedError("delete", err)
	}
	return nil
}

// Manager creates session contexts bound to one store.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger logger.Logger
}

func NewManager(store Store, ttl time.Duration, log logger.Logger) *Manager {
	return &Manager{
		store:  store,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "session"}),
	}
}

// NewSessionID returns a fresh random session id.
func (m *Manager) NewSessionID() string {
	return uuid.NewString()
}

// Establish returns an anonymous context for id. It does not read the store.
func (m *Manager) Establish(id string, creds Credentials) *Context {
	return &Context{
		id:     id,
		creds:  creds,
		store:  m.store,
		ttl:    m.ttl,
		logger: m.logger,
		newID:  m.NewSessionID,
	}
}

// Resume returns a context for id carrying the persisted user, if any.
func (m *Manager) Resume(ctx context.Context, id string, creds Credentials) (*Context, error) {
	sc := m.Establish(id, creds)
	if m.store == nil {
		return sc, nil
	}
	user, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, errors.NewSessionStoreFailedError("load", err)
	}
	sc.user = user
	return sc, nil
}
