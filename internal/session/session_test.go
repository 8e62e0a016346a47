package session

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"catalog-bff/internal/common/errors"
	"catalog-bff/internal/common/logger"
	"catalog-bff/internal/models"
	"catalog-bff/internal/tier"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	Store
	mu      sync.Mutex
	saves   int
	saveErr error
}

func (s *countingStore) Save(ctx context.Context, id string, user *models.User, ttl time.Duration) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.Store.Save(ctx, id, user, ttl)
}

func createTestUser(id string, t tier.Tier) *models.User {
	return &models.User{ID: models.FlexString(id), Username: "user-" + id, SubscriptionTier: t}
}

func TestContext_LoginIsIdempotent(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore()}
	m := NewManager(store, time.Minute, logger.NewTestLogger(t))
	sc := m.Establish("s1", Credentials{})

	assert.False(t, sc.Authenticated())
	assert.Equal(t, tier.None, sc.Tier())

	require.NoError(t, sc.Login(context.Background(), createTestUser("u1", tier.Medium)))
	require.NoError(t, sc.Login(context.Background(), createTestUser("u1", tier.Medium)))
	assert.Equal(t, 1, store.saves)

	assert.True(t, sc.Authenticated())
	assert.Equal(t, tier.Medium, sc.Tier())

	// A changed tier is a different user record and is persisted again.
	require.NoError(t, sc.Login(context.Background(), createTestUser("u1", tier.Hardcore)))
	assert.Equal(t, 2, store.saves)
	assert.Equal(t, tier.Hardcore, sc.Tier())
}

func TestContext_UserReturnsCopy(t *testing.T) {
	sc := NewManager(nil, 0, logger.NewNoOpLogger()).Establish("s1", Credentials{})
	require.NoError(t, sc.Login(context.Background(), createTestUser("u1", tier.Basic)))

	u := sc.User()
	u.SubscriptionTier = tier.Hardcore
	assert.Equal(t, tier.Basic, sc.Tier())
}

func TestContext_LoginStoreFailureKeepsUser(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore(), saveErr: stderrors.New("disk full")}
	sc := NewManager(store, 0, logger.NewTestLogger(t)).Establish("s1", Credentials{})

	err := sc.Login(context.Background(), createTestUser("u1", tier.Basic))
	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSessionStoreFailed, stdErr.Code)
	assert.True(t, sc.Authenticated())
}

func TestContext_Teardown(t *testing.T) {
	mem := NewMemoryStore()
	m := NewManager(mem, 0, logger.NewTestLogger(t))
	sc := m.Establish("s1", Credentials{})
	require.NoError(t, sc.Login(context.Background(), createTestUser("u1", tier.Basic)))
	sid := sc.ID()

	require.NoError(t, sc.Teardown(context.Background()))
	require.NoError(t, sc.Teardown(context.Background()))

	assert.True(t, sc.Closed())
	assert.False(t, sc.Authenticated())
	assert.Nil(t, sc.User())

	loaded, err := mem.Load(context.Background(), sid)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	err = sc.Login(context.Background(), createTestUser("u1", tier.Basic))
	assert.ErrorIs(t, err, errors.ErrSessionClosed)
}

func TestContext_LoginRejectsNil(t *testing.T) {
	sc := NewManager(nil, 0, logger.NewNoOpLogger()).Establish("s1", Credentials{})
	assert.Error(t, sc.Login(context.Background(), nil))
}

func TestManager_ResumeRestoresUser(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Minute, logger.NewTestLogger(t))
	first := m.Establish("s1", Credentials{})
	require.NoError(t, first.Login(context.Background(), createTestUser("u1", tier.Hardcore)))

	resumed, err := m.Resume(context.Background(), first.ID(), Credentials{Authorization: "Bearer x"})
	require.NoError(t, err)
	assert.Equal(t, tier.Hardcore, resumed.Tier())
	assert.Equal(t, "Bearer x", resumed.Credentials().Authorization)

	fresh, err := m.Resume(context.Background(), "other", Credentials{})
	require.NoError(t, err)
	assert.False(t, fresh.Authenticated())

	// Establish never reads the store.
	assert.False(t, m.Establish(first.ID(), Credentials{}).Authenticated())
}

func TestContext_LoginRotatesChosenID(t *testing.T) {
	mem := NewMemoryStore()
	m := NewManager(mem, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	sc := m.Establish("attacker-chosen", Credentials{})
	require.NoError(t, sc.Login(ctx, createTestUser("victim", tier.Hardcore)))

	assert.NotEqual(t, "attacker-chosen", sc.ID())
	stale, err := mem.Load(ctx, "attacker-chosen")
	require.NoError(t, err)
	assert.Nil(t, stale)

	stored, err := mem.Load(ctx, sc.ID())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.FlexString("victim"), stored.ID)

	resumed, err := m.Resume(ctx, "attacker-chosen", Credentials{})
	require.NoError(t, err)
	assert.False(t, resumed.Authenticated())
}

func TestContext_LoginDifferentUserRotatesAndDropsOldRecord(t *testing.T) {
	mem := NewMemoryStore()
	m := NewManager(mem, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	first := m.Establish("s1", Credentials{})
	require.NoError(t, first.Login(ctx, createTestUser("u1", tier.Basic)))
	oldID := first.ID()

	sc, err := m.Resume(ctx, oldID, Credentials{})
	require.NoError(t, err)
	require.NoError(t, sc.Login(ctx, createTestUser("u2", tier.Medium)))

	assert.NotEqual(t, oldID, sc.ID())
	old, err := mem.Load(ctx, oldID)
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestContext_LoginKeepsIDForPersistedUser(t *testing.T) {
	mem := NewMemoryStore()
	m := NewManager(mem, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	first := m.Establish("s1", Credentials{})
	require.NoError(t, first.Login(ctx, createTestUser("u1", tier.Basic)))
	sid := first.ID()

	// Same principal on a fresh request, tier upgraded since.
	again := m.Establish(sid, Credentials{})
	require.NoError(t, again.Login(ctx, createTestUser("u1", tier.Hardcore)))
	assert.Equal(t, sid, again.ID())

	stored, err := mem.Load(ctx, sid)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, tier.Hardcore, stored.SubscriptionTier)
}

func TestContext_LoginFailedSaveKeepsID(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore(), saveErr: stderrors.New("disk full")}
	sc := NewManager(store, 0, logger.NewTestLogger(t)).Establish("s1", Credentials{})

	require.Error(t, sc.Login(context.Background(), createTestUser("u1", tier.Basic)))
	assert.Equal(t, "s1", sc.ID())
}

func TestManager_NewSessionID(t *testing.T) {
	m := NewManager(nil, 0, logger.NewNoOpLogger())
	a, b := m.NewSessionID(), m.NewSessionID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestMemoryStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(context.Background(), "s1", createTestUser("u1", tier.Basic), time.Minute))
	u, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, u)

	now = now.Add(time.Minute)
	u, err = store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, "catalog:session:")
	ctx := context.Background()

	u, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, store.Save(ctx, "s1", createTestUser("u1", tier.Medium), 30*time.Minute))
	assert.True(t, mr.Exists("catalog:session:s1"))
	assert.Equal(t, 30*time.Minute, mr.TTL("catalog:session:s1"))

	u, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, tier.Medium, u.SubscriptionTier)

	mr.FastForward(31 * time.Minute)
	u, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, store.Save(ctx, "s2", createTestUser("u2", tier.Basic), 0))
	require.NoError(t, store.Delete(ctx, "s2"))
	assert.False(t, mr.Exists("catalog:session:s2"))
}

func TestRedisStore_CorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("p:s1", "not-json"))
	_, err := NewRedisStore(client, "p:").Load(context.Background(), "s1")
	assert.Error(t, err)
}

func TestManager_ResumeStoreFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	m := NewManager(NewRedisStore(client, "p:"), 0, logger.NewTestLogger(t))
	_, err := m.Resume(context.Background(), "s1", Credentials{})
	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSessionStoreFailed, stdErr.Code)
}

func TestContext_ConcurrentAccess(t *testing.T) {
	sc := NewManager(NewMemoryStore(), 0, logger.NewNoOpLogger()).Establish("s1", Credentials{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = sc.Login(context.Background(), createTestUser("u1", tier.Basic))
		}()
		go func() {
			defer wg.Done()
			_ = sc.Tier()
		}()
	}
	wg.Wait()
	assert.Equal(t, tier.Basic, sc.Tier())
}
