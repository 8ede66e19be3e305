package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-auth-bridge/internal/data/cryptoutil"
	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	"github.com/target/mmk-auth-bridge/internal/testutil"
)

func testIdentity() domainauth.CanonicalIdentity {
	return domainauth.CanonicalIdentity{
		Subject: "sub-1",
		Name:    "Ada",
		Email:   "ada@example.com",
		Roles:   []string{"Reader", "Writer"},
	}
}

func newEncryptor(t *testing.T) cryptoutil.Encryptor {
	t.Helper()
	enc, err := cryptoutil.NewAESGCMEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return enc
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(SessionStoreOptions{Client: client, Encryptor: newEncryptor(t)})
	ctx := context.Background()

	tokens := domainauth.TokenSet{IDToken: "raw-id-token", AccessToken: "raw-access-token"}
	handle, err := store.Create(ctx, testIdentity(), tokens, 30*time.Minute)
	require.NoError(t, err)

	rec, ok, err := store.Get(ctx, handle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, handle, rec.Handle)
	assert.Equal(t, testIdentity(), rec.Identity)
	assert.Equal(t, tokens, rec.Tokens)
	assert.True(t, rec.Permanent)

	ttl, err := client.TTL(ctx, "session:"+handle).Result()
	require.NoError(t, err)
	assert.InDelta(t, (30 * time.Minute).Seconds(), ttl.Seconds(), 5)
}

func TestSessionStore_TokensAreSealedAtRest(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(SessionStoreOptions{Client: client, Encryptor: newEncryptor(t)})
	ctx := context.Background()

	handle, err := store.Create(ctx, testIdentity(), domainauth.TokenSet{AccessToken: "raw-access-token"}, time.Minute)
	require.NoError(t, err)

	raw, err := client.Get(ctx, "session:"+handle).Result()
	require.NoError(t, err)
	assert.False(t, strings.Contains(raw, "raw-access-token"))
}

func TestSessionStore_GetUnknown(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(SessionStoreOptions{Client: client})

	_, ok, err := store.Get(context.Background(), "non-existent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore_Destroy(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(SessionStoreOptions{Client: client})
	ctx := context.Background()

	handle, err := store.Create(ctx, testIdentity(), domainauth.TokenSet{}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Destroy(ctx, handle))
	_, ok, err := store.Get(ctx, handle)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Destroy(ctx, handle))
	require.NoError(t, store.Destroy(ctx, ""))
}

func TestSessionStore_RecordExpiryWinsOverKeyTTL(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	clock := testutil.NewClock(time.Now())
	store := NewSessionStore(SessionStoreOptions{Client: client, Now: clock.Now})
	ctx := context.Background()

	handle, err := store.Create(ctx, testIdentity(), domainauth.TokenSet{}, time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, ok, err := store.Get(ctx, handle)
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := client.Exists(ctx, "session:"+handle).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "expired record is removed on read")
}

func TestSessionStore_CustomPrefix(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(SessionStoreOptions{Client: client, Prefix: "bridge:s:"})
	ctx := context.Background()

	handle, err := store.Create(ctx, testIdentity(), domainauth.TokenSet{}, time.Minute)
	require.NoError(t, err)

	exists, err := client.Exists(ctx, "bridge:s:"+handle).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}
