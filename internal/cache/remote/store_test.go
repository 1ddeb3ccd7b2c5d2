package remote

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiercache/internal/common/logging"
)

func setupTestStore(t *testing.T, prefix string) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := New(&Config{
		Address:   mr.Addr(),
		PoolSize:  10,
		OpTimeout: time.Second,
		KeyPrefix: prefix,
	}, logging.NewDefaultLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestNew(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		store, _ := setupTestStore(t, "")
		assert.NoError(t, store.Health())
	})

	t.Run("nil config", func(t *testing.T) {
		store, err := New(nil, nil)
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("connection failure", func(t *testing.T) {
		store, err := New(&Config{Address: "invalid:99999"}, logging.NewDefaultLogger())
		assert.Error(t, err)
		assert.Nil(t, store)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})
}

func TestStore_SetGet(t *testing.T) {
	store, _ := setupTestStore(t, "")
	ctx := context.Background()

	ok := store.Set(ctx, "user:1", []byte(`{"name":"Ann"}`), time.Minute)
	assert.True(t, ok)

	v, found := store.Get(ctx, "user:1")
	assert.True(t, found)
	assert.Equal(t, `{"name":"Ann"}`, string(v))
}

func TestStore_GetMiss(t *testing.T) {
	store, _ := setupTestStore(t, "")

	v, found := store.Get(context.Background(), "absent")
	assert.False(t, found)
	assert.Nil(t, v)

	st := store.Stats()
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(0), st.Failures)
}

func TestStore_KeyPrefix(t *testing.T) {
	store, mr := setupTestStore(t, "myapp:cache:")
	ctx := context.Background()

	require.True(t, store.Set(ctx, "user:1", []byte("v"), time.Minute))

	// The physical key carries the prefix; the logical key does not
	assert.True(t, mr.Exists("myapp:cache:user:1"))

	v, found := store.Get(ctx, "user:1")
	assert.True(t, found)
	assert.Equal(t, "v", string(v))
}

func TestStore_TTLExpiry(t *testing.T) {
	store, mr := setupTestStore(t, "")
	ctx := context.Background()

	require.True(t, store.Set(ctx, "k", []byte("v"), time.Second))

	_, found := store.Get(ctx, "k")
	assert.True(t, found)

	mr.FastForward(2 * time.Second)

	_, found = store.Get(ctx, "k")
	assert.False(t, found)
}

func TestStore_Delete(t *testing.T) {
	store, _ := setupTestStore(t, "")
	ctx := context.Background()

	require.True(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, store.Delete(ctx, "k"))
	assert.False(t, store.Delete(ctx, "k"))

	_, found := store.Get(ctx, "k")
	assert.False(t, found)
}

func TestStore_Exists(t *testing.T) {
	store, _ := setupTestStore(t, "")
	ctx := context.Background()

	assert.False(t, store.Exists(ctx, "k"))
	require.True(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, store.Exists(ctx, "k"))
}

func TestStore_Expire(t *testing.T) {
	store, mr := setupTestStore(t, "")
	ctx := context.Background()

	require.True(t, store.Set(ctx, "k", []byte("v"), time.Second))

	// Refresh the TTL in place, then confirm the entry outlives the original one
	assert.True(t, store.Expire(ctx, "k", time.Hour))
	mr.FastForward(2 * time.Second)

	_, found := store.Get(ctx, "k")
	assert.True(t, found)

	assert.False(t, store.Expire(ctx, "absent", time.Hour))
}

func TestStore_ScanAndDeleteMany(t *testing.T) {
	store, _ := setupTestStore(t, "app:")
	ctx := context.Background()

	require.True(t, store.Set(ctx, "user:1", []byte("a"), time.Minute))
	require.True(t, store.Set(ctx, "user:2", []byte("b"), time.Minute))
	require.True(t, store.Set(ctx, "order:1", []byte("c"), time.Minute))

	keys := store.Scan(ctx, "user:")
	assert.ElementsMatch(t, []string{"user:1", "user:2"}, keys)

	removed := store.DeleteMany(ctx, keys)
	assert.Equal(t, 2, removed)

	_, found := store.Get(ctx, "user:1")
	assert.False(t, found)
	_, found = store.Get(ctx, "order:1")
	assert.True(t, found)
}

func TestStore_DeleteManyEmpty(t *testing.T) {
	store, _ := setupTestStore(t, "")
	assert.Equal(t, 0, store.DeleteMany(context.Background(), nil))
}

func TestStore_FailOpen(t *testing.T) {
	store, mr := setupTestStore(t, "")
	ctx := context.Background()

	require.True(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	// Take the server down: every operation degrades, none errors or panics
	mr.Close()

	v, found := store.Get(ctx, "k")
	assert.False(t, found)
	assert.Nil(t, v)

	assert.False(t, store.Set(ctx, "k", []byte("v2"), time.Minute))
	assert.False(t, store.Delete(ctx, "k"))
	assert.False(t, store.Exists(ctx, "k"))
	assert.False(t, store.Expire(ctx, "k", time.Minute))
	assert.Empty(t, store.Scan(ctx, "k"))
	assert.Equal(t, 0, store.DeleteMany(ctx, []string{"k"}))

	assert.Positive(t, store.Stats().Failures)
}

func TestStore_BreakerOpensUnderSustainedFailure(t *testing.T) {
	store, mr := setupTestStore(t, "")
	ctx := context.Background()

	mr.Close()

	// Enough consecutive failures to trip the breaker
	for i := 0; i < 10; i++ {
		store.Get(ctx, "k")
	}

	st := store.Stats()
	assert.Equal(t, "open", st.BreakerState)

	// Calls keep degrading gracefully while the circuit is open
	_, found := store.Get(ctx, "k")
	assert.False(t, found)
}

func TestStore_Stats(t *testing.T) {
	store, _ := setupTestStore(t, "")
	ctx := context.Background()

	store.Set(ctx, "a", []byte("1"), time.Minute)
	store.Set(ctx, "b", []byte("2"), time.Minute)
	store.Get(ctx, "a")
	store.Get(ctx, "absent")
	store.Delete(ctx, "b")

	st := store.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(2), st.Sets)
	assert.Equal(t, uint64(1), st.Deletes)
	assert.Equal(t, "closed", st.BreakerState)
}
