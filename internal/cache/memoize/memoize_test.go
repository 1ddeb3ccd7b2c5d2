package memoize

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiercache/internal/cache/coordinator"
	"tiercache/internal/cache/local"
	"tiercache/internal/cache/remote"
	"tiercache/internal/common/logging"
)

type profile struct {
	Name  string `json:"name"`
	Plan  string `json:"plan"`
	Score int    `json:"score"`
}

func setupCoordinator(t *testing.T) *coordinator.Coordinator {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	l1, err := local.New(100)
	require.NoError(t, err)

	l2, err := remote.New(&remote.Config{
		Address:   mr.Addr(),
		OpTimeout: time.Second,
	}, logging.NewDefaultLogger())
	require.NoError(t, err)
	t.Cleanup(func() { l2.Close() })

	return coordinator.New(l1, l2, coordinator.Config{}, logging.NewDefaultLogger())
}

func TestFunc_CachesResult(t *testing.T) {
	coord := setupCoordinator(t)
	ctx := context.Background()

	var calls int32
	cached := Func(coord, "plans", time.Minute, func(context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"basic", "pro"}, nil
	})

	for i := 0; i < 3; i++ {
		v, err := cached(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"basic", "pro"}, v)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFunc_ErrorPropagatesAndNothingCached(t *testing.T) {
	coord := setupCoordinator(t)
	ctx := context.Background()

	boom := stderrors.New("origin down")
	var calls int32
	cached := Func(coord, "flaky", time.Minute, func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", boom
	})

	_, err := cached(ctx)
	assert.Equal(t, boom, err)
	_, err = cached(ctx)
	assert.Equal(t, boom, err)

	// Failed attempts cache nothing, so every call recomputes
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFunc_NilResultNeverCached(t *testing.T) {
	coord := setupCoordinator(t)
	ctx := context.Background()

	var calls int32
	cached := Func(coord, "maybe", time.Minute, func(context.Context) (*profile, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	})

	for i := 0; i < 3; i++ {
		v, err := cached(ctx)
		require.NoError(t, err)
		assert.Nil(t, v)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFunc_DefaultTTL(t *testing.T) {
	coord := setupCoordinator(t)
	ctx := context.Background()

	cached := Func(coord, "with-default-ttl", 0, func(context.Context) (int, error) {
		return 7, nil
	})

	v, err := cached(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestFuncArgs_CachesPerArgument(t *testing.T) {
	coord := setupCoordinator(t)
	ctx := context.Background()

	var calls int32
	lookup := FuncArgs(coord, "profile", time.Minute, func(_ context.Context, userID string) (profile, error) {
		atomic.AddInt32(&calls, 1)
		return profile{Name: "user-" + userID, Plan: "pro"}, nil
	})

	a1, err := lookup(ctx, "1")
	require.NoError(t, err)
	a2, err := lookup(ctx, "2")
	require.NoError(t, err)
	again, err := lookup(ctx, "1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", a1.Name)
	assert.Equal(t, "user-2", a2.Name)
	assert.Equal(t, a1, again)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFuncArgs_MapArgumentIsDeterministic(t *testing.T) {
	coord := setupCoordinator(t)
	ctx := context.Background()

	var calls int32
	query := FuncArgs(coord, "search", time.Minute, func(_ context.Context, filters map[string]string) (int, error) {
		atomic.AddInt32(&calls, 1)
		return len(filters), nil
	})

	// Equal maps hit the same entry regardless of construction order
	_, err := query(ctx, map[string]string{"plan": "pro", "active": "true"})
	require.NoError(t, err)
	_, err = query(ctx, map[string]string{"active": "true", "plan": "pro"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFuncArgs_StructArgument(t *testing.T) {
	coord := setupCoordinator(t)
	ctx := context.Background()

	type query struct {
		UserID string `json:"user_id"`
		Month  int    `json:"month"`
	}

	var calls int32
	report := FuncArgs(coord, "report", time.Minute, func(_ context.Context, q query) (string, error) {
		atomic.AddInt32(&calls, 1)
		return q.UserID, nil
	})

	v, err := report(ctx, query{UserID: "7", Month: 3})
	require.NoError(t, err)
	assert.Equal(t, "7", v)

	_, err = report(ctx, query{UserID: "7", Month: 3})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = report(ctx, query{UserID: "7", Month: 4})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
