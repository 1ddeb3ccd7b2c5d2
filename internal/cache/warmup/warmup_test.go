package warmup

import (
	"context"
	stderrors "errors"
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

func TestRunner_WarmsAllEntries(t *testing.T) {
	coord := setupCoordinator(t)
	r := New(coord, 600*time.Second, logging.NewDefaultLogger())

	warmed := r.Run(context.Background(), map[string]FetchFunc{
		"config:smtp": func(context.Context) (interface{}, error) {
			return map[string]string{"host": "mail.internal"}, nil
		},
		"config:plans": func(context.Context) (interface{}, error) {
			return []string{"basic", "pro"}, nil
		},
	})
	assert.Equal(t, 2, warmed)

	var smtp map[string]string
	assert.True(t, coord.GetJSON(context.Background(), "config:smtp", &smtp))
	assert.Equal(t, "mail.internal", smtp["host"])

	var plans []string
	assert.True(t, coord.GetJSON(context.Background(), "config:plans", &plans))
	assert.Equal(t, []string{"basic", "pro"}, plans)
}

func TestRunner_PartialFailure(t *testing.T) {
	coord := setupCoordinator(t)
	r := New(coord, 600*time.Second, logging.NewDefaultLogger())

	warmed := r.Run(context.Background(), map[string]FetchFunc{
		"good": func(context.Context) (interface{}, error) {
			return "ok", nil
		},
		"bad": func(context.Context) (interface{}, error) {
			return nil, stderrors.New("origin down")
		},
	})
	assert.Equal(t, 1, warmed)

	var v string
	assert.True(t, coord.GetJSON(context.Background(), "good", &v))
	assert.False(t, coord.GetJSON(context.Background(), "bad", &v))
}

func TestRunner_SequentialSortedOrder(t *testing.T) {
	coord := setupCoordinator(t)
	r := New(coord, time.Minute, logging.NewDefaultLogger())

	var order []string
	record := func(key string) FetchFunc {
		return func(context.Context) (interface{}, error) {
			order = append(order, key)
			return key, nil
		}
	}

	r.Run(context.Background(), map[string]FetchFunc{
		"c": record("c"),
		"a": record("a"),
		"b": record("b"),
	})
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRunner_CanceledContext(t *testing.T) {
	coord := setupCoordinator(t)
	r := New(coord, time.Minute, logging.NewDefaultLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	warmed := r.Run(ctx, map[string]FetchFunc{
		"k": func(context.Context) (interface{}, error) {
			t.Fatal("fetcher must not run after cancellation")
			return nil, nil
		},
	})
	assert.Equal(t, 0, warmed)
}

func TestRunner_EmptyMap(t *testing.T) {
	coord := setupCoordinator(t)
	r := New(coord, time.Minute, logging.NewDefaultLogger())

	assert.Equal(t, 0, r.Run(context.Background(), nil))
}
