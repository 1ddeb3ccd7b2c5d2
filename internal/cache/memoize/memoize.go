// Package memoize wraps compute functions with get-or-compute caching.
//
// Cache keys are built from an explicit, caller-supplied name plus a
// deterministic JSON serialization of the arguments (encoding/json writes
// map keys in sorted order), so identical calls always address the same
// entry without any runtime reflection on the wrapped function.
//
// A nil result is returned but never cached: such calls are recomputed
// every time, since a stored value must never encode absence.
package memoize

import (
	"context"
	"encoding/json"
	"time"

	"tiercache/internal/cache/coordinator"
)

// Func wraps a zero-argument compute function. Results are cached under
// "memo:"+name for ttl; a non-positive ttl delegates to the coordinator's
// default.
func Func[T any](coord *coordinator.Coordinator, name string, ttl time.Duration, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	key := "memo:" + name
	return func(ctx context.Context) (T, error) {
		return call(ctx, coord, key, ttl, fn)
	}
}

// FuncArgs wraps a one-argument compute function, caching per distinct
// argument value. Multi-argument functions pass a struct.
func FuncArgs[A any, T any](coord *coordinator.Coordinator, name string, ttl time.Duration, fn func(context.Context, A) (T, error)) func(context.Context, A) (T, error) {
	return func(ctx context.Context, arg A) (T, error) {
		encoded, err := json.Marshal(arg)
		if err != nil {
			// An unserializable argument has no stable key; skip caching
			return fn(ctx, arg)
		}
		key := "memo:" + name + ":" + string(encoded)
		return call(ctx, coord, key, ttl, func(ctx context.Context) (T, error) {
			return fn(ctx, arg)
		})
	}
}

func call[T any](ctx context.Context, coord *coordinator.Coordinator, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if ttl <= 0 {
		ttl = coord.DefaultTTL()
	}

	// When this call is the one that computes, hand the typed value back
	// directly instead of decoding our own encoding.
	var computed *T
	data, err := coord.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		computed = &value

		encoded, err := json.Marshal(value)
		if err != nil {
			// Unencodable results stay uncached; nil bytes mark absence
			return nil, nil
		}
		return encoded, nil
	})

	var zero T
	if err != nil {
		return zero, err
	}
	if computed != nil {
		return *computed, nil
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		// A foreign or corrupt payload under our key; recompute without caching
		return fn(ctx)
	}
	return out, nil
}
