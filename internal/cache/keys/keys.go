// Package keys builds deterministic cache keys from semantic namespaces.
//
// Identical (namespace, args) always yields an identical key, so an entity's
// cached state can be invalidated en masse via its prefix pattern.
package keys

import (
	"strconv"
	"strings"
)

// templates maps a namespace to its key template. Placeholders are
// positional: {0} is the first argument, {1} the second, and so on.
var templates = map[string]string{
	"user":         "user:{0}",
	"user_profile": "user:profile:{0}",
	"membership":   "membership:user:{0}",
	"credits":      "credits:user:{0}",
	"points":       "points:user:{0}",
	"order":        "order:{0}",
	"config":       "config:{0}",
	"session":      "session:{0}",
}

// Build constructs a cache key for the given namespace and arguments.
// Unknown namespaces fall back to the namespace followed by the colon-joined
// arguments.
func Build(namespace string, args ...string) string {
	tpl, ok := templates[namespace]
	if !ok {
		if len(args) == 0 {
			return namespace
		}
		return namespace + ":" + strings.Join(args, ":")
	}

	key := tpl
	for i, arg := range args {
		key = strings.ReplaceAll(key, "{"+strconv.Itoa(i)+"}", arg)
	}
	return key
}

// PrefixPattern returns the invalidation prefix for a namespace: the template
// text up to its first placeholder. Unknown namespaces yield the namespace
// followed by a colon.
func PrefixPattern(namespace string) string {
	tpl, ok := templates[namespace]
	if !ok {
		return namespace + ":"
	}
	if i := strings.Index(tpl, "{"); i >= 0 {
		return tpl[:i]
	}
	return tpl
}
