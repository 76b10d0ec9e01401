package cacheinfra

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// namespacedKey places key under the namespace formed by the current versions
// of its tags. Rotating any tag version moves every key of that tag set to a
// namespace nobody reads anymore.
func namespacedKey(prefix string, versions []string, key string) string {
	ns := xxhash.Sum64String(strings.Join(versions, "|"))
	return prefix + strconv.FormatUint(ns, 16) + ":" + key
}
