package cache

import (
	"crypto/sha256"
	"sort"
	"strings"

	hex "github.com/tmthrgd/go-hex"
)

// InputPresent reports whether a request value counts as supplied.
// Empty strings and "0" are treated as absent.
func InputPresent(value string) bool {
	return value != "" && value != "0"
}

// RequestKey fingerprints a request from its path and parameters.
//
// Parameters that are not present (see InputPresent) are dropped, the rest are
// sorted by name, rendered as name:value and joined with ";". The digest covers
// "path;signature", so the same parameters in a different order always yield
// the same key.
func RequestKey(path string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name, value := range params {
		if InputPresent(value) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ":" + params[name]
	}

	sum := sha256.Sum256([]byte(path + ";" + strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:])
}
