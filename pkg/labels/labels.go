// Package labels implements the canonical representation of a metric
// series' dimensional identity: an unordered string key/value set that can
// be serialized to a stable, sorted-key string for use as a series identity
// and hashed for index lookup.
package labels

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Set is an unordered string key/value label map.
type Set map[string]string

// Canonicalize sorts keys lexicographically and serializes the set to a
// stable string of the form "k1=v1,k2=v2". An empty set canonicalizes to
// the empty string.
func (s Set) Canonicalize() string {
	if len(s) == 0 {
		return ""
	}

	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s[k])
	}
	return b.String()
}

// Hash returns the SHA-256 hex digest of the canonical form, used as the
// lookup key for the (agent_id, metric_name, labels_hash) unique index.
func (s Set) Hash() string {
	h := sha256.Sum256([]byte(s.Canonicalize()))
	return hex.EncodeToString(h[:])
}

// Matches reports whether s satisfies a single filter conjunct: every
// key in want must be present in s with an equal value. Keys absent from
// want are wildcarded.
func (s Set) Matches(want Set) bool {
	for k, v := range want {
		if s[k] != v {
			return false
		}
	}
	return true
}

// Decanonicalize parses a string produced by Canonicalize back into a Set.
// The empty string decanonicalizes to an empty, non-nil Set.
func Decanonicalize(canonical string) Set {
	set := make(Set)
	if canonical == "" {
		return set
	}
	for _, pair := range strings.Split(canonical, ",") {
		k, v, _ := strings.Cut(pair, "=")
		set[k] = v
	}
	return set
}

// Filter is a list of conjuncts combined with OR: a label set matches the
// filter if it matches at least one conjunct. An empty filter matches
// everything.
type Filter []Set

// Matches reports whether s satisfies the filter.
func (f Filter) Matches(s Set) bool {
	if len(f) == 0 {
		return true
	}
	for _, conjunct := range f {
		if s.Matches(conjunct) {
			return true
		}
	}
	return false
}
