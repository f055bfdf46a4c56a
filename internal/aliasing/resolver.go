package aliasing

import (
	"sort"
	"strings"
)

// Resolver resolves a raw domain identifier to its canonical form using a
// fixed alias table. Immutable after construction, safe for concurrent use.
type Resolver struct {
	aliases map[string]string
}

// NewResolver builds a Resolver from cfg, validating each entry:
//   - keys and canonical values are trimmed of surrounding whitespace
//   - a self-referential entry (key == canonical) is dropped
//   - an empty canonical value is dropped
//   - entries are processed in sorted key order; an entry whose canonical
//     value leads, through the entries already kept, back to its own key is
//     dropped, which breaks cycles deterministically in favor of whichever
//     key sorts first; chains without a cycle are kept whole
//
// A nil cfg returns a Resolver with an empty table (Resolve becomes a
// passthrough).
func NewResolver(cfg *Config) *Resolver {
	if cfg == nil {
		return &Resolver{aliases: map[string]string{}}
	}

	keys := make([]string, 0, len(cfg.NamespaceAliases))
	for k := range cfg.NamespaceAliases {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	valid := make(map[string]string, len(keys))

	for _, rawKey := range keys {
		key := strings.TrimSpace(rawKey)
		canonical := strings.TrimSpace(cfg.NamespaceAliases[rawKey])

		if key == "" || canonical == "" || key == canonical {
			continue
		}

		cyclic := false

		for next, ok := canonical, true; ok; next, ok = valid[next] {
			if next == key {
				cyclic = true

				break
			}
		}

		if cyclic {
			continue
		}

		valid[key] = canonical
	}

	return &Resolver{aliases: valid}
}

// Resolve follows the alias chain starting at domain until it reaches a
// name with no further alias, returning that name. An unknown domain is
// returned unchanged. A chain that loops back on itself (which NewResolver's
// validation should already prevent, but a Resolver built by hand might not)
// is detected and the loop's entry point is returned rather than looping
// forever.
func (r *Resolver) Resolve(domain string) string {
	if r == nil || domain == "" {
		return domain
	}

	current := domain
	visited := make(map[string]bool)

	for {
		next, ok := r.aliases[current]
		if !ok {
			return current
		}

		if visited[current] {
			return current
		}

		visited[current] = true
		current = next
	}
}

// HasAlias reports whether domain has a direct entry in the alias table.
func (r *Resolver) HasAlias(domain string) bool {
	if r == nil || domain == "" {
		return false
	}

	_, ok := r.aliases[domain]

	return ok
}

// AliasCount returns the number of entries in the alias table.
func (r *Resolver) AliasCount() int {
	if r == nil {
		return 0
	}

	return len(r.aliases)
}

// Aliases returns a copy of the alias table, safe for the caller to mutate.
func (r *Resolver) Aliases() map[string]string {
	if r == nil {
		return map[string]string{}
	}

	cp := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		cp[k] = v
	}

	return cp
}

// AliasSlices returns the alias table as parallel key/value slices, for
// callers that want a stable iteration order of their own choosing.
func (r *Resolver) AliasSlices() ([]string, []string) {
	if r == nil {
		return []string{}, []string{}
	}

	keys := make([]string, 0, len(r.aliases))
	values := make([]string, 0, len(r.aliases))

	for k, v := range r.aliases {
		keys = append(keys, k)
		values = append(values, v)
	}

	return keys, values
}
