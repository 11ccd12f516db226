package vista

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/yourorg/listing-gateway/internal/canon"
)

// Registry tracks which schema fields exist for the current tenant. Field
// names vary in casing and spelling per account, and some are rejected only
// at request time; the registry seeds itself once from /imoveis/listarcampos
// and then self-heals by blocking fields the upstream rejects.
//
// Instances are constructed and injected explicitly so tests can isolate
// them; both maps persist for the life of the instance.
type Registry struct {
	mu        sync.RWMutex
	available map[string]string // normalized key -> original casing
	blocked   map[string]struct{}
	loaded    bool
	metrics   Metrics
}

func NewRegistry(m Metrics) *Registry {
	if m == nil {
		m = noopMetrics{}
	}
	return &Registry{
		available: make(map[string]string),
		blocked:   make(map[string]struct{}),
		metrics:   m,
	}
}

// Normalize maps a field-name spelling onto its comparison key.
func (r *Registry) Normalize(name string) string {
	return canon.FoldKey(name)
}

// Seed installs the tenant's field listing. Called once, lazily.
func (r *Registry) Seed(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		key := canon.FoldKey(n)
		if key == "" {
			continue
		}
		if _, gone := r.blocked[key]; gone {
			continue
		}
		r.available[key] = n
	}
	r.loaded = true
}

// EnsureLoaded fetches the schema listing on first use. A load failure is
// logged and tolerated: the registry then answers from the blocklist only and
// callers fall back to their first candidate spelling.
func (r *Registry) EnsureLoaded(ctx context.Context, c *Client) {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return
	}
	names, err := c.ListFieldNames(ctx)
	if err != nil {
		log.Printf("[WARN] vista field registry: schema listing failed: %v", err)
		return
	}
	r.Seed(names)
}

// IsAvailable reports whether the field exists for this tenant and has not
// been blocked. Before the schema listing loads, unknown fields pass.
func (r *Registry) IsAvailable(name string) bool {
	key := canon.FoldKey(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, gone := r.blocked[key]; gone {
		return false
	}
	if !r.loaded {
		return true
	}
	_, ok := r.available[key]
	return ok
}

// Resolve walks candidate spellings and returns the first one available,
// preferring the tenant's original casing. With fallback set, an unresolved
// non-critical field degrades to the first unblocked candidate.
func (r *Registry) Resolve(candidates []string, fallback bool) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cand := range candidates {
		key := canon.FoldKey(cand)
		if _, gone := r.blocked[key]; gone {
			continue
		}
		if orig, ok := r.available[key]; ok {
			return orig, true
		}
		if !r.loaded {
			return cand, true
		}
	}
	if fallback {
		for _, cand := range candidates {
			if _, gone := r.blocked[canon.FoldKey(cand)]; !gone {
				return cand, true
			}
		}
	}
	return "", false
}

// Block permanently removes a field the upstream rejected at runtime. Both
// the name and its whitespace-collapsed variant are covered by the normalized
// key.
func (r *Registry) Block(name string) {
	key := canon.FoldKey(name)
	collapsed := canon.FoldKey(strings.Join(strings.Fields(name), ""))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked[key] = struct{}{}
	r.blocked[collapsed] = struct{}{}
	delete(r.available, key)
	delete(r.available, collapsed)
	r.metrics.FieldBlocked(name)
}

// Prune drops blocked or unavailable entries from a request field list.
// Nested {field: [subfields]} descriptors are pruned by their field key.
func (r *Registry) Prune(fields []any) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		switch v := f.(type) {
		case string:
			if r.IsAvailable(v) {
				out = append(out, v)
			}
		case map[string][]string:
			keep := make(map[string][]string, len(v))
			for name, sub := range v {
				if r.IsAvailable(name) {
					keep[name] = sub
				}
			}
			if len(keep) > 0 {
				out = append(out, keep)
			}
		default:
			out = append(out, f)
		}
	}
	return out
}

// RemoveField strips one field (by normalized key) from a field list after a
// runtime rejection, so the triggering request can be retried without it.
func RemoveField(fields []any, name string) []any {
	key := canon.FoldKey(name)
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		switch v := f.(type) {
		case string:
			if canon.FoldKey(v) != key {
				out = append(out, f)
			}
		case map[string][]string:
			keep := make(map[string][]string, len(v))
			for n, sub := range v {
				if canon.FoldKey(n) != key {
					keep[n] = sub
				}
			}
			if len(keep) > 0 {
				out = append(out, keep)
			}
		default:
			out = append(out, f)
		}
	}
	return out
}
