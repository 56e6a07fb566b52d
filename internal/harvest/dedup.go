// internal/harvest/dedup.go
package harvest

// Deduplicator remembers every identity it has seen for the lifetime of
// a job. It is not safe for concurrent use; each job owns its own.
type Deduplicator[K comparable] struct {
	seen map[K]struct{}
}

// NewDeduplicator creates an empty deduplicator
func NewDeduplicator[K comparable]() *Deduplicator[K] {
	return &Deduplicator[K]{seen: make(map[K]struct{})}
}

// IsNew registers id and reports whether it was unseen
func (d *Deduplicator[K]) IsNew(id K) bool {
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}

// Len returns the number of registered identities
func (d *Deduplicator[K]) Len() int {
	return len(d.seen)
}
