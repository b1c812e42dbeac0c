package expect

import "slices"

// Keyed is implemented by every expectation: MatchKey is what an incoming
// operation is compared against.
type Keyed[K comparable] interface {
	MatchKey() K
}

// Queue is an ordered collection of expectations of one kind.
// It is not safe for concurrent use; the owning device serialises access.
type Queue[K comparable, E Keyed[K]] struct {
	items []E
}

// Append adds e after every entry already queued. Keys need not be unique.
func (q *Queue[K, E]) Append(e E) {
	q.items = append(q.items, e)
}

// Consume removes and returns the oldest entry whose key equals key.
// The order of the remaining entries is unchanged.
func (q *Queue[K, E]) Consume(key K) (E, bool) {
	for i, e := range q.items {
		if e.MatchKey() == key {
			q.items = slices.Delete(q.items, i, i+1)
			return e, true
		}
	}
	var zero E
	return zero, false
}

// Remaining returns a snapshot of the unconsumed entries in declaration order.
func (q *Queue[K, E]) Remaining() []E {
	return slices.Clone(q.items)
}

// Len returns the number of unconsumed entries.
func (q *Queue[K, E]) Len() int {
	return len(q.items)
}
