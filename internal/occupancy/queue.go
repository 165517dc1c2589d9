// Package occupancy keeps the authoritative in-memory record of who is inside the library.
package occupancy

import (
	"sort"
	"sync"

	"libreserve-backend/internal/metrics"
	"libreserve-backend/internal/reservation"
)

// Entry is one person currently inside. Reservation is a copy of the record the
// person was admitted on; for librarians it is their session record.
type Entry struct {
	Kind        reservation.Kind
	OwnerID     string
	Reservation reservation.Record

	seq uint64
}

// NewEntry builds an entry for the owner of r.
func NewEntry(r reservation.Record) Entry {
	return Entry{Kind: r.Owner.Kind, OwnerID: r.Owner.ID, Reservation: r}
}

type key struct {
	kind reservation.Kind
	id   string
}

// Queue is a capacity- and uniqueness-bounded presence registry. Despite the
// name it is not FIFO. All methods are safe for concurrent use; each one is
// atomic with respect to the others.
type Queue struct {
	mu              sync.RWMutex
	entries         map[key]Entry
	capacity        int
	studentCapacity int
	students        int
	nextSeq         uint64
}

// NewQueue returns an empty queue. studentCapacity caps student entries inside
// the overall capacity; pass capacity to leave students unrestricted.
func NewQueue(capacity, studentCapacity int) *Queue {
	q := &Queue{entries: make(map[key]Entry)}
	q.Resize(capacity, studentCapacity)
	return q
}

// Resize applies new limits. People already inside are never evicted; a queue
// above its new capacity simply admits nobody until it drains.
func (q *Queue) Resize(capacity, studentCapacity int) {
	if studentCapacity > capacity {
		studentCapacity = capacity
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.capacity = capacity
	q.studentCapacity = studentCapacity
}

// IsFull reports whether the total number of entries has reached capacity.
func (q *Queue) IsFull() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.isFull()
}

func (q *Queue) isFull() bool {
	return len(q.entries) >= q.capacity
}

// IsPresent looks up an owner without side effects.
func (q *Queue) IsPresent(kind reservation.Kind, ownerID string) (Entry, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	e, ok := q.entries[key{kind, ownerID}]
	return e, ok
}

// FindByReservationCode looks up the entry admitted on the given reservation.
func (q *Queue) FindByReservationCode(code string) (Entry, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, e := range q.entries {
		if e.Reservation.Code == code {
			return e, true
		}
	}
	return Entry{}, false
}

// SignIn inserts e if there is room and its owner is not already inside.
// It returns false without mutating anything otherwise.
func (q *Queue) SignIn(e Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	k := key{e.Kind, e.OwnerID}
	if q.isFull() {
		return false
	}
	if _, exists := q.entries[k]; exists {
		return false
	}
	if e.Kind == reservation.KindStudent && q.students >= q.studentCapacity {
		return false
	}

	q.nextSeq++
	e.seq = q.nextSeq
	q.entries[k] = e
	if e.Kind == reservation.KindStudent {
		q.students++
	}
	metrics.Occupancy.WithLabelValues(string(e.Kind)).Inc()
	return true
}

// SignOut removes the entry for e's owner, provided it belongs to the same
// reservation. A stale or repeated exit returns false and changes nothing.
func (q *Queue) SignOut(e Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	k := key{e.Kind, e.OwnerID}
	current, exists := q.entries[k]
	if !exists || current.Reservation.Code != e.Reservation.Code {
		return false
	}
	delete(q.entries, k)
	if e.Kind == reservation.KindStudent {
		q.students--
	}
	metrics.Occupancy.WithLabelValues(string(e.Kind)).Dec()
	return true
}

// ListAll returns a point-in-time snapshot in admission order.
func (q *Queue) ListAll() []Entry {
	q.mu.RLock()
	out := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e)
	}
	q.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// List returns the snapshot filtered to one kind.
func (q *Queue) List(kind reservation.Kind) []Entry {
	var out []Entry
	for _, e := range q.ListAll() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Len is the number of people currently inside.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}
