package occupancy

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libreserve-backend/internal/reservation"
)

var bookedAt = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func studentEntry(id, code string) Entry {
	return NewEntry(reservation.New(code, reservation.Owner{Kind: reservation.KindStudent, ID: id}, bookedAt))
}

func librarianEntry(id, code string) Entry {
	return NewEntry(reservation.New(code, reservation.Owner{Kind: reservation.KindLibrarian, ID: id}, bookedAt))
}

func TestQueue_SignInAndOut(t *testing.T) {
	q := NewQueue(2, 2)

	a := studentEntry("a", "res-a")
	require.True(t, q.SignIn(a))
	assert.False(t, q.SignIn(studentEntry("a", "res-a2")), "same owner twice")

	got, ok := q.IsPresent(reservation.KindStudent, "a")
	require.True(t, ok)
	assert.Equal(t, "res-a", got.Reservation.Code)

	require.True(t, q.SignIn(studentEntry("b", "res-b")))
	assert.True(t, q.IsFull())
	assert.False(t, q.SignIn(studentEntry("c", "res-c")), "over capacity")

	require.True(t, q.SignOut(a))
	assert.False(t, q.SignOut(a), "second sign-out of the same entry")
	assert.False(t, q.IsFull())
	assert.Equal(t, 1, q.Len())
}

func TestQueue_SignOutAbsentLeavesQueueUnchanged(t *testing.T) {
	q := NewQueue(5, 5)
	require.True(t, q.SignIn(studentEntry("a", "res-a")))
	before := q.ListAll()

	assert.False(t, q.SignOut(studentEntry("ghost", "res-x")))
	assert.False(t, q.SignOut(studentEntry("a", "res-stale")), "stale reservation for a present owner")
	assert.False(t, q.SignOut(librarianEntry("a", "res-a")), "same id, other kind")

	assert.Equal(t, before, q.ListAll())
}

func TestQueue_StudentCapacityLeavesLibrarianSeats(t *testing.T) {
	q := NewQueue(3, 2)
	require.True(t, q.SignIn(studentEntry("s1", "r1")))
	require.True(t, q.SignIn(studentEntry("s2", "r2")))
	assert.False(t, q.SignIn(studentEntry("s3", "r3")))

	require.True(t, q.SignIn(librarianEntry("l1", "l1")))
	assert.False(t, q.SignIn(librarianEntry("l2", "l2")), "total capacity reached")

	assert.Len(t, q.List(reservation.KindStudent), 2)
	assert.Len(t, q.List(reservation.KindLibrarian), 1)
}

func TestQueue_ResizeNeverEvicts(t *testing.T) {
	q := NewQueue(3, 3)
	for i := 0; i < 3; i++ {
		require.True(t, q.SignIn(studentEntry(fmt.Sprint(i), fmt.Sprint("r", i))))
	}
	q.Resize(1, 1)
	assert.Equal(t, 3, q.Len())
	assert.False(t, q.SignIn(studentEntry("x", "rx")))
}

func TestQueue_FindByReservationCode(t *testing.T) {
	q := NewQueue(5, 5)
	require.True(t, q.SignIn(studentEntry("a", "res-a")))

	e, ok := q.FindByReservationCode("res-a")
	require.True(t, ok)
	assert.Equal(t, "a", e.OwnerID)

	_, ok = q.FindByReservationCode("nope")
	assert.False(t, ok)
}

func TestQueue_ListAllIsInAdmissionOrder(t *testing.T) {
	q := NewQueue(10, 10)
	ids := []string{"m", "c", "x", "a"}
	for _, id := range ids {
		require.True(t, q.SignIn(studentEntry(id, "r-"+id)))
	}
	var got []string
	for _, e := range q.ListAll() {
		got = append(got, e.OwnerID)
	}
	assert.Equal(t, ids, got)
}

func TestQueue_ConcurrentSignInsNeverOvershootCapacity(t *testing.T) {
	const capacity = 25
	q := NewQueue(capacity, capacity)

	var wg sync.WaitGroup
	var admitted atomic.Int64
	var observedMax atomic.Int64
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if q.SignIn(studentEntry(fmt.Sprint("s", i), fmt.Sprint("r", i))) {
				admitted.Add(1)
			}
			n := int64(q.Len())
			for {
				cur := observedMax.Load()
				if n <= cur || observedMax.CompareAndSwap(cur, n) {
					break
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(capacity), admitted.Load())
	assert.LessOrEqual(t, observedMax.Load(), int64(capacity))
	assert.Len(t, q.ListAll(), capacity)
}

func TestQueue_ConcurrentSignInsForSameOwner(t *testing.T) {
	q := NewQueue(100, 100)

	var wg sync.WaitGroup
	var admitted atomic.Int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if q.SignIn(studentEntry("same", fmt.Sprint("r", i))) {
				admitted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), admitted.Load())
	assert.Equal(t, 1, q.Len())
}

func TestQueue_ConcurrentSignInOutChurn(t *testing.T) {
	const capacity = 5
	q := NewQueue(capacity, capacity)

	var wg sync.WaitGroup
	for w := 0; w < 20; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e := studentEntry(fmt.Sprint("w", w), fmt.Sprint("r", w, "-", i))
				if q.SignIn(e) {
					assert.LessOrEqual(t, q.Len(), capacity)
					assert.True(t, q.SignOut(e))
				}
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 0, q.Len())
}
