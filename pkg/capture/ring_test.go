package capture

import (
	"testing"
	"time"

	"github.com/powerlab/wattlog/pkg/types"
)

func sampleAt(i int) types.Sample {
	return types.Sample{
		Time:    time.Unix(int64(i), 0),
		Current: float64(i),
	}
}

func TestRingSnapshotOrder(t *testing.T) {
	cases := []struct {
		name     string
		capacity int
		pushes   int
		first    int // expected Current of the first snapshot entry
		length   int
	}{
		{name: "empty", capacity: 4, pushes: 0, length: 0},
		{name: "partial", capacity: 4, pushes: 3, first: 0, length: 3},
		{name: "exactly full", capacity: 4, pushes: 4, first: 0, length: 4},
		{name: "wrapped once", capacity: 4, pushes: 6, first: 2, length: 4},
		{name: "wrapped many", capacity: 100, pushes: 250, first: 150, length: 100},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewRing(c.capacity)
			for i := 0; i < c.pushes; i++ {
				r.Push(sampleAt(i))
			}

			if got := r.Len(); got != c.length {
				t.Fatalf("Len() = %d, want %d", got, c.length)
			}

			snap := r.Snapshot()
			if len(snap) != c.length {
				t.Fatalf("len(Snapshot()) = %d, want %d", len(snap), c.length)
			}
			for i, s := range snap {
				want := float64(c.first + i)
				if s.Current != want {
					t.Fatalf("snapshot[%d].Current = %v, want %v", i, s.Current, want)
				}
			}
		})
	}
}

func TestRingSnapshotIsACopy(t *testing.T) {
	r := NewRing(4)
	r.Push(sampleAt(1))

	snap := r.Snapshot()
	snap[0].Current = -1

	if got := r.Snapshot()[0].Current; got != 1 {
		t.Fatalf("mutating a snapshot changed the ring: Current = %v, want 1", got)
	}
}

func TestRingCap(t *testing.T) {
	r := NewRing(7)
	if got := r.Cap(); got != 7 {
		t.Fatalf("Cap() = %d, want 7", got)
	}
}

func TestNewRingPanicsOnNonPositiveCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewRing(0) did not panic")
		}
	}()
	NewRing(0)
}
