package dynbloom

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockedBasic(t *testing.T) {
	l := NewLocked(mustNew(t, 1000, 0.01))

	require.False(t, l.Add([]byte("hello")))
	require.True(t, l.Add([]byte("hello")))
	require.False(t, l.AddString("world"))

	require.True(t, l.Test([]byte("hello")))
	require.True(t, l.TestString("world"))
	require.Equal(t, uint64(2), l.Count())
}

func TestLockedConcurrent(t *testing.T) {
	sets := map[string]Set{
		"filter":   mustNew(t, 100000, 0.01),
		"scalable": mustScalable(t, WithInitialCapacity(1000)),
		"dynamic":  mustDynamic(t, WithBaseCapacity(1000)),
	}

	for name, set := range sets {
		t.Run(name, func(t *testing.T) {
			l := NewLocked(set)

			const numGoroutines = 8
			const itemsPerGoroutine = 5000

			var wg sync.WaitGroup
			wg.Add(numGoroutines)

			for g := range numGoroutines {
				go func(goroutineID int) {
					defer wg.Done()
					for i := range itemsPerGoroutine {
						l.AddString(fmt.Sprintf("g%d-item-%d", goroutineID, i))
					}
				}(g)
			}

			wg.Wait()

			// Verify all items are present
			var missing int
			for g := range numGoroutines {
				for i := range itemsPerGoroutine {
					if !l.TestString(fmt.Sprintf("g%d-item-%d", g, i)) {
						missing++
					}
				}
			}
			require.Zero(t, missing)
			require.LessOrEqual(t, l.Count(), uint64(numGoroutines*itemsPerGoroutine))
		})
	}
}

func TestLockedConcurrentMixed(t *testing.T) {
	l := NewLocked(mustScalable(t, WithInitialCapacity(256)))

	const numGoroutines = 8
	const opsPerGoroutine = 5000

	// Pre-populate with some items
	for i := range 1000 {
		l.AddString(fmt.Sprintf("prepop-%d", i))
	}

	var wg sync.WaitGroup
	wg.Add(numGoroutines * 2) // writers and readers

	// Writers
	for g := range numGoroutines {
		go func(goroutineID int) {
			defer wg.Done()
			for i := range opsPerGoroutine {
				l.AddString(fmt.Sprintf("write-g%d-%d", goroutineID, i))
			}
		}(g)
	}

	// Readers
	errs := make(chan string, numGoroutines)
	for g := range numGoroutines {
		go func(goroutineID int) {
			defer wg.Done()
			for i := range opsPerGoroutine {
				// Prepopulated items must stay present while shards are appended.
				if !l.TestString(fmt.Sprintf("prepop-%d", i%1000)) {
					errs <- fmt.Sprintf("prepop-%d missing", i%1000)
					return
				}
				l.TestString(fmt.Sprintf("write-g%d-%d", goroutineID, i))
			}
		}(g)
	}

	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestLockedViewUpdate(t *testing.T) {
	l := NewLocked(mustDynamic(t, WithBaseCapacity(10)))

	l.Update(func(s Set) {
		for _, c := range letters {
			s.AddString(c)
		}
	})

	var data []byte
	l.View(func(s Set) {
		var err error
		data, err = s.(*DynamicFilter).MarshalBinary()
		require.NoError(t, err)
	})

	restored, err := UnmarshalDynamic(data)
	require.NoError(t, err)
	require.Equal(t, 3, restored.NumShards())
	for _, c := range letters {
		require.True(t, restored.TestString(c))
	}
}
