// File: sequence/sequence_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sequence

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/cpu"
)

func TestSequenceInitialValue(t *testing.T) {
	s := New()
	assert.Equal(t, InitialValue, s.Get())

	s2 := NewAt(41)
	assert.Equal(t, int64(41), s2.Get())
}

func TestSequenceSetGet(t *testing.T) {
	s := New()
	s.Set(7)
	assert.Equal(t, int64(7), s.Get())
	s.Set(8)
	assert.Equal(t, int64(8), s.Get())
}

func TestSequenceCompareAndSet(t *testing.T) {
	s := NewAt(5)
	assert.True(t, s.CompareAndSet(5, 6))
	assert.Equal(t, int64(6), s.Get())
	assert.False(t, s.CompareAndSet(5, 7))
	assert.Equal(t, int64(6), s.Get())
}

func TestSequenceIncrementAndGet(t *testing.T) {
	s := New()
	assert.Equal(t, int64(0), s.IncrementAndGet())
	assert.Equal(t, int64(1), s.IncrementAndGet())
	assert.Equal(t, int64(4), s.AddAndGet(3))
}

// Concurrent increments must never lose an update.
func TestSequenceConcurrentIncrement(t *testing.T) {
	s := New()
	goroutines := 8
	perG := 10000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				s.IncrementAndGet()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, InitialValue+int64(goroutines*perG), s.Get())
}

// The value must sit on its own cache line: one pad before, one after.
func TestSequencePadding(t *testing.T) {
	padSize := uint64(unsafe.Sizeof(cpu.CacheLinePad{}))
	require.GreaterOrEqual(t, uint64(unsafe.Sizeof(Sequence{})), 2*padSize+8)
}

func TestGroupMinimum(t *testing.T) {
	a := NewAt(10)
	b := NewAt(3)
	c := NewAt(7)
	g := NewGroup(a, b, c)

	assert.Equal(t, int64(3), g.Minimum(100))
	assert.Equal(t, int64(3), g.Get())
	assert.Equal(t, 3, g.Size())

	b.Set(20)
	assert.Equal(t, int64(7), g.Get())
}

func TestEmptyGroup(t *testing.T) {
	g := NewGroup()
	assert.Equal(t, int64(42), g.Minimum(42))
	// An empty group must never gate anything.
	assert.Equal(t, int64(^uint64(0)>>1), g.Get())
}
