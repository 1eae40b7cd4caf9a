package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeNCoversEveryItem(t *testing.T) {
	for _, items := range []int{0, 1, 7, 100, 1001} {
		seen := make([]int32, items)
		ParallelizeN(items, 0, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, n := range seen {
			assert.Equal(t, int32(1), n, "item %d of %d", i, items)
		}
	}
}

func TestParallelizeNSingleWorker(t *testing.T) {
	var calls int32
	ParallelizeN(50, 1, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 50, end)
	})
	assert.Equal(t, int32(1), calls)
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 1, Workers(4, 0))
	assert.Equal(t, 3, Workers(8, 3))
	assert.Equal(t, 2, Workers(2, 100))
	want := runtime.NumCPU()
	if want > 100 {
		want = 100
	}
	assert.Equal(t, want, Workers(-1, 100))
}
