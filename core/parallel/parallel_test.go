package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryIndexOnce(t *testing.T) {
	for _, items := range []int{1, 7, 100, 1013} {
		hits := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			assert.Equal(t, int32(1), h, "items=%d index=%d", items, i)
		}
	}
}

func TestParallelizeN(t *testing.T) {
	var calls int32
	ParallelizeN(10, 3, func(start, end int) {
		atomic.AddInt32(&calls, 1)
	})
	assert.Equal(t, int32(3), calls)

	calls = 0
	ParallelizeN(0, 4, func(start, end int) { atomic.AddInt32(&calls, 1) })
	assert.Equal(t, int32(0), calls)
}

func TestParallelizeWithThreshold(t *testing.T) {
	var ranges [][2]int
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		ranges = append(ranges, [2]int{start, end})
	})
	assert.Equal(t, [][2]int{{0, 5}}, ranges)
}
