package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule(t *testing.T) {
	t.Run("25 docs batch 10", func(t *testing.T) {
		batches := Schedule(25, 10)
		require.Len(t, batches, 3)
		assert.Equal(t, Batch{Start: 0, End: 10}, batches[0])
		assert.Equal(t, Batch{Start: 10, End: 20}, batches[1])
		assert.Equal(t, Batch{Start: 20, End: 25}, batches[2])
		assert.Equal(t, 10, batches[0].Size())
		assert.Equal(t, 5, batches[2].Size())
	})

	t.Run("exact multiple", func(t *testing.T) {
		batches := Schedule(20, 10)
		require.Len(t, batches, 2)
		assert.Equal(t, Batch{Start: 10, End: 20}, batches[1])
	})

	t.Run("single short batch", func(t *testing.T) {
		batches := Schedule(3, 10)
		require.Len(t, batches, 1)
		assert.Equal(t, Batch{Start: 0, End: 3}, batches[0])
	})

	t.Run("empty manifest", func(t *testing.T) {
		assert.Empty(t, Schedule(0, 10))
	})

	t.Run("covers manifest exactly once", func(t *testing.T) {
		for _, total := range []int{1, 7, 10, 11, 99, 100, 101} {
			batches := Schedule(total, 7)
			next := 0
			for _, b := range batches {
				assert.Equal(t, next, b.Start)
				assert.LessOrEqual(t, b.Size(), 7)
				assert.Positive(t, b.Size())
				next = b.End
			}
			assert.Equal(t, total, next)
		}
	})
}
