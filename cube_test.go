package lst

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCube(t *testing.T) {
	t.Run("NewCubeIsZeroed", func(t *testing.T) {
		cube := NewCube(3, 4, 5)
		require.Equal(t, []int{3, 4, 5}, cube.Shape())
		require.Len(t, cube.Data, 60)
		require.Equal(t, uint64(0), cube.Sum())
	})

	t.Run("IncrAndAt", func(t *testing.T) {
		cube := NewCube(3, 4, 5)
		cube.Incr(2, 1, 3)
		cube.Incr(2, 1, 3)
		cube.Incr(0, 0, 0)

		require.Equal(t, uint32(2), cube.At(2, 1, 3))
		require.Equal(t, uint32(1), cube.At(0, 0, 0))
		require.Equal(t, uint32(0), cube.At(1, 1, 1))
		require.Equal(t, uint64(3), cube.Sum())
	})

	t.Run("RowMajorLayout", func(t *testing.T) {
		cube := NewCube(2, 3, 4)
		require.Equal(t, 0, cube.Index(0, 0, 0))
		require.Equal(t, 3, cube.Index(0, 0, 3))
		require.Equal(t, 4, cube.Index(0, 1, 0))
		require.Equal(t, 12, cube.Index(1, 0, 0))
		require.Equal(t, 23, cube.Index(1, 2, 3))
	})

	t.Run("SliceZ", func(t *testing.T) {
		cube := NewCube(2, 2, 4)
		for i := range cube.Data {
			cube.Data[i] = uint32(i)
		}

		sub := cube.SliceZ(1, 3)
		require.Equal(t, []int{2, 2, 2}, sub.Shape())

		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				require.Equal(t, cube.At(y, x, 1), sub.At(y, x, 0))
				require.Equal(t, cube.At(y, x, 2), sub.At(y, x, 1))
			}
		}

		// the slice is a copy, not a view
		sub.Incr(0, 0, 0)
		require.NotEqual(t, cube.At(0, 0, 1), sub.At(0, 0, 0))
	})
}

func TestAddCube(t *testing.T) {
	fill := func() *Cube {
		cube := NewCube(2, 3, 3)
		values := []uint32{1, 2, 3, 6, 7, 8, 1, 2, 3, 1, 2, 3, 6, 7, 8, 1, 2, 3}
		copy(cube.Data, values)
		return cube
	}

	t.Run("Elementwise", func(t *testing.T) {
		dst := fill()
		src := fill()

		AddCube(dst, src)
		require.Equal(t, []int{2, 3, 3}, dst.Shape())
		require.Equal(t, uint32(2), dst.At(0, 0, 0))
		require.Equal(t, uint32(14), dst.At(0, 1, 1))
		require.Equal(t, uint32(6), dst.At(1, 2, 2))

		AddCube(dst, fill())
		require.Equal(t, uint32(3), dst.At(0, 0, 0))
		require.Equal(t, uint32(21), dst.At(0, 1, 1))
		require.Equal(t, uint32(9), dst.At(1, 2, 2))
	})

	t.Run("ShallowerSourceFillsLeadingChannels", func(t *testing.T) {
		dst := NewCube(2, 2, 6)
		src := NewCube(2, 2, 2)
		src.Incr(1, 0, 1)

		AddCube(dst, src)
		require.Equal(t, uint32(1), dst.At(1, 0, 1))
		require.Equal(t, uint64(1), dst.Sum())
	})
}
