package lst

// Cube is a dense row-major 3-D histogram of uint32 counts.
// The axes are ordered [y, x, channel]; Data holds Ny*Nx*Nz cells with the
// channel axis varying fastest.
// Realistic acquisitions deposit far fewer than 2^32 counts per cell, so
// plain increments are safe.
type Cube struct {
	Ny   int
	Nx   int
	Nz   int
	Data []uint32
}

// NewCube allocates a zeroed cube of the given extents.
func NewCube(ny, nx, nz int) *Cube {
	return &Cube{
		Ny:   ny,
		Nx:   nx,
		Nz:   nz,
		Data: make([]uint32, ny*nx*nz),
	}
}

// Index is the flat offset of cell (y, x, z).
func (c *Cube) Index(y, x, z int) int {
	return (y*c.Nx+x)*c.Nz + z
}

// At reads cell (y, x, z).
func (c *Cube) At(y, x, z int) uint32 {
	return c.Data[c.Index(y, x, z)]
}

// Incr deposits one count into cell (y, x, z).
func (c *Cube) Incr(y, x, z int) {
	c.Data[c.Index(y, x, z)]++
}

// Sum totals every cell of the cube.
func (c *Cube) Sum() uint64 {
	total := uint64(0)
	for _, value := range c.Data {
		total += uint64(value)
	}

	return total
}

// Shape returns the cube extents as [ny, nx, nz].
func (c *Cube) Shape() []int {
	return []int{c.Ny, c.Nx, c.Nz}
}

// SliceZ copies the depth range [z_lo, z_hi) into a new cube sharing the
// same y/x plane.
func (c *Cube) SliceZ(z_lo, z_hi int) *Cube {
	sub := NewCube(c.Ny, c.Nx, z_hi-z_lo)

	for y := 0; y < c.Ny; y++ {
		for x := 0; x < c.Nx; x++ {
			base := c.Index(y, x, 0)
			copy(sub.Data[sub.Index(y, x, 0):], c.Data[base+z_lo:base+z_hi])
		}
	}

	return sub
}

// AddCube sums src elementwise into dst.
// The summation is over src's extents; a shallower src accumulates into the
// leading src.Nz channel positions of dst. dst must span at least src's
// extents on every axis.
func AddCube(dst, src *Cube) {
	for y := 0; y < src.Ny; y++ {
		for x := 0; x < src.Nx; x++ {
			for z := 0; z < src.Nz; z++ {
				dst.Data[dst.Index(y, x, z)] += src.At(y, x, z)
			}
		}
	}
}
