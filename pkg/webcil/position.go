package webcil

import "fmt"

// FilePosition is an absolute offset into a file. Positions are values:
// arithmetic returns a new position instead of updating one in place.
type FilePosition uint32

// Add returns the position n bytes after p.
func (p FilePosition) Add(n uint32) FilePosition {
	return p + FilePosition(n)
}

// Distance returns p - q as a signed byte count.
func (p FilePosition) Distance(q FilePosition) int64 {
	return int64(p) - int64(q)
}

func (p FilePosition) String() string {
	return fmt.Sprintf("0x%x", uint32(p))
}
