package geo

import "math"

// Cell is an integer grid coordinate at the entity-base level:
// the ground is cell Y-1, body clearance is cells Y and Y+1.
type Cell struct {
	X, Y, Z int
}

// Vec3 is a continuous world-space position.
type Vec3 struct {
	X, Y, Z float64
}

// CellOf converts a world position to its grid cell (floor on every axis).
func CellOf(v Vec3) Cell {
	return Cell{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}

// Center returns the world-space center of the cell at the entity-base level.
func (c Cell) Center() Vec3 {
	return Vec3{X: float64(c.X) + 0.5, Y: float64(c.Y), Z: float64(c.Z) + 0.5}
}

func (c Cell) Offset(dx, dy, dz int) Cell {
	return Cell{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

func (a Vec3) Len() float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}

// Normalized returns the unit vector, or the zero vector for near-zero input.
func (a Vec3) Normalized() Vec3 {
	l := a.Len()
	if l < 1e-9 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

func Dist(a, b Vec3) float64 { return a.Sub(b).Len() }

// DistXZ is the horizontal distance, ignoring height.
func DistXZ(a, b Vec3) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}

// DistSq avoids the square root for comparisons.
func DistSq(a, b Vec3) float64 {
	d := a.Sub(b)
	return d.X*d.X + d.Y*d.Y + d.Z*d.Z
}

// CellDistSq is the squared euclidean distance between cell centers.
func CellDistSq(a, b Cell) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	dz := float64(a.Z - b.Z)
	return dx*dx + dy*dy + dz*dz
}

// Chebyshev is the max per-axis cell distance.
func Chebyshev(a, b Cell) int {
	d := absInt(a.X - b.X)
	if dy := absInt(a.Y - b.Y); dy > d {
		d = dy
	}
	if dz := absInt(a.Z - b.Z); dz > d {
		d = dz
	}
	return d
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
