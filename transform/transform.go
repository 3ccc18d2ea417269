// Package transform has small helpers over gglm matrices that the pipeline needs
// in many places: building model matrices and moving points and boxes between spaces.
//
// gglm matrices are column major, so Data[col][row].
package transform

import (
	"math"

	"github.com/bloeys/gglm/gglm"
	"github.com/chewxy/math32"
)

func Identity() gglm.Mat4 {
	return gglm.Mat4{
		Data: [4][4]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 1, 0},
			{0, 0, 0, 1},
		},
	}
}

// Mul returns a*b without modifying either.
func Mul(a, b gglm.Mat4) gglm.Mat4 {
	out := a
	out.Mul(&b)
	return out
}

// TranslateScale returns T(pos)*S(scale, scale, scale).
func TranslateScale(pos *gglm.Vec3, scale float32) gglm.Mat4 {

	m := Identity()
	m.Data[0][0] = scale
	m.Data[1][1] = scale
	m.Data[2][2] = scale
	m.Data[3][0] = pos.X()
	m.Data[3][1] = pos.Y()
	m.Data[3][2] = pos.Z()

	return m
}

func Translation(x, y, z float32) gglm.Mat4 {
	m := Identity()
	m.Data[3][0] = x
	m.Data[3][1] = y
	m.Data[3][2] = z
	return m
}

// Position returns the translation part of a model matrix.
func Position(m *gglm.Mat4) gglm.Vec3 {
	return gglm.NewVec3(m.Data[3][0], m.Data[3][1], m.Data[3][2])
}

// MulPoint returns m*(p, 1) without the perspective divide.
func MulPoint(m *gglm.Mat4, p *gglm.Vec3) (x, y, z, w float32) {

	px, py, pz := p.X(), p.Y(), p.Z()
	x = m.Data[0][0]*px + m.Data[1][0]*py + m.Data[2][0]*pz + m.Data[3][0]
	y = m.Data[0][1]*px + m.Data[1][1]*py + m.Data[2][1]*pz + m.Data[3][1]
	z = m.Data[0][2]*px + m.Data[1][2]*py + m.Data[2][2]*pz + m.Data[3][2]
	w = m.Data[0][3]*px + m.Data[1][3]*py + m.Data[2][3]*pz + m.Data[3][3]
	return x, y, z, w
}

// TransformAABB transforms the 8 corners of a box and returns the enclosing axis aligned box.
func TransformAABB(m *gglm.Mat4, boxMin, boxMax *gglm.Vec3) (outMin, outMax gglm.Vec3) {

	outMin = gglm.NewVec3(math.MaxFloat32, math.MaxFloat32, math.MaxFloat32)
	outMax = gglm.NewVec3(-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32)

	for i := 0; i < 8; i++ {

		corner := gglm.NewVec3(boxMin.X(), boxMin.Y(), boxMin.Z())
		if i&1 != 0 {
			corner.Data[0] = boxMax.X()
		}
		if i&2 != 0 {
			corner.Data[1] = boxMax.Y()
		}
		if i&4 != 0 {
			corner.Data[2] = boxMax.Z()
		}

		x, y, z, _ := MulPoint(m, &corner)
		outMin.Data[0] = math32.Min(outMin.Data[0], x)
		outMin.Data[1] = math32.Min(outMin.Data[1], y)
		outMin.Data[2] = math32.Min(outMin.Data[2], z)
		outMax.Data[0] = math32.Max(outMax.Data[0], x)
		outMax.Data[1] = math32.Max(outMax.Data[1], y)
		outMax.Data[2] = math32.Max(outMax.Data[2], z)
	}

	return outMin, outMax
}

// DistSqr returns the squared distance between two points.
func DistSqr(a, b *gglm.Vec3) float32 {
	dx := a.X() - b.X()
	dy := a.Y() - b.Y()
	dz := a.Z() - b.Z()
	return dx*dx + dy*dy + dz*dz
}

// NormalMat returns the inverse transpose of the upper 3x3 of m. Singular matrices return identity.
func NormalMat(m *gglm.Mat4) gglm.Mat3 {

	a := m.Data
	c00 := a[1][1]*a[2][2] - a[2][1]*a[1][2]
	c01 := a[2][1]*a[0][2] - a[0][1]*a[2][2]
	c02 := a[0][1]*a[1][2] - a[1][1]*a[0][2]

	det := a[0][0]*c00 + a[1][0]*c01 + a[2][0]*c02
	if math32.Abs(det) < 1e-12 {
		return gglm.Mat3{Data: [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
	}

	inv := 1 / det

	// Inverse transpose equals the cofactor matrix divided by the determinant
	out := gglm.Mat3{}
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			c1, c2 := (col+1)%3, (col+2)%3
			r1, r2 := (row+1)%3, (row+2)%3
			out.Data[col][row] = (a[c1][r1]*a[c2][r2] - a[c2][r1]*a[c1][r2]) * inv
		}
	}

	return out
}
