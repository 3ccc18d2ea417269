package meshes

import (
	"github.com/bloeys/gglm/gglm"
	"github.com/chewxy/math32"
)

// NewScreenQuad returns a quad covering NDC [-1, 1] at z=0, counter clockwise.
func NewScreenQuad() *Mesh {

	positions := []gglm.Vec3{
		gglm.NewVec3(-1, -1, 0),
		gglm.NewVec3(1, -1, 0),
		gglm.NewVec3(1, 1, 0),
		gglm.NewVec3(-1, 1, 0),
	}

	normals := []gglm.Vec3{
		gglm.NewVec3(0, 0, 1),
		gglm.NewVec3(0, 0, 1),
		gglm.NewVec3(0, 0, 1),
		gglm.NewVec3(0, 0, 1),
	}

	uvs := []gglm.Vec2{
		gglm.NewVec2(0, 0),
		gglm.NewVec2(1, 0),
		gglm.NewVec2(1, 1),
		gglm.NewVec2(0, 1),
	}

	return NewMesh("ScreenQuad", positions, normals, nil, uvs, []uint32{0, 1, 2, 0, 2, 3})
}

// NewCube returns a unit cube centered at the origin (extent -1..1) with outward facing, counter clockwise faces.
func NewCube() *Mesh {

	type face struct {
		normal, u, v gglm.Vec3
	}

	faces := []face{
		{gglm.NewVec3(0, 0, 1), gglm.NewVec3(1, 0, 0), gglm.NewVec3(0, 1, 0)},
		{gglm.NewVec3(0, 0, -1), gglm.NewVec3(-1, 0, 0), gglm.NewVec3(0, 1, 0)},
		{gglm.NewVec3(1, 0, 0), gglm.NewVec3(0, 0, -1), gglm.NewVec3(0, 1, 0)},
		{gglm.NewVec3(-1, 0, 0), gglm.NewVec3(0, 0, 1), gglm.NewVec3(0, 1, 0)},
		{gglm.NewVec3(0, 1, 0), gglm.NewVec3(1, 0, 0), gglm.NewVec3(0, 0, -1)},
		{gglm.NewVec3(0, -1, 0), gglm.NewVec3(1, 0, 0), gglm.NewVec3(0, 0, 1)},
	}

	positions := make([]gglm.Vec3, 0, 24)
	normals := make([]gglm.Vec3, 0, 24)
	tangents := make([]gglm.Vec3, 0, 24)
	uvs := make([]gglm.Vec2, 0, 24)
	indices := make([]uint32, 0, 36)

	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for i := 0; i < len(faces); i++ {

		f := &faces[i]
		base := uint32(len(positions))

		for _, c := range corners {

			positions = append(positions, gglm.NewVec3(
				f.normal.X()+f.u.X()*c[0]+f.v.X()*c[1],
				f.normal.Y()+f.u.Y()*c[0]+f.v.Y()*c[1],
				f.normal.Z()+f.u.Z()*c[0]+f.v.Z()*c[1],
			))
			normals = append(normals, f.normal)
			tangents = append(tangents, f.u)
			uvs = append(uvs, gglm.NewVec2((c[0]+1)*0.5, (c[1]+1)*0.5))
		}

		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}

	return NewMesh("Cube", positions, normals, tangents, uvs, indices)
}

// NewSphere returns a unit radius uv sphere with outward facing, counter clockwise triangles.
func NewSphere(xSegments, ySegments uint32) *Mesh {

	if xSegments < 3 {
		xSegments = 3
	}

	if ySegments < 2 {
		ySegments = 2
	}

	vertCount := (xSegments + 1) * (ySegments + 1)
	positions := make([]gglm.Vec3, 0, vertCount)
	normals := make([]gglm.Vec3, 0, vertCount)
	uvs := make([]gglm.Vec2, 0, vertCount)

	for y := uint32(0); y <= ySegments; y++ {
		for x := uint32(0); x <= xSegments; x++ {

			xSeg := float32(x) / float32(xSegments)
			ySeg := float32(y) / float32(ySegments)

			theta := ySeg * math32.Pi
			phi := xSeg * 2 * math32.Pi

			p := gglm.NewVec3(
				math32.Cos(phi)*math32.Sin(theta),
				math32.Cos(theta),
				math32.Sin(phi)*math32.Sin(theta),
			)

			positions = append(positions, p)
			normals = append(normals, p)
			uvs = append(uvs, gglm.NewVec2(xSeg, ySeg))
		}
	}

	indices := make([]uint32, 0, xSegments*ySegments*6)
	stride := xSegments + 1
	for y := uint32(0); y < ySegments; y++ {
		for x := uint32(0); x < xSegments; x++ {

			i0 := y*stride + x
			i1 := i0 + 1
			i2 := i0 + stride
			i3 := i2 + 1

			// Rows go from +y to -y and phi increases towards +z, which makes this winding face outward
			indices = append(indices, i0, i1, i2, i1, i3, i2)
		}
	}

	return NewMesh("Sphere", positions, normals, nil, uvs, indices)
}
