package camera

import (
	"github.com/bloeys/gglm/gglm"
	"github.com/chewxy/math32"
)

// Frustum planes are stored as (a, b, c, d) with ax+by+cz+d >= 0 for points inside.
// Order: left, right, bottom, top, near, far.
type Frustum struct {
	Planes [6]gglm.Vec4
}

// NewFrustum extracts the 6 clip planes from a projection*view matrix (Gribb/Hartmann).
func NewFrustum(projView *gglm.Mat4) Frustum {

	row := func(r int) [4]float32 {
		return [4]float32{projView.Data[0][r], projView.Data[1][r], projView.Data[2][r], projView.Data[3][r]}
	}

	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	f := Frustum{}
	for i := 0; i < 4; i++ {
		f.Planes[0].Data[i] = r3[i] + r0[i]
		f.Planes[1].Data[i] = r3[i] - r0[i]
		f.Planes[2].Data[i] = r3[i] + r1[i]
		f.Planes[3].Data[i] = r3[i] - r1[i]
		f.Planes[4].Data[i] = r3[i] + r2[i]
		f.Planes[5].Data[i] = r3[i] - r2[i]
	}

	for i := 0; i < len(f.Planes); i++ {

		p := &f.Planes[i]
		l := math32.Sqrt(p.Data[0]*p.Data[0] + p.Data[1]*p.Data[1] + p.Data[2]*p.Data[2])
		if l == 0 {
			continue
		}

		p.Data[0] /= l
		p.Data[1] /= l
		p.Data[2] /= l
		p.Data[3] /= l
	}

	return f
}

// IntersectsAABB tests the box's most positive vertex against every plane.
// Conservative: boxes near frustum corners may be reported as visible.
func (f *Frustum) IntersectsAABB(boxMin, boxMax *gglm.Vec3) bool {

	for i := 0; i < len(f.Planes); i++ {

		p := &f.Planes[i]
		a, b, c, d := p.Data[0], p.Data[1], p.Data[2], p.Data[3]

		px := boxMax.X()
		if a < 0 {
			px = boxMin.X()
		}

		py := boxMax.Y()
		if b < 0 {
			py = boxMin.Y()
		}

		pz := boxMax.Z()
		if c < 0 {
			pz = boxMin.Z()
		}

		if a*px+b*py+c*pz+d < 0 {
			return false
		}
	}

	return true
}

func (f *Frustum) IntersectsSphere(center *gglm.Vec3, radius float32) bool {

	for i := 0; i < len(f.Planes); i++ {

		p := &f.Planes[i]
		dist := p.Data[0]*center.X() + p.Data[1]*center.Y() + p.Data[2]*center.Z() + p.Data[3]
		if dist < -radius {
			return false
		}
	}

	return true
}

func (f *Frustum) ContainsPoint(point *gglm.Vec3) bool {
	return f.IntersectsSphere(point, 0)
}
