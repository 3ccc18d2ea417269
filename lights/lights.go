package lights

import (
	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/transform"
	"github.com/chewxy/math32"
)

var (
	DirLightShadowSize float32 = 30
	DirLightShadowNear float32 = 0.1
	DirLightShadowFar  float32 = 60
)

// DirectionalLight fields are read when the frame is rendered, not when the light is added.
type DirectionalLight struct {
	Direction   gglm.Vec3
	Color       gglm.Vec3
	Intensity   float32
	CastShadows bool

	// Set by the renderer during the shadow pass. A nil target means this light is drawn unshadowed.
	ShadowTarget             *buffers.Framebuffer
	LightSpaceViewProjection gglm.Mat4
}

// ComputeLightSpaceViewProjection returns an orthographic view-projection looking along the light
// direction, centered on focus.
func (d *DirectionalLight) ComputeLightSpaceViewProjection(focus *gglm.Vec3) gglm.Mat4 {

	dir := d.Direction
	if dir.X() == 0 && dir.Y() == 0 && dir.Z() == 0 {
		dir = gglm.NewVec3(0, -1, 0)
	}
	dir = *dir.Normalize()

	// Some arbitrary position behind the focus point along the light direction
	backDist := DirLightShadowFar * 0.5
	pos := gglm.NewVec3(
		focus.X()-dir.X()*backDist,
		focus.Y()-dir.Y()*backDist,
		focus.Z()-dir.Z()*backDist,
	)

	// LookAt breaks when the direction and up are parallel
	up := gglm.NewVec3(0, 1, 0)
	if math32.Abs(gglm.DotVec3(&dir, &up)) > 0.99 {
		up = gglm.NewVec3(1, 0, 0)
	}

	size := DirLightShadowSize
	projMat := gglm.Ortho(-size, size, -size, size, DirLightShadowNear, DirLightShadowFar).Mat4
	viewMat := gglm.LookAtRH(&pos, focus, &up).Mat4

	return *projMat.Mul(&viewMat)
}

// PointLight is lit by drawing a sphere volume of Radius around Position.
type PointLight struct {
	Position  gglm.Vec3
	Color     gglm.Vec3
	Intensity float32
	Radius    float32
}

// VolumeTransform returns the model matrix that scales a unit sphere to the light volume.
func (p *PointLight) VolumeTransform() gglm.Mat4 {
	return transform.TranslateScale(&p.Position, p.Radius)
}
