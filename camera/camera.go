package camera

import (
	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/transform"
	"github.com/chewxy/math32"
)

type Type int32

const (
	Type_Unknown Type = iota
	Type_Perspective
	Type_Orthographic
)

type Camera struct {
	Type Type

	Pos     gglm.Vec3
	Forward gglm.Vec3
	WorldUp gglm.Vec3

	NearClip float32
	FarClip  float32

	// Perspective only
	Fov         float32
	AspectRatio float32

	// Orthographic only
	Left   float32
	Right  float32
	Top    float32
	Bottom float32

	ViewMat gglm.Mat4
	ProjMat gglm.Mat4
}

// Update recalculates the view and projection matrices from the camera fields.
func (c *Camera) Update() {

	up := c.WorldUp

	// LookAt breaks when forward and up are parallel
	if math32.Abs(gglm.DotVec3(&c.Forward, &up)) > 0.999 {
		up = gglm.NewVec3(0, 0, 1)
	}

	c.ViewMat = gglm.LookAtRH(&c.Pos, c.Pos.Clone().Add(&c.Forward), &up).Mat4

	if c.Type == Type_Perspective {
		projMat := gglm.Perspective(c.Fov, c.AspectRatio, c.NearClip, c.FarClip)
		c.ProjMat = *projMat.Clone()
	} else {
		c.ProjMat = gglm.Ortho(c.Left, c.Right, c.Top, c.Bottom, c.NearClip, c.FarClip).Mat4
	}
}

// UpdateRotation sets the forward vector from pitch and yaw (radians) and updates the matrices.
func (c *Camera) UpdateRotation(pitch, yaw float32) {

	dir := gglm.NewVec3(
		math32.Cos(yaw)*math32.Cos(pitch),
		math32.Sin(pitch),
		math32.Sin(yaw)*math32.Cos(pitch),
	)

	c.Forward = *dir.Normalize()
	c.Update()
}

// SetAspectRatio only matters for perspective cameras. The matrices are recalculated.
func (c *Camera) SetAspectRatio(aspect float32) {
	c.AspectRatio = aspect
	c.Update()
}

func (c *Camera) ProjViewMat() gglm.Mat4 {
	return transform.Mul(c.ProjMat, c.ViewMat)
}

func (c *Camera) Frustum() Frustum {
	projView := c.ProjViewMat()
	return NewFrustum(&projView)
}

func NewPerspective(pos, forward, worldUp *gglm.Vec3, nearClip, farClip, fovRadians, aspectRatio float32) Camera {

	cam := Camera{
		Type:        Type_Perspective,
		Pos:         *pos,
		Forward:     *forward,
		WorldUp:     *worldUp,
		NearClip:    nearClip,
		FarClip:     farClip,
		Fov:         fovRadians,
		AspectRatio: aspectRatio,
	}

	cam.Update()
	return cam
}

func NewOrthographic(pos, forward, worldUp *gglm.Vec3, nearClip, farClip, left, right, top, bottom float32) Camera {

	cam := Camera{
		Type:     Type_Orthographic,
		Pos:      *pos,
		Forward:  *forward,
		WorldUp:  *worldUp,
		NearClip: nearClip,
		FarClip:  farClip,
		Left:     left,
		Right:    right,
		Top:      top,
		Bottom:   bottom,
	}

	cam.Update()
	return cam
}
