package materials

import (
	"github.com/bloeys/gglm/gglm"
)

// Uniforms holds uniform values by name until a device uploads them to a program.
type Uniforms struct {
	Int32s   map[string]int32
	Float32s map[string]float32
	Vec2s    map[string]gglm.Vec2
	Vec3s    map[string]gglm.Vec3
	Vec4s    map[string]gglm.Vec4
	Mat3s    map[string]gglm.Mat3
	Mat4s    map[string]gglm.Mat4
}

func NewUniforms() Uniforms {
	return Uniforms{
		Int32s:   map[string]int32{},
		Float32s: map[string]float32{},
		Vec2s:    map[string]gglm.Vec2{},
		Vec3s:    map[string]gglm.Vec3{},
		Vec4s:    map[string]gglm.Vec4{},
		Mat3s:    map[string]gglm.Mat3{},
		Mat4s:    map[string]gglm.Mat4{},
	}
}

func (u *Uniforms) SetInt32(name string, val int32) { u.Int32s[name] = val }
func (u *Uniforms) SetFloat32(name string, val float32) { u.Float32s[name] = val }
func (u *Uniforms) SetVec2(name string, val *gglm.Vec2) { u.Vec2s[name] = *val }
func (u *Uniforms) SetVec3(name string, val *gglm.Vec3) { u.Vec3s[name] = *val }
func (u *Uniforms) SetVec4(name string, val *gglm.Vec4) { u.Vec4s[name] = *val }
func (u *Uniforms) SetMat3(name string, val *gglm.Mat3) { u.Mat3s[name] = *val }
func (u *Uniforms) SetMat4(name string, val *gglm.Mat4) { u.Mat4s[name] = *val }

func (u *Uniforms) Len() int {
	return len(u.Int32s) + len(u.Float32s) + len(u.Vec2s) + len(u.Vec3s) + len(u.Vec4s) + len(u.Mat3s) + len(u.Mat4s)
}

// Reset empties the store while keeping the allocated maps
func (u *Uniforms) Reset() {
	clear(u.Int32s)
	clear(u.Float32s)
	clear(u.Vec2s)
	clear(u.Vec3s)
	clear(u.Vec4s)
	clear(u.Mat3s)
	clear(u.Mat4s)
}
