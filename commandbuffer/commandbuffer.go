package commandbuffer

import (
	"sort"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/assert"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/camera"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
)

// RenderCommand is one draw request. It references but doesn't own its mesh and material.
type RenderCommand struct {
	Mesh          *meshes.Mesh
	Material      *materials.Material
	Transform     gglm.Mat4
	PrevTransform gglm.Mat4

	// World space bounds
	BoxMin gglm.Vec3
	BoxMax gglm.Vec3

	// Target is the render target for custom commands. nil is the default target.
	Target *buffers.Framebuffer
}

// CommandBuffer classifies pushed commands into the lists the frame passes consume.
// Everything it returns is only valid until the next Clear.
type CommandBuffer struct {
	deferred []RenderCommand
	alpha    []RenderCommand
	post     []RenderCommand

	custom map[*buffers.Framebuffer][]RenderCommand

	// Targets in the order they were first pushed to, nil is the default target
	customTargets []*buffers.Framebuffer

	frustum    camera.Frustum
	hasFrustum bool

	// Culled lists, reused every frame
	culledDeferred []RenderCommand
	culledAlpha    []RenderCommand
}

func New() *CommandBuffer {
	return &CommandBuffer{
		deferred:       make([]RenderCommand, 0, 256),
		alpha:          make([]RenderCommand, 0, 32),
		post:           make([]RenderCommand, 0, 4),
		custom:         make(map[*buffers.Framebuffer][]RenderCommand),
		customTargets:  make([]*buffers.Framebuffer, 0, 4),
		culledDeferred: make([]RenderCommand, 0, 256),
		culledAlpha:    make([]RenderCommand, 0, 32),
	}
}

// Push adds one command. A nil mesh is only allowed for post process materials.
func (cb *CommandBuffer) Push(mesh *meshes.Mesh, mat *materials.Material, transform, prevTransform *gglm.Mat4, boxMin, boxMax *gglm.Vec3, target *buffers.Framebuffer) {

	assert.T(mat != nil, "CommandBuffer.Push got a nil material")
	assert.T(mesh != nil || mat.Type() == materials.MaterialType_PostProcess, "CommandBuffer.Push got a nil mesh for material '%s' of type %s", mat.Name, mat.Type())

	cmd := RenderCommand{
		Mesh:          mesh,
		Material:      mat,
		Transform:     *transform,
		PrevTransform: *prevTransform,
		BoxMin:        *boxMin,
		BoxMax:        *boxMax,
		Target:        target,
	}

	if mat.Type() == materials.MaterialType_PostProcess {
		cb.post = append(cb.post, cmd)
		return
	}

	if mat.IsBlended() {
		cb.alpha = append(cb.alpha, cmd)
		return
	}

	switch mat.Type() {
	case materials.MaterialType_Default:
		cb.deferred = append(cb.deferred, cmd)

	case materials.MaterialType_Custom:

		list, ok := cb.custom[target]
		if !ok {
			cb.customTargets = append(cb.customTargets, target)
		}

		cb.custom[target] = append(list, cmd)

	default:
		assert.T(false, "unknown material type %d on material '%s'", mat.Type(), mat.Name)
	}
}

// Clear empties every list, keeping their capacity.
func (cb *CommandBuffer) Clear() {

	cb.deferred = cb.deferred[:0]
	cb.alpha = cb.alpha[:0]
	cb.post = cb.post[:0]
	cb.culledDeferred = cb.culledDeferred[:0]
	cb.culledAlpha = cb.culledAlpha[:0]

	for k := range cb.custom {
		delete(cb.custom, k)
	}

	cb.customTargets = cb.customTargets[:0]
}

func (cb *CommandBuffer) Len() int {

	count := len(cb.deferred) + len(cb.alpha) + len(cb.post)
	for _, l := range cb.custom {
		count += len(l)
	}

	return count
}

// SetFrustum sets the frustum used by the culling Get functions
func (cb *CommandBuffer) SetFrustum(f camera.Frustum) {
	cb.frustum = f
	cb.hasFrustum = true
}

func (cb *CommandBuffer) cull(list, out []RenderCommand) []RenderCommand {

	out = out[:0]
	for i := 0; i < len(list); i++ {

		c := &list[i]
		if cb.frustum.IntersectsAABB(&c.BoxMin, &c.BoxMax) {
			out = append(out, *c)
		}
	}

	return out
}

// GetDeferredCommands returns opaque commands with default materials.
// Culling does nothing until a frustum is set with SetFrustum.
func (cb *CommandBuffer) GetDeferredCommands(cullByFrustum bool) []RenderCommand {

	if cullByFrustum && cb.hasFrustum {
		cb.culledDeferred = cb.cull(cb.deferred, cb.culledDeferred)
		return cb.culledDeferred
	}

	return cb.deferred
}

// GetAlphaCommands returns every command with a blended material, whatever its type.
func (cb *CommandBuffer) GetAlphaCommands(cullByFrustum bool) []RenderCommand {

	if cullByFrustum && cb.hasFrustum {
		cb.culledAlpha = cb.cull(cb.alpha, cb.culledAlpha)
		return cb.culledAlpha
	}

	return cb.alpha
}

// GetCustomCommands returns the opaque custom commands addressed to target, nil being the default target.
func (cb *CommandBuffer) GetCustomCommands(target *buffers.Framebuffer) []RenderCommand {
	return cb.custom[target]
}

// CustomTargets returns the non-default targets custom commands were pushed to, in first push order.
func (cb *CommandBuffer) CustomTargets() []*buffers.Framebuffer {

	out := make([]*buffers.Framebuffer, 0, len(cb.customTargets))
	for _, t := range cb.customTargets {
		if t != nil {
			out = append(out, t)
		}
	}

	return out
}

// GetShadowCastCommands returns all non post process commands whose material casts shadows.
func (cb *CommandBuffer) GetShadowCastCommands() []RenderCommand {

	out := make([]RenderCommand, 0, len(cb.deferred))

	appendCasters := func(list []RenderCommand) {
		for i := 0; i < len(list); i++ {
			if list[i].Material.CastsShadows() {
				out = append(out, list[i])
			}
		}
	}

	appendCasters(cb.deferred)
	for _, t := range cb.customTargets {
		appendCasters(cb.custom[t])
	}
	appendCasters(cb.alpha)

	return out
}

// GetPostProcessingCommands returns post process commands in push order.
func (cb *CommandBuffer) GetPostProcessingCommands() []RenderCommand {
	return cb.post
}

// Sort groups commands by shader program then by bound textures to reduce state changes.
// The sort is stable so sorting an already sorted buffer changes nothing.
// The post process list is never reordered since its chaining depends on push order.
func (cb *CommandBuffer) Sort() {

	sortList(cb.deferred)
	sortList(cb.alpha)
	for _, l := range cb.custom {
		sortList(l)
	}
}

func sortList(list []RenderCommand) {
	sort.SliceStable(list, func(i, j int) bool {
		return lessByState(list[i].Material, list[j].Material)
	})
}

func lessByState(a, b *materials.Material) bool {

	if a.ShaderProg.Id != b.ShaderProg.Id {
		return a.ShaderProg.Id < b.ShaderProg.Id
	}

	for i := 0; i < len(a.Textures); i++ {

		ta, tb := texId(a.Textures[i]), texId(b.Textures[i])
		if ta != tb {
			return ta < tb
		}
	}

	return false
}

func texId(t *buffers.Texture) uint32 {

	if t == nil {
		return 0
	}

	return t.Id
}
