package renderer

import (
	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/glstate"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/resources"
	"github.com/bloeys/lumen/shaders"
)

// Device is the graphics API the renderer drives. Pipeline state changes (the glstate.Applier part)
// are only ever issued through the renderer's glstate.Cache.
type Device interface {
	resources.Device
	glstate.Applier

	BindFramebuffer(fboId uint32)
	Viewport(x, y int32, width, height uint32)

	// Clear clears the bound framebuffer. Color is applied to every color attachment.
	Clear(color gglm.Vec4, clearColor, clearDepth bool)

	BindTexture(slot materials.TextureSlot, tex *buffers.Texture)

	// SetUniforms uploads u to prog. Values persist in the program like OpenGL uniforms do.
	SetUniforms(prog shaders.ShaderProgram, u *materials.Uniforms)

	// DrawMesh draws every submesh of mesh with the current program and state
	DrawMesh(mesh *meshes.Mesh)

	// BlitDepth copies the depth attachment of src into dst, scaling if sizes differ
	BlitDepth(src, dst *buffers.Framebuffer)

	GenerateMipmaps(tex *buffers.Texture)
}
