package renderer

import (
	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/glstate"
	"github.com/bloeys/lumen/logging"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/transform"
)

var clearColor = gglm.NewVec4(0, 0, 0, 0)

// BindTarget binds fbo with a viewport covering it, nil being the default framebuffer at the render size.
// Incomplete targets are logged and not bound, and false is returned so the caller can skip its pass.
func (r *Renderer) BindTarget(fbo *buffers.Framebuffer, clear bool) bool {

	if fbo == nil {
		r.dev.BindFramebuffer(buffers.DefaultFramebufferId)
		r.dev.Viewport(0, 0, r.width, r.height)
	} else {

		if !fbo.IsComplete() {
			logging.ErrLog.Errorf("Render target '%s' (id=%d) is incomplete, skipping pass", fbo.Name, fbo.Id)
			r.stats.SkippedPasses++
			return false
		}

		w, h := fbo.Size()
		r.dev.BindFramebuffer(fbo.Id)
		r.dev.Viewport(0, 0, w, h)
	}

	if clear {
		r.dev.Clear(clearColor, true, true)
	}

	return true
}

// DrawMesh draws mesh with mat into the bound target. Only the material uniforms and the model/normal
// matrices are set, so mat must carry any view-projection its shader needs.
func (r *Renderer) DrawMesh(mesh *meshes.Mesh, mat *materials.Material, model *gglm.Mat4) {
	r.draw(mesh, mat, model, model, nil)
}

func (r *Renderer) GenerateMipmaps(tex *buffers.Texture) {
	r.dev.GenerateMipmaps(tex)
}

// Blit draws a full screen quad with mat into dst (nil is the default framebuffer),
// after binding src to the given texture slot of mat.
func (r *Renderer) Blit(src *buffers.Texture, dst *buffers.Framebuffer, mat *materials.Material, slot materials.TextureSlot) bool {

	mat.SetTexture(slot, src)
	if !r.BindTarget(dst, true) {
		return false
	}

	r.draw(r.quad, mat, &r.identity, &r.identity, nil)
	return true
}

func (r *Renderer) applyMaterialState(mat *materials.Material) {

	s := mat.Settings

	r.state.SetDepthTest(s.Has(materials.MaterialSettings_DepthTest))
	if s.Has(materials.MaterialSettings_DepthTest) {
		r.state.SetDepthFunc(mat.DepthFunc)
	}

	r.state.SetBlend(s.Has(materials.MaterialSettings_Blend))
	if s.Has(materials.MaterialSettings_Blend) {
		r.state.SetBlendFunc(mat.BlendSrc, mat.BlendDst)
	}

	r.state.SetCull(s.Has(materials.MaterialSettings_Cull))
	if s.Has(materials.MaterialSettings_Cull) {
		r.state.SetCullFace(mat.CullFace)
	}

	if r.forceWireframe {
		r.state.SetPolygonMode(glstate.PolygonMode_Line)
	} else {
		r.state.SetPolygonMode(mat.PolygonMode)
	}

	r.state.UseProgram(mat.ShaderProg.Id)
}

// blitDepth copies the depth of src into dst, skipping the copy if either target is incomplete.
func (r *Renderer) blitDepth(src, dst *buffers.Framebuffer) bool {

	for _, fbo := range [2]*buffers.Framebuffer{src, dst} {
		if !fbo.IsComplete() {
			logging.ErrLog.Errorf("Render target '%s' (id=%d) is incomplete, skipping depth copy", fbo.Name, fbo.Id)
			r.stats.SkippedPasses++
			return false
		}
	}

	r.dev.BlitDepth(src, dst)
	return true
}

// draw is the single place where draw calls are issued. Uniforms are uploaded in the order:
// material, per draw matrices, pass, so pass values win over what a material holds.
func (r *Renderer) draw(mesh *meshes.Mesh, mat *materials.Material, model, prevModel *gglm.Mat4, pass *materials.Uniforms) {

	r.applyMaterialState(mat)

	for i, tex := range mat.Textures {
		if tex != nil {
			r.dev.BindTexture(materials.TextureSlot(i), tex)
		}
	}

	prog := mat.ShaderProg
	if mat.Uniforms.Len() > 0 {
		r.dev.SetUniforms(prog, &mat.Uniforms)
	}

	hasModel := mat.Settings.Has(materials.MaterialSettings_HasModelMtx)
	hasNormal := mat.Settings.Has(materials.MaterialSettings_HasNormalMtx)
	if hasModel || hasNormal {

		r.drawUnifs.Reset()

		if hasModel {
			r.drawUnifs.SetMat4("model", model)
			r.drawUnifs.SetMat4("prevModel", prevModel)
		}

		if hasNormal {
			normalMat := transform.NormalMat(model)
			r.drawUnifs.SetMat3("normalMat", &normalMat)
		}

		r.dev.SetUniforms(prog, &r.drawUnifs)
	}

	if pass != nil && pass.Len() > 0 {
		r.dev.SetUniforms(prog, pass)
	}

	r.dev.DrawMesh(mesh)
	r.stats.DrawCalls++
}
