package rend3dgl

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/glstate"
	"github.com/bloeys/lumen/logging"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/renderer"
	"github.com/bloeys/lumen/shaders"
	"github.com/go-gl/gl/v4.1-core/gl"
)

var _ renderer.Device = &Rend3DGL{}

// Rend3DGL is the OpenGL 4.1 renderer.Device. It must be created and used on the thread that owns the GL context.
type Rend3DGL struct {
	BoundVaoId uint32
	BoundFboId uint32

	// Mesh id to uploaded buffers. Meshes are uploaded on first draw
	meshVaos map[uint32]*VertexArray

	// Program id to uniform name to location
	uniformLocs map[uint32]map[string]int32

	// Fbo id to the set of color attachment points, for glDrawBuffers
	fboColorPoints map[uint32]map[buffers.AttachmentPoint]struct{}
}

func (r *Rend3DGL) restoreFbo() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, r.BoundFboId)
}

//
// Textures and framebuffers
//

func (r *Rend3DGL) CreateTexture(desc buffers.TextureDesc) (uint32, error) {

	var id uint32
	gl.GenTextures(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("failed to generate texture. GlError=%d", gl.GetError())
	}

	target := glTexTarget(desc.Target)
	internalFormat, format, xtype := glTexFormat(desc.Format)
	mips := max(1, desc.Mips)

	faces := uint32(1)
	if desc.Target == buffers.TextureTarget_Cube {
		faces = 6
	}

	gl.BindTexture(target, id)

	for mip := uint32(0); mip < mips; mip++ {

		w, h := max(1, desc.Width>>mip), max(1, desc.Height>>mip)
		faceLen := int(w * h * 4)

		for face := uint32(0); face < faces; face++ {

			texImgTarget := target
			if faces == 6 {
				texImgTarget = gl.TEXTURE_CUBE_MAP_POSITIVE_X + face
			}

			var ptr unsafe.Pointer
			if mip == 0 && len(desc.Data) > 0 {
				ptr = gl.Ptr(&desc.Data[int(face)*faceLen])
			}

			gl.TexImage2D(texImgTarget, int32(mip), internalFormat, int32(w), int32(h), 0, format, xtype, ptr)
		}
	}

	minFilter, magFilter := int32(gl.LINEAR), int32(gl.LINEAR)
	if desc.Format.IsDepthFormat() || desc.Format == buffers.FramebufferAttachmentDataFormat_R32Int {
		minFilter, magFilter = gl.NEAREST, gl.NEAREST
	} else if mips > 1 {
		minFilter = gl.LINEAR_MIPMAP_LINEAR
	}

	wrap := int32(gl.CLAMP_TO_EDGE)
	if desc.Repeat {
		wrap = gl.REPEAT
	}

	gl.TexParameteri(target, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(target, gl.TEXTURE_MAG_FILTER, magFilter)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_T, wrap)
	if faces == 6 {
		gl.TexParameteri(target, gl.TEXTURE_WRAP_R, wrap)
	}
	gl.TexParameteri(target, gl.TEXTURE_MAX_LEVEL, int32(mips-1))

	gl.BindTexture(target, 0)
	return id, nil
}

func (r *Rend3DGL) DeleteTexture(id uint32) {
	gl.DeleteTextures(1, &id)
}

func (r *Rend3DGL) CreateFramebuffer() (uint32, error) {

	var id uint32
	gl.GenFramebuffers(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("failed to generate framebuffer. GlError=%d", gl.GetError())
	}

	r.fboColorPoints[id] = map[buffers.AttachmentPoint]struct{}{}
	return id, nil
}

func (r *Rend3DGL) DeleteFramebuffer(id uint32) {

	gl.DeleteFramebuffers(1, &id)
	delete(r.fboColorPoints, id)

	if r.BoundFboId == id {
		r.BoundFboId = buffers.DefaultFramebufferId
	}
}

func (r *Rend3DGL) AttachTexture(fboId uint32, point buffers.AttachmentPoint, tex *buffers.Texture, face int32, mip uint32) {

	gl.BindFramebuffer(gl.FRAMEBUFFER, fboId)
	defer r.restoreFbo()

	texTarget := uint32(gl.TEXTURE_2D)
	if tex.IsCubemap() {
		texTarget = gl.TEXTURE_CUBE_MAP_POSITIVE_X + uint32(face)
	}

	gl.FramebufferTexture2D(gl.FRAMEBUFFER, glAttachment(point, tex.Format), texTarget, tex.Id, int32(mip))

	if point == buffers.AttachmentPoint_Depth {
		return
	}

	points := r.fboColorPoints[fboId]
	points[point] = struct{}{}

	drawBufs := make([]uint32, 0, len(points))
	for i := 0; i < buffers.MaxColorAttachments; i++ {
		if _, ok := points[buffers.AttachmentPoint(i)]; ok {
			drawBufs = append(drawBufs, gl.COLOR_ATTACHMENT0+uint32(i))
		}
	}

	gl.DrawBuffers(int32(len(drawBufs)), &drawBufs[0])
}

func (r *Rend3DGL) FramebufferComplete(fboId uint32) bool {

	gl.BindFramebuffer(gl.FRAMEBUFFER, fboId)
	defer r.restoreFbo()

	// Depth only targets have no color buffer to draw or read
	if len(r.fboColorPoints[fboId]) == 0 {
		gl.DrawBuffer(gl.NONE)
		gl.ReadBuffer(gl.NONE)
	}

	return gl.CheckFramebufferStatus(gl.FRAMEBUFFER) == gl.FRAMEBUFFER_COMPLETE
}

func (r *Rend3DGL) BindFramebuffer(fboId uint32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fboId)
	r.BoundFboId = fboId
}

func (r *Rend3DGL) Viewport(x, y int32, width, height uint32) {
	gl.Viewport(x, y, int32(width), int32(height))
}

func (r *Rend3DGL) Clear(color gglm.Vec4, clearColor, clearDepth bool) {

	mask := uint32(0)
	if clearColor {
		gl.ClearColor(color.X(), color.Y(), color.Z(), color.W())
		mask |= gl.COLOR_BUFFER_BIT
	}

	if clearDepth {
		mask |= gl.DEPTH_BUFFER_BIT | gl.STENCIL_BUFFER_BIT
	}

	if mask != 0 {
		gl.Clear(mask)
	}
}

func (r *Rend3DGL) BindTexture(slot materials.TextureSlot, tex *buffers.Texture) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(slot))
	gl.BindTexture(glTexTarget(tex.Target), tex.Id)
}

func (r *Rend3DGL) GenerateMipmaps(tex *buffers.Texture) {

	target := glTexTarget(tex.Target)
	gl.BindTexture(target, tex.Id)
	gl.GenerateMipmap(target)
	gl.BindTexture(target, 0)
}

func (r *Rend3DGL) BlitDepth(src, dst *buffers.Framebuffer) {

	sw, sh := src.Size()
	dw, dh := dst.Size()

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, src.Id)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, dst.Id)
	gl.BlitFramebuffer(0, 0, int32(sw), int32(sh), 0, 0, int32(dw), int32(dh), gl.DEPTH_BUFFER_BIT, gl.NEAREST)
	r.restoreFbo()
}

//
// Pipeline state
//

func setCap(capability uint32, enabled bool) {

	if enabled {
		gl.Enable(capability)
	} else {
		gl.Disable(capability)
	}
}

func (r *Rend3DGL) SetDepthTest(enabled bool) {
	setCap(gl.DEPTH_TEST, enabled)
}

func (r *Rend3DGL) SetDepthFunc(f glstate.DepthFunc) {
	gl.DepthFunc(glDepthFunc(f))
}

func (r *Rend3DGL) SetBlend(enabled bool) {
	setCap(gl.BLEND, enabled)
}

func (r *Rend3DGL) SetBlendFunc(src, dst glstate.BlendFactor) {
	gl.BlendFunc(glBlendFactor(src), glBlendFactor(dst))
}

func (r *Rend3DGL) SetCull(enabled bool) {
	setCap(gl.CULL_FACE, enabled)
}

func (r *Rend3DGL) SetCullFace(face glstate.Face) {
	gl.CullFace(glFace(face))
}

func (r *Rend3DGL) SetPolygonMode(mode glstate.PolygonMode) {
	gl.PolygonMode(gl.FRONT_AND_BACK, glPolygonMode(mode))
}

func (r *Rend3DGL) UseProgram(progId uint32) {
	gl.UseProgram(progId)
}

//
// Shaders
//

func (r *Rend3DGL) CompileShader(name string, src shaders.Sources) (shaders.ShaderProgram, error) {

	progId := gl.CreateProgram()
	if progId == 0 {
		return shaders.ShaderProgram{}, errors.New("failed to create shader program")
	}

	stages := src.Stages()
	shaderIds := make([]uint32, 0, len(stages))
	defer func() {
		for _, id := range shaderIds {
			gl.DeleteShader(id)
		}
	}()

	for _, s := range stages {

		id, err := compileShaderOfType(s.Src, s.Type)
		if err != nil {
			gl.DeleteProgram(progId)
			return shaders.ShaderProgram{}, fmt.Errorf("failed to compile %s stage of shader '%s': %w", s.Type, name, err)
		}

		gl.AttachShader(progId, id)
		shaderIds = append(shaderIds, id)
	}

	gl.LinkProgram(progId)
	if err := getProgramLinkErrors(progId); err != nil {
		gl.DeleteProgram(progId)
		return shaders.ShaderProgram{}, fmt.Errorf("failed to link shader '%s': %w", name, err)
	}

	return shaders.ShaderProgram{Id: progId, Name: name}, nil
}

func (r *Rend3DGL) DeleteShader(prog shaders.ShaderProgram) {
	gl.DeleteProgram(prog.Id)
	delete(r.uniformLocs, prog.Id)
}

func compileShaderOfType(shaderSource []byte, shaderType shaders.ShaderType) (uint32, error) {

	shaderId := gl.CreateShader(glShaderType(shaderType))
	if shaderId == 0 {
		return 0, fmt.Errorf("failed to create OpenGl shader. OpenGl Error=%d", gl.GetError())
	}

	// Load shader source and compile
	shaderCStr, shaderFree := gl.Strs(string(shaderSource) + "\x00")
	defer shaderFree()
	gl.ShaderSource(shaderId, 1, shaderCStr, nil)

	gl.CompileShader(shaderId)
	if err := getShaderCompileErrors(shaderId); err != nil {
		gl.DeleteShader(shaderId)
		return 0, err
	}

	return shaderId, nil
}

func getShaderCompileErrors(shaderId uint32) error {

	var compiledSuccessfully int32
	gl.GetShaderiv(shaderId, gl.COMPILE_STATUS, &compiledSuccessfully)
	if compiledSuccessfully == gl.TRUE {
		return nil
	}

	var logLength int32
	gl.GetShaderiv(shaderId, gl.INFO_LOG_LENGTH, &logLength)

	log := gl.Str(strings.Repeat("\x00", int(logLength)))
	gl.GetShaderInfoLog(shaderId, logLength, nil, log)

	errMsg := gl.GoStr(log)
	logging.ErrLog.Errorf("Compilation of shader with id %d failed. Err: %s", shaderId, errMsg)
	return errors.New(errMsg)
}

func getProgramLinkErrors(progId uint32) error {

	var linked int32
	gl.GetProgramiv(progId, gl.LINK_STATUS, &linked)
	if linked == gl.TRUE {
		return nil
	}

	var logLength int32
	gl.GetProgramiv(progId, gl.INFO_LOG_LENGTH, &logLength)

	log := gl.Str(strings.Repeat("\x00", int(logLength)))
	gl.GetProgramInfoLog(progId, logLength, nil, log)
	return errors.New(gl.GoStr(log))
}

//
// Uniforms
//

func (r *Rend3DGL) uniformLoc(progId uint32, name string) int32 {

	locs, ok := r.uniformLocs[progId]
	if !ok {
		locs = map[string]int32{}
		r.uniformLocs[progId] = locs
	}

	if loc, ok := locs[name]; ok {
		return loc
	}

	// Unused uniforms get -1, which is cached too so the lookup isn't repeated
	loc := gl.GetUniformLocation(progId, gl.Str(name+"\x00"))
	locs[name] = loc
	return loc
}

// SetUniforms uses glProgramUniform* so the program doesn't have to be bound
func (r *Rend3DGL) SetUniforms(prog shaders.ShaderProgram, u *materials.Uniforms) {

	for name, v := range u.Int32s {
		if loc := r.uniformLoc(prog.Id, name); loc != -1 {
			gl.ProgramUniform1i(prog.Id, loc, v)
		}
	}

	for name, v := range u.Float32s {
		if loc := r.uniformLoc(prog.Id, name); loc != -1 {
			gl.ProgramUniform1f(prog.Id, loc, v)
		}
	}

	for name, v := range u.Vec2s {
		if loc := r.uniformLoc(prog.Id, name); loc != -1 {
			gl.ProgramUniform2fv(prog.Id, loc, 1, &v.Data[0])
		}
	}

	for name, v := range u.Vec3s {
		if loc := r.uniformLoc(prog.Id, name); loc != -1 {
			gl.ProgramUniform3fv(prog.Id, loc, 1, &v.Data[0])
		}
	}

	for name, v := range u.Vec4s {
		if loc := r.uniformLoc(prog.Id, name); loc != -1 {
			gl.ProgramUniform4fv(prog.Id, loc, 1, &v.Data[0])
		}
	}

	for name, v := range u.Mat3s {
		if loc := r.uniformLoc(prog.Id, name); loc != -1 {
			gl.ProgramUniformMatrix3fv(prog.Id, loc, 1, false, &v.Data[0][0])
		}
	}

	for name, v := range u.Mat4s {
		if loc := r.uniformLoc(prog.Id, name); loc != -1 {
			gl.ProgramUniformMatrix4fv(prog.Id, loc, 1, false, &v.Data[0][0])
		}
	}
}

//
// Meshes
//

func (r *Rend3DGL) meshVao(mesh *meshes.Mesh) (*VertexArray, error) {

	if vao, ok := r.meshVaos[mesh.Id]; ok {
		return vao, nil
	}

	vao, err := NewVertexArray()
	if err != nil {
		return nil, err
	}

	vbo, err := NewVertexBuffer(meshLayout...)
	if err != nil {
		vao.Delete()
		return nil, err
	}

	ibo, err := NewIndexBuffer()
	if err != nil {
		vbo.Delete()
		vao.Delete()
		return nil, err
	}

	vao.Bind()
	vbo.SetData(mesh.Interleaved(), BufUsage_Static_Draw)
	vao.SetVertexBuffer(vbo)
	ibo.SetData(mesh.Indices)
	vao.SetIndexBuffer(ibo)
	gl.BindVertexArray(0)
	r.BoundVaoId = 0

	r.meshVaos[mesh.Id] = &vao
	return &vao, nil
}

func (r *Rend3DGL) DrawMesh(mesh *meshes.Mesh) {

	vao, err := r.meshVao(mesh)
	if err != nil {
		logging.ErrLog.Errorf("Failed to upload mesh '%s'. Err: %s", mesh.Name, err)
		return
	}

	if vao.Id != r.BoundVaoId {
		vao.Bind()
		r.BoundVaoId = vao.Id
	}

	if len(mesh.SubMeshes) == 0 {
		gl.DrawElements(gl.TRIANGLES, int32(len(mesh.Indices)), gl.UNSIGNED_INT, gl.PtrOffset(0))
		return
	}

	for i := 0; i < len(mesh.SubMeshes); i++ {
		sm := &mesh.SubMeshes[i]
		gl.DrawElementsBaseVertexWithOffset(gl.TRIANGLES, sm.IndexCount, gl.UNSIGNED_INT, uintptr(sm.BaseIndex*4), sm.BaseVertex)
	}
}

// ReleaseMesh frees the GPU buffers of a mesh. It is uploaded again if drawn later.
func (r *Rend3DGL) ReleaseMesh(mesh *meshes.Mesh) {

	vao, ok := r.meshVaos[mesh.Id]
	if !ok {
		return
	}

	if vao.Id == r.BoundVaoId {
		gl.BindVertexArray(0)
		r.BoundVaoId = 0
	}

	vao.Delete()
	delete(r.meshVaos, mesh.Id)
}

// FrameEnd forgets bound objects, for when something outside the device touched GL state
func (r *Rend3DGL) FrameEnd() {
	r.BoundVaoId = 0
}

// NewRend3DGL must be called after the GL context is current and gl.Init succeeded
func NewRend3DGL() *Rend3DGL {

	gl.Enable(gl.TEXTURE_CUBE_MAP_SEAMLESS)

	return &Rend3DGL{
		meshVaos:       map[uint32]*VertexArray{},
		uniformLocs:    map[uint32]map[string]int32{},
		fboColorPoints: map[uint32]map[buffers.AttachmentPoint]struct{}{},
	}
}
