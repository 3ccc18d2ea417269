// Package rendsoft is a software implementation of renderer.Device.
//
// It rasterizes triangles with edge functions, honours depth testing, face culling, blending and line
// polygon mode, and tracks framebuffer completeness the way OpenGL does. Programs don't run shader code:
// every fragment is the program's "baseColor" uniform (white when unset), written to every color
// attachment, positioned by the "viewProjection" and "model" uniforms. That is enough to check what
// the pipeline draws where, without a GPU.
package rendsoft

import (
	"fmt"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/glstate"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/shaders"
	"github.com/bloeys/lumen/transform"
	"github.com/chewxy/math32"
)

type texture struct {
	desc   buffers.TextureDesc
	faces  int
	levels [][]float32
}

func (t *texture) mipSize(mip uint32) (int, int) {
	return int(max(1, t.desc.Width>>mip)), int(max(1, t.desc.Height>>mip))
}

func (t *texture) level(face int32, mip uint32) []float32 {
	return t.levels[int(face)*int(t.desc.Mips)+int(mip)]
}

type attachRef struct {
	texId uint32
	face  int32
	mip   uint32
}

type framebuffer struct {
	attachments map[buffers.AttachmentPoint]attachRef
}

type program struct {
	name     string
	uniforms materials.Uniforms
}

// surface is one texture level being rendered into
type surface struct {
	data   []float32
	w, h   int
	format buffers.FramebufferAttachmentDataFormat
}

func (s *surface) at(x, y int) []float32 {
	i := (y*s.w + x) * 4
	return s.data[i : i+4]
}

type viewport struct {
	x, y int32
	w, h uint32
}

// Counters are running totals of device calls
type Counters struct {
	StateChanges int
	DrawCalls    int
	Triangles    int
	Fragments    int
	Clears       int
	FboBinds     int
}

type Device struct {
	nextId   uint32
	textures map[uint32]*texture
	fbos     map[uint32]*framebuffer
	programs map[uint32]*program

	boundFbo uint32
	viewport viewport

	backColor surface
	backDepth surface

	depthTest   bool
	depthFunc   glstate.DepthFunc
	blend       bool
	blendSrc    glstate.BlendFactor
	blendDst    glstate.BlendFactor
	cull        bool
	cullFace    glstate.Face
	polygonMode glstate.PolygonMode
	program     uint32

	boundTextures [materials.TextureSlot_Count]uint32

	Counters Counters
}

// New returns a device in the OpenGL default state with a backbuffer of the given size
func New(width, height uint32) *Device {

	d := &Device{
		nextId:   1,
		textures: map[uint32]*texture{},
		fbos:     map[uint32]*framebuffer{},
		programs: map[uint32]*program{},
		blendSrc: glstate.BlendFactor_One,
		blendDst: glstate.BlendFactor_Zero,
	}

	d.resizeBackbuffer(int(width), int(height))
	d.viewport = viewport{w: width, h: height}
	return d
}

func (d *Device) newId() uint32 {
	id := d.nextId
	d.nextId++
	return id
}

func (d *Device) resizeBackbuffer(w, h int) {

	if d.backColor.w == w && d.backColor.h == h {
		return
	}

	d.backColor = surface{data: make([]float32, w*h*4), w: w, h: h, format: buffers.FramebufferAttachmentDataFormat_RGBA8}
	d.backDepth = surface{data: make([]float32, w*h*4), w: w, h: h, format: buffers.FramebufferAttachmentDataFormat_Depth24Stencil8}
	fillSurface(&d.backDepth, [4]float32{1, 0, 0, 0})
}

func fillSurface(s *surface, v [4]float32) {
	for i := 0; i < len(s.data); i += 4 {
		copy(s.data[i:i+4], v[:])
	}
}

//
// buffers.Device
//

func (d *Device) CreateTexture(desc buffers.TextureDesc) (uint32, error) {

	if desc.Mips == 0 {
		desc.Mips = 1
	}

	t := &texture{desc: desc, faces: 1}
	if desc.Target == buffers.TextureTarget_Cube {
		t.faces = 6
	}

	t.levels = make([][]float32, t.faces*int(desc.Mips))
	for face := 0; face < t.faces; face++ {
		for mip := uint32(0); mip < desc.Mips; mip++ {

			w, h := t.mipSize(mip)
			lvl := make([]float32, w*h*4)
			if mip == 0 && len(desc.Data) > 0 {
				faceLen := w * h * 4
				copy(lvl, desc.Data[face*faceLen:(face+1)*faceLen])
			}

			t.levels[face*int(desc.Mips)+int(mip)] = lvl
		}
	}

	id := d.newId()
	d.textures[id] = t
	return id, nil
}

func (d *Device) DeleteTexture(id uint32) {
	delete(d.textures, id)
}

func (d *Device) CreateFramebuffer() (uint32, error) {
	id := d.newId()
	d.fbos[id] = &framebuffer{attachments: map[buffers.AttachmentPoint]attachRef{}}
	return id, nil
}

func (d *Device) DeleteFramebuffer(id uint32) {

	delete(d.fbos, id)
	if d.boundFbo == id {
		d.boundFbo = buffers.DefaultFramebufferId
	}
}

func (d *Device) AttachTexture(fboId uint32, point buffers.AttachmentPoint, tex *buffers.Texture, face int32, mip uint32) {

	fbo, ok := d.fbos[fboId]
	if !ok {
		return
	}

	fbo.attachments[point] = attachRef{texId: tex.Id, face: face, mip: mip}
}

// FramebufferComplete requires at least one attachment, formats matching their attachment point,
// and every attachment being the same size.
func (d *Device) FramebufferComplete(fboId uint32) bool {

	fbo, ok := d.fbos[fboId]
	if !ok || len(fbo.attachments) == 0 {
		return false
	}

	w, h := -1, -1
	for point, ref := range fbo.attachments {

		t, ok := d.textures[ref.texId]
		if !ok || ref.mip >= t.desc.Mips || int(ref.face) >= t.faces {
			return false
		}

		if point == buffers.AttachmentPoint_Depth && !t.desc.Format.IsDepthFormat() {
			return false
		}

		if point != buffers.AttachmentPoint_Depth && !t.desc.Format.IsColorFormat() {
			return false
		}

		mw, mh := t.mipSize(ref.mip)
		if w == -1 {
			w, h = mw, mh
		} else if w != mw || h != mh {
			return false
		}
	}

	return true
}

//
// glstate.Applier
//

func (d *Device) SetDepthTest(enabled bool) {
	d.depthTest = enabled
	d.Counters.StateChanges++
}

func (d *Device) SetDepthFunc(f glstate.DepthFunc) {
	d.depthFunc = f
	d.Counters.StateChanges++
}

func (d *Device) SetBlend(enabled bool) {
	d.blend = enabled
	d.Counters.StateChanges++
}

func (d *Device) SetBlendFunc(src, dst glstate.BlendFactor) {
	d.blendSrc = src
	d.blendDst = dst
	d.Counters.StateChanges++
}

func (d *Device) SetCull(enabled bool) {
	d.cull = enabled
	d.Counters.StateChanges++
}

func (d *Device) SetCullFace(face glstate.Face) {
	d.cullFace = face
	d.Counters.StateChanges++
}

func (d *Device) SetPolygonMode(mode glstate.PolygonMode) {
	d.polygonMode = mode
	d.Counters.StateChanges++
}

func (d *Device) UseProgram(progId uint32) {
	d.program = progId
	d.Counters.StateChanges++
}

//
// resources.Device
//

func (d *Device) CompileShader(name string, src shaders.Sources) (shaders.ShaderProgram, error) {

	if len(src.Vertex) == 0 {
		return shaders.ShaderProgram{}, fmt.Errorf("failed to compile shader '%s': %w", name, shaders.ErrNoVertexShader)
	}

	if len(src.Fragment) == 0 {
		return shaders.ShaderProgram{}, fmt.Errorf("failed to compile shader '%s': %w", name, shaders.ErrNoFragmentShader)
	}

	id := d.newId()
	d.programs[id] = &program{name: name, uniforms: materials.NewUniforms()}
	return shaders.ShaderProgram{Id: id, Name: name}, nil
}

func (d *Device) DeleteShader(prog shaders.ShaderProgram) {
	delete(d.programs, prog.Id)
}

//
// renderer.Device
//

func (d *Device) BindFramebuffer(fboId uint32) {
	d.boundFbo = fboId
	d.Counters.FboBinds++
}

func (d *Device) Viewport(x, y int32, width, height uint32) {

	d.viewport = viewport{x: x, y: y, w: width, h: height}

	// The window is as big as the viewport that is set on it
	if d.boundFbo == buffers.DefaultFramebufferId {
		d.resizeBackbuffer(int(x)+int(width), int(y)+int(height))
	}
}

// targets returns the color surfaces of the bound framebuffer in attachment order, and its depth surface if any
func (d *Device) targets() (colors []*surface, depth *surface) {

	if d.boundFbo == buffers.DefaultFramebufferId {
		return []*surface{&d.backColor}, &d.backDepth
	}

	fbo, ok := d.fbos[d.boundFbo]
	if !ok {
		return nil, nil
	}

	for i := 0; i < buffers.MaxColorAttachments; i++ {

		ref, ok := fbo.attachments[buffers.AttachmentPoint(i)]
		if !ok {
			continue
		}

		if s := d.refSurface(ref); s != nil {
			colors = append(colors, s)
		}
	}

	if ref, ok := fbo.attachments[buffers.AttachmentPoint_Depth]; ok {
		depth = d.refSurface(ref)
	}

	return colors, depth
}

func (d *Device) refSurface(ref attachRef) *surface {

	t, ok := d.textures[ref.texId]
	if !ok {
		return nil
	}

	w, h := t.mipSize(ref.mip)
	return &surface{data: t.level(ref.face, ref.mip), w: w, h: h, format: t.desc.Format}
}

func (d *Device) Clear(color gglm.Vec4, clearColor, clearDepth bool) {

	d.Counters.Clears++
	colors, depth := d.targets()

	if clearColor {
		c := [4]float32{color.X(), color.Y(), color.Z(), color.W()}
		for _, s := range colors {
			fillSurface(s, c)
		}
	}

	if clearDepth && depth != nil {
		fillSurface(depth, [4]float32{1, 0, 0, 0})
	}
}

func (d *Device) BindTexture(slot materials.TextureSlot, tex *buffers.Texture) {
	d.boundTextures[slot] = tex.Id
}

func (d *Device) SetUniforms(prog shaders.ShaderProgram, u *materials.Uniforms) {

	p, ok := d.programs[prog.Id]
	if !ok {
		return
	}

	dst := &p.uniforms
	for k, v := range u.Int32s {
		dst.Int32s[k] = v
	}
	for k, v := range u.Float32s {
		dst.Float32s[k] = v
	}
	for k, v := range u.Vec2s {
		dst.Vec2s[k] = v
	}
	for k, v := range u.Vec3s {
		dst.Vec3s[k] = v
	}
	for k, v := range u.Vec4s {
		dst.Vec4s[k] = v
	}
	for k, v := range u.Mat3s {
		dst.Mat3s[k] = v
	}
	for k, v := range u.Mat4s {
		dst.Mat4s[k] = v
	}
}

func (d *Device) GenerateMipmaps(tex *buffers.Texture) {

	t, ok := d.textures[tex.Id]
	if !ok {
		return
	}

	for face := int32(0); face < int32(t.faces); face++ {
		for mip := uint32(1); mip < t.desc.Mips; mip++ {

			srcW, srcH := t.mipSize(mip - 1)
			dstW, dstH := t.mipSize(mip)
			src := t.level(face, mip-1)
			dst := t.level(face, mip)

			for y := 0; y < dstH; y++ {
				for x := 0; x < dstW; x++ {

					var sum [4]float32
					for j := 0; j < 2; j++ {
						for i := 0; i < 2; i++ {

							sx, sy := min(x*2+i, srcW-1), min(y*2+j, srcH-1)
							si := (sy*srcW + sx) * 4
							for c := 0; c < 4; c++ {
								sum[c] += src[si+c]
							}
						}
					}

					di := (y*dstW + x) * 4
					for c := 0; c < 4; c++ {
						dst[di+c] = sum[c] * 0.25
					}
				}
			}
		}
	}
}

func (d *Device) BlitDepth(src, dst *buffers.Framebuffer) {

	srcFbo, ok1 := d.fbos[src.Id]
	dstFbo, ok2 := d.fbos[dst.Id]
	if !ok1 || !ok2 {
		return
	}

	srcRef, ok1 := srcFbo.attachments[buffers.AttachmentPoint_Depth]
	dstRef, ok2 := dstFbo.attachments[buffers.AttachmentPoint_Depth]
	if !ok1 || !ok2 {
		return
	}

	s, t := d.refSurface(srcRef), d.refSurface(dstRef)
	if s == nil || t == nil {
		return
	}

	for y := 0; y < t.h; y++ {
		for x := 0; x < t.w; x++ {
			sx, sy := x*s.w/t.w, y*s.h/t.h
			copy(t.at(x, y), s.at(sx, sy))
		}
	}
}

type screenVert struct {
	x, y, z float32
}

func edge(a, b *screenVert, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// isTopLeft is for counter clockwise triangles with y up. Pixels exactly on an edge are only
// drawn for top and left edges, so triangles sharing an edge never both draw it.
func isTopLeft(a, b *screenVert) bool {
	dx, dy := b.x-a.x, b.y-a.y
	return dy < 0 || (dy == 0 && dx < 0)
}

func (d *Device) DrawMesh(mesh *meshes.Mesh) {

	p, ok := d.programs[d.program]
	if !ok || mesh == nil {
		return
	}

	d.Counters.DrawCalls++

	colors, depth := d.targets()
	if len(colors) == 0 && depth == nil {
		return
	}

	mvp := transform.Identity()
	if vp, ok := p.uniforms.Mat4s["viewProjection"]; ok {
		mvp = vp
	}

	if model, ok := p.uniforms.Mat4s["model"]; ok {
		mvp = transform.Mul(mvp, model)
	}

	color := [4]float32{1, 1, 1, 1}
	if c, ok := p.uniforms.Vec4s["baseColor"]; ok {
		color = [4]float32{c.X(), c.Y(), c.Z(), c.W()}
	} else if c, ok := p.uniforms.Vec3s["baseColor"]; ok {
		color = [4]float32{c.X(), c.Y(), c.Z(), 1}
	}

	subMeshes := mesh.SubMeshes
	if len(subMeshes) == 0 {
		subMeshes = []meshes.SubMesh{{IndexCount: int32(len(mesh.Indices))}}
	}

	for _, sm := range subMeshes {
		for i := int32(0); i+2 < sm.IndexCount; i += 3 {

			var tri [3]screenVert
			visible := true
			for k := 0; k < 3; k++ {

				idx := int(sm.BaseVertex) + int(mesh.Indices[int(sm.BaseIndex)+int(i)+k])
				x, y, z, w := transform.MulPoint(&mvp, &mesh.Positions[idx])

				// No clipping, triangles crossing the camera plane are dropped
				if w <= 1e-6 {
					visible = false
					break
				}

				tri[k] = screenVert{
					x: (x/w*0.5+0.5)*float32(d.viewport.w) + float32(d.viewport.x),
					y: (y/w*0.5+0.5)*float32(d.viewport.h) + float32(d.viewport.y),
					z: z/w*0.5 + 0.5,
				}
			}

			if visible {
				d.Counters.Triangles++
				d.rasterize(&tri, color, colors, depth)
			}
		}
	}
}

func (d *Device) rasterize(tri *[3]screenVert, color [4]float32, colors []*surface, depth *surface) {

	v0, v1, v2 := &tri[0], &tri[1], &tri[2]
	area := edge(v0, v1, v2.x, v2.y)
	if area == 0 {
		return
	}

	front := area > 0
	if d.cull {
		switch d.cullFace {
		case glstate.Face_Back:
			if !front {
				return
			}
		case glstate.Face_Front:
			if front {
				return
			}
		case glstate.Face_FrontAndBack:
			return
		}
	}

	// Work on a counter clockwise triangle from here on
	if !front {
		v1, v2 = v2, v1
		area = -area
	}

	w, h := d.targetSize(colors, depth)
	minX := max(0, int(d.viewport.x), int(math32.Floor(min(v0.x, v1.x, v2.x))))
	minY := max(0, int(d.viewport.y), int(math32.Floor(min(v0.y, v1.y, v2.y))))
	maxX := min(w-1, int(d.viewport.x)+int(d.viewport.w)-1, int(math32.Ceil(max(v0.x, v1.x, v2.x))))
	maxY := min(h-1, int(d.viewport.y)+int(d.viewport.h)-1, int(math32.Ceil(max(v0.y, v1.y, v2.y))))

	edgeLens := [3]float32{
		math32.Hypot(v2.x-v1.x, v2.y-v1.y),
		math32.Hypot(v0.x-v2.x, v0.y-v2.y),
		math32.Hypot(v1.x-v0.x, v1.y-v0.y),
	}
	topLeft := [3]bool{isTopLeft(v1, v2), isTopLeft(v2, v0), isTopLeft(v0, v1)}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {

			px, py := float32(x)+0.5, float32(y)+0.5
			ws := [3]float32{edge(v1, v2, px, py), edge(v2, v0, px, py), edge(v0, v1, px, py)}

			inside := true
			for k := 0; k < 3; k++ {
				if ws[k] < 0 || (ws[k] == 0 && !topLeft[k]) {
					inside = false
					break
				}
			}

			if !inside {
				continue
			}

			if d.polygonMode == glstate.PolygonMode_Line {

				nearEdge := false
				for k := 0; k < 3; k++ {
					if edgeLens[k] > 0 && ws[k]/edgeLens[k] < 1 {
						nearEdge = true
						break
					}
				}

				if !nearEdge {
					continue
				}
			}

			z := (ws[0]*v0.z + ws[1]*v1.z + ws[2]*v2.z) / area
			if d.depthTest && depth != nil {

				dv := depth.at(x, y)
				if !depthPasses(d.depthFunc, z, dv[0]) {
					continue
				}

				dv[0] = z
			}

			d.Counters.Fragments++
			for _, s := range colors {
				d.writeColor(s, x, y, color)
			}
		}
	}
}

func (d *Device) targetSize(colors []*surface, depth *surface) (int, int) {

	if len(colors) > 0 {
		return colors[0].w, colors[0].h
	}

	return depth.w, depth.h
}

func depthPasses(f glstate.DepthFunc, z, stored float32) bool {

	switch f {
	case glstate.DepthFunc_Less:
		return z < stored
	case glstate.DepthFunc_LessEqual:
		return z <= stored
	case glstate.DepthFunc_Equal:
		return z == stored
	case glstate.DepthFunc_Greater:
		return z > stored
	case glstate.DepthFunc_GreaterEqual:
		return z >= stored
	case glstate.DepthFunc_NotEqual:
		return z != stored
	case glstate.DepthFunc_Always:
		return true
	default:
		return false
	}
}

func blendFactor(f glstate.BlendFactor, src, dst []float32, c int) float32 {

	switch f {
	case glstate.BlendFactor_Zero:
		return 0
	case glstate.BlendFactor_One:
		return 1
	case glstate.BlendFactor_SrcAlpha:
		return src[3]
	case glstate.BlendFactor_OneMinusSrcAlpha:
		return 1 - src[3]
	case glstate.BlendFactor_DstAlpha:
		return dst[3]
	case glstate.BlendFactor_OneMinusDstAlpha:
		return 1 - dst[3]
	case glstate.BlendFactor_SrcColor:
		return src[c]
	case glstate.BlendFactor_OneMinusSrcColor:
		return 1 - src[c]
	default:
		return 0
	}
}

func isNormalized(f buffers.FramebufferAttachmentDataFormat) bool {
	return f == buffers.FramebufferAttachmentDataFormat_RGBA8 || f == buffers.FramebufferAttachmentDataFormat_SRGBA
}

func (d *Device) writeColor(s *surface, x, y int, color [4]float32) {

	dst := s.at(x, y)
	out := color

	if d.blend {
		src := color[:]
		for c := 0; c < 4; c++ {
			out[c] = src[c]*blendFactor(d.blendSrc, src, dst, c) + dst[c]*blendFactor(d.blendDst, src, dst, c)
		}
	}

	if isNormalized(s.format) {
		for c := 0; c < 4; c++ {
			out[c] = min(1, max(0, out[c]))
		}
	}

	copy(dst, out[:])
}
