package rendsoft

import (
	"testing"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/glstate"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/shaders"
	"github.com/bloeys/lumen/transform"
	"github.com/chewxy/math32"
)

var (
	testSrc = shaders.Sources{
		Vertex:   []byte("void main() {}"),
		Fragment: []byte("void main() {}"),
	}
)

func newTarget(t *testing.T, d *Device, w, h uint32, color buffers.FramebufferAttachmentDataFormat, withDepth bool) *buffers.Framebuffer {

	t.Helper()

	fbo, err := buffers.NewFramebuffer(d, "Test", w, h)
	if err != nil {
		t.Fatalf("failed to create framebuffer: %v", err)
	}

	if err := fbo.NewColorAttachment(color); err != nil {
		t.Fatalf("failed to add color attachment: %v", err)
	}

	if withDepth {
		if err := fbo.NewDepthStencilAttachment(buffers.FramebufferAttachmentDataFormat_Depth24Stencil8); err != nil {
			t.Fatalf("failed to add depth attachment: %v", err)
		}
	}

	if !fbo.IsComplete() {
		t.Fatalf("expected framebuffer to be complete")
	}

	return fbo
}

func newProgram(t *testing.T, d *Device) shaders.ShaderProgram {

	t.Helper()

	prog, err := d.CompileShader("test", testSrc)
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}

	d.UseProgram(prog.Id)
	return prog
}

func setColor(d *Device, prog shaders.ShaderProgram, r, g, b, a float32) {
	u := materials.NewUniforms()
	c := gglm.NewVec4(r, g, b, a)
	u.SetVec4("baseColor", &c)
	d.SetUniforms(prog, &u)
}

func setModel(d *Device, prog shaders.ShaderProgram, m gglm.Mat4) {
	u := materials.NewUniforms()
	u.SetMat4("model", &m)
	d.SetUniforms(prog, &u)
}

func bind(d *Device, fbo *buffers.Framebuffer) {
	d.BindFramebuffer(fbo.Id)
	d.Viewport(0, 0, fbo.Width, fbo.Height)
	d.Clear(gglm.NewVec4(0, 0, 0, 0), true, true)
}

func pixel(t *testing.T, d *Device, fbo *buffers.Framebuffer, x, y int) [4]float32 {

	t.Helper()

	px, ok := d.ReadPixel(fbo, 0, x, y)
	if !ok {
		t.Fatalf("failed to read pixel %d,%d", x, y)
	}

	return px
}

func TestFramebufferCompleteness(t *testing.T) {

	d := New(4, 4)

	empty, err := buffers.NewFramebuffer(d, "Empty", 4, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.FramebufferComplete(empty.Id) {
		t.Errorf("framebuffer without attachments should be incomplete")
	}

	fbo := newTarget(t, d, 4, 4, buffers.FramebufferAttachmentDataFormat_RGBA8, true)

	// Depth texture at a color point
	depthTex := fbo.DepthTexture()
	d.AttachTexture(fbo.Id, 1, depthTex, 0, 0)
	if d.FramebufferComplete(fbo.Id) {
		t.Errorf("depth format at a color attachment point should be incomplete")
	}

	sized, err := buffers.NewFramebuffer(d, "Sized", 4, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	small, _ := buffers.NewTexture(d, buffers.TextureDesc{Target: buffers.TextureTarget_2D, Format: buffers.FramebufferAttachmentDataFormat_RGBA8, Width: 4, Height: 4})
	big, _ := buffers.NewTexture(d, buffers.TextureDesc{Target: buffers.TextureTarget_2D, Format: buffers.FramebufferAttachmentDataFormat_RGBA8, Width: 8, Height: 8, Mips: 2})
	d.AttachTexture(sized.Id, 0, small, 0, 0)
	d.AttachTexture(sized.Id, 1, big, 0, 0)
	if d.FramebufferComplete(sized.Id) {
		t.Errorf("attachments of different sizes should be incomplete")
	}

	// Mip 1 of the big texture matches the small one
	d.AttachTexture(sized.Id, 1, big, 0, 1)
	if !d.FramebufferComplete(sized.Id) {
		t.Errorf("attachments of equal sizes should be complete")
	}
}

func TestCompileShaderNeedsBothStages(t *testing.T) {

	d := New(4, 4)

	if _, err := d.CompileShader("noFrag", shaders.Sources{Vertex: []byte("x")}); err == nil {
		t.Errorf("expected error for missing fragment stage")
	}

	if _, err := d.CompileShader("noVert", shaders.Sources{Fragment: []byte("x")}); err == nil {
		t.Errorf("expected error for missing vertex stage")
	}
}

func TestFullscreenQuadCoversEveryPixelOnce(t *testing.T) {

	d := New(4, 4)
	fbo := newTarget(t, d, 8, 8, buffers.FramebufferAttachmentDataFormat_RGBA8, false)
	prog := newProgram(t, d)

	bind(d, fbo)
	setColor(d, prog, 1, 0, 0, 1)
	d.DrawMesh(meshes.NewScreenQuad())

	// The shared diagonal must not be drawn twice
	if d.Counters.Fragments != 64 {
		t.Errorf("expected 64 fragments, got %d", d.Counters.Fragments)
	}

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if px := pixel(t, d, fbo, x, y); px != [4]float32{1, 0, 0, 1} {
				t.Fatalf("pixel %d,%d: expected red, got %v", x, y, px)
			}
		}
	}
}

func TestCulling(t *testing.T) {

	d := New(4, 4)
	fbo := newTarget(t, d, 8, 8, buffers.FramebufferAttachmentDataFormat_RGBA8, false)
	prog := newProgram(t, d)
	setColor(d, prog, 1, 1, 1, 1)

	quad := meshes.NewScreenQuad()
	reversed := meshes.NewMesh("Reversed", quad.Positions, nil, nil, nil, []uint32{0, 2, 1, 0, 3, 2})

	bind(d, fbo)
	d.SetCull(true)
	d.SetCullFace(glstate.Face_Back)
	d.DrawMesh(reversed)

	if px := pixel(t, d, fbo, 4, 4); px[0] != 0 {
		t.Errorf("clockwise quad should be culled with back face culling, got %v", px)
	}

	d.SetCullFace(glstate.Face_Front)
	d.DrawMesh(reversed)

	if px := pixel(t, d, fbo, 4, 4); px[0] != 1 {
		t.Errorf("clockwise quad should be drawn with front face culling, got %v", px)
	}
}

func TestDepthTest(t *testing.T) {

	d := New(4, 4)
	fbo := newTarget(t, d, 4, 4, buffers.FramebufferAttachmentDataFormat_RGBA16F, true)
	prog := newProgram(t, d)
	quad := meshes.NewScreenQuad()

	bind(d, fbo)
	d.SetDepthTest(true)
	d.SetDepthFunc(glstate.DepthFunc_Less)

	setModel(d, prog, transform.Translation(0, 0, 0.5))
	setColor(d, prog, 0, 1, 0, 1)
	d.DrawMesh(quad)

	// Further away, must fail against the first quad
	setModel(d, prog, transform.Translation(0, 0, 0.8))
	setColor(d, prog, 1, 0, 0, 1)
	d.DrawMesh(quad)

	if px := pixel(t, d, fbo, 1, 1); px != [4]float32{0, 1, 0, 1} {
		t.Errorf("expected the nearer green quad, got %v", px)
	}

	depth, ok := d.ReadPixel(fbo, buffers.AttachmentPoint_Depth, 1, 1)
	if !ok || math32.Abs(depth[0]-0.75) > 1e-5 {
		t.Errorf("expected depth 0.75, got %v (ok=%v)", depth[0], ok)
	}

	// Nearer passes
	setModel(d, prog, transform.Translation(0, 0, -0.5))
	setColor(d, prog, 0, 0, 1, 1)
	d.DrawMesh(quad)

	if px := pixel(t, d, fbo, 1, 1); px != [4]float32{0, 0, 1, 1} {
		t.Errorf("expected the nearest blue quad, got %v", px)
	}
}

func TestBlendAndClamp(t *testing.T) {

	d := New(4, 4)
	ldr := newTarget(t, d, 2, 2, buffers.FramebufferAttachmentDataFormat_RGBA8, false)
	hdr := newTarget(t, d, 2, 2, buffers.FramebufferAttachmentDataFormat_RGBA16F, false)
	prog := newProgram(t, d)
	quad := meshes.NewScreenQuad()

	d.SetBlend(true)
	d.SetBlendFunc(glstate.BlendFactor_One, glstate.BlendFactor_One)
	setColor(d, prog, 0.75, 0.25, 0, 1)

	for _, fbo := range []*buffers.Framebuffer{ldr, hdr} {
		bind(d, fbo)
		d.DrawMesh(quad)
		d.DrawMesh(quad)
	}

	if px := pixel(t, d, hdr, 0, 0); px != [4]float32{1.5, 0.5, 0, 2} {
		t.Errorf("expected additive blend on float target, got %v", px)
	}

	if px := pixel(t, d, ldr, 0, 0); px != [4]float32{1, 0.5, 0, 1} {
		t.Errorf("expected clamped additive blend on RGBA8 target, got %v", px)
	}

	d.SetBlendFunc(glstate.BlendFactor_SrcAlpha, glstate.BlendFactor_OneMinusSrcAlpha)
	bind(d, hdr)
	setColor(d, prog, 1, 1, 1, 0.25)
	d.DrawMesh(quad)

	if px := pixel(t, d, hdr, 0, 0); px[0] != 0.25 {
		t.Errorf("expected alpha blend over black to give 0.25, got %v", px[0])
	}
}

func TestLinePolygonMode(t *testing.T) {

	d := New(4, 4)
	fbo := newTarget(t, d, 16, 16, buffers.FramebufferAttachmentDataFormat_RGBA8, false)
	prog := newProgram(t, d)
	setColor(d, prog, 1, 1, 1, 1)

	bind(d, fbo)
	d.SetPolygonMode(glstate.PolygonMode_Line)
	d.DrawMesh(meshes.NewScreenQuad())

	if px := pixel(t, d, fbo, 0, 8); px[0] != 1 {
		t.Errorf("expected edge pixel to be drawn, got %v", px)
	}

	// Far from all edges, including the diagonal
	if px := pixel(t, d, fbo, 12, 3); px[0] != 0 {
		t.Errorf("expected interior pixel to be empty, got %v", px)
	}
}

func TestGenerateMipmaps(t *testing.T) {

	d := New(4, 4)

	tex, err := buffers.NewTexture(d, buffers.TextureDesc{
		Target: buffers.TextureTarget_2D,
		Format: buffers.FramebufferAttachmentDataFormat_RGBA16F,
		Width:  2,
		Height: 2,
		Mips:   2,
		Data: []float32{
			0, 0, 0, 1,
			1, 0, 0, 1,
			0, 1, 0, 1,
			1, 1, 0, 1,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d.GenerateMipmaps(tex)

	got := d.TextureLevel(tex, 0, 1)
	want := []float32{0.5, 0.5, 0, 1}
	if len(got) != 4 {
		t.Fatalf("expected a 1x1 mip, got %d floats", len(got))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("mip 1: expected %v, got %v", want, got)
			break
		}
	}
}

func TestBlitDepthCopiesAndScales(t *testing.T) {

	d := New(4, 4)
	src := newTarget(t, d, 4, 4, buffers.FramebufferAttachmentDataFormat_RGBA8, true)
	dst := newTarget(t, d, 2, 2, buffers.FramebufferAttachmentDataFormat_RGBA8, true)
	prog := newProgram(t, d)

	bind(d, src)
	d.SetDepthTest(true)
	d.SetDepthFunc(glstate.DepthFunc_Always)
	setModel(d, prog, transform.Translation(0, 0, 0))
	d.DrawMesh(meshes.NewScreenQuad())

	bind(d, dst)
	d.BlitDepth(src, dst)

	depth, ok := d.ReadPixel(dst, buffers.AttachmentPoint_Depth, 1, 1)
	if !ok || math32.Abs(depth[0]-0.5) > 1e-5 {
		t.Errorf("expected blitted depth 0.5, got %v (ok=%v)", depth[0], ok)
	}
}

func TestBackbufferImageIsTopRowFirst(t *testing.T) {

	d := New(4, 4)
	prog := newProgram(t, d)

	d.BindFramebuffer(buffers.DefaultFramebufferId)
	d.Viewport(0, 0, 4, 4)
	d.Clear(gglm.NewVec4(0, 0, 0, 1), true, true)

	// Covers the bottom half in NDC
	bottomHalf := transform.Translation(0, -0.5, 0)
	bottomHalf.Data[1][1] = 0.5
	setModel(d, prog, bottomHalf)
	setColor(d, prog, 1, 0, 0, 1)
	d.DrawMesh(meshes.NewScreenQuad())

	img := d.BackbufferImage()
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Fatalf("expected a 4x4 image, got %v", b)
	}

	top := img.NRGBAAt(0, 0)
	bottom := img.NRGBAAt(0, 3)

	if top.R != 0 || top.A != 255 {
		t.Errorf("expected top row to be black, got %v", top)
	}

	if bottom.R != 255 || bottom.G != 0 || bottom.A != 255 {
		t.Errorf("expected bottom row to be red, got %v", bottom)
	}
}

func TestViewportOnDefaultFramebufferResizesBackbuffer(t *testing.T) {

	d := New(4, 4)
	d.BindFramebuffer(buffers.DefaultFramebufferId)
	d.Viewport(0, 0, 10, 6)

	if w, h := d.BackbufferSize(); w != 10 || h != 6 {
		t.Errorf("expected 10x6 backbuffer, got %dx%d", w, h)
	}
}

func TestDeleteTexture(t *testing.T) {

	d := New(4, 4)
	tex, err := buffers.NewTexture(d, buffers.TextureDesc{Target: buffers.TextureTarget_Cube, Format: buffers.FramebufferAttachmentDataFormat_RGBA16F, Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id := tex.Id
	if !d.HasTexture(id) {
		t.Fatalf("expected texture to exist")
	}

	tex.Delete()
	if d.HasTexture(id) || tex.Id != 0 {
		t.Errorf("expected texture to be deleted")
	}
}
