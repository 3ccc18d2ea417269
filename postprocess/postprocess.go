package postprocess

import (
	"fmt"
	"math/rand/v2"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/config"
	"github.com/bloeys/lumen/glstate"
	"github.com/bloeys/lumen/logging"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/shaders"
	"github.com/bloeys/lumen/transform"
)

const (
	ShaderName_SSAO       = "ssao"
	ShaderName_SSAOBlur   = "ssao_blur"
	ShaderName_Downsample = "downsample"
	ShaderName_Blur       = "gaussian_blur"
	ShaderName_Upsample   = "bloom_upsample"
	ShaderName_Composite  = "composite"
)

const (
	SSAOKernelSize = 64
	SSAONoiseSize  = 4

	// BloomLevels is the length of the downsample chain, level i is 1/2^(i+1) of the render size
	BloomLevels = 3

	ssaoRadius float32 = 0.5
	ssaoBias   float32 = 0.025
)

// Drawer draws into render targets. A nil target is the default framebuffer.
type Drawer interface {
	BindTarget(fbo *buffers.Framebuffer, clear bool) bool
	DrawMesh(mesh *meshes.Mesh, mat *materials.Material, model *gglm.Mat4)
}

type ShaderSource interface {
	Shader(name string) (shaders.ShaderProgram, error)
}

type bloomLevel struct {
	fbo     *buffers.Framebuffer
	pingFbo *buffers.Framebuffer
}

// Processor runs the screen space passes around the lighting pass and the final composite.
type Processor struct {
	dev    buffers.Device
	drawer Drawer
	cfg    config.RendererConfig

	width  uint32
	height uint32

	quad     *meshes.Mesh
	quadMtx  gglm.Mat4
	whiteTex *buffers.Texture
	blackTex *buffers.Texture

	ssaoKernel  [SSAOKernelSize]gglm.Vec3
	ssaoNoise   *buffers.Texture
	ssaoFbo     *buffers.Framebuffer
	ssaoBlurFbo *buffers.Framebuffer

	bloom [BloomLevels]bloomLevel

	ssaoMat       *materials.Material
	ssaoBlurMat   *materials.Material
	downsampleMat *materials.Material
	blurMat       *materials.Material
	upsampleMat   *materials.Material
	compositeMat  *materials.Material
}

func New(dev buffers.Device, drawer Drawer, res ShaderSource, cfg config.RendererConfig) (*Processor, error) {

	p := &Processor{
		dev:     dev,
		drawer:  drawer,
		cfg:     cfg,
		width:   cfg.Width,
		height:  cfg.Height,
		quad:    meshes.NewScreenQuad(),
		quadMtx: transform.Identity(),
	}

	mats := []struct {
		dst    **materials.Material
		name   string
		shader string
	}{
		{&p.ssaoMat, "SSAO", ShaderName_SSAO},
		{&p.ssaoBlurMat, "SSAOBlur", ShaderName_SSAOBlur},
		{&p.downsampleMat, "Downsample", ShaderName_Downsample},
		{&p.blurMat, "GaussianBlur", ShaderName_Blur},
		{&p.upsampleMat, "BloomUpsample", ShaderName_Upsample},
		{&p.compositeMat, "Composite", ShaderName_Composite},
	}

	for _, m := range mats {

		prog, err := res.Shader(m.shader)
		if err != nil {
			return nil, fmt.Errorf("failed to create post process material '%s': %w", m.name, err)
		}

		*m.dst = materials.NewMaterial(m.name, materials.MaterialType_PostProcess, prog)
	}

	// Upsampling adds each smaller level onto the next bigger one
	p.upsampleMat.Settings.Set(materials.MaterialSettings_Blend)
	p.upsampleMat.BlendSrc = glstate.BlendFactor_One
	p.upsampleMat.BlendDst = glstate.BlendFactor_One

	var err error
	p.whiteTex, err = newSolidTexture(dev, 1)
	if err != nil {
		return nil, err
	}

	p.blackTex, err = newSolidTexture(dev, 0)
	if err != nil {
		return nil, err
	}

	if err = p.initSSAO(); err != nil {
		return nil, err
	}

	if err = p.initBloom(); err != nil {
		return nil, err
	}

	return p, nil
}

func newSolidTexture(dev buffers.Device, v float32) (*buffers.Texture, error) {
	return buffers.NewTexture(dev, buffers.TextureDesc{
		Target: buffers.TextureTarget_2D,
		Format: buffers.FramebufferAttachmentDataFormat_RGBA8,
		Width:  1,
		Height: 1,
		Data:   []float32{v, v, v, 1},
	})
}

func newColorTarget(dev buffers.Device, name string, w, h uint32, format buffers.FramebufferAttachmentDataFormat) (*buffers.Framebuffer, error) {

	fbo, err := buffers.NewFramebuffer(dev, name, w, h)
	if err != nil {
		return nil, err
	}

	if err = fbo.NewColorAttachment(format); err != nil {
		fbo.Delete()
		return nil, err
	}

	return fbo, nil
}

func (p *Processor) initSSAO() error {

	// Fixed seed so the pattern is the same every run
	rng := rand.New(rand.NewPCG(0x5ca1ab1e, 0xdecade))

	for i := 0; i < SSAOKernelSize; i++ {

		sample := gglm.NewVec3(
			rng.Float32()*2-1,
			rng.Float32()*2-1,
			rng.Float32(),
		)
		sample = *sample.Normalize()

		// More samples close to the fragment
		scale := float32(i) / SSAOKernelSize
		scale = 0.1 + scale*scale*0.9

		f := rng.Float32() * scale
		p.ssaoKernel[i] = gglm.NewVec3(sample.X()*f, sample.Y()*f, sample.Z()*f)
	}

	noise := make([]float32, 0, SSAONoiseSize*SSAONoiseSize*4)
	for i := 0; i < SSAONoiseSize*SSAONoiseSize; i++ {
		noise = append(noise, rng.Float32()*2-1, rng.Float32()*2-1, 0, 1)
	}

	var err error
	p.ssaoNoise, err = buffers.NewTexture(p.dev, buffers.TextureDesc{
		Target: buffers.TextureTarget_2D,
		Format: buffers.FramebufferAttachmentDataFormat_RGBA16F,
		Width:  SSAONoiseSize,
		Height: SSAONoiseSize,
		Repeat: true,
		Data:   noise,
	})
	if err != nil {
		return err
	}

	p.ssaoFbo, err = newColorTarget(p.dev, "SSAO", p.width, p.height, buffers.FramebufferAttachmentDataFormat_RGBA8)
	if err != nil {
		return err
	}

	p.ssaoBlurFbo, err = newColorTarget(p.dev, "SSAOBlur", p.width, p.height, buffers.FramebufferAttachmentDataFormat_RGBA8)
	if err != nil {
		return err
	}

	for i := 0; i < SSAOKernelSize; i++ {
		p.ssaoMat.SetUnifVec3(fmt.Sprintf("samples[%d]", i), &p.ssaoKernel[i])
	}

	p.ssaoMat.SetUnifFloat32("radius", ssaoRadius)
	p.ssaoMat.SetUnifFloat32("bias", ssaoBias)
	p.ssaoMat.SetTexture(materials.TextureSlot_Noise, p.ssaoNoise)
	p.ssaoMat.SetUnifInt32("noiseTex", int32(materials.TextureSlot_Noise))
	p.ssaoMat.SetUnifInt32("gPosition", int32(materials.TextureSlot_GPosition))
	p.ssaoMat.SetUnifInt32("gNormal", int32(materials.TextureSlot_GNormal))
	p.ssaoBlurMat.SetUnifInt32("source", int32(materials.TextureSlot_Source))
	return nil
}

func bloomLevelSize(size uint32, level int) uint32 {
	return max(1, size>>(level+1))
}

func (p *Processor) initBloom() error {

	for i := 0; i < BloomLevels; i++ {

		w, h := bloomLevelSize(p.width, i), bloomLevelSize(p.height, i)

		var err error
		p.bloom[i].fbo, err = newColorTarget(p.dev, fmt.Sprintf("Bloom%d", i), w, h, buffers.FramebufferAttachmentDataFormat_RGBA16F)
		if err != nil {
			return err
		}

		p.bloom[i].pingFbo, err = newColorTarget(p.dev, fmt.Sprintf("BloomPing%d", i), w, h, buffers.FramebufferAttachmentDataFormat_RGBA16F)
		if err != nil {
			return err
		}
	}

	p.downsampleMat.SetUnifInt32("source", int32(materials.TextureSlot_Source))
	p.blurMat.SetUnifInt32("source", int32(materials.TextureSlot_Source))
	p.upsampleMat.SetUnifInt32("source", int32(materials.TextureSlot_Source))
	return nil
}

// ProcessPreLighting renders ambient occlusion from the G-buffer. With SSAO disabled
// SSAOTexture stays plain white.
func (p *Processor) ProcessPreLighting(gPosition, gNormal *buffers.Texture, view, proj *gglm.Mat4) {

	if !p.cfg.SSAO {
		return
	}

	p.ssaoMat.SetTexture(materials.TextureSlot_GPosition, gPosition)
	p.ssaoMat.SetTexture(materials.TextureSlot_GNormal, gNormal)
	p.ssaoMat.SetUnifMat4("view", view)
	p.ssaoMat.SetUnifMat4("projection", proj)

	noiseScale := gglm.NewVec2(float32(p.width)/SSAONoiseSize, float32(p.height)/SSAONoiseSize)
	p.ssaoMat.SetUnifVec2("noiseScale", &noiseScale)

	if !p.drawer.BindTarget(p.ssaoFbo, true) {
		return
	}
	p.drawer.DrawMesh(p.quad, p.ssaoMat, &p.quadMtx)

	if !p.drawer.BindTarget(p.ssaoBlurFbo, true) {
		return
	}
	p.ssaoBlurMat.SetTexture(materials.TextureSlot_Source, p.ssaoFbo.ColorTexture(0))
	p.drawer.DrawMesh(p.quad, p.ssaoBlurMat, &p.quadMtx)
}

func (p *Processor) SSAOTexture() *buffers.Texture {

	if !p.cfg.SSAO {
		return p.whiteTex
	}

	return p.ssaoBlurFbo.ColorTexture(0)
}

func (p *Processor) SSAOKernel() []gglm.Vec3 {
	return p.ssaoKernel[:]
}

func (p *Processor) blur(level *bloomLevel) {

	w, h := level.fbo.Size()
	texelSize := gglm.NewVec2(1/float32(w), 1/float32(h))
	p.blurMat.SetUnifVec2("texelSize", &texelSize)

	if !p.drawer.BindTarget(level.pingFbo, true) {
		return
	}
	p.blurMat.SetUnifInt32("horizontal", 1)
	p.blurMat.SetTexture(materials.TextureSlot_Source, level.fbo.ColorTexture(0))
	p.drawer.DrawMesh(p.quad, p.blurMat, &p.quadMtx)

	if !p.drawer.BindTarget(level.fbo, true) {
		return
	}
	p.blurMat.SetUnifInt32("horizontal", 0)
	p.blurMat.SetTexture(materials.TextureSlot_Source, level.pingFbo.ColorTexture(0))
	p.drawer.DrawMesh(p.quad, p.blurMat, &p.quadMtx)
}

// ProcessPostLighting builds the bloom texture from the lit image: a downsample chain with a
// separable blur on each level, then each level added back onto the bigger one.
func (p *Processor) ProcessPostLighting(lit *buffers.Texture) {

	if !p.cfg.Bloom {
		return
	}

	src := lit
	for i := 0; i < BloomLevels; i++ {

		level := &p.bloom[i]
		if !p.drawer.BindTarget(level.fbo, true) {
			return
		}

		// Only the first level extracts bright parts
		threshold := float32(0)
		if i == 0 {
			threshold = 1
		}

		p.downsampleMat.SetUnifFloat32("threshold", threshold)
		p.downsampleMat.SetTexture(materials.TextureSlot_Source, src)
		p.drawer.DrawMesh(p.quad, p.downsampleMat, &p.quadMtx)

		p.blur(level)
		src = level.fbo.ColorTexture(0)
	}

	for i := BloomLevels - 1; i > 0; i-- {

		if !p.drawer.BindTarget(p.bloom[i-1].fbo, false) {
			return
		}

		p.upsampleMat.SetTexture(materials.TextureSlot_Source, p.bloom[i].fbo.ColorTexture(0))
		p.drawer.DrawMesh(p.quad, p.upsampleMat, &p.quadMtx)
	}
}

// BloomTexture returns the combined bloom, black when bloom is disabled.
func (p *Processor) BloomTexture() *buffers.Texture {

	if !p.cfg.Bloom {
		return p.blackTex
	}

	return p.bloom[0].fbo.ColorTexture(0)
}

// Blit composites src with bloom, motion blur and exposure into the default framebuffer.
// gPosition provides world positions for reprojecting pixels with last frame's view-projection.
func (p *Processor) Blit(src, gPosition *buffers.Texture, prevViewProj, viewProj *gglm.Mat4) {

	m := p.compositeMat
	m.SetTexture(materials.TextureSlot_Source, src)
	m.SetTexture(materials.TextureSlot_Bloom, p.BloomTexture())
	m.SetTexture(materials.TextureSlot_GPosition, gPosition)
	m.SetUnifInt32("source", int32(materials.TextureSlot_Source))
	m.SetUnifInt32("bloom", int32(materials.TextureSlot_Bloom))
	m.SetUnifInt32("gPosition", int32(materials.TextureSlot_GPosition))
	m.SetUnifFloat32("exposure", p.cfg.Exposure)
	m.SetUnifInt32("bloomEnabled", boolToInt(p.cfg.Bloom))
	m.SetUnifInt32("motionBlurEnabled", boolToInt(p.cfg.MotionBlur))
	m.SetUnifMat4("prevViewProjection", prevViewProj)
	m.SetUnifMat4("currViewProjection", viewProj)

	p.drawer.BindTarget(nil, true)
	p.drawer.DrawMesh(p.quad, m, &p.quadMtx)
}

func boolToInt(b bool) int32 {

	if b {
		return 1
	}

	return 0
}

type resizeJob struct {
	fbo  *buffers.Framebuffer
	w, h uint32
}

// UpdateRenderSize resizes every owned target to match a new render size.
func (p *Processor) UpdateRenderSize(width, height uint32) {

	if width == 0 || height == 0 {
		return
	}

	p.width = width
	p.height = height

	targets := []resizeJob{
		{p.ssaoFbo, width, height},
		{p.ssaoBlurFbo, width, height},
	}

	for i := 0; i < BloomLevels; i++ {
		w, h := bloomLevelSize(width, i), bloomLevelSize(height, i)
		targets = append(targets, resizeJob{p.bloom[i].fbo, w, h}, resizeJob{p.bloom[i].pingFbo, w, h})
	}

	for _, t := range targets {
		if err := t.fbo.Resize(t.w, t.h); err != nil {
			logging.ErrLog.Errorf("Failed to resize post process target '%s'. Err: %s", t.fbo.Name, err)
		}
	}
}

// SetConfig updates toggles and exposure. Target sizes only change through UpdateRenderSize.
func (p *Processor) SetConfig(cfg config.RendererConfig) {
	p.cfg = cfg
}

// RenderSize is the size the processor targets are set up for
func (p *Processor) RenderSize() (width, height uint32) {
	return p.width, p.height
}

// BloomLevelSize returns the size of a bloom chain level, for debugging views
func (p *Processor) BloomLevelSize(level int) (width, height uint32) {
	return p.bloom[level].fbo.Size()
}

func (p *Processor) Delete() {

	p.whiteTex.Delete()
	p.blackTex.Delete()
	p.ssaoNoise.Delete()
	p.ssaoFbo.Delete()
	p.ssaoBlurFbo.Delete()

	for i := 0; i < BloomLevels; i++ {
		p.bloom[i].fbo.Delete()
		p.bloom[i].pingFbo.Delete()
	}
}
