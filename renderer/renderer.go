package renderer

import (
	"fmt"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/assert"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/camera"
	"github.com/bloeys/lumen/commandbuffer"
	"github.com/bloeys/lumen/config"
	"github.com/bloeys/lumen/glstate"
	"github.com/bloeys/lumen/lights"
	"github.com/bloeys/lumen/logging"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/pbr"
	"github.com/bloeys/lumen/postprocess"
	"github.com/bloeys/lumen/resources"
	"github.com/bloeys/lumen/scene"
	"github.com/bloeys/lumen/transform"
)

// MaxShadowCastingDirLights is how many directional lights get a shadow map per frame.
// Lights past this count are drawn unshadowed.
const MaxShadowCastingDirLights = 4

const (
	ShaderName_Shadow       = "shadow_depth"
	ShaderName_AmbientSky   = "ambient_sky"
	ShaderName_AmbientProbe = "ambient_probe"
	ShaderName_DirLight     = "dir_light"
	ShaderName_PointLight   = "point_light"
	ShaderName_ProbeCapture = "probe_capture"
	ShaderName_Skybox       = "skybox"
	ShaderName_DebugVolume  = "debug_volume"
)

// Stats counts what the last RenderPushedCommands call drew
type Stats struct {
	DrawCalls int

	GeometryDraws    int
	ShadowMaps       int
	ShadowDraws      int
	AmbientDraws     int
	DirLightDraws    int
	PointLightDraws  int
	CustomDraws      int
	AlphaDraws       int
	DebugDraws       int
	PostProcessDraws int

	// SkippedPasses counts binds of incomplete targets
	SkippedPasses int
}

type pushOptions struct {
	prevTransform    gglm.Mat4
	hasPrevTransform bool
	target           *buffers.Framebuffer
}

type PushOption func(o *pushOptions)

// WithPrevTransform sets last frame's transform, used for motion vectors. Defaults to the current transform.
func WithPrevTransform(prev gglm.Mat4) PushOption {
	return func(o *pushOptions) {
		o.prevTransform = prev
		o.hasPrevTransform = true
	}
}

// WithTarget sends a custom material command to target instead of the default target.
// It has no effect on other material types.
func WithTarget(target *buffers.Framebuffer) PushOption {
	return func(o *pushOptions) {
		o.target = target
	}
}

type probePlacement struct {
	pos    gglm.Vec3
	radius float32
}

// Renderer is a deferred renderer. Commands are pushed during the frame and drawn by RenderPushedCommands.
// It is not safe for concurrent use and must be used from the thread owning the device context.
type Renderer struct {
	dev   Device
	res   *resources.Manager
	cfg   config.RendererConfig
	state *glstate.Cache
	cb    *commandbuffer.CommandBuffer

	pbr  *pbr.System
	post *postprocess.Processor

	cam        *camera.Camera
	defaultCam camera.Camera

	width  uint32
	height uint32

	gBuffer    *buffers.Framebuffer
	lightFbo   *buffers.Framebuffer
	postFbos   [2]*buffers.Framebuffer
	shadowFbos [MaxShadowCastingDirLights]*buffers.Framebuffer
	probeFbo   *buffers.Framebuffer

	quad     *meshes.Mesh
	sphere   *meshes.Mesh
	cube     *meshes.Mesh
	identity gglm.Mat4

	shadowMat       *materials.Material
	ambientSkyMat   *materials.Material
	ambientProbeMat *materials.Material
	dirLightMat     *materials.Material
	pointLightMat   *materials.Material
	probeCaptureMat *materials.Material
	skyboxMat       *materials.Material
	debugMat        *materials.Material

	dirLights     []*lights.DirectionalLight
	pointLights   []*lights.PointLight
	pendingProbes []probePlacement

	// Reused by the ambient pass
	visibleProbes []*pbr.Capture

	viewProj        gglm.Mat4
	prevViewProj    gglm.Mat4
	hasPrevViewProj bool

	// Per pass and per draw uniforms, applied after the material uniforms
	passUnifs materials.Uniforms
	drawUnifs materials.Uniforms

	forceWireframe  bool
	warnedShadowCap bool
	inFrame         bool
	stats           Stats
}

// New creates the renderer and every target and subsystem it needs. All shaders named by the
// ShaderName_ constants of this package, pbr and postprocess must already be registered in res.
func New(dev Device, res *resources.Manager, cfg config.RendererConfig) (*Renderer, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Renderer{
		dev:           dev,
		res:           res,
		cfg:           cfg,
		cb:            commandbuffer.New(),
		width:         cfg.Width,
		height:        cfg.Height,
		quad:          meshes.NewScreenQuad(),
		sphere:        meshes.NewSphere(24, 16),
		cube:          meshes.NewCube(),
		identity:      transform.Identity(),
		dirLights:     make([]*lights.DirectionalLight, 0, 4),
		pointLights:   make([]*lights.PointLight, 0, 16),
		pendingProbes: make([]probePlacement, 0, 4),
		passUnifs:     materials.NewUniforms(),
		drawUnifs:     materials.NewUniforms(),
	}

	camPos := gglm.NewVec3(0, 0, 5)
	camForward := gglm.NewVec3(0, 0, -1)
	worldUp := gglm.NewVec3(0, 1, 0)
	r.defaultCam = camera.NewPerspective(&camPos, &camForward, &worldUp, 0.1, 200, 60*gglm.Deg2Rad, float32(cfg.Width)/float32(cfg.Height))
	r.cam = &r.defaultCam

	r.state = glstate.NewCache(dev)
	r.resetState()

	if err := r.initMaterials(); err != nil {
		return nil, err
	}

	if err := r.initTargets(); err != nil {
		r.deleteTargets()
		return nil, err
	}

	var err error
	r.pbr, err = pbr.New(dev, r, res, cfg)
	if err != nil {
		r.deleteTargets()
		return nil, fmt.Errorf("failed to create pbr subsystem: %w", err)
	}

	r.post, err = postprocess.New(dev, r, res, cfg)
	if err != nil {
		r.pbr.Delete()
		r.deleteTargets()
		return nil, fmt.Errorf("failed to create post processor: %w", err)
	}

	logging.InfoLog.Infof("Renderer initialized at %dx%d", r.width, r.height)
	return r, nil
}

// resetState pushes a known pipeline state to the device regardless of what the cache believes
func (r *Renderer) resetState() {

	r.state.Invalidate()
	r.state.SetDepthTest(false)
	r.state.SetDepthFunc(glstate.DepthFunc_Less)
	r.state.SetBlend(false)
	r.state.SetBlendFunc(glstate.BlendFactor_One, glstate.BlendFactor_Zero)
	r.state.SetCull(false)
	r.state.SetCullFace(glstate.Face_Back)
	r.state.SetPolygonMode(glstate.PolygonMode_Fill)
	r.state.UseProgram(0)
}

func (r *Renderer) newMaterial(name, shaderName string, settings materials.MaterialSettings) (*materials.Material, error) {

	prog, err := r.res.Shader(shaderName)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer material '%s': %w", name, err)
	}

	mat := materials.NewMaterial(name, materials.MaterialType_Custom, prog)
	mat.Settings = settings
	return mat, nil
}

func setLightingSamplers(m *materials.Material) {
	m.SetUnifInt32("gPosition", int32(materials.TextureSlot_GPosition))
	m.SetUnifInt32("gNormal", int32(materials.TextureSlot_GNormal))
	m.SetUnifInt32("gAlbedo", int32(materials.TextureSlot_GAlbedo))
	m.SetUnifInt32("ssaoMap", int32(materials.TextureSlot_SSAO))
	m.SetUnifInt32("brdfLut", int32(materials.TextureSlot_BrdfLut))
	m.SetUnifInt32("irradianceMap", int32(materials.TextureSlot_Irradiance))
	m.SetUnifInt32("prefilterMap", int32(materials.TextureSlot_Prefiltered))
	m.SetUnifInt32("shadowMap", int32(materials.TextureSlot_ShadowMap1))
}

func (r *Renderer) initMaterials() error {

	const (
		model     = materials.MaterialSettings_HasModelMtx
		normalMtx = materials.MaterialSettings_HasNormalMtx
		blend     = materials.MaterialSettings_Blend
		depthTest = materials.MaterialSettings_DepthTest
		cull      = materials.MaterialSettings_Cull
	)

	mats := []struct {
		dst      **materials.Material
		name     string
		shader   string
		settings materials.MaterialSettings
	}{
		{&r.shadowMat, "ShadowDepth", ShaderName_Shadow, model | depthTest | cull},
		{&r.ambientSkyMat, "AmbientSky", ShaderName_AmbientSky, blend},
		{&r.ambientProbeMat, "AmbientProbe", ShaderName_AmbientProbe, model | blend | cull},
		{&r.dirLightMat, "DirLight", ShaderName_DirLight, blend},
		{&r.pointLightMat, "PointLight", ShaderName_PointLight, model | blend | cull},
		{&r.probeCaptureMat, "ProbeCapture", ShaderName_ProbeCapture, model | normalMtx | depthTest | cull},
		{&r.skyboxMat, "Skybox", ShaderName_Skybox, model},
		{&r.debugMat, "DebugVolume", ShaderName_DebugVolume, model | depthTest},
	}

	for _, m := range mats {

		mat, err := r.newMaterial(m.name, m.shader, m.settings)
		if err != nil {
			return err
		}

		*m.dst = mat
	}

	for _, m := range []*materials.Material{r.ambientSkyMat, r.ambientProbeMat, r.dirLightMat, r.pointLightMat} {

		m.BlendSrc = glstate.BlendFactor_One
		m.BlendDst = glstate.BlendFactor_One
		setLightingSamplers(m)
	}

	// Volumes render their back faces so they still light when the camera is inside them
	r.ambientProbeMat.CullFace = glstate.Face_Front
	r.pointLightMat.CullFace = glstate.Face_Front

	r.debugMat.PolygonMode = glstate.PolygonMode_Line
	r.skyboxMat.SetUnifInt32("skybox", int32(materials.TextureSlot_Cubemap))
	r.probeCaptureMat.SetUnifInt32("diffTex", int32(materials.TextureSlot_Diffuse))
	return nil
}

func newTarget(dev buffers.Device, name string, w, h uint32, depth buffers.FramebufferAttachmentDataFormat, colors ...buffers.FramebufferAttachmentDataFormat) (*buffers.Framebuffer, error) {

	fbo, err := buffers.NewFramebuffer(dev, name, w, h)
	if err != nil {
		return nil, err
	}

	for _, c := range colors {
		if err = fbo.NewColorAttachment(c); err != nil {
			fbo.Delete()
			return nil, err
		}
	}

	if depth != buffers.FramebufferAttachmentDataFormat_Unknown {
		if err = fbo.NewDepthStencilAttachment(depth); err != nil {
			fbo.Delete()
			return nil, err
		}
	}

	return fbo, nil
}

func (r *Renderer) initTargets() error {

	var err error

	// Position and normal need the range and precision of floats, albedo doesn't
	r.gBuffer, err = newTarget(r.dev, "GBuffer", r.width, r.height,
		buffers.FramebufferAttachmentDataFormat_Depth24Stencil8,
		buffers.FramebufferAttachmentDataFormat_RGBA16F,
		buffers.FramebufferAttachmentDataFormat_RGBA16F,
		buffers.FramebufferAttachmentDataFormat_RGBA8,
	)
	if err != nil {
		return err
	}

	r.lightFbo, err = newTarget(r.dev, "Lighting", r.width, r.height,
		buffers.FramebufferAttachmentDataFormat_Depth24Stencil8,
		buffers.FramebufferAttachmentDataFormat_RGBA16F,
	)
	if err != nil {
		return err
	}

	for i := range r.postFbos {
		r.postFbos[i], err = newTarget(r.dev, fmt.Sprintf("PostChain%d", i), r.width, r.height,
			buffers.FramebufferAttachmentDataFormat_Unknown,
			buffers.FramebufferAttachmentDataFormat_RGBA16F,
		)
		if err != nil {
			return err
		}
	}

	for i := range r.shadowFbos {
		r.shadowFbos[i], err = newTarget(r.dev, fmt.Sprintf("DirLightShadow%d", i), r.cfg.ShadowMapSize, r.cfg.ShadowMapSize,
			buffers.FramebufferAttachmentDataFormat_DepthF32,
		)
		if err != nil {
			return err
		}
	}

	// Color attachment is switched between the faces of the capture cubemap
	r.probeFbo, err = newTarget(r.dev, "ProbeCapture", r.cfg.ProbeCaptureSize, r.cfg.ProbeCaptureSize,
		buffers.FramebufferAttachmentDataFormat_Depth24Stencil8,
	)
	return err
}

func (r *Renderer) allTargets() []*buffers.Framebuffer {

	out := []*buffers.Framebuffer{r.gBuffer, r.lightFbo, r.probeFbo}
	out = append(out, r.postFbos[:]...)
	out = append(out, r.shadowFbos[:]...)
	return out
}

func (r *Renderer) deleteTargets() {

	for _, fbo := range r.allTargets() {
		if fbo != nil {
			fbo.Delete()
		}
	}
}

// PushRender queues mesh to be drawn with mat this frame. Where it is drawn depends on the material type:
// default materials go through the deferred passes, custom ones are drawn forward into their target,
// blended ones of either type go to the alpha pass.
func (r *Renderer) PushRender(mesh *meshes.Mesh, mat *materials.Material, model gglm.Mat4, opts ...PushOption) {

	assert.T(!r.inFrame, "PushRender called while rendering a frame")

	o := pushOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if !o.hasPrevTransform {
		o.prevTransform = model
	}

	var boxMin, boxMax gglm.Vec3
	if mesh != nil {
		boxMin, boxMax = transform.TransformAABB(&model, &mesh.BoxMin, &mesh.BoxMax)
	} else {
		boxMin = transform.Position(&model)
		boxMax = boxMin
	}

	r.cb.Push(mesh, mat, &model, &o.prevTransform, &boxMin, &boxMax, o.target)
}

// PushSceneNode pushes every drawable node under root, or the whole graph if root is scene.NoParent.
// World transforms and bounds are read as computed by the last graph.UpdateTransforms call.
func (r *Renderer) PushSceneNode(graph *scene.Graph, root scene.NodeId, opts ...PushOption) {

	assert.T(!r.inFrame, "PushSceneNode called while rendering a frame")

	o := pushOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	graph.Walk(root, func(id scene.NodeId, n *scene.Node) bool {

		if n.IsDrawable() {
			r.cb.Push(n.Mesh, n.Material, &n.World, &n.PrevWorld, &n.BoxMin, &n.BoxMax, o.target)
		}

		return true
	})
}

// PushPostProcessor appends a full screen pass to the post process chain. Passes run in push order,
// each reading the previous result from the Source texture slot.
func (r *Renderer) PushPostProcessor(mat *materials.Material) {

	assert.T(!r.inFrame, "PushPostProcessor called while rendering a frame")
	assert.T(mat.Type() == materials.MaterialType_PostProcess, "PushPostProcessor got material '%s' of type %s", mat.Name, mat.Type())

	r.cb.Push(nil, mat, &r.identity, &r.identity, &gglm.Vec3{}, &gglm.Vec3{}, nil)
}

// AddDirLight registers a light until ClearLights. Its fields are read every frame,
// so it can be changed in place.
func (r *Renderer) AddDirLight(l *lights.DirectionalLight) {
	assert.T(l != nil, "AddDirLight got a nil light")
	r.dirLights = append(r.dirLights, l)
}

func (r *Renderer) AddPointLight(l *lights.PointLight) {
	assert.T(l != nil, "AddPointLight got a nil light")
	r.pointLights = append(r.pointLights, l)
}

func (r *Renderer) ClearLights() {

	for _, l := range r.dirLights {
		l.ShadowTarget = nil
	}

	clear(r.dirLights)
	clear(r.pointLights)
	r.dirLights = r.dirLights[:0]
	r.pointLights = r.pointLights[:0]
}

func (r *Renderer) DirLights() []*lights.DirectionalLight {
	return r.dirLights
}

func (r *Renderer) PointLights() []*lights.PointLight {
	return r.pointLights
}

func (r *Renderer) Camera() *camera.Camera {
	return r.cam
}

// SetCamera sets the camera used for the next frames. nil restores the renderer's own camera.
func (r *Renderer) SetCamera(c *camera.Camera) {

	if c == nil {
		c = &r.defaultCam
	}

	r.cam = c
}

func (r *Renderer) Config() config.RendererConfig {
	return r.cfg
}

// SetConfig applies feature toggles and exposure right away and resizes if the render size changed.
// Sizes of shadow maps and captures are only read at creation.
func (r *Renderer) SetConfig(cfg config.RendererConfig) error {

	assert.T(!r.inFrame, "SetConfig called while rendering a frame")

	if err := cfg.Validate(); err != nil {
		return err
	}

	sizeChanged := cfg.Width != r.width || cfg.Height != r.height

	// Creation time sizes stay as they are
	cfg.ShadowMapSize = r.cfg.ShadowMapSize
	cfg.EnvCubeSize = r.cfg.EnvCubeSize
	cfg.IrradianceSize = r.cfg.IrradianceSize
	cfg.PrefilterSize = r.cfg.PrefilterSize
	cfg.BrdfLutSize = r.cfg.BrdfLutSize
	cfg.ProbeCaptureSize = r.cfg.ProbeCaptureSize

	r.cfg = cfg
	r.post.SetConfig(cfg)

	if sizeChanged {
		r.SetRenderSize(cfg.Width, cfg.Height)
	}

	return nil
}

// SetRenderSize resizes every screen sized target and updates the camera aspect ratio.
func (r *Renderer) SetRenderSize(width, height uint32) {

	assert.T(!r.inFrame, "SetRenderSize called while rendering a frame")

	if width == 0 || height == 0 {
		logging.WarnLog.Warnf("Ignoring invalid render size %dx%d", width, height)
		return
	}

	if width == r.width && height == r.height {
		return
	}

	r.width = width
	r.height = height
	r.cfg.Width = width
	r.cfg.Height = height

	screenTargets := append([]*buffers.Framebuffer{r.gBuffer, r.lightFbo}, r.postFbos[:]...)
	for _, fbo := range screenTargets {
		if err := fbo.Resize(width, height); err != nil {
			logging.ErrLog.Errorf("Failed to resize render target '%s'. Err: %s", fbo.Name, err)
		}
	}

	r.post.UpdateRenderSize(width, height)
	r.cam.SetAspectRatio(float32(width) / float32(height))
}

func (r *Renderer) RenderSize() (width, height uint32) {
	return r.width, r.height
}

// Stats returns the counters of the last rendered frame
func (r *Renderer) Stats() Stats {
	return r.stats
}

func (r *Renderer) State() *glstate.Cache {
	return r.state
}

func (r *Renderer) PBR() *pbr.System {
	return r.pbr
}

func (r *Renderer) PostProcessor() *postprocess.Processor {
	return r.post
}

// GBuffer holds world position, world normal and albedo in color attachments 0, 1 and 2.
func (r *Renderer) GBuffer() *buffers.Framebuffer {
	return r.gBuffer
}

// LightingTarget is where lighting accumulates and forward passes draw.
func (r *Renderer) LightingTarget() *buffers.Framebuffer {
	return r.lightFbo
}

// Shutdown frees every target, texture and subsystem the renderer created.
// Resources in the resource manager are left to their owner.
func (r *Renderer) Shutdown() {

	assert.T(!r.inFrame, "Shutdown called while rendering a frame")

	r.cb.Clear()
	r.ClearLights()
	r.post.Delete()
	r.pbr.Delete()
	r.deleteTargets()
}
