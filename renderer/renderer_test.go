package renderer

import (
	"errors"
	"testing"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/config"
	"github.com/bloeys/lumen/lights"
	"github.com/bloeys/lumen/logging"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/pbr"
	"github.com/bloeys/lumen/postprocess"
	"github.com/bloeys/lumen/renderer/rendsoft"
	"github.com/bloeys/lumen/resources"
	"github.com/bloeys/lumen/scene"
	"github.com/bloeys/lumen/transform"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var _ Device = &rendsoft.Device{}

const (
	testSize = 64
	center   = testSize / 2

	shaderName_GBuffer = "gbuffer"
	shaderName_Custom  = "custom"
	shaderName_Post    = "post"
)

var (
	emptyShader = []byte("//shader:vertex\nvoid main() {}\n//shader:fragment\nvoid main() {}\n")

	allShaderNames = []string{
		ShaderName_Shadow,
		ShaderName_AmbientSky,
		ShaderName_AmbientProbe,
		ShaderName_DirLight,
		ShaderName_PointLight,
		ShaderName_ProbeCapture,
		ShaderName_Skybox,
		ShaderName_DebugVolume,
		pbr.ShaderName_EquirectToCube,
		pbr.ShaderName_Irradiance,
		pbr.ShaderName_Prefilter,
		pbr.ShaderName_BrdfLut,
		postprocess.ShaderName_SSAO,
		postprocess.ShaderName_SSAOBlur,
		postprocess.ShaderName_Downsample,
		postprocess.ShaderName_Blur,
		postprocess.ShaderName_Upsample,
		postprocess.ShaderName_Composite,
		shaderName_GBuffer,
		shaderName_Custom,
		shaderName_Post,
	}

	testCube = meshes.NewCube()
)

func testConfig() config.RendererConfig {

	cfg := config.Default()
	cfg.Width = testSize
	cfg.Height = testSize
	cfg.ShadowMapSize = 32
	cfg.EnvCubeSize = 16
	cfg.IrradianceSize = 8
	cfg.PrefilterSize = 16
	cfg.BrdfLutSize = 16
	cfg.ProbeCaptureSize = 16
	return cfg
}

type testEnv struct {
	r    *Renderer
	dev  *rendsoft.Device
	res  *resources.Manager
	logs *observer.ObservedLogs
}

func newTestEnv(t *testing.T) *testEnv {

	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	prevLogger := logging.Logger()
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(prevLogger) })

	dev := rendsoft.New(testSize, testSize)
	res := resources.NewManager(dev)
	for _, name := range allShaderNames {
		if _, err := res.RegisterShader(name, emptyShader); err != nil {
			t.Fatalf("failed to register shader '%s': %v", name, err)
		}
	}

	r, err := New(dev, res, testConfig())
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}

	t.Cleanup(func() {
		r.Shutdown()
		res.Delete()
	})

	return &testEnv{r: r, dev: dev, res: res, logs: logs}
}

func (e *testEnv) material(t *testing.T, shaderName string, matType materials.MaterialType) *materials.Material {

	t.Helper()

	prog, err := e.res.Shader(shaderName)
	if err != nil {
		t.Fatalf("missing shader '%s': %v", shaderName, err)
	}

	return materials.NewMaterial(shaderName, matType, prog)
}

func (e *testEnv) pixel(t *testing.T, fbo *buffers.Framebuffer, x, y int) [4]float32 {

	t.Helper()

	px, ok := e.dev.ReadPixel(fbo, 0, x, y)
	if !ok {
		t.Fatalf("failed to read pixel %d,%d of '%s'", x, y, fbo.Name)
	}

	return px
}

func setBaseColor(m *materials.Material, r, g, b, a float32) {
	c := gglm.NewVec4(r, g, b, a)
	m.SetUnifVec4("baseColor", &c)
}

func TestNewFailsWithMissingShaders(t *testing.T) {

	dev := rendsoft.New(testSize, testSize)
	res := resources.NewManager(dev)

	if _, err := New(dev, res, testConfig()); !errors.Is(err, resources.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	cfg := testConfig()
	cfg.Width = 0
	if _, err := New(dev, res, cfg); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestGeometryPassWritesGBuffer(t *testing.T) {

	e := newTestEnv(t)
	mat := e.material(t, shaderName_GBuffer, materials.MaterialType_Default)

	e.r.PushRender(testCube, mat, transform.Identity())

	// Behind the camera, must be frustum culled
	e.r.PushRender(testCube, mat, transform.Translation(0, 0, 20))

	e.r.RenderPushedCommands()

	stats := e.r.Stats()
	if stats.GeometryDraws != 1 {
		t.Errorf("expected 1 geometry draw, got %d", stats.GeometryDraws)
	}

	gBuffer := e.r.GBuffer()
	if px := e.pixel(t, gBuffer, center, center); px != [4]float32{1, 1, 1, 1} {
		t.Errorf("expected the cube at the center of the G-buffer, got %v", px)
	}

	if px := e.pixel(t, gBuffer, 0, 0); px != [4]float32{} {
		t.Errorf("expected an empty G-buffer corner, got %v", px)
	}

	if stats.AmbientDraws != 1 {
		t.Errorf("expected a single sky ambient draw without probes, got %d", stats.AmbientDraws)
	}
}

func TestCommandBufferIsEmptyAfterFrame(t *testing.T) {

	e := newTestEnv(t)
	mat := e.material(t, shaderName_GBuffer, materials.MaterialType_Default)

	e.r.PushRender(testCube, mat, transform.Identity())
	e.r.RenderPushedCommands()
	e.r.RenderPushedCommands()

	if e.r.Stats().GeometryDraws != 0 {
		t.Errorf("expected commands to be consumed by the first frame, got %d draws", e.r.Stats().GeometryDraws)
	}
}

func TestIncompleteCustomTargetIsSkipped(t *testing.T) {

	e := newTestEnv(t)
	mat := e.material(t, shaderName_Custom, materials.MaterialType_Custom)

	empty, err := buffers.NewFramebuffer(e.dev, "Empty", 8, 8)
	if err != nil {
		t.Fatalf("failed to create framebuffer: %v", err)
	}
	defer empty.Delete()

	e.r.PushRender(testCube, mat, transform.Identity(), WithTarget(empty))
	e.r.RenderPushedCommands()

	stats := e.r.Stats()
	if stats.SkippedPasses != 1 {
		t.Errorf("expected 1 skipped pass, got %d", stats.SkippedPasses)
	}

	if stats.CustomDraws != 0 {
		t.Errorf("expected no custom draws, got %d", stats.CustomDraws)
	}

	if n := e.logs.FilterMessageSnippet("is incomplete").Len(); n != 1 {
		t.Errorf("expected 1 incomplete target log, got %d", n)
	}
}

func TestCustomTargetAspectIsRestored(t *testing.T) {

	e := newTestEnv(t)
	mat := e.material(t, shaderName_Custom, materials.MaterialType_Custom)

	target, err := newTarget(e.dev, "Wide", 32, 16, buffers.FramebufferAttachmentDataFormat_Depth24Stencil8, buffers.FramebufferAttachmentDataFormat_RGBA8)
	if err != nil {
		t.Fatalf("failed to create target: %v", err)
	}
	defer target.Delete()

	e.r.PushRender(testCube, mat, transform.Identity(), WithTarget(target))
	e.r.RenderPushedCommands()

	if e.r.Stats().CustomDraws != 1 {
		t.Errorf("expected 1 custom draw, got %d", e.r.Stats().CustomDraws)
	}

	if px := e.pixel(t, target, 16, 8); px[0] != 1 {
		t.Errorf("expected the cube at the center of the custom target, got %v", px)
	}

	if aspect := e.r.Camera().AspectRatio; aspect != 1 {
		t.Errorf("expected camera aspect ratio to be restored to 1, got %f", aspect)
	}
}

func TestShadowCastingDirLightsAreCapped(t *testing.T) {

	e := newTestEnv(t)
	mat := e.material(t, shaderName_GBuffer, materials.MaterialType_Default)

	dirLights := make([]*lights.DirectionalLight, 6)
	for i := range dirLights {
		dirLights[i] = &lights.DirectionalLight{
			Direction:   gglm.NewVec3(0, -1, 0),
			Color:       gglm.NewVec3(1, 1, 1),
			Intensity:   1,
			CastShadows: true,
		}
		e.r.AddDirLight(dirLights[i])
	}

	for frame := 0; frame < 2; frame++ {
		e.r.PushRender(testCube, mat, transform.Identity())
		e.r.RenderPushedCommands()
	}

	stats := e.r.Stats()
	if stats.ShadowMaps != MaxShadowCastingDirLights {
		t.Errorf("expected %d shadow maps, got %d", MaxShadowCastingDirLights, stats.ShadowMaps)
	}

	if stats.ShadowDraws != MaxShadowCastingDirLights {
		t.Errorf("expected one caster drawn per shadow map, got %d", stats.ShadowDraws)
	}

	for i, l := range dirLights {

		hasShadow := l.ShadowTarget != nil
		if hasShadow != (i < MaxShadowCastingDirLights) {
			t.Errorf("light %d: unexpected shadow target %v", i, l.ShadowTarget)
		}
	}

	if stats.DirLightDraws != len(dirLights) {
		t.Errorf("expected every dir light to be drawn, got %d", stats.DirLightDraws)
	}

	if n := e.logs.FilterMessageSnippet("shadow casting directional lights").Len(); n != 1 {
		t.Errorf("expected the cap warning once, got %d", n)
	}

	// Disabled shadows clear the targets
	cfg := e.r.Config()
	cfg.Shadows = false
	if err := e.r.SetConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.r.RenderPushedCommands()
	for i, l := range dirLights {
		if l.ShadowTarget != nil {
			t.Errorf("light %d: expected no shadow target with shadows disabled", i)
		}
	}
}

func TestPointLightsAreFrustumCulled(t *testing.T) {

	e := newTestEnv(t)

	e.r.AddPointLight(&lights.PointLight{Position: gglm.NewVec3(0, 0, 0), Color: gglm.NewVec3(1, 1, 1), Intensity: 1, Radius: 2})
	e.r.AddPointLight(&lights.PointLight{Position: gglm.NewVec3(0, 0, 50), Color: gglm.NewVec3(1, 1, 1), Intensity: 1, Radius: 2})
	e.r.AddPointLight(&lights.PointLight{Position: gglm.NewVec3(0, 0, 0), Color: gglm.NewVec3(1, 1, 1), Intensity: 1, Radius: 0})

	e.r.RenderPushedCommands()
	if n := e.r.Stats().PointLightDraws; n != 1 {
		t.Errorf("expected 1 point light draw, got %d", n)
	}

	cfg := e.r.Config()
	cfg.Lights = false
	if err := e.r.SetConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.r.RenderPushedCommands()
	if n := e.r.Stats().PointLightDraws; n != 0 {
		t.Errorf("expected no point light draws with lights disabled, got %d", n)
	}

	e.r.ClearLights()
	if len(e.r.PointLights()) != 0 || len(e.r.DirLights()) != 0 {
		t.Errorf("expected no lights after ClearLights")
	}
}

func TestBakeProbesReplacesProbesAndConsumesQueue(t *testing.T) {

	e := newTestEnv(t)

	e.r.AddIrradianceProbe(gglm.NewVec3(0, 0, 0), 4)
	e.r.AddIrradianceProbe(gglm.NewVec3(3, 0, 0), 4)
	if e.r.PendingProbes() != 2 {
		t.Fatalf("expected 2 pending probes, got %d", e.r.PendingProbes())
	}

	if err := e.r.BakeProbes(nil, scene.NoParent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	probes := e.r.PBR().Probes()
	if len(probes) != 2 {
		t.Fatalf("expected 2 probes, got %d", len(probes))
	}

	if e.r.PendingProbes() != 0 {
		t.Errorf("expected the queue to be consumed, got %d", e.r.PendingProbes())
	}

	for i, p := range probes {
		if p.Prefiltered != nil {
			t.Errorf("probe %d: expected irradiance only capture", i)
		}
	}

	oldIrradianceId := probes[0].Irradiance.Id

	e.r.AddIrradianceProbe(gglm.NewVec3(0, 1, 0), 2)
	if err := e.r.BakeProbes(nil, scene.NoParent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	probes = e.r.PBR().Probes()
	if len(probes) != 1 {
		t.Fatalf("expected probes to be replaced by 1, got %d", len(probes))
	}

	if probes[0].Position != gglm.NewVec3(0, 1, 0) || probes[0].Radius != 2 {
		t.Errorf("unexpected probe placement %v r=%f", probes[0].Position, probes[0].Radius)
	}

	if e.dev.HasTexture(oldIrradianceId) {
		t.Errorf("expected replaced probe textures to be deleted")
	}

	// Probes around the camera are drawn as volumes instead of the sky quad
	e.r.RenderPushedCommands()
	if n := e.r.Stats().AmbientDraws; n != 1 {
		t.Errorf("expected 1 probe ambient draw, got %d", n)
	}

	// An empty queue clears every probe
	if err := e.r.BakeProbes(nil, scene.NoParent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(e.r.PBR().Probes()) != 0 {
		t.Errorf("expected no probes after baking an empty queue")
	}
}

func TestBakeProbesCapturesScene(t *testing.T) {

	e := newTestEnv(t)
	mat := e.material(t, shaderName_GBuffer, materials.MaterialType_Default)

	graph := scene.NewGraph()
	root := graph.AddNode("root", scene.NoParent, nil, nil, transform.Identity())
	graph.AddNode("cube", root, testCube, mat, transform.Translation(0, 0, -3))
	graph.UpdateTransforms()

	e.r.AddIrradianceProbe(gglm.NewVec3(0, 0, 0), 5)
	if err := e.r.BakeProbes(graph, root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(e.r.PBR().Probes()) != 1 {
		t.Fatalf("expected 1 probe")
	}

	// The scene node is drawn through the capture material, not its own
	captureUnifs := e.dev.ProgramUniforms(e.r.probeCaptureMat.ShaderProg.Id)
	if _, ok := captureUnifs.Mat4s["model"]; !ok {
		t.Errorf("expected the capture program to receive the node model matrix")
	}
}

func TestPushSceneNodeFlattensSubtree(t *testing.T) {

	e := newTestEnv(t)
	mat := e.material(t, shaderName_GBuffer, materials.MaterialType_Default)

	graph := scene.NewGraph()
	root := graph.AddNode("root", scene.NoParent, nil, nil, transform.Identity())
	a := graph.AddNode("a", root, testCube, mat, transform.Translation(1, 0, 0))
	graph.AddNode("b", root, testCube, mat, transform.Translation(-1, 0, 0))
	graph.AddNode("a-child", a, testCube, mat, transform.Translation(0, 1, 0))
	graph.AddNode("other-root", scene.NoParent, testCube, mat, transform.Identity())
	graph.UpdateTransforms()

	e.r.PushSceneNode(graph, root)
	if n := e.r.cb.Len(); n != 3 {
		t.Errorf("expected 3 commands from the root subtree, got %d", n)
	}

	e.r.cb.Clear()
	e.r.PushSceneNode(graph, a)
	if n := e.r.cb.Len(); n != 2 {
		t.Errorf("expected 2 commands from subtree 'a', got %d", n)
	}

	e.r.cb.Clear()
	e.r.PushSceneNode(graph, scene.NoParent)
	if n := e.r.cb.Len(); n != 4 {
		t.Errorf("expected 4 commands from the whole graph, got %d", n)
	}
}

func TestStateCacheSkipsRedundantChanges(t *testing.T) {

	e := newTestEnv(t)
	mat := e.material(t, shaderName_GBuffer, materials.MaterialType_Default)

	frame := func(cubes int) (stateChanges, drawCalls int) {

		for i := 0; i < cubes; i++ {
			e.r.PushRender(testCube, mat, transform.Identity())
		}

		before := e.dev.Counters
		e.r.RenderPushedCommands()
		return e.dev.Counters.StateChanges - before.StateChanges, e.dev.Counters.DrawCalls - before.DrawCalls
	}

	frame(1)
	oneChanges, oneDraws := frame(1)
	tenChanges, tenDraws := frame(10)

	if oneChanges != tenChanges {
		t.Errorf("expected identical draws to add no state changes, got %d for 1 cube and %d for 10", oneChanges, tenChanges)
	}

	if tenDraws-oneDraws != 9 {
		t.Errorf("expected 9 more draw calls, got %d", tenDraws-oneDraws)
	}
}

func TestPassUniformsWinOverMaterial(t *testing.T) {

	e := newTestEnv(t)
	mat := e.material(t, shaderName_GBuffer, materials.MaterialType_Default)

	bogus := transform.Translation(100, 100, 100)
	mat.SetUnifMat4("viewProjection", &bogus)

	prev := transform.Translation(1, 0, 0)
	e.r.PushRender(testCube, mat, transform.Identity(), WithPrevTransform(prev))
	e.r.RenderPushedCommands()

	unifs := e.dev.ProgramUniforms(mat.ShaderProg.Id)
	if unifs == nil {
		t.Fatalf("expected uniforms for the geometry program")
	}

	if unifs.Mat4s["viewProjection"] != e.r.Camera().ProjViewMat() {
		t.Errorf("expected the camera view-projection to override the material value")
	}

	if unifs.Mat4s["prevModel"] != prev {
		t.Errorf("expected prevModel to be the pushed previous transform")
	}

	if unifs.Mat4s["model"] != transform.Identity() {
		t.Errorf("expected model to be the pushed transform")
	}

	if _, ok := unifs.Mat3s["normalMat"]; !ok {
		t.Errorf("expected a normal matrix for a default material")
	}
}

func TestPostProcessChainReadsPreviousResult(t *testing.T) {

	e := newTestEnv(t)

	posts := make([]*materials.Material, 3)
	for i := range posts {
		posts[i] = e.material(t, shaderName_Post, materials.MaterialType_PostProcess)
		e.r.PushPostProcessor(posts[i])
	}

	e.r.RenderPushedCommands()

	if n := e.r.Stats().PostProcessDraws; n != 3 {
		t.Errorf("expected 3 post process draws, got %d", n)
	}

	want := []*buffers.Texture{
		e.r.LightingTarget().ColorTexture(0),
		e.r.postFbos[0].ColorTexture(0),
		e.r.postFbos[1].ColorTexture(0),
	}

	for i, m := range posts {
		if got := m.Textures[materials.TextureSlot_Source]; got != want[i] {
			t.Errorf("post process %d: expected source texture %d, got %v", i, want[i].Id, got)
		}
	}
}

func TestAlphaPassDrawsFarToNear(t *testing.T) {

	e := newTestEnv(t)

	near := e.material(t, shaderName_Custom, materials.MaterialType_Custom)
	far := e.material(t, shaderName_Custom, materials.MaterialType_Custom)
	for _, m := range []*materials.Material{near, far} {
		m.Settings.Set(materials.MaterialSettings_Blend)
		m.Settings.Remove(materials.MaterialSettings_DepthTest)
	}

	setBaseColor(near, 1, 0, 0, 1)
	setBaseColor(far, 0, 0, 1, 1)

	// Pushed near first, so only sorting puts the far one under it
	e.r.PushRender(testCube, near, transform.Translation(0, 0, 2))
	e.r.PushRender(testCube, far, transform.Translation(0, 0, -2))
	e.r.RenderPushedCommands()

	if n := e.r.Stats().AlphaDraws; n != 2 {
		t.Errorf("expected 2 alpha draws, got %d", n)
	}

	if px := e.pixel(t, e.r.LightingTarget(), center, center); px != [4]float32{1, 0, 0, 1} {
		t.Errorf("expected the near red cube on top, got %v", px)
	}
}

func TestCompositeWritesBackbuffer(t *testing.T) {

	e := newTestEnv(t)
	e.r.RenderPushedCommands()

	px, ok := e.dev.ReadBackbufferPixel(center, center)
	if !ok || px != [4]float32{1, 1, 1, 1} {
		t.Errorf("expected the composite to cover the backbuffer, got %v (ok=%v)", px, ok)
	}
}

func TestDebugPassDrawsVolumes(t *testing.T) {

	e := newTestEnv(t)
	e.r.AddPointLight(&lights.PointLight{Position: gglm.NewVec3(0, 0, 0), Radius: 1})
	e.r.AddPointLight(&lights.PointLight{Position: gglm.NewVec3(2, 0, 0), Radius: 1})

	e.r.RenderPushedCommands()
	if n := e.r.Stats().DebugDraws; n != 0 {
		t.Errorf("expected no debug draws by default, got %d", n)
	}

	cfg := e.r.Config()
	cfg.RenderLights = true
	if err := e.r.SetConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.r.RenderPushedCommands()
	if n := e.r.Stats().DebugDraws; n != 2 {
		t.Errorf("expected 2 debug draws, got %d", n)
	}
}

func TestSetRenderSizeResizesTargets(t *testing.T) {

	e := newTestEnv(t)
	e.r.SetRenderSize(32, 16)

	if w, h := e.r.RenderSize(); w != 32 || h != 16 {
		t.Errorf("expected render size 32x16, got %dx%d", w, h)
	}

	for _, fbo := range []*buffers.Framebuffer{e.r.GBuffer(), e.r.LightingTarget(), e.r.postFbos[0], e.r.postFbos[1]} {

		if w, h := fbo.Size(); w != 32 || h != 16 {
			t.Errorf("'%s': expected 32x16, got %dx%d", fbo.Name, w, h)
		}

		if !fbo.IsComplete() {
			t.Errorf("'%s': expected to be complete after resize", fbo.Name)
		}
	}

	if len(e.r.GBuffer().Attachments) != 4 {
		t.Errorf("expected G-buffer to keep its 4 attachments, got %d", len(e.r.GBuffer().Attachments))
	}

	if w, h := e.r.PostProcessor().RenderSize(); w != 32 || h != 16 {
		t.Errorf("expected post processor at 32x16, got %dx%d", w, h)
	}

	if aspect := e.r.Camera().AspectRatio; aspect != 2 {
		t.Errorf("expected aspect ratio 2, got %f", aspect)
	}

	if e.r.Config().Width != 32 || e.r.Config().Height != 16 {
		t.Errorf("expected the config to follow the render size")
	}

	e.r.SetRenderSize(0, 16)
	if w, h := e.r.RenderSize(); w != 32 || h != 16 {
		t.Errorf("expected invalid size to be ignored, got %dx%d", w, h)
	}
}

func TestSetConfig(t *testing.T) {

	e := newTestEnv(t)

	bad := e.r.Config()
	bad.Exposure = 0
	if err := e.r.SetConfig(bad); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}

	cfg := e.r.Config()
	cfg.ShadowMapSize = 1024
	cfg.Exposure = 2
	cfg.Width = 48
	if err := e.r.SetConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := e.r.Config()
	if got.ShadowMapSize != 32 {
		t.Errorf("expected creation time shadow map size to be kept, got %d", got.ShadowMapSize)
	}

	if got.Exposure != 2 {
		t.Errorf("expected exposure 2, got %f", got.Exposure)
	}

	if w, _ := e.r.RenderSize(); w != 48 {
		t.Errorf("expected a width change to resize, got %d", w)
	}
}

func TestSetCamera(t *testing.T) {

	e := newTestEnv(t)
	defaultCam := e.r.Camera()

	cam := *defaultCam
	cam.Pos = gglm.NewVec3(0, 0, 10)
	cam.Update()

	e.r.SetCamera(&cam)
	if e.r.Camera() != &cam {
		t.Errorf("expected the custom camera")
	}

	e.r.SetCamera(nil)
	if e.r.Camera() != defaultCam {
		t.Errorf("expected nil to restore the renderer camera")
	}
}

func TestProbesOutsideFrustumFallBackToSky(t *testing.T) {

	e := newTestEnv(t)

	// In range of the camera but behind it
	e.r.AddIrradianceProbe(gglm.NewVec3(0, 0, 50), 1)
	if err := e.r.BakeProbes(nil, scene.NoParent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(e.r.PBR().GetIrradianceProbes(e.r.Camera().Pos, e.r.Camera().FarClip)) != 1 {
		t.Fatalf("expected the probe to be within the far clip")
	}

	e.r.RenderPushedCommands()

	if n := e.r.Stats().AmbientDraws; n != 1 {
		t.Fatalf("expected a single ambient draw, got %d", n)
	}

	skyUnifs := e.dev.ProgramUniforms(e.r.ambientSkyMat.ShaderProg.Id)
	if _, ok := skyUnifs.Vec3s["camPos"]; !ok {
		t.Errorf("expected the sky ambient pass to be drawn")
	}

	probeUnifs := e.dev.ProgramUniforms(e.r.ambientProbeMat.ShaderProg.Id)
	if _, ok := probeUnifs.Vec3s["probePos"]; ok {
		t.Errorf("expected no probe volume to be drawn")
	}
}

func TestDepthCopyIsSkippedForIncompleteTargets(t *testing.T) {

	e := newTestEnv(t)
	e.r.RenderPushedCommands()

	if n := e.r.Stats().SkippedPasses; n != 0 {
		t.Fatalf("expected no skipped passes, got %d", n)
	}

	empty, err := buffers.NewFramebuffer(e.dev, "Empty", 8, 8)
	if err != nil {
		t.Fatalf("failed to create framebuffer: %v", err)
	}
	defer empty.Delete()

	if e.r.blitDepth(e.r.gBuffer, empty) || e.r.blitDepth(empty, e.r.lightFbo) {
		t.Errorf("expected depth copies involving an incomplete target to be skipped")
	}

	if n := e.r.Stats().SkippedPasses; n != 2 {
		t.Errorf("expected 2 skipped passes, got %d", n)
	}

	if n := e.logs.FilterMessageSnippet("skipping depth copy").Len(); n != 2 {
		t.Errorf("expected 2 incomplete target logs, got %d", n)
	}

	if !e.r.blitDepth(e.r.gBuffer, e.r.lightFbo) {
		t.Errorf("expected the depth copy between complete targets to run")
	}
}
