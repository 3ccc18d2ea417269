package renderer

import (
	"sort"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/assert"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/camera"
	"github.com/bloeys/lumen/commandbuffer"
	"github.com/bloeys/lumen/logging"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/pbr"
	"github.com/bloeys/lumen/transform"
)

var (
	debugLightColor = gglm.NewVec4(1, 0.85, 0.2, 1)
	debugProbeColor = gglm.NewVec4(0.2, 0.8, 1, 1)
)

// RenderPushedCommands draws everything pushed since the last frame and presents the result to the
// default framebuffer. The command buffer is empty afterwards.
//
// Passes in order: geometry, shadows, SSAO, lighting, depth copy, custom targets and forward custom,
// alpha, bloom, debug volumes, post process chain, final composite.
func (r *Renderer) RenderPushedCommands() {

	assert.T(!r.inFrame, "RenderPushedCommands called while already rendering a frame")
	r.inFrame = true
	defer func() { r.inFrame = false }()

	r.stats = Stats{}

	r.viewProj = r.cam.ProjViewMat()
	if !r.hasPrevViewProj {
		r.prevViewProj = r.viewProj
		r.hasPrevViewProj = true
	}

	frustum := r.cam.Frustum()
	r.cb.SetFrustum(frustum)
	r.cb.Sort()
	r.setCameraUniforms()

	r.geometryPass()

	if r.cfg.Shadows {
		r.shadowPass()
	} else {
		for _, l := range r.dirLights {
			l.ShadowTarget = nil
		}
	}

	r.post.ProcessPreLighting(r.gBuffer.ColorTexture(0), r.gBuffer.ColorTexture(1), &r.cam.ViewMat, &r.cam.ProjMat)

	if r.BindTarget(r.lightFbo, true) {

		r.ambientPass(&frustum)
		if r.cfg.Lights {
			r.dirLightPass()
			r.pointLightPass(&frustum)
		}
	}

	// Forward passes depth test against the opaque geometry
	r.blitDepth(r.gBuffer, r.lightFbo)

	r.customPass()
	r.alphaPass()

	r.post.ProcessPostLighting(r.lightFbo.ColorTexture(0))

	r.debugPass()

	final := r.postProcessChain()
	r.post.Blit(final, r.gBuffer.ColorTexture(0), &r.prevViewProj, &r.viewProj)

	r.prevViewProj = r.viewProj
	r.cb.Clear()
}

func (r *Renderer) setCameraUniforms() {
	r.passUnifs.Reset()
	r.passUnifs.SetMat4("viewProjection", &r.viewProj)
	r.passUnifs.SetMat4("prevViewProjection", &r.prevViewProj)
	r.passUnifs.SetVec3("camPos", &r.cam.Pos)
}

func (r *Renderer) drawCommands(cmds []commandbuffer.RenderCommand) int {

	for i := 0; i < len(cmds); i++ {
		c := &cmds[i]
		r.draw(c.Mesh, c.Material, &c.Transform, &c.PrevTransform, &r.passUnifs)
	}

	return len(cmds)
}

func (r *Renderer) geometryPass() {

	if !r.BindTarget(r.gBuffer, true) {
		return
	}

	r.forceWireframe = r.cfg.Wireframe
	r.stats.GeometryDraws = r.drawCommands(r.cb.GetDeferredCommands(true))
	r.forceWireframe = false
}

func (r *Renderer) shadowPass() {

	casters := r.cb.GetShadowCastCommands()
	focus := r.cam.Pos

	shadowIndex := 0
	for _, l := range r.dirLights {

		l.ShadowTarget = nil
		if !l.CastShadows {
			continue
		}

		if shadowIndex == MaxShadowCastingDirLights {

			if !r.warnedShadowCap {
				logging.WarnLog.Warnf("More than %d shadow casting directional lights, extra lights are drawn without shadows", MaxShadowCastingDirLights)
				r.warnedShadowCap = true
			}

			continue
		}

		fbo := r.shadowFbos[shadowIndex]
		shadowIndex++

		if !r.BindTarget(fbo, true) {
			continue
		}

		l.LightSpaceViewProjection = l.ComputeLightSpaceViewProjection(&focus)
		r.shadowMat.SetUnifMat4("lightSpaceViewProjection", &l.LightSpaceViewProjection)

		for i := 0; i < len(casters); i++ {
			c := &casters[i]
			r.draw(c.Mesh, r.shadowMat, &c.Transform, &c.PrevTransform, nil)
		}

		l.ShadowTarget = fbo
		r.stats.ShadowMaps++
		r.stats.ShadowDraws += len(casters)
	}
}

// bindLightingInputs sets the G-buffer, ambient occlusion and image based lighting textures of m.
func (r *Renderer) bindLightingInputs(m *materials.Material, c *pbr.Capture) {

	sky := r.pbr.GetSkyCapture()

	m.SetTexture(materials.TextureSlot_GPosition, r.gBuffer.ColorTexture(0))
	m.SetTexture(materials.TextureSlot_GNormal, r.gBuffer.ColorTexture(1))
	m.SetTexture(materials.TextureSlot_GAlbedo, r.gBuffer.ColorTexture(2))
	m.SetTexture(materials.TextureSlot_SSAO, r.post.SSAOTexture())
	m.SetTexture(materials.TextureSlot_BrdfLut, r.pbr.BRDFLUT())
	m.SetTexture(materials.TextureSlot_Irradiance, c.Irradiance)

	// Probes are irradiance only, specular always comes from the sky
	prefiltered := c.Prefiltered
	if prefiltered == nil {
		prefiltered = sky.Prefiltered
	}
	m.SetTexture(materials.TextureSlot_Prefiltered, prefiltered)
	m.SetUnifVec3("camPos", &r.cam.Pos)
}

func (r *Renderer) ambientPass(frustum *camera.Frustum) {

	sky := r.pbr.GetSkyCapture()

	r.visibleProbes = r.visibleProbes[:0]
	if r.cfg.IrradianceGI {
		for _, c := range r.pbr.GetIrradianceProbes(r.cam.Pos, r.cam.FarClip) {
			if c != sky && frustum.IntersectsSphere(&c.Position, c.Radius) {
				r.visibleProbes = append(r.visibleProbes, c)
			}
		}
	}

	if len(r.visibleProbes) == 0 {
		r.bindLightingInputs(r.ambientSkyMat, sky)
		r.draw(r.quad, r.ambientSkyMat, &r.identity, &r.identity, nil)
		r.stats.AmbientDraws++
		return
	}

	for _, c := range r.visibleProbes {

		model := transform.TranslateScale(&c.Position, c.Radius)
		r.bindLightingInputs(r.ambientProbeMat, c)
		r.ambientProbeMat.SetUnifVec3("probePos", &c.Position)
		r.ambientProbeMat.SetUnifFloat32("probeRadius", c.Radius)
		r.draw(r.sphere, r.ambientProbeMat, &model, &model, &r.passUnifs)
		r.stats.AmbientDraws++
	}
}

func scaledColor(c *gglm.Vec3, intensity float32) gglm.Vec3 {
	return gglm.NewVec3(c.X()*intensity, c.Y()*intensity, c.Z()*intensity)
}

func (r *Renderer) dirLightPass() {

	m := r.dirLightMat
	sky := r.pbr.GetSkyCapture()

	for _, l := range r.dirLights {

		dir := l.Direction
		if dir.X() == 0 && dir.Y() == 0 && dir.Z() == 0 {
			continue
		}
		dir = *dir.Normalize()
		color := scaledColor(&l.Color, l.Intensity)

		r.bindLightingInputs(m, sky)
		m.SetUnifVec3("lightDir", &dir)
		m.SetUnifVec3("lightColor", &color)

		if l.ShadowTarget != nil {
			m.SetTexture(materials.TextureSlot_ShadowMap1, l.ShadowTarget.DepthTexture())
			m.SetUnifInt32("hasShadow", 1)
			m.SetUnifMat4("lightSpaceViewProjection", &l.LightSpaceViewProjection)
		} else {
			m.SetTexture(materials.TextureSlot_ShadowMap1, nil)
			m.SetUnifInt32("hasShadow", 0)
		}

		r.draw(r.quad, m, &r.identity, &r.identity, nil)
		r.stats.DirLightDraws++
	}
}

func (r *Renderer) pointLightPass(frustum *camera.Frustum) {

	m := r.pointLightMat
	sky := r.pbr.GetSkyCapture()

	for _, l := range r.pointLights {

		if l.Radius <= 0 || !frustum.IntersectsSphere(&l.Position, l.Radius) {
			continue
		}

		model := l.VolumeTransform()
		color := scaledColor(&l.Color, l.Intensity)

		r.bindLightingInputs(m, sky)
		m.SetUnifVec3("lightPos", &l.Position)
		m.SetUnifVec3("lightColor", &color)
		m.SetUnifFloat32("lightRadius", l.Radius)

		r.draw(r.sphere, m, &model, &model, &r.passUnifs)
		r.stats.PointLightDraws++
	}
}

func (r *Renderer) customPass() {

	cam := r.cam
	origAspect := cam.AspectRatio

	for _, target := range r.cb.CustomTargets() {

		w, h := target.Size()
		if w > 0 && h > 0 {
			cam.SetAspectRatio(float32(w) / float32(h))
		}

		r.viewProj = cam.ProjViewMat()
		r.setCameraUniforms()

		if !r.BindTarget(target, true) {
			continue
		}

		r.forceWireframe = r.cfg.Wireframe
		r.stats.CustomDraws += r.drawCommands(r.cb.GetCustomCommands(target))
		r.forceWireframe = false
	}

	if cam.AspectRatio != origAspect {
		cam.SetAspectRatio(origAspect)
	}

	r.viewProj = cam.ProjViewMat()
	r.setCameraUniforms()

	cmds := r.cb.GetCustomCommands(nil)
	if len(cmds) == 0 || !r.BindTarget(r.lightFbo, false) {
		return
	}

	r.forceWireframe = r.cfg.Wireframe
	r.stats.CustomDraws += r.drawCommands(cmds)
	r.forceWireframe = false
}

func (r *Renderer) alphaPass() {

	cmds := r.cb.GetAlphaCommands(true)
	if len(cmds) == 0 || !r.BindTarget(r.lightFbo, false) {
		return
	}

	// Far to near so blending composes correctly
	camPos := r.cam.Pos
	sort.SliceStable(cmds, func(i, j int) bool {
		return boxDistSqr(&cmds[i], &camPos) > boxDistSqr(&cmds[j], &camPos)
	})

	r.forceWireframe = r.cfg.Wireframe
	r.stats.AlphaDraws = r.drawCommands(cmds)
	r.forceWireframe = false
}

func boxDistSqr(c *commandbuffer.RenderCommand, p *gglm.Vec3) float32 {

	center := gglm.NewVec3(
		(c.BoxMin.X()+c.BoxMax.X())*0.5,
		(c.BoxMin.Y()+c.BoxMax.Y())*0.5,
		(c.BoxMin.Z()+c.BoxMax.Z())*0.5,
	)

	return transform.DistSqr(&center, p)
}

func (r *Renderer) debugPass() {

	if !r.cfg.RenderLights && !r.cfg.RenderProbes {
		return
	}

	if !r.BindTarget(r.lightFbo, false) {
		return
	}

	if r.cfg.RenderLights {

		r.debugMat.SetUnifVec4("color", &debugLightColor)
		for _, l := range r.pointLights {
			model := l.VolumeTransform()
			r.draw(r.sphere, r.debugMat, &model, &model, &r.passUnifs)
			r.stats.DebugDraws++
		}
	}

	if r.cfg.RenderProbes {

		r.debugMat.SetUnifVec4("color", &debugProbeColor)
		for _, p := range r.pbr.Probes() {
			model := transform.TranslateScale(&p.Position, p.Radius)
			r.draw(r.sphere, r.debugMat, &model, &model, &r.passUnifs)
			r.stats.DebugDraws++
		}
	}
}

// postProcessChain runs the pushed post process materials, each reading the result of the previous one,
// and returns the final texture.
func (r *Renderer) postProcessChain() *buffers.Texture {

	src := r.lightFbo.ColorTexture(0)
	for i, cmd := range r.cb.GetPostProcessingCommands() {

		dst := r.postFbos[i%len(r.postFbos)]
		if !r.Blit(src, dst, cmd.Material, materials.TextureSlot_Source) {
			break
		}

		src = dst.ColorTexture(0)
		r.stats.PostProcessDraws++
	}

	return src
}
