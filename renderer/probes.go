package renderer

import (
	"fmt"
	"math/bits"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/assert"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/logging"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/pbr"
	"github.com/bloeys/lumen/scene"
	"github.com/bloeys/lumen/transform"
)

const probeCaptureNear float32 = 0.1

// AddIrradianceProbe queues a probe placement for the next BakeProbes call.
func (r *Renderer) AddIrradianceProbe(pos gglm.Vec3, radius float32) {
	assert.T(radius > 0, "AddIrradianceProbe got non-positive radius %f", radius)
	r.pendingProbes = append(r.pendingProbes, probePlacement{pos: pos, radius: radius})
}

func (r *Renderer) PendingProbes() int {
	return len(r.pendingProbes)
}

func (r *Renderer) SetSkyCapture(c *pbr.Capture) {
	r.pbr.SetSkyCapture(c)
}

func (r *Renderer) GetSkyCapture() *pbr.Capture {
	return r.pbr.GetSkyCapture()
}

// BakeProbes replaces all irradiance probes with ones captured at the queued placements, and empties the queue.
// The drawable nodes under root (scene.NoParent for all of graph) are rendered around each placement
// over the sky. graph may be nil to capture only the sky.
func (r *Renderer) BakeProbes(graph *scene.Graph, root scene.NodeId) error {

	assert.T(!r.inFrame, "BakeProbes called while rendering a frame")

	placements := r.pendingProbes
	r.pendingProbes = make([]probePlacement, 0, cap(placements))

	r.pbr.ClearIrradianceProbes()
	if len(placements) == 0 {
		return nil
	}

	size := r.cfg.ProbeCaptureSize
	env, err := buffers.NewTexture(r.dev, buffers.TextureDesc{
		Target: buffers.TextureTarget_Cube,
		Format: buffers.FramebufferAttachmentDataFormat_RGBA16F,
		Width:  size,
		Height: size,
		Mips:   uint32(bits.Len32(size)),
	})
	if err != nil {
		return fmt.Errorf("failed to create probe capture cubemap: %w", err)
	}
	defer env.Delete()

	baked := 0
	for _, p := range placements {

		if err := r.captureProbe(env, graph, root, &p); err != nil {
			logging.ErrLog.Errorf("Failed to capture probe at (%.2f, %.2f, %.2f). Err: %s", p.pos.X(), p.pos.Y(), p.pos.Z(), err)
			continue
		}

		r.GenerateMipmaps(env)

		c, err := r.pbr.ProcessCube(env, false)
		if err != nil {
			logging.ErrLog.Errorf("Failed to convolve probe at (%.2f, %.2f, %.2f). Err: %s", p.pos.X(), p.pos.Y(), p.pos.Z(), err)
			continue
		}

		r.pbr.AddIrradianceProbe(c, p.pos, p.radius)
		baked++
	}

	logging.InfoLog.Infof("Baked %d of %d irradiance probes", baked, len(placements))
	return nil
}

// captureProbe renders the six faces of env from the probe position
func (r *Renderer) captureProbe(env *buffers.Texture, graph *scene.Graph, root scene.NodeId, p *probePlacement) error {

	faceViewProjs := pbr.CubeFaceViewProjections(&p.pos, probeCaptureNear, r.cam.FarClip)
	sky := r.pbr.GetSkyCapture()
	skyModel := transform.TranslateScale(&p.pos, 1)

	r.setCaptureLight()

	for face := int32(0); face < 6; face++ {

		r.probeFbo.AttachCubeFace(env, face, 0)
		if !r.BindTarget(r.probeFbo, true) {
			return fmt.Errorf("probe capture target incomplete at face %d", face)
		}

		r.passUnifs.Reset()
		r.passUnifs.SetMat4("viewProjection", &faceViewProjs[face])
		r.passUnifs.SetVec3("camPos", &p.pos)

		if sky.Environment != nil {
			r.skyboxMat.SetTexture(materials.TextureSlot_Cubemap, sky.Environment)
			r.draw(r.cube, r.skyboxMat, &skyModel, &skyModel, &r.passUnifs)
		}

		if graph == nil {
			continue
		}

		graph.Walk(root, func(id scene.NodeId, n *scene.Node) bool {

			if !n.IsDrawable() || n.Material.Type() == materials.MaterialType_PostProcess || n.Material.IsBlended() {
				return true
			}

			r.setCaptureSurface(n.Material)
			r.draw(n.Mesh, r.probeCaptureMat, &n.World, &n.World, &r.passUnifs)
			return true
		})
	}

	return nil
}

// setCaptureLight gives the capture shader the first directional light, so baked probes see direct light
func (r *Renderer) setCaptureLight() {

	m := r.probeCaptureMat
	if len(r.dirLights) == 0 || !r.cfg.Lights {
		m.SetUnifInt32("hasLight", 0)
		return
	}

	l := r.dirLights[0]
	dir := l.Direction
	if dir.X() == 0 && dir.Y() == 0 && dir.Z() == 0 {
		m.SetUnifInt32("hasLight", 0)
		return
	}

	dir = *dir.Normalize()
	color := scaledColor(&l.Color, l.Intensity)
	m.SetUnifInt32("hasLight", 1)
	m.SetUnifVec3("lightDir", &dir)
	m.SetUnifVec3("lightColor", &color)
}

var white = gglm.NewVec4(1, 1, 1, 1)

// setCaptureSurface copies the albedo inputs of a scene material onto the capture material
func (r *Renderer) setCaptureSurface(src *materials.Material) {

	m := r.probeCaptureMat

	diffuse := src.Textures[materials.TextureSlot_Diffuse]
	m.SetTexture(materials.TextureSlot_Diffuse, diffuse)
	if diffuse != nil {
		m.SetUnifInt32("hasDiffTex", 1)
	} else {
		m.SetUnifInt32("hasDiffTex", 0)
	}

	baseColor := white
	if c, ok := src.Uniforms.Vec4s["baseColor"]; ok {
		baseColor = c
	} else if c, ok := src.Uniforms.Vec3s["baseColor"]; ok {
		baseColor = gglm.NewVec4(c.X(), c.Y(), c.Z(), 1)
	}

	m.SetUnifVec4("baseColor", &baseColor)
}
