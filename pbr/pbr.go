package pbr

import (
	"fmt"
	"math/bits"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/assert"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/config"
	"github.com/bloeys/lumen/logging"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/shaders"
	"github.com/bloeys/lumen/transform"
)

// PrefilterMipLevels is the number of roughness levels in a prefiltered cubemap.
// Mip i is convolved with roughness i/(PrefilterMipLevels-1).
const PrefilterMipLevels = 5

const (
	ShaderName_EquirectToCube = "equirect_to_cube"
	ShaderName_Irradiance     = "irradiance_convolution"
	ShaderName_Prefilter      = "prefilter_convolution"
	ShaderName_BrdfLut        = "brdf_lut"
)

const (
	captureNear float32 = 0.1
	captureFar  float32 = 10
)

// Capture is a diffuse irradiance cubemap plus an optional roughness prefiltered cubemap.
type Capture struct {
	Irradiance *buffers.Texture

	// Prefiltered is nil for irradiance only captures
	Prefiltered *buffers.Texture

	// Environment is the cubemap the capture was convolved from, when the subsystem created it
	Environment *buffers.Texture

	Position gglm.Vec3
	Radius   float32
}

func (c *Capture) delete() {

	for _, t := range []*buffers.Texture{c.Irradiance, c.Prefiltered, c.Environment} {
		if t != nil {
			t.Delete()
		}
	}
}

// Drawer draws into render targets. Implemented by the frame renderer so captures go through the same state cache.
type Drawer interface {
	// BindTarget binds fbo with a viewport of its size and optionally clears it.
	// Returns false if the target is incomplete, in which case nothing should be drawn.
	BindTarget(fbo *buffers.Framebuffer, clear bool) bool
	DrawMesh(mesh *meshes.Mesh, mat *materials.Material, model *gglm.Mat4)
	GenerateMipmaps(tex *buffers.Texture)
}

type ShaderSource interface {
	Shader(name string) (shaders.ShaderProgram, error)
}

// System turns environment maps into captures, and keeps the sky capture and the irradiance probes.
type System struct {
	dev    buffers.Device
	drawer Drawer
	cfg    config.RendererConfig

	cubeMesh *meshes.Mesh
	quadMesh *meshes.Mesh

	equirectMat   *materials.Material
	irradianceMat *materials.Material
	prefilterMat  *materials.Material
	brdfMat       *materials.Material

	// Color attachment 0 is switched between cubemap faces
	captureFbo *buffers.Framebuffer
	brdfFbo    *buffers.Framebuffer

	defaultSky *Capture
	sky        *Capture
	probes     []*Capture
}

func New(dev buffers.Device, drawer Drawer, res ShaderSource, cfg config.RendererConfig) (*System, error) {

	s := &System{
		dev:      dev,
		drawer:   drawer,
		cfg:      cfg,
		cubeMesh: meshes.NewCube(),
		quadMesh: meshes.NewScreenQuad(),
		probes:   make([]*Capture, 0, 8),
	}

	var err error
	s.equirectMat, err = newCaptureMaterial(res, "EquirectToCube", ShaderName_EquirectToCube)
	if err != nil {
		return nil, err
	}

	s.irradianceMat, err = newCaptureMaterial(res, "IrradianceConvolution", ShaderName_Irradiance)
	if err != nil {
		return nil, err
	}

	s.prefilterMat, err = newCaptureMaterial(res, "PrefilterConvolution", ShaderName_Prefilter)
	if err != nil {
		return nil, err
	}

	s.brdfMat, err = newCaptureMaterial(res, "BrdfLut", ShaderName_BrdfLut)
	if err != nil {
		return nil, err
	}

	s.captureFbo, err = buffers.NewFramebuffer(dev, "PbrCapture", 1, 1)
	if err != nil {
		return nil, err
	}

	if err = s.renderBrdfLut(); err != nil {
		return nil, err
	}

	sky, err := s.newDefaultSky()
	if err != nil {
		return nil, err
	}

	s.defaultSky = sky
	s.sky = sky
	return s, nil
}

func newCaptureMaterial(res ShaderSource, name, shaderName string) (*materials.Material, error) {

	prog, err := res.Shader(shaderName)
	if err != nil {
		return nil, fmt.Errorf("failed to create pbr material '%s': %w", name, err)
	}

	// The camera sits inside the cube during captures, so culling and depth are off
	mat := materials.NewMaterial(name, materials.MaterialType_Custom, prog)
	mat.Settings = materials.MaterialSettings_HasModelMtx
	return mat, nil
}

func (s *System) renderBrdfLut() error {

	var err error
	s.brdfFbo, err = buffers.NewFramebuffer(s.dev, "BrdfLut", s.cfg.BrdfLutSize, s.cfg.BrdfLutSize)
	if err != nil {
		return err
	}

	err = s.brdfFbo.NewColorAttachment(buffers.FramebufferAttachmentDataFormat_RG16F)
	if err != nil {
		return err
	}

	if !s.drawer.BindTarget(s.brdfFbo, true) {
		return fmt.Errorf("failed to render brdf lut: framebuffer incomplete")
	}

	id := transform.Identity()
	s.drawer.DrawMesh(s.quadMesh, s.brdfMat, &id)
	return nil
}

func (s *System) newDefaultSky() (*Capture, error) {

	const size = 8
	const grey = 0.5

	data := make([]float32, size*size*4*6)
	for i := 0; i < len(data); i += 4 {
		data[i+0] = grey
		data[i+1] = grey
		data[i+2] = grey
		data[i+3] = 1
	}

	env, err := buffers.NewTexture(s.dev, buffers.TextureDesc{
		Target: buffers.TextureTarget_Cube,
		Format: buffers.FramebufferAttachmentDataFormat_RGBA16F,
		Width:  size,
		Height: size,
		Mips:   1,
		Data:   data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create default sky cubemap: %w", err)
	}

	c, err := s.ProcessCube(env, true)
	if err != nil {
		env.Delete()
		return nil, err
	}

	c.Environment = env
	return c, nil
}

// CubeFaceViewProjections returns a 90 degree view-projection per cubemap face in
// +X,-X,+Y,-Y,+Z,-Z order, using the usual cubemap up vectors.
func CubeFaceViewProjections(eye *gglm.Vec3, nearClip, farClip float32) [6]gglm.Mat4 {

	projMat := gglm.Perspective(90*gglm.Deg2Rad, 1, nearClip, farClip)

	targets := [6]gglm.Vec3{
		gglm.NewVec3(1+eye.X(), eye.Y(), eye.Z()),
		gglm.NewVec3(-1+eye.X(), eye.Y(), eye.Z()),
		gglm.NewVec3(eye.X(), 1+eye.Y(), eye.Z()),
		gglm.NewVec3(eye.X(), -1+eye.Y(), eye.Z()),
		gglm.NewVec3(eye.X(), eye.Y(), 1+eye.Z()),
		gglm.NewVec3(eye.X(), eye.Y(), -1+eye.Z()),
	}

	ups := [6]gglm.Vec3{
		gglm.NewVec3(0, -1, 0),
		gglm.NewVec3(0, -1, 0),
		gglm.NewVec3(0, 0, 1),
		gglm.NewVec3(0, 0, -1),
		gglm.NewVec3(0, -1, 0),
		gglm.NewVec3(0, -1, 0),
	}

	out := [6]gglm.Mat4{}
	for i := 0; i < 6; i++ {
		lookAt := gglm.LookAtRH(eye, &targets[i], &ups[i])
		out[i] = *projMat.Clone().Mul(&lookAt.Mat4)
	}

	return out
}

// renderCube draws the unit cube with mat into every face of one mip of dst.
func (s *System) renderCube(dst *buffers.Texture, mip uint32, mat *materials.Material) error {

	origin := gglm.NewVec3(0, 0, 0)
	faceViewProjs := CubeFaceViewProjections(&origin, captureNear, captureFar)
	model := transform.Identity()

	for face := int32(0); face < 6; face++ {

		s.captureFbo.AttachCubeFace(dst, face, mip)
		if !s.drawer.BindTarget(s.captureFbo, true) {
			return fmt.Errorf("failed to render cubemap face %d mip %d: capture framebuffer incomplete", face, mip)
		}

		mat.SetUnifMat4("viewProjection", &faceViewProjs[face])
		s.drawer.DrawMesh(s.cubeMesh, mat, &model)
	}

	return nil
}

func mipCount(size uint32) uint32 {
	return uint32(bits.Len32(size))
}

// ProcessEquirectangular projects an equirectangular 2D texture onto a cubemap and convolves it
// with ProcessCube. The returned capture owns the intermediate cubemap as its Environment.
func (s *System) ProcessEquirectangular(src *buffers.Texture) (*Capture, error) {

	assert.T(src != nil, "ProcessEquirectangular got a nil source texture")

	env, err := buffers.NewTexture(s.dev, buffers.TextureDesc{
		Target: buffers.TextureTarget_Cube,
		Format: buffers.FramebufferAttachmentDataFormat_RGBA16F,
		Width:  s.cfg.EnvCubeSize,
		Height: s.cfg.EnvCubeSize,
		Mips:   mipCount(s.cfg.EnvCubeSize),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create environment cubemap: %w", err)
	}

	s.equirectMat.SetTexture(materials.TextureSlot_Source, src)
	s.equirectMat.SetUnifInt32("equirectMap", int32(materials.TextureSlot_Source))
	if err = s.renderCube(env, 0, s.equirectMat); err != nil {
		env.Delete()
		return nil, err
	}

	// Mips reduce sampling noise in the convolutions
	s.drawer.GenerateMipmaps(env)

	c, err := s.ProcessCube(env, true)
	if err != nil {
		env.Delete()
		return nil, err
	}

	c.Environment = env
	logging.InfoLog.Infof("Processed equirectangular map (%dx%d) into a %d cubemap", src.Width, src.Height, env.Width)
	return c, nil
}

// ProcessCube convolves cube into an irradiance cubemap, and when prefilter is set into a
// prefiltered specular cubemap with PrefilterMipLevels roughness levels.
// The input cubemap is not owned by the returned capture.
func (s *System) ProcessCube(cube *buffers.Texture, prefilter bool) (*Capture, error) {

	assert.T(cube != nil && cube.IsCubemap(), "ProcessCube needs a cubemap texture")

	irradiance, err := buffers.NewTexture(s.dev, buffers.TextureDesc{
		Target: buffers.TextureTarget_Cube,
		Format: buffers.FramebufferAttachmentDataFormat_RGBA16F,
		Width:  s.cfg.IrradianceSize,
		Height: s.cfg.IrradianceSize,
		Mips:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create irradiance cubemap: %w", err)
	}

	s.irradianceMat.SetTexture(materials.TextureSlot_Cubemap, cube)
	s.irradianceMat.SetUnifInt32("envMap", int32(materials.TextureSlot_Cubemap))
	if err = s.renderCube(irradiance, 0, s.irradianceMat); err != nil {
		irradiance.Delete()
		return nil, err
	}

	c := &Capture{
		Irradiance: irradiance,
	}

	if !prefilter {
		return c, nil
	}

	prefiltered, err := buffers.NewTexture(s.dev, buffers.TextureDesc{
		Target: buffers.TextureTarget_Cube,
		Format: buffers.FramebufferAttachmentDataFormat_RGBA16F,
		Width:  s.cfg.PrefilterSize,
		Height: s.cfg.PrefilterSize,
		Mips:   PrefilterMipLevels,
	})
	if err != nil {
		irradiance.Delete()
		return nil, fmt.Errorf("failed to create prefiltered cubemap: %w", err)
	}

	s.prefilterMat.SetTexture(materials.TextureSlot_Cubemap, cube)
	s.prefilterMat.SetUnifInt32("envMap", int32(materials.TextureSlot_Cubemap))
	s.prefilterMat.SetUnifFloat32("envMapSize", float32(cube.Width))

	for mip := uint32(0); mip < PrefilterMipLevels; mip++ {

		roughness := float32(mip) / float32(PrefilterMipLevels-1)
		s.prefilterMat.SetUnifFloat32("roughness", roughness)

		if err = s.renderCube(prefiltered, mip, s.prefilterMat); err != nil {
			irradiance.Delete()
			prefiltered.Delete()
			return nil, err
		}
	}

	c.Prefiltered = prefiltered
	return c, nil
}

// AddIrradianceProbe places capture in the world and hands its ownership to the probe list.
func (s *System) AddIrradianceProbe(capture *Capture, position gglm.Vec3, radius float32) {

	assert.T(capture != nil, "AddIrradianceProbe got a nil capture")

	capture.Position = position
	capture.Radius = radius
	s.probes = append(s.probes, capture)
}

// ClearIrradianceProbes deletes every probe. Probes are only ever replaced as a whole set.
func (s *System) ClearIrradianceProbes() {

	for _, p := range s.probes {
		if p != s.sky {
			p.delete()
		}
	}

	clear(s.probes)
	s.probes = s.probes[:0]
}

func (s *System) Probes() []*Capture {
	return s.probes
}

// GetIrradianceProbes returns the probes whose position is strictly within radius of pos.
// When none are, it returns only the sky capture. The probe list itself is never modified.
func (s *System) GetIrradianceProbes(pos gglm.Vec3, radius float32) []*Capture {

	assert.T(s.sky != nil, "GetIrradianceProbes called without a sky capture")

	radiusSqr := radius * radius
	out := make([]*Capture, 0, 4)
	for _, p := range s.probes {
		if transform.DistSqr(&pos, &p.Position) < radiusSqr {
			out = append(out, p)
		}
	}

	if len(out) == 0 {
		out = append(out, s.sky)
	}

	return out
}

func (s *System) SetSkyCapture(c *Capture) {
	assert.T(c != nil, "SetSkyCapture got a nil capture")
	s.sky = c
}

func (s *System) GetSkyCapture() *Capture {
	return s.sky
}

func (s *System) BRDFLUT() *buffers.Texture {
	return s.brdfFbo.ColorTexture(0)
}

// Delete frees the textures and framebuffers the subsystem created. Captures handed
// to SetSkyCapture are not freed.
func (s *System) Delete() {

	s.ClearIrradianceProbes()

	if s.defaultSky != nil {
		s.defaultSky.delete()
		s.defaultSky = nil
	}

	s.captureFbo.Delete()
	s.brdfFbo.Delete()
}
