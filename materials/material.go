package materials

import (
	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/glstate"
	"github.com/bloeys/lumen/shaders"
)

var (
	lastMatId uint32
)

// MaterialType decides which command list a draw lands in. It is fixed when the material is created.
type MaterialType uint8

const (
	// MaterialType_Default materials write the G-buffer and are lit by the deferred lighting passes
	MaterialType_Default MaterialType = iota
	// MaterialType_Custom materials are drawn forward into a specific render target
	MaterialType_Custom
	// MaterialType_PostProcess materials are full screen passes chained after lighting
	MaterialType_PostProcess
)

func (t MaterialType) String() string {

	switch t {
	case MaterialType_Default:
		return "Default"
	case MaterialType_Custom:
		return "Custom"
	case MaterialType_PostProcess:
		return "PostProcess"
	default:
		return "Unknown"
	}
}

type TextureSlot uint32

const (
	TextureSlot_Diffuse     TextureSlot = 0
	TextureSlot_Specular    TextureSlot = 1
	TextureSlot_Normal      TextureSlot = 2
	TextureSlot_Emission    TextureSlot = 3
	TextureSlot_GPosition   TextureSlot = 4
	TextureSlot_GNormal     TextureSlot = 5
	TextureSlot_GAlbedo     TextureSlot = 6
	TextureSlot_SSAO        TextureSlot = 7
	TextureSlot_BrdfLut     TextureSlot = 8
	TextureSlot_Source      TextureSlot = 9
	TextureSlot_Cubemap     TextureSlot = 10
	TextureSlot_Irradiance  TextureSlot = 11
	TextureSlot_ShadowMap1  TextureSlot = 12
	TextureSlot_Prefiltered TextureSlot = 13
	TextureSlot_Noise       TextureSlot = 14
	TextureSlot_Bloom       TextureSlot = 15

	TextureSlot_Count = 16
)

type MaterialSettings uint64

const (
	MaterialSettings_None        MaterialSettings = iota
	MaterialSettings_HasModelMtx MaterialSettings = 1 << (iota - 1)
	MaterialSettings_HasNormalMtx
	MaterialSettings_Blend
	MaterialSettings_ShadowCast
	MaterialSettings_DepthTest
	MaterialSettings_Cull
)

func (ms *MaterialSettings) Set(flags MaterialSettings) {
	*ms |= flags
}

func (ms *MaterialSettings) Remove(flags MaterialSettings) {
	*ms &= ^flags
}

func (ms *MaterialSettings) Has(flags MaterialSettings) bool {
	return *ms&flags == flags
}

type Material struct {
	Id         uint32
	Name       string
	ShaderProg shaders.ShaderProgram
	Settings   MaterialSettings

	DepthFunc   glstate.DepthFunc
	BlendSrc    glstate.BlendFactor
	BlendDst    glstate.BlendFactor
	CullFace    glstate.Face
	PolygonMode glstate.PolygonMode

	Textures [TextureSlot_Count]*buffers.Texture
	Uniforms Uniforms

	matType MaterialType
}

func (m *Material) Type() MaterialType {
	return m.matType
}

func (m *Material) SetTexture(slot TextureSlot, tex *buffers.Texture) {
	m.Textures[slot] = tex
}

func (m *Material) IsBlended() bool {
	return m.Settings.Has(MaterialSettings_Blend)
}

func (m *Material) CastsShadows() bool {
	return m.Settings.Has(MaterialSettings_ShadowCast)
}

func (m *Material) SetUnifInt32(uniformName string, val int32) {
	m.Uniforms.SetInt32(uniformName, val)
}

func (m *Material) SetUnifFloat32(uniformName string, val float32) {
	m.Uniforms.SetFloat32(uniformName, val)
}

func (m *Material) SetUnifVec2(uniformName string, vec2 *gglm.Vec2) {
	m.Uniforms.SetVec2(uniformName, vec2)
}

func (m *Material) SetUnifVec3(uniformName string, vec3 *gglm.Vec3) {
	m.Uniforms.SetVec3(uniformName, vec3)
}

func (m *Material) SetUnifVec4(uniformName string, vec4 *gglm.Vec4) {
	m.Uniforms.SetVec4(uniformName, vec4)
}

func (m *Material) SetUnifMat3(uniformName string, mat3 *gglm.Mat3) {
	m.Uniforms.SetMat3(uniformName, mat3)
}

func (m *Material) SetUnifMat4(uniformName string, mat4 *gglm.Mat4) {
	m.Uniforms.SetMat4(uniformName, mat4)
}

func getNewMatId() uint32 {
	lastMatId++
	return lastMatId
}

// NewMaterial creates a material with depth testing and back face culling on, opaque,
// and with a model matrix. The type can not be changed afterwards.
func NewMaterial(matName string, matType MaterialType, shader shaders.ShaderProgram) *Material {

	m := &Material{
		Id:          getNewMatId(),
		Name:        matName,
		ShaderProg:  shader,
		Settings:    MaterialSettings_HasModelMtx | MaterialSettings_DepthTest | MaterialSettings_Cull,
		DepthFunc:   glstate.DepthFunc_Less,
		BlendSrc:    glstate.BlendFactor_SrcAlpha,
		BlendDst:    glstate.BlendFactor_OneMinusSrcAlpha,
		CullFace:    glstate.Face_Back,
		PolygonMode: glstate.PolygonMode_Fill,
		Uniforms:    NewUniforms(),
		matType:     matType,
	}

	if matType == MaterialType_Default {
		m.Settings.Set(MaterialSettings_HasNormalMtx | MaterialSettings_ShadowCast)
	}

	if matType == MaterialType_PostProcess {
		m.Settings = MaterialSettings_None
	}

	return m
}
