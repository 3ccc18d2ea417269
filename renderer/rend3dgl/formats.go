package rend3dgl

import (
	"github.com/bloeys/lumen/assert"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/glstate"
	"github.com/bloeys/lumen/shaders"
	"github.com/go-gl/gl/v4.1-core/gl"
)

// glTexFormat returns the internal format, the client data format and the client data type.
// Color data is always uploaded as RGBA floats.
func glTexFormat(f buffers.FramebufferAttachmentDataFormat) (internalFormat int32, format, xtype uint32) {

	switch f {
	case buffers.FramebufferAttachmentDataFormat_R32Int:
		return gl.R32I, gl.RED_INTEGER, gl.INT
	case buffers.FramebufferAttachmentDataFormat_RGBA8:
		return gl.RGBA8, gl.RGBA, gl.FLOAT
	case buffers.FramebufferAttachmentDataFormat_SRGBA:
		return gl.SRGB8_ALPHA8, gl.RGBA, gl.FLOAT
	case buffers.FramebufferAttachmentDataFormat_RGBA16F:
		return gl.RGBA16F, gl.RGBA, gl.FLOAT
	case buffers.FramebufferAttachmentDataFormat_RGBA32F:
		return gl.RGBA32F, gl.RGBA, gl.FLOAT
	case buffers.FramebufferAttachmentDataFormat_RG16F:
		return gl.RG16F, gl.RGBA, gl.FLOAT
	case buffers.FramebufferAttachmentDataFormat_DepthF32:
		return gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT
	case buffers.FramebufferAttachmentDataFormat_Depth24Stencil8:
		return gl.DEPTH24_STENCIL8, gl.DEPTH_STENCIL, gl.UNSIGNED_INT_24_8
	default:
		assert.T(false, "unknown texture format %d", f)
		return 0, 0, 0
	}
}

func glTexTarget(t buffers.TextureTarget) uint32 {

	if t == buffers.TextureTarget_Cube {
		return gl.TEXTURE_CUBE_MAP
	}

	return gl.TEXTURE_2D
}

func glAttachment(point buffers.AttachmentPoint, f buffers.FramebufferAttachmentDataFormat) uint32 {

	if point != buffers.AttachmentPoint_Depth {
		return gl.COLOR_ATTACHMENT0 + uint32(point)
	}

	if f.HasStencil() {
		return gl.DEPTH_STENCIL_ATTACHMENT
	}

	return gl.DEPTH_ATTACHMENT
}

func glShaderType(t shaders.ShaderType) uint32 {

	switch t {
	case shaders.ShaderType_Vertex:
		return gl.VERTEX_SHADER
	case shaders.ShaderType_Fragment:
		return gl.FRAGMENT_SHADER
	case shaders.ShaderType_Geometry:
		return gl.GEOMETRY_SHADER
	default:
		assert.T(false, "unknown shader type %d", t)
		return 0
	}
}

func glDepthFunc(f glstate.DepthFunc) uint32 {

	switch f {
	case glstate.DepthFunc_Less:
		return gl.LESS
	case glstate.DepthFunc_LessEqual:
		return gl.LEQUAL
	case glstate.DepthFunc_Equal:
		return gl.EQUAL
	case glstate.DepthFunc_Greater:
		return gl.GREATER
	case glstate.DepthFunc_GreaterEqual:
		return gl.GEQUAL
	case glstate.DepthFunc_NotEqual:
		return gl.NOTEQUAL
	case glstate.DepthFunc_Always:
		return gl.ALWAYS
	default:
		return gl.NEVER
	}
}

func glBlendFactor(f glstate.BlendFactor) uint32 {

	switch f {
	case glstate.BlendFactor_Zero:
		return gl.ZERO
	case glstate.BlendFactor_One:
		return gl.ONE
	case glstate.BlendFactor_SrcAlpha:
		return gl.SRC_ALPHA
	case glstate.BlendFactor_OneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case glstate.BlendFactor_DstAlpha:
		return gl.DST_ALPHA
	case glstate.BlendFactor_OneMinusDstAlpha:
		return gl.ONE_MINUS_DST_ALPHA
	case glstate.BlendFactor_SrcColor:
		return gl.SRC_COLOR
	case glstate.BlendFactor_OneMinusSrcColor:
		return gl.ONE_MINUS_SRC_COLOR
	default:
		return gl.ZERO
	}
}

func glFace(f glstate.Face) uint32 {

	switch f {
	case glstate.Face_Front:
		return gl.FRONT
	case glstate.Face_FrontAndBack:
		return gl.FRONT_AND_BACK
	default:
		return gl.BACK
	}
}

func glPolygonMode(m glstate.PolygonMode) uint32 {

	if m == glstate.PolygonMode_Line {
		return gl.LINE
	}

	return gl.FILL
}
