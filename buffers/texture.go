package buffers

import (
	"fmt"

	"github.com/bloeys/lumen/logging"
)

type TextureTarget int32

const (
	TextureTarget_Unknown TextureTarget = iota
	TextureTarget_2D
	TextureTarget_Cube
)

func (t TextureTarget) String() string {

	switch t {
	case TextureTarget_2D:
		return "2D"
	case TextureTarget_Cube:
		return "Cube"
	default:
		return "Unknown"
	}
}

type FramebufferAttachmentDataFormat int32

const (
	FramebufferAttachmentDataFormat_Unknown FramebufferAttachmentDataFormat = iota
	FramebufferAttachmentDataFormat_R32Int
	FramebufferAttachmentDataFormat_RGBA8
	FramebufferAttachmentDataFormat_SRGBA
	FramebufferAttachmentDataFormat_RGBA16F
	FramebufferAttachmentDataFormat_RGBA32F
	FramebufferAttachmentDataFormat_RG16F
	FramebufferAttachmentDataFormat_DepthF32
	FramebufferAttachmentDataFormat_Depth24Stencil8
)

func (f FramebufferAttachmentDataFormat) IsColorFormat() bool {

	switch f {
	case FramebufferAttachmentDataFormat_R32Int,
		FramebufferAttachmentDataFormat_RGBA8,
		FramebufferAttachmentDataFormat_SRGBA,
		FramebufferAttachmentDataFormat_RGBA16F,
		FramebufferAttachmentDataFormat_RGBA32F,
		FramebufferAttachmentDataFormat_RG16F:
		return true
	default:
		return false
	}
}

func (f FramebufferAttachmentDataFormat) IsDepthFormat() bool {
	return f == FramebufferAttachmentDataFormat_DepthF32 ||
		f == FramebufferAttachmentDataFormat_Depth24Stencil8
}

func (f FramebufferAttachmentDataFormat) HasStencil() bool {
	return f == FramebufferAttachmentDataFormat_Depth24Stencil8
}

func (f FramebufferAttachmentDataFormat) String() string {

	switch f {
	case FramebufferAttachmentDataFormat_R32Int:
		return "R32Int"
	case FramebufferAttachmentDataFormat_RGBA8:
		return "RGBA8"
	case FramebufferAttachmentDataFormat_SRGBA:
		return "SRGBA"
	case FramebufferAttachmentDataFormat_RGBA16F:
		return "RGBA16F"
	case FramebufferAttachmentDataFormat_RGBA32F:
		return "RGBA32F"
	case FramebufferAttachmentDataFormat_RG16F:
		return "RG16F"
	case FramebufferAttachmentDataFormat_DepthF32:
		return "DepthF32"
	case FramebufferAttachmentDataFormat_Depth24Stencil8:
		return "Depth24Stencil8"
	default:
		return "Unknown"
	}
}

type TextureDesc struct {
	Target TextureTarget
	Format FramebufferAttachmentDataFormat
	Width  uint32
	Height uint32

	// Mips is the number of mip levels to allocate. Zero means one.
	Mips uint32

	// Repeat selects repeat wrapping instead of clamp to edge
	Repeat bool

	// Data optionally fills mip 0. Four floats (RGBA) per texel, rows bottom to top.
	// Cubemaps take the 6 faces back to back in +X,-X,+Y,-Y,+Z,-Z order.
	Data []float32
}

// Texture is a device texture. The struct is owned by whoever created it, Framebuffers
// own their attachment textures.
type Texture struct {
	Id     uint32
	Target TextureTarget
	Format FramebufferAttachmentDataFormat
	Width  uint32
	Height uint32
	Mips   uint32

	dev Device
}

func (t *Texture) IsCubemap() bool {
	return t.Target == TextureTarget_Cube
}

func (t *Texture) MipWidth(mip uint32) uint32 {
	return max(1, t.Width>>mip)
}

func (t *Texture) MipHeight(mip uint32) uint32 {
	return max(1, t.Height>>mip)
}

func (t *Texture) Delete() {

	if t.Id == 0 {
		return
	}

	t.dev.DeleteTexture(t.Id)
	t.Id = 0
}

func NewTexture(dev Device, desc TextureDesc) (*Texture, error) {

	if desc.Target != TextureTarget_2D && desc.Target != TextureTarget_Cube {
		return nil, fmt.Errorf("failed to create texture: unknown texture target %d", desc.Target)
	}

	if desc.Format == FramebufferAttachmentDataFormat_Unknown {
		return nil, fmt.Errorf("failed to create texture: unknown data format")
	}

	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("failed to create texture: invalid size %dx%d", desc.Width, desc.Height)
	}

	if desc.Target == TextureTarget_Cube && desc.Width != desc.Height {
		return nil, fmt.Errorf("failed to create texture: cubemap faces must be square, got %dx%d", desc.Width, desc.Height)
	}

	if desc.Mips == 0 {
		desc.Mips = 1
	}

	faces := uint32(1)
	if desc.Target == TextureTarget_Cube {
		faces = 6
	}

	if desc.Data != nil && uint32(len(desc.Data)) != desc.Width*desc.Height*4*faces {
		return nil, fmt.Errorf("failed to create texture: expected %d floats of data but got %d", desc.Width*desc.Height*4*faces, len(desc.Data))
	}

	id, err := dev.CreateTexture(desc)
	if err != nil {
		logging.ErrLog.Errorf("Failed to create %s texture of format %s. Err: %s", desc.Target, desc.Format, err)
		return nil, err
	}

	return &Texture{
		Id:     id,
		Target: desc.Target,
		Format: desc.Format,
		Width:  desc.Width,
		Height: desc.Height,
		Mips:   desc.Mips,
		dev:    dev,
	}, nil
}
