package buffers

import (
	"fmt"

	"github.com/bloeys/lumen/logging"
)

// DefaultFramebufferId is the window backbuffer
const DefaultFramebufferId uint32 = 0

const MaxColorAttachments = 8

// AttachmentPoint is a color attachment index, or AttachmentPoint_Depth.
type AttachmentPoint int32

const AttachmentPoint_Depth AttachmentPoint = -1

// Device creates and destroys textures and framebuffer objects.
type Device interface {
	CreateTexture(desc TextureDesc) (uint32, error)
	DeleteTexture(id uint32)

	CreateFramebuffer() (uint32, error)
	DeleteFramebuffer(id uint32)

	// AttachTexture attaches one mip of tex to the framebuffer. face selects the cubemap face
	// (0..5) and is ignored for 2D textures.
	AttachTexture(fboId uint32, point AttachmentPoint, tex *Texture, face int32, mip uint32)
	FramebufferComplete(fboId uint32) bool
}

type FramebufferAttachment struct {
	Tex    *Texture
	Point  AttachmentPoint
	Format FramebufferAttachmentDataFormat
	Face   int32
	Mip    uint32

	// External attachments are not owned, so they are neither resized nor deleted by the framebuffer
	External bool
}

func (a *FramebufferAttachment) Width() uint32 {
	return a.Tex.MipWidth(a.Mip)
}

func (a *FramebufferAttachment) Height() uint32 {
	return a.Tex.MipHeight(a.Mip)
}

// Framebuffer is a render target with up to MaxColorAttachments color attachments
// and an optional depth or depth-stencil attachment. All owned attachments share the framebuffer size.
type Framebuffer struct {
	Id                    uint32
	Name                  string
	Attachments           []FramebufferAttachment
	ColorAttachmentsCount uint32
	Width                 uint32
	Height                uint32

	complete bool
	dev      Device
}

// IsComplete returns the completeness reported by the device after the last attachment change.
func (fbo *Framebuffer) IsComplete() bool {
	return fbo.complete
}

// Size returns the size of what is rendered into, which is the size of the attached
// mip for external attachments.
func (fbo *Framebuffer) Size() (width, height uint32) {

	if len(fbo.Attachments) == 0 {
		return fbo.Width, fbo.Height
	}

	a := &fbo.Attachments[0]
	return a.Width(), a.Height()
}

func (fbo *Framebuffer) HasColorAttachment() bool {
	return fbo.ColorAttachmentsCount > 0
}

func (fbo *Framebuffer) HasDepthAttachment() bool {

	for i := 0; i < len(fbo.Attachments); i++ {

		a := &fbo.Attachments[i]
		if a.Point == AttachmentPoint_Depth {
			return true
		}
	}

	return false
}

// ColorTexture returns the texture at color attachment index i, or nil.
func (fbo *Framebuffer) ColorTexture(i uint32) *Texture {

	for j := 0; j < len(fbo.Attachments); j++ {

		a := &fbo.Attachments[j]
		if a.Point == AttachmentPoint(i) {
			return a.Tex
		}
	}

	return nil
}

func (fbo *Framebuffer) DepthTexture() *Texture {

	for i := 0; i < len(fbo.Attachments); i++ {

		a := &fbo.Attachments[i]
		if a.Point == AttachmentPoint_Depth {
			return a.Tex
		}
	}

	return nil
}

func (fbo *Framebuffer) updateCompleteness() {
	fbo.complete = fbo.dev.FramebufferComplete(fbo.Id)
}

func (fbo *Framebuffer) newOwnedTexture(format FramebufferAttachmentDataFormat) (*Texture, error) {
	return NewTexture(fbo.dev, TextureDesc{
		Target: TextureTarget_2D,
		Format: format,
		Width:  fbo.Width,
		Height: fbo.Height,
		Mips:   1,
	})
}

func (fbo *Framebuffer) NewColorAttachment(attachFormat FramebufferAttachmentDataFormat) error {

	if fbo.ColorAttachmentsCount == MaxColorAttachments {
		return fmt.Errorf("failed creating color attachment for framebuffer '%s' due it already having %d attached", fbo.Name, fbo.ColorAttachmentsCount)
	}

	if !attachFormat.IsColorFormat() {
		return fmt.Errorf("failed creating color attachment for framebuffer '%s' due to attachment data format not being a valid color type. Data format=%s", fbo.Name, attachFormat)
	}

	tex, err := fbo.newOwnedTexture(attachFormat)
	if err != nil {
		return fmt.Errorf("failed creating color attachment for framebuffer '%s': %w", fbo.Name, err)
	}

	a := FramebufferAttachment{
		Tex:    tex,
		Point:  AttachmentPoint(fbo.ColorAttachmentsCount),
		Format: attachFormat,
	}

	fbo.dev.AttachTexture(fbo.Id, a.Point, tex, 0, 0)
	fbo.ColorAttachmentsCount++
	fbo.Attachments = append(fbo.Attachments, a)
	fbo.updateCompleteness()
	return nil
}

func (fbo *Framebuffer) NewDepthStencilAttachment(attachFormat FramebufferAttachmentDataFormat) error {

	if fbo.HasDepthAttachment() {
		return fmt.Errorf("failed creating depth-stencil attachment for framebuffer '%s' because a depth-stencil attachment already exists", fbo.Name)
	}

	if !attachFormat.IsDepthFormat() {
		return fmt.Errorf("failed creating depth-stencil attachment for framebuffer '%s' due to attachment data format not being a valid depth-stencil type. Data format=%s", fbo.Name, attachFormat)
	}

	tex, err := fbo.newOwnedTexture(attachFormat)
	if err != nil {
		return fmt.Errorf("failed creating depth-stencil attachment for framebuffer '%s': %w", fbo.Name, err)
	}

	a := FramebufferAttachment{
		Tex:    tex,
		Point:  AttachmentPoint_Depth,
		Format: attachFormat,
	}

	fbo.dev.AttachTexture(fbo.Id, a.Point, tex, 0, 0)
	fbo.Attachments = append(fbo.Attachments, a)
	fbo.updateCompleteness()
	return nil
}

// AttachCubeFace attaches one face and mip of an externally owned cubemap as color attachment 0,
// replacing whatever was there before. Used to render into cubemaps one face at a time.
func (fbo *Framebuffer) AttachCubeFace(cube *Texture, face int32, mip uint32) {

	a := FramebufferAttachment{
		Tex:      cube,
		Point:    0,
		Format:   cube.Format,
		Face:     face,
		Mip:      mip,
		External: true,
	}

	replaced := false
	for i := 0; i < len(fbo.Attachments); i++ {

		old := &fbo.Attachments[i]
		if old.Point != 0 {
			continue
		}

		if !old.External {
			old.Tex.Delete()
		}

		*old = a
		replaced = true
		break
	}

	if !replaced {
		fbo.Attachments = append(fbo.Attachments, a)
		fbo.ColorAttachmentsCount++
	}

	fbo.dev.AttachTexture(fbo.Id, a.Point, cube, face, mip)
	fbo.updateCompleteness()
}

// Resize recreates the owned attachments with the new size, keeping their count and formats.
func (fbo *Framebuffer) Resize(width, height uint32) error {

	if width == 0 || height == 0 {
		return fmt.Errorf("failed to resize framebuffer '%s' to invalid size %dx%d", fbo.Name, width, height)
	}

	fbo.Width = width
	fbo.Height = height

	for i := 0; i < len(fbo.Attachments); i++ {

		a := &fbo.Attachments[i]
		if a.External {
			continue
		}

		// The old texture stays attached until its replacement exists
		tex, err := fbo.newOwnedTexture(a.Format)
		if err != nil {
			fbo.updateCompleteness()
			return fmt.Errorf("failed to resize attachment %d of framebuffer '%s': %w", a.Point, fbo.Name, err)
		}

		a.Tex.Delete()
		a.Tex = tex
		fbo.dev.AttachTexture(fbo.Id, a.Point, tex, 0, 0)
	}

	fbo.updateCompleteness()
	return nil
}

func (fbo *Framebuffer) Delete() {

	if fbo.Id == 0 {
		return
	}

	for i := 0; i < len(fbo.Attachments); i++ {

		a := &fbo.Attachments[i]
		if !a.External {
			a.Tex.Delete()
		}
	}

	fbo.dev.DeleteFramebuffer(fbo.Id)
	fbo.Attachments = nil
	fbo.ColorAttachmentsCount = 0
	fbo.complete = false
	fbo.Id = 0
}

func NewFramebuffer(dev Device, name string, width, height uint32) (*Framebuffer, error) {

	if width == 0 || height == 0 {
		return nil, fmt.Errorf("failed to create framebuffer '%s' with invalid size %dx%d", name, width, height)
	}

	// It is allowed to have attachments of different sizes in one FBO,
	// but that complicates things (e.g. which size to use for the viewport),
	// so all owned attachments share the framebuffer size
	fbo := &Framebuffer{
		Name:   name,
		Width:  width,
		Height: height,
		dev:    dev,
	}

	id, err := dev.CreateFramebuffer()
	if err != nil {
		logging.ErrLog.Errorf("Failed to create framebuffer '%s'. Err: %s", name, err)
		return nil, err
	}

	fbo.Id = id
	return fbo, nil
}
