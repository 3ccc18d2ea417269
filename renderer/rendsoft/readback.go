package rendsoft

import (
	"image"
	"image/color"

	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/materials"
	"github.com/mandykoh/prism/srgb"
)

// ReadPixel returns the texel at x,y (origin bottom left) of an attachment of fbo.
// ok is false if there is no such attachment or the coordinates are out of range.
func (d *Device) ReadPixel(fbo *buffers.Framebuffer, point buffers.AttachmentPoint, x, y int) (px [4]float32, ok bool) {

	f, found := d.fbos[fbo.Id]
	if !found {
		return px, false
	}

	ref, found := f.attachments[point]
	if !found {
		return px, false
	}

	s := d.refSurface(ref)
	if s == nil || x < 0 || y < 0 || x >= s.w || y >= s.h {
		return px, false
	}

	copy(px[:], s.at(x, y))
	return px, true
}

// ReadBackbufferPixel returns the default framebuffer color at x,y (origin bottom left)
func (d *Device) ReadBackbufferPixel(x, y int) (px [4]float32, ok bool) {

	s := &d.backColor
	if x < 0 || y < 0 || x >= s.w || y >= s.h {
		return px, false
	}

	copy(px[:], s.at(x, y))
	return px, true
}

func (d *Device) BackbufferSize() (width, height int) {
	return d.backColor.w, d.backColor.h
}

// TextureLevel returns a copy of one face and mip of tex as RGBA floats, rows bottom to top.
func (d *Device) TextureLevel(tex *buffers.Texture, face int32, mip uint32) []float32 {

	t, ok := d.textures[tex.Id]
	if !ok || mip >= t.desc.Mips || int(face) >= t.faces {
		return nil
	}

	return append([]float32(nil), t.level(face, mip)...)
}

// HasTexture reports whether id names a live texture
func (d *Device) HasTexture(id uint32) bool {
	_, ok := d.textures[id]
	return ok
}

func (d *Device) TextureCount() int {
	return len(d.textures)
}

func (d *Device) BoundTexture(slot materials.TextureSlot) uint32 {
	return d.boundTextures[slot]
}

// ProgramUniforms returns the uniform values uploaded to a program so far, or nil for unknown programs
func (d *Device) ProgramUniforms(progId uint32) *materials.Uniforms {

	p, ok := d.programs[progId]
	if !ok {
		return nil
	}

	return &p.uniforms
}

// BackbufferImage encodes the default framebuffer as an 8-bit sRGB image, top row first.
func (d *Device) BackbufferImage() *image.NRGBA {

	s := &d.backColor
	img := image.NewNRGBA(image.Rect(0, 0, s.w, s.h))

	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {

			px := s.at(x, y)
			img.SetNRGBA(x, s.h-1-y, color.NRGBA{
				R: srgb.To8Bit(clamp01(px[0])),
				G: srgb.To8Bit(clamp01(px[1])),
				B: srgb.To8Bit(clamp01(px[2])),
				A: uint8(clamp01(px[3])*255 + 0.5),
			})
		}
	}

	return img
}

func clamp01(v float32) float32 {
	return min(1, max(0, v))
}
