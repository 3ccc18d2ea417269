// Package assets decodes images into linear float RGBA data ready for texture upload.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/anthonynsimon/bild/transform"
	"github.com/bloeys/lumen/buffers"
	"github.com/mandykoh/prism/srgb"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var ErrUnsupportedImage = errors.New("unsupported image format")

// Image holds linear RGBA pixels, 4 floats per pixel, with the bottom row first as OpenGL expects.
type Image struct {
	Width  uint32
	Height uint32
	Pixels []float32
}

// DecodeImage decodes png, jpeg, bmp or tiff data. When isSrgb is set color channels are
// converted from sRGB to linear, alpha is always linear.
func DecodeImage(r io.Reader, isSrgb bool) (Image, error) {

	img, _, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, err)
		}
		return Image{}, fmt.Errorf("failed to decode image: %w", err)
	}

	// Image rows are top to bottom while texture rows are bottom to top
	flipped := transform.FlipV(img)

	bounds := flipped.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return Image{}, fmt.Errorf("failed to decode image: empty image")
	}

	out := Image{
		Width:  uint32(w),
		Height: uint32(h),
		Pixels: make([]float32, 0, w*h*4),
	}

	for y := 0; y < h; y++ {

		row := flipped.Pix[y*flipped.Stride : y*flipped.Stride+w*4]
		for x := 0; x < w*4; x += 4 {

			r, g, b, a := row[x], row[x+1], row[x+2], row[x+3]

			// image.RGBA is alpha premultiplied
			if a != 0 && a != 255 {
				r = unpremultiply(r, a)
				g = unpremultiply(g, a)
				b = unpremultiply(b, a)
			}

			out.Pixels = append(out.Pixels, toLinear(r, isSrgb), toLinear(g, isSrgb), toLinear(b, isSrgb), float32(a)/255)
		}
	}

	return out, nil
}

func unpremultiply(c, a uint8) uint8 {
	return uint8(min(255, (uint32(c)*255+uint32(a)/2)/uint32(a)))
}

func toLinear(c uint8, isSrgb bool) float32 {

	if isSrgb {
		return srgb.From8Bit(c)
	}

	return float32(c) / 255
}

func LoadImage(path string, isSrgb bool) (Image, error) {

	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image '%s': %w", path, err)
	}

	img, err := DecodeImage(bytes.NewReader(data), isSrgb)
	if err != nil {
		return Image{}, fmt.Errorf("failed to load image '%s': %w", path, err)
	}

	return img, nil
}

// NewTextureFromImage uploads img as a 2D RGBA16F texture.
func NewTextureFromImage(dev buffers.Device, img *Image, mips uint32) (*buffers.Texture, error) {
	return buffers.NewTexture(dev, buffers.TextureDesc{
		Target: buffers.TextureTarget_2D,
		Format: buffers.FramebufferAttachmentDataFormat_RGBA16F,
		Width:  img.Width,
		Height: img.Height,
		Mips:   mips,
		Repeat: true,
		Data:   img.Pixels,
	})
}

// LoadTexture loads a color texture. Color textures are usually authored in sRGB.
func LoadTexture(dev buffers.Device, path string, isSrgb bool) (*buffers.Texture, error) {

	img, err := LoadImage(path, isSrgb)
	if err != nil {
		return nil, err
	}

	return NewTextureFromImage(dev, &img, 1)
}

// LoadEquirectangular loads an sRGB encoded equirectangular environment map for pbr.System.ProcessEquirectangular.
func LoadEquirectangular(dev buffers.Device, path string) (*buffers.Texture, error) {

	img, err := LoadImage(path, true)
	if err != nil {
		return nil, err
	}

	if img.Width != img.Height*2 {
		return nil, fmt.Errorf("failed to load equirectangular map '%s': expected a 2:1 image but got %dx%d", path, img.Width, img.Height)
	}

	return buffers.NewTexture(dev, buffers.TextureDesc{
		Target: buffers.TextureTarget_2D,
		Format: buffers.FramebufferAttachmentDataFormat_RGBA16F,
		Width:  img.Width,
		Height: img.Height,
		Mips:   1,
		Data:   img.Pixels,
	})
}
