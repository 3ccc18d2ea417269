package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid renderer config")

// RendererConfig holds the feature toggles and sizes the renderer is built with.
// Toggles may be flipped between frames, sizes are read at initialization
// (and on SetRenderSize for width/height).
type RendererConfig struct {
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`

	Shadows      bool `yaml:"shadows"`
	Lights       bool `yaml:"lights"`
	RenderLights bool `yaml:"render_lights"`
	RenderProbes bool `yaml:"render_probes"`
	Wireframe    bool `yaml:"wireframe"`
	SSAO         bool `yaml:"ssao"`
	Bloom        bool `yaml:"bloom"`
	MotionBlur   bool `yaml:"motion_blur"`
	IrradianceGI bool `yaml:"irradiance_gi"`

	ShadowMapSize    uint32 `yaml:"shadow_map_size"`
	EnvCubeSize      uint32 `yaml:"env_cube_size"`
	IrradianceSize   uint32 `yaml:"irradiance_size"`
	PrefilterSize    uint32 `yaml:"prefilter_size"`
	BrdfLutSize      uint32 `yaml:"brdf_lut_size"`
	ProbeCaptureSize uint32 `yaml:"probe_capture_size"`

	Exposure float32 `yaml:"exposure"`
}

func Default() RendererConfig {
	return RendererConfig{
		Width:  1280,
		Height: 720,

		Shadows:      true,
		Lights:       true,
		RenderLights: false,
		RenderProbes: false,
		SSAO:         true,
		Bloom:        true,
		MotionBlur:   true,
		IrradianceGI: true,

		ShadowMapSize:    2048,
		EnvCubeSize:      512,
		IrradianceSize:   32,
		PrefilterSize:    128,
		BrdfLutSize:      128,
		ProbeCaptureSize: 128,

		Exposure: 1,
	}
}

// Parse decodes yaml on top of Default(), so missing keys keep their default values.
func Parse(data []byte) (RendererConfig, error) {

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse renderer config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Default(), err
	}

	return cfg, nil
}

func Load(path string) (RendererConfig, error) {

	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("failed to read renderer config '%s': %w", path, err)
	}

	return Parse(data)
}

func (c *RendererConfig) Validate() error {

	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("%w: render size must be non-zero, got %dx%d", ErrInvalid, c.Width, c.Height)
	}

	sizes := []struct {
		name string
		val  uint32
	}{
		{"shadow_map_size", c.ShadowMapSize},
		{"env_cube_size", c.EnvCubeSize},
		{"irradiance_size", c.IrradianceSize},
		{"prefilter_size", c.PrefilterSize},
		{"brdf_lut_size", c.BrdfLutSize},
		{"probe_capture_size", c.ProbeCaptureSize},
	}

	for _, s := range sizes {
		if s.val == 0 {
			return fmt.Errorf("%w: %s must be non-zero", ErrInvalid, s.name)
		}
	}

	// The prefilter chain halves per mip and needs at least 1px at the last level
	if c.PrefilterSize < 16 {
		return fmt.Errorf("%w: prefilter_size must be at least 16, got %d", ErrInvalid, c.PrefilterSize)
	}

	if c.Exposure <= 0 {
		return fmt.Errorf("%w: exposure must be positive, got %f", ErrInvalid, c.Exposure)
	}

	return nil
}
