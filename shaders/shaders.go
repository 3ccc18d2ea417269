package shaders

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

var (
	ErrNoVertexShader   = errors.New("no valid vertex shader found. Please put '//shader:vertex' before your vertex shader")
	ErrNoFragmentShader = errors.New("no valid fragment shader found. Please put '//shader:fragment' before your fragment shader")
)

// ShaderProgram is a handle to a linked program on a graphics device. Id zero is never a valid program.
type ShaderProgram struct {
	Id   uint32
	Name string
}

type Source struct {
	Type ShaderType
	Src  []byte
}

// Sources is the result of splitting a combined shader file
type Sources struct {
	Vertex   []byte
	Fragment []byte
	Geometry []byte
}

func (s *Sources) HasGeometry() bool {
	return len(s.Geometry) > 0
}

func LoadCombinedShader(shaderPath string) (Sources, error) {

	combinedSource, err := os.ReadFile(shaderPath)
	if err != nil {
		return Sources{}, fmt.Errorf("failed to read shader '%s': %w", shaderPath, err)
	}

	return SplitCombinedShaderSrc(combinedSource)
}

// SplitCombinedShaderSrc splits a file holding multiple stages, each starting with
// '//shader:vertex', '//shader:fragment' or '//shader:geometry'.
// Vertex and fragment stages are required.
func SplitCombinedShaderSrc(shaderSrc []byte) (Sources, error) {

	shaderSources := bytes.Split(shaderSrc, []byte("//shader:"))
	if len(shaderSources) < 2 {
		return Sources{}, errors.New("failed to read combined shader. The minimum shader types to have are '//shader:vertex' and '//shader:fragment'")
	}

	out := Sources{}
	for i := 0; i < len(shaderSources); i++ {

		src := shaderSources[i]

		// This can happen when the shader type is at the start of the file
		if len(bytes.TrimSpace(src)) == 0 {
			continue
		}

		var dst *[]byte
		if bytes.HasPrefix(src, []byte("vertex")) {
			src = src[6:]
			dst = &out.Vertex
		} else if bytes.HasPrefix(src, []byte("fragment")) {
			src = src[8:]
			dst = &out.Fragment
		} else if bytes.HasPrefix(src, []byte("geometry")) {
			src = src[8:]
			dst = &out.Geometry
		} else if i == 0 {
			// Text before the first marker, usually a comment header
			continue
		} else {
			return Sources{}, errors.New("unknown shader type. Must be '//shader:vertex' or '//shader:fragment' or '//shader:geometry'")
		}

		if len(*dst) > 0 {
			return Sources{}, fmt.Errorf("shader stage declared more than once in combined shader")
		}

		*dst = src
	}

	if len(bytes.TrimSpace(out.Vertex)) == 0 {
		return Sources{}, ErrNoVertexShader
	}

	if len(bytes.TrimSpace(out.Fragment)) == 0 {
		return Sources{}, ErrNoFragmentShader
	}

	return out, nil
}

// Stages returns the present stages in vertex, geometry, fragment order.
func (s *Sources) Stages() []Source {

	out := make([]Source, 0, 3)
	out = append(out, Source{Type: ShaderType_Vertex, Src: s.Vertex})
	if s.HasGeometry() {
		out = append(out, Source{Type: ShaderType_Geometry, Src: s.Geometry})
	}
	out = append(out, Source{Type: ShaderType_Fragment, Src: s.Fragment})
	return out
}
