package shaders

import (
	"errors"
	"strings"
	"testing"
)

func TestSplitCombinedShaderSrc(t *testing.T) {

	src := `// header comment
//shader:vertex
#version 410
void main() {}
//shader:fragment
#version 410
out vec4 color;
void main() { color = vec4(1); }
`

	s, err := SplitCombinedShaderSrc([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(string(s.Vertex), "void main() {}") {
		t.Errorf("vertex stage missing its body: %q", s.Vertex)
	}

	if !strings.Contains(string(s.Fragment), "out vec4 color") {
		t.Errorf("fragment stage missing its body: %q", s.Fragment)
	}

	if s.HasGeometry() {
		t.Error("expected no geometry stage")
	}

	if len(s.Stages()) != 2 {
		t.Errorf("expected 2 stages, got %d", len(s.Stages()))
	}
}

func TestSplitCombinedShaderSrcErrors(t *testing.T) {

	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"no markers", "void main() {}", nil},
		{"missing fragment", "//shader:vertex\nvoid main() {}", ErrNoFragmentShader},
		{"missing vertex", "//shader:fragment\nvoid main() {}", ErrNoVertexShader},
		{"unknown stage", "//shader:vertex\na\n//shader:compute\nb", nil},
		{"duplicate stage", "//shader:vertex\na\n//shader:vertex\nb\n//shader:fragment\nc", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {

			_, err := SplitCombinedShaderSrc([]byte(tt.src))
			if err == nil {
				t.Fatal("expected an error")
			}

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
