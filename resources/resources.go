// Package resources keeps named shaders, textures and meshes for one renderer instance.
package resources

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bloeys/lumen/assets"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/logging"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/shaders"
)

var ErrNotFound = errors.New("resource not found")

// ShaderFileExt is the extension LoadShaderDir looks for
const ShaderFileExt = ".glsl"

type Device interface {
	buffers.Device
	CompileShader(name string, src shaders.Sources) (shaders.ShaderProgram, error)
	DeleteShader(prog shaders.ShaderProgram)
}

type Manager struct {
	dev Device

	shaders  map[string]shaders.ShaderProgram
	textures map[string]*buffers.Texture
	meshes   map[string]*meshes.Mesh
}

func NewManager(dev Device) *Manager {
	return &Manager{
		dev:      dev,
		shaders:  map[string]shaders.ShaderProgram{},
		textures: map[string]*buffers.Texture{},
		meshes:   map[string]*meshes.Mesh{},
	}
}

func (m *Manager) Device() Device {
	return m.dev
}

// RegisterShader compiles a combined shader source and stores it under name,
// replacing (and deleting) any shader already there.
func (m *Manager) RegisterShader(name string, combinedSrc []byte) (shaders.ShaderProgram, error) {

	src, err := shaders.SplitCombinedShaderSrc(combinedSrc)
	if err != nil {
		return shaders.ShaderProgram{}, fmt.Errorf("failed to register shader '%s': %w", name, err)
	}

	prog, err := m.dev.CompileShader(name, src)
	if err != nil {
		logging.ErrLog.Errorf("Failed to compile shader '%s'. Err: %s", name, err)
		return shaders.ShaderProgram{}, fmt.Errorf("failed to compile shader '%s': %w", name, err)
	}

	if old, ok := m.shaders[name]; ok {
		m.dev.DeleteShader(old)
	}

	m.shaders[name] = prog
	return prog, nil
}

func (m *Manager) LoadShader(name, shaderPath string) (shaders.ShaderProgram, error) {

	combinedSrc, err := os.ReadFile(shaderPath)
	if err != nil {
		return shaders.ShaderProgram{}, fmt.Errorf("failed to read shader '%s': %w", shaderPath, err)
	}

	return m.RegisterShader(name, combinedSrc)
}

// LoadShaderDir loads every ShaderFileExt file in dir, named by its file name without the extension.
func (m *Manager) LoadShaderDir(dir string) error {

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read shader dir '%s': %w", dir, err)
	}

	loaded := 0
	for _, e := range entries {

		if e.IsDir() || filepath.Ext(e.Name()) != ShaderFileExt {
			continue
		}

		name := strings.TrimSuffix(e.Name(), ShaderFileExt)
		if _, err := m.LoadShader(name, filepath.Join(dir, e.Name())); err != nil {
			return err
		}

		loaded++
	}

	logging.InfoLog.Infof("Loaded %d shaders from '%s'", loaded, dir)
	return nil
}

func (m *Manager) Shader(name string) (shaders.ShaderProgram, error) {

	prog, ok := m.shaders[name]
	if !ok {
		return shaders.ShaderProgram{}, fmt.Errorf("shader '%s': %w", name, ErrNotFound)
	}

	return prog, nil
}

func (m *Manager) AddTexture(name string, tex *buffers.Texture) {

	if old, ok := m.textures[name]; ok && old != tex {
		old.Delete()
	}

	m.textures[name] = tex
}

func (m *Manager) LoadTexture(name, path string, isSrgb bool) (*buffers.Texture, error) {

	tex, err := assets.LoadTexture(m.dev, path, isSrgb)
	if err != nil {
		return nil, err
	}

	m.AddTexture(name, tex)
	return tex, nil
}

func (m *Manager) Texture(name string) (*buffers.Texture, error) {

	tex, ok := m.textures[name]
	if !ok {
		return nil, fmt.Errorf("texture '%s': %w", name, ErrNotFound)
	}

	return tex, nil
}

func (m *Manager) AddMesh(name string, mesh *meshes.Mesh) {
	m.meshes[name] = mesh
}

func (m *Manager) Mesh(name string) (*meshes.Mesh, error) {

	mesh, ok := m.meshes[name]
	if !ok {
		return nil, fmt.Errorf("mesh '%s': %w", name, ErrNotFound)
	}

	return mesh, nil
}

// Delete frees every shader and texture held by the manager
func (m *Manager) Delete() {

	for _, prog := range m.shaders {
		m.dev.DeleteShader(prog)
	}

	for _, tex := range m.textures {
		tex.Delete()
	}

	clear(m.shaders)
	clear(m.textures)
	clear(m.meshes)
}
