package commandbuffer

import (
	"testing"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/buffers"
	"github.com/bloeys/lumen/camera"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/shaders"
	"github.com/bloeys/lumen/transform"
)

var (
	testMesh = meshes.NewCube()
)

func newMat(name string, t materials.MaterialType, progId uint32, blend bool) *materials.Material {

	m := materials.NewMaterial(name, t, shaders.ShaderProgram{Id: progId, Name: name})
	if blend {
		m.Settings.Set(materials.MaterialSettings_Blend)
	}

	return m
}

func pushAt(cb *CommandBuffer, mat *materials.Material, pos gglm.Vec3, target *buffers.Framebuffer) {

	tr := transform.Translation(pos.X(), pos.Y(), pos.Z())
	var mesh *meshes.Mesh
	if mat.Type() != materials.MaterialType_PostProcess {
		mesh = testMesh
	}

	boxMin, boxMax := transform.TransformAABB(&tr, &testMesh.BoxMin, &testMesh.BoxMax)
	cb.Push(mesh, mat, &tr, &tr, &boxMin, &boxMax, target)
}

func origin() gglm.Vec3 {
	return gglm.NewVec3(0, 0, 0)
}

func containsMat(cmds []RenderCommand, m *materials.Material) bool {
	for i := range cmds {
		if cmds[i].Material == m {
			return true
		}
	}
	return false
}

func TestClassification(t *testing.T) {

	cb := New()
	target := &buffers.Framebuffer{Id: 7, Name: "custom"}

	def := newMat("def", materials.MaterialType_Default, 1, false)
	defBlend := newMat("defBlend", materials.MaterialType_Default, 1, true)
	custom := newMat("custom", materials.MaterialType_Custom, 2, false)
	customBlend := newMat("customBlend", materials.MaterialType_Custom, 2, true)
	post := newMat("post", materials.MaterialType_PostProcess, 3, false)

	pushAt(cb, def, origin(), nil)
	pushAt(cb, defBlend, origin(), nil)
	pushAt(cb, custom, origin(), target)
	pushAt(cb, custom, origin(), nil)
	pushAt(cb, customBlend, origin(), nil)
	pushAt(cb, post, origin(), nil)

	deferred := cb.GetDeferredCommands(false)
	if len(deferred) != 1 || deferred[0].Material != def {
		t.Fatalf("expected only the opaque default command in the deferred list, got %d commands", len(deferred))
	}

	alpha := cb.GetAlphaCommands(false)
	if len(alpha) != 2 || !containsMat(alpha, defBlend) || !containsMat(alpha, customBlend) {
		t.Fatalf("expected both blended commands in the alpha list, got %d commands", len(alpha))
	}

	if containsMat(deferred, defBlend) {
		t.Fatal("blended default command must not be in the deferred list")
	}

	if got := cb.GetCustomCommands(target); len(got) != 1 || got[0].Target != target {
		t.Fatalf("expected one custom command for the custom target, got %d", len(got))
	}

	if got := cb.GetCustomCommands(nil); len(got) != 1 || got[0].Material != custom {
		t.Fatalf("expected one custom command for the default target, got %d", len(got))
	}

	postCmds := cb.GetPostProcessingCommands()
	if len(postCmds) != 1 || postCmds[0].Mesh != nil {
		t.Fatalf("expected one post process command with no mesh, got %d", len(postCmds))
	}

	if targets := cb.CustomTargets(); len(targets) != 1 || targets[0] != target {
		t.Fatalf("expected the custom target to be listed once, got %v", targets)
	}

	if cb.Len() != 6 {
		t.Fatalf("expected 6 commands, got %d", cb.Len())
	}
}

func TestCustomTargetsKeepFirstPushOrder(t *testing.T) {

	cb := New()
	a := &buffers.Framebuffer{Id: 1}
	b := &buffers.Framebuffer{Id: 2}
	custom := newMat("custom", materials.MaterialType_Custom, 2, false)

	pushAt(cb, custom, origin(), b)
	pushAt(cb, custom, origin(), nil)
	pushAt(cb, custom, origin(), a)
	pushAt(cb, custom, origin(), b)

	targets := cb.CustomTargets()
	if len(targets) != 2 || targets[0] != b || targets[1] != a {
		t.Fatalf("expected targets [b a], got %v", targets)
	}

	if len(cb.GetCustomCommands(b)) != 2 {
		t.Fatalf("expected 2 commands for b, got %d", len(cb.GetCustomCommands(b)))
	}
}

func TestShadowCastCommands(t *testing.T) {

	cb := New()
	caster := newMat("caster", materials.MaterialType_Default, 1, false)
	nonCaster := newMat("nonCaster", materials.MaterialType_Default, 1, false)
	nonCaster.Settings.Remove(materials.MaterialSettings_ShadowCast)
	customCaster := newMat("customCaster", materials.MaterialType_Custom, 2, false)
	customCaster.Settings.Set(materials.MaterialSettings_ShadowCast)

	pushAt(cb, caster, origin(), nil)
	pushAt(cb, nonCaster, origin(), nil)
	pushAt(cb, customCaster, origin(), &buffers.Framebuffer{Id: 3})

	got := cb.GetShadowCastCommands()
	if len(got) != 2 || !containsMat(got, caster) || !containsMat(got, customCaster) {
		t.Fatalf("expected both casters regardless of target, got %d commands", len(got))
	}
}

func TestClearEmptiesEverything(t *testing.T) {

	cb := New()
	target := &buffers.Framebuffer{Id: 7}
	pushAt(cb, newMat("def", materials.MaterialType_Default, 1, false), origin(), nil)
	pushAt(cb, newMat("blend", materials.MaterialType_Default, 1, true), origin(), nil)
	pushAt(cb, newMat("custom", materials.MaterialType_Custom, 2, false), origin(), target)
	pushAt(cb, newMat("post", materials.MaterialType_PostProcess, 3, false), origin(), nil)

	cb.Clear()

	if cb.Len() != 0 ||
		len(cb.GetDeferredCommands(false)) != 0 ||
		len(cb.GetDeferredCommands(true)) != 0 ||
		len(cb.GetAlphaCommands(false)) != 0 ||
		len(cb.GetCustomCommands(target)) != 0 ||
		len(cb.GetCustomCommands(nil)) != 0 ||
		len(cb.GetShadowCastCommands()) != 0 ||
		len(cb.GetPostProcessingCommands()) != 0 ||
		len(cb.CustomTargets()) != 0 {
		t.Fatal("expected every list to be empty after Clear")
	}
}

func TestFrustumCulling(t *testing.T) {

	cb := New()
	pos := gglm.NewVec3(0, 0, 0)
	forward := gglm.NewVec3(0, 0, -1)
	up := gglm.NewVec3(0, 1, 0)
	cam := camera.NewPerspective(&pos, &forward, &up, 0.1, 100, 60*gglm.Deg2Rad, 1)
	cb.SetFrustum(cam.Frustum())

	def := newMat("def", materials.MaterialType_Default, 1, false)
	blend := newMat("blend", materials.MaterialType_Default, 1, true)
	pushAt(cb, def, gglm.NewVec3(0, 0, -10), nil)
	pushAt(cb, def, gglm.NewVec3(0, 0, 10), nil)
	pushAt(cb, blend, gglm.NewVec3(0, 0, 10), nil)

	if got := len(cb.GetDeferredCommands(true)); got != 1 {
		t.Fatalf("expected 1 visible deferred command, got %d", got)
	}

	if got := len(cb.GetDeferredCommands(false)); got != 2 {
		t.Fatalf("expected 2 deferred commands without culling, got %d", got)
	}

	if got := len(cb.GetAlphaCommands(true)); got != 0 {
		t.Fatalf("expected the alpha command behind the camera to be culled, got %d", got)
	}
}

func TestSortGroupsAndIsIdempotent(t *testing.T) {

	cb := New()
	texA := &buffers.Texture{Id: 10}
	texB := &buffers.Texture{Id: 20}

	m1 := newMat("m1", materials.MaterialType_Default, 2, false)
	m1.SetTexture(materials.TextureSlot_Diffuse, texB)
	m2 := newMat("m2", materials.MaterialType_Default, 1, false)
	m3 := newMat("m3", materials.MaterialType_Default, 2, false)
	m3.SetTexture(materials.TextureSlot_Diffuse, texA)

	for i, m := range []*materials.Material{m1, m2, m3, m1, m2} {
		pushAt(cb, m, gglm.NewVec3(float32(i), 0, 0), nil)
	}

	cb.Sort()
	once := append([]RenderCommand(nil), cb.GetDeferredCommands(false)...)

	cb.Sort()
	twice := cb.GetDeferredCommands(false)

	wantOrder := []*materials.Material{m2, m2, m3, m1, m1}
	for i := range wantOrder {

		if once[i].Material != wantOrder[i] {
			t.Fatalf("index %d: expected material %s, got %s", i, wantOrder[i].Name, once[i].Material.Name)
		}

		if once[i] != twice[i] {
			t.Fatalf("index %d: second sort changed the list", i)
		}
	}

	// Stable: the two m1 commands keep their push order
	if once[3].Transform.Data[3][0] != 0 || once[4].Transform.Data[3][0] != 3 {
		t.Fatal("expected equal commands to keep push order")
	}
}

func TestSortKeepsPostProcessOrder(t *testing.T) {

	cb := New()
	p1 := newMat("p1", materials.MaterialType_PostProcess, 9, false)
	p2 := newMat("p2", materials.MaterialType_PostProcess, 1, false)
	pushAt(cb, p1, origin(), nil)
	pushAt(cb, p2, origin(), nil)

	cb.Sort()

	post := cb.GetPostProcessingCommands()
	if post[0].Material != p1 || post[1].Material != p2 {
		t.Fatal("expected post process commands to stay in push order")
	}
}

func TestNilMeshPanicsForNonPostProcess(t *testing.T) {

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic when pushing a nil mesh with a default material")
		}
	}()

	cb := New()
	tr := transform.Identity()
	box := gglm.NewVec3(0, 0, 0)
	cb.Push(nil, newMat("def", materials.MaterialType_Default, 1, false), &tr, &tr, &box, &box, nil)
}
