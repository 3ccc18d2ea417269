package scene

import (
	"testing"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/transform"
)

func TestUpdateTransformsComposesParents(t *testing.T) {

	g := NewGraph()
	root := g.AddNode("root", NoParent, nil, nil, transform.Translation(1, 0, 0))
	child := g.AddNode("child", root, meshes.NewCube(), nil, transform.Translation(0, 2, 0))
	grandChild := g.AddNode("grandChild", child, nil, nil, transform.Translation(0, 0, 3))

	g.UpdateTransforms()

	pos := transform.Position(&g.Node(grandChild).World)
	if pos.X() != 1 || pos.Y() != 2 || pos.Z() != 3 {
		t.Fatalf("expected grand child at (1,2,3), got %v", pos.Data)
	}

	// Unit cube spans -1..1 and is moved to (1,2,0)
	n := g.Node(child)
	want := gglm.NewVec3(0, 1, -1)
	if n.BoxMin != want {
		t.Fatalf("expected child box min %v, got %v", want.Data, n.BoxMin.Data)
	}

	want = gglm.NewVec3(2, 3, 1)
	if n.BoxMax != want {
		t.Fatalf("expected child box max %v, got %v", want.Data, n.BoxMax.Data)
	}
}

func TestUpdateTransformsKeepsPrevWorld(t *testing.T) {

	g := NewGraph()
	id := g.AddNode("n", NoParent, nil, nil, transform.Translation(1, 0, 0))

	g.UpdateTransforms()
	if g.Node(id).PrevWorld != g.Node(id).World {
		t.Fatal("expected prev world to equal world after the first update")
	}

	g.Node(id).Local = transform.Translation(5, 0, 0)
	g.UpdateTransforms()

	prev := transform.Position(&g.Node(id).PrevWorld)
	cur := transform.Position(&g.Node(id).World)
	if prev.X() != 1 || cur.X() != 5 {
		t.Fatalf("expected prev x=1 and current x=5, got %f and %f", prev.X(), cur.X())
	}
}

func TestWalkOrderAndSkipping(t *testing.T) {

	g := NewGraph()
	a := g.AddNode("a", NoParent, nil, nil, transform.Identity())
	b := g.AddNode("b", a, nil, nil, transform.Identity())
	g.AddNode("c", b, nil, nil, transform.Identity())
	g.AddNode("d", a, nil, nil, transform.Identity())
	g.AddNode("e", NoParent, nil, nil, transform.Identity())

	got := ""
	g.Walk(NoParent, func(id NodeId, n *Node) bool {
		got += n.Name
		return true
	})

	if got != "abcde" {
		t.Fatalf("expected depth first order 'abcde', got '%s'", got)
	}

	got = ""
	g.Walk(a, func(id NodeId, n *Node) bool {
		got += n.Name
		return n.Name != "b"
	})

	if got != "abd" {
		t.Fatalf("expected children of b to be skipped, got '%s'", got)
	}
}

func TestDeepHierarchy(t *testing.T) {

	g := NewGraph()
	parent := NoParent
	for i := 0; i < 100_000; i++ {
		parent = g.AddNode("n", parent, nil, nil, transform.Translation(0, 0, 0.001))
	}

	g.UpdateTransforms()

	count := 0
	g.Walk(NoParent, func(id NodeId, n *Node) bool {
		count++
		return true
	})

	if count != g.Len() {
		t.Fatalf("expected to visit %d nodes, visited %d", g.Len(), count)
	}
}
