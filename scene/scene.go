// Package scene stores a transform hierarchy as an arena of nodes addressed by index.
// All traversals use an explicit stack, so deep hierarchies can't overflow the goroutine stack.
package scene

import (
	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/assert"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/transform"
)

type NodeId int32

// NoParent marks root nodes. Passed as a root to Walk it means every root of the graph.
const NoParent NodeId = -1

type Node struct {
	Name     string
	Parent   NodeId
	Children []NodeId

	// Mesh and Material may both be nil for pure transform nodes
	Mesh     *meshes.Mesh
	Material *materials.Material

	Local gglm.Mat4

	// Updated by UpdateTransforms
	World     gglm.Mat4
	PrevWorld gglm.Mat4
	BoxMin    gglm.Vec3
	BoxMax    gglm.Vec3

	hasWorld bool
}

func (n *Node) IsDrawable() bool {
	return n.Mesh != nil && n.Material != nil
}

type Graph struct {
	Nodes []Node
	roots []NodeId
}

func NewGraph() *Graph {
	return &Graph{
		Nodes: make([]Node, 0, 16),
		roots: make([]NodeId, 0, 4),
	}
}

// AddNode appends a node under parent (or as a root when parent is NoParent) and returns its id.
func (g *Graph) AddNode(name string, parent NodeId, mesh *meshes.Mesh, mat *materials.Material, local gglm.Mat4) NodeId {

	assert.T(parent == NoParent || g.isValid(parent), "AddNode '%s' got invalid parent id %d", name, parent)

	id := NodeId(len(g.Nodes))
	g.Nodes = append(g.Nodes, Node{
		Name:     name,
		Parent:   parent,
		Mesh:     mesh,
		Material: mat,
		Local:    local,
	})

	if parent == NoParent {
		g.roots = append(g.roots, id)
	} else {
		g.Nodes[parent].Children = append(g.Nodes[parent].Children, id)
	}

	return id
}

func (g *Graph) isValid(id NodeId) bool {
	return id >= 0 && int(id) < len(g.Nodes)
}

func (g *Graph) Node(id NodeId) *Node {
	assert.T(g.isValid(id), "invalid node id %d", id)
	return &g.Nodes[id]
}

func (g *Graph) Roots() []NodeId {
	return g.roots
}

func (g *Graph) Len() int {
	return len(g.Nodes)
}

// UpdateTransforms recalculates world matrices and world space boxes of every node.
// The previous world matrix is kept in PrevWorld for motion vectors.
func (g *Graph) UpdateTransforms() {

	stack := make([]NodeId, 0, len(g.Nodes))
	for i := len(g.roots) - 1; i >= 0; i-- {
		stack = append(stack, g.roots[i])
	}

	for len(stack) > 0 {

		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &g.Nodes[id]

		world := n.Local
		if n.Parent != NoParent {
			world = transform.Mul(g.Nodes[n.Parent].World, n.Local)
		}

		if n.hasWorld {
			n.PrevWorld = n.World
		} else {
			n.PrevWorld = world
			n.hasWorld = true
		}

		n.World = world

		if n.Mesh != nil {
			n.BoxMin, n.BoxMax = transform.TransformAABB(&n.World, &n.Mesh.BoxMin, &n.Mesh.BoxMax)
		} else {
			n.BoxMin = transform.Position(&n.World)
			n.BoxMax = n.BoxMin
		}

		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// Walk visits root and its descendants depth first, parents before children and children in
// insertion order. Returning false from fn skips the children of that node.
func (g *Graph) Walk(root NodeId, fn func(id NodeId, n *Node) bool) {

	stack := make([]NodeId, 0, 16)
	if root == NoParent {
		for i := len(g.roots) - 1; i >= 0; i-- {
			stack = append(stack, g.roots[i])
		}
	} else {
		assert.T(g.isValid(root), "Walk got invalid root id %d", root)
		stack = append(stack, root)
	}

	for len(stack) > 0 {

		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &g.Nodes[id]
		if !fn(id, n) {
			continue
		}

		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}
