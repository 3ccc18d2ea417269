package meshes

import (
	"math"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/assert"
	"github.com/chewxy/math32"
)

var (
	lastMeshId uint32
)

type SubMesh struct {
	BaseVertex int32
	BaseIndex  uint32
	IndexCount int32
}

// Mesh holds CPU side vertex data. Graphics devices upload it lazily on first draw
// and key their GPU copies by Id.
//
// Vertex attribute layout expected by shaders:
//   - Loc0: Pos
//   - Loc1: Normal
//   - Loc2: Tangent
//   - Loc3: UV0
type Mesh struct {
	Id   uint32
	Name string

	Positions []gglm.Vec3
	Normals   []gglm.Vec3
	Tangents  []gglm.Vec3
	UV0       []gglm.Vec2
	Indices   []uint32

	SubMeshes []SubMesh

	// Local space bounds
	BoxMin gglm.Vec3
	BoxMax gglm.Vec3
}

func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// RecalculateBounds updates BoxMin/BoxMax from the positions. Empty meshes get a zero box.
func (m *Mesh) RecalculateBounds() {

	if len(m.Positions) == 0 {
		m.BoxMin = gglm.NewVec3(0, 0, 0)
		m.BoxMax = gglm.NewVec3(0, 0, 0)
		return
	}

	m.BoxMin = gglm.NewVec3(math.MaxFloat32, math.MaxFloat32, math.MaxFloat32)
	m.BoxMax = gglm.NewVec3(-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32)

	for i := 0; i < len(m.Positions); i++ {

		p := &m.Positions[i]
		for c := 0; c < 3; c++ {
			m.BoxMin.Data[c] = math32.Min(m.BoxMin.Data[c], p.Data[c])
			m.BoxMax.Data[c] = math32.Max(m.BoxMax.Data[c], p.Data[c])
		}
	}
}

// Interleaved returns the vertex data as pos|normal|tangent|uv0 per vertex, missing attributes are zero.
func (m *Mesh) Interleaved() []float32 {

	const floatsPerVertex = 3 + 3 + 3 + 2

	out := make([]float32, 0, len(m.Positions)*floatsPerVertex)
	for i := 0; i < len(m.Positions); i++ {

		out = append(out, m.Positions[i].Data[:]...)

		if i < len(m.Normals) {
			out = append(out, m.Normals[i].Data[:]...)
		} else {
			out = append(out, 0, 0, 0)
		}

		if i < len(m.Tangents) {
			out = append(out, m.Tangents[i].Data[:]...)
		} else {
			out = append(out, 0, 0, 0)
		}

		if i < len(m.UV0) {
			out = append(out, m.UV0[i].Data[:]...)
		} else {
			out = append(out, 0, 0)
		}
	}

	return out
}

func getNewMeshId() uint32 {
	lastMeshId++
	return lastMeshId
}

// NewMesh creates a single submesh mesh from raw data. Normals, tangents and uvs may be nil.
func NewMesh(name string, positions, normals, tangents []gglm.Vec3, uv0 []gglm.Vec2, indices []uint32) *Mesh {

	assert.T(len(indices)%3 == 0, "Mesh '%s' index count %d is not a multiple of 3", name, len(indices))
	assert.T(len(normals) == 0 || len(normals) == len(positions), "Mesh '%s' has %d normals for %d positions", name, len(normals), len(positions))

	m := &Mesh{
		Id:        getNewMeshId(),
		Name:      name,
		Positions: positions,
		Normals:   normals,
		Tangents:  tangents,
		UV0:       uv0,
		Indices:   indices,
		SubMeshes: []SubMesh{
			{BaseVertex: 0, BaseIndex: 0, IndexCount: int32(len(indices))},
		},
	}

	m.RecalculateBounds()
	return m
}
