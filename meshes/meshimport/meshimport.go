// Package meshimport loads model files into meshes.Mesh through assimp.
// It needs the assimp shared library at build and run time, so it is kept out of the meshes package.
package meshimport

import (
	"errors"
	"fmt"

	"github.com/bloeys/assimp-go/asig"
	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/assert"
	"github.com/bloeys/lumen/meshes"
)

var (
	// DefaultMeshLoadFlags are the flags always applied when loading a new mesh regardless
	// of what post process flags are used when loading a mesh.
	//
	// Note: the deferred geometry shaders expect tangents, so CalcTangentSpace shouldn't be removed
	DefaultMeshLoadFlags asig.PostProcess = asig.PostProcessTriangulate | asig.PostProcessCalcTangentSpace
)

// Load imports every mesh in the file at modelPath as one submesh of the returned mesh
func Load(name, modelPath string, postProcessFlags asig.PostProcess) (*meshes.Mesh, error) {

	finalPostProcessFlags := DefaultMeshLoadFlags | postProcessFlags

	scene, release, err := asig.ImportFile(modelPath, finalPostProcessFlags)
	if err != nil {
		return nil, errors.New("Failed to load model. Err: " + err.Error())
	}
	defer release()

	if len(scene.Meshes) == 0 {
		return nil, errors.New("No meshes found in file: " + modelPath)
	}

	vertCount, faceCount := 0, 0
	for _, sm := range scene.Meshes {
		vertCount += len(sm.Vertices)
		faceCount += len(sm.Faces)
	}

	positions := make([]gglm.Vec3, 0, vertCount)
	normals := make([]gglm.Vec3, 0, vertCount)
	tangents := make([]gglm.Vec3, 0, vertCount)
	uv0 := make([]gglm.Vec2, 0, vertCount)
	indices := make([]uint32, 0, faceCount*3)
	subMeshes := make([]meshes.SubMesh, 0, len(scene.Meshes))

	for i := 0; i < len(scene.Meshes); i++ {

		sceneMesh := scene.Meshes[i]
		if len(sceneMesh.Faces) == 0 {
			continue
		}

		n := len(sceneMesh.Vertices)
		if len(sceneMesh.Normals) != n {
			return nil, fmt.Errorf("submesh %d of '%s' has %d normals for %d vertices", i, modelPath, len(sceneMesh.Normals), n)
		}

		// We always want tangents and UV0
		if len(sceneMesh.Tangents) == 0 {
			sceneMesh.Tangents = make([]gglm.Vec3, n)
		}

		if len(sceneMesh.TexCoords[0]) == 0 {
			sceneMesh.TexCoords[0] = make([]gglm.Vec3, n)
		}

		faceIndices := flattenFaces(sceneMesh.Faces)
		subMeshes = append(subMeshes, meshes.SubMesh{

			// Index of the vertex to start from (e.g. if index buffer says use vertex 5, and BaseVertex=3, the vertex used will be vertex 8)
			BaseVertex: int32(len(positions)),
			// Which index (in the index buffer) to start from
			BaseIndex: uint32(len(indices)),
			// How many indices in this submesh
			IndexCount: int32(len(faceIndices)),
		})

		positions = append(positions, sceneMesh.Vertices...)
		normals = append(normals, sceneMesh.Normals...)
		tangents = append(tangents, sceneMesh.Tangents...)
		uv0 = append(uv0, v3sToV2s(sceneMesh.TexCoords[0])...)
		indices = append(indices, faceIndices...)
	}

	if len(subMeshes) == 0 {
		return nil, errors.New("No faces found in file: " + modelPath)
	}

	m := meshes.NewMesh(name, positions, normals, tangents, uv0, indices)
	m.SubMeshes = subMeshes
	return m, nil
}

func v3sToV2s(v3s []gglm.Vec3) []gglm.Vec2 {

	v2s := make([]gglm.Vec2, len(v3s))
	for i := 0; i < len(v3s); i++ {
		v2s[i] = gglm.Vec2{
			Data: [2]float32{v3s[i].X(), v3s[i].Y()},
		}
	}

	return v2s
}

func flattenFaces(faces []asig.Face) []uint32 {

	assert.T(len(faces[0].Indices) == 3, "Face doesn't have 3 indices. Index count: %v\n", len(faces[0].Indices))

	uints := make([]uint32, len(faces)*3)
	for i := 0; i < len(faces); i++ {
		uints[i*3+0] = uint32(faces[i].Indices[0])
		uints[i*3+1] = uint32(faces[i].Indices[1])
		uints[i*3+2] = uint32(faces[i].Indices[2])
	}

	return uints
}
