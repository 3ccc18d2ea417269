package transform

import (
	"testing"

	"github.com/bloeys/gglm/gglm"
)

func TestTranslateScaleMovesPoints(t *testing.T) {

	pos := gglm.NewVec3(1, 2, 3)
	m := TranslateScale(&pos, 2)

	p := gglm.NewVec3(1, 1, 1)
	x, y, z, w := MulPoint(&m, &p)

	if x != 3 || y != 4 || z != 5 || w != 1 {
		t.Fatalf("expected (3,4,5,1), got (%f,%f,%f,%f)", x, y, z, w)
	}

	got := Position(&m)
	if got.X() != 1 || got.Y() != 2 || got.Z() != 3 {
		t.Fatalf("unexpected position %v", got.Data)
	}
}

func TestMulComposesRightToLeft(t *testing.T) {

	translate := Translation(10, 0, 0)
	zero := gglm.NewVec3(0, 0, 0)
	scale := TranslateScale(&zero, 3)

	// translate * scale: scale first, then move
	m := Mul(translate, scale)

	p := gglm.NewVec3(1, 0, 0)
	x, _, _, _ := MulPoint(&m, &p)
	if x != 13 {
		t.Fatalf("expected 13, got %f", x)
	}
}

func TestTransformAABB(t *testing.T) {

	boxMin := gglm.NewVec3(-1, -1, -1)
	boxMax := gglm.NewVec3(1, 1, 1)

	pos := gglm.NewVec3(5, 0, 0)
	m := TranslateScale(&pos, 2)

	outMin, outMax := TransformAABB(&m, &boxMin, &boxMax)
	if outMin.X() != 3 || outMax.X() != 7 || outMin.Y() != -2 || outMax.Z() != 2 {
		t.Fatalf("unexpected box min=%v max=%v", outMin.Data, outMax.Data)
	}
}

func TestDistSqr(t *testing.T) {
	a := gglm.NewVec3(0, 0, 0)
	b := gglm.NewVec3(1, 2, 2)
	if d := DistSqr(&a, &b); d != 9 {
		t.Fatalf("expected 9, got %f", d)
	}
}
