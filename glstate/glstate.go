package glstate

type DepthFunc uint8

const (
	DepthFunc_Less DepthFunc = iota
	DepthFunc_LessEqual
	DepthFunc_Equal
	DepthFunc_Greater
	DepthFunc_GreaterEqual
	DepthFunc_NotEqual
	DepthFunc_Always
	DepthFunc_Never
)

type BlendFactor uint8

const (
	BlendFactor_Zero BlendFactor = iota
	BlendFactor_One
	BlendFactor_SrcAlpha
	BlendFactor_OneMinusSrcAlpha
	BlendFactor_DstAlpha
	BlendFactor_OneMinusDstAlpha
	BlendFactor_SrcColor
	BlendFactor_OneMinusSrcColor
)

type Face uint8

const (
	Face_Back Face = iota
	Face_Front
	Face_FrontAndBack
)

type PolygonMode uint8

const (
	PolygonMode_Fill PolygonMode = iota
	PolygonMode_Line
)

// Applier issues the actual pipeline state changes. Implemented by graphics devices.
type Applier interface {
	SetDepthTest(enabled bool)
	SetDepthFunc(f DepthFunc)
	SetBlend(enabled bool)
	SetBlendFunc(src, dst BlendFactor)
	SetCull(enabled bool)
	SetCullFace(face Face)
	SetPolygonMode(mode PolygonMode)
	UseProgram(progId uint32)
}

type stateBit uint16

const (
	bitDepthTest stateBit = 1 << iota
	bitDepthFunc
	bitBlend
	bitBlendFunc
	bitCull
	bitCullFace
	bitPolygonMode
	bitProgram

	bitAll = bitDepthTest | bitDepthFunc | bitBlend | bitBlendFunc | bitCull | bitCullFace | bitPolygonMode | bitProgram
)

// Cache memoizes pipeline state and forwards a change to the Applier only when
// the requested value differs from the last applied one.
//
// The cache never reads state back from the device. Its starting values are the
// OpenGL defaults, so it must be created right after context creation or be
// Invalidate()ed if something else touched the state in between.
type Cache struct {
	applier Applier

	// known is the set of values that mirror the device. Unknown values are always applied.
	known stateBit

	depthTest   bool
	depthFunc   DepthFunc
	blend       bool
	blendSrc    BlendFactor
	blendDst    BlendFactor
	cull        bool
	cullFace    Face
	polygonMode PolygonMode
	program     uint32
}

func NewCache(a Applier) *Cache {
	return &Cache{
		applier: a,
		known:   bitAll,

		depthTest:   false,
		depthFunc:   DepthFunc_Less,
		blend:       false,
		blendSrc:    BlendFactor_One,
		blendDst:    BlendFactor_Zero,
		cull:        false,
		cullFace:    Face_Back,
		polygonMode: PolygonMode_Fill,
		program:     0,
	}
}

// Invalidate forgets all cached values, so the next call to every setter reaches the device.
// Use it after code outside the cache changed pipeline state.
func (c *Cache) Invalidate() {
	c.known = 0
}

func (c *Cache) isKnown(b stateBit) bool {
	return c.known&b == b
}

func (c *Cache) SetDepthTest(enabled bool) {

	if c.isKnown(bitDepthTest) && c.depthTest == enabled {
		return
	}

	c.depthTest = enabled
	c.known |= bitDepthTest
	c.applier.SetDepthTest(enabled)
}

func (c *Cache) SetDepthFunc(f DepthFunc) {

	if c.isKnown(bitDepthFunc) && c.depthFunc == f {
		return
	}

	c.depthFunc = f
	c.known |= bitDepthFunc
	c.applier.SetDepthFunc(f)
}

func (c *Cache) SetBlend(enabled bool) {

	if c.isKnown(bitBlend) && c.blend == enabled {
		return
	}

	c.blend = enabled
	c.known |= bitBlend
	c.applier.SetBlend(enabled)
}

func (c *Cache) SetBlendFunc(src, dst BlendFactor) {

	if c.isKnown(bitBlendFunc) && c.blendSrc == src && c.blendDst == dst {
		return
	}

	c.blendSrc = src
	c.blendDst = dst
	c.known |= bitBlendFunc
	c.applier.SetBlendFunc(src, dst)
}

func (c *Cache) SetCull(enabled bool) {

	if c.isKnown(bitCull) && c.cull == enabled {
		return
	}

	c.cull = enabled
	c.known |= bitCull
	c.applier.SetCull(enabled)
}

func (c *Cache) SetCullFace(face Face) {

	if c.isKnown(bitCullFace) && c.cullFace == face {
		return
	}

	c.cullFace = face
	c.known |= bitCullFace
	c.applier.SetCullFace(face)
}

func (c *Cache) SetPolygonMode(mode PolygonMode) {

	if c.isKnown(bitPolygonMode) && c.polygonMode == mode {
		return
	}

	c.polygonMode = mode
	c.known |= bitPolygonMode
	c.applier.SetPolygonMode(mode)
}

func (c *Cache) UseProgram(progId uint32) {

	if c.isKnown(bitProgram) && c.program == progId {
		return
	}

	c.program = progId
	c.known |= bitProgram
	c.applier.UseProgram(progId)
}

func (c *Cache) DepthTest() bool { return c.depthTest }
func (c *Cache) DepthFunc() DepthFunc { return c.depthFunc }
func (c *Cache) Blend() bool { return c.blend }
func (c *Cache) BlendFunc() (src, dst BlendFactor) { return c.blendSrc, c.blendDst }
func (c *Cache) Cull() bool { return c.cull }
func (c *Cache) CullFace() Face { return c.cullFace }
func (c *Cache) PolygonMode() PolygonMode { return c.polygonMode }
func (c *Cache) Program() uint32 { return c.program }
