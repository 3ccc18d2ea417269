package main

import (
	"flag"
	"image/png"
	"math/rand/v2"
	"os"

	"github.com/bloeys/gglm/gglm"
	"github.com/bloeys/lumen/assets"
	"github.com/bloeys/lumen/config"
	"github.com/bloeys/lumen/engine"
	"github.com/bloeys/lumen/lights"
	"github.com/bloeys/lumen/logging"
	"github.com/bloeys/lumen/materials"
	"github.com/bloeys/lumen/meshes"
	"github.com/bloeys/lumen/meshes/meshimport"
	"github.com/bloeys/lumen/renderer"
	"github.com/bloeys/lumen/renderer/rend3dgl"
	"github.com/bloeys/lumen/renderer/rendsoft"
	"github.com/bloeys/lumen/resources"
	"github.com/bloeys/lumen/scene"
	"github.com/bloeys/lumen/transform"
	"github.com/chewxy/math32"
)

const (
	// Shaders the demo scene uses on top of the renderer ones
	ShaderName_GBuffer = "gbuffer"
	ShaderName_Unlit   = "unlit"
	ShaderName_Tint    = "tint"
)

var (
	configPath   = flag.String("config", "", "Path to a yaml renderer config. Defaults are used when empty")
	shaderDir    = flag.String("shaders", "./res/shaders", "Directory of combined .glsl shaders")
	modelPath    = flag.String("model", "", "Optional model file to add to the scene")
	skyPath      = flag.String("sky", "", "Optional equirectangular HDR/LDR image used as the sky")
	headlessPath = flag.String("headless", "", "Render one frame with the software device and write it as a png to this path")
	pointLights  = flag.Int("point-lights", 8, "Number of random point lights")
)

type demo struct {
	res   *resources.Manager
	rend  *renderer.Renderer
	graph *scene.Graph

	rootNode     scene.NodeId
	spinnerNode  scene.NodeId
	spinnerAngle float32

	tintMat *materials.Material
}

func main() {

	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {

		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logging.ErrLog.Fatalf("Failed to load config. Err: %s", err)
		}
	}

	if *headlessPath != "" {
		runHeadless(cfg)
		return
	}

	runWindowed(cfg)
}

func runHeadless(cfg config.RendererConfig) {

	dev := rendsoft.New(cfg.Width, cfg.Height)
	d := newDemo(dev, cfg)
	defer d.delete()

	d.frame()

	f, err := os.Create(*headlessPath)
	if err != nil {
		logging.ErrLog.Fatalf("Failed to create output image. Err: %s", err)
	}
	defer f.Close()

	if err := png.Encode(f, dev.BackbufferImage()); err != nil {
		logging.ErrLog.Fatalf("Failed to encode output image. Err: %s", err)
	}

	logging.InfoLog.Infof("Wrote frame to '%s'. Stats: %+v", *headlessPath, d.rend.Stats())
}

func runWindowed(cfg config.RendererConfig) {

	err := engine.Init()
	if err != nil {
		logging.ErrLog.Fatalf("Failed to init engine. Err: %s", err)
	}
	defer engine.Quit()

	window, err := engine.CreateOpenGLWindowCentered("Lumen", int32(cfg.Width), int32(cfg.Height), engine.WindowFlags_RESIZABLE|engine.WindowFlags_ALLOW_HIGHDPI)
	if err != nil {
		logging.ErrLog.Fatalf("Failed to create window. Err: %s", err)
	}
	defer window.Destroy()

	engine.SetVSync(true)

	cfg.Width, cfg.Height = window.DrawableSize()
	d := newDemo(rend3dgl.NewRend3DGL(), cfg)
	defer d.delete()

	window.Rend = d.rend

	for window.PollEvents() {
		d.frame()
		window.Swap()
	}
}

func newDemo(dev renderer.Device, cfg config.RendererConfig) *demo {

	res := resources.NewManager(dev)
	if err := res.LoadShaderDir(*shaderDir); err != nil {
		logging.ErrLog.Fatalf("Failed to load shaders. Err: %s", err)
	}

	rend, err := renderer.New(dev, res, cfg)
	if err != nil {
		logging.ErrLog.Fatalf("Failed to create renderer. Err: %s", err)
	}

	d := &demo{
		res:   res,
		rend:  rend,
		graph: scene.NewGraph(),
	}

	d.loadSky()
	d.buildScene()
	d.addLights()

	// Probes at the corners of the floor pick up the colored walls
	for _, p := range []gglm.Vec3{
		gglm.NewVec3(-6, 2, -6),
		gglm.NewVec3(6, 2, -6),
		gglm.NewVec3(-6, 2, 6),
		gglm.NewVec3(6, 2, 6),
	} {
		d.rend.AddIrradianceProbe(p, 8)
	}

	d.graph.UpdateTransforms()
	if err := d.rend.BakeProbes(d.graph, d.rootNode); err != nil {
		logging.ErrLog.Errorf("Failed to bake probes. Err: %s", err)
	}

	return d
}

func (d *demo) loadSky() {

	if *skyPath == "" {
		return
	}

	equirect, err := assets.LoadEquirectangular(d.res.Device(), *skyPath)
	if err != nil {
		logging.ErrLog.Errorf("Failed to load sky '%s'. Err: %s", *skyPath, err)
		return
	}
	defer equirect.Delete()

	sky, err := d.rend.PBR().ProcessEquirectangular(equirect)
	if err != nil {
		logging.ErrLog.Errorf("Failed to process sky '%s'. Err: %s", *skyPath, err)
		return
	}

	d.rend.SetSkyCapture(sky)
}

func (d *demo) newGBufferMat(name string, color gglm.Vec4) *materials.Material {

	prog, err := d.res.Shader(ShaderName_GBuffer)
	if err != nil {
		logging.ErrLog.Fatalf("Failed to find geometry shader. Err: %s", err)
	}

	m := materials.NewMaterial(name, materials.MaterialType_Default, prog)
	m.SetUnifVec4("baseColor", &color)
	m.SetUnifFloat32("roughness", 0.6)
	m.SetUnifFloat32("metallic", 0)
	return m
}

func scaleMat(pos gglm.Vec3, sx, sy, sz float32) gglm.Mat4 {

	m := transform.Translation(pos.X(), pos.Y(), pos.Z())
	m.Data[0][0] = sx
	m.Data[1][1] = sy
	m.Data[2][2] = sz
	return m
}

func (d *demo) buildScene() {

	cube := meshes.NewCube()
	sphere := meshes.NewSphere(32, 16)

	white := d.newGBufferMat("floor", gglm.NewVec4(0.8, 0.8, 0.8, 1))
	red := d.newGBufferMat("red-wall", gglm.NewVec4(0.8, 0.1, 0.1, 1))
	green := d.newGBufferMat("green-wall", gglm.NewVec4(0.1, 0.8, 0.1, 1))
	gold := d.newGBufferMat("gold", gglm.NewVec4(1, 0.78, 0.34, 1))
	gold.SetUnifFloat32("metallic", 1)
	gold.SetUnifFloat32("roughness", 0.3)

	g := d.graph
	d.rootNode = g.AddNode("root", scene.NoParent, nil, nil, transform.Identity())
	g.AddNode("floor", d.rootNode, cube, white, scaleMat(gglm.NewVec3(0, -0.5, 0), 20, 1, 20))
	g.AddNode("left-wall", d.rootNode, cube, red, scaleMat(gglm.NewVec3(-10, 4, 0), 1, 8, 20))
	g.AddNode("right-wall", d.rootNode, cube, green, scaleMat(gglm.NewVec3(10, 4, 0), 1, 8, 20))

	// Spheres orbit the spinner node, so moving it exercises prevModel for motion blur
	d.spinnerNode = g.AddNode("spinner", d.rootNode, nil, nil, transform.Translation(0, 1.5, 0))
	for i := 0; i < 4; i++ {
		x := float32(i-2)*2.5 + 1.25
		g.AddNode("sphere", d.spinnerNode, sphere, gold, transform.Translation(x, 0, 0))
	}

	if *modelPath != "" {

		m, err := meshimport.Load("model", *modelPath, 0)
		if err != nil {
			logging.ErrLog.Errorf("Failed to load model '%s'. Err: %s", *modelPath, err)
		} else {
			d.res.AddMesh("model", m)
			g.AddNode("model", d.rootNode, m, white, transform.Translation(0, 0, -4))
		}
	}

	// Glass sphere drawn in the alpha pass
	unlitProg, err := d.res.Shader(ShaderName_Unlit)
	if err != nil {
		logging.ErrLog.Fatalf("Failed to find unlit shader. Err: %s", err)
	}

	glass := materials.NewMaterial("glass", materials.MaterialType_Default, unlitProg)
	glass.Settings.Set(materials.MaterialSettings_Blend)
	glass.Settings.Remove(materials.MaterialSettings_ShadowCast)
	glassColor := gglm.NewVec4(0.4, 0.6, 1, 0.35)
	glass.SetUnifVec4("baseColor", &glassColor)
	g.AddNode("glass", d.rootNode, sphere, glass, scaleMat(gglm.NewVec3(0, 3, 3), 1.5, 1.5, 1.5))

	tintProg, err := d.res.Shader(ShaderName_Tint)
	if err != nil {
		logging.ErrLog.Fatalf("Failed to find tint shader. Err: %s", err)
	}

	d.tintMat = materials.NewMaterial("tint", materials.MaterialType_PostProcess, tintProg)
	tint := gglm.NewVec3(1, 0.97, 0.92)
	d.tintMat.SetUnifVec3("tint", &tint)
	d.tintMat.SetUnifInt32("source", int32(materials.TextureSlot_Source))

	cam := d.rend.Camera()
	cam.Pos = gglm.NewVec3(0, 4, 14)
	forward := gglm.NewVec3(0, -0.25, -1)
	cam.Forward = *forward.Normalize()
	cam.Update()
}

func (d *demo) addLights() {

	d.rend.AddDirLight(&lights.DirectionalLight{
		Direction:   gglm.NewVec3(-0.4, -1, -0.3),
		Color:       gglm.NewVec3(1, 0.95, 0.85),
		Intensity:   2,
		CastShadows: true,
	})

	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < *pointLights; i++ {
		d.rend.AddPointLight(&lights.PointLight{
			Position:  gglm.NewVec3(r.Float32()*16-8, 0.5+r.Float32()*3, r.Float32()*16-8),
			Color:     gglm.NewVec3(r.Float32(), r.Float32(), r.Float32()),
			Intensity: 4,
			Radius:    4,
		})
	}
}

func (d *demo) frame() {

	d.spinnerAngle += 0.01

	spinner := d.graph.Node(d.spinnerNode)
	spinner.Local = transform.Mul(transform.Translation(0, 1.5, 0), rotationY(d.spinnerAngle))

	d.graph.UpdateTransforms()
	d.rend.PushSceneNode(d.graph, d.rootNode)
	d.rend.PushPostProcessor(d.tintMat)
	d.rend.RenderPushedCommands()
}

func rotationY(angle float32) gglm.Mat4 {

	sin, cos := math32.Sincos(angle)

	m := transform.Identity()
	m.Data[0][0] = cos
	m.Data[0][2] = -sin
	m.Data[2][0] = sin
	m.Data[2][2] = cos
	return m
}

func (d *demo) delete() {
	d.rend.Shutdown()
	d.res.Delete()
}
