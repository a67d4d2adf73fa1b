package testbed

import (
	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/scene"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	cube   *scene.Entity
	models []*scene.Model

	width  uint32
	height uint32
}

var lightColors = []math.Vec3{
	math.NewVec3(1.0, 0.1, 0.1),
	math.NewVec3(0.1, 0.1, 1.0),
	math.NewVec3(0.1, 1.0, 0.1),
	math.NewVec3(1.0, 1.0, 0.1),
	math.NewVec3(0.1, 1.0, 1.0),
	math.NewVec3(1.0, 1.0, 1.0),
}

func NewTestGame(config *core.Config, configPath, assetsPath string) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			Config:     config,
			ConfigPath: configPath,
			AssetsPath: assetsPath,
			State:      &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

// Initialize puts a cube at the origin with a ring of coloured point lights
// around it.
func (g *TestGame) Initialize(world *engine.World) error {
	core.LogInfo("initializing testbed...")
	st := g.state()

	vertices, indices := scene.CubeMesh()
	model, err := scene.NewModel(world.Device, vertices, indices)
	if err != nil {
		return err
	}
	st.models = append(st.models, model)

	st.cube = scene.NewEntity()
	st.cube.Model = model
	st.cube.Transform.Scale = math.NewVec3(0.5, 0.5, 0.5)
	world.Entities.Add(st.cube)

	ring := math.NewMat4RotationY(2 * math.PI / float32(len(lightColors)))
	pos := math.NewVec4(-1.2, -1.0, -1.2, 1)
	for _, c := range lightColors {
		light := scene.NewPointLight(0.6, 0.1, c)
		light.Transform.Translation = pos.ToVec3()
		world.Entities.Add(light)
		pos = ring.MulVec4(pos)
	}

	world.Camera.SetViewYXZ(math.NewVec3(0, -0.8, -3.0), math.NewVec3(-0.25, 0, 0))
	return nil
}

func (g *TestGame) Update(world *engine.World, deltaTime float64) error {
	st := g.state()
	st.cube.Transform.Rotation.Y += float32(0.5 * deltaTime)
	st.cube.Transform.Rotation.X += float32(0.2 * deltaTime)
	return nil
}

func (g *TestGame) OnResize(world *engine.World, width uint32, height uint32) error {
	st := g.state()
	st.width, st.height = width, height
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown(world *engine.World) error {
	st := g.state()
	for _, m := range st.models {
		m.Destroy(world.Device)
	}
	st.models = nil
	core.LogInfo("testbed shut down")
	return nil
}
