package systems

import (
	"encoding/binary"
	"errors"
	stdmath "math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"unsafe"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
	"github.com/spaghettifunk/lumen/engine/renderer/hal/haltest"
	"github.com/spaghettifunk/lumen/engine/scene"
)

var (
	testShaders = Shaders{Vertex: []byte{3, 2, 35, 7}, Fragment: []byte{3, 2, 35, 7}}
	sceneTarget = PassTarget{ColorFormat: hal.FormatB8G8R8A8Unorm, DepthFormat: hal.FormatD32Sfloat, Samples: hal.SampleCount4}
)

type fixedSource hal.DescriptorSet

func (s fixedSource) OffscreenDescriptorSet() hal.DescriptorSet { return hal.DescriptorSet(s) }

func recording(t *testing.T, dev *haltest.Device) hal.CommandBuffer {
	t.Helper()
	cmds, err := dev.AllocateCommandBuffers(1)
	if err != nil {
		t.Fatalf("AllocateCommandBuffers() error = %v", err)
	}
	if err := dev.BeginCommandBuffer(cmds[0]); err != nil {
		t.Fatalf("BeginCommandBuffer() error = %v", err)
	}
	t.Cleanup(func() {
		_ = dev.EndCommandBuffer(cmds[0])
		dev.FreeCommandBuffers(cmds)
	})
	return cmds[0]
}

func checkClean(t *testing.T, dev *haltest.Device) {
	t.Helper()
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Errorf("leaked resources: %v", leaks)
	}
	if len(dev.Violations) != 0 {
		t.Errorf("device violations: %v", dev.Violations)
	}
}

func pushedX(data []byte) float32 {
	return stdmath.Float32frombits(binary.LittleEndian.Uint32(data[:4]))
}

func TestGlobalUboLayout(t *testing.T) {
	size := unsafe.Sizeof(GlobalUbo{})
	if size%16 != 0 {
		t.Errorf("GlobalUbo size %d is not a multiple of 16", size)
	}
	if off := unsafe.Offsetof(GlobalUbo{}.PointLights); off != 3*64+16 {
		t.Errorf("PointLights offset = %d, want %d", off, 3*64+16)
	}
	if off := unsafe.Offsetof(GlobalUbo{}.NumLights); off != 3*64+16+MaxLights*32 {
		t.Errorf("NumLights offset = %d", off)
	}
}

func TestGlobalResourcesWrite(t *testing.T) {
	dev := haltest.New()
	g, err := NewGlobalResources(dev, renderer.MaxFramesInFlight)
	if err != nil {
		t.Fatalf("NewGlobalResources() error = %v", err)
	}
	if g.Set(0) == g.Set(1) {
		t.Errorf("frame slots share a descriptor set")
	}

	ubo := GlobalUbo{NumLights: 3, AmbientLightColor: math.NewVec4(1, 1, 1, 0.02)}
	if err := g.Write(1, &ubo); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := dev.BufferData(g.buffers[1]); !reflect.DeepEqual(got, hal.Bytes(&ubo)) {
		t.Errorf("frame 1 buffer does not hold the ubo")
	}
	if got := dev.BufferData(g.buffers[0]); reflect.DeepEqual(got, hal.Bytes(&ubo)) {
		t.Errorf("frame 0 buffer was written")
	}

	g.Destroy()
	checkClean(t, dev)
}

func TestGlobalResourcesFailure(t *testing.T) {
	for _, op := range []string{"CreateDescriptorSetLayout", "CreateDescriptorPool", "CreateBuffer", "AllocateDescriptorSet"} {
		t.Run(op, func(t *testing.T) {
			dev := haltest.New()
			dev.FailNext(op, 1)
			if _, err := NewGlobalResources(dev, 2); !errors.Is(err, core.ErrDevice) {
				t.Fatalf("NewGlobalResources() error = %v, want device error", err)
			}
			checkClean(t, dev)
		})
	}
}

func lightFrame(cmd hal.CommandBuffer, frameTime float64, entities scene.Map) *renderer.FrameInfo {
	camera := scene.NewCamera()
	camera.SetViewYXZ(math.NewVec3Zero(), math.NewVec3Zero())
	return &renderer.FrameInfo{
		FrameTime:     frameTime,
		CommandBuffer: cmd,
		Camera:        camera,
		Entities:      entities,
	}
}

func TestPointLightUpdate(t *testing.T) {
	dev := haltest.New()
	s, err := NewPointLightSystem(dev, sceneTarget, 0, testShaders)
	if err != nil {
		t.Fatalf("NewPointLightSystem() error = %v", err)
	}
	defer s.Destroy()

	entities := scene.Map{}
	light := scene.NewPointLight(0.8, 0.1, math.NewVec3(1, 0.5, 0.25))
	light.Transform.Translation = math.NewVec3(2, -1, 0)
	entities.Add(light)
	entities.Add(scene.NewEntity())

	var ubo GlobalUbo
	s.Update(lightFrame(0, stdmath.Pi, entities), &ubo)

	if ubo.NumLights != 1 {
		t.Fatalf("NumLights = %d, want 1", ubo.NumLights)
	}
	got := ubo.PointLights[0]
	if got.Color != math.NewVec4(1, 0.5, 0.25, 0.8) {
		t.Errorf("Color = %+v, want intensity in w", got.Color)
	}
	pos := got.Position.ToVec3()
	if pos.Y != -1 {
		t.Errorf("orbit changed height: %+v", pos)
	}
	if d := pos.Length() - math.NewVec3(2, -1, 0).Length(); d > 1e-5 || d < -1e-5 {
		t.Errorf("orbit changed radius: %+v", pos)
	}
	if pos.Compare(math.NewVec3(2, -1, 0), 1e-3) {
		t.Errorf("light did not move")
	}
	if pos != light.Transform.Translation {
		t.Errorf("ubo position %+v differs from entity %+v", pos, light.Transform.Translation)
	}
}

func TestPointLightUpdateLimit(t *testing.T) {
	core.SetFatalAssertions(false)
	defer core.SetFatalAssertions(true)

	dev := haltest.New()
	s, err := NewPointLightSystem(dev, sceneTarget, 0, testShaders)
	if err != nil {
		t.Fatalf("NewPointLightSystem() error = %v", err)
	}
	defer s.Destroy()

	entities := scene.Map{}
	for i := 0; i < MaxLights+2; i++ {
		entities.Add(scene.NewPointLight(1, 0.1, math.NewVec3One()))
	}
	var ubo GlobalUbo
	s.Update(lightFrame(0, 0, entities), &ubo)
	if ubo.NumLights != MaxLights {
		t.Errorf("NumLights = %d, want %d", ubo.NumLights, MaxLights)
	}
}

func TestPointLightRenderBackToFront(t *testing.T) {
	dev := haltest.New()
	s, err := NewPointLightSystem(dev, sceneTarget, 0, testShaders)
	if err != nil {
		t.Fatalf("NewPointLightSystem() error = %v", err)
	}
	cmd := recording(t, dev)

	entities := scene.Map{}
	for _, x := range []float32{1, 3, 2} {
		e := scene.NewPointLight(1, 0.2, math.NewVec3One())
		e.Transform.Translation = math.NewVec3(x, 0, 0)
		entities.Add(e)
	}
	s.Render(lightFrame(cmd, 0, entities))

	want := []string{"bind-pipeline", "bind-descriptor-sets", "push-constants", "draw", "push-constants", "draw", "push-constants", "draw"}
	if got := dev.Ops(cmd); !reflect.DeepEqual(got, want) {
		t.Fatalf("recorded %v, want %v", got, want)
	}
	var order []float32
	for _, c := range dev.Recorded(cmd) {
		switch c.Op {
		case "push-constants":
			order = append(order, pushedX(c.Data))
		case "draw":
			if c.Count != 6 {
				t.Errorf("billboard draw of %d vertices, want 6", c.Count)
			}
		}
	}
	if !reflect.DeepEqual(order, []float32{3, 2, 1}) {
		t.Errorf("draw order %v, want farthest first", order)
	}

	s.Destroy()
}

func TestPointLightRenderWithoutLights(t *testing.T) {
	dev := haltest.New()
	s, err := NewPointLightSystem(dev, sceneTarget, 0, testShaders)
	if err != nil {
		t.Fatalf("NewPointLightSystem() error = %v", err)
	}
	defer s.Destroy()
	cmd := recording(t, dev)

	s.Render(lightFrame(cmd, 0, scene.Map{}))
	if n := len(dev.Recorded(cmd)); n != 0 {
		t.Errorf("recorded %d commands with no lights", n)
	}
}

func TestRenderSystemDrawsModels(t *testing.T) {
	dev := haltest.New()
	s, err := NewRenderSystem(dev, sceneTarget, 0, testShaders)
	if err != nil {
		t.Fatalf("NewRenderSystem() error = %v", err)
	}
	vertices, indices := scene.CubeMesh()
	model, err := scene.NewModel(dev, vertices, indices)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	cube := scene.NewEntity()
	cube.Model = model
	cube.Transform.Translation = math.NewVec3(0, 0, 2.5)
	entities := scene.Map{}
	entities.Add(cube)
	entities.Add(scene.NewPointLight(1, 0.1, math.NewVec3One()))

	cmd := recording(t, dev)
	s.Render(lightFrame(cmd, 0, entities))

	want := []string{"bind-pipeline", "bind-descriptor-sets", "push-constants", "bind-vertex-buffer", "bind-index-buffer", "draw-indexed"}
	if got := dev.Ops(cmd); !reflect.DeepEqual(got, want) {
		t.Fatalf("recorded %v, want %v", got, want)
	}
	rec := dev.Recorded(cmd)
	if len(rec[2].Data) != 128 {
		t.Errorf("push constant size = %d, want two matrices", len(rec[2].Data))
	}
	if rec[5].Count != 36 {
		t.Errorf("indexed draw of %d indices, want 36", rec[5].Count)
	}

	model.Destroy(dev)
	s.Destroy()
}

func TestCompositeSystem(t *testing.T) {
	dev := haltest.New()
	s, err := NewCompositeSystem(dev, sceneTarget, 0, fixedSource(7), testShaders)
	if err != nil {
		t.Fatalf("NewCompositeSystem() error = %v", err)
	}
	cmd := recording(t, dev)
	s.Render(&renderer.FrameInfo{CommandBuffer: cmd})

	rec := dev.Recorded(cmd)
	if got := dev.Ops(cmd); !reflect.DeepEqual(got, []string{"bind-pipeline", "bind-descriptor-sets", "draw"}) {
		t.Fatalf("recorded %v", got)
	}
	if rec[2].Count != 3 {
		t.Errorf("fullscreen draw of %d vertices, want 3", rec[2].Count)
	}
	s.Destroy()
}

func TestSystemManager(t *testing.T) {
	dev := haltest.New()
	config := SystemManagerConfig{
		Shaders:    ShaderSet{Mesh: testShaders, PointLight: testShaders, Composite: testShaders},
		Scene:      sceneTarget,
		Screen:     PassTarget{ColorFormat: hal.FormatB8G8R8A8Srgb, DepthFormat: hal.FormatD32Sfloat, Samples: hal.SampleCount4},
		Source:     fixedSource(1),
		Frames:     renderer.MaxFramesInFlight,
	}
	sm, err := NewSystemManager(dev, config)
	if err != nil {
		t.Fatalf("NewSystemManager() error = %v", err)
	}
	if got := dev.Live(haltest.KindPipeline); got != 3 {
		t.Errorf("live pipelines = %d, want 3", got)
	}
	if dev.Live(haltest.KindShaderModule) != 0 {
		t.Errorf("shader modules outlive pipeline creation")
	}

	rebuilt, err := sm.Retarget(config.Scene, config.Screen, config.OffscreenLayout)
	if err != nil || rebuilt {
		t.Errorf("Retarget(unchanged) = %v, %v; want false, nil", rebuilt, err)
	}
	single := config.Scene
	single.Samples = hal.SampleCount1
	rebuilt, err = sm.Retarget(single, config.Screen, config.OffscreenLayout)
	if err != nil || !rebuilt {
		t.Errorf("Retarget(changed) = %v, %v; want true, nil", rebuilt, err)
	}
	if got := dev.Live(haltest.KindPipeline); got != 3 {
		t.Errorf("live pipelines after retarget = %d, want 3", got)
	}

	light := scene.NewPointLight(1, 0.1, math.NewVec3One())
	frame := lightFrame(0, 0.016, scene.Map{light.ID(): light})
	frame.FrameIndex = 1
	if err := sm.Update(frame); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	var ubo GlobalUbo
	copy(hal.Bytes(&ubo), dev.BufferData(sm.global.buffers[1]))
	if ubo.NumLights != 1 || ubo.AmbientLightColor != sm.AmbientLight {
		t.Errorf("uploaded ubo = %+v", ubo)
	}

	sm.Shutdown()
	checkClean(t, dev)
}

func TestSystemManagerFailure(t *testing.T) {
	tests := []struct {
		op string
		n  int
	}{
		{"CreateBuffer", 2},
		{"CreateShaderModule", 2},
		{"CreateGraphicsPipeline", 1},
		{"CreateGraphicsPipeline", 3},
	}
	for _, tt := range tests {
		dev := haltest.New()
		dev.FailNext(tt.op, tt.n)
		_, err := NewSystemManager(dev, SystemManagerConfig{
			Shaders: ShaderSet{Mesh: testShaders, PointLight: testShaders, Composite: testShaders},
			Scene:   sceneTarget,
			Screen:  sceneTarget,
			Frames:  2,
		})
		if !errors.Is(err, haltest.ErrInjected) {
			t.Errorf("%s #%d: error = %v, want injected failure", tt.op, tt.n, err)
		}
		checkClean(t, dev)
	}

	if _, err := NewSystemManager(haltest.New(), SystemManagerConfig{}); !errors.Is(err, core.ErrConfig) {
		t.Errorf("zero frames: error = %v, want ErrConfig", err)
	}
}

func TestLoadShaderSet(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"simple_shader", "point_light", "composite"} {
		for _, stage := range []string{"vert", "frag"} {
			path := filepath.Join(dir, name+"."+stage+".spv")
			if err := os.WriteFile(path, []byte{3, 2, 35, 7, 0, 0, 1, 0}, 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	set, err := LoadShaderSet(dir)
	if err != nil {
		t.Fatalf("LoadShaderSet() error = %v", err)
	}
	if len(set.Mesh.Vertex) != 8 || len(set.PointLight.Fragment) != 8 || len(set.Composite.Vertex) != 8 {
		t.Errorf("shader set not fully loaded: %+v", set)
	}

	if err := os.WriteFile(filepath.Join(dir, "composite.frag.spv"), []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadShaderSet(dir); err == nil {
		t.Errorf("LoadShaderSet() accepted a truncated module")
	}
	if _, err := LoadShaderSet(filepath.Join(dir, "missing")); err == nil {
		t.Errorf("LoadShaderSet() accepted a missing directory")
	}
}

func TestJobSystem(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Errorf("NewJobSystem(0) error = %v", err)
	}
	if _, err := NewJobSystem(1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Errorf("NewJobSystem(-1) error = %v", err)
	}

	js, err := NewJobSystem(2, 0)
	if err != nil {
		t.Fatalf("NewJobSystem() error = %v", err)
	}
	failure := errors.New("boom")
	done := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		js.Submit(JobTask{Name: "ok", Run: func() error { return nil }, OnComplete: func() { done <- struct{}{} }})
	}
	js.Submit(JobTask{Name: "bad", Run: func() error { return failure }, OnComplete: func() { t.Error("OnComplete after failure") }})
	if err := js.Shutdown(); !errors.Is(err, failure) {
		t.Errorf("Shutdown() error = %v, want joined job failure", err)
	}
	if len(done) != 4 {
		t.Errorf("%d jobs completed, want 4", len(done))
	}
}
