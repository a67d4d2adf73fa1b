package systems

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

// Shaders holds compiled SPIR-V for one pipeline.
type Shaders struct {
	Vertex   []byte
	Fragment []byte
}

// LoadShaders reads <dir>/<name>.vert.spv and <dir>/<name>.frag.spv.
func LoadShaders(dir, name string) (Shaders, error) {
	var s Shaders
	var err error
	if s.Vertex, err = readSPIRV(filepath.Join(dir, name+".vert.spv")); err != nil {
		return Shaders{}, err
	}
	if s.Fragment, err = readSPIRV(filepath.Join(dir, name+".frag.spv")); err != nil {
		return Shaders{}, err
	}
	return s, nil
}

func readSPIRV(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read shader %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	if len(data) == 0 || len(data)%4 != 0 {
		err := fmt.Errorf("shader %s is not SPIR-V (%d bytes)", path, len(data))
		core.LogError(err.Error())
		return nil, err
	}
	return data, nil
}

// PassTarget describes the attachments a pipeline renders into.
type PassTarget struct {
	ColorFormat hal.Format
	DepthFormat hal.Format
	Samples     hal.SampleCount
}

// createPipeline builds a pipeline from shaders. The modules are only
// needed during creation.
func createPipeline(device hal.Resources, shaders Shaders, desc hal.PipelineDesc) (hal.Pipeline, hal.PipelineLayout, error) {
	vert, err := device.CreateShaderModule(shaders.Vertex)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create vertex shader module: %w", err)
	}
	defer device.DestroyShaderModule(vert)
	frag, err := device.CreateShaderModule(shaders.Fragment)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create fragment shader module: %w", err)
	}
	defer device.DestroyShaderModule(frag)

	desc.VertexShader = vert
	desc.FragmentShader = frag
	pipeline, layout, err := device.CreateGraphicsPipeline(desc)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create graphics pipeline: %w", err)
	}
	return pipeline, layout, nil
}
