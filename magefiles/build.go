//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

var shaderNames = []string{"simple_shader", "point_light", "composite"}

// Compiles every GLSL shader pair under assets/shaders to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the testbed binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "lumen"), "."), withStream()); err != nil {
		return err
	}
	return nil
}

func buildShaders() error {
	for _, name := range shaderNames {
		for _, stage := range []string{"vert", "frag"} {
			src := filepath.Join(shaderDir, fmt.Sprintf("%s.%s", name, stage))
			if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv"), withStream()); err != nil {
				return err
			}
		}
	}
	return nil
}
