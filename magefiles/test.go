//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test. None of them need a GPU.
func (Test) All() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "./..."), withEnv("CGO_ENABLED=1"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the renderer tests only, verbosely.
func (Test) Renderer() error {
	_, err := executeCmd("go", withArgs("test", "-v", "./engine/renderer/..."), withStream())
	return err
}
