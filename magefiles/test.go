//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs the unit tests. Every package runs on the headless backend.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "./engine/...", "./testbed/..."), withStream())
	return err
}

// Runs the unit tests with the race detector, the asset watcher runs on its own goroutine.
func (Test) Race() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./engine/...", "./testbed/..."), withStream())
	return err
}

// Removes the compiled shaders and the binary.
func Clean() error {
	if _, err := executeCmd("go", withArgs("clean")); err != nil {
		return err
	}
	return removeGlob(shaderDir, isSPIRV)
}
