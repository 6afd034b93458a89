//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the demo with kiln.toml.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	_, err := executeCmd("go", withArgs("run", ".", "-config", "kiln.toml"), withStream())
	return err
}

// Runs the demo on the headless backend for a fixed number of frames.
func (Run) Headless() error {
	_, err := executeCmd("go", withArgs("run", ".", "-config", "kiln.toml", "-backend", "headless", "-frames", "120"), withStream())
	return err
}
