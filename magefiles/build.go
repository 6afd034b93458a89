//go:build mage

package main

import (
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Compiles every GLSL stage under assets/shaders to <program>.<stage>.spv.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the demo binary into bin/kiln.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/kiln", "."), withStream())
	return err
}

func buildShaders() error {
	var sources []string
	for _, pattern := range []string{"*.vert", "*.geom", "*.frag", "*.comp"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, pattern))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	for _, src := range sources {
		// triangle.vert -> triangle.vert.spv
		out := src + ".spv"
		if _, err := executeCmd("glslc", withArgs(src, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}

func isSPIRV(path string) bool {
	return strings.HasSuffix(path, ".spv")
}
