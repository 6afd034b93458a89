package loaders

import (
	"path/filepath"
	"strings"
)

type ResourceType uint8

const (
	ResourceTypeNone ResourceType = iota
	ResourceTypeMaterial
	ResourceTypeShader
	ResourceTypeTexture
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeMaterial:
		return "material"
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeTexture:
		return "texture"
	}
	return "none"
}

/**
 * @brief A loaded asset. Data holds the typed result of the loader, e.g. a
 * *material.Material for material files.
 */
type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	DataSize uint64
	Data     interface{}
}

// DetermineResourceType maps a file name to the loader that reads it.
func DetermineResourceType(path string) ResourceType {
	switch {
	case strings.HasSuffix(path, ".spv"):
		return ResourceTypeShader
	case filepath.Ext(path) == ".toml":
		return ResourceTypeMaterial
	case isTexture(path):
		return ResourceTypeTexture
	}
	return ResourceTypeNone
}
