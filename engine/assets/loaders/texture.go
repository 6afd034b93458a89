package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var textureExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

/**
 * @brief The header of a texture file. Materials reference textures by Name,
 * the file name without its extension.
 */
type TextureInfo struct {
	Name   string
	Format string
	Width  uint32
	Height uint32
}

// TextureLoader reads the header of an image file; pixels are not decoded.
type TextureLoader struct{}

func (tl *TextureLoader) Load(path string) (*Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%s: empty image %dx%d", path, cfg.Width, cfg.Height)
	}
	name := TextureName(path)
	return &Resource{
		Name:     name,
		FullPath: path,
		Type:     ResourceTypeTexture,
		DataSize: uint64(cfg.Width) * uint64(cfg.Height) * 4,
		Data: &TextureInfo{
			Name:   name,
			Format: format,
			Width:  uint32(cfg.Width),
			Height: uint32(cfg.Height),
		},
	}, nil
}

// TextureName is the name materials use for the texture stored at path.
func TextureName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isTexture(path string) bool {
	return textureExtensions[strings.ToLower(filepath.Ext(path))]
}
