package assets

import "github.com/spaghettifunk/kiln/engine/assets/loaders"

// Loader reads one file into a typed resource.
type Loader interface {
	Load(path string) (*loaders.Resource, error)
}
