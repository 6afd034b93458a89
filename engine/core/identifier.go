package core

import (
	"fmt"

	"github.com/google/uuid"
)

// NewResourceName builds a unique, human readable name for a GPU resource,
// e.g. "vertex-factory.3f1c...". Backends use it to label their objects.
func NewResourceName(kind string) string {
	return fmt.Sprintf("%s.%s", kind, uuid.New().String())
}
