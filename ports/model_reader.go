package ports

import (
	"context"

	"github.com/kris96tian/MOFAX-Online/domain/model"
)

// ModelReader opens a model file on disk and returns a validated handle.
// Identity fields (ID, Hash, Path) are filled in by the caller.
type ModelReader interface {
	Open(ctx context.Context, path string) (*model.Model, error)
}
