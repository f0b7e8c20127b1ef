package ports

import (
	"context"

	"github.com/kris96tian/MOFAX-Online/domain/core"
	"github.com/kris96tian/MOFAX-Online/domain/model"
)

// SessionRepository keeps the model currently loaded by each browser session
type SessionRepository interface {
	// Put stores m for the session and returns the model it replaced, if any
	Put(ctx context.Context, id core.SessionID, m *model.Model) (*model.Model, error)
	// Get returns core.ErrNoModelLoaded when the session has no model
	Get(ctx context.Context, id core.SessionID) (*model.Model, error)
	// Delete removes and returns the session's model, if any
	Delete(ctx context.Context, id core.SessionID) (*model.Model, error)
	// Len reports how many sessions hold a model
	Len() int
	// Close releases every stored model
	Close() error
}
