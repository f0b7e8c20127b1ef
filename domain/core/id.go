package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	ModelID   ID
	SessionID ID
)

func (id ModelID) String() string   { return ID(id).String() }
func (id SessionID) String() string { return ID(id).String() }

// NewModelID identifies one load of a model file
func NewModelID() ModelID { return ModelID(NewID()) }

// NewSessionID identifies one browser session
func NewSessionID() SessionID { return SessionID(NewID()) }

// ParseSessionID accepts only well-formed UUIDs so cookie values cannot
// be used to probe arbitrary session keys
func ParseSessionID(s string) (SessionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid session ID %q: %w", s, err)
	}
	return SessionID(s), nil
}
