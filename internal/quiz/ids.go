package quiz

import "github.com/google/uuid"

// IDIssuer hands out identifiers for uploads and questions.
type IDIssuer interface {
	NewID() string
}

type UUIDIssuer struct{}

func (UUIDIssuer) NewID() string { return uuid.NewString() }
