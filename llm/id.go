package llm

import "github.com/google/uuid"

// NewID returns a unique identifier, used to correlate generations and
// their log output.
func NewID() string {
	return uuid.NewString()
}
