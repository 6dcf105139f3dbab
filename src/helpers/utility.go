package helpers

import "github.com/google/uuid"

// GenerateUUID returns a random correlation id for log lines that belong to
// one batch.
func GenerateUUID() string {
	return uuid.New().String()
}
