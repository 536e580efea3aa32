package bucket

import (
	"time"

	"github.com/google/uuid"
)

// Entry is the local metadata record backing one remote container. The ID is
// the remote container name, generated by the system at creation time.
type Entry struct {
	ID         string    `json:"id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Name       string    `json:"name"`
	MemoryUsed int64     `json:"memory_used"`
	CreatedAt  time.Time `json:"created_at"`
}
