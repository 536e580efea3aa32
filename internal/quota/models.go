package quota

import (
	"time"

	"github.com/google/uuid"
)

// Stats is the single usage-accounting record kept per owner.
type Stats struct {
	OwnerID           uuid.UUID `json:"owner_id"`
	MemoryUsed        int64     `json:"memory_used"`
	MemoryAllocated   int64     `json:"memory_allocated"`
	APICallsUsed      int64     `json:"api_calls_used"`
	APICallsAllocated int64     `json:"api_calls_allocated"`
	UpdatedAt         time.Time `json:"updated_at"`
}
