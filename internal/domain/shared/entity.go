package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the persistence identity and timestamps every stored
// entity shares. The ID is internal to the owning database and never
// leaves the API; entities that are addressable over HTTP carry a
// separate public UID.
type BaseEntity struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity generates a fresh identity with both timestamps set to now
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
