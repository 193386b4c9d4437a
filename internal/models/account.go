package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is an entry in the account directory. The reconciliation engine
// only reads accounts; identity management lives elsewhere.
type Account struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string    `gorm:"uniqueIndex" json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
