package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationOutbox is the durable outbox for resolution events. A row is
// written in the same DB transaction as the candidate transition that produced
// it, so candidate state is committed before delivery is ever attempted.
type NotificationOutbox struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CandidateID uuid.UUID       `gorm:"index"`
	Status      CandidateStatus `gorm:"index"`
	Payload     datatypes.JSON
	Attempts    int
	LastError   string
	DeliveredAt *time.Time `gorm:"index"`
	CreatedAt   time.Time
}
