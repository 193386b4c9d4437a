package models

import (
	"time"

	"github.com/google/uuid"
)

type ResolutionAuditLog struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CandidateID uuid.UUID       `gorm:"index"`
	FromStatus  CandidateStatus `json:"from_status"`
	ToStatus    CandidateStatus `json:"to_status"`
	Score       float64
	PerformedBy string // "engine", "sweeper" or a reviewer identity
	Reason      string
	CreatedAt   time.Time
}
