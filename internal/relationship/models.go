// Package relationship stores the referrer→referee graph. Each referee
// has at most one direct referrer, decided first-wins at conversion
// time; later attribution attempts for the same referee lose.
package relationship

import (
	"time"

	domain "refward/pkg/domain"
)

// Status is the lifecycle of a relationship.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Relationship is one referrer→referee edge. Level is always 1 for a
// direct edge; indirect attribution is derived by walking edges, never
// stored.
type Relationship struct {
	ID         domain.RelationshipID `json:"id"`
	ReferrerID domain.UserID         `json:"referrer_id"`
	RefereeID  domain.UserID         `json:"referee_id"`
	CodeID     domain.CodeID         `json:"code_id"`
	TrackingID domain.TrackingID     `json:"tracking_id"`
	Level      int                   `json:"level"`
	Status     Status                `json:"status"`
	CreatedAt  time.Time             `json:"created_at"`
}
