// Package history defines stored freight rate calculations.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RecentLimit is the number of calculations returned by the history listing.
const RecentLimit = 100

// Record is one successful calculation.
type Record struct {
	ID                uuid.UUID `json:"id"`
	OriginPortID      string    `json:"origin_port_id"`
	DestinationPortID string    `json:"destination_port_id"`
	ContainerType     string    `json:"container_type"`
	Weight            float64   `json:"weight"`
	Rate              float64   `json:"rate"`
	Email             *string   `json:"email,omitempty"`
	Sources           []string  `json:"sources"`
	CreatedAt         time.Time `json:"created_at"`
}

// Store persists and lists calculations.
type Store interface {
	SaveCalculation(ctx context.Context, rec Record) error
	RecentCalculations(ctx context.Context, limit int) ([]Record, error)
}
