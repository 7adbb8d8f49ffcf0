package rate

import (
	"context"
	"time"
)

// Seasonality is the seasonal demand multiplier for a lane and month.
type Seasonality struct {
	Factor     float64 `json:"factor"`
	Confidence float64 `json:"confidence"`
}

// NeutralSeasonality is substituted whenever a provider cannot answer.
var NeutralSeasonality = Seasonality{Factor: 1.0, Confidence: 0}

// SeasonalityProvider supplies seasonal factors. Implementations may fail;
// the engine substitutes NeutralSeasonality.
type SeasonalityProvider interface {
	SeasonalityFactor(ctx context.Context, origin, destination Region, month time.Month) (Seasonality, error)
}

// FixedSeasonality returns the same factor for every lane and month.
type FixedSeasonality Seasonality

func (f FixedSeasonality) SeasonalityFactor(context.Context, Region, Region, time.Month) (Seasonality, error) {
	return Seasonality(f), nil
}
