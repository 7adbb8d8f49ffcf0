package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"freightrate/internal/apperrors"
	"freightrate/internal/history"
	"freightrate/internal/rate"
)

// Store is the Postgres-backed region store, seasonality provider and
// calculation history.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

var (
	_ rate.RegionStore         = (*Store)(nil)
	_ rate.SeasonalityProvider = (*Store)(nil)
	_ history.Store            = (*Store)(nil)
)

func (s *Store) LookupRegion(ctx context.Context, portID string) (string, bool, error) {
	var region *string
	err := s.pool.QueryRow(ctx, `SELECT region FROM ports WHERE id = $1`, portID).Scan(&region)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, apperrors.Storage("lookup port region", err)
	}
	if region == nil || strings.TrimSpace(*region) == "" {
		return "", false, nil
	}
	return *region, true, nil
}

// SeasonalityFactor prefers the exact lane and falls back to the origin
// region's "Unknown" destination row. Lanes without data are neutral.
func (s *Store) SeasonalityFactor(ctx context.Context, origin, destination rate.Region, month time.Month) (rate.Seasonality, error) {
	var out rate.Seasonality
	err := s.pool.QueryRow(ctx, `
        SELECT factor, confidence
        FROM seasonality_factors
        WHERE origin_region = $1
          AND destination_region IN ($2, 'Unknown')
          AND month = $3
        ORDER BY (destination_region = $2) DESC
        LIMIT 1
    `, origin.String(), destination.String(), int(month)).Scan(&out.Factor, &out.Confidence)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rate.NeutralSeasonality, nil
		}
		return rate.Seasonality{}, apperrors.Storage("lookup seasonality factor", err)
	}
	return out, nil
}

func (s *Store) SaveCalculation(ctx context.Context, rec history.Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Sources == nil {
		rec.Sources = []string{}
	}
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return apperrors.Wrap(apperrors.TypeParsing, "encode index sources", err)
	}

	_, err = s.pool.Exec(ctx, `
        INSERT INTO calculation_history (
            id, origin_port_id, destination_port_id, container_type,
            weight, rate, email, sources, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
    `,
		rec.ID,
		rec.OriginPortID,
		rec.DestinationPortID,
		rec.ContainerType,
		rec.Weight,
		rec.Rate,
		rec.Email,
		string(sources),
		rec.CreatedAt,
	)
	if err != nil {
		// A retried request reusing the same id is already stored.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil
		}
		return apperrors.Storage("insert calculation history", err)
	}
	return nil
}

func (s *Store) RecentCalculations(ctx context.Context, limit int) ([]history.Record, error) {
	if limit <= 0 || limit > history.RecentLimit {
		limit = history.RecentLimit
	}
	rows, err := s.pool.Query(ctx, `
        SELECT id, origin_port_id, destination_port_id, container_type,
               weight, rate, email, sources, created_at
        FROM calculation_history
        ORDER BY created_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, apperrors.Storage("list calculation history", err)
	}
	defer rows.Close()

	out := []history.Record{}
	for rows.Next() {
		var (
			rec     history.Record
			sources []byte
		)
		if err := rows.Scan(&rec.ID, &rec.OriginPortID, &rec.DestinationPortID, &rec.ContainerType,
			&rec.Weight, &rec.Rate, &rec.Email, &sources, &rec.CreatedAt); err != nil {
			return nil, apperrors.Storage("scan calculation history", err)
		}
		rec.Sources = []string{}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &rec.Sources); err != nil {
				return nil, apperrors.Wrap(apperrors.TypeParsing, "decode index sources", err)
			}
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("iterate calculation history", err)
	}
	return out, nil
}
