package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/melodex/melodex/internal/domain"
)

// GetRateLimit returns the tracked row for (api, endpoint), or nil when the
// pair is untracked.
func (s *Store) GetRateLimit(ctx context.Context, api, endpoint string) (*domain.RateLimit, error) {
	var rl domain.RateLimit
	err := s.pool.QueryRow(ctx, `
		SELECT api_name, endpoint, requests_remaining, requests_limit,
		       COALESCE(reset_at, to_timestamp(0)), last_response, updated_at
		FROM rate_limits
		WHERE api_name = $1 AND endpoint = $2`,
		api, endpoint).Scan(
		&rl.APIName, &rl.Endpoint, &rl.RequestsRemaining, &rl.RequestsLimit,
		&rl.ResetAt, &rl.LastResponse, &rl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rate limit: %w", err)
	}
	return &rl, nil
}

// TrackRateLimit upserts observed header values for (api, endpoint).
func (s *Store) TrackRateLimit(ctx context.Context, rl domain.RateLimit) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rate_limits (api_name, endpoint, requests_remaining, requests_limit, reset_at, last_response, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (api_name, endpoint) DO UPDATE
		SET requests_remaining = EXCLUDED.requests_remaining,
		    requests_limit = EXCLUDED.requests_limit,
		    reset_at = EXCLUDED.reset_at,
		    last_response = EXCLUDED.last_response,
		    updated_at = now()`,
		rl.APIName, rl.Endpoint, rl.RequestsRemaining, rl.RequestsLimit, rl.ResetAt, rl.LastResponse)
	if err != nil {
		return fmt.Errorf("failed to track rate limit: %w", err)
	}
	return nil
}

// ListRateLimits returns all tracked rate-limit rows.
func (s *Store) ListRateLimits(ctx context.Context) ([]domain.RateLimit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT api_name, endpoint, requests_remaining, requests_limit,
		       COALESCE(reset_at, to_timestamp(0)), last_response, updated_at
		FROM rate_limits
		ORDER BY api_name, endpoint`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate limits: %w", err)
	}
	defer rows.Close()

	var limits []domain.RateLimit
	for rows.Next() {
		var rl domain.RateLimit
		if err := rows.Scan(&rl.APIName, &rl.Endpoint, &rl.RequestsRemaining, &rl.RequestsLimit,
			&rl.ResetAt, &rl.LastResponse, &rl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rate limit: %w", err)
		}
		limits = append(limits, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rate limits: %w", err)
	}
	return limits, nil
}
