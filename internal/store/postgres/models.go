package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"warehousesim/internal/duration"
	"warehousesim/internal/store"

	"github.com/lib/pq"
)

func (s *Store) GetModelParams(ctx context.Context, category string) (*store.ModelParams, error) {
	query := `
		SELECT category, weights, range_min, range_max, samples, trained_at
		FROM model_params
		WHERE category = $1
	`

	var (
		m                  store.ModelParams
		weights, lows, his []float64
	)
	err := s.db.QueryRowContext(ctx, query, category).Scan(
		&m.Category, pq.Array(&weights), pq.Array(&lows), pq.Array(&his), &m.Samples, &m.TrainedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model %s: %w", category, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if len(weights) != duration.NumFeatures || len(lows) != duration.NumFeatures || len(his) != duration.NumFeatures {
		return nil, fmt.Errorf("model %s: expected %d features, got %d weights and %d/%d ranges",
			category, duration.NumFeatures, len(weights), len(lows), len(his))
	}
	for i := range duration.NumFeatures {
		m.Params.Weights[i] = weights[i]
		m.Params.Ranges[i] = duration.Range{Min: lows[i], Max: his[i]}
	}
	return &m, nil
}

// SaveModelParams upserts the parameters of a category.
func (s *Store) SaveModelParams(ctx context.Context, params *store.ModelParams) error {
	query := `
		INSERT INTO model_params (category, weights, range_min, range_max, samples, trained_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (category) DO UPDATE
		SET weights = EXCLUDED.weights,
			range_min = EXCLUDED.range_min,
			range_max = EXCLUDED.range_max,
			samples = EXCLUDED.samples,
			trained_at = EXCLUDED.trained_at
	`

	weights := params.Params.Weights[:]
	lows := make([]float64, duration.NumFeatures)
	his := make([]float64, duration.NumFeatures)
	for i, r := range params.Params.Ranges {
		lows[i], his[i] = r.Min, r.Max
	}

	trainedAt := params.TrainedAt
	if trainedAt.IsZero() {
		trainedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		params.Category, pq.Array(weights), pq.Array(lows), pq.Array(his), params.Samples, trainedAt,
	)
	return err
}

// ListCompletedPicks reads finished picks of picker zones. The category of a
// zone is derived from its name, so filtering happens after the scan.
func (s *Store) ListCompletedPicks(ctx context.Context, category string, limit int) ([]store.CompletedPick, error) {
	query := `
		SELECT p.zone_id, z.name, p.distance, p.pack_amount, p.lines_amount, p.weight, p.volume, p.avg_height,
			EXTRACT(EPOCH FROM (p.end_time - p.start_time))
		FROM picker_tasks p
		JOIN zones z ON z.id = p.zone_id
		WHERE z.is_picker_zone AND p.start_time IS NOT NULL AND p.end_time IS NOT NULL AND p.end_time >= p.start_time
		ORDER BY p.end_time DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var picks []store.CompletedPick
	for rows.Next() {
		var (
			c       store.CompletedPick
			name    string
			seconds float64
		)
		f := &c.Features
		if err := rows.Scan(&c.ZoneID, &name,
			&f.Distance, &f.PackAmount, &f.Lines, &f.Weight, &f.Volume, &f.AvgHeight, &seconds); err != nil {
			return nil, err
		}
		if (store.Zone{Name: name}).Category() != category {
			continue
		}
		c.Duration = time.Duration(seconds * float64(time.Second))
		picks = append(picks, c)
		if limit > 0 && len(picks) == limit {
			break
		}
	}
	return picks, rows.Err()
}
