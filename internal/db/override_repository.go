package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/gridpath/internal/grid"
)

// OverrideRepository stores runtime walkability changes per level.
type OverrideRepository struct {
	pool *pgxpool.Pool
}

// NewOverrideRepository creates a new OverrideRepository.
func NewOverrideRepository(pool *pgxpool.Pool) *OverrideRepository {
	return &OverrideRepository{pool: pool}
}

// Override is a cell whose walkability was changed after setup.
type Override struct {
	Coord    grid.Coord
	Walkable bool
}

// Set records the walkability of a cell, replacing any previous override.
func (r *OverrideRepository) Set(ctx context.Context, level string, c grid.Coord, walkable bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO walkability_overrides (level_name, x, z, floor, walkable)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (level_name, x, z, floor) DO UPDATE SET walkable = $5`,
		level, c.X, c.Z, c.Floor, walkable,
	)
	if err != nil {
		return fmt.Errorf("set override %s %s: %w", level, c, err)
	}
	return nil
}

// Clear removes the override of a cell.
func (r *OverrideRepository) Clear(ctx context.Context, level string, c grid.Coord) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM walkability_overrides
		 WHERE level_name = $1 AND x = $2 AND z = $3 AND floor = $4`,
		level, c.X, c.Z, c.Floor,
	)
	if err != nil {
		return fmt.Errorf("clear override %s %s: %w", level, c, err)
	}
	return nil
}

// LoadAll returns every override of a level ordered by floor, x, z.
func (r *OverrideRepository) LoadAll(ctx context.Context, level string) ([]Override, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT x, z, floor, walkable FROM walkability_overrides
		 WHERE level_name = $1 ORDER BY floor, x, z`, level)
	if err != nil {
		return nil, fmt.Errorf("query overrides %s: %w", level, err)
	}
	defer rows.Close()

	var result []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.Coord.X, &o.Coord.Z, &o.Coord.Floor, &o.Walkable); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}
