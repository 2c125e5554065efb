package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/gridpath/internal/leveldata"
)

// LevelRepository stores level declarations keyed by name.
type LevelRepository struct {
	pool *pgxpool.Pool
}

// NewLevelRepository creates a new LevelRepository.
func NewLevelRepository(pool *pgxpool.Pool) *LevelRepository {
	return &LevelRepository{pool: pool}
}

// LevelRow is a stored level without its source.
type LevelRow struct {
	Name        string
	Fingerprint string
	UpdatedAt   time.Time
}

// Save upserts a level. changed is false when the stored fingerprint already matches.
func (r *LevelRepository) Save(ctx context.Context, lvl *leveldata.Level) (changed bool, err error) {
	source, err := lvl.Marshal()
	if err != nil {
		return false, err
	}
	fingerprint, err := lvl.Fingerprint()
	if err != nil {
		return false, err
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO levels (name, fingerprint, source, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (name) DO UPDATE SET
		  fingerprint = EXCLUDED.fingerprint,
		  source = EXCLUDED.source,
		  updated_at = NOW()
		 WHERE levels.fingerprint <> EXCLUDED.fingerprint`,
		lvl.Name, fingerprint, string(source),
	)
	if err != nil {
		return false, fmt.Errorf("save level %s: %w", lvl.Name, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Load returns a stored level. Returns ErrLevelNotFound if it does not exist.
func (r *LevelRepository) Load(ctx context.Context, name string) (*leveldata.Level, error) {
	var source string
	err := r.pool.QueryRow(ctx,
		`SELECT source FROM levels WHERE name = $1`, name,
	).Scan(&source)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("load level %s: %w", name, ErrLevelNotFound)
		}
		return nil, fmt.Errorf("load level %s: %w", name, err)
	}

	lvl, err := leveldata.Parse([]byte(source))
	if err != nil {
		return nil, fmt.Errorf("decode stored level %s: %w", name, err)
	}
	return lvl, nil
}

// List returns all stored levels ordered by name.
func (r *LevelRepository) List(ctx context.Context) ([]LevelRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, fingerprint, updated_at FROM levels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query levels: %w", err)
	}
	defer rows.Close()

	var result []LevelRow
	for rows.Next() {
		var row LevelRow
		if err := rows.Scan(&row.Name, &row.Fingerprint, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
