package plant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// The backend tracks exactly one plant, stored under a fixed row key.
const currentPlantID = "current"

const cacheKey = "plant:profile:current"
const cacheTTL = 5 * time.Minute

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists the profile in Postgres with a Redis
// read-through cache in front, invalidated on save.
type PostgresStore struct {
	db    DB
	cache *redis.Client
}

func NewPostgresStore(db DB, cache *redis.Client) Store {
	return &PostgresStore{db: db, cache: cache}
}

func (s *PostgresStore) Get(ctx context.Context) (Profile, error) {
	if s.cache != nil {
		var cached Profile
		err := s.cache.Get(ctx, cacheKey).Scan(&cached)
		if err == nil {
			return cached, nil
		} else if err != redis.Nil {
			log.Printf("plant: redis error: %v", err)
		}
	}

	query := `
		SELECT name, species, updated_at
		FROM plant_profiles
		WHERE id = $1
	`
	var p Profile
	err := s.db.QueryRow(ctx, query, currentPlantID).Scan(&p.Name, &p.Species, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultProfile(), nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load plant profile: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, &p, cacheTTL).Err()
	}

	return p, nil
}

func (s *PostgresStore) Save(ctx context.Context, p Profile) error {
	query := `
		INSERT INTO plant_profiles (id, name, species, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, species = EXCLUDED.species, updated_at = now()
	`
	if _, err := s.db.Exec(ctx, query, currentPlantID, p.Name, p.Species); err != nil {
		return fmt.Errorf("failed to save plant profile: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Del(ctx, cacheKey).Err()
	}

	return nil
}
