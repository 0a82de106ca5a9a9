package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) Store {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, r *Reading) error {
	query := `
		INSERT INTO sensor_readings (device_id, soil_moisture, temperature, humidity, light_level)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		r.DeviceID, r.SoilMoisture, r.Temperature, r.Humidity, r.LightLevel,
	).Scan(&r.ID, &r.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert sensor reading: %w", err)
	}

	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*Reading, error) {
	query := `
		SELECT id, device_id, soil_moisture, temperature, humidity, light_level, created_at
		FROM sensor_readings
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor readings: %w", err)
	}
	defer rows.Close()

	var readings []*Reading
	for rows.Next() {
		var r Reading
		err := rows.Scan(
			&r.ID, &r.DeviceID, &r.SoilMoisture, &r.Temperature,
			&r.Humidity, &r.LightLevel, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sensor reading: %w", err)
		}
		readings = append(readings, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sensor readings: %w", err)
	}

	return readings, nil
}

func (s *PostgresStore) DailyAverages(ctx context.Context, since time.Time) ([]*DailyAverage, error) {
	query := `
		SELECT to_char(created_at, 'YYYY-MM-DD') AS day,
		       AVG(soil_moisture), AVG(temperature), COUNT(*)
		FROM sensor_readings
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day
	`
	rows, err := s.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily averages: %w", err)
	}
	defer rows.Close()

	var stats []*DailyAverage
	for rows.Next() {
		var d DailyAverage
		if err := rows.Scan(&d.Date, &d.AvgSoil, &d.AvgTemp, &d.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily average: %w", err)
		}
		stats = append(stats, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily averages: %w", err)
	}

	return stats, nil
}

func (s *PostgresStore) HistoryLines(ctx context.Context, since time.Time, limit int) ([]string, error) {
	query := `
		SELECT to_char(created_at, 'YYYY-MM-DD'), soil_moisture, temperature
		FROM sensor_readings
		WHERE created_at >= $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor history: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var day string
		var soil int
		var temp float64
		if err := rows.Scan(&day, &soil, &temp); err != nil {
			return nil, fmt.Errorf("failed to scan sensor history: %w", err)
		}
		lines = append(lines, fmt.Sprintf("%s: Soil %d%%, Temp %.0fC", day, soil, temp))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sensor history: %w", err)
	}

	return lines, nil
}
