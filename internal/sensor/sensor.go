package sensor

import (
	"context"
	"time"
)

// Reading is one telemetry sample reported by the plant hardware.
type Reading struct {
	ID           string    `json:"id,omitempty"`
	DeviceID     string    `json:"device_id,omitempty"`
	SoilMoisture int       `json:"soil_moisture"`
	Temperature  float64   `json:"temperature"`
	Humidity     int       `json:"humidity"`
	LightLevel   int       `json:"light_level"`
	CreatedAt    time.Time `json:"timestamp,omitempty"`
}

// DailyAverage is one aggregated row for the dashboard chart.
type DailyAverage struct {
	Date    string  `json:"date"`
	AvgSoil float64 `json:"avg_soil"`
	AvgTemp float64 `json:"avg_temp"`
	Count   int     `json:"-"`
}

type Store interface {
	Insert(ctx context.Context, r *Reading) error
	Recent(ctx context.Context, limit int) ([]*Reading, error)
	DailyAverages(ctx context.Context, since time.Time) ([]*DailyAverage, error)
	// HistoryLines returns compact per-reading summaries for model
	// context, oldest first, capped to keep prompts small.
	HistoryLines(ctx context.Context, since time.Time, limit int) ([]string, error)
}
