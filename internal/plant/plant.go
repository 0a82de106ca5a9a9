package plant

import (
	"context"
	"encoding/json"
	"time"
)

const (
	DefaultName    = "Sprout"
	DefaultSpecies = "Plant"
)

// Profile describes the single plant this backend fronts.
type Profile struct {
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis
func (p *Profile) MarshalBinary() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Redis
func (p *Profile) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, p)
}

// DefaultProfile is what callers get before anyone has named the plant.
func DefaultProfile() Profile {
	return Profile{Name: DefaultName, Species: DefaultSpecies}
}

type Store interface {
	// Get returns the current profile, or the default when none is saved.
	Get(ctx context.Context) (Profile, error)
	Save(ctx context.Context, p Profile) error
}
