package seeder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"

	"github.com/vikiysara/sprout-backend/internal/auth"
	"github.com/vikiysara/sprout-backend/internal/plant"
)

const (
	TestDeviceKey = "test-device-key-12345"
	TestDeviceID  = "00000000-0000-0000-0000-000000000001"
)

// SeedTestDeviceKey registers a development device key for local use.
func SeedTestDeviceKey(ctx context.Context, store auth.Store) {
	h := sha256.New()
	h.Write([]byte(TestDeviceKey))
	keyHash := hex.EncodeToString(h.Sum(nil))

	key := &auth.DeviceKey{
		DeviceID: TestDeviceID,
		KeyHash:  keyHash,
		Active:   true,
	}

	err := store.Create(ctx, key)
	if err != nil {
		log.Printf("[Seeder] Device key may already exist, skipping: %v", err)
		return
	}
	log.Printf("[Seeder] Test device key created successfully")
	log.Printf("[Seeder] Key: %s", TestDeviceKey)
	log.Printf("[Seeder] DeviceID: %s", TestDeviceID)
}

// SeedDefaultProfile writes the default plant profile when none exists
// yet, so chat works before the app names the plant.
func SeedDefaultProfile(ctx context.Context, store plant.Store) {
	current, err := store.Get(ctx)
	if err != nil {
		log.Printf("[Seeder] Could not read plant profile: %v", err)
		return
	}
	if current.Name != plant.DefaultName || !current.UpdatedAt.IsZero() {
		return
	}

	if err := store.Save(ctx, plant.DefaultProfile()); err != nil {
		log.Printf("[Seeder] Could not seed plant profile: %v", err)
		return
	}
	log.Printf("[Seeder] Default plant profile created (%s the %s)", plant.DefaultName, plant.DefaultSpecies)
}
