package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrKeyNotFound = errors.New("device key not found")

// DeviceKey authenticates one plant device (or the companion app) to
// the backend.
type DeviceKey struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	KeyHash   string    `json:"key_hash"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis
func (k *DeviceKey) MarshalBinary() ([]byte, error) {
	return json.Marshal(k)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Redis
func (k *DeviceKey) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, k)
}

type Store interface {
	GetByKey(ctx context.Context, key string) (*DeviceKey, error)
	Create(ctx context.Context, key *DeviceKey) error
	Revoke(ctx context.Context, keyID string) error
}

type Middleware func(next http.Handler) http.Handler

type contextKey string

const (
	deviceIDKey  contextKey = "device_id"
	requestIDKey contextKey = "request_id"
)

// NewMiddleware authenticates requests with a Bearer device key,
// caching verified keys in Redis for five minutes.
func NewMiddleware(store Store, cache *redis.Client) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			requestID := uuid.New().String()
			ctx = context.WithValue(ctx, requestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "Unauthorized: missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}
			key := strings.TrimPrefix(authHeader, "Bearer ")

			redisKey := fmt.Sprintf("auth:%s", hashKey(key))

			var cached DeviceKey
			err := cache.Get(ctx, redisKey).Scan(&cached)
			if err == nil {
				ctx = context.WithValue(ctx, deviceIDKey, cached.DeviceID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			} else if err != redis.Nil {
				log.Printf("auth: redis error: %v", err)
			}

			deviceKey, err := store.GetByKey(ctx, key)
			if err != nil {
				if errors.Is(err, ErrKeyNotFound) {
					http.Error(w, "Unauthorized: invalid device key", http.StatusUnauthorized)
					return
				}
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			_ = cache.Set(ctx, redisKey, deviceKey, 5*time.Minute).Err()

			ctx = context.WithValue(ctx, deviceIDKey, deviceKey.DeviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hashKey(key string) string {
	h := sha256.New()
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

// Helpers to extract from context
func GetDeviceID(ctx context.Context) string {
	if id, ok := ctx.Value(deviceIDKey).(string); ok {
		return id
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Helpers for testing
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey, deviceID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
