// Package device provides the device identity used to attribute created
// missions. The id is minted once per workspace and kept in local storage.
package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sidequest/internal/storage"
)

// IDKey is the fixed storage slot for the device id.
const IDKey = "@sidequest/device_id"

// Provider mints and persists the device identity.
type Provider struct {
	KV  storage.KV
	Now func() time.Time
}

func (p Provider) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// GetOrCreate returns the stored device id, minting and persisting a new one
// when none exists yet.
func (p Provider) GetOrCreate(ctx context.Context) (string, error) {
	existing, err := p.KV.Get(ctx, IDKey)
	if err == nil && existing != "" {
		return existing, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("read device id: %w", err)
	}
	generated := uuid.New().String()
	if err := p.KV.Set(ctx, IDKey, generated); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return generated, nil
}

// MintToken signs a short-lived bearer token for the backend with the device
// id as subject.
func (p Provider) MintToken(deviceID, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := p.now()
	claims := jwt.RegisteredClaims{
		Subject:   deviceID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
