package device_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sidequest/internal/db"
	"sidequest/internal/device"
	"sidequest/internal/migrate"
	"sidequest/internal/repo"
	"sidequest/internal/storage"
)

func newTestProvider(t *testing.T) device.Provider {
	t.Helper()
	dir := t.TempDir()
	if _, err := db.EnsureWorkspace(dir); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return device.Provider{KV: storage.SQLite{Repo: repo.Repo{DB: conn}}}
}

func TestGetOrCreateIsStable(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	first, err := p.GetOrCreate(ctx)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first == "" {
		t.Fatal("device id must not be empty")
	}
	second, err := p.GetOrCreate(ctx)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second != first {
		t.Fatalf("device id must be minted once: %q vs %q", first, second)
	}
}

func TestMintTokenCarriesDeviceSubject(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	id, err := p.GetOrCreate(ctx)
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	tok, err := p.MintToken(id, "secret", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})).
		ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) { return []byte("secret"), nil })
	if err != nil || !parsed.Valid {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != id {
		t.Fatalf("subject: %q, want %q", claims.Subject, id)
	}
	if claims.ExpiresAt == nil {
		t.Fatal("token must expire")
	}
}
