package events_test

import (
	"context"
	"testing"
	"time"

	"sidequest/internal/db"
	"sidequest/internal/events"
	"sidequest/internal/migrate"
)

func newTestWriter(t *testing.T) events.Writer {
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
	return events.Writer{
		DB:  conn,
		Now: func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestAppendAndLatest(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	if err := w.Append(ctx, "mission.published", "mission", "m-1", "dev-1", events.EventPayload{"title": "x"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(ctx, "draft.saved", "draft", "mission-wizard-draft-v2", "", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	all, err := w.Latest(ctx, 10, "")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(all) != 2 || all[0].Type != "draft.saved" {
		t.Fatalf("newest first: %+v", all)
	}
	if all[0].TS != "2025-06-01T12:00:00Z" {
		t.Fatalf("ts: %q", all[0].TS)
	}

	published, err := w.Latest(ctx, 10, "mission.published")
	if err != nil {
		t.Fatalf("latest filtered: %v", err)
	}
	if len(published) != 1 || published[0].DeviceID != "dev-1" {
		t.Fatalf("type filter: %+v", published)
	}
}
