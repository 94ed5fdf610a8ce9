package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"sidequest/internal/db"
	"sidequest/internal/device"
	"sidequest/internal/domain"
	"sidequest/internal/events"
	"sidequest/internal/migrate"
	"sidequest/internal/repo"
	"sidequest/internal/storage"
	missionsdk "sidequest/sdk/go"
)

const testSecret = "test-secret"

type testServer struct {
	URL   string
	Token string
	close func()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}

	p := device.Provider{KV: storage.SQLite{Repo: r}}
	deviceID, err := p.GetOrCreate(context.Background())
	if err != nil {
		t.Fatalf("device id: %v", err)
	}
	token, err := p.MintToken(deviceID, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	handler, err := New(Config{
		Repo:   r,
		Events: events.Writer{DB: conn},
		Auth:   AuthConfig{JWTSecret: testSecret},
		Now:    func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:   "http://" + ln.Addr().String(),
		Token: token,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t)
	res, err := http.Get(srv.URL + "/v0/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status: %d", res.StatusCode)
	}
}

func TestMissionsRequireBearer(t *testing.T) {
	srv := newTestServer(t)
	res, err := http.Get(srv.URL + "/v0/missions")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
	body, _ := io.ReadAll(res.Body)
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, body)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("error code: %q", envelope.Error.Code)
	}
}

func TestMissionRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	client := missionsdk.New(srv.URL, srv.Token)
	ctx := context.Background()

	created, err := client.CreateMission(ctx, domain.MissionInput{
		Title:    "Ritiro pacco in centro",
		Reward:   "14 € · Normale",
		Location: "Via Roma 5",
		Tags:     []string{"Ritiro pacco", "Consegna"},
	}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.Status != "open" {
		t.Fatalf("created mission: %+v", created)
	}
	if created.OwnerDeviceID == "" {
		t.Fatal("owner must come from the token subject")
	}

	fetched, err := client.GetMission(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Title != "Ritiro pacco in centro" {
		t.Fatalf("fetched title: %q", fetched.Title)
	}

	byTag, err := client.ListMissions(ctx, "Consegna")
	if err != nil {
		t.Fatalf("list by tag: %v", err)
	}
	if len(byTag) != 1 {
		t.Fatalf("tag filter: got %d missions", len(byTag))
	}
	none, err := client.ListMissions(ctx, "Giardinaggio")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("unexpected tag match: %v", none)
	}

	evts, err := client.Events(ctx, 10, "mission.created")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evts) != 1 || evts[0].EntityID != created.ID {
		t.Fatalf("mission.created event: %+v", evts)
	}
}

func TestCreateMissionValidation(t *testing.T) {
	srv := newTestServer(t)
	client := missionsdk.New(srv.URL, srv.Token)

	_, err := client.CreateMission(context.Background(), domain.MissionInput{Title: "   "}, "")
	var apiErr *missionsdk.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", apiErr.StatusCode)
	}
}

func TestGetMissionNotFound(t *testing.T) {
	srv := newTestServer(t)
	client := missionsdk.New(srv.URL, srv.Token)

	_, err := client.GetMission(context.Background(), "missing")
	var apiErr *missionsdk.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("status: %d", apiErr.StatusCode)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	srv := newTestServer(t)
	client := missionsdk.New(srv.URL, "not-a-token")

	_, err := client.ListMissions(context.Background(), "")
	var apiErr *missionsdk.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status: %d", apiErr.StatusCode)
	}
}
