package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"sidequest/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// GetKV reads a value from the key-value slot table.
func (r Repo) GetKV(ctx context.Context, key string) (string, error) {
	var value string
	err := r.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetKV upserts a key-value slot.
func (r Repo) SetKV(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO kv(key,value,updated_at) VALUES (?,?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, now)
	return err
}

// DeleteKV removes a key-value slot. Missing keys are not an error.
func (r Repo) DeleteKV(ctx context.Context, key string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, key)
	return err
}

func (r Repo) InsertMission(ctx context.Context, m domain.Mission) error {
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO missions(id,owner_device_id,title,description,reward,location,date,tags_json,status,created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.ID, nullable(m.OwnerDeviceID), m.Title, nullable(m.Description), nullable(m.Reward),
		nullable(m.Location), nullable(m.Date), string(tags), m.Status, m.CreatedAt)
	return err
}

func (r Repo) GetMission(ctx context.Context, id string) (domain.Mission, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id,COALESCE(owner_device_id,''),title,COALESCE(description,''),COALESCE(reward,''),
		        COALESCE(location,''),COALESCE(date,''),tags_json,status,created_at
		 FROM missions WHERE id=?`, id)
	return scanMission(row)
}

// ListMissions returns missions newest first, optionally filtered by tag.
func (r Repo) ListMissions(ctx context.Context, tag string) ([]domain.Mission, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,COALESCE(owner_device_id,''),title,COALESCE(description,''),COALESCE(reward,''),
		        COALESCE(location,''),COALESCE(date,''),tags_json,status,created_at
		 FROM missions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Mission
	for rows.Next() {
		var m domain.Mission
		var tagsJSON string
		if err := rows.Scan(&m.ID, &m.OwnerDeviceID, &m.Title, &m.Description, &m.Reward,
			&m.Location, &m.Date, &tagsJSON, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
			m.Tags = nil
		}
		if tag != "" && !contains(m.Tags, tag) {
			continue
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func scanMission(row *sql.Row) (domain.Mission, error) {
	var m domain.Mission
	var tagsJSON string
	err := row.Scan(&m.ID, &m.OwnerDeviceID, &m.Title, &m.Description, &m.Reward,
		&m.Location, &m.Date, &tagsJSON, &m.Status, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		m.Tags = nil
	}
	return m, nil
}

func contains(in []string, want string) bool {
	for _, s := range in {
		if s == want {
			return true
		}
	}
	return false
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
