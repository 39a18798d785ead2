// Package store persists users, score history, and alert decisions in
// Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/breathescope/breathescope/pkg/notify"
	"github.com/breathescope/breathescope/pkg/score"
)

// Service provides score persistence backed by Postgres.
type Service struct {
	db *sql.DB
}

// NewService creates a new store Service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// UserRow represents a user record from the database.
type UserRow struct {
	ID          string
	DisplayName string
	HomeLat     float64
	HomeLon     float64
	Profile     json.RawMessage
	CreatedAt   time.Time
}

// TriggerEventRow represents a stored alert decision.
type TriggerEventRow struct {
	ID          string
	UserID      string
	EventType   string
	Severity    string
	ChangeValue float64
	SnapshotTS  time.Time
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// UpsertUser creates or updates a user and their health profile.
func (s *Service) UpsertUser(ctx context.Context, user *score.User, profile *score.HealthProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, home_lat, home_lon, profile)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		   SET display_name = EXCLUDED.display_name,
		       home_lat = EXCLUDED.home_lat,
		       home_lon = EXCLUDED.home_lon,
		       profile = EXCLUDED.profile`,
		user.ID, user.DisplayName, user.HomeLatitude, user.HomeLongitude, raw,
	)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	return nil
}

// GetUser retrieves a user and their health profile by ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*score.User, *score.HealthProfile, error) {
	row := UserRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, home_lat, home_lon, profile, created_at FROM users WHERE id = $1`,
		userID,
	).Scan(&row.ID, &row.DisplayName, &row.HomeLat, &row.HomeLon, &row.Profile, &row.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("get user %s: %w", userID, err)
	}

	profile := &score.HealthProfile{}
	if err := json.Unmarshal(row.Profile, profile); err != nil {
		return nil, nil, fmt.Errorf("decode profile for %s: %w", userID, err)
	}
	return &score.User{
		ID:            row.ID,
		DisplayName:   row.DisplayName,
		HomeLatitude:  row.HomeLat,
		HomeLongitude: row.HomeLon,
	}, profile, nil
}

// ListUsers returns all registered user IDs, used by the daemon to restart
// monitoring after a restart.
func (s *Service) ListUsers(ctx context.Context) ([]score.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []score.User
	for rows.Next() {
		var u score.User
		if err := rows.Scan(&u.ID, &u.DisplayName); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SaveSnapshot appends a snapshot to the user's score history.
func (s *Service) SaveSnapshot(ctx context.Context, snap *score.Snapshot) error {
	components, factors, recs, err := marshalSnapshotParts(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO score_snapshots
		   (user_id, ts, overall, components, risk_category, risk_level, factors, recommendations)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snap.UserID, snap.Timestamp, snap.Overall, components,
		string(snap.RiskCategory), snap.RiskLevel, factors, recs,
	)
	if err != nil {
		return fmt.Errorf("save snapshot for %s: %w", snap.UserID, err)
	}
	return nil
}

// ReplaceLatest overwrites the most recent snapshot for the user. Used when
// a recommendation lifecycle event or data merge produces a new version of
// the current snapshot.
func (s *Service) ReplaceLatest(ctx context.Context, snap *score.Snapshot) error {
	components, factors, recs, err := marshalSnapshotParts(snap)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE score_snapshots
		 SET ts = $2, overall = $3, components = $4, risk_category = $5,
		     risk_level = $6, factors = $7, recommendations = $8
		 WHERE user_id = $1
		   AND ts = (SELECT max(ts) FROM score_snapshots WHERE user_id = $1)`,
		snap.UserID, snap.Timestamp, snap.Overall, components,
		string(snap.RiskCategory), snap.RiskLevel, factors, recs,
	)
	if err != nil {
		return fmt.Errorf("replace latest snapshot for %s: %w", snap.UserID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// No history yet: fall back to an append so the update is not lost.
		return s.SaveSnapshot(ctx, snap)
	}
	return nil
}

// LoadHistory returns the user's snapshots within [start, end], ascending
// by timestamp.
func (s *Service) LoadHistory(ctx context.Context, userID string, start, end time.Time) ([]score.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, ts, overall, components, risk_category, risk_level, factors, recommendations
		 FROM score_snapshots
		 WHERE user_id = $1 AND ts >= $2 AND ts <= $3
		 ORDER BY ts ASC`,
		userID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", userID, err)
	}
	defer rows.Close()

	var history []score.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *snap)
	}
	return history, rows.Err()
}

// LatestSnapshot returns the most recent snapshot for a user, or
// sql.ErrNoRows wrapped when the user has no history.
func (s *Service) LatestSnapshot(ctx context.Context, userID string) (*score.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, ts, overall, components, risk_category, risk_level, factors, recommendations
		 FROM score_snapshots WHERE user_id = $1
		 ORDER BY ts DESC LIMIT 1`,
		userID,
	)
	snap, err := scanSnapshot(row)
	if err != nil {
		return nil, fmt.Errorf("latest snapshot for %s: %w", userID, err)
	}
	return snap, nil
}

// SaveTriggerEvents records alert decisions for later delivery.
func (s *Service) SaveTriggerEvents(ctx context.Context, userID string, events []notify.TriggerEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trigger event tx: %w", err)
	}
	defer tx.Rollback()

	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal trigger event: %w", err)
		}
		var ts time.Time
		if evt.Snapshot != nil {
			ts = evt.Snapshot.Timestamp
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trigger_events (user_id, event_type, severity, change_value, snapshot_ts, payload)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, string(evt.Type), string(evt.Severity), evt.ChangeValue, ts, payload,
		); err != nil {
			return fmt.Errorf("save trigger event for %s: %w", userID, err)
		}
	}
	return tx.Commit()
}

// ListTriggerEvents returns the newest alert decisions for a user.
func (s *Service) ListTriggerEvents(ctx context.Context, userID string, limit int) ([]TriggerEventRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, event_type, severity, change_value, snapshot_ts, payload, created_at
		 FROM trigger_events WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list trigger events for %s: %w", userID, err)
	}
	defer rows.Close()

	var events []TriggerEventRow
	for rows.Next() {
		var e TriggerEventRow
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &e.Severity,
			&e.ChangeValue, &e.SnapshotTS, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trigger event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// PruneHistory deletes snapshots older than the cutoff. Returns the number
// of rows removed.
func (s *Service) PruneHistory(ctx context.Context, userID string, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM score_snapshots WHERE user_id = $1 AND ts < $2`,
		userID, before,
	)
	if err != nil {
		return 0, fmt.Errorf("prune history for %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune history rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*score.Snapshot, error) {
	var (
		snap       score.Snapshot
		category   string
		components []byte
		factors    []byte
		recs       []byte
	)
	if err := row.Scan(&snap.UserID, &snap.Timestamp, &snap.Overall, &components,
		&category, &snap.RiskLevel, &factors, &recs); err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.RiskCategory = score.RiskCategory(category)
	if err := json.Unmarshal(components, &snap.Components); err != nil {
		return nil, fmt.Errorf("decode components: %w", err)
	}
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &snap.ContributingFactors); err != nil {
			return nil, fmt.Errorf("decode factors: %w", err)
		}
	}
	if len(recs) > 0 {
		if err := json.Unmarshal(recs, &snap.Recommendations); err != nil {
			return nil, fmt.Errorf("decode recommendations: %w", err)
		}
	}
	return &snap, nil
}

func marshalSnapshotParts(snap *score.Snapshot) (components, factors, recs []byte, err error) {
	if components, err = json.Marshal(snap.Components); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal components: %w", err)
	}
	if factors, err = json.Marshal(snap.ContributingFactors); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal factors: %w", err)
	}
	if recs, err = json.Marshal(snap.Recommendations); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal recommendations: %w", err)
	}
	return components, factors, recs, nil
}
