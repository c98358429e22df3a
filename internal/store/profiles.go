package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/purplemerit/leadmesh/internal/models"
)

// ProfileStore is the long-term tier: durable lead profiles keyed by lead ID.
type ProfileStore struct {
	db *DB
}

func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Update upserts a profile. A new profile starts with interactions = 1.
// An existing one merges preferences (new keys overwrite, unspecified keys
// persist), replaces the RFM score, and increments the interaction counter.
func (s *ProfileStore) Update(leadID string, preferences map[string]any, rfmScore float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin profile update: %w", err)
	}
	defer tx.Rollback()

	var prefsJSON string
	var interactions int
	err = tx.QueryRow(
		`SELECT preferences, interactions FROM lead_profiles WHERE lead_id = ?`, leadID,
	).Scan(&prefsJSON, &interactions)

	now := time.Now().Unix()

	switch {
	case err == sql.ErrNoRows:
		merged, mErr := json.Marshal(nonNilPrefs(preferences))
		if mErr != nil {
			return fmt.Errorf("marshal preferences: %w", mErr)
		}
		_, err = tx.Exec(`
			INSERT INTO lead_profiles (lead_id, preferences, rfm_score, interactions, updated_at)
			VALUES (?, ?, ?, 1, ?)
		`, leadID, string(merged), rfmScore, now)
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
	case err != nil:
		return fmt.Errorf("load profile: %w", err)
	default:
		existing := map[string]any{}
		if uErr := json.Unmarshal([]byte(prefsJSON), &existing); uErr != nil {
			return fmt.Errorf("decode stored preferences: %w", uErr)
		}
		for k, v := range preferences {
			existing[k] = v
		}
		merged, mErr := json.Marshal(existing)
		if mErr != nil {
			return fmt.Errorf("marshal preferences: %w", mErr)
		}
		_, err = tx.Exec(`
			UPDATE lead_profiles
			SET preferences = ?, rfm_score = ?, interactions = interactions + 1, updated_at = ?
			WHERE lead_id = ?
		`, string(merged), rfmScore, now, leadID)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
	}

	return tx.Commit()
}

// Get fetches a profile by lead ID. Returns nil when absent; reads never
// create profiles.
func (s *ProfileStore) Get(leadID string) (*models.LeadProfile, error) {
	var p models.LeadProfile
	var prefsJSON string
	err := s.db.QueryRow(`
		SELECT lead_id, preferences, rfm_score, interactions, updated_at
		FROM lead_profiles WHERE lead_id = ?
	`, leadID).Scan(&p.LeadID, &prefsJSON, &p.RFMScore, &p.Interactions, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if err := json.Unmarshal([]byte(prefsJSON), &p.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return &p, nil
}

// Count returns the number of stored profiles.
func (s *ProfileStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM lead_profiles`).Scan(&n)
	return n, err
}

func nonNilPrefs(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}
