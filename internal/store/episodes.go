package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/purplemerit/leadmesh/internal/models"
)

// DefaultEpisodeCapacity bounds the episodic tier.
const DefaultEpisodeCapacity = 1000

// EpisodeStore is the episodic tier: captured interaction patterns ranked by
// outcome score. Eviction is score-based, not time-based.
type EpisodeStore struct {
	db       *DB
	capacity int
}

// NewEpisodeStore creates an episode store with the given capacity bound.
// capacity <= 0 falls back to DefaultEpisodeCapacity.
func NewEpisodeStore(db *DB, capacity int) *EpisodeStore {
	if capacity <= 0 {
		capacity = DefaultEpisodeCapacity
	}
	return &EpisodeStore{db: db, capacity: capacity}
}

// Append inserts one episode and enforces the capacity bound in the same
// transaction, so concurrent appends cannot leave the store over capacity.
// When evicting, lower outcome scores go first; ties keep the earlier insert.
func (s *EpisodeStore) Append(scenario string, actions []map[string]any, outcomeScore float64, notes string) (string, error) {
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("marshal actions: %w", err)
	}

	id := uuid.New().String()
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin episode append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO episodes (id, scenario, actions, outcome_score, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, scenario, string(actionsJSON), outcomeScore, notes, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("insert episode: %w", err)
	}

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM episodes`).Scan(&count); err != nil {
		return "", fmt.Errorf("count episodes: %w", err)
	}
	if count > s.capacity {
		_, err = tx.Exec(`
			DELETE FROM episodes WHERE seq NOT IN (
				SELECT seq FROM episodes ORDER BY outcome_score DESC, seq ASC LIMIT ?
			)
		`, s.capacity)
		if err != nil {
			return "", fmt.Errorf("evict episodes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit episode append: %w", err)
	}
	return id, nil
}

// Query returns up to topK episodes whose scenario contains the fragment
// (case-insensitive), ranked by outcome score descending. An empty fragment
// matches everything.
func (s *EpisodeStore) Query(scenarioFragment string, topK int) ([]models.Episode, error) {
	if topK <= 0 {
		topK = 10
	}
	rows, err := s.db.Query(`
		SELECT id, scenario, actions, outcome_score, notes, created_at
		FROM episodes
		WHERE instr(lower(scenario), lower(?)) > 0 OR ? = ''
		ORDER BY outcome_score DESC, seq ASC
		LIMIT ?
	`, scenarioFragment, scenarioFragment, topK)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	return scanEpisodes(rows)
}

// GetByID fetches a single episode. Returns nil when absent.
func (s *EpisodeStore) GetByID(id string) (*models.Episode, error) {
	rows, err := s.db.Query(`
		SELECT id, scenario, actions, outcome_score, notes, created_at
		FROM episodes WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	defer rows.Close()

	eps, err := scanEpisodes(rows)
	if err != nil {
		return nil, err
	}
	if len(eps) == 0 {
		return nil, nil
	}
	return &eps[0], nil
}

// Count returns the number of stored episodes.
func (s *EpisodeStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM episodes`).Scan(&n)
	return n, err
}

func scanEpisodes(rows *sql.Rows) ([]models.Episode, error) {
	var out []models.Episode
	for rows.Next() {
		var e models.Episode
		var actionsJSON, notes string
		if err := rows.Scan(&e.ID, &e.Scenario, &actionsJSON, &e.OutcomeScore, &notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		e.Notes = notes
		if err := json.Unmarshal([]byte(actionsJSON), &e.Actions); err != nil {
			return nil, fmt.Errorf("decode episode actions: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
