package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection with initialization logic.
type DB struct {
	*sql.DB
}

// Open creates or opens the SQLite database at the given path, runs schema
// initialization, and configures WAL mode for concurrent reads.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS lead_profiles (
  lead_id TEXT PRIMARY KEY,
  preferences TEXT NOT NULL,
  rfm_score REAL NOT NULL DEFAULT 0.0,
  interactions INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS episodes (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  scenario TEXT NOT NULL,
  actions TEXT NOT NULL,
  outcome_score REAL NOT NULL,
  notes TEXT,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_episodes_outcome ON episodes(outcome_score);
CREATE INDEX IF NOT EXISTS idx_episodes_scenario ON episodes(scenario);

CREATE TABLE IF NOT EXISTS semantic_triples (
  subject TEXT NOT NULL,
  predicate TEXT NOT NULL,
  object TEXT NOT NULL,
  weight REAL NOT NULL,
  access_count INTEGER NOT NULL DEFAULT 1,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (subject, predicate, object)
);

CREATE INDEX IF NOT EXISTS idx_triples_subject ON semantic_triples(subject);
CREATE INDEX IF NOT EXISTS idx_triples_predicate ON semantic_triples(predicate);

CREATE TABLE IF NOT EXISTS agent_actions (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  ts INTEGER NOT NULL,
  conversation_id TEXT,
  lead_id TEXT,
  kind TEXT NOT NULL,
  source_agent TEXT NOT NULL,
  source_agent_type TEXT NOT NULL,
  dest_agent_type TEXT,
  escalation_reason TEXT NOT NULL DEFAULT 'none',
  result TEXT
);

CREATE INDEX IF NOT EXISTS idx_actions_conversation ON agent_actions(conversation_id);
CREATE INDEX IF NOT EXISTS idx_actions_lead ON agent_actions(lead_id);

CREATE TABLE IF NOT EXISTS leads (
  lead_id TEXT PRIMARY KEY,
  data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS campaign_daily (
  campaign_id TEXT NOT NULL,
  day TEXT NOT NULL,
  metrics TEXT NOT NULL,
  PRIMARY KEY (campaign_id, day)
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}
