package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/purplemerit/leadmesh/internal/models"
)

// SemanticStore is the knowledge-graph tier: weighted (subject, predicate,
// object) facts keyed by the three fields together.
type SemanticStore struct {
	db *DB
}

func NewSemanticStore(db *DB) *SemanticStore {
	return &SemanticStore{db: db}
}

// Upsert merges a fact. A new key initializes weight and access count; an
// existing key keeps the larger of the old and new weights and increments its
// access counter. The stored weight never decreases.
func (s *SemanticStore) Upsert(subject, predicate, object string, weight float64) error {
	_, err := s.db.Exec(`
		INSERT INTO semantic_triples (subject, predicate, object, weight, access_count, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(subject, predicate, object) DO UPDATE SET
			weight = MAX(weight, excluded.weight),
			access_count = access_count + 1,
			updated_at = excluded.updated_at
	`, subject, predicate, object, weight, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert triple: %w", err)
	}
	return nil
}

// Query returns triples matching the given filters, ranked by weight then
// access count descending. Empty filters match all values. Queries do not
// touch access counters; only Upsert does.
func (s *SemanticStore) Query(subject, predicate, object string) ([]models.SemanticTriple, error) {
	var conds []string
	var args []any
	if subject != "" {
		conds = append(conds, "subject = ?")
		args = append(args, subject)
	}
	if predicate != "" {
		conds = append(conds, "predicate = ?")
		args = append(args, predicate)
	}
	if object != "" {
		conds = append(conds, "object = ?")
		args = append(args, object)
	}

	q := `SELECT subject, predicate, object, weight, access_count FROM semantic_triples`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY weight DESC, access_count DESC"

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query triples: %w", err)
	}
	defer rows.Close()

	var out []models.SemanticTriple
	for rows.Next() {
		var t models.SemanticTriple
		if err := rows.Scan(&t.Subject, &t.Predicate, &t.Object, &t.Weight, &t.AccessCount); err != nil {
			return nil, fmt.Errorf("scan triple: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountForSubject returns how many facts are stored about a subject.
func (s *SemanticStore) CountForSubject(subject string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM semantic_triples WHERE subject = ?`, subject).Scan(&n)
	return n, err
}
