package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/purplemerit/leadmesh/internal/models"
)

// ActionStore is the append-only durable log of agent actions. The core only
// writes records here; readers are operational tooling and the audit surface.
type ActionStore struct {
	db *DB
}

func NewActionStore(db *DB) *ActionStore {
	return &ActionStore{db: db}
}

// Append durably records one action. Actions are immutable once written.
func (s *ActionStore) Append(a *models.AgentAction) error {
	resultJSON, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("marshal action result: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO agent_actions (
			id, ts, conversation_id, lead_id, kind,
			source_agent, source_agent_type, dest_agent_type,
			escalation_reason, result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.Timestamp.Unix(), a.ConversationID, a.LeadID, string(a.Kind),
		a.SourceAgent, string(a.SourceAgentType), string(a.DestAgentType),
		string(a.EscalationReason), string(resultJSON),
	)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

// ByConversation returns the action history of a conversation in insertion
// order. The orchestrator derives conversation state from this.
func (s *ActionStore) ByConversation(conversationID string) ([]models.AgentAction, error) {
	rows, err := s.db.Query(`
		SELECT id, ts, conversation_id, lead_id, kind,
			source_agent, source_agent_type, dest_agent_type,
			escalation_reason, result
		FROM agent_actions WHERE conversation_id = ? ORDER BY seq ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load actions: %w", err)
	}
	defer rows.Close()

	var out []models.AgentAction
	for rows.Next() {
		var a models.AgentAction
		var ts int64
		var resultJSON string
		if err := rows.Scan(
			&a.ID, &ts, &a.ConversationID, &a.LeadID, &a.Kind,
			&a.SourceAgent, &a.SourceAgentType, &a.DestAgentType,
			&a.EscalationReason, &resultJSON,
		); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Timestamp = time.Unix(ts, 0)
		if resultJSON != "" {
			if err := json.Unmarshal([]byte(resultJSON), &a.Result); err != nil {
				return nil, fmt.Errorf("decode action result: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Count returns the total number of recorded actions.
func (s *ActionStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM agent_actions`).Scan(&n)
	return n, err
}
