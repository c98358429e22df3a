package store

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/purplemerit/leadmesh/internal/models"
)

func TestActionStore(t *testing.T) {
	db := setupTestDB(t)
	actions := NewActionStore(db)

	newTestAction := func(conversationID string, kind models.ActionKind) *models.AgentAction {
		return &models.AgentAction{
			ID:               uuid.New().String(),
			Timestamp:        time.Now(),
			ConversationID:   conversationID,
			LeadID:           "lead-1",
			Kind:             kind,
			SourceAgent:      "triage-1",
			SourceAgentType:  models.AgentLeadTriage,
			EscalationReason: models.EscalationNone,
			Result:           map[string]any{"category": "Campaign Qualified"},
		}
	}

	t.Run("Append and ByConversation preserve insertion order", func(t *testing.T) {
		if err := actions.Append(newTestAction("conv-1", models.ActionTriage)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := actions.Append(newTestAction("conv-1", models.ActionHandoff)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := actions.Append(newTestAction("conv-2", models.ActionTriage)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		history, err := actions.ByConversation("conv-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 actions, got %d", len(history))
		}
		if history[0].Kind != models.ActionTriage || history[1].Kind != models.ActionHandoff {
			t.Fatalf("expected triage then handoff, got %s then %s", history[0].Kind, history[1].Kind)
		}
		if history[0].Result["category"] != "Campaign Qualified" {
			t.Fatalf("expected result payload preserved, got %v", history[0].Result)
		}
	})

	t.Run("unknown conversation has empty history", func(t *testing.T) {
		history, err := actions.ByConversation("missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 0 {
			t.Fatalf("expected no actions, got %d", len(history))
		}
	})

	t.Run("Count spans conversations", func(t *testing.T) {
		n, err := actions.Count()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 3 {
			t.Fatalf("expected 3 actions, got %d", n)
		}
	})
}
