package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/purplemerit/leadmesh/internal/agent"
	"github.com/purplemerit/leadmesh/internal/memory"
	"github.com/purplemerit/leadmesh/internal/models"
	"github.com/purplemerit/leadmesh/internal/resource"
	"github.com/purplemerit/leadmesh/internal/store"
)

type orchestratorEnv struct {
	orch   *Orchestrator
	mem    *memory.Service
	res    *resource.Manager
	logger *slog.Logger
}

func newOrchestratorEnv(t *testing.T) *orchestratorEnv {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	episodes := store.NewEpisodeStore(db, 100)
	semantic := store.NewSemanticStore(db)
	mem := memory.NewService(
		store.NewShortTermStore(time.Hour),
		store.NewProfileStore(db),
		episodes,
		semantic,
		store.NewActionStore(db),
		memory.NewSubstringStrategy(episodes),
		logger,
	)
	res := resource.NewManager(db, semantic, logger)
	return &orchestratorEnv{
		orch:   New(mem, res, logger),
		mem:    mem,
		res:    res,
		logger: logger,
	}
}

func (e *orchestratorEnv) registerAll(t *testing.T) {
	t.Helper()
	rules := agent.DefaultRules()
	e.orch.Register(agent.NewTriageRole("triage-1", rules.Triage, e.mem, e.logger))
	e.orch.Register(agent.NewEngagementRole("engagement-1", rules.Engagement, e.mem, nil, e.logger))
	e.orch.Register(agent.NewOptimizerRole("optimizer-1", rules.Optimizer, e.mem, nil, e.logger))
	e.orch.Register(agent.NewManagerRole("manager-1", e.mem, e.logger))
}

func TestOrchestratorRoute(t *testing.T) {
	ctx := context.Background()

	t.Run("no registered role returns ErrNoAgentAvailable", func(t *testing.T) {
		env := newOrchestratorEnv(t)
		_, err := env.orch.Route(ctx, &models.RouteRequest{Type: "lead_triage"})
		if !errors.Is(err, ErrNoAgentAvailable) {
			t.Fatalf("expected ErrNoAgentAvailable, got %v", err)
		}
	})

	t.Run("unknown request type is rejected", func(t *testing.T) {
		env := newOrchestratorEnv(t)
		env.registerAll(t)
		if _, err := env.orch.Route(ctx, &models.RouteRequest{Type: "make_coffee"}); err == nil {
			t.Fatal("expected error for unknown type")
		}
	})

	t.Run("first registered role of a type is selected", func(t *testing.T) {
		env := newOrchestratorEnv(t)
		rules := agent.DefaultRules()
		env.orch.Register(agent.NewTriageRole("triage-a", rules.Triage, env.mem, env.logger))
		env.orch.Register(agent.NewTriageRole("triage-b", rules.Triage, env.mem, env.logger))

		res, err := env.orch.Route(ctx, &models.RouteRequest{
			Type:           "lead_triage",
			ConversationID: "conv-1",
			LeadData:       map[string]any{"company_size": "1-10"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Action.SourceAgent != "triage-a" {
			t.Fatalf("expected triage-a to be selected, got %s", res.Action.SourceAgent)
		}
	})

	t.Run("high value lead flows through triage into engagement", func(t *testing.T) {
		env := newOrchestratorEnv(t)
		env.registerAll(t)

		res, err := env.orch.Route(ctx, &models.RouteRequest{
			Type:           "lead_triage",
			ConversationID: "conv-1",
			LeadID:         "lead-1",
			LeadData: map[string]any{
				"company_size": "5000+",
				"industry":     "SaaS",
				"persona":      "Founder",
				"region":       "US",
				"source":       "Website",
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.OK() {
			t.Fatalf("expected success, got %+v", res)
		}
		// The final result comes from the engagement role.
		if res.Action.SourceAgentType != models.AgentEngagement {
			t.Fatalf("expected engagement result, got %s", res.Action.SourceAgentType)
		}
		if res.ConversationID != "conv-1" || res.LeadID != "lead-1" {
			t.Fatalf("expected identifiers preserved, got conv=%q lead=%q", res.ConversationID, res.LeadID)
		}

		// Both the triage handoff and the outreach are on the audit log.
		history, err := env.mem.ConversationActions("conv-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 recorded actions, got %d", len(history))
		}
		if history[0].Kind != models.ActionHandoff || history[1].Kind != models.ActionOutreach {
			t.Fatalf("expected handoff then outreach, got %s then %s", history[0].Kind, history[1].Kind)
		}

		// The flow leaves short-term context for the consolidation pass:
		// triage's lead signals merged with the engagement interaction.
		ctxData, ok := env.mem.GetContext("conv-1")
		if !ok {
			t.Fatal("expected short-term context after the flow")
		}
		if ctxData["lead_id"] != "lead-1" {
			t.Fatalf("expected lead_id in context, got %v", ctxData["lead_id"])
		}
		if ctxData["category"] != "interaction" {
			t.Fatalf("expected interaction category from engagement, got %v", ctxData["category"])
		}
		if ctxData["industry"] != "SaaS" {
			t.Fatalf("expected triage industry to survive the merge, got %v", ctxData["industry"])
		}
	})

	t.Run("handoff with no destination role keeps the source result", func(t *testing.T) {
		env := newOrchestratorEnv(t)
		env.orch.Register(agent.NewTriageRole("triage-1", agent.DefaultRules().Triage, env.mem, env.logger))

		res, err := env.orch.Route(ctx, &models.RouteRequest{
			Type:           "lead_triage",
			ConversationID: "conv-1",
			LeadData:       map[string]any{"source": "Google Ads"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Action.SourceAgentType != models.AgentLeadTriage {
			t.Fatalf("expected triage result to stand, got %s", res.Action.SourceAgentType)
		}
	})

	t.Run("lead data is hydrated from the resource layer", func(t *testing.T) {
		env := newOrchestratorEnv(t)
		env.registerAll(t)
		if err := env.res.PutLead("lead-9", map[string]any{"source": "Google Ads"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		res, err := env.orch.Route(ctx, &models.RouteRequest{
			Type:           "lead_triage",
			ConversationID: "conv-1",
			LeadID:         "lead-9",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		category := res.Payload["category"]
		if category != "Campaign Qualified" {
			t.Fatalf("expected hydrated lead to qualify, got %v", category)
		}
	})
}

func TestOrchestratorRegister(t *testing.T) {
	env := newOrchestratorEnv(t)
	rules := agent.DefaultRules()

	env.orch.Register(agent.NewTriageRole("triage-1", rules.Triage, env.mem, env.logger))
	env.orch.Register(agent.NewTriageRole("triage-1", rules.Triage, env.mem, env.logger))

	roles := env.orch.Roles()
	if len(roles[models.AgentLeadTriage]) != 1 {
		t.Fatalf("expected duplicate registration to replace in place, got %v", roles)
	}
}

func TestExecuteHandoff(t *testing.T) {
	env := newOrchestratorEnv(t)
	env.registerAll(t)
	ctx := context.Background()

	t.Run("delivers context to destination role once", func(t *testing.T) {
		res, err := env.orch.ExecuteHandoff(ctx, "triage-1", models.AgentEngagement, &models.HandoffContext{
			Summary:        "qualified lead ready for outreach",
			Confidence:     0.9,
			ConversationID: "conv-5",
			LeadID:         "lead-5",
			Metadata:       map[string]any{"engagement_type": "welcome"},
			Timestamp:      time.Now(),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.ConversationID != "conv-5" || res.LeadID != "lead-5" {
			t.Fatalf("expected identifiers preserved, got conv=%q lead=%q", res.ConversationID, res.LeadID)
		}
		if res.Action == nil || res.Action.Result["handoff_source"] != "triage-1" {
			t.Fatalf("expected source recorded on destination action, got %+v", res.Action)
		}
	})

	t.Run("source role travels into the audit log", func(t *testing.T) {
		if _, err := env.orch.ExecuteHandoff(ctx, "triage-1", models.AgentEngagement, &models.HandoffContext{
			Summary:        "follow-up outreach",
			Confidence:     0.8,
			ConversationID: "conv-6",
			LeadID:         "lead-6",
			Metadata:       map[string]any{"engagement_type": "welcome"},
			Timestamp:      time.Now(),
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		actions, err := env.mem.ConversationActions("conv-6")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(actions) != 1 {
			t.Fatalf("expected 1 recorded action, got %d", len(actions))
		}
		if actions[0].Result["handoff_source"] != "triage-1" {
			t.Fatalf("expected handoff_source in audit record, got %+v", actions[0].Result)
		}
	})

	t.Run("nil context is rejected", func(t *testing.T) {
		if _, err := env.orch.ExecuteHandoff(ctx, "triage-1", models.AgentEngagement, nil); err == nil {
			t.Fatal("expected error for nil context")
		}
	})

	t.Run("missing destination type returns ErrNoAgentAvailable", func(t *testing.T) {
		empty := newOrchestratorEnv(t)
		_, err := empty.orch.ExecuteHandoff(ctx, "triage-1", models.AgentManager, &models.HandoffContext{
			ConversationID: "conv-1",
		})
		if !errors.Is(err, ErrNoAgentAvailable) {
			t.Fatalf("expected ErrNoAgentAvailable, got %v", err)
		}
	})
}

func TestConversationStateDerivation(t *testing.T) {
	t.Run("derived from action history", func(t *testing.T) {
		cases := []struct {
			name    string
			actions []models.AgentAction
			want    models.ConversationState
		}{
			{"no actions", nil, models.StateNew},
			{"triaged", []models.AgentAction{{Kind: models.ActionTriage}}, models.StateTriaged},
			{"engaged", []models.AgentAction{
				{Kind: models.ActionTriage}, {Kind: models.ActionOutreach},
			}, models.StateEngaged},
			{"escalated", []models.AgentAction{
				{Kind: models.ActionTriage}, {Kind: models.ActionEscalate},
			}, models.StateEscalated},
			{"converted", []models.AgentAction{
				{Kind: models.ActionOutreach, Result: map[string]any{"converted": true}},
			}, models.StateConverted},
			{"nurtured", []models.AgentAction{
				{Kind: models.ActionTriage}, {Kind: models.ActionUpdateSegment},
			}, models.StateNurtured},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if got := deriveState(tc.actions); got != tc.want {
					t.Fatalf("expected %s, got %s", tc.want, got)
				}
			})
		}
	})

	t.Run("replaying a conversation is deterministic", func(t *testing.T) {
		env := newOrchestratorEnv(t)
		env.registerAll(t)

		_, err := env.orch.Route(context.Background(), &models.RouteRequest{
			Type:           "lead_triage",
			ConversationID: "conv-1",
			LeadData:       map[string]any{"company_size": "1-10"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		first, err := env.orch.ConversationState("conv-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := env.orch.ConversationState("conv-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first != second || first != models.StateTriaged {
			t.Fatalf("expected stable Triaged state, got %s then %s", first, second)
		}
	})
}
