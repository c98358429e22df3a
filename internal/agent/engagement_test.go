package agent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/purplemerit/leadmesh/internal/memory"
	"github.com/purplemerit/leadmesh/internal/models"
	"github.com/purplemerit/leadmesh/internal/store"
)

func newTestMemory(t *testing.T) *memory.Service {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	episodes := store.NewEpisodeStore(db, 100)
	return memory.NewService(
		store.NewShortTermStore(time.Hour),
		store.NewProfileStore(db),
		episodes,
		store.NewSemanticStore(db),
		store.NewActionStore(db),
		memory.NewSubstringStrategy(episodes),
		discardLogger(),
	)
}

func TestEngagementProcessRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("uses template when no text service is configured", func(t *testing.T) {
		mem := newTestMemory(t)
		role := NewEngagementRole("engagement-1", DefaultRules().Engagement, mem, nil, discardLogger())

		res := role.ProcessRequest(ctx, &models.RouteRequest{
			Type:           "engagement",
			ConversationID: "conv-1",
			LeadID:         "lead-1",
			EngagementType: "welcome",
			LeadData:       map[string]any{"persona": "Founder"},
		})
		if !res.OK() {
			t.Fatalf("expected success, got %+v", res)
		}
		if res.Payload["channel"] != "email" {
			t.Fatalf("expected email for founder, got %v", res.Payload["channel"])
		}
		msg, _ := res.Payload["message"].(string)
		if msg == "" {
			t.Fatal("expected non-empty message")
		}
		if res.Action.Kind != models.ActionOutreach {
			t.Fatalf("expected outreach action, got %s", res.Action.Kind)
		}
	})

	t.Run("outreach leaves interaction context in short-term memory", func(t *testing.T) {
		mem := newTestMemory(t)
		role := NewEngagementRole("engagement-1", DefaultRules().Engagement, mem, nil, discardLogger())

		res := role.ProcessRequest(ctx, &models.RouteRequest{
			Type:           "engagement",
			ConversationID: "conv-ctx",
			LeadID:         "lead-ctx",
			EngagementType: "demo_invite",
			LeadData:       map[string]any{"persona": "CMO"},
			Metadata:       map[string]any{"sentiment": 0.6},
		})
		if !res.OK() {
			t.Fatalf("expected success, got %+v", res)
		}
		ctxData, ok := mem.GetContext("conv-ctx")
		if !ok {
			t.Fatal("expected short-term context after outreach")
		}
		if ctxData["category"] != "interaction" {
			t.Fatalf("expected interaction category, got %v", ctxData["category"])
		}
		if ctxData["scenario"] != "demo_invite via email" {
			t.Fatalf("expected scenario recorded, got %v", ctxData["scenario"])
		}
		if ctxData["lead_id"] != "lead-ctx" || ctxData["preferred_channel"] != "email" {
			t.Fatalf("expected lead and channel recorded, got %v", ctxData)
		}
		if ctxData["sentiment"] != 0.6 {
			t.Fatalf("expected sentiment carried over, got %v", ctxData["sentiment"])
		}
	})

	t.Run("unknown engagement type falls back to welcome", func(t *testing.T) {
		mem := newTestMemory(t)
		role := NewEngagementRole("engagement-1", DefaultRules().Engagement, mem, nil, discardLogger())

		res := role.ProcessRequest(ctx, &models.RouteRequest{
			Type:           "engagement",
			ConversationID: "conv-1",
			EngagementType: "cold_call_spam",
		})
		if !res.OK() {
			t.Fatalf("expected success, got %+v", res)
		}
		if res.Payload["engagement_type"] != "welcome" {
			t.Fatalf("expected welcome fallback, got %v", res.Payload["engagement_type"])
		}
	})

	t.Run("stored channel preference wins over persona", func(t *testing.T) {
		mem := newTestMemory(t)
		if err := mem.UpdateProfile("lead-1", map[string]any{"preferred_channel": "sms"}, 0.5); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		role := NewEngagementRole("engagement-1", DefaultRules().Engagement, mem, nil, discardLogger())

		res := role.ProcessRequest(ctx, &models.RouteRequest{
			Type:           "engagement",
			ConversationID: "conv-1",
			LeadID:         "lead-1",
			EngagementType: "follow_up",
			LeadData:       map[string]any{"persona": "Founder"},
		})
		if res.Payload["channel"] != "sms" {
			t.Fatalf("expected stored sms preference, got %v", res.Payload["channel"])
		}
	})

	t.Run("outreach updates the lead profile", func(t *testing.T) {
		mem := newTestMemory(t)
		role := NewEngagementRole("engagement-1", DefaultRules().Engagement, mem, nil, discardLogger())

		role.ProcessRequest(ctx, &models.RouteRequest{
			Type:           "engagement",
			ConversationID: "conv-1",
			LeadID:         "lead-7",
			EngagementType: "demo_invite",
		})

		p, err := mem.GetProfile("lead-7")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p == nil {
			t.Fatal("expected profile created by outreach")
		}
		if p.Preferences["last_engagement"] != "demo_invite" {
			t.Fatalf("expected last_engagement recorded, got %v", p.Preferences)
		}
	})

	t.Run("positive outcome is captured as an episode", func(t *testing.T) {
		mem := newTestMemory(t)
		role := NewEngagementRole("engagement-1", DefaultRules().Engagement, mem, nil, discardLogger())

		role.ProcessRequest(ctx, &models.RouteRequest{
			Type:           "engagement",
			ConversationID: "conv-1",
			LeadID:         "lead-1",
			EngagementType: "demo_invite",
			Metadata:       map[string]any{"outcome_score": 0.9},
		})

		eps, err := mem.QueryEpisodes(ctx, "demo_invite", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(eps) != 1 {
			t.Fatalf("expected 1 episode, got %d", len(eps))
		}
		if eps[0].OutcomeScore != 0.9 {
			t.Fatalf("expected outcome 0.9, got %f", eps[0].OutcomeScore)
		}
	})
}

func TestEngagementHandleHandoff(t *testing.T) {
	mem := newTestMemory(t)
	role := NewEngagementRole("engagement-1", DefaultRules().Engagement, mem, nil, discardLogger())

	res := role.HandleHandoff(context.Background(), &models.HandoffContext{
		Summary:        "Lead triaged as Campaign Qualified with score 85",
		Confidence:     0.9,
		ConversationID: "conv-1",
		LeadID:         "lead-1",
		Metadata: map[string]any{
			"lead_data":       map[string]any{"persona": "CMO"},
			"engagement_type": "demo_invite",
		},
	})
	if !res.OK() {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.ConversationID != "conv-1" || res.LeadID != "lead-1" {
		t.Fatalf("expected identifiers preserved, got conv=%q lead=%q", res.ConversationID, res.LeadID)
	}
	if res.Payload["engagement_type"] != "demo_invite" {
		t.Fatalf("expected engagement type from handoff, got %v", res.Payload["engagement_type"])
	}
}
