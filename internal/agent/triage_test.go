package agent

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/purplemerit/leadmesh/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTriageCategorize(t *testing.T) {
	role := NewTriageRole("triage-1", DefaultRules().Triage, newTestMemory(t), discardLogger())

	cases := []struct {
		name string
		lead map[string]any
		want string
	}{
		{"google ads source", map[string]any{"source": "Google Ads"}, CategoryCampaignQualified},
		{"website founder", map[string]any{"source": "Website", "persona": "Founder"}, CategoryCampaignQualified},
		{"website cmo", map[string]any{"source": "Website", "persona": "CMO"}, CategoryCampaignQualified},
		{"website engineer", map[string]any{"source": "Website", "persona": "Engineer"}, CategoryColdLead},
		{"enterprise size", map[string]any{"company_size": "5000+"}, CategoryCampaignQualified},
		{"mid size", map[string]any{"company_size": "1001-5000"}, CategoryCampaignQualified},
		{"small company", map[string]any{"company_size": "11-50"}, CategoryColdLead},
		{"legal industry", map[string]any{"industry": "Legal", "source": "Google Ads"}, CategoryGeneralInquiry},
		{"healthcare industry", map[string]any{"industry": "Healthcare"}, CategoryGeneralInquiry},
		{"empty lead", map[string]any{}, CategoryColdLead},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := role.Categorize(tc.lead); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestTriageScore(t *testing.T) {
	role := NewTriageRole("triage-1", DefaultRules().Triage, newTestMemory(t), discardLogger())

	t.Run("maximum signals cap at 100", func(t *testing.T) {
		lead := map[string]any{
			"company_size": "5000+",
			"industry":     "SaaS",
			"persona":      "Founder",
			"region":       "US",
			"source":       "Website",
		}
		if got := role.Score(lead); got != 100 {
			t.Fatalf("expected 100, got %f", got)
		}
	})

	t.Run("partial signals sum their weights", func(t *testing.T) {
		lead := map[string]any{
			"company_size": "51-200",
			"industry":     "FinTech",
			"region":       "EU",
		}
		want := 0.4*30 + 25 + 15
		if got := role.Score(lead); got != want {
			t.Fatalf("expected %f, got %f", want, got)
		}
	})

	t.Run("unknown attributes score zero", func(t *testing.T) {
		if got := role.Score(map[string]any{"industry": "Retail"}); got != 0 {
			t.Fatalf("expected 0, got %f", got)
		}
	})
}

func TestTriageProcessRequest(t *testing.T) {
	mem := newTestMemory(t)
	role := NewTriageRole("triage-1", DefaultRules().Triage, mem, discardLogger())
	ctx := context.Background()

	t.Run("high value lead hands off to engagement", func(t *testing.T) {
		res := role.ProcessRequest(ctx, &models.RouteRequest{
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
		if !res.OK() {
			t.Fatalf("expected success, got %+v", res)
		}
		if res.Action == nil || res.Action.Kind != models.ActionHandoff {
			t.Fatalf("expected handoff action, got %+v", res.Action)
		}
		if res.Action.DestAgentType != models.AgentEngagement {
			t.Fatalf("expected engagement destination, got %s", res.Action.DestAgentType)
		}
		if res.Action.EscalationReason != models.EscalationHighValue {
			t.Fatalf("expected high value reason, got %s", res.Action.EscalationReason)
		}
		h := res.Action.Handoff
		if h == nil {
			t.Fatal("expected handoff context")
		}
		if h.ConversationID != "conv-1" || h.LeadID != "lead-1" {
			t.Fatalf("expected identifiers preserved, got conv=%q lead=%q", h.ConversationID, h.LeadID)
		}
		if res.Payload["priority"] != "high" || res.Payload["next_step"] != "high_value_lead" {
			t.Fatalf("unexpected routing payload: %v", res.Payload)
		}
	})

	t.Run("regulated industry escalates to manager", func(t *testing.T) {
		res := role.ProcessRequest(ctx, &models.RouteRequest{
			Type:           "lead_triage",
			ConversationID: "conv-2",
			LeadData:       map[string]any{"industry": "Legal"},
		})
		if !res.OK() {
			t.Fatalf("expected success, got %+v", res)
		}
		if res.Action.Kind != models.ActionEscalate {
			t.Fatalf("expected escalation, got %s", res.Action.Kind)
		}
		if res.Action.DestAgentType != models.AgentManager {
			t.Fatalf("expected manager destination, got %s", res.Action.DestAgentType)
		}
		if res.Action.EscalationReason != models.EscalationLegal {
			t.Fatalf("expected legal reason, got %s", res.Action.EscalationReason)
		}
	})

	t.Run("cold lead routes to nurture without handoff", func(t *testing.T) {
		res := role.ProcessRequest(ctx, &models.RouteRequest{
			Type:           "lead_triage",
			ConversationID: "conv-3",
			LeadData:       map[string]any{"company_size": "1-10"},
		})
		if !res.OK() {
			t.Fatalf("expected success, got %+v", res)
		}
		if res.Action.Kind != models.ActionUpdateSegment {
			t.Fatalf("expected segment update action, got %s", res.Action.Kind)
		}
		if res.Action.Handoff != nil {
			t.Fatal("expected no handoff for nurture path")
		}
		if res.Payload["next_step"] != "nurture_lead" {
			t.Fatalf("expected nurture step, got %v", res.Payload["next_step"])
		}
		if res.Payload["segment"] != "nurture" {
			t.Fatalf("expected nurture segment, got %v", res.Payload["segment"])
		}
	})

	t.Run("missing lead data degrades to cold lead", func(t *testing.T) {
		res := role.ProcessRequest(ctx, &models.RouteRequest{Type: "lead_triage", ConversationID: "conv-4"})
		if !res.OK() {
			t.Fatalf("expected success on malformed input, got %+v", res)
		}
		if res.Payload["category"] != CategoryColdLead {
			t.Fatalf("expected cold lead fallback, got %v", res.Payload["category"])
		}
	})

	t.Run("nil request is an error result", func(t *testing.T) {
		res := role.ProcessRequest(ctx, nil)
		if res.OK() {
			t.Fatal("expected error result")
		}
	})

	t.Run("processing leaves conversation context in short-term memory", func(t *testing.T) {
		res := role.ProcessRequest(ctx, &models.RouteRequest{
			Type:           "lead_triage",
			ConversationID: "conv-ctx",
			LeadID:         "lead-ctx",
			LeadData:       map[string]any{"company_size": "5000+", "industry": "SaaS"},
		})
		if !res.OK() {
			t.Fatalf("expected success, got %+v", res)
		}
		ctxData, ok := mem.GetContext("conv-ctx")
		if !ok {
			t.Fatal("expected short-term context after triage")
		}
		if ctxData["lead_id"] != "lead-ctx" {
			t.Fatalf("expected lead_id recorded, got %v", ctxData["lead_id"])
		}
		if ctxData["category"] != CategoryCampaignQualified {
			t.Fatalf("expected category recorded, got %v", ctxData["category"])
		}
		if ctxData["lead_score"] != 0.55 {
			t.Fatalf("expected normalized lead score 0.55, got %v", ctxData["lead_score"])
		}
		if ctxData["industry"] != "SaaS" {
			t.Fatalf("expected industry recorded, got %v", ctxData["industry"])
		}
	})
}

func TestTriageHandleHandoff(t *testing.T) {
	role := NewTriageRole("triage-1", DefaultRules().Triage, newTestMemory(t), discardLogger())

	res := role.HandleHandoff(context.Background(), &models.HandoffContext{
		Summary:        "re-triage after new data",
		Confidence:     0.8,
		ConversationID: "conv-1",
		LeadID:         "lead-1",
		Metadata: map[string]any{
			"lead_data": map[string]any{"source": "Google Ads"},
		},
	})
	if !res.OK() {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.ConversationID != "conv-1" || res.LeadID != "lead-1" {
		t.Fatalf("expected identifiers preserved, got conv=%q lead=%q", res.ConversationID, res.LeadID)
	}
	if res.Payload["category"] != CategoryCampaignQualified {
		t.Fatalf("expected lead data from handoff metadata to apply, got %v", res.Payload["category"])
	}
}
