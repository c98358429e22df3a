package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/purplemerit/leadmesh/internal/models"
	"github.com/purplemerit/leadmesh/internal/store"
)

// Consolidator promotes qualifying short-term entries into the durable tiers.
// Entries are never removed from short-term memory here; TTL expiry handles
// that independently.
type Consolidator struct {
	short     *store.ShortTermStore
	profiles  *store.ProfileStore
	episodes  *store.EpisodeStore
	semantic  *store.SemanticStore
	strategy  SimilarityStrategy
	threshold float64
	logger    *slog.Logger
}

// Report summarizes one consolidation pass.
type Report struct {
	Scanned  int
	Promoted int
	Failures int
}

func NewConsolidator(
	short *store.ShortTermStore,
	profiles *store.ProfileStore,
	episodes *store.EpisodeStore,
	semantic *store.SemanticStore,
	strategy SimilarityStrategy,
	logger *slog.Logger,
) *Consolidator {
	return &Consolidator{
		short:     short,
		profiles:  profiles,
		episodes:  episodes,
		semantic:  semantic,
		strategy:  strategy,
		threshold: PromotionThreshold,
		logger:    logger,
	}
}

// Run executes one consolidation pass. A failure on one entry is recorded and
// skipped; the pass continues with the remaining entries.
func (c *Consolidator) Run(ctx context.Context) (*Report, error) {
	entries := c.short.Snapshot()
	rep := &Report{Scanned: len(entries)}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		score := c.score(entry)
		if score <= c.threshold {
			continue
		}

		if err := c.promote(ctx, entry, score); err != nil {
			rep.Failures++
			c.logger.Error("consolidation failed for entry",
				"conversationId", entry.ConversationID, "error", err)
			continue
		}
		rep.Promoted++
	}

	if rep.Promoted > 0 || rep.Failures > 0 {
		c.logger.Info("consolidation pass complete",
			"scanned", rep.Scanned, "promoted", rep.Promoted, "failures", rep.Failures)
	}
	return rep, nil
}

// score computes importance, deriving the novelty signal from how much the
// knowledge graph already records about the entry's lead.
func (c *Consolidator) score(entry models.ContextEntry) float64 {
	similar := -1
	if leadID := stringField(entry.Context, "lead_id"); leadID != "" {
		known, err := c.semantic.CountForSubject("lead_" + leadID)
		if err != nil {
			c.logger.Warn("novelty lookup failed", "leadId", leadID, "error", err)
		} else {
			similar = known
		}
	}
	return Importance(entry.Context, similar)
}

// promote writes the entry into every durable tier its context qualifies for.
// The first tier error aborts this entry only.
func (c *Consolidator) promote(ctx context.Context, entry models.ContextEntry, score float64) error {
	promoted := false

	leadID := stringField(entry.Context, "lead_id")
	if leadID != "" {
		rfm := score
		if ls, ok := floatField(entry.Context, "lead_score"); ok {
			rfm = ls
		}
		if err := c.profiles.Update(leadID, extractPreferences(entry.Context), rfm); err != nil {
			return fmt.Errorf("promote to profile: %w", err)
		}
		promoted = true
	}

	if stringField(entry.Context, "category") == "interaction" {
		scenario := stringField(entry.Context, "scenario")
		if scenario == "" {
			scenario = stringField(entry.Context, "intent")
		}
		if scenario == "" {
			scenario = "interaction"
		}
		outcome := score
		if o, ok := floatField(entry.Context, "outcome_score"); ok {
			outcome = o
		}
		id, err := c.episodes.Append(scenario, actionRecords(entry.Context), outcome, stringField(entry.Context, "notes"))
		if err != nil {
			return fmt.Errorf("promote to episode: %w", err)
		}
		ep := models.Episode{ID: id, Scenario: scenario, OutcomeScore: outcome}
		if err := c.strategy.Index(ctx, ep); err != nil {
			c.logger.Warn("episode index failed", "episodeId", id, "error", err)
		}
		promoted = true
	}

	for _, t := range deriveTriples(entry.Context, score) {
		if err := c.semantic.Upsert(t.Subject, t.Predicate, t.Object, t.Weight); err != nil {
			return fmt.Errorf("promote to graph: %w", err)
		}
		promoted = true
	}

	// An entry above the threshold always lands in at least one durable
	// tier: contexts with no lead or interaction shape fall back to an
	// episodic record of the raw context.
	if !promoted {
		scenario := stringField(entry.Context, "intent")
		if scenario == "" {
			scenario = "conversation_" + entry.ConversationID
		}
		id, err := c.episodes.Append(scenario, nil, score, "")
		if err != nil {
			return fmt.Errorf("promote to episode: %w", err)
		}
		if err := c.strategy.Index(ctx, models.Episode{ID: id, Scenario: scenario, OutcomeScore: score}); err != nil {
			c.logger.Warn("episode index failed", "episodeId", id, "error", err)
		}
	}
	return nil
}

// extractPreferences pulls the lead-level preference mapping out of a context.
// An explicit "preferences" map wins; otherwise well-known keys are lifted.
func extractPreferences(context map[string]any) map[string]any {
	if v, ok := context["preferences"]; ok {
		if prefs, ok := v.(map[string]any); ok {
			return prefs
		}
	}
	prefs := map[string]any{}
	for _, key := range []string{"preferred_channel", "intent", "industry", "persona", "tone"} {
		if s := stringField(context, key); s != "" {
			prefs[key] = s
		}
	}
	return prefs
}

// actionRecords extracts the ordered action sequence from a context, if any.
func actionRecords(context map[string]any) []map[string]any {
	v, ok := context["actions"]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// deriveTriples turns lead-level context fields into knowledge-graph facts
// weighted by the entry's importance score.
func deriveTriples(context map[string]any, weight float64) []models.SemanticTriple {
	leadID := stringField(context, "lead_id")
	if leadID == "" {
		return nil
	}
	subject := "lead_" + leadID

	var out []models.SemanticTriple
	if ch := stringField(context, "preferred_channel"); ch != "" {
		out = append(out, models.SemanticTriple{Subject: subject, Predicate: "prefers", Object: ch, Weight: weight})
	}
	if intent := stringField(context, "intent"); intent != "" {
		out = append(out, models.SemanticTriple{Subject: subject, Predicate: "interested_in", Object: intent, Weight: weight})
	}
	if industry := stringField(context, "industry"); industry != "" {
		out = append(out, models.SemanticTriple{Subject: subject, Predicate: "in_industry", Object: industry, Weight: weight})
	}
	return out
}
