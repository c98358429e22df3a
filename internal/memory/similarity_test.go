package memory

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/purplemerit/leadmesh/internal/models"
	"github.com/purplemerit/leadmesh/internal/store"
)

// stubEmbedder maps text to a fixed-dimension vector deterministic in its
// keywords, so similar scenarios land close together.
type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 4)
	lower := strings.ToLower(text)
	if strings.Contains(lower, "demo") {
		v[0] = 1
	}
	if strings.Contains(lower, "pricing") {
		v[1] = 1
	}
	if strings.Contains(lower, "complaint") {
		v[2] = 1
	}
	v[3] = 0.1
	return v, nil
}

func newTestEpisodeStore(t *testing.T) *store.EpisodeStore {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewEpisodeStore(db, 100)
}

func TestSubstringStrategy(t *testing.T) {
	episodes := newTestEpisodeStore(t)
	strategy := NewSubstringStrategy(episodes)

	ids := make([]string, 0, 3)
	for _, e := range []struct {
		scenario string
		outcome  float64
	}{
		{"demo request for SaaS", 0.6},
		{"Demo follow-up", 0.9},
		{"pricing complaint", 0.8},
	} {
		id, err := episodes.Append(e.scenario, nil, e.outcome, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids = append(ids, id)
		if err := strategy.Index(context.Background(), models.Episode{ID: id, Scenario: e.scenario}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := strategy.Query(context.Background(), "demo", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].ID != ids[1] {
		t.Fatalf("expected highest outcome first, got %q", got[0].Scenario)
	}
}

func TestVectorStrategy(t *testing.T) {
	episodes := newTestEpisodeStore(t)
	strategy, err := NewVectorStrategy(episodes, stubEmbedder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	t.Run("query on empty collection returns nothing", func(t *testing.T) {
		got, err := strategy.Query(ctx, "demo", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected no results, got %d", len(got))
		}
	})

	t.Run("indexed episodes come back by similarity", func(t *testing.T) {
		seed := []struct {
			scenario string
			outcome  float64
		}{
			{"demo booking went well", 0.9},
			{"pricing question", 0.5},
			{"complaint about onboarding", 0.3},
		}
		for _, e := range seed {
			id, err := episodes.Append(e.scenario, nil, e.outcome, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			ep := models.Episode{ID: id, Scenario: e.scenario, OutcomeScore: e.outcome}
			if err := strategy.Index(ctx, ep); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		got, err := strategy.Query(ctx, "demo scheduling", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 result, got %d", len(got))
		}
		if got[0].Scenario != "demo booking went well" {
			t.Fatalf("expected demo episode, got %q", got[0].Scenario)
		}
	})

	t.Run("topK larger than collection is clamped", func(t *testing.T) {
		got, err := strategy.Query(ctx, "pricing", 50)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected all 3 episodes, got %d", len(got))
		}
	})
}
