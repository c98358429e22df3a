package memory

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"

	"github.com/purplemerit/leadmesh/internal/embedding"
	"github.com/purplemerit/leadmesh/internal/models"
	"github.com/purplemerit/leadmesh/internal/store"
)

// SimilarityStrategy is the pluggable episodic retrieval policy. Both
// implementations sit behind the same query signature; which one is active is
// a config choice, not a contract change.
type SimilarityStrategy interface {
	// Index makes a freshly appended episode retrievable.
	Index(ctx context.Context, ep models.Episode) error
	// Query returns up to topK episodes relevant to the scenario fragment.
	Query(ctx context.Context, scenarioFragment string, topK int) ([]models.Episode, error)
}

// SubstringStrategy is the baseline contract: case-insensitive substring
// containment on the scenario label, ranked by outcome score descending.
type SubstringStrategy struct {
	episodes *store.EpisodeStore
}

func NewSubstringStrategy(episodes *store.EpisodeStore) *SubstringStrategy {
	return &SubstringStrategy{episodes: episodes}
}

// Index is a no-op: the SQL query matches directly against stored scenarios.
func (s *SubstringStrategy) Index(ctx context.Context, ep models.Episode) error {
	return nil
}

func (s *SubstringStrategy) Query(ctx context.Context, scenarioFragment string, topK int) ([]models.Episode, error) {
	return s.episodes.Query(scenarioFragment, topK)
}

// VectorStrategy ranks episodes by embedding similarity using an in-process
// chromem collection that mirrors the episodic store. Results come back in
// similarity order rather than outcome order.
type VectorStrategy struct {
	episodes *store.EpisodeStore
	col      *chromem.Collection
}

func NewVectorStrategy(episodes *store.EpisodeStore, embedder embedding.Embedder) (*VectorStrategy, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection("episodes", nil, chromem.EmbeddingFunc(embedder.Embed))
	if err != nil {
		return nil, fmt.Errorf("create episode collection: %w", err)
	}
	return &VectorStrategy{episodes: episodes, col: col}, nil
}

func (v *VectorStrategy) Index(ctx context.Context, ep models.Episode) error {
	content := ep.Scenario
	if ep.Notes != "" {
		content += "\n" + ep.Notes
	}
	doc := chromem.Document{
		ID:      ep.ID,
		Content: content,
		Metadata: map[string]string{
			"scenario": ep.Scenario,
		},
	}
	if err := v.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("index episode: %w", err)
	}
	return nil
}

func (v *VectorStrategy) Query(ctx context.Context, scenarioFragment string, topK int) ([]models.Episode, error) {
	if topK <= 0 {
		topK = 10
	}
	// chromem rejects nResults larger than the collection.
	if n := v.col.Count(); topK > n {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := v.col.Query(ctx, scenarioFragment, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	out := make([]models.Episode, 0, len(results))
	for _, r := range results {
		ep, err := v.episodes.GetByID(r.ID)
		if err != nil {
			return nil, err
		}
		if ep == nil {
			// Evicted from the bounded store after indexing; skip.
			continue
		}
		out = append(out, *ep)
	}
	return out, nil
}
