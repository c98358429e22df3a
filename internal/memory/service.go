package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/purplemerit/leadmesh/internal/models"
	"github.com/purplemerit/leadmesh/internal/store"
)

// Service is the facade over the four memory tiers. Agent roles and the
// protocol surfaces go through it rather than touching tiers directly.
type Service struct {
	short    *store.ShortTermStore
	profiles *store.ProfileStore
	episodes *store.EpisodeStore
	semantic *store.SemanticStore
	actions  *store.ActionStore
	strategy SimilarityStrategy
	logger   *slog.Logger
}

func NewService(
	short *store.ShortTermStore,
	profiles *store.ProfileStore,
	episodes *store.EpisodeStore,
	semantic *store.SemanticStore,
	actions *store.ActionStore,
	strategy SimilarityStrategy,
	logger *slog.Logger,
) *Service {
	return &Service{
		short:    short,
		profiles: profiles,
		episodes: episodes,
		semantic: semantic,
		actions:  actions,
		strategy: strategy,
		logger:   logger,
	}
}

// PutContext stores short-term conversation context. ttl <= 0 uses the
// configured default.
func (s *Service) PutContext(conversationID string, context map[string]any, ttl time.Duration) {
	s.short.Put(conversationID, context, ttl)
}

// GetContext returns short-term context, or false when absent or expired.
func (s *Service) GetContext(conversationID string) (map[string]any, bool) {
	return s.short.Get(conversationID)
}

// UpdateProfile upserts a long-term lead profile.
func (s *Service) UpdateProfile(leadID string, preferences map[string]any, rfmScore float64) error {
	return s.profiles.Update(leadID, preferences, rfmScore)
}

// GetProfile returns a lead profile, or nil when none exists.
func (s *Service) GetProfile(leadID string) (*models.LeadProfile, error) {
	return s.profiles.Get(leadID)
}

// AppendEpisode stores an interaction pattern and indexes it for retrieval.
func (s *Service) AppendEpisode(ctx context.Context, scenario string, actions []map[string]any, outcomeScore float64, notes string) (string, error) {
	id, err := s.episodes.Append(scenario, actions, outcomeScore, notes)
	if err != nil {
		return "", err
	}
	ep := models.Episode{ID: id, Scenario: scenario, Actions: actions, OutcomeScore: outcomeScore, Notes: notes}
	if err := s.strategy.Index(ctx, ep); err != nil {
		// The episode is durable; a failed index only degrades retrieval.
		s.logger.Warn("episode index failed", "episodeId", id, "error", err)
	}
	return id, nil
}

// QueryEpisodes retrieves episodes by scenario similarity via the configured
// strategy.
func (s *Service) QueryEpisodes(ctx context.Context, scenarioFragment string, topK int) ([]models.Episode, error) {
	return s.strategy.Query(ctx, scenarioFragment, topK)
}

// UpsertTriple merges a fact into the knowledge graph.
func (s *Service) UpsertTriple(subject, predicate, object string, weight float64) error {
	return s.semantic.Upsert(subject, predicate, object, weight)
}

// QueryTriples filters the knowledge graph; empty filters match all.
func (s *Service) QueryTriples(subject, predicate, object string) ([]models.SemanticTriple, error) {
	return s.semantic.Query(subject, predicate, object)
}

// RecordAction appends an action to the durable log.
func (s *Service) RecordAction(a *models.AgentAction) error {
	if err := s.actions.Append(a); err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// ConversationActions returns the recorded history of a conversation.
func (s *Service) ConversationActions(conversationID string) ([]models.AgentAction, error) {
	return s.actions.ByConversation(conversationID)
}
