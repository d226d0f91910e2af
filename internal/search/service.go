package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Healthy reports whether some search backend can serve queries.
func (s *Service) Healthy() bool {
	if s.meili != nil && s.meili.Healthy() {
		return true
	}
	return s.pgfts != nil
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) ([]Result, int, error) {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return nonNil(results), total, nil
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		return nil, 0, err
	}
	return nonNil(results), total, nil
}

// IndexScene indexes a scene (fire-and-forget to Meilisearch).
func (s *Service) IndexScene(rec SceneRecord) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	go func() {
		if err := s.meili.IndexScene(rec); err != nil {
			log.Printf("search: index scene %s: %v", rec.ID, err)
		}
	}()
	return nil
}

// IndexCharacter indexes a character (fire-and-forget to Meilisearch).
func (s *Service) IndexCharacter(rec CharacterRecord) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	go func() {
		if err := s.meili.IndexCharacter(rec); err != nil {
			log.Printf("search: index character %s: %v", rec.ID, err)
		}
	}()
	return nil
}

// IndexRule indexes a world rule (fire-and-forget to Meilisearch).
func (s *Service) IndexRule(rec RuleRecord) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	go func() {
		if err := s.meili.IndexRule(rec); err != nil {
			log.Printf("search: index rule %s: %v", rec.ID, err)
		}
	}()
	return nil
}

// DeleteScene removes a scene from the search index (fire-and-forget).
func (s *Service) DeleteScene(id string) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	go func() {
		if err := s.meili.DeleteScene(id); err != nil {
			log.Printf("search: delete scene %s: %v", id, err)
		}
	}()
	return nil
}

// DeleteCharacter removes a character from the search index (fire-and-forget).
func (s *Service) DeleteCharacter(id string) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	go func() {
		if err := s.meili.DeleteCharacter(id); err != nil {
			log.Printf("search: delete character %s: %v", id, err)
		}
	}()
	return nil
}

// DeleteRule removes a world rule from the search index (fire-and-forget).
func (s *Service) DeleteRule(id string) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	go func() {
		if err := s.meili.DeleteRule(id); err != nil {
			log.Printf("search: delete rule %s: %v", id, err)
		}
	}()
	return nil
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into
// Meilisearch. Called at boot when Meilisearch is configured.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	scenes, characters, rules, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexScenes(scenes); err != nil {
		log.Printf("search: reindex scenes: %v", err)
	}
	if err := s.meili.IndexCharacters(characters); err != nil {
		log.Printf("search: reindex characters: %v", err)
	}
	if err := s.meili.IndexRules(rules); err != nil {
		log.Printf("search: reindex rules: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
