package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"fabula/api/internal/rbac"
	"fabula/api/internal/search"
	"fabula/api/internal/store"
	"fabula/api/internal/util"
)

// Characters

func (s *Service) CreateCharacter(ctx context.Context, session Session, projectID, name, bio, imageURL string) (map[string]any, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	characterName := strings.TrimSpace(name)
	if characterName == "" {
		return nil, validationErr("name is required")
	}

	character, err := s.store.InsertCharacter(ctx, store.Character{
		ID:        util.NewID("chr"),
		ProjectID: projectID,
		Name:      characterName,
		Bio:       strings.TrimSpace(bio),
		ImageURL:  strings.TrimSpace(imageURL),
	})
	if err != nil {
		return nil, err
	}
	s.indexCharacter(character)
	return characterPayload(character), nil
}

func (s *Service) ListCharacters(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	characters, err := s.store.ListCharactersByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(characters))
	for _, character := range characters {
		items = append(items, characterPayload(character))
	}
	return items, nil
}

// GetCharacter returns a character with its arcs, facts, and both
// directions of its relationships.
func (s *Service) GetCharacter(ctx context.Context, session Session, characterID string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindCharacter, characterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}

	character, err := s.store.GetCharacter(ctx, characterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Character not found")
	}
	if err != nil {
		return nil, err
	}

	arcs, err := s.store.ListArcsByCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	facts, err := s.store.ListFactsByCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	outgoing, err := s.store.ListOutgoingRelationships(ctx, characterID)
	if err != nil {
		return nil, err
	}
	incoming, err := s.store.ListIncomingRelationships(ctx, characterID)
	if err != nil {
		return nil, err
	}

	payload := characterPayload(character)
	arcItems := make([]map[string]any, 0, len(arcs))
	for _, arc := range arcs {
		arcItems = append(arcItems, arcPayload(arc))
	}
	factItems := make([]map[string]any, 0, len(facts))
	for _, fact := range facts {
		factItems = append(factItems, factPayload(fact))
	}
	outgoingItems := make([]map[string]any, 0, len(outgoing))
	for _, rel := range outgoing {
		outgoingItems = append(outgoingItems, relationshipPayload(rel))
	}
	incomingItems := make([]map[string]any, 0, len(incoming))
	for _, rel := range incoming {
		incomingItems = append(incomingItems, relationshipPayload(rel))
	}
	payload["arcs"] = arcItems
	payload["facts"] = factItems
	payload["relationships"] = outgoingItems
	payload["relatedTo"] = incomingItems
	return payload, nil
}

func (s *Service) UpdateCharacter(ctx context.Context, session Session, characterID, name, bio, imageURL string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindCharacter, characterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	character, err := s.store.UpdateCharacter(ctx, characterID, strings.TrimSpace(name), strings.TrimSpace(bio), strings.TrimSpace(imageURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Character not found")
	}
	if err != nil {
		return nil, err
	}
	s.indexCharacter(character)
	return characterPayload(character), nil
}

func (s *Service) DeleteCharacter(ctx context.Context, session Session, characterID string) error {
	projectID, err := s.resolveProjectID(ctx, store.KindCharacter, characterID)
	if err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return err
	}
	if err := s.store.DeleteCharacter(ctx, characterID); err != nil {
		return err
	}
	if s.indexer != nil {
		_ = s.indexer.DeleteCharacter(characterID)
	}
	return nil
}

func (s *Service) indexCharacter(character store.Character) {
	if s.indexer == nil {
		return
	}
	_ = s.indexer.IndexCharacter(search.CharacterRecord{
		ID:        character.ID,
		Name:      character.Name,
		Bio:       character.Bio,
		ProjectID: character.ProjectID,
	})
}

// Character arcs

func (s *Service) CreateArc(ctx context.Context, session Session, characterID, title string, season int, summary string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindCharacter, characterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	arcTitle := strings.TrimSpace(title)
	if arcTitle == "" {
		return nil, validationErr("title is required")
	}
	if season < 1 {
		season = 1
	}

	arc, err := s.store.InsertArc(ctx, store.CharacterArc{
		ID:          util.NewID("arc"),
		CharacterID: characterID,
		Title:       arcTitle,
		Season:      season,
		Summary:     strings.TrimSpace(summary),
	})
	if err != nil {
		return nil, err
	}
	return arcPayload(arc), nil
}

func (s *Service) ListArcs(ctx context.Context, session Session, characterID string) ([]map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindCharacter, characterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	arcs, err := s.store.ListArcsByCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(arcs))
	for _, arc := range arcs {
		items = append(items, arcPayload(arc))
	}
	return items, nil
}

func (s *Service) UpdateArc(ctx context.Context, session Session, arcID, title string, season int, summary string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindArc, arcID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	arc, err := s.store.UpdateArc(ctx, arcID, strings.TrimSpace(title), season, strings.TrimSpace(summary))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Character arc not found")
	}
	if err != nil {
		return nil, err
	}
	return arcPayload(arc), nil
}

func (s *Service) DeleteArc(ctx context.Context, session Session, arcID string) error {
	projectID, err := s.resolveProjectID(ctx, store.KindArc, arcID)
	if err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return err
	}
	return s.store.DeleteArc(ctx, arcID)
}

// Arc beats

func (s *Service) CreateBeat(ctx context.Context, session Session, arcID, title, summary string, sceneID *string, index int) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindArc, arcID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	beatTitle := strings.TrimSpace(title)
	if beatTitle == "" {
		return nil, validationErr("title is required")
	}
	if err := s.checkBeatScene(ctx, projectID, sceneID); err != nil {
		return nil, err
	}

	unlock := s.lockParent(arcID)
	defer unlock()

	beat, err := s.store.InsertBeat(ctx, store.ArcBeat{
		ID:      util.NewID("bet"),
		ArcID:   arcID,
		Title:   beatTitle,
		Summary: strings.TrimSpace(summary),
		SceneID: sceneID,
		Index:   index,
	})
	if err != nil {
		return nil, err
	}
	return beatPayload(beat), nil
}

func (s *Service) ListBeats(ctx context.Context, session Session, arcID string) ([]map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindArc, arcID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	beats, err := s.store.ListBeatsByArc(ctx, arcID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(beats))
	for _, beat := range beats {
		items = append(items, beatPayload(beat))
	}
	return items, nil
}

func (s *Service) UpdateBeat(ctx context.Context, session Session, beatID, title, summary string, sceneID *string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindBeat, beatID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	if err := s.checkBeatScene(ctx, projectID, sceneID); err != nil {
		return nil, err
	}
	beat, err := s.store.UpdateBeat(ctx, beatID, strings.TrimSpace(title), strings.TrimSpace(summary), sceneID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Arc beat not found")
	}
	if err != nil {
		return nil, err
	}
	return beatPayload(beat), nil
}

func (s *Service) DeleteBeat(ctx context.Context, session Session, beatID string) error {
	projectID, err := s.resolveProjectID(ctx, store.KindBeat, beatID)
	if err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return err
	}

	err = s.store.DeleteBeat(ctx, beatID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("Arc beat not found")
	}
	return err
}

// checkBeatScene verifies a beat's optional scene back-reference stays
// within the owning project.
func (s *Service) checkBeatScene(ctx context.Context, projectID string, sceneID *string) error {
	if sceneID == nil || *sceneID == "" {
		return nil
	}
	sceneProject, err := s.store.ResolveProjectID(ctx, store.KindScene, *sceneID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("Scene not found")
	}
	if err != nil {
		return err
	}
	if sceneProject != projectID {
		return validationErr("Scene belongs to a different project")
	}
	return nil
}

// Character facts

func (s *Service) CreateFact(ctx context.Context, session Session, characterID, fact string, knownBy []string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindCharacter, characterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	factText := strings.TrimSpace(fact)
	if factText == "" {
		return nil, validationErr("fact is required")
	}

	created, err := s.store.InsertFact(ctx, store.CharacterFact{
		ID:          util.NewID("fct"),
		CharacterID: characterID,
		Fact:        factText,
		KnownBy:     knownBy,
	})
	if err != nil {
		return nil, err
	}
	return factPayload(created), nil
}

func (s *Service) ListFacts(ctx context.Context, session Session, characterID string) ([]map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindCharacter, characterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	facts, err := s.store.ListFactsByCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(facts))
	for _, fact := range facts {
		items = append(items, factPayload(fact))
	}
	return items, nil
}

func (s *Service) UpdateFact(ctx context.Context, session Session, factID, fact string, knownBy []string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindFact, factID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateFact(ctx, factID, strings.TrimSpace(fact), knownBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Character fact not found")
	}
	if err != nil {
		return nil, err
	}
	return factPayload(updated), nil
}

func (s *Service) DeleteFact(ctx context.Context, session Session, factID string) error {
	projectID, err := s.resolveProjectID(ctx, store.KindFact, factID)
	if err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return err
	}
	return s.store.DeleteFact(ctx, factID)
}

// Relationships

// CreateRelationship adds a directed edge between two characters.
// Ownership derives from the from-character's project, and both ends
// must belong to it.
func (s *Service) CreateRelationship(ctx context.Context, session Session, fromID, toID, label, description, dynamic string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindCharacter, fromID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	relationshipLabel := strings.TrimSpace(label)
	if relationshipLabel == "" {
		return nil, validationErr("label is required")
	}

	target, err := s.store.GetCharacter(ctx, toID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Character not found")
	}
	if err != nil {
		return nil, err
	}
	if target.ProjectID != projectID {
		return nil, validationErr("Characters belong to different projects")
	}

	rel, err := s.store.InsertRelationship(ctx, store.CharacterRelationship{
		ID:          util.NewID("rel"),
		FromID:      fromID,
		ToID:        toID,
		Label:       relationshipLabel,
		Description: strings.TrimSpace(description),
		Dynamic:     strings.TrimSpace(dynamic),
	})
	if err != nil {
		return nil, err
	}
	return relationshipPayload(rel), nil
}

func (s *Service) ListRelationships(ctx context.Context, session Session, characterID string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindCharacter, characterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	outgoing, err := s.store.ListOutgoingRelationships(ctx, characterID)
	if err != nil {
		return nil, err
	}
	incoming, err := s.store.ListIncomingRelationships(ctx, characterID)
	if err != nil {
		return nil, err
	}
	outgoingItems := make([]map[string]any, 0, len(outgoing))
	for _, rel := range outgoing {
		outgoingItems = append(outgoingItems, relationshipPayload(rel))
	}
	incomingItems := make([]map[string]any, 0, len(incoming))
	for _, rel := range incoming {
		incomingItems = append(incomingItems, relationshipPayload(rel))
	}
	return map[string]any{
		"outgoing": outgoingItems,
		"incoming": incomingItems,
	}, nil
}

func (s *Service) UpdateRelationship(ctx context.Context, session Session, relationshipID, label, description, dynamic string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindRelationship, relationshipID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	rel, err := s.store.UpdateRelationship(ctx, relationshipID, strings.TrimSpace(label), strings.TrimSpace(description), strings.TrimSpace(dynamic))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Relationship not found")
	}
	if err != nil {
		return nil, err
	}
	return relationshipPayload(rel), nil
}

func (s *Service) DeleteRelationship(ctx context.Context, session Session, relationshipID string) error {
	projectID, err := s.resolveProjectID(ctx, store.KindRelationship, relationshipID)
	if err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return err
	}
	return s.store.DeleteRelationship(ctx, relationshipID)
}

// Locations

func (s *Service) CreateLocation(ctx context.Context, session Session, projectID, name, description, imageURL string) (map[string]any, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	locationName := strings.TrimSpace(name)
	if locationName == "" {
		return nil, validationErr("name is required")
	}

	location, err := s.store.InsertLocation(ctx, store.Location{
		ID:          util.NewID("loc"),
		ProjectID:   projectID,
		Name:        locationName,
		Description: strings.TrimSpace(description),
		ImageURL:    strings.TrimSpace(imageURL),
	})
	if err != nil {
		return nil, err
	}
	return locationPayload(location), nil
}

func (s *Service) ListLocations(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	locations, err := s.store.ListLocationsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(locations))
	for _, location := range locations {
		items = append(items, locationPayload(location))
	}
	return items, nil
}

func (s *Service) UpdateLocation(ctx context.Context, session Session, locationID, name, description, imageURL string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindLocation, locationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	location, err := s.store.UpdateLocation(ctx, locationID, strings.TrimSpace(name), strings.TrimSpace(description), strings.TrimSpace(imageURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Location not found")
	}
	if err != nil {
		return nil, err
	}
	return locationPayload(location), nil
}

func (s *Service) DeleteLocation(ctx context.Context, session Session, locationID string) error {
	projectID, err := s.resolveProjectID(ctx, store.KindLocation, locationID)
	if err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return err
	}
	return s.store.DeleteLocation(ctx, locationID)
}

// World rules

func (s *Service) CreateRule(ctx context.Context, session Session, projectID, category, title, description string) (map[string]any, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	ruleTitle := strings.TrimSpace(title)
	if ruleTitle == "" {
		return nil, validationErr("title is required")
	}

	rule, err := s.store.InsertRule(ctx, store.WorldRule{
		ID:          util.NewID("rul"),
		ProjectID:   projectID,
		Category:    strings.TrimSpace(category),
		Title:       ruleTitle,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		return nil, err
	}
	s.indexRule(rule)
	return rulePayload(rule), nil
}

func (s *Service) ListRules(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	rules, err := s.store.ListRulesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(rules))
	for _, rule := range rules {
		items = append(items, rulePayload(rule))
	}
	return items, nil
}

func (s *Service) UpdateRule(ctx context.Context, session Session, ruleID, category, title, description string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindRule, ruleID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	rule, err := s.store.UpdateRule(ctx, ruleID, strings.TrimSpace(category), strings.TrimSpace(title), strings.TrimSpace(description))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("World rule not found")
	}
	if err != nil {
		return nil, err
	}
	s.indexRule(rule)
	return rulePayload(rule), nil
}

func (s *Service) DeleteRule(ctx context.Context, session Session, ruleID string) error {
	projectID, err := s.resolveProjectID(ctx, store.KindRule, ruleID)
	if err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return err
	}
	if err := s.store.DeleteRule(ctx, ruleID); err != nil {
		return err
	}
	if s.indexer != nil {
		_ = s.indexer.DeleteRule(ruleID)
	}
	return nil
}

func (s *Service) indexRule(rule store.WorldRule) {
	if s.indexer == nil {
		return
	}
	_ = s.indexer.IndexRule(search.RuleRecord{
		ID:          rule.ID,
		Title:       rule.Title,
		Description: rule.Description,
		Category:    rule.Category,
		ProjectID:   rule.ProjectID,
	})
}

// Search

// Search runs a project-scoped full-text search over scenes, characters,
// and world rules. Any member may search.
func (s *Service) Search(ctx context.Context, session Session, projectID, text, filterType string, limit, offset int) (search.Response, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return search.Response{}, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return search.Response{}, err
	}

	results, total, err := s.searcher.Search(search.Query{
		Text:       text,
		ProjectID:  projectID,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return search.Response{}, err
	}
	if results == nil {
		results = []search.Result{}
	}
	return search.Response{Results: results, Total: total, Query: text}, nil
}

// Payloads

func characterPayload(character store.Character) map[string]any {
	return map[string]any{
		"id":        character.ID,
		"projectId": character.ProjectID,
		"name":      character.Name,
		"bio":       character.Bio,
		"imageUrl":  character.ImageURL,
		"createdAt": character.CreatedAt,
		"updatedAt": character.UpdatedAt,
	}
}

func arcPayload(arc store.CharacterArc) map[string]any {
	return map[string]any{
		"id":          arc.ID,
		"characterId": arc.CharacterID,
		"title":       arc.Title,
		"season":      arc.Season,
		"summary":     arc.Summary,
		"createdAt":   arc.CreatedAt,
		"updatedAt":   arc.UpdatedAt,
	}
}

func beatPayload(beat store.ArcBeat) map[string]any {
	return map[string]any{
		"id":        beat.ID,
		"arcId":     beat.ArcID,
		"title":     beat.Title,
		"summary":   beat.Summary,
		"sceneId":   beat.SceneID,
		"index":     beat.Index,
		"createdAt": beat.CreatedAt,
		"updatedAt": beat.UpdatedAt,
	}
}

func factPayload(fact store.CharacterFact) map[string]any {
	return map[string]any{
		"id":          fact.ID,
		"characterId": fact.CharacterID,
		"fact":        fact.Fact,
		"knownBy":     fact.KnownBy,
		"createdAt":   fact.CreatedAt,
		"updatedAt":   fact.UpdatedAt,
	}
}

func relationshipPayload(rel store.CharacterRelationship) map[string]any {
	return map[string]any{
		"id":          rel.ID,
		"fromId":      rel.FromID,
		"toId":        rel.ToID,
		"label":       rel.Label,
		"description": rel.Description,
		"dynamic":     rel.Dynamic,
		"fromName":    rel.FromName,
		"toName":      rel.ToName,
		"createdAt":   rel.CreatedAt,
		"updatedAt":   rel.UpdatedAt,
	}
}

func locationPayload(location store.Location) map[string]any {
	return map[string]any{
		"id":          location.ID,
		"projectId":   location.ProjectID,
		"name":        location.Name,
		"description": location.Description,
		"imageUrl":    location.ImageURL,
		"createdAt":   location.CreatedAt,
		"updatedAt":   location.UpdatedAt,
	}
}

func rulePayload(rule store.WorldRule) map[string]any {
	return map[string]any{
		"id":          rule.ID,
		"projectId":   rule.ProjectID,
		"category":    rule.Category,
		"title":       rule.Title,
		"description": rule.Description,
		"createdAt":   rule.CreatedAt,
		"updatedAt":   rule.UpdatedAt,
	}
}
