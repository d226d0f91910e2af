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

// Acts

func (s *Service) CreateAct(ctx context.Context, session Session, projectID, title, summary string, index int) (map[string]any, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	actTitle := strings.TrimSpace(title)
	if actTitle == "" {
		return nil, validationErr("title is required")
	}

	unlock := s.lockParent(projectID)
	defer unlock()

	act, err := s.store.InsertAct(ctx, store.Act{
		ID:        util.NewID("act"),
		ProjectID: projectID,
		Title:     actTitle,
		Summary:   strings.TrimSpace(summary),
		Index:     index,
	})
	if err != nil {
		return nil, err
	}
	return actPayload(act), nil
}

func (s *Service) ListActs(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	acts, err := s.store.ListActsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(acts))
	for _, act := range acts {
		items = append(items, actPayload(act))
	}
	return items, nil
}

func (s *Service) UpdateAct(ctx context.Context, session Session, actID, title, summary string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindAct, actID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	act, err := s.store.UpdateAct(ctx, actID, strings.TrimSpace(title), strings.TrimSpace(summary))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Act not found")
	}
	if err != nil {
		return nil, err
	}
	return actPayload(act), nil
}

func (s *Service) DeleteAct(ctx context.Context, session Session, actID string) error {
	projectID, err := s.resolveProjectID(ctx, store.KindAct, actID)
	if err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return err
	}
	unlock := s.lockParent(projectID)
	defer unlock()

	err = s.store.DeleteAct(ctx, actID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("Act not found")
	}
	return err
}

// ReorderActs assigns indices 0..n-1 to the project's acts in the given
// order. The id list must cover the sibling group exactly; a mismatch
// aborts with Conflict and leaves the prior order intact.
func (s *Service) ReorderActs(ctx context.Context, session Session, projectID string, actIDs []string) ([]map[string]any, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	if len(actIDs) == 0 {
		return nil, validationErr("orderedIds must not be empty")
	}

	unlock := s.lockParent(projectID)
	defer unlock()

	if err := s.store.ReorderActs(ctx, projectID, actIDs); err != nil {
		if errors.Is(err, store.ErrSiblingMismatch) {
			return nil, conflictErr("Ordered ids do not match the current acts")
		}
		return nil, err
	}
	return s.listActs(ctx, projectID)
}

func (s *Service) listActs(ctx context.Context, projectID string) ([]map[string]any, error) {
	acts, err := s.store.ListActsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(acts))
	for _, act := range acts {
		items = append(items, actPayload(act))
	}
	return items, nil
}

// Sequences

func (s *Service) CreateSequence(ctx context.Context, session Session, actID, title, summary string, index int) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindAct, actID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	sequenceTitle := strings.TrimSpace(title)
	if sequenceTitle == "" {
		return nil, validationErr("title is required")
	}

	unlock := s.lockParent(actID)
	defer unlock()

	sequence, err := s.store.InsertSequence(ctx, store.Sequence{
		ID:      util.NewID("seq"),
		ActID:   actID,
		Title:   sequenceTitle,
		Summary: strings.TrimSpace(summary),
		Index:   index,
	})
	if err != nil {
		return nil, err
	}
	return sequencePayload(sequence), nil
}

func (s *Service) ListSequences(ctx context.Context, session Session, actID string) ([]map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindAct, actID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	sequences, err := s.store.ListSequencesByAct(ctx, actID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(sequences))
	for _, sequence := range sequences {
		items = append(items, sequencePayload(sequence))
	}
	return items, nil
}

func (s *Service) UpdateSequence(ctx context.Context, session Session, sequenceID, title, summary string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindSequence, sequenceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	sequence, err := s.store.UpdateSequence(ctx, sequenceID, strings.TrimSpace(title), strings.TrimSpace(summary))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Sequence not found")
	}
	if err != nil {
		return nil, err
	}
	return sequencePayload(sequence), nil
}

func (s *Service) DeleteSequence(ctx context.Context, session Session, sequenceID string) error {
	projectID, err := s.resolveProjectID(ctx, store.KindSequence, sequenceID)
	if err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return err
	}
	sequence, err := s.store.GetSequence(ctx, sequenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("Sequence not found")
	}
	if err != nil {
		return err
	}

	unlock := s.lockParent(sequence.ActID)
	defer unlock()

	err = s.store.DeleteSequence(ctx, sequenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("Sequence not found")
	}
	return err
}

func (s *Service) ReorderSequences(ctx context.Context, session Session, actID string, sequenceIDs []string) ([]map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindAct, actID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	if len(sequenceIDs) == 0 {
		return nil, validationErr("orderedIds must not be empty")
	}

	unlock := s.lockParent(actID)
	defer unlock()

	if err := s.store.ReorderSequences(ctx, actID, sequenceIDs); err != nil {
		if errors.Is(err, store.ErrSiblingMismatch) {
			return nil, conflictErr("Ordered ids do not match the current sequences")
		}
		return nil, err
	}

	sequences, err := s.store.ListSequencesByAct(ctx, actID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(sequences))
	for _, sequence := range sequences {
		items = append(items, sequencePayload(sequence))
	}
	return items, nil
}

// Scenes

func (s *Service) CreateScene(ctx context.Context, session Session, sequenceID, title, summary string, locationID *string, index int, characterIDs []string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindSequence, sequenceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	sceneTitle := strings.TrimSpace(title)
	if sceneTitle == "" {
		return nil, validationErr("title is required")
	}
	if err := s.checkSceneLocation(ctx, projectID, locationID); err != nil {
		return nil, err
	}

	unlock := s.lockParent(sequenceID)
	defer unlock()

	scene, err := s.store.InsertScene(ctx, store.Scene{
		ID:         util.NewID("scn"),
		SequenceID: sequenceID,
		Title:      sceneTitle,
		Summary:    strings.TrimSpace(summary),
		LocationID: locationID,
		Index:      index,
	})
	if err != nil {
		return nil, err
	}

	if len(characterIDs) > 0 {
		if err := s.store.ReplaceSceneCharacters(ctx, scene.ID, characterIDs); err != nil {
			return nil, err
		}
	}

	s.indexScene(scene, projectID)
	return s.scenePayload(ctx, scene)
}

func (s *Service) ListScenes(ctx context.Context, session Session, sequenceID string) ([]map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindSequence, sequenceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	scenes, err := s.store.ListScenesBySequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(scenes))
	for _, scene := range scenes {
		payload, err := s.scenePayload(ctx, scene)
		if err != nil {
			return nil, err
		}
		items = append(items, payload)
	}
	return items, nil
}

func (s *Service) UpdateScene(ctx context.Context, session Session, sceneID, title, summary string, locationID *string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindScene, sceneID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	if err := s.checkSceneLocation(ctx, projectID, locationID); err != nil {
		return nil, err
	}
	scene, err := s.store.UpdateScene(ctx, sceneID, strings.TrimSpace(title), strings.TrimSpace(summary), locationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Scene not found")
	}
	if err != nil {
		return nil, err
	}
	s.indexScene(scene, projectID)
	return s.scenePayload(ctx, scene)
}

func (s *Service) DeleteScene(ctx context.Context, session Session, sceneID string) error {
	projectID, err := s.resolveProjectID(ctx, store.KindScene, sceneID)
	if err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return err
	}
	scene, err := s.store.GetScene(ctx, sceneID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("Scene not found")
	}
	if err != nil {
		return err
	}

	unlock := s.lockParent(scene.SequenceID)
	defer unlock()

	err = s.store.DeleteScene(ctx, sceneID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("Scene not found")
	}
	if err != nil {
		return err
	}
	if s.indexer != nil {
		_ = s.indexer.DeleteScene(sceneID)
	}
	return nil
}

func (s *Service) ReorderScenes(ctx context.Context, session Session, sequenceID string, sceneIDs []string) ([]map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindSequence, sequenceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	if len(sceneIDs) == 0 {
		return nil, validationErr("orderedIds must not be empty")
	}

	unlock := s.lockParent(sequenceID)
	defer unlock()

	if err := s.store.ReorderScenes(ctx, sequenceID, sceneIDs); err != nil {
		if errors.Is(err, store.ErrSiblingMismatch) {
			return nil, conflictErr("Ordered ids do not match the current scenes")
		}
		return nil, err
	}

	scenes, err := s.store.ListScenesBySequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(scenes))
	for _, scene := range scenes {
		payload, err := s.scenePayload(ctx, scene)
		if err != nil {
			return nil, err
		}
		items = append(items, payload)
	}
	return items, nil
}

// SetSceneCharacters replaces the scene's character set wholesale. Every
// character must belong to the scene's project.
func (s *Service) SetSceneCharacters(ctx context.Context, session Session, sceneID string, characterIDs []string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindScene, sceneID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}

	for _, characterID := range characterIDs {
		character, err := s.store.GetCharacter(ctx, characterID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr("Character not found")
		}
		if err != nil {
			return nil, err
		}
		if character.ProjectID != projectID {
			return nil, validationErr("Character belongs to a different project")
		}
	}

	if err := s.store.ReplaceSceneCharacters(ctx, sceneID, characterIDs); err != nil {
		return nil, err
	}
	scene, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	return s.scenePayload(ctx, scene)
}

func (s *Service) checkSceneLocation(ctx context.Context, projectID string, locationID *string) error {
	if locationID == nil || *locationID == "" {
		return nil
	}
	location, err := s.store.GetLocation(ctx, *locationID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("Location not found")
	}
	if err != nil {
		return err
	}
	if location.ProjectID != projectID {
		return validationErr("Location belongs to a different project")
	}
	return nil
}

func (s *Service) indexScene(scene store.Scene, projectID string) {
	if s.indexer == nil {
		return
	}
	_ = s.indexer.IndexScene(search.SceneRecord{
		ID:        scene.ID,
		Title:     scene.Title,
		Summary:   scene.Summary,
		ProjectID: projectID,
	})
}

// Shots

func (s *Service) CreateShot(ctx context.Context, session Session, sceneID, description, cameraNotes string, index int) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindScene, sceneID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}

	unlock := s.lockParent(sceneID)
	defer unlock()

	shot, err := s.store.InsertShot(ctx, store.Shot{
		ID:          util.NewID("sht"),
		SceneID:     sceneID,
		Description: strings.TrimSpace(description),
		CameraNotes: strings.TrimSpace(cameraNotes),
		Index:       index,
	})
	if err != nil {
		return nil, err
	}
	return shotPayload(shot), nil
}

func (s *Service) ListShots(ctx context.Context, session Session, sceneID string) ([]map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindScene, sceneID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	shots, err := s.store.ListShotsByScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(shots))
	for _, shot := range shots {
		items = append(items, shotPayload(shot))
	}
	return items, nil
}

func (s *Service) UpdateShot(ctx context.Context, session Session, shotID, description, cameraNotes string) (map[string]any, error) {
	projectID, err := s.resolveProjectID(ctx, store.KindShot, shotID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}
	shot, err := s.store.UpdateShot(ctx, shotID, strings.TrimSpace(description), strings.TrimSpace(cameraNotes))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Shot not found")
	}
	if err != nil {
		return nil, err
	}
	return shotPayload(shot), nil
}

func (s *Service) DeleteShot(ctx context.Context, session Session, shotID string) error {
	projectID, err := s.resolveProjectID(ctx, store.KindShot, shotID)
	if err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return err
	}
	shot, err := s.store.GetShot(ctx, shotID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("Shot not found")
	}
	if err != nil {
		return err
	}

	unlock := s.lockParent(shot.SceneID)
	defer unlock()

	err = s.store.DeleteShot(ctx, shotID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("Shot not found")
	}
	return err
}

// Payloads

func actPayload(act store.Act) map[string]any {
	return map[string]any{
		"id":        act.ID,
		"projectId": act.ProjectID,
		"title":     act.Title,
		"summary":   act.Summary,
		"index":     act.Index,
		"createdAt": act.CreatedAt,
		"updatedAt": act.UpdatedAt,
	}
}

func sequencePayload(sequence store.Sequence) map[string]any {
	return map[string]any{
		"id":        sequence.ID,
		"actId":     sequence.ActID,
		"title":     sequence.Title,
		"summary":   sequence.Summary,
		"index":     sequence.Index,
		"createdAt": sequence.CreatedAt,
		"updatedAt": sequence.UpdatedAt,
	}
}

func (s *Service) scenePayload(ctx context.Context, scene store.Scene) (map[string]any, error) {
	characters, err := s.store.ListSceneCharacters(ctx, scene.ID)
	if err != nil {
		return nil, err
	}
	refs := make([]map[string]any, 0, len(characters))
	for _, ref := range characters {
		refs = append(refs, map[string]any{
			"id":       ref.ID,
			"name":     ref.Name,
			"imageUrl": ref.ImageURL,
		})
	}
	return map[string]any{
		"id":         scene.ID,
		"sequenceId": scene.SequenceID,
		"title":      scene.Title,
		"summary":    scene.Summary,
		"locationId": scene.LocationID,
		"index":      scene.Index,
		"characters": refs,
		"createdAt":  scene.CreatedAt,
		"updatedAt":  scene.UpdatedAt,
	}, nil
}

func shotPayload(shot store.Shot) map[string]any {
	return map[string]any{
		"id":          shot.ID,
		"sceneId":     shot.SceneID,
		"description": shot.Description,
		"cameraNotes": shot.CameraNotes,
		"index":       shot.Index,
		"createdAt":   shot.CreatedAt,
		"updatedAt":   shot.UpdatedAt,
	}
}
