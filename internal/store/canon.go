package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// ---- characters ----

func (s *PostgresStore) InsertCharacter(ctx context.Context, character Character) (Character, error) {
	var item Character
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO characters (id, project_id, name, bio, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, project_id, name, bio, image_url, created_at, updated_at
	`, character.ID, character.ProjectID, character.Name, character.Bio, character.ImageURL).Scan(
		&item.ID, &item.ProjectID, &item.Name, &item.Bio, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return Character{}, fmt.Errorf("insert character: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListCharactersByProject(ctx context.Context, projectID string) ([]Character, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, bio, image_url, created_at, updated_at
		FROM characters WHERE project_id=$1 ORDER BY name ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	items := make([]Character, 0)
	for rows.Next() {
		var item Character
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Name, &item.Bio, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate characters: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetCharacter(ctx context.Context, characterID string) (Character, error) {
	var item Character
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, bio, image_url, created_at, updated_at
		FROM characters WHERE id=$1
	`, characterID).Scan(&item.ID, &item.ProjectID, &item.Name, &item.Bio, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Character{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateCharacter(ctx context.Context, characterID, name, bio, imageURL string) (Character, error) {
	var item Character
	err := s.db.QueryRowContext(ctx, `
		UPDATE characters SET name=$2, bio=$3, image_url=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING id, project_id, name, bio, image_url, created_at, updated_at
	`, characterID, name, bio, imageURL).Scan(&item.ID, &item.ProjectID, &item.Name, &item.Bio, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Character{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteCharacter(ctx context.Context, characterID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM characters WHERE id=$1`, characterID)
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	return nil
}

// ---- character arcs ----

func (s *PostgresStore) InsertArc(ctx context.Context, arc CharacterArc) (CharacterArc, error) {
	var item CharacterArc
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO character_arcs (id, character_id, title, season, summary)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, character_id, title, season, summary, created_at, updated_at
	`, arc.ID, arc.CharacterID, arc.Title, arc.Season, arc.Summary).Scan(
		&item.ID, &item.CharacterID, &item.Title, &item.Season, &item.Summary, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return CharacterArc{}, fmt.Errorf("insert arc: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListArcsByCharacter(ctx context.Context, characterID string) ([]CharacterArc, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, character_id, title, season, summary, created_at, updated_at
		FROM character_arcs WHERE character_id=$1 ORDER BY season ASC
	`, characterID)
	if err != nil {
		return nil, fmt.Errorf("list arcs: %w", err)
	}
	defer rows.Close()

	items := make([]CharacterArc, 0)
	for rows.Next() {
		var item CharacterArc
		if err := rows.Scan(&item.ID, &item.CharacterID, &item.Title, &item.Season, &item.Summary, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan arc: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate arcs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetArc(ctx context.Context, arcID string) (CharacterArc, error) {
	var item CharacterArc
	err := s.db.QueryRowContext(ctx, `
		SELECT id, character_id, title, season, summary, created_at, updated_at
		FROM character_arcs WHERE id=$1
	`, arcID).Scan(&item.ID, &item.CharacterID, &item.Title, &item.Season, &item.Summary, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return CharacterArc{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateArc(ctx context.Context, arcID, title string, season int, summary string) (CharacterArc, error) {
	var item CharacterArc
	err := s.db.QueryRowContext(ctx, `
		UPDATE character_arcs SET title=$2, season=$3, summary=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING id, character_id, title, season, summary, created_at, updated_at
	`, arcID, title, season, summary).Scan(&item.ID, &item.CharacterID, &item.Title, &item.Season, &item.Summary, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return CharacterArc{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteArc(ctx context.Context, arcID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM character_arcs WHERE id=$1`, arcID)
	if err != nil {
		return fmt.Errorf("delete arc: %w", err)
	}
	return nil
}

// ---- arc beats ----

func (s *PostgresStore) InsertBeat(ctx context.Context, beat ArcBeat) (ArcBeat, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ArcBeat{}, fmt.Errorf("begin insert beat tx: %w", err)
	}

	index, err := nextIndexTx(ctx, tx, "arc_beats", "arc_id", beat.ArcID, beat.Index)
	if err != nil {
		_ = tx.Rollback()
		return ArcBeat{}, err
	}

	var item ArcBeat
	err = tx.QueryRowContext(ctx, `
		INSERT INTO arc_beats (id, arc_id, title, summary, scene_id, "index")
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, arc_id, title, summary, scene_id, "index", created_at, updated_at
	`, beat.ID, beat.ArcID, beat.Title, beat.Summary, beat.SceneID, index).Scan(
		&item.ID, &item.ArcID, &item.Title, &item.Summary, &item.SceneID, &item.Index, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return ArcBeat{}, fmt.Errorf("insert beat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ArcBeat{}, fmt.Errorf("commit insert beat tx: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListBeatsByArc(ctx context.Context, arcID string) ([]ArcBeat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, arc_id, title, summary, scene_id, "index", created_at, updated_at
		FROM arc_beats WHERE arc_id=$1 ORDER BY "index" ASC
	`, arcID)
	if err != nil {
		return nil, fmt.Errorf("list beats: %w", err)
	}
	defer rows.Close()

	items := make([]ArcBeat, 0)
	for rows.Next() {
		var item ArcBeat
		if err := rows.Scan(&item.ID, &item.ArcID, &item.Title, &item.Summary, &item.SceneID, &item.Index, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan beat: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate beats: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateBeat(ctx context.Context, beatID, title, summary string, sceneID *string) (ArcBeat, error) {
	var item ArcBeat
	err := s.db.QueryRowContext(ctx, `
		UPDATE arc_beats SET title=$2, summary=$3, scene_id=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING id, arc_id, title, summary, scene_id, "index", created_at, updated_at
	`, beatID, title, summary, sceneID).Scan(&item.ID, &item.ArcID, &item.Title, &item.Summary, &item.SceneID, &item.Index, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return ArcBeat{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteBeat(ctx context.Context, beatID string) error {
	return s.deleteAndCompact(ctx, "arc_beats", "arc_id", beatID)
}

// ---- character facts ----

// Facts store their known-by character ids as a JSONB array; the references
// are weak and are not validated against deletions.

func (s *PostgresStore) InsertFact(ctx context.Context, fact CharacterFact) (CharacterFact, error) {
	knownBy, err := json.Marshal(emptyIfNil(fact.KnownBy))
	if err != nil {
		return CharacterFact{}, fmt.Errorf("marshal known by: %w", err)
	}

	var item CharacterFact
	var rawKnownBy []byte
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO character_facts (id, character_id, fact, known_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, character_id, fact, known_by, created_at, updated_at
	`, fact.ID, fact.CharacterID, fact.Fact, knownBy).Scan(
		&item.ID, &item.CharacterID, &item.Fact, &rawKnownBy, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return CharacterFact{}, fmt.Errorf("insert fact: %w", err)
	}
	if err := json.Unmarshal(rawKnownBy, &item.KnownBy); err != nil {
		return CharacterFact{}, fmt.Errorf("unmarshal known by: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListFactsByCharacter(ctx context.Context, characterID string) ([]CharacterFact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, character_id, fact, known_by, created_at, updated_at
		FROM character_facts WHERE character_id=$1 ORDER BY created_at ASC
	`, characterID)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	items := make([]CharacterFact, 0)
	for rows.Next() {
		var item CharacterFact
		var rawKnownBy []byte
		if err := rows.Scan(&item.ID, &item.CharacterID, &item.Fact, &rawKnownBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		if err := json.Unmarshal(rawKnownBy, &item.KnownBy); err != nil {
			return nil, fmt.Errorf("unmarshal known by: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateFact(ctx context.Context, factID, factText string, knownBy []string) (CharacterFact, error) {
	encoded, err := json.Marshal(emptyIfNil(knownBy))
	if err != nil {
		return CharacterFact{}, fmt.Errorf("marshal known by: %w", err)
	}

	var item CharacterFact
	var rawKnownBy []byte
	err = s.db.QueryRowContext(ctx, `
		UPDATE character_facts SET fact=$2, known_by=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING id, character_id, fact, known_by, created_at, updated_at
	`, factID, factText, encoded).Scan(&item.ID, &item.CharacterID, &item.Fact, &rawKnownBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return CharacterFact{}, err
	}
	if err := json.Unmarshal(rawKnownBy, &item.KnownBy); err != nil {
		return CharacterFact{}, fmt.Errorf("unmarshal known by: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteFact(ctx context.Context, factID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM character_facts WHERE id=$1`, factID)
	if err != nil {
		return fmt.Errorf("delete fact: %w", err)
	}
	return nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// ---- character relationships ----

func (s *PostgresStore) InsertRelationship(ctx context.Context, rel CharacterRelationship) (CharacterRelationship, error) {
	var item CharacterRelationship
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO character_relationships (id, from_id, to_id, label, description, dynamic)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, from_id, to_id, label, description, dynamic, created_at, updated_at
	`, rel.ID, rel.FromID, rel.ToID, rel.Label, rel.Description, rel.Dynamic).Scan(
		&item.ID, &item.FromID, &item.ToID, &item.Label, &item.Description, &item.Dynamic, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return CharacterRelationship{}, fmt.Errorf("insert relationship: %w", err)
	}
	return item, nil
}

// ListOutgoingRelationships returns edges where the character is the source.
func (s *PostgresStore) ListOutgoingRelationships(ctx context.Context, characterID string) ([]CharacterRelationship, error) {
	return s.listRelationships(ctx, `
		SELECT r.id, r.from_id, r.to_id, r.label, r.description, r.dynamic, r.created_at, r.updated_at, cf.name, ct.name
		FROM character_relationships r
		JOIN characters cf ON cf.id = r.from_id
		JOIN characters ct ON ct.id = r.to_id
		WHERE r.from_id=$1
		ORDER BY r.created_at ASC
	`, characterID)
}

// ListIncomingRelationships returns edges where the character is the target.
func (s *PostgresStore) ListIncomingRelationships(ctx context.Context, characterID string) ([]CharacterRelationship, error) {
	return s.listRelationships(ctx, `
		SELECT r.id, r.from_id, r.to_id, r.label, r.description, r.dynamic, r.created_at, r.updated_at, cf.name, ct.name
		FROM character_relationships r
		JOIN characters cf ON cf.id = r.from_id
		JOIN characters ct ON ct.id = r.to_id
		WHERE r.to_id=$1
		ORDER BY r.created_at ASC
	`, characterID)
}

func (s *PostgresStore) listRelationships(ctx context.Context, query, characterID string) ([]CharacterRelationship, error) {
	rows, err := s.db.QueryContext(ctx, query, characterID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	items := make([]CharacterRelationship, 0)
	for rows.Next() {
		var item CharacterRelationship
		if err := rows.Scan(&item.ID, &item.FromID, &item.ToID, &item.Label, &item.Description, &item.Dynamic, &item.CreatedAt, &item.UpdatedAt, &item.FromName, &item.ToName); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateRelationship(ctx context.Context, relationshipID, label, description, dynamic string) (CharacterRelationship, error) {
	var item CharacterRelationship
	err := s.db.QueryRowContext(ctx, `
		UPDATE character_relationships SET label=$2, description=$3, dynamic=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING id, from_id, to_id, label, description, dynamic, created_at, updated_at
	`, relationshipID, label, description, dynamic).Scan(&item.ID, &item.FromID, &item.ToID, &item.Label, &item.Description, &item.Dynamic, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return CharacterRelationship{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteRelationship(ctx context.Context, relationshipID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM character_relationships WHERE id=$1`, relationshipID)
	if err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	return nil
}

// ---- locations ----

func (s *PostgresStore) InsertLocation(ctx context.Context, location Location) (Location, error) {
	var item Location
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO locations (id, project_id, name, description, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, project_id, name, description, image_url, created_at, updated_at
	`, location.ID, location.ProjectID, location.Name, location.Description, location.ImageURL).Scan(
		&item.ID, &item.ProjectID, &item.Name, &item.Description, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return Location{}, fmt.Errorf("insert location: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListLocationsByProject(ctx context.Context, projectID string) ([]Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, description, image_url, created_at, updated_at
		FROM locations WHERE project_id=$1 ORDER BY name ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	items := make([]Location, 0)
	for rows.Next() {
		var item Location
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Name, &item.Description, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetLocation(ctx context.Context, locationID string) (Location, error) {
	var item Location
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, description, image_url, created_at, updated_at
		FROM locations WHERE id=$1
	`, locationID).Scan(&item.ID, &item.ProjectID, &item.Name, &item.Description, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Location{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateLocation(ctx context.Context, locationID, name, description, imageURL string) (Location, error) {
	var item Location
	err := s.db.QueryRowContext(ctx, `
		UPDATE locations SET name=$2, description=$3, image_url=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING id, project_id, name, description, image_url, created_at, updated_at
	`, locationID, name, description, imageURL).Scan(&item.ID, &item.ProjectID, &item.Name, &item.Description, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Location{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteLocation(ctx context.Context, locationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id=$1`, locationID)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return nil
}

// ---- world rules ----

func (s *PostgresStore) InsertRule(ctx context.Context, rule WorldRule) (WorldRule, error) {
	var item WorldRule
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO world_rules (id, project_id, category, title, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, project_id, category, title, description, created_at, updated_at
	`, rule.ID, rule.ProjectID, rule.Category, rule.Title, rule.Description).Scan(
		&item.ID, &item.ProjectID, &item.Category, &item.Title, &item.Description, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return WorldRule{}, fmt.Errorf("insert rule: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListRulesByProject(ctx context.Context, projectID string) ([]WorldRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, category, title, description, created_at, updated_at
		FROM world_rules WHERE project_id=$1 ORDER BY category ASC, title ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	items := make([]WorldRule, 0)
	for rows.Next() {
		var item WorldRule
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Category, &item.Title, &item.Description, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetRule(ctx context.Context, ruleID string) (WorldRule, error) {
	var item WorldRule
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, category, title, description, created_at, updated_at
		FROM world_rules WHERE id=$1
	`, ruleID).Scan(&item.ID, &item.ProjectID, &item.Category, &item.Title, &item.Description, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return WorldRule{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateRule(ctx context.Context, ruleID, category, title, description string) (WorldRule, error) {
	var item WorldRule
	err := s.db.QueryRowContext(ctx, `
		UPDATE world_rules SET category=$2, title=$3, description=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING id, project_id, category, title, description, created_at, updated_at
	`, ruleID, category, title, description).Scan(&item.ID, &item.ProjectID, &item.Category, &item.Title, &item.Description, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return WorldRule{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteRule(ctx context.Context, ruleID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM world_rules WHERE id=$1`, ruleID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}
