package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Staged reorder indices live at -(position + reorderStageOffset), far below
// any real index, so phase one can never collide with an unmoved sibling.
const reorderStageOffset = 1000

// ErrSiblingMismatch is returned when a reorder id list does not exactly
// match the stored sibling group; the transaction is rolled back.
var ErrSiblingMismatch = errors.New("sibling ids do not match stored group")

// nextIndexTx applies the append-with-next-index correction: a requested
// index at or below the current maximum is replaced with max+1 rather than
// rejected. With no siblings the requested index is kept (0 for the usual
// empty-group create).
func nextIndexTx(ctx context.Context, tx *sql.Tx, table, parentCol, parentID string, requested int) (int, error) {
	query := fmt.Sprintf(`SELECT MAX("index") FROM %s WHERE %s = $1`, table, parentCol)
	var max sql.NullInt64
	if err := tx.QueryRowContext(ctx, query, parentID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max index for %s: %w", table, err)
	}
	current := -1
	if max.Valid {
		current = int(max.Int64)
	}
	if requested <= current {
		return current + 1, nil
	}
	return requested, nil
}

// deleteAndCompact removes one index-bearing row and reassigns the
// remaining siblings to 0..n-1 in their current order, all in one
// transaction. Uses the same staged negative indices as reorderSiblings
// so the uniqueness constraint holds throughout.
func (s *PostgresStore) deleteAndCompact(ctx context.Context, table, parentCol, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}

	del := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 RETURNING %s`, table, parentCol)
	var parentID string
	if err := tx.QueryRowContext(ctx, del, id).Scan(&parentID); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("delete from %s: %w", table, err)
	}

	list := fmt.Sprintf(`SELECT id FROM %s WHERE %s = $1 ORDER BY "index"`, table, parentCol)
	rows, err := tx.QueryContext(ctx, list, parentID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("list %s siblings: %w", table, err)
	}
	var ids []string
	for rows.Next() {
		var siblingID string
		if err := rows.Scan(&siblingID); err != nil {
			rows.Close()
			_ = tx.Rollback()
			return fmt.Errorf("scan %s sibling: %w", table, err)
		}
		ids = append(ids, siblingID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("iterate %s siblings: %w", table, err)
	}

	assign := fmt.Sprintf(`UPDATE %s SET "index" = $1 WHERE id = $2`, table)
	for position, siblingID := range ids {
		if _, err := tx.ExecContext(ctx, assign, -(position + reorderStageOffset), siblingID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("stage %s %s: %w", table, siblingID, err)
		}
	}
	for position, siblingID := range ids {
		if _, err := tx.ExecContext(ctx, assign, position, siblingID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("compact %s %s: %w", table, siblingID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}

// reorderSiblings assigns indices 0..n-1 to ids in list order, in one
// transaction. Phase one stages every sibling at a negative index so the
// (parent, index) uniqueness constraint cannot trip mid-permutation; phase
// two writes the final indices. Any failed update aborts the whole reorder
// and leaves the prior order intact.
func (s *PostgresStore) reorderSiblings(ctx context.Context, table, parentCol, parentID string, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return ErrSiblingMismatch
		}
		seen[id] = struct{}{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder tx: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, table, parentCol)
	var count int
	if err := tx.QueryRowContext(ctx, countQuery, parentID).Scan(&count); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("count %s siblings: %w", table, err)
	}
	if count != len(ids) {
		_ = tx.Rollback()
		return ErrSiblingMismatch
	}

	stage := fmt.Sprintf(`UPDATE %s SET "index" = $1 WHERE id = $2 AND %s = $3`, table, parentCol)
	for position, id := range ids {
		result, err := tx.ExecContext(ctx, stage, -(position + reorderStageOffset), id, parentID)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("stage %s %s: %w", table, id, err)
		}
		if affected, err := result.RowsAffected(); err != nil || affected != 1 {
			_ = tx.Rollback()
			if err != nil {
				return fmt.Errorf("stage %s %s: %w", table, id, err)
			}
			return ErrSiblingMismatch
		}
	}

	commitIdx := fmt.Sprintf(`UPDATE %s SET "index" = $1 WHERE id = $2 AND %s = $3`, table, parentCol)
	for position, id := range ids {
		result, err := tx.ExecContext(ctx, commitIdx, position, id, parentID)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("assign %s %s: %w", table, id, err)
		}
		if affected, err := result.RowsAffected(); err != nil || affected != 1 {
			_ = tx.Rollback()
			if err != nil {
				return fmt.Errorf("assign %s %s: %w", table, id, err)
			}
			return ErrSiblingMismatch
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder tx: %w", err)
	}
	return nil
}

// ---- acts ----

func (s *PostgresStore) InsertAct(ctx context.Context, act Act) (Act, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Act{}, fmt.Errorf("begin insert act tx: %w", err)
	}

	index, err := nextIndexTx(ctx, tx, "acts", "project_id", act.ProjectID, act.Index)
	if err != nil {
		_ = tx.Rollback()
		return Act{}, err
	}

	var item Act
	err = tx.QueryRowContext(ctx, `
		INSERT INTO acts (id, project_id, title, summary, "index")
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, project_id, title, summary, "index", created_at, updated_at
	`, act.ID, act.ProjectID, act.Title, act.Summary, index).Scan(
		&item.ID, &item.ProjectID, &item.Title, &item.Summary, &item.Index, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return Act{}, fmt.Errorf("insert act: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Act{}, fmt.Errorf("commit insert act tx: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListActsByProject(ctx context.Context, projectID string) ([]Act, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, summary, "index", created_at, updated_at
		FROM acts WHERE project_id=$1 ORDER BY "index" ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list acts: %w", err)
	}
	defer rows.Close()

	items := make([]Act, 0)
	for rows.Next() {
		var item Act
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Title, &item.Summary, &item.Index, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan act: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate acts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetAct(ctx context.Context, actID string) (Act, error) {
	var item Act
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, summary, "index", created_at, updated_at
		FROM acts WHERE id=$1
	`, actID).Scan(&item.ID, &item.ProjectID, &item.Title, &item.Summary, &item.Index, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Act{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateAct(ctx context.Context, actID, title, summary string) (Act, error) {
	var item Act
	err := s.db.QueryRowContext(ctx, `
		UPDATE acts SET title=$2, summary=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING id, project_id, title, summary, "index", created_at, updated_at
	`, actID, title, summary).Scan(&item.ID, &item.ProjectID, &item.Title, &item.Summary, &item.Index, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Act{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteAct(ctx context.Context, actID string) error {
	return s.deleteAndCompact(ctx, "acts", "project_id", actID)
}

func (s *PostgresStore) ReorderActs(ctx context.Context, projectID string, actIDs []string) error {
	return s.reorderSiblings(ctx, "acts", "project_id", projectID, actIDs)
}

// ---- sequences ----

func (s *PostgresStore) InsertSequence(ctx context.Context, sequence Sequence) (Sequence, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Sequence{}, fmt.Errorf("begin insert sequence tx: %w", err)
	}

	index, err := nextIndexTx(ctx, tx, "sequences", "act_id", sequence.ActID, sequence.Index)
	if err != nil {
		_ = tx.Rollback()
		return Sequence{}, err
	}

	var item Sequence
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sequences (id, act_id, title, summary, "index")
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, act_id, title, summary, "index", created_at, updated_at
	`, sequence.ID, sequence.ActID, sequence.Title, sequence.Summary, index).Scan(
		&item.ID, &item.ActID, &item.Title, &item.Summary, &item.Index, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return Sequence{}, fmt.Errorf("insert sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Sequence{}, fmt.Errorf("commit insert sequence tx: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListSequencesByAct(ctx context.Context, actID string) ([]Sequence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, act_id, title, summary, "index", created_at, updated_at
		FROM sequences WHERE act_id=$1 ORDER BY "index" ASC
	`, actID)
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	defer rows.Close()

	items := make([]Sequence, 0)
	for rows.Next() {
		var item Sequence
		if err := rows.Scan(&item.ID, &item.ActID, &item.Title, &item.Summary, &item.Index, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sequence: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sequences: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSequence(ctx context.Context, sequenceID string) (Sequence, error) {
	var item Sequence
	err := s.db.QueryRowContext(ctx, `
		SELECT id, act_id, title, summary, "index", created_at, updated_at
		FROM sequences WHERE id=$1
	`, sequenceID).Scan(&item.ID, &item.ActID, &item.Title, &item.Summary, &item.Index, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Sequence{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateSequence(ctx context.Context, sequenceID, title, summary string) (Sequence, error) {
	var item Sequence
	err := s.db.QueryRowContext(ctx, `
		UPDATE sequences SET title=$2, summary=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING id, act_id, title, summary, "index", created_at, updated_at
	`, sequenceID, title, summary).Scan(&item.ID, &item.ActID, &item.Title, &item.Summary, &item.Index, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Sequence{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteSequence(ctx context.Context, sequenceID string) error {
	return s.deleteAndCompact(ctx, "sequences", "act_id", sequenceID)
}

func (s *PostgresStore) ReorderSequences(ctx context.Context, actID string, sequenceIDs []string) error {
	return s.reorderSiblings(ctx, "sequences", "act_id", actID, sequenceIDs)
}

// ---- scenes ----

func (s *PostgresStore) InsertScene(ctx context.Context, scene Scene) (Scene, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Scene{}, fmt.Errorf("begin insert scene tx: %w", err)
	}

	index, err := nextIndexTx(ctx, tx, "scenes", "sequence_id", scene.SequenceID, scene.Index)
	if err != nil {
		_ = tx.Rollback()
		return Scene{}, err
	}

	var item Scene
	err = tx.QueryRowContext(ctx, `
		INSERT INTO scenes (id, sequence_id, title, summary, location_id, "index")
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, sequence_id, title, summary, location_id, "index", created_at, updated_at
	`, scene.ID, scene.SequenceID, scene.Title, scene.Summary, scene.LocationID, index).Scan(
		&item.ID, &item.SequenceID, &item.Title, &item.Summary, &item.LocationID, &item.Index, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return Scene{}, fmt.Errorf("insert scene: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Scene{}, fmt.Errorf("commit insert scene tx: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListScenesBySequence(ctx context.Context, sequenceID string) ([]Scene, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sequence_id, title, summary, location_id, "index", created_at, updated_at
		FROM scenes WHERE sequence_id=$1 ORDER BY "index" ASC
	`, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	items := make([]Scene, 0)
	for rows.Next() {
		var item Scene
		if err := rows.Scan(&item.ID, &item.SequenceID, &item.Title, &item.Summary, &item.LocationID, &item.Index, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetScene(ctx context.Context, sceneID string) (Scene, error) {
	var item Scene
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sequence_id, title, summary, location_id, "index", created_at, updated_at
		FROM scenes WHERE id=$1
	`, sceneID).Scan(&item.ID, &item.SequenceID, &item.Title, &item.Summary, &item.LocationID, &item.Index, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Scene{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateScene(ctx context.Context, sceneID, title, summary string, locationID *string) (Scene, error) {
	var item Scene
	err := s.db.QueryRowContext(ctx, `
		UPDATE scenes SET title=$2, summary=$3, location_id=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING id, sequence_id, title, summary, location_id, "index", created_at, updated_at
	`, sceneID, title, summary, locationID).Scan(&item.ID, &item.SequenceID, &item.Title, &item.Summary, &item.LocationID, &item.Index, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Scene{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteScene(ctx context.Context, sceneID string) error {
	return s.deleteAndCompact(ctx, "scenes", "sequence_id", sceneID)
}

func (s *PostgresStore) ReorderScenes(ctx context.Context, sequenceID string, sceneIDs []string) error {
	return s.reorderSiblings(ctx, "scenes", "sequence_id", sequenceID, sceneIDs)
}

// ReplaceSceneCharacters swaps the scene's character set in one transaction.
func (s *PostgresStore) ReplaceSceneCharacters(ctx context.Context, sceneID string, characterIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scene characters tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scene_characters WHERE scene_id=$1`, sceneID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear scene characters: %w", err)
	}

	for _, characterID := range characterIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scene_characters (scene_id, character_id) VALUES ($1, $2)
		`, sceneID, characterID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert scene character %s: %w", characterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scene characters tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSceneCharacters(ctx context.Context, sceneID string) ([]CharacterRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.image_url
		FROM scene_characters sc
		JOIN characters c ON c.id = sc.character_id
		WHERE sc.scene_id=$1
		ORDER BY c.name ASC
	`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("list scene characters: %w", err)
	}
	defer rows.Close()

	items := make([]CharacterRef, 0)
	for rows.Next() {
		var item CharacterRef
		if err := rows.Scan(&item.ID, &item.Name, &item.ImageURL); err != nil {
			return nil, fmt.Errorf("scan scene character: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scene characters: %w", err)
	}
	return items, nil
}

// ---- shots ----

func (s *PostgresStore) InsertShot(ctx context.Context, shot Shot) (Shot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Shot{}, fmt.Errorf("begin insert shot tx: %w", err)
	}

	index, err := nextIndexTx(ctx, tx, "shots", "scene_id", shot.SceneID, shot.Index)
	if err != nil {
		_ = tx.Rollback()
		return Shot{}, err
	}

	var item Shot
	err = tx.QueryRowContext(ctx, `
		INSERT INTO shots (id, scene_id, description, camera_notes, "index")
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, scene_id, description, camera_notes, "index", created_at, updated_at
	`, shot.ID, shot.SceneID, shot.Description, shot.CameraNotes, index).Scan(
		&item.ID, &item.SceneID, &item.Description, &item.CameraNotes, &item.Index, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return Shot{}, fmt.Errorf("insert shot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Shot{}, fmt.Errorf("commit insert shot tx: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListShotsByScene(ctx context.Context, sceneID string) ([]Shot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scene_id, description, camera_notes, "index", created_at, updated_at
		FROM shots WHERE scene_id=$1 ORDER BY "index" ASC
	`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("list shots: %w", err)
	}
	defer rows.Close()

	items := make([]Shot, 0)
	for rows.Next() {
		var item Shot
		if err := rows.Scan(&item.ID, &item.SceneID, &item.Description, &item.CameraNotes, &item.Index, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan shot: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shots: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetShot(ctx context.Context, shotID string) (Shot, error) {
	var item Shot
	err := s.db.QueryRowContext(ctx, `
		SELECT id, scene_id, description, camera_notes, "index", created_at, updated_at
		FROM shots WHERE id=$1
	`, shotID).Scan(&item.ID, &item.SceneID, &item.Description, &item.CameraNotes, &item.Index, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Shot{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateShot(ctx context.Context, shotID, description, cameraNotes string) (Shot, error) {
	var item Shot
	err := s.db.QueryRowContext(ctx, `
		UPDATE shots SET description=$2, camera_notes=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING id, scene_id, description, camera_notes, "index", created_at, updated_at
	`, shotID, description, cameraNotes).Scan(&item.ID, &item.SceneID, &item.Description, &item.CameraNotes, &item.Index, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Shot{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteShot(ctx context.Context, shotID string) error {
	return s.deleteAndCompact(ctx, "shots", "scene_id", shotID)
}
