package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Kind names an entity type whose owning project can be resolved.
type Kind string

const (
	KindAct          Kind = "act"
	KindSequence     Kind = "sequence"
	KindScene        Kind = "scene"
	KindShot         Kind = "shot"
	KindCharacter    Kind = "character"
	KindArc          Kind = "arc"
	KindBeat         Kind = "beat"
	KindFact         Kind = "fact"
	KindRelationship Kind = "relationship"
	KindLocation     Kind = "location"
	KindRule         Kind = "rule"
)

// ErrUnknownKind is returned for a kind with no registered ancestor chain.
var ErrUnknownKind = errors.New("unknown entity kind")

type hop struct {
	table     string
	parentCol string
}

// kindChains maps each entity kind to its fixed chain of parent references.
// The final hop's column always holds a project id. A relationship's chain
// starts at its from-character.
var kindChains = map[Kind][]hop{
	KindAct:          {{"acts", "project_id"}},
	KindSequence:     {{"sequences", "act_id"}, {"acts", "project_id"}},
	KindScene:        {{"scenes", "sequence_id"}, {"sequences", "act_id"}, {"acts", "project_id"}},
	KindShot:         {{"shots", "scene_id"}, {"scenes", "sequence_id"}, {"sequences", "act_id"}, {"acts", "project_id"}},
	KindCharacter:    {{"characters", "project_id"}},
	KindArc:          {{"character_arcs", "character_id"}, {"characters", "project_id"}},
	KindBeat:         {{"arc_beats", "arc_id"}, {"character_arcs", "character_id"}, {"characters", "project_id"}},
	KindFact:         {{"character_facts", "character_id"}, {"characters", "project_id"}},
	KindRelationship: {{"character_relationships", "from_id"}, {"characters", "project_id"}},
	KindLocation:     {{"locations", "project_id"}},
	KindRule:         {{"world_rules", "project_id"}},
}

// ResolveProjectID walks an entity's parent chain to its owning project.
// One fetch per hop, no caching: an entity deleted or moved between calls
// must fail rather than resolve to stale ownership. A missing row anywhere
// along the chain surfaces as sql.ErrNoRows.
func (s *PostgresStore) ResolveProjectID(ctx context.Context, kind Kind, id string) (string, error) {
	chain, ok := kindChains[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	current := id
	for _, h := range chain {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1`, h.parentCol, h.table)
		var parent string
		if err := s.db.QueryRowContext(ctx, query, current).Scan(&parent); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", err
			}
			return "", fmt.Errorf("resolve %s %s: %w", kind, current, err)
		}
		current = parent
	}
	return current, nil
}
