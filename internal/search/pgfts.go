package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across scenes, characters, and world_rules
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Scenes reach their project through sequence and act.
	if q.FilterType == "" || q.FilterType == ResultScene {
		sceneWhere := "sc.fts @@ " + tsQuery
		if q.ProjectID != "" {
			sceneWhere += fmt.Sprintf(" AND a.project_id = $%d", argN)
			args = append(args, q.ProjectID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'scene'::text AS type, sc.id, sc.title,
				ts_headline('english', coalesce(sc.summary, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				a.project_id,
				ts_rank(sc.fts, %s) AS rank
			FROM scenes sc
			JOIN sequences sq ON sq.id = sc.sequence_id
			JOIN acts a ON a.id = sq.act_id
			WHERE %s`, tsQuery, tsQuery, sceneWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultCharacter {
		charWhere := "c.fts @@ " + tsQuery
		if q.ProjectID != "" {
			charWhere += fmt.Sprintf(" AND c.project_id = $%d", argN)
			args = append(args, q.ProjectID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'character'::text AS type, c.id, c.name AS title,
				ts_headline('english', coalesce(c.bio, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.project_id,
				ts_rank(c.fts, %s) AS rank
			FROM characters c
			WHERE %s`, tsQuery, tsQuery, charWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultRule {
		ruleWhere := "wr.fts @@ " + tsQuery
		if q.ProjectID != "" {
			ruleWhere += fmt.Sprintf(" AND wr.project_id = $%d", argN)
			args = append(args, q.ProjectID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'rule'::text AS type, wr.id, wr.title,
				ts_headline('english', coalesce(wr.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				wr.project_id,
				ts_rank(wr.fts, %s) AS rank
			FROM world_rules wr
			WHERE %s`, tsQuery, tsQuery, ruleWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, project_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ProjectID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]SceneRecord, []CharacterRecord, []RuleRecord, error) {
	sceneRows, err := p.db.QueryContext(ctx, `
		SELECT sc.id, sc.title, sc.summary, a.project_id
		FROM scenes sc
		JOIN sequences sq ON sq.id = sc.sequence_id
		JOIN acts a ON a.id = sq.act_id
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load scenes: %w", err)
	}
	defer sceneRows.Close()

	scenes := make([]SceneRecord, 0)
	for sceneRows.Next() {
		var s SceneRecord
		if err := sceneRows.Scan(&s.ID, &s.Title, &s.Summary, &s.ProjectID); err != nil {
			return nil, nil, nil, fmt.Errorf("scan scene: %w", err)
		}
		scenes = append(scenes, s)
	}
	if err := sceneRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate scenes: %w", err)
	}

	charRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, bio, project_id
		FROM characters
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load characters: %w", err)
	}
	defer charRows.Close()

	characters := make([]CharacterRecord, 0)
	for charRows.Next() {
		var c CharacterRecord
		if err := charRows.Scan(&c.ID, &c.Name, &c.Bio, &c.ProjectID); err != nil {
			return nil, nil, nil, fmt.Errorf("scan character: %w", err)
		}
		characters = append(characters, c)
	}
	if err := charRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate characters: %w", err)
	}

	ruleRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description, category, project_id
		FROM world_rules
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load world rules: %w", err)
	}
	defer ruleRows.Close()

	rules := make([]RuleRecord, 0)
	for ruleRows.Next() {
		var r RuleRecord
		if err := ruleRows.Scan(&r.ID, &r.Title, &r.Description, &r.Category, &r.ProjectID); err != nil {
			return nil, nil, nil, fmt.Errorf("scan world rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := ruleRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate world rules: %w", err)
	}

	return scenes, characters, rules, nil
}
