package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxScenes     = "fabula_scenes"
	idxCharacters = "fabula_characters"
	idxRules      = "fabula_rules"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes.
// Returns a client even if the initial connection fails; the health loop
// retries and reconfigures when Meilisearch comes back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		primaryKey string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxScenes,
			primaryKey: "id",
			filterable: []string{"projectId"},
			searchable: []string{"title", "summary"},
		},
		{
			uid:        idxCharacters,
			primaryKey: "id",
			filterable: []string{"projectId"},
			searchable: []string{"name", "bio"},
		},
		{
			uid:        idxRules,
			primaryKey: "id",
			filterable: []string{"projectId", "category"},
			searchable: []string{"title", "description"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries all three indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxScenes, ResultScene},
		{idxCharacters, ResultCharacter},
		{idxRules, ResultRule},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
		}
		if q.ProjectID != "" {
			sr.Filter = []string{fmt.Sprintf("projectId = %q", q.ProjectID)}
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxScenes:
		return ResultScene
	case idxCharacters:
		return ResultCharacter
	case idxRules:
		return ResultRule
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.ProjectID = decodeString(hit, "projectId")

	switch rtyp {
	case ResultScene:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "summary"), decodeString(hit, "summary"))
	case ResultCharacter:
		r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "bio"), decodeString(hit, "bio"))
	case ResultRule:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexScene adds or updates a scene in the search index.
func (m *Meili) IndexScene(s SceneRecord) error {
	_, err := m.client.Index(idxScenes).AddDocuments([]SceneRecord{s}, nil)
	return err
}

// IndexCharacter adds or updates a character in the search index.
func (m *Meili) IndexCharacter(c CharacterRecord) error {
	_, err := m.client.Index(idxCharacters).AddDocuments([]CharacterRecord{c}, nil)
	return err
}

// IndexRule adds or updates a world rule in the search index.
func (m *Meili) IndexRule(r RuleRecord) error {
	_, err := m.client.Index(idxRules).AddDocuments([]RuleRecord{r}, nil)
	return err
}

// DeleteScene removes a scene from the search index.
func (m *Meili) DeleteScene(id string) error {
	_, err := m.client.Index(idxScenes).DeleteDocument(id, nil)
	return err
}

// DeleteCharacter removes a character from the search index.
func (m *Meili) DeleteCharacter(id string) error {
	_, err := m.client.Index(idxCharacters).DeleteDocument(id, nil)
	return err
}

// DeleteRule removes a world rule from the search index.
func (m *Meili) DeleteRule(id string) error {
	_, err := m.client.Index(idxRules).DeleteDocument(id, nil)
	return err
}

// IndexScenes bulk-indexes scenes.
func (m *Meili) IndexScenes(scenes []SceneRecord) error {
	if len(scenes) == 0 {
		return nil
	}
	_, err := m.client.Index(idxScenes).AddDocuments(scenes, nil)
	return err
}

// IndexCharacters bulk-indexes characters.
func (m *Meili) IndexCharacters(characters []CharacterRecord) error {
	if len(characters) == 0 {
		return nil
	}
	_, err := m.client.Index(idxCharacters).AddDocuments(characters, nil)
	return err
}

// IndexRules bulk-indexes world rules.
func (m *Meili) IndexRules(rules []RuleRecord) error {
	if len(rules) == 0 {
		return nil
	}
	_, err := m.client.Index(idxRules).AddDocuments(rules, nil)
	return err
}
