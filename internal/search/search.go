package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultScene     ResultType = "scene"
	ResultCharacter ResultType = "character"
	ResultRule      ResultType = "rule"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	ProjectID string     `json:"projectId"`
}

// Query describes a search request. ProjectID is always set; search is
// scoped to a single project.
type Query struct {
	Text       string
	ProjectID  string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexScene(s SceneRecord) error
	IndexCharacter(c CharacterRecord) error
	IndexRule(r RuleRecord) error
	DeleteScene(id string) error
	DeleteCharacter(id string) error
	DeleteRule(id string) error
}

// SceneRecord is the data we index for a scene.
type SceneRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	ProjectID string `json:"projectId"`
}

// CharacterRecord is the data we index for a character.
type CharacterRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Bio       string `json:"bio"`
	ProjectID string `json:"projectId"`
}

// RuleRecord is the data we index for a world rule.
type RuleRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ProjectID   string `json:"projectId"`
}
