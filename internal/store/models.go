package store

import "time"

type User struct {
	ID           string
	Email        string
	Name         string
	AvatarURL    string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Project struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectSummary is a project joined with the caller's membership role and
// the counts shown on the project list.
type ProjectSummary struct {
	Project
	Role           string
	MemberCount    int
	ActCount       int
	CharacterCount int
}

type Membership struct {
	ProjectID string
	UserID    string
	Role      string
	JoinedAt  time.Time
	// Joined user fields for API responses
	UserName  string
	UserEmail string
}

type Act struct {
	ID        string
	ProjectID string
	Title     string
	Summary   string
	Index     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Sequence struct {
	ID        string
	ActID     string
	Title     string
	Summary   string
	Index     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Scene struct {
	ID         string
	SequenceID string
	Title      string
	Summary    string
	LocationID *string
	Index      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Shot struct {
	ID          string
	SceneID     string
	Description string
	CameraNotes string
	Index       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Character struct {
	ID        string
	ProjectID string
	Name      string
	Bio       string
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CharacterRef is the trimmed character shape embedded in scene responses.
type CharacterRef struct {
	ID       string
	Name     string
	ImageURL string
}

type CharacterArc struct {
	ID          string
	CharacterID string
	Title       string
	Season      int
	Summary     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ArcBeat struct {
	ID        string
	ArcID     string
	Title     string
	Summary   string
	SceneID   *string
	Index     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CharacterFact struct {
	ID          string
	CharacterID string
	Fact        string
	// KnownBy is a weak many-to-many reference by character id, not ownership.
	KnownBy   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CharacterRelationship is a directed edge between two characters in the
// same project. Ownership derives from the from-character's project.
type CharacterRelationship struct {
	ID          string
	FromID      string
	ToID        string
	Label       string
	Description string
	Dynamic     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// Joined names for API responses
	FromName string
	ToName   string
}

type Location struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WorldRule struct {
	ID          string
	ProjectID   string
	Category    string
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
