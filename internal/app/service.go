package app

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"fabula/api/internal/auth"
	"fabula/api/internal/authpw"
	"fabula/api/internal/config"
	"fabula/api/internal/rbac"
	"fabula/api/internal/search"
	"fabula/api/internal/store"
	"fabula/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error

	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)

	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	CreateProjectWithOwner(context.Context, store.Project) error
	GetProject(context.Context, string) (store.Project, error)
	ListProjectsForUser(context.Context, string) ([]store.ProjectSummary, error)
	UpdateProject(context.Context, string, string, string) (store.Project, error)
	DeleteProject(context.Context, string) error

	GetMembership(context.Context, string, string) (store.Membership, error)
	ListMemberships(context.Context, string) ([]store.Membership, error)
	InsertMembership(context.Context, store.Membership) error
	UpdateMembershipRole(context.Context, string, string, string) (store.Membership, error)
	DeleteMembership(context.Context, string, string) error

	ResolveProjectID(context.Context, store.Kind, string) (string, error)

	InsertAct(context.Context, store.Act) (store.Act, error)
	ListActsByProject(context.Context, string) ([]store.Act, error)
	GetAct(context.Context, string) (store.Act, error)
	UpdateAct(context.Context, string, string, string) (store.Act, error)
	DeleteAct(context.Context, string) error
	ReorderActs(context.Context, string, []string) error

	InsertSequence(context.Context, store.Sequence) (store.Sequence, error)
	ListSequencesByAct(context.Context, string) ([]store.Sequence, error)
	GetSequence(context.Context, string) (store.Sequence, error)
	UpdateSequence(context.Context, string, string, string) (store.Sequence, error)
	DeleteSequence(context.Context, string) error
	ReorderSequences(context.Context, string, []string) error

	InsertScene(context.Context, store.Scene) (store.Scene, error)
	ListScenesBySequence(context.Context, string) ([]store.Scene, error)
	GetScene(context.Context, string) (store.Scene, error)
	UpdateScene(context.Context, string, string, string, *string) (store.Scene, error)
	DeleteScene(context.Context, string) error
	ReorderScenes(context.Context, string, []string) error
	ReplaceSceneCharacters(context.Context, string, []string) error
	ListSceneCharacters(context.Context, string) ([]store.CharacterRef, error)

	InsertShot(context.Context, store.Shot) (store.Shot, error)
	ListShotsByScene(context.Context, string) ([]store.Shot, error)
	GetShot(context.Context, string) (store.Shot, error)
	UpdateShot(context.Context, string, string, string) (store.Shot, error)
	DeleteShot(context.Context, string) error

	InsertCharacter(context.Context, store.Character) (store.Character, error)
	ListCharactersByProject(context.Context, string) ([]store.Character, error)
	GetCharacter(context.Context, string) (store.Character, error)
	UpdateCharacter(context.Context, string, string, string, string) (store.Character, error)
	DeleteCharacter(context.Context, string) error

	InsertArc(context.Context, store.CharacterArc) (store.CharacterArc, error)
	ListArcsByCharacter(context.Context, string) ([]store.CharacterArc, error)
	GetArc(context.Context, string) (store.CharacterArc, error)
	UpdateArc(context.Context, string, string, int, string) (store.CharacterArc, error)
	DeleteArc(context.Context, string) error

	InsertBeat(context.Context, store.ArcBeat) (store.ArcBeat, error)
	ListBeatsByArc(context.Context, string) ([]store.ArcBeat, error)
	UpdateBeat(context.Context, string, string, string, *string) (store.ArcBeat, error)
	DeleteBeat(context.Context, string) error

	InsertFact(context.Context, store.CharacterFact) (store.CharacterFact, error)
	ListFactsByCharacter(context.Context, string) ([]store.CharacterFact, error)
	UpdateFact(context.Context, string, string, []string) (store.CharacterFact, error)
	DeleteFact(context.Context, string) error

	InsertRelationship(context.Context, store.CharacterRelationship) (store.CharacterRelationship, error)
	ListOutgoingRelationships(context.Context, string) ([]store.CharacterRelationship, error)
	ListIncomingRelationships(context.Context, string) ([]store.CharacterRelationship, error)
	UpdateRelationship(context.Context, string, string, string, string) (store.CharacterRelationship, error)
	DeleteRelationship(context.Context, string) error

	InsertLocation(context.Context, store.Location) (store.Location, error)
	ListLocationsByProject(context.Context, string) ([]store.Location, error)
	GetLocation(context.Context, string) (store.Location, error)
	UpdateLocation(context.Context, string, string, string, string) (store.Location, error)
	DeleteLocation(context.Context, string) error

	InsertRule(context.Context, store.WorldRule) (store.WorldRule, error)
	ListRulesByProject(context.Context, string) ([]store.WorldRule, error)
	GetRule(context.Context, string) (store.WorldRule, error)
	UpdateRule(context.Context, string, string, string, string) (store.WorldRule, error)
	DeleteRule(context.Context, string) error
}

// sessionStore holds refresh sessions. Backed by Redis when configured,
// otherwise by the Postgres refresh_sessions table.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// pgSessions adapts the Postgres store to the sessionStore interface.
type pgSessions struct {
	store dataStore
}

func (p pgSessions) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return p.store.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (p pgSessions) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return p.store.LookupRefreshSession(ctx, tokenHash)
}

func (p pgSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return p.store.RevokeRefreshSession(ctx, tokenHash)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	authpw   *authpw.Service
	searcher search.Searcher
	indexer  search.Indexer

	// Serializes index-bearing inserts and reorders per sibling group on
	// top of the store transaction, so a concurrent append and reorder on
	// the same parent cannot interleave.
	lockMu      sync.Mutex
	parentLocks map[string]*sync.Mutex
}

// New wires the service. sessions may be nil, in which case refresh
// sessions fall back to Postgres. indexer may be nil when only the
// FTS fallback searcher is available.
func New(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, searcher search.Searcher, indexer search.Indexer) *Service {
	s := &Service{
		cfg:         cfg,
		store:       dataStore,
		searcher:    searcher,
		indexer:     indexer,
		parentLocks: make(map[string]*sync.Mutex),
	}
	s.sessions = sessions
	if s.sessions == nil {
		s.sessions = pgSessions{store: s.store}
	}
	s.authpw = authpw.NewService(dataStore)
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) lockParent(parentID string) func() {
	s.lockMu.Lock()
	mu, ok := s.parentLocks[parentID]
	if !ok {
		mu = &sync.Mutex{}
		s.parentLocks[parentID] = mu
	}
	s.lockMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

var kindLabels = map[store.Kind]string{
	store.KindAct:          "Act",
	store.KindSequence:     "Sequence",
	store.KindScene:        "Scene",
	store.KindShot:         "Shot",
	store.KindCharacter:    "Character",
	store.KindArc:          "Character arc",
	store.KindBeat:         "Arc beat",
	store.KindFact:         "Character fact",
	store.KindRelationship: "Relationship",
	store.KindLocation:     "Location",
	store.KindRule:         "World rule",
}

// resolveProjectID maps an entity to its owning project. Absence anywhere
// along the ancestor chain is reported as NotFound, before any access
// check can run.
func (s *Service) resolveProjectID(ctx context.Context, kind store.Kind, id string) (string, error) {
	projectID, err := s.store.ResolveProjectID(ctx, kind, id)
	if errors.Is(err, sql.ErrNoRows) {
		label := kindLabels[kind]
		if label == "" {
			label = "Entity"
		}
		return "", notFoundErr(label + " not found")
	}
	if err != nil {
		return "", err
	}
	return projectID, nil
}

// assertProjectAccess verifies the principal holds a membership in the
// project, and optionally that the membership's role is in the allowed
// set. No roles means any member passes. Role checks are set membership,
// not a hierarchy: OWNER does not implicitly satisfy {EDITOR}.
func (s *Service) assertProjectAccess(ctx context.Context, projectID, userID string, roles ...rbac.Role) (store.Membership, error) {
	membership, err := s.store.GetMembership(ctx, projectID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Membership{}, forbiddenErr("No access to this project")
	}
	if err != nil {
		return store.Membership{}, err
	}
	if len(roles) > 0 && !rbac.Role(membership.Role).In(roles) {
		return store.Membership{}, forbiddenErr("Insufficient permissions")
	}
	return membership, nil
}

// Session lifecycle

func (s *Service) SignUp(ctx context.Context, email, password, name string) (Session, error) {
	user, err := s.authpw.SignUp(ctx, authpw.SignUpRequest{Email: email, Password: password, Name: name})
	if err != nil {
		if errors.Is(err, authpw.ErrEmailExists) {
			return Session{}, conflictErr("Email already registered")
		}
		return Session{}, validationErr(err.Error())
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.authpw.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return Session{}, domainError(401, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.Name,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Email:     user.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}
