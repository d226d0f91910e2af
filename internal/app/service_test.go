package app

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"fabula/api/internal/authpw"
	"fabula/api/internal/config"
	"fabula/api/internal/rbac"
	"fabula/api/internal/store"
)

type fakeStore struct {
	getUserByEmailFn       func(context.Context, string) (store.User, error)
	getUserByIDFn          func(context.Context, string) (store.User, error)
	createUserFn           func(context.Context, store.User) error
	createProjectFn        func(context.Context, store.Project) error
	getProjectFn           func(context.Context, string) (store.Project, error)
	getMembershipFn        func(context.Context, string, string) (store.Membership, error)
	listMembershipsFn      func(context.Context, string) ([]store.Membership, error)
	insertMembershipFn     func(context.Context, store.Membership) error
	updateMembershipFn     func(context.Context, string, string, string) (store.Membership, error)
	deleteMembershipFn     func(context.Context, string, string) error
	resolveProjectIDFn     func(context.Context, store.Kind, string) (string, error)
	insertActFn            func(context.Context, store.Act) (store.Act, error)
	listActsFn             func(context.Context, string) ([]store.Act, error)
	reorderActsFn          func(context.Context, string, []string) error
	getCharacterFn         func(context.Context, string) (store.Character, error)
	insertRelationshipFn   func(context.Context, store.CharacterRelationship) (store.CharacterRelationship, error)
	replaceSceneCharsFn    func(context.Context, string, []string) error
	getLocationFn          func(context.Context, string) (store.Location, error)
	deleteProjectFn        func(context.Context, string) error
	deleteActFn            func(context.Context, string) error
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return nil
}
func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID, Name: "User"}, nil
}

func (f *fakeStore) SaveRefreshSession(context.Context, string, string, time.Time) error { return nil }
func (f *fakeStore) LookupRefreshSession(context.Context, string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeRefreshSession(context.Context, string) error        { return nil }
func (f *fakeStore) RevokeAccessToken(context.Context, string, time.Time) error { return nil }
func (f *fakeStore) IsAccessTokenRevoked(context.Context, string) (bool, error) { return false, nil }

func (f *fakeStore) CreateProjectWithOwner(ctx context.Context, project store.Project) error {
	if f.createProjectFn != nil {
		return f.createProjectFn(ctx, project)
	}
	return nil
}
func (f *fakeStore) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, projectID)
	}
	return store.Project{}, sql.ErrNoRows
}
func (f *fakeStore) ListProjectsForUser(context.Context, string) ([]store.ProjectSummary, error) {
	return nil, nil
}
func (f *fakeStore) UpdateProject(ctx context.Context, projectID, name, description string) (store.Project, error) {
	return store.Project{ID: projectID, Name: name, Description: description}, nil
}
func (f *fakeStore) DeleteProject(ctx context.Context, projectID string) error {
	if f.deleteProjectFn != nil {
		return f.deleteProjectFn(ctx, projectID)
	}
	return nil
}

func (f *fakeStore) GetMembership(ctx context.Context, projectID, userID string) (store.Membership, error) {
	if f.getMembershipFn != nil {
		return f.getMembershipFn(ctx, projectID, userID)
	}
	return store.Membership{}, sql.ErrNoRows
}
func (f *fakeStore) ListMemberships(ctx context.Context, projectID string) ([]store.Membership, error) {
	if f.listMembershipsFn != nil {
		return f.listMembershipsFn(ctx, projectID)
	}
	return nil, nil
}
func (f *fakeStore) InsertMembership(ctx context.Context, membership store.Membership) error {
	if f.insertMembershipFn != nil {
		return f.insertMembershipFn(ctx, membership)
	}
	return nil
}
func (f *fakeStore) UpdateMembershipRole(ctx context.Context, projectID, userID, role string) (store.Membership, error) {
	if f.updateMembershipFn != nil {
		return f.updateMembershipFn(ctx, projectID, userID, role)
	}
	return store.Membership{ProjectID: projectID, UserID: userID, Role: role}, nil
}
func (f *fakeStore) DeleteMembership(ctx context.Context, projectID, userID string) error {
	if f.deleteMembershipFn != nil {
		return f.deleteMembershipFn(ctx, projectID, userID)
	}
	return nil
}

func (f *fakeStore) ResolveProjectID(ctx context.Context, kind store.Kind, id string) (string, error) {
	if f.resolveProjectIDFn != nil {
		return f.resolveProjectIDFn(ctx, kind, id)
	}
	return "", sql.ErrNoRows
}

func (f *fakeStore) InsertAct(ctx context.Context, act store.Act) (store.Act, error) {
	if f.insertActFn != nil {
		return f.insertActFn(ctx, act)
	}
	return act, nil
}
func (f *fakeStore) ListActsByProject(ctx context.Context, projectID string) ([]store.Act, error) {
	if f.listActsFn != nil {
		return f.listActsFn(ctx, projectID)
	}
	return nil, nil
}
func (f *fakeStore) GetAct(ctx context.Context, actID string) (store.Act, error) {
	return store.Act{ID: actID}, nil
}
func (f *fakeStore) UpdateAct(ctx context.Context, actID, title, summary string) (store.Act, error) {
	return store.Act{ID: actID, Title: title, Summary: summary}, nil
}
func (f *fakeStore) DeleteAct(ctx context.Context, actID string) error {
	if f.deleteActFn != nil {
		return f.deleteActFn(ctx, actID)
	}
	return nil
}
func (f *fakeStore) ReorderActs(ctx context.Context, projectID string, actIDs []string) error {
	if f.reorderActsFn != nil {
		return f.reorderActsFn(ctx, projectID, actIDs)
	}
	return nil
}

func (f *fakeStore) InsertSequence(ctx context.Context, sequence store.Sequence) (store.Sequence, error) {
	return sequence, nil
}
func (f *fakeStore) ListSequencesByAct(context.Context, string) ([]store.Sequence, error) {
	return nil, nil
}
func (f *fakeStore) GetSequence(ctx context.Context, sequenceID string) (store.Sequence, error) {
	return store.Sequence{ID: sequenceID}, nil
}
func (f *fakeStore) UpdateSequence(ctx context.Context, sequenceID, title, summary string) (store.Sequence, error) {
	return store.Sequence{ID: sequenceID, Title: title, Summary: summary}, nil
}
func (f *fakeStore) DeleteSequence(context.Context, string) error { return nil }
func (f *fakeStore) ReorderSequences(context.Context, string, []string) error { return nil }

func (f *fakeStore) InsertScene(ctx context.Context, scene store.Scene) (store.Scene, error) {
	return scene, nil
}
func (f *fakeStore) ListScenesBySequence(context.Context, string) ([]store.Scene, error) {
	return nil, nil
}
func (f *fakeStore) GetScene(ctx context.Context, sceneID string) (store.Scene, error) {
	return store.Scene{ID: sceneID}, nil
}
func (f *fakeStore) UpdateScene(ctx context.Context, sceneID, title, summary string, locationID *string) (store.Scene, error) {
	return store.Scene{ID: sceneID, Title: title, Summary: summary, LocationID: locationID}, nil
}
func (f *fakeStore) DeleteScene(context.Context, string) error { return nil }
func (f *fakeStore) ReorderScenes(context.Context, string, []string) error { return nil }
func (f *fakeStore) ReplaceSceneCharacters(ctx context.Context, sceneID string, characterIDs []string) error {
	if f.replaceSceneCharsFn != nil {
		return f.replaceSceneCharsFn(ctx, sceneID, characterIDs)
	}
	return nil
}
func (f *fakeStore) ListSceneCharacters(context.Context, string) ([]store.CharacterRef, error) {
	return nil, nil
}

func (f *fakeStore) InsertShot(ctx context.Context, shot store.Shot) (store.Shot, error) {
	return shot, nil
}
func (f *fakeStore) ListShotsByScene(context.Context, string) ([]store.Shot, error) { return nil, nil }
func (f *fakeStore) GetShot(ctx context.Context, shotID string) (store.Shot, error) {
	return store.Shot{ID: shotID}, nil
}
func (f *fakeStore) UpdateShot(ctx context.Context, shotID, description, cameraNotes string) (store.Shot, error) {
	return store.Shot{ID: shotID, Description: description, CameraNotes: cameraNotes}, nil
}
func (f *fakeStore) DeleteShot(context.Context, string) error { return nil }

func (f *fakeStore) InsertCharacter(ctx context.Context, character store.Character) (store.Character, error) {
	return character, nil
}
func (f *fakeStore) ListCharactersByProject(context.Context, string) ([]store.Character, error) {
	return nil, nil
}
func (f *fakeStore) GetCharacter(ctx context.Context, characterID string) (store.Character, error) {
	if f.getCharacterFn != nil {
		return f.getCharacterFn(ctx, characterID)
	}
	return store.Character{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateCharacter(ctx context.Context, characterID, name, bio, imageURL string) (store.Character, error) {
	return store.Character{ID: characterID, Name: name, Bio: bio, ImageURL: imageURL}, nil
}
func (f *fakeStore) DeleteCharacter(context.Context, string) error { return nil }

func (f *fakeStore) InsertArc(ctx context.Context, arc store.CharacterArc) (store.CharacterArc, error) {
	return arc, nil
}
func (f *fakeStore) ListArcsByCharacter(context.Context, string) ([]store.CharacterArc, error) {
	return nil, nil
}
func (f *fakeStore) GetArc(ctx context.Context, arcID string) (store.CharacterArc, error) {
	return store.CharacterArc{ID: arcID}, nil
}
func (f *fakeStore) UpdateArc(ctx context.Context, arcID, title string, season int, summary string) (store.CharacterArc, error) {
	return store.CharacterArc{ID: arcID, Title: title, Season: season, Summary: summary}, nil
}
func (f *fakeStore) DeleteArc(context.Context, string) error { return nil }

func (f *fakeStore) InsertBeat(ctx context.Context, beat store.ArcBeat) (store.ArcBeat, error) {
	return beat, nil
}
func (f *fakeStore) ListBeatsByArc(context.Context, string) ([]store.ArcBeat, error) { return nil, nil }
func (f *fakeStore) UpdateBeat(ctx context.Context, beatID, title, summary string, sceneID *string) (store.ArcBeat, error) {
	return store.ArcBeat{ID: beatID, Title: title, Summary: summary, SceneID: sceneID}, nil
}
func (f *fakeStore) DeleteBeat(context.Context, string) error { return nil }

func (f *fakeStore) InsertFact(ctx context.Context, fact store.CharacterFact) (store.CharacterFact, error) {
	return fact, nil
}
func (f *fakeStore) ListFactsByCharacter(context.Context, string) ([]store.CharacterFact, error) {
	return nil, nil
}
func (f *fakeStore) UpdateFact(ctx context.Context, factID, factText string, knownBy []string) (store.CharacterFact, error) {
	return store.CharacterFact{ID: factID, Fact: factText, KnownBy: knownBy}, nil
}
func (f *fakeStore) DeleteFact(context.Context, string) error { return nil }

func (f *fakeStore) InsertRelationship(ctx context.Context, rel store.CharacterRelationship) (store.CharacterRelationship, error) {
	if f.insertRelationshipFn != nil {
		return f.insertRelationshipFn(ctx, rel)
	}
	return rel, nil
}
func (f *fakeStore) ListOutgoingRelationships(context.Context, string) ([]store.CharacterRelationship, error) {
	return nil, nil
}
func (f *fakeStore) ListIncomingRelationships(context.Context, string) ([]store.CharacterRelationship, error) {
	return nil, nil
}
func (f *fakeStore) UpdateRelationship(ctx context.Context, relationshipID, label, description, dynamic string) (store.CharacterRelationship, error) {
	return store.CharacterRelationship{ID: relationshipID, Label: label, Description: description, Dynamic: dynamic}, nil
}
func (f *fakeStore) DeleteRelationship(context.Context, string) error { return nil }

func (f *fakeStore) InsertLocation(ctx context.Context, location store.Location) (store.Location, error) {
	return location, nil
}
func (f *fakeStore) ListLocationsByProject(context.Context, string) ([]store.Location, error) {
	return nil, nil
}
func (f *fakeStore) GetLocation(ctx context.Context, locationID string) (store.Location, error) {
	if f.getLocationFn != nil {
		return f.getLocationFn(ctx, locationID)
	}
	return store.Location{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateLocation(ctx context.Context, locationID, name, description, imageURL string) (store.Location, error) {
	return store.Location{ID: locationID, Name: name, Description: description, ImageURL: imageURL}, nil
}
func (f *fakeStore) DeleteLocation(context.Context, string) error { return nil }

func (f *fakeStore) InsertRule(ctx context.Context, rule store.WorldRule) (store.WorldRule, error) {
	return rule, nil
}
func (f *fakeStore) ListRulesByProject(context.Context, string) ([]store.WorldRule, error) {
	return nil, nil
}
func (f *fakeStore) GetRule(ctx context.Context, ruleID string) (store.WorldRule, error) {
	return store.WorldRule{ID: ruleID}, nil
}
func (f *fakeStore) UpdateRule(ctx context.Context, ruleID, category, title, description string) (store.WorldRule, error) {
	return store.WorldRule{ID: ruleID, Category: category, Title: title, Description: description}, nil
}
func (f *fakeStore) DeleteRule(context.Context, string) error { return nil }

func newTestService(fake *fakeStore) *Service {
	cfg := config.Config{
		TokenSecret: "test-secret",
		AccessTTL:   time.Hour,
		RefreshTTL:  24 * time.Hour,
	}
	s := &Service{
		cfg:         cfg,
		store:       fake,
		parentLocks: make(map[string]*sync.Mutex),
	}
	s.sessions = pgSessions{store: fake}
	s.authpw = authpw.NewService(fake)
	return s
}

func wantDomainErr(t *testing.T, err error, status int, message string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", status)
	}
	domainErr, ok := err.(*DomainError)
	if !ok {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	if domainErr.Status != status {
		t.Fatalf("expected status %d, got %d (%s)", status, domainErr.Status, domainErr.Message)
	}
	if message != "" && domainErr.Message != message {
		t.Fatalf("expected message %q, got %q", message, domainErr.Message)
	}
}

func memberOf(projectID, userID, role string) func(context.Context, string, string) (store.Membership, error) {
	return func(_ context.Context, gotProject, gotUser string) (store.Membership, error) {
		if gotProject == projectID && gotUser == userID {
			return store.Membership{ProjectID: projectID, UserID: userID, Role: role}, nil
		}
		return store.Membership{}, sql.ErrNoRows
	}
}

func projectExists(projectID, ownerID string) func(context.Context, string) (store.Project, error) {
	return func(_ context.Context, gotID string) (store.Project, error) {
		if gotID == projectID {
			return store.Project{ID: projectID, Name: "Project", OwnerID: ownerID}, nil
		}
		return store.Project{}, sql.ErrNoRows
	}
}

func TestNonMemberIsForbidden(t *testing.T) {
	fake := &fakeStore{
		getProjectFn: projectExists("prj_1", "usr_owner"),
	}
	svc := newTestService(fake)

	_, err := svc.GetProject(context.Background(), Session{UserID: "usr_stranger"}, "prj_1")
	wantDomainErr(t, err, 403, "No access to this project")
}

func TestViewerCannotWrite(t *testing.T) {
	fake := &fakeStore{
		getProjectFn:    projectExists("prj_1", "usr_owner"),
		getMembershipFn: memberOf("prj_1", "usr_viewer", "VIEWER"),
	}
	svc := newTestService(fake)

	_, err := svc.UpdateProject(context.Background(), Session{UserID: "usr_viewer"}, "prj_1", "New name", "")
	wantDomainErr(t, err, 403, "Insufficient permissions")
}

func TestRoleCheckIsSetMembershipNotHierarchy(t *testing.T) {
	fake := &fakeStore{
		getMembershipFn: memberOf("prj_1", "usr_owner", "OWNER"),
	}
	svc := newTestService(fake)

	// OWNER does not satisfy a check that names only EDITOR.
	_, err := svc.assertProjectAccess(context.Background(), "prj_1", "usr_owner", rbac.RoleEditor)
	wantDomainErr(t, err, 403, "Insufficient permissions")

	// Any member passes when no roles are named.
	if _, err := svc.assertProjectAccess(context.Background(), "prj_1", "usr_owner"); err != nil {
		t.Fatalf("expected read access for member, got %v", err)
	}
}

func TestEditorCanWriteButNotManageMembers(t *testing.T) {
	fake := &fakeStore{
		getProjectFn:    projectExists("prj_1", "usr_owner"),
		getMembershipFn: memberOf("prj_1", "usr_editor", "EDITOR"),
	}
	svc := newTestService(fake)
	session := Session{UserID: "usr_editor"}

	if _, err := svc.UpdateProject(context.Background(), session, "prj_1", "Renamed", ""); err != nil {
		t.Fatalf("editor should update project: %v", err)
	}
	if _, err := svc.CreateAct(context.Background(), session, "prj_1", "Act I", "", 0); err != nil {
		t.Fatalf("editor should create act: %v", err)
	}

	err := svc.RemoveMember(context.Background(), session, "prj_1", "usr_other")
	wantDomainErr(t, err, 403, "Insufficient permissions")

	err = svc.DeleteProject(context.Background(), session, "prj_1")
	wantDomainErr(t, err, 403, "Insufficient permissions")
}

func TestResolveMissingEntityIsNotFound(t *testing.T) {
	fake := &fakeStore{}
	svc := newTestService(fake)

	// Resolution fails before any access check can run.
	_, err := svc.UpdateScene(context.Background(), Session{UserID: "usr_1"}, "scn_missing", "T", "", nil)
	wantDomainErr(t, err, 404, "Scene not found")

	err = svc.DeleteShot(context.Background(), Session{UserID: "usr_1"}, "sht_missing")
	wantDomainErr(t, err, 404, "Shot not found")
}

func TestResolverReceivesEntityKind(t *testing.T) {
	var gotKind store.Kind
	fake := &fakeStore{
		resolveProjectIDFn: func(_ context.Context, kind store.Kind, _ string) (string, error) {
			gotKind = kind
			return "prj_1", nil
		},
		getMembershipFn: memberOf("prj_1", "usr_1", "EDITOR"),
	}
	svc := newTestService(fake)

	if _, err := svc.UpdateShot(context.Background(), Session{UserID: "usr_1"}, "sht_1", "wide", ""); err != nil {
		t.Fatalf("UpdateShot failed: %v", err)
	}
	if gotKind != store.KindShot {
		t.Fatalf("expected shot kind, got %q", gotKind)
	}
}

func TestCreateProjectSetsOwnerMembership(t *testing.T) {
	var created store.Project
	fake := &fakeStore{
		createProjectFn: func(_ context.Context, project store.Project) error {
			created = project
			return nil
		},
	}
	svc := newTestService(fake)

	payload, err := svc.CreateProject(context.Background(), Session{UserID: "usr_1"}, "Saga", "epic")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if created.OwnerID != "usr_1" {
		t.Fatalf("expected owner usr_1, got %q", created.OwnerID)
	}
	if payload["role"] != "OWNER" {
		t.Fatalf("expected creator role OWNER, got %v", payload["role"])
	}
}

func TestAddMemberUnknownEmail(t *testing.T) {
	fake := &fakeStore{
		getProjectFn:    projectExists("prj_1", "usr_owner"),
		getMembershipFn: memberOf("prj_1", "usr_owner", "OWNER"),
	}
	svc := newTestService(fake)

	_, err := svc.AddMember(context.Background(), Session{UserID: "usr_owner"}, "prj_1", "ghost@example.com", "VIEWER")
	wantDomainErr(t, err, 404, "No user with that email")
}

func TestAddMemberDuplicateConflict(t *testing.T) {
	fake := &fakeStore{
		getProjectFn: projectExists("prj_1", "usr_owner"),
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "usr_target", Email: email, Name: "Target"}, nil
		},
		getMembershipFn: func(_ context.Context, projectID, userID string) (store.Membership, error) {
			// Both the acting owner and the target already hold memberships.
			role := "OWNER"
			if userID == "usr_target" {
				role = "VIEWER"
			}
			return store.Membership{ProjectID: projectID, UserID: userID, Role: role}, nil
		},
	}
	svc := newTestService(fake)

	_, err := svc.AddMember(context.Background(), Session{UserID: "usr_owner"}, "prj_1", "target@example.com", "EDITOR")
	wantDomainErr(t, err, 409, "User is already a member of this project")
}

func TestAddMemberInvalidRole(t *testing.T) {
	fake := &fakeStore{
		getProjectFn:    projectExists("prj_1", "usr_owner"),
		getMembershipFn: memberOf("prj_1", "usr_owner", "OWNER"),
	}
	svc := newTestService(fake)

	_, err := svc.AddMember(context.Background(), Session{UserID: "usr_owner"}, "prj_1", "new@example.com", "ADMIN")
	wantDomainErr(t, err, 422, "")
}

func TestOwnerRoleIsImmutable(t *testing.T) {
	fake := &fakeStore{
		getProjectFn:    projectExists("prj_1", "usr_owner"),
		getMembershipFn: memberOf("prj_1", "usr_owner", "OWNER"),
	}
	svc := newTestService(fake)
	session := Session{UserID: "usr_owner"}

	_, err := svc.UpdateMemberRole(context.Background(), session, "prj_1", "usr_owner", "EDITOR")
	wantDomainErr(t, err, 403, "Cannot change the project owner's role")

	// The trivial self-assignment is allowed.
	if _, err := svc.UpdateMemberRole(context.Background(), session, "prj_1", "usr_owner", "OWNER"); err != nil {
		t.Fatalf("owner-to-owner update should pass: %v", err)
	}
}

func TestOwnerCannotBeRemoved(t *testing.T) {
	fake := &fakeStore{
		getProjectFn:    projectExists("prj_1", "usr_owner"),
		getMembershipFn: memberOf("prj_1", "usr_owner", "OWNER"),
	}
	svc := newTestService(fake)

	err := svc.RemoveMember(context.Background(), Session{UserID: "usr_owner"}, "prj_1", "usr_owner")
	wantDomainErr(t, err, 403, "Cannot remove the project owner")
}

func TestReorderActsSiblingMismatchIsConflict(t *testing.T) {
	fake := &fakeStore{
		getProjectFn:    projectExists("prj_1", "usr_owner"),
		getMembershipFn: memberOf("prj_1", "usr_owner", "OWNER"),
		reorderActsFn: func(context.Context, string, []string) error {
			return store.ErrSiblingMismatch
		},
	}
	svc := newTestService(fake)

	_, err := svc.ReorderActs(context.Background(), Session{UserID: "usr_owner"}, "prj_1", []string{"act_x"})
	wantDomainErr(t, err, 409, "Ordered ids do not match the current acts")
}

func TestReorderActsReturnsNewOrder(t *testing.T) {
	var reordered []string
	fake := &fakeStore{
		getProjectFn:    projectExists("prj_1", "usr_owner"),
		getMembershipFn: memberOf("prj_1", "usr_owner", "OWNER"),
		reorderActsFn: func(_ context.Context, _ string, actIDs []string) error {
			reordered = actIDs
			return nil
		},
		listActsFn: func(context.Context, string) ([]store.Act, error) {
			return []store.Act{
				{ID: "act_c", Title: "C", Index: 0},
				{ID: "act_a", Title: "A", Index: 1},
				{ID: "act_b", Title: "B", Index: 2},
			}, nil
		},
	}
	svc := newTestService(fake)

	items, err := svc.ReorderActs(context.Background(), Session{UserID: "usr_owner"}, "prj_1", []string{"act_c", "act_a", "act_b"})
	if err != nil {
		t.Fatalf("ReorderActs failed: %v", err)
	}
	if len(reordered) != 3 || reordered[0] != "act_c" {
		t.Fatalf("store received wrong order: %v", reordered)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 acts, got %d", len(items))
	}
	for position, want := range []string{"act_c", "act_a", "act_b"} {
		if items[position]["id"] != want || items[position]["index"] != position {
			t.Fatalf("position %d: got %v (index %v)", position, items[position]["id"], items[position]["index"])
		}
	}
}

func TestRelationshipTargetMustShareProject(t *testing.T) {
	fake := &fakeStore{
		resolveProjectIDFn: func(context.Context, store.Kind, string) (string, error) {
			return "prj_1", nil
		},
		getMembershipFn: memberOf("prj_1", "usr_1", "EDITOR"),
		getCharacterFn: func(_ context.Context, characterID string) (store.Character, error) {
			return store.Character{ID: characterID, ProjectID: "prj_other"}, nil
		},
	}
	svc := newTestService(fake)

	_, err := svc.CreateRelationship(context.Background(), Session{UserID: "usr_1"}, "chr_from", "chr_to", "rival", "", "")
	wantDomainErr(t, err, 422, "Characters belong to different projects")
}

func TestSceneLocationMustShareProject(t *testing.T) {
	locationID := "loc_1"
	fake := &fakeStore{
		resolveProjectIDFn: func(context.Context, store.Kind, string) (string, error) {
			return "prj_1", nil
		},
		getMembershipFn: memberOf("prj_1", "usr_1", "EDITOR"),
		getLocationFn: func(_ context.Context, id string) (store.Location, error) {
			return store.Location{ID: id, ProjectID: "prj_other"}, nil
		},
	}
	svc := newTestService(fake)

	_, err := svc.CreateScene(context.Background(), Session{UserID: "usr_1"}, "seq_1", "Opening", "", &locationID, 0, nil)
	wantDomainErr(t, err, 422, "Location belongs to a different project")
}

func TestSessionRoundTrip(t *testing.T) {
	users := map[string]store.User{}
	fake := &fakeStore{
		createUserFn: func(_ context.Context, user store.User) error {
			users[user.ID] = user
			return nil
		},
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			user, ok := users[userID]
			if !ok {
				return store.User{}, sql.ErrNoRows
			}
			return user, nil
		},
	}
	svc := newTestService(fake)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, "writer@example.com", "longenough", "Writer")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatal("expected tokens in session")
	}

	parsed, err := svc.SessionFromToken(ctx, session.Token)
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	if parsed.UserID != session.UserID || parsed.Email != "writer@example.com" {
		t.Fatalf("unexpected parsed session: %+v", parsed)
	}
}
