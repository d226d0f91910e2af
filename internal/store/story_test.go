package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

// openTestStore connects to the database named by TEST_DATABASE_URL and
// applies migrations. Tests are skipped when the variable is unset so the
// suite stays runnable without a local Postgres.
func openTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}

	ctx := context.Background()
	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db, "../../db/migrations"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db)
}

// seedProject creates a user and a project owned by them, cleaned up with
// the test. Acts, sequences and deeper rows cascade on project delete.
func seedProject(t *testing.T, s *PostgresStore) Project {
	t.Helper()
	ctx := context.Background()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())

	user := User{
		ID:    "usr_test_" + suffix,
		Email: "test-" + suffix + "@example.com",
		Name:  "Test User",
	}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	project := Project{
		ID:      "prj_test_" + suffix,
		Name:    "Test Project",
		OwnerID: user.ID,
	}
	if err := s.CreateProjectWithOwner(ctx, project); err != nil {
		t.Fatalf("create project: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM projects WHERE id=$1`, project.ID)
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM users WHERE id=$1`, user.ID)
	})
	return project
}

func seedActs(t *testing.T, s *PostgresStore, projectID string, titles ...string) []Act {
	t.Helper()
	ctx := context.Background()
	acts := make([]Act, 0, len(titles))
	for i, title := range titles {
		act, err := s.InsertAct(ctx, Act{
			ID:        fmt.Sprintf("act_test_%s_%d", projectID, i),
			ProjectID: projectID,
			Title:     title,
			Index:     i,
		})
		if err != nil {
			t.Fatalf("insert act %q: %v", title, err)
		}
		acts = append(acts, act)
	}
	return acts
}

func assertActOrder(t *testing.T, s *PostgresStore, projectID string, wantIDs []string) {
	t.Helper()
	acts, err := s.ListActsByProject(context.Background(), projectID)
	if err != nil {
		t.Fatalf("list acts: %v", err)
	}
	if len(acts) != len(wantIDs) {
		t.Fatalf("expected %d acts, got %d", len(wantIDs), len(acts))
	}
	for position, act := range acts {
		if act.ID != wantIDs[position] {
			t.Errorf("position %d: expected %s, got %s", position, wantIDs[position], act.ID)
		}
		if act.Index != position {
			t.Errorf("act %s: expected dense index %d, got %d", act.ID, position, act.Index)
		}
	}
}

func TestInsertActAppendCorrection(t *testing.T) {
	s := openTestStore(t)
	project := seedProject(t, s)
	ctx := context.Background()

	acts := seedActs(t, s, project.ID, "One", "Two", "Three")
	for i, act := range acts {
		if act.Index != i {
			t.Fatalf("act %d: expected index %d, got %d", i, i, act.Index)
		}
	}

	// A requested index at or below the current max is corrected to max+1,
	// never honored as an insert-in-the-middle.
	stale, err := s.InsertAct(ctx, Act{
		ID:        "act_test_stale_" + project.ID,
		ProjectID: project.ID,
		Title:     "Stale",
		Index:     1,
	})
	if err != nil {
		t.Fatalf("insert with stale index: %v", err)
	}
	if stale.Index != 3 {
		t.Fatalf("expected corrected index 3, got %d", stale.Index)
	}

	assertActOrder(t, s, project.ID, []string{acts[0].ID, acts[1].ID, acts[2].ID, stale.ID})
}

func TestInsertActEmptyGroupKeepsZero(t *testing.T) {
	s := openTestStore(t)
	project := seedProject(t, s)

	act, err := s.InsertAct(context.Background(), Act{
		ID:        "act_test_first_" + project.ID,
		ProjectID: project.ID,
		Title:     "First",
		Index:     0,
	})
	if err != nil {
		t.Fatalf("insert first act: %v", err)
	}
	if act.Index != 0 {
		t.Fatalf("expected index 0, got %d", act.Index)
	}
}

func TestReorderActsAssignsDenseIndices(t *testing.T) {
	s := openTestStore(t)
	project := seedProject(t, s)
	ctx := context.Background()

	acts := seedActs(t, s, project.ID, "A", "B", "C")
	a, b, c := acts[0].ID, acts[1].ID, acts[2].ID

	if err := s.ReorderActs(ctx, project.ID, []string{c, a, b}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	assertActOrder(t, s, project.ID, []string{c, a, b})

	// Reordering to the same permutation is a no-op, not an error.
	if err := s.ReorderActs(ctx, project.ID, []string{c, a, b}); err != nil {
		t.Fatalf("idempotent reorder: %v", err)
	}
	assertActOrder(t, s, project.ID, []string{c, a, b})
}

func TestReorderActsMismatchRollsBack(t *testing.T) {
	s := openTestStore(t)
	project := seedProject(t, s)
	ctx := context.Background()

	acts := seedActs(t, s, project.ID, "A", "B", "C")
	a, b, c := acts[0].ID, acts[1].ID, acts[2].ID

	cases := map[string][]string{
		"unknown id": {a, "act_bogus", c},
		"subset":     {c, a},
		"duplicates": {a, a, b},
		"extra id":   {c, a, b, "act_extra"},
	}
	for name, ids := range cases {
		if err := s.ReorderActs(ctx, project.ID, ids); !errors.Is(err, ErrSiblingMismatch) {
			t.Errorf("%s: expected ErrSiblingMismatch, got %v", name, err)
		}
		// Prior order must be intact after every failed attempt.
		assertActOrder(t, s, project.ID, []string{a, b, c})
	}
}

func TestDeleteActCompactsIndices(t *testing.T) {
	s := openTestStore(t)
	project := seedProject(t, s)
	ctx := context.Background()

	acts := seedActs(t, s, project.ID, "A", "B", "C")
	a, b, c := acts[0].ID, acts[1].ID, acts[2].ID

	if err := s.DeleteAct(ctx, b); err != nil {
		t.Fatalf("delete act: %v", err)
	}
	assertActOrder(t, s, project.ID, []string{a, c})

	// Appending after the compaction lands right after the survivors.
	appended, err := s.InsertAct(ctx, Act{
		ID:        "act_test_after_" + project.ID,
		ProjectID: project.ID,
		Title:     "After",
		Index:     0,
	})
	if err != nil {
		t.Fatalf("insert after delete: %v", err)
	}
	if appended.Index != 2 {
		t.Fatalf("expected index 2 after compaction, got %d", appended.Index)
	}
}

func TestDeleteMissingActReturnsNoRows(t *testing.T) {
	s := openTestStore(t)
	seedProject(t, s)

	if err := s.DeleteAct(context.Background(), "act_does_not_exist"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestResolveProjectIDWalksAncestorChain(t *testing.T) {
	s := openTestStore(t)
	project := seedProject(t, s)
	ctx := context.Background()

	act := seedActs(t, s, project.ID, "A")[0]
	sequence, err := s.InsertSequence(ctx, Sequence{
		ID:    "seq_test_" + project.ID,
		ActID: act.ID,
		Title: "Seq",
	})
	if err != nil {
		t.Fatalf("insert sequence: %v", err)
	}
	scene, err := s.InsertScene(ctx, Scene{
		ID:         "scn_test_" + project.ID,
		SequenceID: sequence.ID,
		Title:      "Scene",
	})
	if err != nil {
		t.Fatalf("insert scene: %v", err)
	}
	shot, err := s.InsertShot(ctx, Shot{
		ID:      "sht_test_" + project.ID,
		SceneID: scene.ID,
	})
	if err != nil {
		t.Fatalf("insert shot: %v", err)
	}

	for kind, id := range map[Kind]string{
		KindAct:      act.ID,
		KindSequence: sequence.ID,
		KindScene:    scene.ID,
		KindShot:     shot.ID,
	} {
		resolved, err := s.ResolveProjectID(ctx, kind, id)
		if err != nil {
			t.Errorf("resolve %s: %v", kind, err)
			continue
		}
		if resolved != project.ID {
			t.Errorf("resolve %s: expected %s, got %s", kind, project.ID, resolved)
		}
	}

	if _, err := s.ResolveProjectID(ctx, KindShot, "sht_missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for missing shot, got %v", err)
	}
}
