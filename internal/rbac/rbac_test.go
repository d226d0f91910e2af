package rbac

import "testing"

func TestInIsExactSetMembership(t *testing.T) {
	if RoleOwner.In([]Role{RoleEditor}) {
		t.Fatal("OWNER must not satisfy a check naming only EDITOR")
	}
	if !RoleOwner.In(Writers()) {
		t.Fatal("OWNER belongs to the writer set")
	}
	if !RoleEditor.In(Writers()) {
		t.Fatal("EDITOR belongs to the writer set")
	}
	if RoleViewer.In(Writers()) {
		t.Fatal("VIEWER must not belong to the writer set")
	}
	if RoleEditor.In(Owners()) {
		t.Fatal("EDITOR must not belong to the owner set")
	}
}

func TestValid(t *testing.T) {
	for _, role := range []string{"OWNER", "EDITOR", "VIEWER"} {
		if !Valid(role) {
			t.Errorf("expected %q to be valid", role)
		}
	}
	for _, role := range []string{"", "owner", "ADMIN", "Viewer"} {
		if Valid(role) {
			t.Errorf("expected %q to be invalid", role)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("EDITOR") != RoleEditor {
		t.Fatal("known role should pass through")
	}
	if Normalize("superuser") != RoleViewer {
		t.Fatal("unknown role should map to VIEWER")
	}
}
