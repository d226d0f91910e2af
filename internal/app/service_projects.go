package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"fabula/api/internal/rbac"
	"fabula/api/internal/store"
	"fabula/api/internal/util"
)

// CreateProject creates the project row and the creator's OWNER membership
// as one atomic unit. If either write fails, neither persists.
func (s *Service) CreateProject(ctx context.Context, session Session, name, description string) (map[string]any, error) {
	projectName := strings.TrimSpace(name)
	if projectName == "" {
		return nil, validationErr("name is required")
	}

	project := store.Project{
		ID:          util.NewID("prj"),
		Name:        projectName,
		Description: strings.TrimSpace(description),
		OwnerID:     session.UserID,
	}
	if err := s.store.CreateProjectWithOwner(ctx, project); err != nil {
		return nil, err
	}

	return map[string]any{
		"id":          project.ID,
		"name":        project.Name,
		"description": project.Description,
		"ownerId":     project.OwnerID,
		"role":        string(rbac.RoleOwner),
	}, nil
}

func (s *Service) ListProjects(ctx context.Context, session Session) ([]map[string]any, error) {
	summaries, err := s.store.ListProjectsForUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, map[string]any{
			"id":             summary.ID,
			"name":           summary.Name,
			"description":    summary.Description,
			"ownerId":        summary.OwnerID,
			"role":           summary.Role,
			"memberCount":    summary.MemberCount,
			"actCount":       summary.ActCount,
			"characterCount": summary.CharacterCount,
			"updatedAt":      summary.UpdatedAt,
		})
	}
	return items, nil
}

func (s *Service) GetProject(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}

	memberships, err := s.store.ListMemberships(ctx, projectID)
	if err != nil {
		return nil, err
	}

	members := make([]map[string]any, 0, len(memberships))
	for _, m := range memberships {
		members = append(members, membershipPayload(m))
	}

	return map[string]any{
		"id":          project.ID,
		"name":        project.Name,
		"description": project.Description,
		"ownerId":     project.OwnerID,
		"createdAt":   project.CreatedAt,
		"updatedAt":   project.UpdatedAt,
		"members":     members,
	}, nil
}

func (s *Service) UpdateProject(ctx context.Context, session Session, projectID, name, description string) (map[string]any, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Writers()...); err != nil {
		return nil, err
	}

	projectName := strings.TrimSpace(name)
	if projectName == "" {
		projectName = project.Name
	}
	updated, err := s.store.UpdateProject(ctx, projectID, projectName, strings.TrimSpace(description))
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"id":          updated.ID,
		"name":        updated.Name,
		"description": updated.Description,
		"ownerId":     updated.OwnerID,
		"updatedAt":   updated.UpdatedAt,
	}, nil
}

func (s *Service) DeleteProject(ctx context.Context, session Session, projectID string) error {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Owners()...); err != nil {
		return err
	}
	return s.store.DeleteProject(ctx, projectID)
}

// AddMember resolves the target user by email and adds a membership.
// Only the OWNER may manage memberships.
func (s *Service) AddMember(ctx context.Context, session Session, projectID, email, role string) (map[string]any, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Owners()...); err != nil {
		return nil, err
	}
	if !rbac.Valid(role) {
		return nil, validationErr("role must be one of OWNER, EDITOR, VIEWER")
	}

	target, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("No user with that email")
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetMembership(ctx, projectID, target.ID); err == nil {
		return nil, conflictErr("User is already a member of this project")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	membership := store.Membership{
		ProjectID: projectID,
		UserID:    target.ID,
		Role:      role,
		UserName:  target.Name,
		UserEmail: target.Email,
	}
	if err := s.store.InsertMembership(ctx, membership); err != nil {
		return nil, err
	}
	return membershipPayload(membership), nil
}

// UpdateMemberRole changes a member's role. The owner's role is immutable
// except trivially to itself.
func (s *Service) UpdateMemberRole(ctx context.Context, session Session, projectID, targetUserID, newRole string) (map[string]any, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Owners()...); err != nil {
		return nil, err
	}
	if !rbac.Valid(newRole) {
		return nil, validationErr("role must be one of OWNER, EDITOR, VIEWER")
	}
	if targetUserID == project.OwnerID && rbac.Role(newRole) != rbac.RoleOwner {
		return nil, forbiddenErr("Cannot change the project owner's role")
	}

	membership, err := s.store.UpdateMembershipRole(ctx, projectID, targetUserID, newRole)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("Membership not found")
	}
	if err != nil {
		return nil, err
	}
	return membershipPayload(membership), nil
}

// RemoveMember removes a member. The owner can never be removed while
// still owning the project.
func (s *Service) RemoveMember(ctx context.Context, session Session, projectID, targetUserID string) error {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return err
	}
	if _, err := s.assertProjectAccess(ctx, projectID, session.UserID, rbac.Owners()...); err != nil {
		return err
	}
	if targetUserID == project.OwnerID {
		return forbiddenErr("Cannot remove the project owner")
	}

	err = s.store.DeleteMembership(ctx, projectID, targetUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("Membership not found")
	}
	return err
}

func (s *Service) getProject(ctx context.Context, projectID string) (store.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Project{}, notFoundErr("Project not found")
	}
	if err != nil {
		return store.Project{}, err
	}
	return project, nil
}

func membershipPayload(m store.Membership) map[string]any {
	return map[string]any{
		"projectId": m.ProjectID,
		"userId":    m.UserID,
		"role":      m.Role,
		"joinedAt":  m.JoinedAt,
		"userName":  m.UserName,
		"userEmail": m.UserEmail,
	}
}
