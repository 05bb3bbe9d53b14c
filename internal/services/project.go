package services

import (
	"context"
	"errors"

	"github.com/joineazy/feedback-apiserver/internal/store"
	"github.com/joineazy/feedback-apiserver/types"
)

// ErrStudentNotFound is returned when a referenced student id does not
// resolve to an existing user with the student role. A user with another
// role is treated as nonexistent.
var ErrStudentNotFound = errors.New("student not found")

// ErrProjectNotFound is returned when a referenced project does not exist.
var ErrProjectNotFound = errors.New("project not found")

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	Create(ctx context.Context, project types.Project, memberIDs []int) (types.Project, error)
	GetByID(ctx context.Context, id int) (types.Project, error)
	List(ctx context.Context, search string) ([]types.Project, error)
	Update(ctx context.Context, project types.Project, memberIDs []int) (types.Project, error)
	IsMember(ctx context.Context, projectID, userID int) (bool, error)
}

// ProjectService encapsulates project use-cases.
type ProjectService struct {
	repo  ProjectRepository
	users UserRepository
}

func NewProjectService(repo ProjectRepository, users UserRepository) *ProjectService {
	return &ProjectService{repo: repo, users: users}
}

// Create persists a project. Every team member id must resolve to an
// existing user with the student role.
func (s *ProjectService) Create(ctx context.Context, project types.Project, memberIDs []int) (types.Project, error) {
	if err := s.checkMembers(ctx, memberIDs); err != nil {
		return types.Project{}, err
	}
	return s.repo.Create(ctx, project, memberIDs)
}

func (s *ProjectService) Get(ctx context.Context, id int) (types.Project, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProjectService) List(ctx context.Context, search string) ([]types.Project, error) {
	return s.repo.List(ctx, search)
}

// Update rewrites a project and its membership. No route reaches this; it
// exists only at the data layer.
func (s *ProjectService) Update(ctx context.Context, project types.Project, memberIDs []int) (types.Project, error) {
	if err := s.checkMembers(ctx, memberIDs); err != nil {
		return types.Project{}, err
	}
	return s.repo.Update(ctx, project, memberIDs)
}

// IsMember reports whether the user belongs to the project's team.
func (s *ProjectService) IsMember(ctx context.Context, projectID, userID int) (bool, error) {
	return s.repo.IsMember(ctx, projectID, userID)
}

func (s *ProjectService) checkMembers(ctx context.Context, memberIDs []int) error {
	for _, memberID := range memberIDs {
		member, err := s.users.GetByID(ctx, memberID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrStudentNotFound
			}
			return err
		}
		if member.Role != types.RoleStudent {
			return ErrStudentNotFound
		}
	}
	return nil
}
