package services

import (
	"context"
	"errors"

	"github.com/joineazy/feedback-apiserver/internal/store"
	"github.com/joineazy/feedback-apiserver/types"
)

// FeedbackRepository defines persistence operations for feedback records.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback types.Feedback) (types.Feedback, error)
	GetByID(ctx context.Context, id int) (types.Feedback, error)
	ListForStudent(ctx context.Context, studentID int) ([]types.Feedback, error)
	ListForProject(ctx context.Context, projectID int) ([]types.Feedback, error)
	List(ctx context.Context, filter types.FeedbackFilter) ([]types.Feedback, error)
}

// FeedbackService encapsulates feedback use-cases.
type FeedbackService struct {
	repo     FeedbackRepository
	users    UserRepository
	projects ProjectRepository
}

func NewFeedbackService(repo FeedbackRepository, users UserRepository, projects ProjectRepository) *FeedbackService {
	return &FeedbackService{repo: repo, users: users, projects: projects}
}

// Create validates the referenced student and project, then persists the
// record with the project's current title snapshotted onto it. The student
// id must resolve to a user with the student role; any other role is
// reported as ErrStudentNotFound. Rubric scores must carry exactly the
// fixed keys within range; nothing is clamped.
func (s *FeedbackService) Create(ctx context.Context, feedback types.Feedback) (types.Feedback, error) {
	student, err := s.users.GetByID(ctx, feedback.StudentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Feedback{}, ErrStudentNotFound
		}
		return types.Feedback{}, err
	}
	if student.Role != types.RoleStudent {
		return types.Feedback{}, ErrStudentNotFound
	}

	project, err := s.projects.GetByID(ctx, feedback.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Feedback{}, ErrProjectNotFound
		}
		return types.Feedback{}, err
	}

	if err := feedback.RubricScores.Validate(); err != nil {
		return types.Feedback{}, err
	}

	feedback.ProjectTitle = project.Title
	created, err := s.repo.Create(ctx, feedback)
	if err != nil {
		return types.Feedback{}, err
	}

	created.StudentName = student.Username
	created.ProjectDescription = project.Description
	return created, nil
}

func (s *FeedbackService) Get(ctx context.Context, id int) (types.Feedback, error) {
	return s.repo.GetByID(ctx, id)
}

// ListForStudent returns all records addressed to the student, newest
// first.
func (s *FeedbackService) ListForStudent(ctx context.Context, studentID int) ([]types.Feedback, error) {
	return s.repo.ListForStudent(ctx, studentID)
}

// ProjectFeedback returns a project together with all its feedback
// records, newest first.
func (s *FeedbackService) ProjectFeedback(ctx context.Context, projectID int) (types.Project, []types.Feedback, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Project{}, nil, ErrProjectNotFound
		}
		return types.Project{}, nil, err
	}

	records, err := s.repo.ListForProject(ctx, projectID)
	if err != nil {
		return types.Project{}, nil, err
	}
	return project, records, nil
}

// List returns records matching the filter, newest first.
func (s *FeedbackService) List(ctx context.Context, filter types.FeedbackFilter) ([]types.Feedback, error) {
	return s.repo.List(ctx, filter)
}
