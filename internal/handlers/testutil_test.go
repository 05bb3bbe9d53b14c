package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joineazy/feedback-apiserver/internal/services"
	"github.com/joineazy/feedback-apiserver/internal/store"
	"github.com/joineazy/feedback-apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// In-memory repositories standing in for the Postgres store. They keep the
// same ordering and filtering semantics as the SQL queries.

type memUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, users: make(map[int]types.User)}
}

func (r *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	user.ID = r.nextID
	r.nextID++
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) ListStudents(_ context.Context, search string) ([]types.User, error) {
	students := make([]types.User, 0)
	for _, user := range r.users {
		if user.Role != types.RoleStudent {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(user.Username), strings.ToLower(search)) {
			continue
		}
		students = append(students, user)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Username < students[j].Username })
	return students, nil
}

type memProjectRepo struct {
	nextID   int
	projects map[int]types.Project
	members  map[int][]int
	users    *memUserRepo
}

func newMemProjectRepo(users *memUserRepo) *memProjectRepo {
	return &memProjectRepo{
		nextID:   1,
		projects: make(map[int]types.Project),
		members:  make(map[int][]int),
		users:    users,
	}
}

func (r *memProjectRepo) Create(_ context.Context, project types.Project, memberIDs []int) (types.Project, error) {
	project.ID = r.nextID
	r.nextID++
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	r.projects[project.ID] = project
	r.members[project.ID] = append([]int(nil), memberIDs...)
	return r.resolve(project), nil
}

func (r *memProjectRepo) GetByID(_ context.Context, id int) (types.Project, error) {
	project, ok := r.projects[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	return r.resolve(project), nil
}

func (r *memProjectRepo) List(_ context.Context, search string) ([]types.Project, error) {
	projects := make([]types.Project, 0)
	for _, project := range r.projects {
		if search != "" && !strings.Contains(strings.ToLower(project.Title), strings.ToLower(search)) {
			continue
		}
		projects = append(projects, r.resolve(project))
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID > projects[j].ID })
	return projects, nil
}

func (r *memProjectRepo) Update(_ context.Context, project types.Project, memberIDs []int) (types.Project, error) {
	existing, ok := r.projects[project.ID]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	existing.Title = project.Title
	existing.Description = project.Description
	existing.UpdatedAt = time.Now()
	r.projects[project.ID] = existing
	r.members[project.ID] = append([]int(nil), memberIDs...)
	return r.resolve(existing), nil
}

func (r *memProjectRepo) IsMember(_ context.Context, projectID, userID int) (bool, error) {
	for _, memberID := range r.members[projectID] {
		if memberID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memProjectRepo) resolve(project types.Project) types.Project {
	project.TeamMembers = make([]types.TeamMember, 0)
	for _, memberID := range r.members[project.ID] {
		if user, ok := r.users.users[memberID]; ok {
			project.TeamMembers = append(project.TeamMembers, types.TeamMember{ID: user.ID, Username: user.Username})
		}
	}
	sort.Slice(project.TeamMembers, func(i, j int) bool {
		return project.TeamMembers[i].Username < project.TeamMembers[j].Username
	})
	return project
}

type memFeedbackRepo struct {
	nextID   int
	records  map[int]types.Feedback
	users    *memUserRepo
	projects *memProjectRepo
	// clock hands out strictly increasing creation timestamps so ordering
	// assertions are deterministic.
	clock time.Time
}

func newMemFeedbackRepo(users *memUserRepo, projects *memProjectRepo) *memFeedbackRepo {
	return &memFeedbackRepo{
		nextID:   1,
		records:  make(map[int]types.Feedback),
		users:    users,
		projects: projects,
		clock:    time.Now(),
	}
}

func (r *memFeedbackRepo) Create(_ context.Context, feedback types.Feedback) (types.Feedback, error) {
	feedback.ID = r.nextID
	r.nextID++
	r.clock = r.clock.Add(time.Second)
	feedback.CreatedAt = r.clock
	r.records[feedback.ID] = feedback
	return feedback, nil
}

func (r *memFeedbackRepo) GetByID(_ context.Context, id int) (types.Feedback, error) {
	feedback, ok := r.records[id]
	if !ok {
		return types.Feedback{}, store.ErrNotFound
	}
	return r.resolve(feedback), nil
}

func (r *memFeedbackRepo) ListForStudent(_ context.Context, studentID int) ([]types.Feedback, error) {
	return r.filter(func(f types.Feedback) bool { return f.StudentID == studentID }), nil
}

func (r *memFeedbackRepo) ListForProject(_ context.Context, projectID int) ([]types.Feedback, error) {
	return r.filter(func(f types.Feedback) bool { return f.ProjectID == projectID }), nil
}

func (r *memFeedbackRepo) List(_ context.Context, filter types.FeedbackFilter) ([]types.Feedback, error) {
	return r.filter(func(f types.Feedback) bool {
		if filter.StudentID != 0 && f.StudentID != filter.StudentID {
			return false
		}
		if filter.ProjectID != 0 {
			return f.ProjectID == filter.ProjectID
		}
		if filter.ProjectTitle != "" {
			return strings.Contains(strings.ToLower(f.ProjectTitle), strings.ToLower(filter.ProjectTitle))
		}
		return true
	}), nil
}

func (r *memFeedbackRepo) filter(keep func(types.Feedback) bool) []types.Feedback {
	records := make([]types.Feedback, 0)
	for _, feedback := range r.records {
		if keep(feedback) {
			records = append(records, r.resolve(feedback))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records
}

func (r *memFeedbackRepo) resolve(feedback types.Feedback) types.Feedback {
	if student, ok := r.users.users[feedback.StudentID]; ok {
		feedback.StudentName = student.Username
	}
	if instructor, ok := r.users.users[feedback.InstructorID]; ok {
		feedback.InstructorName = instructor.Username
	}
	if project, ok := r.projects.projects[feedback.ProjectID]; ok {
		feedback.ProjectTitle = project.Title
		feedback.ProjectDescription = project.Description
	}
	return feedback
}

// testEnv wires the full router against in-memory repositories.
type testEnv struct {
	router   *chi.Mux
	users    *memUserRepo
	projects *memProjectRepo
	feedback *memFeedbackRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemUserRepo()
	projects := newMemProjectRepo(users)
	feedback := newMemFeedbackRepo(users, projects)

	userService := services.NewUserService(users)
	projectService := services.NewProjectService(projects, users)
	feedbackService := services.NewFeedbackService(feedback, users, projects)

	authMiddleware := RequireAuth(userService, testSecret)

	authHandler := NewAuthHandler(userService, testSecret, time.Hour, false)
	studentHandler := NewStudentHandler(userService, false)
	projectHandler := NewProjectHandler(projectService, false)
	feedbackHandler := NewFeedbackHandler(feedbackService, projectService, false)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) { AuthRouter(r, authHandler, authMiddleware) })
	router.Route("/students", func(r chi.Router) { StudentRouter(r, studentHandler, authMiddleware) })
	router.Route("/projects", func(r chi.Router) { ProjectRouter(r, projectHandler, authMiddleware) })
	router.Route("/feedback", func(r chi.Router) { FeedbackRouter(r, feedbackHandler, authMiddleware) })

	return &testEnv{router: router, users: users, projects: projects, feedback: feedback}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// createUser seeds an account directly in the repository and returns it
// with a valid token.
func (e *testEnv) createUser(t *testing.T, username, password, role string) (types.User, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := e.users.Create(context.Background(), types.User{
		Username:     username,
		Role:         role,
		PasswordHash: string(hash),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	token, err := issueToken(user.ID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, token
}

func (e *testEnv) createProject(t *testing.T, title, description string, memberIDs ...int) types.Project {
	t.Helper()

	project, err := e.projects.Create(context.Background(), types.Project{
		Title:       title,
		Description: description,
	}, memberIDs)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return project
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, value any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), value); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func validScores() types.RubricScores {
	return types.RubricScores{
		"understanding":  8,
		"implementation": 7,
		"presentation":   9,
		"creativity":     6,
		"overall":        8,
	}
}
