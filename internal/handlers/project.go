package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joineazy/feedback-apiserver/internal/services"
	"github.com/joineazy/feedback-apiserver/types"
)

// ProjectHandler provides HTTP handlers for projects.
type ProjectHandler struct {
	projectService *services.ProjectService
	debug          bool
}

func NewProjectHandler(projectService *services.ProjectService, debug bool) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, debug: debug}
}

// ProjectRouter registers project routes on the given router.
func ProjectRouter(r chi.Router, handler *ProjectHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Get("/", handler.ListProjects)
	r.With(authMiddleware, requireRole(types.RoleInstructor)).Post("/", handler.CreateProject)
}

type CreateProjectRequest struct {
	Title         string `json:"title" validate:"required"`
	Description   string `json:"description"`
	TeamMemberIDs []int  `json:"teamMemberIds"`
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Please provide a project title")
		return
	}

	project, err := h.projectService.Create(r.Context(), types.Project{
		Title:       req.Title,
		Description: req.Description,
	}, req.TeamMemberIDs)
	if err != nil {
		if errors.Is(err, services.ErrStudentNotFound) {
			writeError(w, http.StatusNotFound, "Student not found")
			return
		}
		writeInternal(w, "Error creating project", err, h.debug)
		return
	}

	writeData(w, http.StatusCreated, "project", project)
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	projects, err := h.projectService.List(r.Context(), search)
	if err != nil {
		writeInternal(w, "Error retrieving projects", err, h.debug)
		return
	}

	writeListData(w, http.StatusOK, "projects", projects, len(projects))
}
