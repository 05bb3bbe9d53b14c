package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/joineazy/feedback-apiserver/internal/services"
	"github.com/joineazy/feedback-apiserver/internal/store"
	"github.com/joineazy/feedback-apiserver/types"
)

// FeedbackHandler provides HTTP handlers for feedback records.
type FeedbackHandler struct {
	feedbackService *services.FeedbackService
	projectService  *services.ProjectService
	debug           bool
}

func NewFeedbackHandler(feedbackService *services.FeedbackService, projectService *services.ProjectService, debug bool) *FeedbackHandler {
	return &FeedbackHandler{
		feedbackService: feedbackService,
		projectService:  projectService,
		debug:           debug,
	}
}

// FeedbackRouter registers feedback routes on the given router.
func FeedbackRouter(r chi.Router, handler *FeedbackHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.With(requireRole(types.RoleInstructor)).Post("/", handler.CreateFeedback)
	r.With(requireRole(types.RoleInstructor)).Get("/", handler.ListFeedback)
	r.With(requireRole(types.RoleStudent)).Get("/me", handler.MyFeedback)
	r.Get("/project/{projectID}", handler.FeedbackByProject)
	r.Get("/{feedbackID}", handler.GetFeedback)
}

type CreateFeedbackRequest struct {
	StudentID    int                `json:"studentId" validate:"required"`
	ProjectID    int                `json:"projectId" validate:"required"`
	RubricScores types.RubricScores `json:"rubricScores" validate:"required"`
	Comments     string             `json:"comments"`
}

func (h *FeedbackHandler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "You are not logged in. Please log in to access this resource.")
		return
	}

	var req CreateFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Please provide studentId, projectId, and rubricScores")
		return
	}

	feedback, err := h.feedbackService.Create(r.Context(), types.Feedback{
		StudentID:    req.StudentID,
		InstructorID: identity.ID,
		ProjectID:    req.ProjectID,
		RubricScores: req.RubricScores,
		Comments:     req.Comments,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStudentNotFound):
			writeError(w, http.StatusNotFound, "Student not found")
		case errors.Is(err, services.ErrProjectNotFound):
			writeError(w, http.StatusNotFound, "Project not found")
		case errors.Is(err, types.ErrInvalidRubricScores):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeInternal(w, "Error creating feedback", err, h.debug)
		}
		return
	}

	feedback.InstructorName = identity.Username
	writeData(w, http.StatusCreated, "feedback", feedback)
}

// GetFeedback returns a single record. Instructors may read any record;
// students only their own. For students a missing record is reported as
// permission-denied so the response does not reveal whether it exists.
func (h *FeedbackHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "You are not logged in. Please log in to access this resource.")
		return
	}

	id, err := parseIDParam(r, "feedbackID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid feedback id")
		return
	}

	feedback, err := h.feedbackService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if identity.Role == types.RoleStudent {
				writeError(w, http.StatusForbidden, "You do not have permission to access this feedback")
				return
			}
			writeError(w, http.StatusNotFound, "Feedback not found")
			return
		}
		writeInternal(w, "Error retrieving feedback", err, h.debug)
		return
	}

	if identity.Role == types.RoleStudent && feedback.StudentID != identity.ID {
		writeError(w, http.StatusForbidden, "You do not have permission to access this feedback")
		return
	}

	writeData(w, http.StatusOK, "feedback", feedback)
}

func (h *FeedbackHandler) MyFeedback(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "You are not logged in. Please log in to access this resource.")
		return
	}

	records, err := h.feedbackService.ListForStudent(r.Context(), identity.ID)
	if err != nil {
		writeInternal(w, "Error retrieving feedback", err, h.debug)
		return
	}

	writeListData(w, http.StatusOK, "feedback", records, len(records))
}

// FeedbackByProject returns a project and all feedback recorded against
// it. Students must belong to the project's team.
func (h *FeedbackHandler) FeedbackByProject(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "You are not logged in. Please log in to access this resource.")
		return
	}

	projectID, err := parseIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project id")
		return
	}

	if identity.Role == types.RoleStudent {
		member, err := h.projectService.IsMember(r.Context(), projectID, identity.ID)
		if err != nil {
			writeInternal(w, "Error retrieving feedback for project", err, h.debug)
			return
		}
		if !member {
			writeError(w, http.StatusForbidden, "You do not have permission to access this project's feedback")
			return
		}
	}

	project, records, err := h.feedbackService.ProjectFeedback(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		writeInternal(w, "Error retrieving feedback for project", err, h.debug)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(records),
		"data": map[string]any{
			"project":  project,
			"feedback": records,
		},
	})
}

func (h *FeedbackHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFeedbackFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.feedbackService.List(r.Context(), filter)
	if err != nil {
		writeInternal(w, "Error retrieving feedback", err, h.debug)
		return
	}

	writeListData(w, http.StatusOK, "feedback", records, len(records))
}

func parseFeedbackFilter(r *http.Request) (types.FeedbackFilter, error) {
	var filter types.FeedbackFilter
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("studentId")); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			return types.FeedbackFilter{}, errors.New("Invalid studentId filter")
		}
		filter.StudentID = id
	}
	if raw := strings.TrimSpace(query.Get("projectId")); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			return types.FeedbackFilter{}, errors.New("Invalid projectId filter")
		}
		filter.ProjectID = id
	}
	filter.ProjectTitle = strings.TrimSpace(query.Get("projectTitle"))
	return filter, nil
}

func parseIDParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
