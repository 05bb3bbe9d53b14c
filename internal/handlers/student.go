package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joineazy/feedback-apiserver/internal/services"
	"github.com/joineazy/feedback-apiserver/types"
)

// StudentHandler lists student accounts for instructors.
type StudentHandler struct {
	userService *services.UserService
	debug       bool
}

func NewStudentHandler(userService *services.UserService, debug bool) *StudentHandler {
	return &StudentHandler{userService: userService, debug: debug}
}

// StudentRouter registers student routes on the given router.
func StudentRouter(r chi.Router, handler *StudentHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware, requireRole(types.RoleInstructor)).Get("/", handler.ListStudents)
}

// StudentResponse is the listing view of a student account.
type StudentResponse struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	students, err := h.userService.ListStudents(r.Context(), search)
	if err != nil {
		writeInternal(w, "Error retrieving students", err, h.debug)
		return
	}

	resp := make([]StudentResponse, 0, len(students))
	for _, student := range students {
		resp = append(resp, StudentResponse{
			ID:        student.ID,
			Username:  student.Username,
			CreatedAt: student.CreatedAt,
		})
	}
	writeListData(w, http.StatusOK, "students", resp, len(resp))
}
