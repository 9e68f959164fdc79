package handlers

import (
	"encoding/json"
	"net/http"

	"hallpass-backend/internal/middleware"
	"hallpass-backend/internal/models"
	"hallpass-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// StudentHandler handles student administration requests (admin only).
type StudentHandler struct {
	userService *services.UserService
}

// NewStudentHandler creates a new student handler.
func NewStudentHandler(userService *services.UserService) *StudentHandler {
	return &StudentHandler{userService: userService}
}

// StudentView is the roster entry exposed to the admin.
type StudentView struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Email      string  `json:"email"`
	GradeLevel *string `json:"grade_level"`
	DayPasses  int     `json:"day_passes"`
}

// ListStudents handles GET /api/v1/students.
func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	students, err := h.userService.ListBySchool(ctx, actor.SchoolID, models.RoleStudent)
	if err != nil {
		log.Error().Err(err).Str("school_id", actor.SchoolID).Msg("Failed to list students")
		respondError(w, "Server error", http.StatusInternalServerError)
		return
	}

	views := make([]StudentView, 0, len(students))
	for _, s := range students {
		views = append(views, StudentView{
			ID:         s.ID,
			Username:   s.Username,
			FirstName:  s.FirstName,
			LastName:   s.LastName,
			Email:      s.Email,
			GradeLevel: s.GradeLevel,
			DayPasses:  s.DayPasses,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"students": views})
}

// CreateStudentRequest is the request body for provisioning a student.
type CreateStudentRequest struct {
	Email      string `json:"email"`
	GradeLevel string `json:"grade_level"`
}

// CreateStudent handles POST /api/v1/students.
func (h *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	var req CreateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	student, err := h.userService.CreateStudent(ctx, actor, req.Email, req.GradeLevel)
	if err != nil {
		switch err.Error() {
		case "missing fields", "invalid grade level", "invalid email format", "email in use":
			respondError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Error().Err(err).Str("email", req.Email).Msg("Failed to create student")
			respondError(w, "Server error", http.StatusInternalServerError)
		}
		return
	}

	log.Info().Str("student_id", student.ID).Str("email", student.Email).Msg("Student created")
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Student created with email " + student.Email,
		"student": student,
	})
}

// DeleteStudent handles DELETE /api/v1/students/{id}.
func (h *StudentHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, "Missing fields", http.StatusBadRequest)
		return
	}

	if err := h.userService.DeleteStudent(ctx, actor, id); err != nil {
		switch err.Error() {
		case "student not found":
			respondError(w, err.Error(), http.StatusNotFound)
		case "not allowed: different school":
			respondError(w, err.Error(), http.StatusForbidden)
		default:
			log.Error().Err(err).Str("student_id", id).Msg("Failed to delete student")
			respondError(w, "Server error", http.StatusInternalServerError)
		}
		return
	}

	log.Info().Str("student_id", id).Msg("Student deleted")
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Student deleted"})
}
