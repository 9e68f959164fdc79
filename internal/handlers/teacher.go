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

// TeacherHandler handles teacher administration and the teacher dashboard.
type TeacherHandler struct {
	userService *services.UserService
}

// NewTeacherHandler creates a new teacher handler.
func NewTeacherHandler(userService *services.UserService) *TeacherHandler {
	return &TeacherHandler{userService: userService}
}

// CreateTeacherRequest is the request body for provisioning a teacher.
type CreateTeacherRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Subjects  string `json:"subjects"`
}

// CreateTeacher handles POST /api/v1/teachers (admin only).
func (h *TeacherHandler) CreateTeacher(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	var req CreateTeacherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	teacher, err := h.userService.CreateTeacher(ctx, actor, req.Email, req.FirstName, req.LastName, req.Subjects)
	if err != nil {
		switch err.Error() {
		case "missing fields", "invalid email format", "email in use":
			respondError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Error().Err(err).Str("email", req.Email).Msg("Failed to create teacher")
			respondError(w, "Server error", http.StatusInternalServerError)
		}
		return
	}

	log.Info().Str("teacher_id", teacher.ID).Str("email", teacher.Email).Msg("Teacher created")
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Teacher created with email " + teacher.Email,
		"teacher": teacher,
	})
}

// DashboardPass is one student's pass as shown on the teacher dashboard.
type DashboardPass struct {
	StudentID   string       `json:"studentID"`
	StudentName string       `json:"studentName"`
	GradeLevel  *string      `json:"gradeLevel"`
	Pass        *models.Pass `json:"pass"`
}

// ListPasses handles GET /api/v1/teachers/passes. It returns every pass
// currently held by a student of the teacher's school; the dashboard calls
// it again whenever a passesUpdated signal arrives.
func (h *TeacherHandler) ListPasses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	if actor.Role != models.RoleTeacher {
		respondError(w, "Must be teacher", http.StatusForbidden)
		return
	}

	students, err := h.userService.ListBySchool(ctx, actor.SchoolID, models.RoleStudent)
	if err != nil {
		log.Error().Err(err).Str("school_id", actor.SchoolID).Msg("Failed to list students")
		respondError(w, "Server error", http.StatusInternalServerError)
		return
	}

	passes := make([]DashboardPass, 0)
	for _, s := range students {
		if s.Pass == nil {
			continue
		}
		passes = append(passes, DashboardPass{
			StudentID:   s.ID,
			StudentName: fullName(s),
			GradeLevel:  s.GradeLevel,
			Pass:        s.Pass,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"passes": passes})
}

// AutoPassRequest is the request body for adding an auto-pass location.
type AutoPassRequest struct {
	Location string `json:"location"`
}

// AddAutoPassLocation handles POST /api/v1/teachers/autopass-locations.
func (h *TeacherHandler) AddAutoPassLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	var req AutoPassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Location == "" {
		respondError(w, "Location is required", http.StatusBadRequest)
		return
	}

	locations, err := h.userService.AddAutoPassLocation(ctx, actor, req.Location)
	if err != nil {
		h.respondAutoPassError(w, err, req.Location)
		return
	}

	log.Info().Str("teacher_id", actor.ID).Str("location", req.Location).Msg("Auto-pass location added")
	respondJSON(w, http.StatusOK, map[string]any{
		"message":             "Location added",
		"auto_pass_locations": locations,
	})
}

// RemoveAutoPassLocation handles DELETE /api/v1/teachers/autopass-locations/{location}.
func (h *TeacherHandler) RemoveAutoPassLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	location := chi.URLParam(r, "location")
	if location == "" {
		respondError(w, "Location is required", http.StatusBadRequest)
		return
	}

	locations, err := h.userService.RemoveAutoPassLocation(ctx, actor, location)
	if err != nil {
		h.respondAutoPassError(w, err, location)
		return
	}

	log.Info().Str("teacher_id", actor.ID).Str("location", location).Msg("Auto-pass location removed")
	respondJSON(w, http.StatusOK, map[string]any{
		"message":             "Location removed",
		"auto_pass_locations": locations,
	})
}

func (h *TeacherHandler) respondAutoPassError(w http.ResponseWriter, err error, location string) {
	switch err.Error() {
	case "location already in teacher autopass locations", "location not in teacher autopass locations":
		respondError(w, err.Error(), http.StatusBadRequest)
	case "school location not found", "teacher not found", "school not found":
		respondError(w, err.Error(), http.StatusNotFound)
	case "must be a teacher":
		respondError(w, err.Error(), http.StatusForbidden)
	default:
		log.Error().Err(err).Str("location", location).Msg("Failed to update auto-pass locations")
		respondError(w, "Server error", http.StatusInternalServerError)
	}
}

func fullName(u *models.User) string {
	name := ""
	if u.FirstName != nil {
		name = *u.FirstName
	}
	if u.LastName != nil {
		if name != "" {
			name += " "
		}
		name += *u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}
