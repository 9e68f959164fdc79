package handlers

import (
	"encoding/json"
	"net/http"

	"hallpass-backend/internal/middleware"
	"hallpass-backend/internal/models"
	"hallpass-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// SchoolHandler handles school policy HTTP requests.
type SchoolHandler struct {
	schoolService *services.SchoolService
}

// NewSchoolHandler creates a new school handler.
func NewSchoolHandler(schoolService *services.SchoolService) *SchoolHandler {
	return &SchoolHandler{schoolService: schoolService}
}

// SchoolResponse is the actor-facing view of their school.
type SchoolResponse struct {
	Name           string              `json:"name"`
	MaxPassesDaily int                 `json:"max_passes_daily"`
	Locations      []string            `json:"locations"`
	Teachers       []TeacherPublicView `json:"teachers"`
}

// TeacherPublicView is the roster entry exposed to school members.
type TeacherPublicView struct {
	ID                string   `json:"id"`
	FirstName         *string  `json:"first_name"`
	LastName          *string  `json:"last_name"`
	Email             string   `json:"email"`
	AutoPassLocations []string `json:"auto_pass_locations"`
	Subjects          []string `json:"subjects"`
}

// GetSchool handles GET /api/v1/school.
func (h *SchoolHandler) GetSchool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	school, err := h.schoolService.GetByID(ctx, actor.SchoolID)
	if err != nil {
		respondError(w, "School not found", http.StatusNotFound)
		return
	}
	teachers, err := h.schoolService.Teachers(ctx, actor.SchoolID)
	if err != nil {
		log.Error().Err(err).Str("school_id", actor.SchoolID).Msg("Failed to list teachers")
		respondError(w, "Server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]SchoolResponse{"school": {
		Name:           school.Name,
		MaxPassesDaily: school.MaxPassesDaily,
		Locations:      school.Locations,
		Teachers:       teacherViews(teachers),
	}})
}

// GetDestinations handles GET /api/v1/school/destinations.
func (h *SchoolHandler) GetDestinations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	school, err := h.schoolService.GetByID(ctx, actor.SchoolID)
	if err != nil {
		respondError(w, "School not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"destinations": school.Locations})
}

// GetTeachers handles GET /api/v1/school/teachers.
func (h *SchoolHandler) GetTeachers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	teachers, err := h.schoolService.Teachers(ctx, actor.SchoolID)
	if err != nil {
		log.Error().Err(err).Str("school_id", actor.SchoolID).Msg("Failed to list teachers")
		respondError(w, "Server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]TeacherPublicView{"teachers": teacherViews(teachers)})
}

// AddLocationRequest is the request body for adding a school location.
type AddLocationRequest struct {
	Location string `json:"location"`
}

// AddLocation handles POST /api/v1/school/locations (admin only).
func (h *SchoolHandler) AddLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	var req AddLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	location, err := h.schoolService.AddLocation(ctx, actor.SchoolID, req.Location)
	if err != nil {
		switch err.Error() {
		case "no location found", "location already in school":
			respondError(w, err.Error(), http.StatusBadRequest)
		case "no school found":
			respondError(w, err.Error(), http.StatusNotFound)
		default:
			log.Error().Err(err).Str("school_id", actor.SchoolID).Msg("Failed to add location")
			respondError(w, "Server error", http.StatusInternalServerError)
		}
		return
	}

	log.Info().Str("school_id", actor.SchoolID).Str("location", location).Msg("Location added")
	respondJSON(w, http.StatusOK, map[string]string{"message": "Location added: " + location, "location": location})
}

// MaxPassesRequest is the request body for changing the daily quota.
type MaxPassesRequest struct {
	Passes int `json:"passes"`
}

// SetMaxPasses handles POST /api/v1/school/max-passes (admin only).
func (h *SchoolHandler) SetMaxPasses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	var req MaxPassesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.schoolService.SetMaxPasses(ctx, actor.SchoolID, req.Passes); err != nil {
		switch err.Error() {
		case "passes not in accepted range":
			respondError(w, err.Error(), http.StatusBadRequest)
		case "no school found":
			respondError(w, err.Error(), http.StatusNotFound)
		default:
			log.Error().Err(err).Str("school_id", actor.SchoolID).Msg("Failed to change max passes")
			respondError(w, "Server error", http.StatusInternalServerError)
		}
		return
	}

	log.Info().Str("school_id", actor.SchoolID).Int("passes", req.Passes).Msg("Max passes changed")
	respondJSON(w, http.StatusOK, map[string]any{"message": "Max passes changed", "passes": req.Passes})
}

func teacherViews(teachers []*models.User) []TeacherPublicView {
	views := make([]TeacherPublicView, 0, len(teachers))
	for _, t := range teachers {
		views = append(views, TeacherPublicView{
			ID:                t.ID,
			FirstName:         t.FirstName,
			LastName:          t.LastName,
			Email:             t.Email,
			AutoPassLocations: t.AutoPassLocations,
			Subjects:          t.Subjects,
		})
	}
	return views
}
