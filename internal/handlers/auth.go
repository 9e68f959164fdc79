package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"hallpass-backend/internal/middleware"
	"hallpass-backend/internal/models"
	"hallpass-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AuthHandler handles login and current-user requests.
type AuthHandler struct {
	userService *services.UserService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token and the logged-in user.
type LoginResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, "Missing fields", http.StatusBadRequest)
		return
	}

	user, token, err := h.userService.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			respondError(w, "Not allowed", http.StatusUnauthorized)
			return
		}
		log.Error().Err(err).Str("email", req.Email).Msg("Failed to log in")
		respondError(w, "Server error", http.StatusInternalServerError)
		return
	}

	log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("User logged in")
	respondJSON(w, http.StatusOK, LoginResponse{Message: "Logged in", Token: token, User: user})
}

// Me handles GET /api/v1/auth/me, returning the authenticated user,
// including the current pass slot and quota counter.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	user, err := h.userService.GetByID(ctx, actor.ID)
	if err != nil {
		respondError(w, "User not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]*models.User{"user": user})
}
