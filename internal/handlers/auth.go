package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/kinship/internal/models"
	"github.com/HammerMeetNail/kinship/internal/services"
)

type AuthHandler struct {
	authService services.AuthServiceInterface
	production  bool
}

func NewAuthHandler(authService services.AuthServiceInterface, production bool) *AuthHandler {
	return &AuthHandler{authService: authService, production: production}
}

type AuthResponse struct {
	Message string             `json:"message"`
	User    *models.PublicUser `json:"user"`
	Token   string             `json:"token"`
}

type UserResponse struct {
	User *models.PublicUser `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterParams
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.authService.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, h.production)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Message: "User registered successfully",
		User:    result.User,
		Token:   result.Token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginParams
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.authService.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, h.production)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Message: "Login successful",
		User:    result.User,
		Token:   result.Token,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := GetTokenFromContext(r.Context())
	if token == "" {
		token = BearerToken(r)
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.authService.Logout(r.Context(), token); err != nil {
		writeServiceError(w, r, err, h.production)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	profile, err := h.authService.GetCurrentUser(r.Context(), user.UserID)
	if err != nil {
		writeServiceError(w, r, err, h.production)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: profile})
}
