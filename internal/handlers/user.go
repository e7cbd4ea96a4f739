package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/HammerMeetNail/kinship/internal/models"
	"github.com/HammerMeetNail/kinship/internal/services"
)

type UserHandler struct {
	userService services.UserServiceInterface
	production  bool
}

func NewUserHandler(userService services.UserServiceInterface, production bool) *UserHandler {
	return &UserHandler{userService: userService, production: production}
}

// Search lists users matching ?q= with page/limit pagination. The caller is never listed.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	query := r.URL.Query()
	page, ok := positiveIntParam(query.Get("page"), 1)
	if !ok || page > services.MaxSearchPage {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("page must be between 1 and %d", services.MaxSearchPage))
		return
	}
	limit, ok := positiveIntParam(query.Get("limit"), services.DefaultSearchPageSize)
	if !ok || limit > services.MaxSearchPageSize {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}

	result, err := h.userService.SearchUsers(r.Context(), services.SearchParams{
		Query:         query.Get("q"),
		Page:          page,
		PageSize:      limit,
		ExcludeUserID: &user.UserID,
	})
	if err != nil {
		writeServiceError(w, r, err, h.production)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if GetUserFromContext(r.Context()) == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, h.production)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: profile})
}

// Update applies a partial profile update. Users may only edit themselves.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	if id != user.UserID {
		writeError(w, http.StatusForbidden, "You can only update your own profile")
		return
	}

	var patch models.UserPatch
	if !decodeJSON(r, &patch) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.userService.UpdateUser(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, err, h.production)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Message string             `json:"message"`
		User    *models.PublicUser `json:"user"`
	}{Message: "Profile updated successfully", User: profile})
}

func positiveIntParam(raw string, fallback int) (int, bool) {
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
