package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/HammerMeetNail/kinship/internal/models"
	"github.com/HammerMeetNail/kinship/internal/services"
)

type RelationshipHandler struct {
	relationshipService services.RelationshipServiceInterface
	production          bool
}

func NewRelationshipHandler(relationshipService services.RelationshipServiceInterface, production bool) *RelationshipHandler {
	return &RelationshipHandler{relationshipService: relationshipService, production: production}
}

type SendRequestBody struct {
	AddresseeID string `json:"addressee_id"`
}

type UpdateRelationshipBody struct {
	Status string `json:"status"`
}

type RelationshipResponse struct {
	Message      string               `json:"message"`
	Relationship *models.Relationship `json:"relationship"`
}

type RelationshipListResponse struct {
	Relationships []models.Relationship `json:"relationships"`
}

func (h *RelationshipHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SendRequestBody
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	addresseeID, err := uuid.Parse(req.AddresseeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid addressee ID")
		return
	}

	rel, err := h.relationshipService.SendFriendRequest(r.Context(), user.UserID, addresseeID)
	if err != nil {
		writeServiceError(w, r, err, h.production)
		return
	}

	writeJSON(w, http.StatusCreated, RelationshipResponse{
		Message:      "Friend request sent",
		Relationship: rel,
	})
}

func (h *RelationshipHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	relationships, err := h.relationshipService.GetUserRelationships(r.Context(), user.UserID)
	if err != nil {
		writeServiceError(w, r, err, h.production)
		return
	}

	writeJSON(w, http.StatusOK, RelationshipListResponse{Relationships: relationships})
}

// Update accepts or blocks a pending request addressed to the caller.
func (h *RelationshipHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	relationshipID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid relationship ID")
		return
	}

	var req UpdateRelationshipBody
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rel, err := h.relationshipService.UpdateRelationship(r.Context(), relationshipID, user.UserID, models.RelationshipStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, err, h.production)
		return
	}

	writeJSON(w, http.StatusOK, RelationshipResponse{
		Message:      "Relationship updated successfully",
		Relationship: rel,
	})
}

func (h *RelationshipHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	relationshipID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid relationship ID")
		return
	}

	if err := h.relationshipService.RemoveRelationship(r.Context(), relationshipID, user.UserID); err != nil {
		writeServiceError(w, r, err, h.production)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Relationship removed successfully"})
}
