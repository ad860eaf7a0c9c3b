package user

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/food-checkout/internal/common"
)

// Handler exposes REST endpoints for managing address book entries.
type Handler struct {
	Service *Service
}

// List handles GET /addresses.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	addresses, err := h.Service.List(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, addresses)
}

// Create handles POST /addresses.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	var req AddressInput
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	address, err := h.Service.Create(r.Context(), userID, req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, address)
}

// Delete handles DELETE /addresses/{addressID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	addressID := chi.URLParam(r, "addressID")
	if strings.TrimSpace(addressID) == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "address id is required", nil)
		return
	}
	if err := h.Service.Delete(r.Context(), userID, addressID); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
