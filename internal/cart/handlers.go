package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/food-checkout/internal/common"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

// Get returns the caller's cart with its subtotal.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Get(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// AddItem merges a food into the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	var payload AddItemInput
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Svc.AddItem(r.Context(), userID, payload)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, view)
}

type updateItemRequest struct {
	Quantity *int    `json:"quantity" validate:"omitempty,lte=99"`
	Note     *string `json:"note" validate:"omitempty,max=500"`
}

// UpdateItem changes the quantity and/or note of the lines addressed by {id}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	ref := chi.URLParam(r, "id")
	var payload updateItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	if payload.Quantity == nil && payload.Note == nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "quantity or note required", nil)
		return
	}
	if err := common.ValidateStruct(payload); err != nil {
		common.WriteError(w, err)
		return
	}
	current, err := h.Svc.State(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if !contains(current, ref) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "cart item not found", nil)
		return
	}
	var view View
	if payload.Quantity != nil {
		if view, err = h.Svc.Dispatch(r.Context(), userID, UpdateQuantity(ref, *payload.Quantity)); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	if payload.Note != nil {
		if view, err = h.Svc.Dispatch(r.Context(), userID, UpdateNote(ref, *payload.Note)); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	common.Data(w, http.StatusOK, view)
}

// RemoveItem deletes every line addressed by {id}. Removing an absent item is a no-op.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Dispatch(r.Context(), userID, RemoveFromCart(chi.URLParam(r, "id")))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Clear(r.Context(), userID); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func contains(st State, ref string) bool {
	for _, item := range st.Items {
		if item.Matches(ref) {
			return true
		}
	}
	return false
}
