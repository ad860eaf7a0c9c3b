package checkout

import (
	"net/http"

	"github.com/noah-isme/food-checkout/internal/common"
)

// Handler exposes the checkout flow over HTTP.
type Handler struct {
	Svc *Service
}

type addressRequest struct {
	AddressID string `json:"addressId" validate:"required"`
}

type couponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// Get returns the current checkout quote.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Get(r.Context(), userID)
	if err != nil {
		common.WriteError(w, mapBackendError(err))
		return
	}
	common.Data(w, http.StatusOK, q)
}

// Start opens a checkout for a restaurant.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	var payload StartInput
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.Svc.Start(r.Context(), userID, payload)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// SelectAddress sets the delivery address.
func (h *Handler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	var payload addressRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(payload); err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.Svc.SelectAddress(r.Context(), userID, payload.AddressID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// ApplyCoupon attaches a coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	var payload couponRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(payload); err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.Svc.ApplyCoupon(r.Context(), userID, payload.Code)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// RemoveCoupon detaches the applied coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.RemoveCoupon(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// Confirm submits the order.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Confirm(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, out)
}

// Coupons lists coupons with eligibility for the caller's cart.
func (h *Handler) Coupons(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUser(w, r)
	if !ok {
		return
	}
	list, err := h.Svc.Coupons(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, list)
}
