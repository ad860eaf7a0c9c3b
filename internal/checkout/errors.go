package checkout

import (
	"context"
	"errors"
	"net/http"

	"github.com/noah-isme/food-checkout/internal/backend"
	"github.com/noah-isme/food-checkout/internal/billing"
	"github.com/noah-isme/food-checkout/internal/common"
	"github.com/noah-isme/food-checkout/internal/coupon"
)

func cartEmpty() *common.AppError {
	return common.NewAppError(common.CodeCartEmpty, "cart is empty", http.StatusBadRequest, billing.ErrEmptyCart)
}

func submissionInFlight(err error) *common.AppError {
	return common.NewAppError(common.CodeSubmissionInFlight, "a submission is already in progress", http.StatusConflict, err)
}

func invalidState(state State, action string) *common.AppError {
	return common.NewAppError(common.CodeInvalidState, "cannot "+action+" while checkout is "+string(state), http.StatusConflict, ErrInvalidTransition).
		WithDetails(map[string]string{"state": string(state)})
}

func transitionError(err error) error {
	if errors.Is(err, ErrInvalidTransition) {
		return common.NewAppError(common.CodeInvalidState, err.Error(), http.StatusConflict, err)
	}
	return err
}

func couponNotEligible(err error) *common.AppError {
	reason, message := "rejected", "coupon is not eligible"
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		reason, message = "not_found", "coupon not found"
	case errors.Is(err, coupon.ErrMinimumOrderUnmet):
		reason, message = "minimum_unmet", "order total is below the coupon minimum"
	case errors.Is(err, coupon.ErrCouponExpired):
		reason, message = "expired", "coupon has expired"
	}
	return common.NewAppError(common.CodeCouponNotEligible, message, http.StatusUnprocessableEntity, err).
		WithDetails(map[string]string{"reason": reason})
}

// mapSubmitError converts a confirm failure into an AppError.
func mapSubmitError(err error) error {
	if common.IsAppError(err) {
		return err
	}
	switch {
	case errors.Is(err, billing.ErrEmptyCart):
		return cartEmpty()
	case errors.Is(err, billing.ErrCouponNotEligible):
		return couponNotEligible(err)
	case errors.Is(err, billing.ErrMissingAddress):
		return common.Validation("select a delivery address first", err).
			WithDetails(map[string]string{"addressId": "required"})
	case errors.Is(err, billing.ErrMissingRestaurant):
		return common.Validation("restaurant is required", err).
			WithDetails(map[string]string{"restaurantId": "required"})
	case errors.Is(err, billing.ErrMissingUser):
		return common.Validation("user is required", err)
	}
	return mapBackendError(err)
}

// mapBackendError converts backend client failures into AppErrors. Unknown
// errors pass through unchanged.
func mapBackendError(err error) error {
	if err == nil || common.IsAppError(err) {
		return err
	}
	var rejected *backend.RejectedError
	switch {
	case errors.As(err, &rejected):
		if rejected.StatusCode >= http.StatusInternalServerError {
			return unavailable(err)
		}
		msg := rejected.Message
		if msg == "" {
			msg = "order rejected by backend"
		}
		return common.NewAppError(common.CodeValidation, msg, http.StatusUnprocessableEntity, err)
	case errors.Is(err, backend.ErrNotFound):
		return common.NewAppError(common.CodeNotFound, "resource not found", http.StatusNotFound, err)
	case errors.Is(err, backend.ErrUnavailable),
		errors.Is(err, backend.ErrMalformed),
		errors.Is(err, context.DeadlineExceeded):
		return unavailable(err)
	}
	return err
}

func unavailable(err error) *common.AppError {
	return common.NewAppError(common.CodeBackendUnavailable, "backend unavailable", http.StatusBadGateway, err)
}
