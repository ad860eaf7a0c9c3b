package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/food-checkout/internal/backend"
	"github.com/noah-isme/food-checkout/internal/billing"
	"github.com/noah-isme/food-checkout/internal/cart"
	"github.com/noah-isme/food-checkout/internal/common"
	"github.com/noah-isme/food-checkout/internal/coupon"
	"github.com/noah-isme/food-checkout/internal/events"
	"github.com/noah-isme/food-checkout/internal/lock"
	"github.com/noah-isme/food-checkout/internal/money"
	"github.com/noah-isme/food-checkout/internal/obs"
	"github.com/noah-isme/food-checkout/internal/pricing"
	"github.com/noah-isme/food-checkout/internal/user"
)

// Catalog is the read side of the food backend.
type Catalog interface {
	GetDeliverySettings(ctx context.Context) (backend.DeliverySettings, error)
	ListCoupons(ctx context.Context) ([]coupon.Coupon, error)
	GetRestaurant(ctx context.Context, id string) (backend.Restaurant, error)
}

// Carts exposes the cart operations checkout relies on.
type Carts interface {
	State(ctx context.Context, userID string) (cart.State, error)
	Settle(ctx context.Context, userID string, billed cart.State) error
}

// Addresses resolves a saved address.
type Addresses interface {
	Get(ctx context.Context, userID, addressID string) (user.Address, error)
}

// StartInput opens a checkout for a restaurant.
type StartInput struct {
	RestaurantID   string `json:"restaurantId" validate:"required"`
	ExperienceType string `json:"experienceType" validate:"omitempty,oneof=delivery takeaway dinein"`
}

// Quote is the priced checkout as shown to the caller.
type Quote struct {
	Session Session           `json:"session"`
	Items   []cart.LineItem   `json:"items"`
	Coupon  *coupon.Coupon    `json:"coupon,omitempty"`
	Summary pricing.Summary   `json:"summary"`
	Display map[string]string `json:"display"`
}

// Confirmation is returned once the backend accepts the order.
type Confirmation struct {
	State   State             `json:"state"`
	Order   billing.Order     `json:"order"`
	Summary pricing.Summary   `json:"summary"`
	Display map[string]string `json:"display"`
}

// CouponView is a coupon annotated for the caller's current cart.
type CouponView struct {
	coupon.Coupon
	Eligible bool            `json:"eligible"`
	Discount decimal.Decimal `json:"discount"`
}

// Service drives the checkout flow.
type Service struct {
	Sessions  *SessionStore
	Carts     Carts
	Addresses Addresses
	Catalog   Catalog
	Billing   billing.Submitter
	Locker    lock.Locker
	LockTTL   time.Duration
	Formatter money.Formatter
	Now       func() time.Time
	// Events is optional; emission failures are logged and never fail a
	// confirmation.
	Events Emitter

	// StaleConfirmAfter is how long a Confirming session must sit untouched
	// before it counts as abandoned. Defaults to twice the lock TTL.
	StaleConfirmAfter time.Duration
}

// Emitter publishes checkout events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func confirmLockKey(userID string) string { return "checkout:confirm:" + userID }

// ErrConfirmInFlight marks a Confirming session that another attempt may
// still be driving.
var ErrConfirmInFlight = errors.New("checkout: confirmation in flight")

// abandoned reports whether a Confirming session is old enough that no live
// attempt can still own it.
func (s *Service) abandoned(sess Session) bool {
	stale := s.StaleConfirmAfter
	if stale <= 0 {
		lockTTL := s.LockTTL
		if lockTTL <= 0 {
			lockTTL = 30 * time.Second
		}
		stale = 2 * lockTTL
	}
	return sess.UpdatedAt.IsZero() || s.now().Sub(sess.UpdatedAt) > stale
}

// Start opens (or reopens) the caller's checkout for a restaurant. Any
// previously selected address and coupon are discarded.
func (s *Service) Start(ctx context.Context, userID string, in StartInput) (Quote, error) {
	if err := common.ValidateStruct(in); err != nil {
		return Quote{}, err
	}
	st, err := s.Carts.State(ctx, userID)
	if err != nil {
		return Quote{}, err
	}
	if st.Len() == 0 {
		return Quote{}, cartEmpty()
	}
	if _, err := s.Catalog.GetRestaurant(ctx, strings.TrimSpace(in.RestaurantID)); err != nil {
		return Quote{}, mapBackendError(err)
	}
	sess, err := s.Sessions.Update(ctx, userID, func(sess *Session) error {
		if sess.State == StateConfirming {
			return invalidState(sess.State, "start")
		}
		*sess = Session{
			State:        StateIdle,
			RestaurantID: strings.TrimSpace(in.RestaurantID),
			Experience:   billing.ParseExperience(in.ExperienceType),
		}
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	return s.quote(ctx, userID, sess, st)
}

// Get returns the priced checkout for the caller.
func (s *Service) Get(ctx context.Context, userID string) (Quote, error) {
	sess, err := s.Sessions.Load(ctx, userID)
	if err != nil {
		return Quote{}, err
	}
	st, err := s.Carts.State(ctx, userID)
	if err != nil {
		return Quote{}, err
	}
	return s.quote(ctx, userID, sess, st)
}

// SelectAddress records the delivery address.
func (s *Service) SelectAddress(ctx context.Context, userID, addressID string) (Quote, error) {
	addressID = strings.TrimSpace(addressID)
	if addressID == "" {
		return Quote{}, common.Validation("addressId is required", billing.ErrMissingAddress).
			WithDetails(map[string]string{"addressId": "required"})
	}
	if _, err := s.Addresses.Get(ctx, userID, addressID); err != nil {
		return Quote{}, err
	}
	_, err := s.Sessions.Update(ctx, userID, func(sess *Session) error {
		if sess.RestaurantID == "" {
			return invalidState(sess.State, "select address before start")
		}
		if err := sess.Apply(EventSelectAddress); err != nil {
			return transitionError(err)
		}
		sess.AddressID = addressID
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	return s.Get(ctx, userID)
}

// ApplyCoupon validates code against the live subtotal and attaches it.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (Quote, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Quote{}, common.Validation("code is required", nil).
			WithDetails(map[string]string{"code": "required"})
	}
	current, err := s.Sessions.Load(ctx, userID)
	if err != nil {
		return Quote{}, err
	}
	if _, err := Transition(current.State, EventApplyCoupon); err != nil {
		return Quote{}, transitionError(err)
	}
	st, err := s.Carts.State(ctx, userID)
	if err != nil {
		return Quote{}, err
	}
	c, err := s.findCoupon(ctx, code)
	if err != nil {
		obs.ObserveCoupon("not_found")
		return Quote{}, err
	}
	if err := c.Validate(s.now(), cart.Subtotal(st)); err != nil {
		obs.ObserveCoupon(couponResult(err))
		return Quote{}, couponNotEligible(err)
	}
	obs.ObserveCoupon("eligible")
	if _, err := s.Sessions.Update(ctx, userID, func(sess *Session) error {
		if err := sess.Apply(EventApplyCoupon); err != nil {
			return transitionError(err)
		}
		sess.CouponCode = c.Code
		return nil
	}); err != nil {
		return Quote{}, err
	}
	return s.Get(ctx, userID)
}

// RemoveCoupon detaches the applied coupon.
func (s *Service) RemoveCoupon(ctx context.Context, userID string) (Quote, error) {
	if _, err := s.Sessions.Update(ctx, userID, func(sess *Session) error {
		if err := sess.Apply(EventRemoveCoupon); err != nil {
			return transitionError(err)
		}
		sess.CouponCode = ""
		return nil
	}); err != nil {
		return Quote{}, err
	}
	return s.Get(ctx, userID)
}

// Coupons lists the backend's coupons with eligibility against the caller's
// current cart.
func (s *Service) Coupons(ctx context.Context, userID string) ([]CouponView, error) {
	list, err := s.Catalog.ListCoupons(ctx)
	if err != nil {
		return nil, mapBackendError(err)
	}
	st, err := s.Carts.State(ctx, userID)
	if err != nil {
		return nil, err
	}
	subtotal := cart.Subtotal(st)
	now := s.now()
	out := make([]CouponView, 0, len(list))
	for _, c := range list {
		view := CouponView{Coupon: c, Eligible: c.Validate(now, subtotal) == nil}
		if view.Eligible {
			view.Discount = coupon.EligibleDiscount(&c, subtotal)
		}
		out = append(out, view)
	}
	return out, nil
}

// Confirm submits the checkout to the backend. Only one confirm per user can
// be in flight; a concurrent call fails with SUBMISSION_IN_FLIGHT. On success
// the cart is cleared and the session deleted. On failure the cart is kept
// and the flow returns to AddressSelected.
func (s *Service) Confirm(ctx context.Context, userID string) (Confirmation, error) {
	var out Confirmation
	err := s.Locker.TryWithLock(ctx, confirmLockKey(userID), s.LockTTL, func(ctx context.Context) error {
		var err error
		out, err = s.confirm(ctx, userID)
		return err
	})
	if errors.Is(err, lock.ErrLocked) {
		obs.ObserveConfirm("in_flight")
		return Confirmation{}, submissionInFlight(err)
	}
	return out, err
}

func (s *Service) confirm(ctx context.Context, userID string) (Confirmation, error) {
	logger := zerolog.Ctx(ctx)
	sess, err := s.Sessions.Update(ctx, userID, func(sess *Session) error {
		if sess.State == StateConfirming {
			if !s.abandoned(*sess) {
				return submissionInFlight(ErrConfirmInFlight)
			}
			sess.State = StateAddressSelected
		}
		if err := sess.Apply(EventConfirm); err != nil {
			return transitionError(err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConfirmInFlight) {
			obs.ObserveConfirm("in_flight")
		} else {
			obs.ObserveConfirm("rejected")
		}
		return Confirmation{}, err
	}

	in, err := s.billingInput(ctx, userID, sess)
	if err != nil {
		return Confirmation{}, s.fail(ctx, userID, err)
	}

	start := time.Now()
	res, err := s.Billing.Submit(ctx, in)
	if err != nil {
		if !billing.IsValidation(err) {
			obs.ObserveBillingSubmit("error", time.Since(start))
		}
		return Confirmation{}, s.fail(ctx, userID, err)
	}
	obs.ObserveBillingSubmit("ok", time.Since(start))

	if err := sess.Apply(EventSucceed); err != nil {
		return Confirmation{}, err
	}
	// The backend has accepted the order; cleanup failures are only logged.
	cleanup := context.WithoutCancel(ctx)
	if err := s.Carts.Settle(cleanup, userID, cart.State{Items: in.Items}); err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("settle cart after checkout failed")
	}
	if err := s.Sessions.Delete(cleanup, userID); err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("delete checkout session failed")
	}

	obs.ObserveConfirm("submitted")
	logger.Info().
		Str("user_id", userID).
		Str("restaurant_id", sess.RestaurantID).
		Str("order_id", res.Order.ID).
		Str("total", res.Summary.Total.StringFixed(2)).
		Str("outcome", string(StateSubmitted)).
		Msg("checkout_confirm")
	s.emit(cleanup, events.TopicOrderPlaced, userID, map[string]any{
		"orderId":      res.Order.ID,
		"restaurantId": sess.RestaurantID,
		"total":        res.Summary.Total.StringFixed(2),
		"couponCode":   sess.CouponCode,
	})

	return Confirmation{
		State:   sess.State,
		Order:   res.Order,
		Summary: res.Summary,
		Display: s.display(res.Summary),
	}, nil
}

// fail moves the session through Failed back to AddressSelected and maps
// cause for the caller. The applied coupon is dropped.
func (s *Service) fail(ctx context.Context, userID string, cause error) error {
	cleanup := context.WithoutCancel(ctx)
	if _, err := s.Sessions.Update(cleanup, userID, func(sess *Session) error {
		if err := sess.Apply(EventFail); err != nil {
			return err
		}
		sess.CouponCode = ""
		return sess.Apply(EventRecover)
	}); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("reset checkout session failed")
	}
	obs.ObserveConfirm("failed")
	zerolog.Ctx(ctx).Warn().
		Err(cause).
		Str("user_id", userID).
		Str("outcome", string(StateFailed)).
		Msg("checkout_confirm")
	mapped := mapSubmitError(cause)
	payload := map[string]any{"reason": cause.Error()}
	var appErr *common.AppError
	if errors.As(mapped, &appErr) {
		payload["code"] = appErr.Code
	}
	s.emit(cleanup, events.TopicOrderFailed, userID, payload)
	return mapped
}

func (s *Service) emit(ctx context.Context, topic, userID string, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, userID, payload); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("topic", topic).Str("user_id", userID).Msg("emit checkout event failed")
	}
}

// billingInput gathers everything the submitter needs. The coupon, when one
// is applied, is looked up again so a withdrawn coupon fails the submission.
func (s *Service) billingInput(ctx context.Context, userID string, sess Session) (billing.Input, error) {
	st, err := s.Carts.State(ctx, userID)
	if err != nil {
		return billing.Input{}, err
	}
	in := billing.Input{
		UserID:       userID,
		RestaurantID: sess.RestaurantID,
		Experience:   sess.Experience,
		Items:        st.Items,
		Now:          s.now(),
	}
	if sess.AddressID != "" {
		addr, err := s.Addresses.Get(ctx, userID, sess.AddressID)
		if err != nil {
			return billing.Input{}, err
		}
		in.Address = &addr
	}
	if err := s.priceInputs(ctx, sess, &in); err != nil {
		return billing.Input{}, err
	}
	if sess.CouponCode != "" {
		c, err := s.findCoupon(ctx, sess.CouponCode)
		if err != nil {
			return billing.Input{}, err
		}
		in.Coupon = &c
	}
	return in, nil
}

func (s *Service) priceInputs(ctx context.Context, sess Session, in *billing.Input) error {
	settings, err := s.Catalog.GetDeliverySettings(ctx)
	if err != nil {
		return err
	}
	in.Rates = settings.Rates()
	if sess.RestaurantID != "" {
		restaurant, err := s.Catalog.GetRestaurant(ctx, sess.RestaurantID)
		if err != nil {
			return err
		}
		in.PackingFee = restaurant.PackingCharges.OrZero()
	}
	return nil
}

func (s *Service) quote(ctx context.Context, userID string, sess Session, st cart.State) (Quote, error) {
	in := billing.Input{UserID: userID, Experience: sess.Experience, Items: st.Items}
	if err := s.priceInputs(ctx, sess, &in); err != nil {
		return Quote{}, mapBackendError(err)
	}
	if sess.CouponCode != "" {
		if c, err := s.findCoupon(ctx, sess.CouponCode); err == nil {
			in.Coupon = &c
		}
	}
	summary := billing.Quote(in)
	items := st.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	return Quote{
		Session: sess,
		Items:   items,
		Coupon:  in.Coupon,
		Summary: summary,
		Display: s.display(summary),
	}, nil
}

func (s *Service) findCoupon(ctx context.Context, code string) (coupon.Coupon, error) {
	list, err := s.Catalog.ListCoupons(ctx)
	if err != nil {
		return coupon.Coupon{}, mapBackendError(err)
	}
	c, err := coupon.FindByCode(list, code)
	if err != nil {
		return coupon.Coupon{}, couponNotEligible(err)
	}
	return c, nil
}

func (s *Service) display(sum pricing.Summary) map[string]string {
	return map[string]string{
		"subtotal":    s.Formatter.Format(sum.Subtotal),
		"delivery":    s.Formatter.Format(sum.Delivery),
		"packing":     s.Formatter.Format(sum.Packing),
		"cgst":        s.Formatter.Format(sum.Cgst),
		"sgst":        s.Formatter.Format(sum.Sgst),
		"convenience": s.Formatter.Format(sum.Convenience),
		"discount":    s.Formatter.Format(sum.Discount),
		"total":       s.Formatter.Format(sum.Total),
	}
}

func couponResult(err error) string {
	switch {
	case errors.Is(err, coupon.ErrMinimumOrderUnmet):
		return "minimum_unmet"
	case errors.Is(err, coupon.ErrCouponExpired):
		return "expired"
	default:
		return "rejected"
	}
}
