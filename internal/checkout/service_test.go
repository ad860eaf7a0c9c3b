package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/food-checkout/internal/backend"
	"github.com/noah-isme/food-checkout/internal/billing"
	"github.com/noah-isme/food-checkout/internal/cart"
	"github.com/noah-isme/food-checkout/internal/checkout"
	"github.com/noah-isme/food-checkout/internal/common"
	"github.com/noah-isme/food-checkout/internal/coupon"
	"github.com/noah-isme/food-checkout/internal/events"
	"github.com/noah-isme/food-checkout/internal/lock"
	"github.com/noah-isme/food-checkout/internal/money"
	"github.com/noah-isme/food-checkout/internal/pricing"
	"github.com/noah-isme/food-checkout/internal/user"
)

const uid = "user-1"

type fakeCatalog struct {
	coupons []coupon.Coupon
}

func (f *fakeCatalog) GetDeliverySettings(context.Context) (backend.DeliverySettings, error) {
	return backend.DeliverySettings{
		DeliveryChargesValue:    money.FromInt(40),
		Cgst:                    money.FromFloat(2.5),
		Sgst:                    money.FromFloat(2.5),
		ConvenienceChargesType:  "flat",
		ConvenienceChargesValue: money.FromInt(10),
	}, nil
}

func (f *fakeCatalog) ListCoupons(context.Context) ([]coupon.Coupon, error) {
	return f.coupons, nil
}

func (f *fakeCatalog) GetRestaurant(_ context.Context, id string) (backend.Restaurant, error) {
	if id != "rest-1" {
		return backend.Restaurant{}, backend.ErrNotFound
	}
	return backend.Restaurant{ID: id, Name: "Spice Hub", PackingCharges: money.FromInt(20)}, nil
}

type fakeGateway struct {
	posts   atomic.Int32
	err     error
	entered chan struct{}
	release chan struct{}
	last    billing.Payload
	mu      sync.Mutex
}

func (g *fakeGateway) CreateBilling(_ context.Context, p billing.Payload) (billing.Order, error) {
	g.posts.Add(1)
	g.mu.Lock()
	g.last = p
	g.mu.Unlock()
	if g.entered != nil {
		g.entered <- struct{}{}
		<-g.release
	}
	if g.err != nil {
		return billing.Order{}, g.err
	}
	return billing.Order{ID: "order-1", Status: "placed", TotalAmount: money.FromFloat(p.TotalAmount)}, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	topics []string
	last   map[string]any
}

func (r *recordingEmitter) Emit(_ context.Context, topic, aggregateID string, payload any) (events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.last, _ = payload.(map[string]any)
	return events.Event{Topic: topic, AggregateID: aggregateID}, nil
}

type fixture struct {
	svc     *checkout.Service
	events  *recordingEmitter
	carts   *cart.Service
	users   *user.Service
	gateway *fakeGateway
	mr      *miniredis.Miniredis
	address user.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	carts := &cart.Service{Store: &cart.Store{R: client, TTL: time.Hour}}
	users := &user.Service{R: client}
	gw := &fakeGateway{}
	emitter := &recordingEmitter{}
	catalog := &fakeCatalog{coupons: []coupon.Coupon{
		{ID: "c1", Code: "SAVE60", DiscountValue: money.FromInt(60), MinOrderAmount: money.FromInt(500)},
		{ID: "c2", Code: "BIG", DiscountValue: money.FromInt(100), MinOrderAmount: money.FromInt(5000)},
	}}
	svc := &checkout.Service{
		Sessions:  &checkout.SessionStore{R: client, TTL: time.Hour},
		Carts:     carts,
		Addresses: users,
		Catalog:   catalog,
		Billing:   billing.Submitter{Gateway: gw},
		Locker:    lock.Locker{R: client},
		LockTTL:   5 * time.Second,
		Events:    emitter,
	}

	ctx := context.Background()
	_, err = carts.AddItem(ctx, uid, cart.AddItemInput{ID: "f1", Name: "Paneer Tikka", Quantity: 2,
		PriceInfo: pricing.PriceInfo{StaticPrice: money.FromInt(250)}})
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, uid, cart.AddItemInput{ID: "f2", Name: "Thali", Quantity: 1,
		PriceInfo: pricing.PriceInfo{StaticPrice: money.FromInt(500)}})
	require.NoError(t, err)
	addr, err := users.Create(ctx, uid, user.AddressInput{
		Name: "Asha", MobileNumber: "9876543210", Address: "12 MG Road",
		Pin: "560001", City: "Bengaluru", State: "KA",
	})
	require.NoError(t, err)

	return &fixture{svc: svc, events: emitter, carts: carts, users: users, gateway: gw, mr: mr, address: addr}
}

func (f *fixture) ready(t *testing.T, couponCode string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Start(ctx, uid, checkout.StartInput{RestaurantID: "rest-1", ExperienceType: "delivery"})
	require.NoError(t, err)
	_, err = f.svc.SelectAddress(ctx, uid, f.address.ID)
	require.NoError(t, err)
	if couponCode != "" {
		_, err = f.svc.ApplyCoupon(ctx, uid, couponCode)
		require.NoError(t, err)
	}
}

func requireCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, status, appErr.HTTPStatus)
	require.Equal(t, code, appErr.Code)
}

func TestQuoteAppliesCouponAndCharges(t *testing.T) {
	f := newFixture(t)
	f.ready(t, "save60")

	q, err := f.svc.Get(context.Background(), uid)
	require.NoError(t, err)
	require.Equal(t, checkout.StateCouponApplied, q.Session.State)
	require.Equal(t, "SAVE60", q.Session.CouponCode)
	require.Equal(t, "1000", q.Summary.Subtotal.String())
	require.Equal(t, "1120", q.Summary.Gross.String())
	require.Equal(t, "1060", q.Summary.Total.String())
	require.NotEmpty(t, q.Display["total"])
}

func TestApplyCouponBelowMinimum(t *testing.T) {
	f := newFixture(t)
	f.ready(t, "")

	_, err := f.svc.ApplyCoupon(context.Background(), uid, "BIG")
	requireCode(t, err, http.StatusUnprocessableEntity, common.CodeCouponNotEligible)

	_, err = f.svc.ApplyCoupon(context.Background(), uid, "NOPE")
	requireCode(t, err, http.StatusUnprocessableEntity, common.CodeCouponNotEligible)
}

func TestIllegalTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, uid)
	requireCode(t, err, http.StatusConflict, common.CodeInvalidState)

	_, err = f.svc.Start(ctx, uid, checkout.StartInput{RestaurantID: "rest-1"})
	require.NoError(t, err)
	_, err = f.svc.ApplyCoupon(ctx, uid, "SAVE60")
	requireCode(t, err, http.StatusConflict, common.CodeInvalidState)
	_, err = f.svc.RemoveCoupon(ctx, uid)
	requireCode(t, err, http.StatusConflict, common.CodeInvalidState)
	require.Zero(t, f.gateway.posts.Load())
}

func TestStartRequiresItemsAndKnownRestaurant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, uid, checkout.StartInput{RestaurantID: "missing"})
	requireCode(t, err, http.StatusNotFound, common.CodeNotFound)

	require.NoError(t, f.carts.Clear(ctx, uid))
	_, err = f.svc.Start(ctx, uid, checkout.StartInput{RestaurantID: "rest-1"})
	requireCode(t, err, http.StatusBadRequest, common.CodeCartEmpty)
}

func TestConfirmSuccessClearsCartAndSession(t *testing.T) {
	f := newFixture(t)
	f.ready(t, "SAVE60")
	ctx := context.Background()

	out, err := f.svc.Confirm(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, checkout.StateSubmitted, out.State)
	require.Equal(t, "order-1", out.Order.ID)
	require.Equal(t, "1060", out.Summary.Total.String())
	require.EqualValues(t, 1, f.gateway.posts.Load())
	require.Equal(t, "SAVE60", f.gateway.last.CouponCode)
	require.Equal(t, billing.PaymentMethodCOD, f.gateway.last.PaymentMethod)

	st, err := f.carts.State(ctx, uid)
	require.NoError(t, err)
	require.Zero(t, st.Len())
	require.False(t, f.mr.Exists("checkout:session:"+uid))
	require.False(t, f.mr.Exists("checkout:confirm:"+uid))
	require.Equal(t, []string{events.TopicOrderPlaced}, f.events.topics)
	require.Equal(t, "order-1", f.events.last["orderId"])
}

func TestConfirmBackendFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = backend.ErrUnavailable
	f.ready(t, "SAVE60")
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, uid)
	requireCode(t, err, http.StatusBadGateway, common.CodeBackendUnavailable)
	require.EqualValues(t, 1, f.gateway.posts.Load())

	st, err := f.carts.State(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, 2, st.Len())

	q, err := f.svc.Get(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, checkout.StateAddressSelected, q.Session.State)
	require.Empty(t, q.Session.CouponCode)
	require.Equal(t, []string{events.TopicOrderFailed}, f.events.topics)
	require.Equal(t, common.CodeBackendUnavailable, f.events.last["code"])
}

func TestConfirmRejectedByBackend(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = &backend.RejectedError{StatusCode: http.StatusBadRequest, Message: "restaurant closed"}
	f.ready(t, "")

	_, err := f.svc.Confirm(context.Background(), uid)
	requireCode(t, err, http.StatusUnprocessableEntity, common.CodeValidation)
}

func TestConcurrentConfirmPostsOnce(t *testing.T) {
	f := newFixture(t)
	f.gateway.entered = make(chan struct{})
	f.gateway.release = make(chan struct{})
	f.ready(t, "")
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.svc.Confirm(ctx, uid)
	}()
	<-f.gateway.entered

	_, err := f.svc.Confirm(ctx, uid)
	requireCode(t, err, http.StatusConflict, common.CodeSubmissionInFlight)

	close(f.gateway.release)
	wg.Wait()
	require.NoError(t, firstErr)
	require.EqualValues(t, 1, f.gateway.posts.Load())

	_, err = f.svc.Confirm(ctx, uid)
	requireCode(t, err, http.StatusConflict, common.CodeInvalidState)
	require.EqualValues(t, 1, f.gateway.posts.Load())
}

func TestCouponsAnnotatesEligibility(t *testing.T) {
	f := newFixture(t)

	list, err := f.svc.Coupons(context.Background(), uid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.True(t, list[0].Eligible)
	require.Equal(t, "60", list[0].Discount.String())
	require.False(t, list[1].Eligible)
}

func TestCheckoutHandlers(t *testing.T) {
	f := newFixture(t)
	h := &checkout.Handler{Svc: f.svc}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get("X-Test-User"); id != "" {
				req = req.WithContext(common.WithUserID(req.Context(), id))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/checkout", h.Get)
	r.Post("/checkout/start", h.Start)
	r.Put("/checkout/address", h.SelectAddress)
	r.Put("/checkout/coupon", h.ApplyCoupon)
	r.Delete("/checkout/coupon", h.RemoveCoupon)
	r.Post("/checkout/confirm", h.Confirm)
	r.Get("/coupons", h.Coupons)

	call := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
		}
		req.Header.Set("X-Test-User", uid)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := call(http.MethodPost, "/checkout/start", `{"restaurantId":"rest-1","experienceType":"takeaway"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(http.MethodPut, "/checkout/address", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(http.MethodPut, "/checkout/address", `{"addressId":"`+f.address.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(http.MethodPut, "/checkout/coupon", `{"code":"SAVE60"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = call(http.MethodDelete, "/checkout/coupon", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(http.MethodGet, "/coupons", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(http.MethodPost, "/checkout/confirm", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Data checkout.Confirmation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	// takeaway: no delivery fee
	require.Equal(t, "1080", out.Data.Summary.Total.String())

	req := httptest.NewRequest(http.MethodGet, "/checkout", nil)
	unauth := httptest.NewRecorder()
	r.ServeHTTP(unauth, req)
	require.Equal(t, http.StatusUnauthorized, unauth.Code)
}

func TestConfirmAfterLockExpiryStaysSingleSubmission(t *testing.T) {
	f := newFixture(t)
	f.gateway.entered = make(chan struct{})
	f.gateway.release = make(chan struct{})
	f.ready(t, "")
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.svc.Confirm(ctx, uid)
	}()
	<-f.gateway.entered

	f.mr.FastForward(6 * time.Second)
	require.False(t, f.mr.Exists("checkout:confirm:"+uid))

	_, err := f.svc.Confirm(ctx, uid)
	requireCode(t, err, http.StatusConflict, common.CodeSubmissionInFlight)

	close(f.gateway.release)
	wg.Wait()
	require.NoError(t, firstErr)
	require.EqualValues(t, 1, f.gateway.posts.Load())
}

func TestConfirmRecoversAbandonedConfirmingSession(t *testing.T) {
	f := newFixture(t)
	f.ready(t, "")
	ctx := context.Background()

	_, err := f.svc.Sessions.Update(ctx, uid, func(sess *checkout.Session) error {
		return sess.Apply(checkout.EventConfirm)
	})
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, uid)
	requireCode(t, err, http.StatusConflict, common.CodeSubmissionInFlight)
	require.Zero(t, f.gateway.posts.Load())

	f.svc.Now = func() time.Time { return time.Now().Add(time.Hour) }
	out, err := f.svc.Confirm(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, checkout.StateSubmitted, out.State)
	require.EqualValues(t, 1, f.gateway.posts.Load())
}

func TestConfirmKeepsItemsAddedWhileSubmitting(t *testing.T) {
	f := newFixture(t)
	f.gateway.entered = make(chan struct{})
	f.gateway.release = make(chan struct{})
	f.ready(t, "")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Confirm(ctx, uid)
		done <- err
	}()
	<-f.gateway.entered

	_, err := f.carts.AddItem(ctx, uid, cart.AddItemInput{ID: "f3", Name: "Lassi", Quantity: 1,
		PriceInfo: pricing.PriceInfo{StaticPrice: money.FromInt(60)}})
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, uid, cart.AddItemInput{ID: "f1", Name: "Paneer Tikka", Quantity: 1,
		PriceInfo: pricing.PriceInfo{StaticPrice: money.FromInt(250)}})
	require.NoError(t, err)

	close(f.gateway.release)
	require.NoError(t, <-done)

	st, err := f.carts.State(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, 2, st.Len())
	require.Equal(t, "f1", st.Items[0].ID)
	require.Equal(t, 1, st.Items[0].Quantity)
	require.Equal(t, "f3", st.Items[1].ID)
}
