package cart

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/food-checkout/internal/common"
	"github.com/noah-isme/food-checkout/internal/money"
	"github.com/noah-isme/food-checkout/internal/obs"
	"github.com/noah-isme/food-checkout/internal/pricing"
)

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// AddItemInput is the request to put a food in the cart.
type AddItemInput struct {
	ID             string            `json:"id" validate:"required"`
	Name           string            `json:"name" validate:"required"`
	Image          string            `json:"image"`
	Quantity       int               `json:"quantity" validate:"gte=0,lte=99"`
	SelectedOption pricing.Option    `json:"selectedOption" validate:"omitempty,oneof=half full HALF FULL Half Full"`
	HasVariation   bool              `json:"hasVariation"`
	PriceInfo      pricing.PriceInfo `json:"priceInfo"`
	UnitPrice      money.Amount      `json:"unitPrice"`
	SelectedAddOns []pricing.AddOn   `json:"selectedAddOns"`
	Note           string            `json:"note" validate:"max=500"`
}

// LineItem converts the request into a cart line.
func (in AddItemInput) LineItem() LineItem {
	return LineItem{
		ID:             strings.TrimSpace(in.ID),
		Name:           strings.TrimSpace(in.Name),
		Image:          in.Image,
		Quantity:       in.Quantity,
		SelectedOption: in.SelectedOption,
		HasVariation:   in.HasVariation,
		PriceInfo:      in.PriceInfo,
		UnitPrice:      in.UnitPrice.OrZero(),
		SelectedAddOns: in.SelectedAddOns,
		Note:           in.Note,
	}
}

// View is the cart as returned to clients.
type View struct {
	Items           []LineItem      `json:"items"`
	Count           int             `json:"count"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	SubtotalDisplay string          `json:"subtotalDisplay"`
}

// Service encapsulates cart domain operations.
type Service struct {
	Store     *Store
	Formatter money.Formatter
}

// Get returns the user's cart.
func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	st, err := s.State(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return s.view(st), nil
}

// State returns the raw cart state.
func (s *Service) State(ctx context.Context, userID string) (State, error) {
	if s == nil || s.Store == nil {
		return State{}, errors.New("cart service not configured")
	}
	return s.Store.Load(ctx, userID)
}

// AddItem validates in and merges it into the cart.
func (s *Service) AddItem(ctx context.Context, userID string, in AddItemInput) (View, error) {
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	if in.HasVariation && !in.PriceInfo.StaticPrice.Valid && in.SelectedOption == "" {
		return View{}, common.Validation("selectedOption is required for variation items", ErrInvalidInput).
			WithDetails(map[string]string{"selectedOption": "required"})
	}
	return s.Dispatch(ctx, userID, AddToCart(in.LineItem()))
}

// Dispatch applies one action to the stored cart.
func (s *Service) Dispatch(ctx context.Context, userID string, a Action) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("cart service not configured")
	}
	st, err := s.Store.Update(ctx, userID, func(current State) State {
		return Reduce(current, a)
	})
	if err != nil {
		return View{}, err
	}
	obs.ObserveCartMutation(string(a.Type))
	return s.view(st), nil
}

// Settle removes the lines of an accepted order from the stored cart,
// keeping anything added while the order was in flight.
func (s *Service) Settle(ctx context.Context, userID string, billed State) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if _, err := s.Store.Update(ctx, userID, func(current State) State {
		return Settle(current, billed)
	}); err != nil {
		return err
	}
	obs.ObserveCartMutation("cart/settle")
	return nil
}

// Clear empties the user's cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	return s.Store.Clear(ctx, userID)
}

func (s *Service) view(st State) View {
	subtotal := Subtotal(st)
	items := st.Items
	if items == nil {
		items = []LineItem{}
	}
	return View{
		Items:           items,
		Count:           len(items),
		Subtotal:        subtotal,
		SubtotalDisplay: s.Formatter.Format(subtotal),
	}
}

// Lines returns the pricing inputs of every line in st.
func Lines(st State) []pricing.Line {
	lines := make([]pricing.Line, 0, len(st.Items))
	for _, item := range st.Items {
		lines = append(lines, item.Pricing())
	}
	return lines
}

// Subtotal is the item subtotal of st.
func Subtotal(st State) decimal.Decimal {
	return pricing.Subtotal(Lines(st))
}
