package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/food-checkout/internal/common"
)

// ErrAddressNotFound is returned when an address id is unknown for the user.
var ErrAddressNotFound = errors.New("address not found")

// Address is a saved delivery address.
type Address struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MobileNumber string    `json:"mobileNumber"`
	Flat         string    `json:"flat,omitempty"`
	Landmark     string    `json:"landmark,omitempty"`
	Address      string    `json:"address"`
	Pin          string    `json:"pin"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	AddressType  string    `json:"addressType,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AddressInput captures payload for creating an address.
type AddressInput struct {
	Name         string  `json:"name" validate:"required,max=120"`
	MobileNumber string  `json:"mobileNumber" validate:"required,min=7,max=20"`
	Flat         string  `json:"flat" validate:"max=120"`
	Landmark     string  `json:"landmark" validate:"max=120"`
	Address      string  `json:"address" validate:"required,max=500"`
	Pin          string  `json:"pin" validate:"required,numeric,min=4,max=10"`
	City         string  `json:"city" validate:"required"`
	State        string  `json:"state" validate:"required"`
	Lat          float64 `json:"lat" validate:"omitempty,latitude"`
	Lng          float64 `json:"lng" validate:"omitempty,longitude"`
	AddressType  string  `json:"addressType" validate:"max=30"`
}

// Service stores a per-user address book in a Redis hash keyed by address id.
type Service struct {
	R   *redis.Client
	Now func() time.Time
}

func addressesKey(userID string) string { return "addresses:" + userID }

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.R == nil {
		return errors.New("address service not configured")
	}
	return nil
}

// List returns the user's addresses, oldest first.
func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	raw, err := s.R.HGetAll(ctx, addressesKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Address, 0, len(raw))
	for id, data := range raw {
		var addr Address
		if err := json.Unmarshal([]byte(data), &addr); err != nil {
			return nil, fmt.Errorf("decode address %s: %w", id, err)
		}
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Get loads one address.
func (s *Service) Get(ctx context.Context, userID, addressID string) (Address, error) {
	if err := s.ready(); err != nil {
		return Address{}, err
	}
	data, err := s.R.HGet(ctx, addressesKey(userID), strings.TrimSpace(addressID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Address{}, common.NewAppError(common.CodeNotFound, "address not found", http.StatusNotFound, ErrAddressNotFound)
		}
		return Address{}, err
	}
	var addr Address
	if err := json.Unmarshal(data, &addr); err != nil {
		return Address{}, fmt.Errorf("decode address: %w", err)
	}
	return addr, nil
}

// Create validates input and saves a new address for the user.
func (s *Service) Create(ctx context.Context, userID string, input AddressInput) (Address, error) {
	if err := s.ready(); err != nil {
		return Address{}, err
	}
	if err := common.ValidateStruct(input); err != nil {
		return Address{}, err
	}
	addr := Address{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		MobileNumber: strings.TrimSpace(input.MobileNumber),
		Flat:         strings.TrimSpace(input.Flat),
		Landmark:     strings.TrimSpace(input.Landmark),
		Address:      strings.TrimSpace(input.Address),
		Pin:          strings.TrimSpace(input.Pin),
		City:         strings.TrimSpace(input.City),
		State:        strings.TrimSpace(input.State),
		Lat:          input.Lat,
		Lng:          input.Lng,
		AddressType:  strings.ToLower(strings.TrimSpace(input.AddressType)),
		CreatedAt:    s.now(),
	}
	data, err := json.Marshal(addr)
	if err != nil {
		return Address{}, err
	}
	if err := s.R.HSet(ctx, addressesKey(userID), addr.ID, data).Err(); err != nil {
		return Address{}, err
	}
	return addr, nil
}

// Delete removes an address.
func (s *Service) Delete(ctx context.Context, userID, addressID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	n, err := s.R.HDel(ctx, addressesKey(userID), strings.TrimSpace(addressID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.NewAppError(common.CodeNotFound, "address not found", http.StatusNotFound, ErrAddressNotFound)
	}
	return nil
}
