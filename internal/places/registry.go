// Package places owns Place records and their moderation state machine:
// PENDING on creation, then freely toggled between APPROVED and REJECTED by
// administrators. No transition ever returns to PENDING, and a transition
// to the current status is a no-op that writes nothing.
package places

import (
	"context"
	"errors"
	"fmt"

	"pinpoint/internal/store"
)

var (
	ErrInvalidCoordinates = errors.New("coordinates out of range: lat must be in [-90,90], lng in [-180,180]")
)

type CreatePlaceInput struct {
	Name        string
	Description string
	Lat         float64
	Lng         float64
	OwnerID     int64
}

type Registry struct {
	store store.Storage
}

func NewRegistry(store store.Storage) *Registry {
	return &Registry{store: store}
}

// Create produces a new PENDING place owned by OwnerID. The owner must
// resolve to an existing user.
func (r *Registry) Create(ctx context.Context, in CreatePlaceInput) (*store.Place, error) {
	if in.Lat < -90 || in.Lat > 90 || in.Lng < -180 || in.Lng > 180 {
		return nil, ErrInvalidCoordinates
	}

	owner, err := r.store.Users.GetByID(ctx, in.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("resolve owner %d: %w", in.OwnerID, err)
	}

	place := &store.Place{
		Name:        in.Name,
		Description: in.Description,
		Lat:         in.Lat,
		Lng:         in.Lng,
		Status:      store.PlacePending,
		OwnerID:     owner.ID,
	}

	if err := r.store.Places.Create(ctx, place); err != nil {
		return nil, err
	}
	return place, nil
}

// Approve transitions the place to APPROVED. The returned flag is false
// when the place was already approved, in which case nothing was written.
func (r *Registry) Approve(ctx context.Context, placeID int64) (*store.Place, bool, error) {
	return r.store.Places.SetStatus(ctx, placeID, store.PlaceApproved)
}

// Reject transitions the place to REJECTED, symmetric to Approve.
func (r *Registry) Reject(ctx context.Context, placeID int64) (*store.Place, bool, error) {
	return r.store.Places.SetStatus(ctx, placeID, store.PlaceRejected)
}

// Delete permanently removes the place and, with it, its ratings.
func (r *Registry) Delete(ctx context.Context, placeID int64) error {
	return r.store.Places.Delete(ctx, placeID)
}

func (r *Registry) FindByID(ctx context.Context, placeID int64) (*store.Place, error) {
	return r.store.Places.GetByID(ctx, placeID)
}

func (r *Registry) FindByStatus(ctx context.Context, status store.PlaceStatus, limit, offset int) ([]store.Place, int, error) {
	return r.store.Places.List(ctx, store.PlaceFilter{Status: &status, Limit: limit, Offset: offset})
}

func (r *Registry) FindApproved(ctx context.Context, limit, offset int) ([]store.Place, int, error) {
	return r.FindByStatus(ctx, store.PlaceApproved, limit, offset)
}

func (r *Registry) FindAll(ctx context.Context, limit, offset int) ([]store.Place, int, error) {
	return r.store.Places.List(ctx, store.PlaceFilter{Limit: limit, Offset: offset})
}
