// Package ratings owns Rating records and the per-place rating aggregate.
package ratings

import (
	"context"
	"errors"
	"fmt"

	"pinpoint/internal/store"
)

var (
	ErrInvalidScore     = errors.New("score must be between 1 and 5")
	ErrPlaceNotApproved = errors.New("ratings allowed only on approved places")
)

type Ledger struct {
	store store.Storage
	locks placeLocks
}

func NewLedger(store store.Storage) *Ledger {
	return &Ledger{store: store}
}

// Rate upserts userID's rating for placeID and recomputes the place's
// aggregate from a full scan of its ratings. The scan-then-write is not
// atomic across callers on its own, so the whole step runs under a
// per-place lock: two concurrent raters on one place serialize, and the
// aggregate never sticks at a stale snapshot.
func (l *Ledger) Rate(ctx context.Context, placeID, userID int64, score int, comment string) (*store.Rating, error) {
	if score < 1 || score > 5 {
		return nil, ErrInvalidScore
	}

	place, err := l.store.Places.GetByID(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("resolve place %d: %w", placeID, err)
	}
	if place.Status != store.PlaceApproved {
		return nil, ErrPlaceNotApproved
	}

	if _, err := l.store.Users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("resolve user %d: %w", userID, err)
	}

	rating := &store.Rating{
		PlaceID: placeID,
		UserID:  userID,
		Score:   score,
		Comment: comment,
	}

	mu := l.locks.forPlace(placeID)
	mu.Lock()
	defer mu.Unlock()

	if err := l.store.Ratings.Rate(ctx, rating); err != nil {
		return nil, err
	}
	return rating, nil
}

func (l *Ledger) FindByPlace(ctx context.Context, placeID int64, limit, offset int) ([]store.Rating, int, error) {
	return l.store.Ratings.ListByPlace(ctx, placeID, limit, offset)
}

func (l *Ledger) FindByUserAndPlace(ctx context.Context, placeID, userID int64) (*store.Rating, error) {
	return l.store.Ratings.GetByUserAndPlace(ctx, userID, placeID)
}
