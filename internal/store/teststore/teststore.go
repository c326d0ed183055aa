// Package teststore provides an in-memory store.Storage for tests. It
// mirrors the SQL stores' observable behavior: sentinel errors, upsert on
// (user, place), full-scan aggregate refresh, cascade delete.
package teststore

import (
	"context"
	"sort"
	"sync"
	"time"

	"pinpoint/internal/store"
)

type state struct {
	mu      sync.Mutex
	users   map[int64]*store.User
	places  map[int64]*store.Place
	ratings map[int64]*store.Rating
	nextID  int64
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// New returns a Storage backed by one shared in-memory state.
func New() store.Storage {
	st := &state{
		users:   make(map[int64]*store.User),
		places:  make(map[int64]*store.Place),
		ratings: make(map[int64]*store.Rating),
	}
	return store.Storage{
		Users:   &usersStore{st},
		Places:  &placesStore{st},
		Ratings: &ratingsStore{st},
	}
}

type usersStore struct{ st *state }

func (s *usersStore) Create(_ context.Context, user *store.User) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, existing := range s.st.users {
		if existing.Email == user.Email {
			return store.ErrDuplicateEmail
		}
	}
	if user.Role == "" {
		user.Role = store.RoleUser
	}
	user.ID = s.st.id()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	copied := *user
	s.st.users[user.ID] = &copied
	return nil
}

func (s *usersStore) GetByID(_ context.Context, userID int64) (*store.User, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	user, ok := s.st.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *usersStore) GetByEmail(_ context.Context, email string) (*store.User, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, user := range s.st.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

type placesStore struct{ st *state }

func (s *placesStore) Create(_ context.Context, place *store.Place) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	place.ID = s.st.id()
	place.CreatedAt = time.Now()
	place.UpdatedAt = place.CreatedAt
	if place.PhotoURLs == nil {
		place.PhotoURLs = []string{}
	}

	copied := *place
	s.st.places[place.ID] = &copied
	return nil
}

func (s *placesStore) GetByID(_ context.Context, placeID int64) (*store.Place, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	return s.getLocked(placeID)
}

func (s *placesStore) getLocked(placeID int64) (*store.Place, error) {
	place, ok := s.st.places[placeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *place
	return &copied, nil
}

func (s *placesStore) List(_ context.Context, filter store.PlaceFilter) ([]store.Place, int, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	var all []store.Place
	for _, place := range s.st.places {
		if filter.Status != nil && place.Status != *filter.Status {
			continue
		}
		all = append(all, *place)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := len(all)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return all[filter.Offset:end], total, nil
}

func (s *placesStore) SetStatus(_ context.Context, placeID int64, status store.PlaceStatus) (*store.Place, bool, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	place, ok := s.st.places[placeID]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if place.Status == status {
		copied := *place
		return &copied, false, nil
	}
	place.Status = status
	place.UpdatedAt = time.Now()
	copied := *place
	return &copied, true, nil
}

func (s *placesStore) Delete(_ context.Context, placeID int64) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, ok := s.st.places[placeID]; !ok {
		return store.ErrNotFound
	}
	for id, rating := range s.st.ratings {
		if rating.PlaceID == placeID {
			delete(s.st.ratings, id)
		}
	}
	delete(s.st.places, placeID)
	return nil
}

func (s *placesStore) AddPhotoURL(_ context.Context, placeID int64, photoURL string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	place, ok := s.st.places[placeID]
	if !ok {
		return store.ErrNotFound
	}
	place.PhotoURLs = append(place.PhotoURLs, photoURL)
	return nil
}

func (s *placesStore) RemovePhotoURL(_ context.Context, placeID int64, photoURL string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	place, ok := s.st.places[placeID]
	if !ok {
		return store.ErrNotFound
	}
	kept := place.PhotoURLs[:0]
	for _, url := range place.PhotoURLs {
		if url != photoURL {
			kept = append(kept, url)
		}
	}
	place.PhotoURLs = kept
	return nil
}

type ratingsStore struct{ st *state }

func (s *ratingsStore) Rate(_ context.Context, rating *store.Rating) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	var existing *store.Rating
	for _, r := range s.st.ratings {
		if r.UserID == rating.UserID && r.PlaceID == rating.PlaceID {
			existing = r
			break
		}
	}

	now := time.Now()
	if existing == nil {
		rating.ID = s.st.id()
		rating.CreatedAt = now
		rating.UpdatedAt = now
		copied := *rating
		s.st.ratings[rating.ID] = &copied
	} else {
		existing.Score = rating.Score
		existing.Comment = rating.Comment
		existing.UpdatedAt = now
		rating.ID = existing.ID
		rating.CreatedAt = existing.CreatedAt
		rating.UpdatedAt = now
	}

	// Full scan, as the SQL store does.
	place, ok := s.st.places[rating.PlaceID]
	if !ok {
		return store.ErrNotFound
	}
	var count int
	var sum int
	for _, r := range s.st.ratings {
		if r.PlaceID == rating.PlaceID {
			count++
			sum += r.Score
		}
	}
	place.RatingsCount = count
	if count == 0 {
		place.AvgRating = 0
	} else {
		place.AvgRating = float64(sum) / float64(count)
	}
	place.UpdatedAt = now
	return nil
}

func (s *ratingsStore) GetByUserAndPlace(_ context.Context, userID, placeID int64) (*store.Rating, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, rating := range s.st.ratings {
		if rating.UserID == userID && rating.PlaceID == placeID {
			copied := *rating
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *ratingsStore) ListByPlace(_ context.Context, placeID int64, limit, offset int) ([]store.Rating, int, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	var all []store.Rating
	for _, rating := range s.st.ratings {
		if rating.PlaceID == placeID {
			copied := *rating
			if user, ok := s.st.users[rating.UserID]; ok {
				copied.UserName = user.FullName()
			}
			all = append(all, copied)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
