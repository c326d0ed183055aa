package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pinpoint/internal/db"
)

type PlaceStatus string

const (
	PlacePending  PlaceStatus = "PENDING"
	PlaceApproved PlaceStatus = "APPROVED"
	PlaceRejected PlaceStatus = "REJECTED"
)

// ParsePlaceStatus maps a query-string value onto a known status.
func ParsePlaceStatus(s string) (PlaceStatus, error) {
	switch PlaceStatus(strings.ToUpper(s)) {
	case PlacePending:
		return PlacePending, nil
	case PlaceApproved:
		return PlaceApproved, nil
	case PlaceRejected:
		return PlaceRejected, nil
	}
	return "", fmt.Errorf("unknown place status %q", s)
}

type Place struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Lat          float64     `json:"lat"`
	Lng          float64     `json:"lng"`
	Status       PlaceStatus `json:"status"`
	OwnerID      int64       `json:"owner_id"`
	AvgRating    float64     `json:"avg_rating"`
	RatingsCount int         `json:"ratings_count"`
	PhotoURLs    []string    `json:"photo_urls"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type PlaceFilter struct {
	Status *PlaceStatus
	Limit  int
	Offset int
}

type PlacesStore struct {
	db *pgxpool.Pool
}

func (s *PlacesStore) Create(ctx context.Context, place *Place) error {
	query := `
		INSERT INTO places (name, description, lat, lng, status, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, avg_rating, ratings_count, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := s.db.QueryRow(ctx, query,
		place.Name,
		place.Description,
		place.Lat,
		place.Lng,
		place.Status,
		place.OwnerID,
	).Scan(
		&place.ID,
		&place.AvgRating,
		&place.RatingsCount,
		&place.CreatedAt,
		&place.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create place: %w", err)
	}
	if place.PhotoURLs == nil {
		place.PhotoURLs = []string{}
	}

	return nil
}

func (s *PlacesStore) GetByID(ctx context.Context, placeID int64) (*Place, error) {
	query := `
		SELECT id, name, description, lat, lng, status, owner_id,
		       avg_rating, ratings_count, photo_urls, created_at, updated_at
		FROM places
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	place := &Place{}

	err := s.db.QueryRow(ctx, query, placeID).Scan(
		&place.ID,
		&place.Name,
		&place.Description,
		&place.Lat,
		&place.Lng,
		&place.Status,
		&place.OwnerID,
		&place.AvgRating,
		&place.RatingsCount,
		&place.PhotoURLs,
		&place.CreatedAt,
		&place.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return place, nil
}

func (s *PlacesStore) List(ctx context.Context, filter PlaceFilter) ([]Place, int, error) {
	if filter.Limit <= 0 || filter.Limit > 60 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where := []string{"1=1"}
	args := []interface{}{}
	arg := 1

	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", arg))
		args = append(args, string(*filter.Status))
		arg++
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(id) FROM places WHERE %s`, strings.Join(where, " AND "))

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var total int
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count places: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, name, description, lat, lng, status, owner_id,
		       avg_rating, ratings_count, photo_urls, created_at, updated_at
		FROM places
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, strings.Join(where, " AND "), arg, arg+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list places: %w", err)
	}
	defer rows.Close()

	var places []Place
	for rows.Next() {
		var place Place
		err := rows.Scan(
			&place.ID,
			&place.Name,
			&place.Description,
			&place.Lat,
			&place.Lng,
			&place.Status,
			&place.OwnerID,
			&place.AvgRating,
			&place.RatingsCount,
			&place.PhotoURLs,
			&place.CreatedAt,
			&place.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		places = append(places, place)
	}
	return places, total, rows.Err()
}

// SetStatus writes the new status only when it differs from the current one.
// The returned flag reports whether a row was actually written, so callers
// can tell a real transition from a same-state no-op.
func (s *PlacesStore) SetStatus(ctx context.Context, placeID int64, status PlaceStatus) (*Place, bool, error) {
	query := `
		UPDATE places
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status <> $2
		RETURNING id, name, description, lat, lng, status, owner_id,
		          avg_rating, ratings_count, photo_urls, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	place := &Place{}

	err := s.db.QueryRow(ctx, query, placeID, status).Scan(
		&place.ID,
		&place.Name,
		&place.Description,
		&place.Lat,
		&place.Lng,
		&place.Status,
		&place.OwnerID,
		&place.AvgRating,
		&place.RatingsCount,
		&place.PhotoURLs,
		&place.CreatedAt,
		&place.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Absent row and already-in-target-status look the same here.
			current, getErr := s.GetByID(ctx, placeID)
			if getErr != nil {
				return nil, false, getErr
			}
			return current, false, nil
		}
		return nil, false, fmt.Errorf("set place status: %w", err)
	}
	return place, true, nil
}

// Delete removes the place and its ratings in one transaction.
func (s *PlacesStore) Delete(ctx context.Context, placeID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return db.WithTx(s.db, ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ratings WHERE place_id = $1`, placeID); err != nil {
			return fmt.Errorf("delete place ratings: %w", err)
		}

		result, err := tx.Exec(ctx, `DELETE FROM places WHERE id = $1`, placeID)
		if err != nil {
			return fmt.Errorf("delete place: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PlacesStore) AddPhotoURL(ctx context.Context, placeID int64, photoURL string) error {
	query := `
		UPDATE places
		SET photo_urls = array_append(photo_urls, $2), updated_at = now()
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := s.db.Exec(ctx, query, placeID, photoURL)
	if err != nil {
		return fmt.Errorf("add photo url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PlacesStore) RemovePhotoURL(ctx context.Context, placeID int64, photoURL string) error {
	query := `
		UPDATE places
		SET photo_urls = array_remove(photo_urls, $2), updated_at = now()
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := s.db.Exec(ctx, query, placeID, photoURL)
	if err != nil {
		return fmt.Errorf("remove photo url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
