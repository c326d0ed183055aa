package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pinpoint/internal/db"
)

type Rating struct {
	ID        int64     `json:"id"`
	PlaceID   int64     `json:"place_id"`
	UserID    int64     `json:"user_id"`
	Score     int       `json:"score"` // 1-5
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined fields
	UserName string `json:"user_name,omitempty"`
}

type RatingsStore struct {
	db *pgxpool.Pool
}

// Rate upserts the (user, place) rating and rewrites the place aggregate
// from a full scan of the place's ratings, all in one transaction. The
// UNIQUE(user_id, place_id) constraint backs the upsert, so a second rating
// from the same user updates the existing row.
func (s *RatingsStore) Rate(ctx context.Context, rating *Rating) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return db.WithTx(s.db, ctx, func(tx pgx.Tx) error {
		upsert := `
			INSERT INTO ratings (place_id, user_id, score, comment)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, place_id)
			DO UPDATE SET score = EXCLUDED.score, comment = EXCLUDED.comment, updated_at = now()
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, upsert,
			rating.PlaceID,
			rating.UserID,
			rating.Score,
			rating.Comment,
		).Scan(&rating.ID, &rating.CreatedAt, &rating.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert rating: %w", err)
		}

		var count int
		var avg float64
		stats := `
			SELECT COUNT(id), COALESCE(AVG(score), 0)
			FROM ratings
			WHERE place_id = $1
		`
		if err := tx.QueryRow(ctx, stats, rating.PlaceID).Scan(&count, &avg); err != nil {
			return fmt.Errorf("rating stats: %w", err)
		}

		refresh := `
			UPDATE places
			SET avg_rating = $2, ratings_count = $3, updated_at = now()
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, refresh, rating.PlaceID, avg, count); err != nil {
			return fmt.Errorf("refresh place aggregate: %w", err)
		}
		return nil
	})
}

func (s *RatingsStore) GetByUserAndPlace(ctx context.Context, userID, placeID int64) (*Rating, error) {
	query := `
		SELECT id, place_id, user_id, score, comment, created_at, updated_at
		FROM ratings
		WHERE user_id = $1 AND place_id = $2
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rating := &Rating{}

	err := s.db.QueryRow(ctx, query, userID, placeID).Scan(
		&rating.ID,
		&rating.PlaceID,
		&rating.UserID,
		&rating.Score,
		&rating.Comment,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rating, nil
}

func (s *RatingsStore) ListByPlace(ctx context.Context, placeID int64, limit, offset int) ([]Rating, int, error) {
	if limit <= 0 || limit > 60 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(id) FROM ratings WHERE place_id = $1`, placeID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ratings: %w", err)
	}

	query := `
		SELECT r.id, r.place_id, r.user_id, r.score, r.comment,
		       r.created_at, r.updated_at, u.first_name || ' ' || u.last_name
		FROM ratings r
		JOIN users u ON u.id = r.user_id
		WHERE r.place_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.Query(ctx, query, placeID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var ratings []Rating
	for rows.Next() {
		var rating Rating
		err := rows.Scan(
			&rating.ID,
			&rating.PlaceID,
			&rating.UserID,
			&rating.Score,
			&rating.Comment,
			&rating.CreatedAt,
			&rating.UpdatedAt,
			&rating.UserName,
		)
		if err != nil {
			return nil, 0, err
		}
		ratings = append(ratings, rating)
	}
	return ratings, total, rows.Err()
}
