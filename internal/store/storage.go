package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	QueryTimeoutDuration = time.Second * 5
)

type Storage struct {
	Users interface {
		Create(context.Context, *User) error
		GetByID(context.Context, int64) (*User, error)
		GetByEmail(context.Context, string) (*User, error)
	}
	Places interface {
		Create(context.Context, *Place) error
		GetByID(context.Context, int64) (*Place, error)
		List(context.Context, PlaceFilter) ([]Place, int, error)
		SetStatus(context.Context, int64, PlaceStatus) (*Place, bool, error)
		Delete(context.Context, int64) error
		AddPhotoURL(context.Context, int64, string) error
		RemovePhotoURL(context.Context, int64, string) error
	}
	Ratings interface {
		Rate(context.Context, *Rating) error
		GetByUserAndPlace(context.Context, int64, int64) (*Rating, error)
		ListByPlace(context.Context, int64, int, int) ([]Rating, int, error)
	}
}

func NewStorage(db *pgxpool.Pool) Storage {
	return Storage{
		Users:   &UsersStore{db},
		Places:  &PlacesStore{db},
		Ratings: &RatingsStore{db},
	}
}
