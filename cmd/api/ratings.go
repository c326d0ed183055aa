package main

import (
	"errors"
	"math"
	"net/http"

	"pinpoint/internal/params"
	"pinpoint/internal/ratings"
	"pinpoint/internal/store"
)

type createRatingPayload struct {
	Score   int    `json:"score" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=500"`
}

// createRatingHandler godoc
//
//	@Summary		Rates an approved place
//	@Description	One rating per user per place; rating again updates the existing one
//	@Tags			ratings
//	@Accept			json
//	@Produce		json
//	@Param			placeID	path		int					true	"Place ID"
//	@Param			payload	body		createRatingPayload	true	"Score and optional comment"
//	@Success		201		{object}	store.Rating
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Failure		422		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/places/{placeID}/ratings [post]
func (app *application) createRatingHandler(w http.ResponseWriter, r *http.Request) {
	placeID, err := placeIDFromURL(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload createRatingPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	rating, err := app.ledger.Rate(r.Context(), placeID, user.ID, payload.Score, payload.Comment)
	if err != nil {
		switch {
		case errors.Is(err, ratings.ErrInvalidScore):
			app.badRequestResponse(w, r, err)
		case errors.Is(err, ratings.ErrPlaceNotApproved):
			app.unprocessableEntityResponse(w, r, err)
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, rating); err != nil {
		app.internalServerError(w, r, err)
	}
}

// visiblePlaceOr404 loads the place and applies the same visibility rule as
// getPlaceHandler: non-approved places exist only for their owner and
// admins, everyone else gets a 404. Rating reads go through here so a
// hidden place cannot be probed via its ratings.
func (app *application) visiblePlaceOr404(w http.ResponseWriter, r *http.Request, placeID int64) (*store.Place, bool) {
	place, err := app.registry.FindByID(r.Context(), placeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return nil, false
		}
		app.internalServerError(w, r, err)
		return nil, false
	}

	if place.Status != store.PlaceApproved {
		user := getUserFromContext(r)
		isOwner := user != nil && user.ID == place.OwnerID
		isAdmin := user != nil && user.IsAdmin()
		if !isOwner && !isAdmin {
			app.notFoundResponse(w, r, store.ErrNotFound)
			return nil, false
		}
	}
	return place, true
}

// getPlaceRatingsHandler godoc
//
//	@Summary		Lists a place's ratings with aggregate stats
//	@Tags			ratings
//	@Produce		json
//	@Param			placeID	path		int	true	"Place ID"
//	@Param			page	query		int	false	"Page number"
//	@Param			limit	query		int	false	"Items per page"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Router			/places/{placeID}/ratings [get]
func (app *application) getPlaceRatingsHandler(w http.ResponseWriter, r *http.Request) {
	placeID, err := placeIDFromURL(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	place, ok := app.visiblePlaceOr404(w, r, placeID)
	if !ok {
		return
	}

	pagination := params.ParsePagination(r.URL.Query())

	list, total, err := app.ledger.FindByPlace(r.Context(), placeID, pagination.Limit, pagination.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	pagination.ComputeMeta(total)

	response := map[string]any{
		"ratings":       list,
		"ratings_count": place.RatingsCount,
		"avg_rating":    math.Round(place.AvgRating*10) / 10,
		"pagination":    pagination,
	}

	if err := app.jsonResponse(w, http.StatusOK, response); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getMyRatingHandler godoc
//
//	@Summary		Fetches the caller's rating for a place
//	@Tags			ratings
//	@Produce		json
//	@Param			placeID	path		int	true	"Place ID"
//	@Success		200		{object}	store.Rating
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/places/{placeID}/ratings/me [get]
func (app *application) getMyRatingHandler(w http.ResponseWriter, r *http.Request) {
	placeID, err := placeIDFromURL(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if _, ok := app.visiblePlaceOr404(w, r, placeID); !ok {
		return
	}

	user := getUserFromContext(r)

	rating, err := app.ledger.FindByUserAndPlace(r.Context(), placeID, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, rating); err != nil {
		app.internalServerError(w, r, err)
	}
}
