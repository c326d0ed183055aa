package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"pinpoint/internal/params"
	"pinpoint/internal/places"
	"pinpoint/internal/store"
)

type createPlacePayload struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description string  `json:"description" validate:"required,max=2000"`
	Lat         float64 `json:"lat" validate:"min=-90,max=90"`
	Lng         float64 `json:"lng" validate:"min=-180,max=180"`
}

// PlaceResponse is the public shape of a place.
type PlaceResponse struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Lat          float64  `json:"lat"`
	Lng          float64  `json:"lng"`
	Status       string   `json:"status"`
	OwnerID      int64    `json:"owner_id"`
	AvgRating    float64  `json:"avg_rating"`
	RatingsCount int      `json:"ratings_count"`
	PhotoURLs    []string `json:"photo_urls"`
	ShareCode    string   `json:"share_code,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

func (app *application) toPlaceResponse(place *store.Place) PlaceResponse {
	resp := PlaceResponse{
		ID:           place.ID,
		Name:         place.Name,
		Description:  place.Description,
		Lat:          place.Lat,
		Lng:          place.Lng,
		Status:       string(place.Status),
		OwnerID:      place.OwnerID,
		AvgRating:    place.AvgRating,
		RatingsCount: place.RatingsCount,
		PhotoURLs:    place.PhotoURLs,
		CreatedAt:    place.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	// Only live places get a public share code.
	if place.Status == store.PlaceApproved && app.sharecodes != nil {
		if code, err := app.sharecodes.Encode(place.ID); err == nil {
			resp.ShareCode = code
		}
	}
	return resp
}

func (app *application) toPlaceResponses(list []store.Place) []PlaceResponse {
	resp := make([]PlaceResponse, 0, len(list))
	for i := range list {
		resp = append(resp, app.toPlaceResponse(&list[i]))
	}
	return resp
}

func placeIDFromURL(r *http.Request) (int64, error) {
	placeID, err := strconv.ParseInt(chi.URLParam(r, "placeID"), 10, 64)
	if err != nil || placeID <= 0 {
		return 0, fmt.Errorf("invalid place ID")
	}
	return placeID, nil
}

// createPlaceHandler godoc
//
//	@Summary		Submits a place for moderation
//	@Description	Created places always start PENDING; moderators are notified on their feed
//	@Tags			places
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		createPlacePayload	true	"Place details"
//	@Success		201		{object}	PlaceResponse
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/places [post]
func (app *application) createPlaceHandler(w http.ResponseWriter, r *http.Request) {
	var payload createPlacePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	place, err := app.workflow.Submit(r.Context(), places.CreatePlaceInput{
		Name:        payload.Name,
		Description: payload.Description,
		Lat:         payload.Lat,
		Lng:         payload.Lng,
		OwnerID:     user.ID,
	})
	if err != nil {
		switch {
		case errors.Is(err, places.ErrInvalidCoordinates):
			app.badRequestResponse(w, r, err)
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, app.toPlaceResponse(place)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listPlacesHandler godoc
//
//	@Summary		Lists places
//	@Description	Defaults to APPROVED; other statuses and ALL require the admin role
//	@Tags			places
//	@Produce		json
//	@Param			status	query		string	false	"APPROVED|PENDING|REJECTED|ALL"
//	@Param			page	query		int		false	"Page number"
//	@Param			limit	query		int		false	"Items per page"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Router			/places [get]
func (app *application) listPlacesHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	isAdmin := user != nil && user.IsAdmin()

	pagination := params.ParsePagination(r.URL.Query())

	statusParam := strings.TrimSpace(r.URL.Query().Get("status"))
	if statusParam == "" {
		statusParam = string(store.PlaceApproved)
	}

	var (
		list  []store.Place
		total int
		err   error
	)

	if strings.EqualFold(statusParam, "ALL") {
		if !isAdmin {
			app.forbiddenResponse(w, r)
			return
		}
		list, total, err = app.registry.FindAll(r.Context(), pagination.Limit, pagination.Offset)
	} else {
		status, parseErr := store.ParsePlaceStatus(statusParam)
		if parseErr != nil {
			app.badRequestResponse(w, r, parseErr)
			return
		}
		if !isAdmin && status != store.PlaceApproved {
			app.forbiddenResponse(w, r)
			return
		}
		list, total, err = app.registry.FindByStatus(r.Context(), status, pagination.Limit, pagination.Offset)
	}
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	pagination.ComputeMeta(total)

	response := map[string]any{
		"places":     app.toPlaceResponses(list),
		"pagination": pagination,
	}

	if err := app.jsonResponse(w, http.StatusOK, response); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getPlaceHandler godoc
//
//	@Summary		Fetches one place
//	@Description	Non-approved places are visible only to their owner and admins
//	@Tags			places
//	@Produce		json
//	@Param			placeID	path		int	true	"Place ID"
//	@Success		200		{object}	PlaceResponse
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Router			/places/{placeID} [get]
func (app *application) getPlaceHandler(w http.ResponseWriter, r *http.Request) {
	placeID, err := placeIDFromURL(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	place, err := app.registry.FindByID(r.Context(), placeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if place.Status != store.PlaceApproved {
		user := getUserFromContext(r)
		isOwner := user != nil && user.ID == place.OwnerID
		isAdmin := user != nil && user.IsAdmin()
		if !isOwner && !isAdmin {
			// Hidden, not forbidden: outsiders cannot probe pending places.
			app.notFoundResponse(w, r, store.ErrNotFound)
			return
		}
	}

	if err := app.jsonResponse(w, http.StatusOK, app.toPlaceResponse(place)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// adminPlacesHandler godoc
//
//	@Summary		Moderation dashboard data (admin)
//	@Description	Pending and rejected places, newest first
//	@Tags			admin
//	@Produce		json
//	@Param			page	query		int	false	"Page number"
//	@Param			limit	query		int	false	"Items per page"
//	@Success		200		{object}	map[string]any
//	@Failure		401		{object}	error
//	@Failure		403		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/places [get]
func (app *application) adminPlacesHandler(w http.ResponseWriter, r *http.Request) {
	pagination := params.ParsePagination(r.URL.Query())

	pending, pendingTotal, err := app.registry.FindByStatus(r.Context(), store.PlacePending, pagination.Limit, pagination.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	rejected, rejectedTotal, err := app.registry.FindByStatus(r.Context(), store.PlaceRejected, pagination.Limit, pagination.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	response := map[string]any{
		"pending":        app.toPlaceResponses(pending),
		"pending_total":  pendingTotal,
		"rejected":       app.toPlaceResponses(rejected),
		"rejected_total": rejectedTotal,
	}

	if err := app.jsonResponse(w, http.StatusOK, response); err != nil {
		app.internalServerError(w, r, err)
	}
}

// approvePlaceHandler godoc
//
//	@Summary		Approves a place (admin)
//	@Description	Same-state calls are no-ops: nothing written, no notification
//	@Tags			admin
//	@Produce		json
//	@Param			placeID	path		int	true	"Place ID"
//	@Success		200		{object}	PlaceResponse
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/places/{placeID}/approve [post]
func (app *application) approvePlaceHandler(w http.ResponseWriter, r *http.Request) {
	placeID, err := placeIDFromURL(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	place, err := app.workflow.Approve(r.Context(), placeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, app.toPlaceResponse(place)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// rejectPlaceHandler godoc
//
//	@Summary		Rejects a place (admin)
//	@Tags			admin
//	@Produce		json
//	@Param			placeID	path		int	true	"Place ID"
//	@Success		200		{object}	PlaceResponse
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/places/{placeID}/reject [post]
func (app *application) rejectPlaceHandler(w http.ResponseWriter, r *http.Request) {
	placeID, err := placeIDFromURL(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	place, err := app.workflow.Reject(r.Context(), placeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, app.toPlaceResponse(place)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deletePlaceHandler godoc
//
//	@Summary		Permanently deletes a place (admin)
//	@Description	The place's ratings go with it
//	@Tags			admin
//	@Produce		json
//	@Param			placeID	path		int	true	"Place ID"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/places/{placeID} [delete]
func (app *application) deletePlaceHandler(w http.ResponseWriter, r *http.Request) {
	placeID, err := placeIDFromURL(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.registry.Delete(r.Context(), placeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "place deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}
