package main

import (
	"errors"
	"fmt"
	"net/http"

	"pinpoint/internal/store"
)

// uploadPlacePhotoHandler godoc
//
//	@Summary		Uploads a photo for a place
//	@Description	Owner or admin only; the photo lands on Cloudinary
//	@Tags			places
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			placeID	path		int		true	"Place ID"
//	@Param			photo	formData	file	true	"Photo file"
//	@Success		201		{object}	map[string]string
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/places/{placeID}/photos [post]
func (app *application) uploadPlacePhotoHandler(w http.ResponseWriter, r *http.Request) {
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

	user := getUserFromContext(r)
	if user.ID != place.OwnerID && !user.IsAdmin() {
		app.forbiddenResponse(w, r)
		return
	}

	const maxBytes = 10 * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("parse form: %w", err))
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("photo file is required"))
		return
	}
	defer file.Close()

	photoURL, err := app.uploadPlacePhotoToCloudinary(file, placeID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Places.AddPhotoURL(r.Context(), placeID, photoURL); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, map[string]string{"photo_url": photoURL}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deletePlacePhotoHandler godoc
//
//	@Summary		Deletes a place photo
//	@Description	DELETE /places/{placeID}/photos?photo_url={url}
//	@Tags			places
//	@Produce		json
//	@Param			placeID		path		int		true	"Place ID"
//	@Param			photo_url	query		string	true	"Photo URL to remove"
//	@Success		200			{object}	map[string]string
//	@Failure		400			{object}	error
//	@Failure		403			{object}	error
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/places/{placeID}/photos [delete]
func (app *application) deletePlacePhotoHandler(w http.ResponseWriter, r *http.Request) {
	placeID, err := placeIDFromURL(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	photoURL := r.URL.Query().Get("photo_url")
	if photoURL == "" {
		app.badRequestResponse(w, r, fmt.Errorf("photo_url is required"))
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

	user := getUserFromContext(r)
	if user.ID != place.OwnerID && !user.IsAdmin() {
		app.forbiddenResponse(w, r)
		return
	}

	if err := app.deletePhotoFromCloudinary(photoURL); err != nil {
		app.logger.Warnw("cloudinary delete failed, removing reference anyway",
			"placeID", placeID, "photoURL", photoURL, "error", err)
	}

	if err := app.store.Places.RemovePhotoURL(r.Context(), placeID, photoURL); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "photo deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}
