package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"pinpoint/internal/auth"
	"pinpoint/internal/moderation"
	"pinpoint/internal/notify"
	"pinpoint/internal/places"
	"pinpoint/internal/ratings"
	"pinpoint/internal/sharecode"
	"pinpoint/internal/store"
	"pinpoint/internal/store/teststore"
)

type noopMailer struct{}

func (noopMailer) Send(templateFile, username, email string, data any) (int, error) {
	return 200, nil
}

func newTestApplication(t *testing.T) *application {
	t.Helper()

	st := teststore.New()
	logger := zap.NewNop().Sugar()
	hub := notify.NewHub(logger)
	registry := places.NewRegistry(st)
	ledger := ratings.NewLedger(st)
	mail := noopMailer{}
	workflow := moderation.NewWorkflow(registry, hub, mail, st, logger)

	authenticator := auth.NewJWTAuthenticator(
		"test-secret", "test-refresh-secret", "pinpoint", "pinpoint",
		time.Hour, 24*time.Hour,
	)

	codes, err := sharecode.NewEncoder("test-salt")
	if err != nil {
		t.Fatalf("sharecode encoder: %v", err)
	}

	return &application{
		config: config{
			addr: ":0",
			env:  "test",
			auth: authConfig{
				basic: basicConfig{user: "admin", pass: "admin"},
			},
		},
		store:         st,
		logger:        logger,
		authenticator: authenticator,
		registry:      registry,
		ledger:        ledger,
		workflow:      workflow,
		hub:           hub,
		mailer:        mail,
		sharecodes:    codes,
	}
}

func (app *application) seedUser(t *testing.T, email, role string) (*store.User, string) {
	t.Helper()

	user := &store.User{FirstName: "Test", LastName: "User", Email: email, Role: role}
	if err := user.Password.Set("secret123"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := app.store.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}

	accessToken, _, err := app.authenticator.GenerateTokens(user.ID, user.Role)
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}
	return user, accessToken
}

func execRequest(mux http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body=%s)", err, rr.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decode data: %v (body=%s)", err, rr.Body.String())
	}
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	rr := execRequest(mux, http.MethodPost, "/v1/authentication/user", "", RegisterUserPayload{
		FirstName: "Zoé", LastName: "Petit", Email: "zoe@example.com", Password: "secret123",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: code=%d body=%s", rr.Code, rr.Body.String())
	}

	// Same email again conflicts.
	rr = execRequest(mux, http.MethodPost, "/v1/authentication/user", "", RegisterUserPayload{
		FirstName: "Zoé", LastName: "Petit", Email: "zoe@example.com", Password: "secret123",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register: code=%d", rr.Code)
	}

	rr = execRequest(mux, http.MethodPost, "/v1/authentication/token", "", CreateTokenPayload{
		Email: "zoe@example.com", Password: "secret123",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: code=%d body=%s", rr.Code, rr.Body.String())
	}
	var pair TokenPairResponse
	decodeData(t, rr, &pair)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty token pair: %+v", pair)
	}

	rr = execRequest(mux, http.MethodPost, "/v1/authentication/token", "", CreateTokenPayload{
		Email: "zoe@example.com", Password: "wrong-password",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: code=%d", rr.Code)
	}

	rr = execRequest(mux, http.MethodPost, "/v1/authentication/refresh", "", RefreshTokenPayload{
		RefreshToken: pair.RefreshToken,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: code=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestModerationFlowOverHTTP(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	_, ownerToken := app.seedUser(t, "owner@example.com", store.RoleUser)
	_, adminToken := app.seedUser(t, "admin@example.com", store.RoleAdmin)

	rr := execRequest(mux, http.MethodPost, "/v1/places", ownerToken, createPlacePayload{
		Name: "Le Phare", Description: "Vue sur la mer", Lat: 43.3, Lng: 5.4,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create place: code=%d body=%s", rr.Code, rr.Body.String())
	}
	var created PlaceResponse
	decodeData(t, rr, &created)
	if created.Status != "PENDING" {
		t.Fatalf("new place status: %s", created.Status)
	}
	if created.ShareCode != "" {
		t.Fatalf("pending place got a share code: %q", created.ShareCode)
	}

	// Anonymous listing shows only approved places, so nothing yet.
	rr = execRequest(mux, http.MethodGet, "/v1/places", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: code=%d", rr.Code)
	}
	var listing struct {
		Places []PlaceResponse `json:"places"`
	}
	decodeData(t, rr, &listing)
	if len(listing.Places) != 0 {
		t.Fatalf("pending place leaked into public listing: %+v", listing.Places)
	}

	// Anonymous callers cannot see the pending place, its owner can.
	placePath := fmt.Sprintf("/v1/places/%d", created.ID)
	if rr = execRequest(mux, http.MethodGet, placePath, "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("anonymous get pending: code=%d", rr.Code)
	}
	if rr = execRequest(mux, http.MethodGet, placePath, ownerToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("owner get pending: code=%d", rr.Code)
	}

	// Non-admin listing of PENDING is forbidden; admin is allowed.
	if rr = execRequest(mux, http.MethodGet, "/v1/places?status=PENDING", ownerToken, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("non-admin pending list: code=%d", rr.Code)
	}
	if rr = execRequest(mux, http.MethodGet, "/v1/places?status=PENDING", adminToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("admin pending list: code=%d", rr.Code)
	}

	// Only admins reach the moderation endpoints.
	approvePath := fmt.Sprintf("/v1/admin/places/%d/approve", created.ID)
	if rr = execRequest(mux, http.MethodPost, approvePath, ownerToken, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("non-admin approve: code=%d", rr.Code)
	}
	rr = execRequest(mux, http.MethodPost, approvePath, adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: code=%d body=%s", rr.Code, rr.Body.String())
	}
	var approved PlaceResponse
	decodeData(t, rr, &approved)
	if approved.Status != "APPROVED" {
		t.Fatalf("approved status: %s", approved.Status)
	}
	if approved.ShareCode == "" {
		t.Fatalf("approved place has no share code")
	}

	// Now public.
	rr = execRequest(mux, http.MethodGet, "/v1/places", "", nil)
	decodeData(t, rr, &listing)
	if len(listing.Places) != 1 || listing.Places[0].ID != created.ID {
		t.Fatalf("public listing after approve: %+v", listing.Places)
	}

	if rr = execRequest(mux, http.MethodPost, "/v1/admin/places/404/approve", adminToken, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("approve missing place: code=%d", rr.Code)
	}
}

func TestRatingOverHTTP(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	_, ownerToken := app.seedUser(t, "owner@example.com", store.RoleUser)
	_, adminToken := app.seedUser(t, "admin@example.com", store.RoleAdmin)
	_, raterToken := app.seedUser(t, "rater@example.com", store.RoleUser)

	rr := execRequest(mux, http.MethodPost, "/v1/places", ownerToken, createPlacePayload{
		Name: "La Fontaine", Description: "Place ombragée", Lat: 45, Lng: 4,
	})
	var place PlaceResponse
	decodeData(t, rr, &place)

	ratePath := fmt.Sprintf("/v1/places/%d/ratings", place.ID)

	// Rating a pending place fails the precondition.
	rr = execRequest(mux, http.MethodPost, ratePath, raterToken, createRatingPayload{Score: 4})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("rate pending place: code=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = execRequest(mux, http.MethodPost, fmt.Sprintf("/v1/admin/places/%d/approve", place.ID), adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: code=%d", rr.Code)
	}

	// Unauthenticated ratings are rejected.
	if rr = execRequest(mux, http.MethodPost, ratePath, "", createRatingPayload{Score: 4}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous rate: code=%d", rr.Code)
	}

	if rr = execRequest(mux, http.MethodPost, ratePath, raterToken, createRatingPayload{Score: 9}); rr.Code != http.StatusBadRequest {
		t.Fatalf("out of range score: code=%d", rr.Code)
	}

	rr = execRequest(mux, http.MethodPost, ratePath, raterToken, createRatingPayload{Score: 4, Comment: "Très agréable"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("rate: code=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = execRequest(mux, http.MethodPost, ratePath, ownerToken, createRatingPayload{Score: 2})
	if rr.Code != http.StatusCreated {
		t.Fatalf("second rate: code=%d body=%s", rr.Code, rr.Body.String())
	}

	// Public stats endpoint reflects the aggregate.
	rr = execRequest(mux, http.MethodGet, ratePath, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("ratings list: code=%d", rr.Code)
	}
	var stats struct {
		RatingsCount int     `json:"ratings_count"`
		AvgRating    float64 `json:"avg_rating"`
	}
	decodeData(t, rr, &stats)
	if stats.RatingsCount != 2 || stats.AvgRating != 3.0 {
		t.Fatalf("stats: count=%d avg=%v", stats.RatingsCount, stats.AvgRating)
	}

	// Re-rating replaces instead of appending.
	rr = execRequest(mux, http.MethodPost, ratePath, raterToken, createRatingPayload{Score: 5})
	if rr.Code != http.StatusCreated {
		t.Fatalf("re-rate: code=%d", rr.Code)
	}
	rr = execRequest(mux, http.MethodGet, ratePath, "", nil)
	decodeData(t, rr, &stats)
	if stats.RatingsCount != 2 || stats.AvgRating != 3.5 {
		t.Fatalf("stats after re-rate: count=%d avg=%v", stats.RatingsCount, stats.AvgRating)
	}

	// The caller can read back their own rating.
	rr = execRequest(mux, http.MethodGet, ratePath+"/me", raterToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("my rating: code=%d", rr.Code)
	}
	var mine store.Rating
	decodeData(t, rr, &mine)
	if mine.Score != 5 {
		t.Fatalf("my rating score: %d", mine.Score)
	}
}

func TestHiddenPlaceRatingsNotProbeable(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	_, ownerToken := app.seedUser(t, "owner@example.com", store.RoleUser)
	_, adminToken := app.seedUser(t, "admin@example.com", store.RoleAdmin)
	_, strangerToken := app.seedUser(t, "stranger@example.com", store.RoleUser)

	rr := execRequest(mux, http.MethodPost, "/v1/places", ownerToken, createPlacePayload{
		Name: "Discret", Description: "Pas encore public", Lat: 2, Lng: 2,
	})
	var place PlaceResponse
	decodeData(t, rr, &place)

	ratePath := fmt.Sprintf("/v1/places/%d/ratings", place.ID)

	// A pending place's ratings look exactly like a missing place to
	// anonymous callers and unrelated users.
	if rr = execRequest(mux, http.MethodGet, ratePath, "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("anonymous ratings of pending place: code=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr = execRequest(mux, http.MethodGet, ratePath, strangerToken, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("stranger ratings of pending place: code=%d", rr.Code)
	}
	if rr = execRequest(mux, http.MethodGet, ratePath+"/me", strangerToken, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("stranger my-rating on pending place: code=%d", rr.Code)
	}

	// The owner and admins still see them.
	if rr = execRequest(mux, http.MethodGet, ratePath, ownerToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("owner ratings of pending place: code=%d", rr.Code)
	}
	if rr = execRequest(mux, http.MethodGet, ratePath, adminToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("admin ratings of pending place: code=%d", rr.Code)
	}

	// Approval opens them up, rejection hides them again.
	rr = execRequest(mux, http.MethodPost, fmt.Sprintf("/v1/admin/places/%d/approve", place.ID), adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: code=%d", rr.Code)
	}
	if rr = execRequest(mux, http.MethodGet, ratePath, "", nil); rr.Code != http.StatusOK {
		t.Fatalf("anonymous ratings of approved place: code=%d", rr.Code)
	}

	rr = execRequest(mux, http.MethodPost, fmt.Sprintf("/v1/admin/places/%d/reject", place.ID), adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("reject: code=%d", rr.Code)
	}
	if rr = execRequest(mux, http.MethodGet, ratePath, "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("anonymous ratings of rejected place: code=%d", rr.Code)
	}
}

func TestRegisterWithoutMailer(t *testing.T) {
	app := newTestApplication(t)
	app.mailer = nil
	app.workflow = moderation.NewWorkflow(app.registry, app.hub, nil, app.store, app.logger)
	mux := app.mount()

	rr := execRequest(mux, http.MethodPost, "/v1/authentication/user", "", RegisterUserPayload{
		FirstName: "Noa", LastName: "Blanc", Email: "noa@example.com", Password: "secret123",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register without mailer: code=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAdminDeleteOverHTTP(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	_, ownerToken := app.seedUser(t, "owner@example.com", store.RoleUser)
	_, adminToken := app.seedUser(t, "admin@example.com", store.RoleAdmin)

	rr := execRequest(mux, http.MethodPost, "/v1/places", ownerToken, createPlacePayload{
		Name: "Temporaire", Description: "Bientôt supprimé", Lat: 1, Lng: 1,
	})
	var place PlaceResponse
	decodeData(t, rr, &place)

	deletePath := fmt.Sprintf("/v1/admin/places/%d", place.ID)
	if rr = execRequest(mux, http.MethodDelete, deletePath, ownerToken, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("non-admin delete: code=%d", rr.Code)
	}
	if rr = execRequest(mux, http.MethodDelete, deletePath, adminToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete: code=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr = execRequest(mux, http.MethodDelete, deletePath, adminToken, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: code=%d", rr.Code)
	}
}

func TestHealthRequiresBasicAuth(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated health: code=%d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.SetBasicAuth("admin", "admin")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("health: code=%d body=%s", rr.Code, rr.Body.String())
	}
}
