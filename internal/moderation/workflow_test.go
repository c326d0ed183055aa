package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"pinpoint/internal/mailer"
	"pinpoint/internal/notify"
	"pinpoint/internal/places"
	"pinpoint/internal/store"
	"pinpoint/internal/store/teststore"
)

type sentMail struct {
	templateFile string
	email        string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (m *fakeMailer) Send(templateFile, username, email string, data any) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	m.sent = append(m.sent, sentMail{templateFile: templateFile, email: email})
	return 200, nil
}

func (m *fakeMailer) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type harness struct {
	store    store.Storage
	hub      *notify.Hub
	mailer   *fakeMailer
	workflow *Workflow
	owner    *store.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := teststore.New()
	hub := notify.NewHub(zap.NewNop().Sugar())
	mail := &fakeMailer{}
	registry := places.NewRegistry(st)
	wf := NewWorkflow(registry, hub, mail, st, zap.NewNop().Sugar())

	owner := &store.User{FirstName: "Luc", LastName: "Martin", Email: "luc@example.com"}
	if err := st.Users.Create(context.Background(), owner); err != nil {
		t.Fatalf("create owner: %v", err)
	}
	return &harness{store: st, hub: hub, mailer: mail, workflow: wf, owner: owner}
}

func (h *harness) submit(t *testing.T, name string) *store.Place {
	t.Helper()
	place, err := h.workflow.Submit(context.Background(), places.CreatePlaceInput{
		Name: name, Lat: 44, Lng: 4, OwnerID: h.owner.ID,
	})
	if err != nil {
		t.Fatalf("submit %s: %v", name, err)
	}
	return place
}

func recvEvent(t *testing.T, ch <-chan notify.Event) notify.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return notify.Event{}
}

func assertNoEvent(t *testing.T, ch <-chan notify.Event) {
	t.Helper()
	select {
	case event := <-ch:
		t.Fatalf("unexpected event: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubmitBroadcastsToModerators(t *testing.T) {
	h := newHarness(t)

	moderator := h.hub.Subscribe(99)
	h.hub.JoinTopic(moderator, notify.TopicModeration)

	place := h.submit(t, "La Terrasse")

	event := recvEvent(t, moderator.Outbound)
	if event.Kind != notify.EventPlaceSubmitted {
		t.Fatalf("kind: %s", event.Kind)
	}
	if event.PlaceID != place.ID || event.Status != "PENDING" {
		t.Fatalf("event: %+v", event)
	}
	want := "Nouveau lieu « La Terrasse » proposé par Luc Martin."
	if event.Message != want {
		t.Fatalf("message: want=%q got=%q", want, event.Message)
	}
}

func TestApproveNotifiesOwnerAndMails(t *testing.T) {
	h := newHarness(t)
	ownerClient := h.hub.Subscribe(h.owner.ID)

	place := h.submit(t, "Chez Luc")

	approved, err := h.workflow.Approve(context.Background(), place.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != store.PlaceApproved {
		t.Fatalf("status: %s", approved.Status)
	}

	event := recvEvent(t, ownerClient.Outbound)
	if event.Kind != notify.EventPlaceApproved || event.Message != "Votre lieu est en ligne." {
		t.Fatalf("event: %+v", event)
	}

	sent := h.mailer.all()
	if len(sent) != 1 || sent[0].templateFile != mailer.PlaceApprovedTemplate || sent[0].email != h.owner.Email {
		t.Fatalf("mails: %+v", sent)
	}
}

func TestApproveAlreadyApprovedEmitsNothing(t *testing.T) {
	h := newHarness(t)
	ownerClient := h.hub.Subscribe(h.owner.ID)

	place := h.submit(t, "Encore")
	if _, err := h.workflow.Approve(context.Background(), place.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	recvEvent(t, ownerClient.Outbound)
	h.mailer.all()

	again, err := h.workflow.Approve(context.Background(), place.ID)
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if again.Status != store.PlaceApproved {
		t.Fatalf("status: %s", again.Status)
	}

	assertNoEvent(t, ownerClient.Outbound)
	if sent := h.mailer.all(); len(sent) != 1 {
		t.Fatalf("no-op transition sent mail: %+v", sent)
	}
}

func TestRejectThenApproveEmitsBoth(t *testing.T) {
	h := newHarness(t)
	ownerClient := h.hub.Subscribe(h.owner.ID)

	place := h.submit(t, "Hésitant")

	if _, err := h.workflow.Reject(context.Background(), place.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := h.workflow.Approve(context.Background(), place.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	first := recvEvent(t, ownerClient.Outbound)
	if first.Kind != notify.EventPlaceRejected || first.Message != "Votre lieu a été refusé." {
		t.Fatalf("first event: %+v", first)
	}
	second := recvEvent(t, ownerClient.Outbound)
	if second.Kind != notify.EventPlaceApproved {
		t.Fatalf("second event: %+v", second)
	}

	sent := h.mailer.all()
	if len(sent) != 2 || sent[0].templateFile != mailer.PlaceRejectedTemplate || sent[1].templateFile != mailer.PlaceApprovedTemplate {
		t.Fatalf("mails: %+v", sent)
	}
}

func TestApproveUnknownPlace(t *testing.T) {
	h := newHarness(t)

	if _, err := h.workflow.Approve(context.Background(), 404); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if sent := h.mailer.all(); len(sent) != 0 {
		t.Fatalf("mail sent for missing place: %+v", sent)
	}
}

func TestMailerFailureDoesNotSurface(t *testing.T) {
	h := newHarness(t)
	h.mailer.fail = errors.New("smtp down")

	place := h.submit(t, "Sans courriel")

	approved, err := h.workflow.Approve(context.Background(), place.ID)
	if err != nil {
		t.Fatalf("approve must swallow mail failures: %v", err)
	}
	if approved.Status != store.PlaceApproved {
		t.Fatalf("status: %s", approved.Status)
	}
}

func TestNilMailerIsTolerated(t *testing.T) {
	st := teststore.New()
	hub := notify.NewHub(zap.NewNop().Sugar())
	wf := NewWorkflow(places.NewRegistry(st), hub, nil, st, zap.NewNop().Sugar())

	owner := &store.User{FirstName: "Ana", LastName: "Sol", Email: "ana@example.com"}
	if err := st.Users.Create(context.Background(), owner); err != nil {
		t.Fatalf("create owner: %v", err)
	}
	place, err := wf.Submit(context.Background(), places.CreatePlaceInput{
		Name: "Sans mailer", Lat: 1, Lng: 1, OwnerID: owner.ID,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := wf.Approve(context.Background(), place.ID); err != nil {
		t.Fatalf("approve with nil mailer: %v", err)
	}
}
