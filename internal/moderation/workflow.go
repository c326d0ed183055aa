// Package moderation orchestrates the place registry, the notification hub
// and the mailer: every registry mutation is turned into the matching
// best-effort side effects. The committed state transition is the sole
// source of truth; a failed notification or email is logged and swallowed,
// never surfaced to the caller.
package moderation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pinpoint/internal/mailer"
	"pinpoint/internal/notify"
	"pinpoint/internal/places"
	"pinpoint/internal/store"
)

type Workflow struct {
	registry *places.Registry
	hub      *notify.Hub
	mailer   mailer.Client
	store    store.Storage
	logger   *zap.SugaredLogger
}

func NewWorkflow(registry *places.Registry, hub *notify.Hub, mailClient mailer.Client, st store.Storage, logger *zap.SugaredLogger) *Workflow {
	return &Workflow{
		registry: registry,
		hub:      hub,
		mailer:   mailClient,
		store:    st,
		logger:   logger,
	}
}

// Submit creates a PENDING place and announces it on the moderation topic.
func (wf *Workflow) Submit(ctx context.Context, in places.CreatePlaceInput) (*store.Place, error) {
	place, err := wf.registry.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	submitter := "un utilisateur"
	if owner, err := wf.store.Users.GetByID(ctx, place.OwnerID); err == nil {
		submitter = owner.FullName()
	}

	wf.hub.Broadcast(notify.TopicModeration, notify.Event{
		Kind:    notify.EventPlaceSubmitted,
		PlaceID: place.ID,
		Status:  string(place.Status),
		Message: fmt.Sprintf("Nouveau lieu « %s » proposé par %s.", place.Name, submitter),
	})

	return place, nil
}

// Approve transitions the place to APPROVED. When the transition is a
// same-state no-op, nothing is written and nothing is emitted.
func (wf *Workflow) Approve(ctx context.Context, placeID int64) (*store.Place, error) {
	place, changed, err := wf.registry.Approve(ctx, placeID)
	if err != nil {
		return nil, err
	}
	if changed {
		wf.notifyOwner(ctx, place, notify.EventPlaceApproved, "Votre lieu est en ligne.", mailer.PlaceApprovedTemplate)
	}
	return place, nil
}

// Reject is symmetric to Approve.
func (wf *Workflow) Reject(ctx context.Context, placeID int64) (*store.Place, error) {
	place, changed, err := wf.registry.Reject(ctx, placeID)
	if err != nil {
		return nil, err
	}
	if changed {
		wf.notifyOwner(ctx, place, notify.EventPlaceRejected, "Votre lieu a été refusé.", mailer.PlaceRejectedTemplate)
	}
	return place, nil
}

// notifyOwner runs strictly after the transition committed. The owner only
// hears about the decision while connected; the email is a courtesy copy.
func (wf *Workflow) notifyOwner(ctx context.Context, place *store.Place, kind notify.EventKind, message, templateFile string) {
	owner, err := wf.store.Users.GetByID(ctx, place.OwnerID)
	if err != nil {
		wf.logger.Warnw("owner not resolvable, skipping decision notification",
			"placeID", place.ID, "ownerID", place.OwnerID, "error", err)
		return
	}

	wf.hub.Directed(owner.ID, notify.Event{
		Kind:    kind,
		PlaceID: place.ID,
		Status:  string(place.Status),
		Message: message,
	})

	if wf.mailer == nil {
		return
	}

	vars := struct {
		Username  string
		PlaceName string
	}{
		Username:  owner.FullName(),
		PlaceName: place.Name,
	}

	if _, err := wf.mailer.Send(templateFile, owner.FullName(), owner.Email, vars); err != nil {
		wf.logger.Errorw("decision email failed", "placeID", place.ID, "email", owner.Email, "error", err)
	}
}
