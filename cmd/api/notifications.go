package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pinpoint/internal/notify"
)

// notificationStreamHandler godoc
//
//	@Summary		Subscribes to real-time notifications over SSE
//	@Description	Every caller gets their private mailbox; admins also join the shared moderation feed. Events are ephemeral: nothing missed while disconnected is replayed.
//	@Tags			notifications
//	@Produce		text/event-stream
//	@Success		200
//	@Failure		401	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/notifications/stream [get]
func (app *application) notificationStreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		app.internalServerError(w, r, fmt.Errorf("streaming unsupported"))
		return
	}

	user := getUserFromContext(r)

	client := app.hub.Subscribe(user.ID)
	if user.IsAdmin() {
		app.hub.JoinTopic(client, notify.TopicModeration)
	}
	defer app.hub.Remove(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, ok := <-client.Outbound:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				app.logger.Errorw("marshal notification event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, payload)
			flusher.Flush()
		}
	}
}
