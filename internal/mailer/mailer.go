package mailer

import "embed"

const (
	FromName              = "Pinpoint"
	maxRetries            = 3
	UserWelcomeTemplate   = "user_welcome.tmpl"
	PlaceApprovedTemplate = "place_approved.tmpl"
	PlaceRejectedTemplate = "place_rejected.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(templateFile, username, email string, data any) (int, error)
}
