package mailer

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
type EmailJob struct {
	To      string         `json:"to"`
	Subject string         `json:"subject,omitempty"`
	Text    string         `json:"text,omitempty"`
	Kind    string         `json:"kind,omitempty"` // e.g. "login_notification"
	Data    map[string]any `json:"data,omitempty"`
}

const KindLoginNotification = "login_notification"
