package services

import (
	"html/template"
	"strings"

	"github.com/adampresley/adamgokit/email"
	"github.com/adampresley/proofingdesk/pkg/models"
)

/*
Mailer mirrors provider notifications to email.
*/
type Mailer interface {
	SendNotification(toName, toEmail string, notification models.Notification) error
}

type EmailServiceConfig struct {
	ApiKey    string
	BaseURL   string
	FromEmail string
	FromName  string
}

type EmailService struct {
	apiKey    string
	baseURL   string
	fromEmail string
	fromName  string
}

var notificationSubjects = map[models.NotificationType]string{
	models.NotificationSelectionSubmitted: "A client submitted their selection",
	models.NotificationReopenRequested:    "A client asked to reopen their selection",
	models.NotificationDeadlineWarning:    "A selection deadline is approaching",
	models.NotificationDeadlineExpired:    "A selection deadline has expired",
	models.NotificationRevisionRequested:  "A client requested a revision",
	models.NotificationAlbumApproved:      "A client approved an album",
}

var notificationTemplate = template.Must(template.New("notification").Parse(`
<h1>{{.subject}}</h1>
<p>Hello {{.toName}}!</p>
<p>{{.message}}</p>
<a href="{{.studioURL}}">Open your studio</a>
`))

func NewEmailService(config EmailServiceConfig) EmailService {
	return EmailService{
		apiKey:    config.ApiKey,
		baseURL:   config.BaseURL,
		fromEmail: config.FromEmail,
		fromName:  config.FromName,
	}
}

func (s EmailService) SendNotification(toName, toEmail string, notification models.Notification) error {
	parsedTemplate := strings.Builder{}

	subject, ok := notificationSubjects[notification.Type]
	if !ok {
		subject = "You have a new notification"
	}

	service := email.NewResendService(&email.Config{
		ApiKey: s.apiKey,
	})

	data := map[string]any{
		"subject":   subject,
		"toName":    toName,
		"message":   notification.Message,
		"studioURL": strings.TrimSuffix(s.baseURL, "/") + "/studio/notifications",
	}

	_ = notificationTemplate.Execute(&parsedTemplate, data)

	return service.Send(email.Mail{
		Body:       parsedTemplate.String(),
		BodyIsHtml: true,
		From: email.EmailAddress{
			Email: s.fromEmail,
			Name:  s.fromName,
		},
		Subject: subject,
		To: []email.EmailAddress{
			{Name: toName, Email: toEmail},
		},
	})
}
