package services

import (
	"fmt"
	"html"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"cleanzone-api/config"
	"cleanzone-api/models"
)

// Notifier delivers out-of-band notices about event lifecycle actions.
type Notifier interface {
	TransferRequested(event *models.Event, from, to *models.User)
	EventCancelled(event *models.Event, recipients []models.User)
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailService struct {
	cfg    config.SMTPConfig
	sender mailSender
	log    *logrus.Logger
}

func NewEmailService(cfg config.SMTPConfig, log *logrus.Logger) *EmailService {
	return &EmailService{
		cfg:    cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		log:    log,
	}
}

func (es *EmailService) TransferRequested(event *models.Event, from, to *models.User) {
	subject := fmt.Sprintf("CleanZone - You were asked to organize \"%s\"", event.Title)
	text := fmt.Sprintf(`Hello %s!

%s would like you to take over the organization of the cleanup event "%s" starting %s.

Open the CleanZone app to accept or decline the request.

The CleanZone Team
`, to.Name, from.Name, event.Title, event.StartAt.Format("Mon, 02 Jan 2006 15:04 MST"))

	htmlBody := fmt.Sprintf(`<p>Hello %s!</p>
<p><strong>%s</strong> would like you to take over the organization of the cleanup event
<strong>%s</strong> starting %s.</p>
<p>Open the CleanZone app to accept or decline the request.</p>
<p>The CleanZone Team</p>`,
		html.EscapeString(to.Name), html.EscapeString(from.Name), html.EscapeString(event.Title),
		event.StartAt.Format("Mon, 02 Jan 2006 15:04 MST"))

	es.send([]string{to.Email}, subject, text, htmlBody)
}

func (es *EmailService) EventCancelled(event *models.Event, recipients []models.User) {
	if len(recipients) == 0 {
		return
	}
	subject := fmt.Sprintf("CleanZone - \"%s\" was cancelled", event.Title)
	text := fmt.Sprintf(`Hello!

The cleanup event "%s" planned for %s has been cancelled by its organizer.

The zone is open again for a new event.

The CleanZone Team
`, event.Title, event.StartAt.Format("Mon, 02 Jan 2006 15:04 MST"))

	htmlBody := fmt.Sprintf(`<p>Hello!</p>
<p>The cleanup event <strong>%s</strong> planned for %s has been cancelled by its organizer.</p>
<p>The zone is open again for a new event.</p>
<p>The CleanZone Team</p>`,
		html.EscapeString(event.Title), event.StartAt.Format("Mon, 02 Jan 2006 15:04 MST"))

	to := make([]string, 0, len(recipients))
	for _, u := range recipients {
		to = append(to, u.Email)
	}
	es.send(to, subject, text, htmlBody)
}

// send delivers one message per recipient. Failures are logged, never returned.
func (es *EmailService) send(to []string, subject, text, htmlBody string) {
	if !es.cfg.Enabled {
		es.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Debug("email disabled, skipping")
		return
	}

	messages := make([]*gomail.Message, 0, len(to))
	for _, addr := range to {
		m := gomail.NewMessage()
		m.SetHeader("From", m.FormatAddress(es.cfg.FromEmail, es.cfg.FromName))
		m.SetHeader("To", addr)
		m.SetHeader("Subject", subject)
		m.SetBody("text/plain", text)
		m.AddAlternative("text/html", htmlBody)
		messages = append(messages, m)
	}

	if err := es.sender.DialAndSend(messages...); err != nil {
		es.log.WithError(err).WithField("subject", subject).Error("failed to send email")
		return
	}
	es.log.WithFields(logrus.Fields{"recipients": len(to), "subject": subject}).Info("email sent")
}
