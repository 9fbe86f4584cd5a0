package services

import (
	"fmt"
	"net/smtp"
	"os"
	"time"
)

type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

func NewEmailService() *EmailService {
	return &EmailService{
		host:     os.Getenv("SMTP_HOST"),
		port:     os.Getenv("SMTP_PORT"),
		user:     os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASS"),
		from:     os.Getenv("EMAIL_FROM"),
	}
}

// Configured reports whether SMTP credentials are present. The worker skips
// the email channel entirely when they are not.
func (s *EmailService) Configured() bool {
	return s.host != "" && s.port != "" && s.user != "" && s.password != ""
}

func (s *EmailService) SendEmail(to []string, subject, body string) error {
	if !s.Configured() {
		return fmt.Errorf("SMTP credentials not fully configured")
	}

	auth := smtp.PlainAuth("", s.user, s.password, s.host)

	message := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", to[0], subject, body))

	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	err := smtp.SendMail(addr, auth, s.from, to, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// ReminderBody renders the plain-text body of a contribution reminder.
func ReminderBody(userName, groupName string, amount float64, dueDate *time.Time, paymentRef string) string {
	due := "as soon as possible"
	if dueDate != nil {
		due = "by " + dueDate.Format("January 2, 2006")
	}
	return fmt.Sprintf(
		"Hi %s,\n\nYour contribution of %.2f for the group %q is due %s.\n\nOpen the app to record your payment: tontine://payments/%s\n",
		userName, amount, groupName, due, paymentRef,
	)
}
