// Package notify raises alerts when the meter stays in the over band.
package notify

import (
	"fmt"
	"strings"
	"time"

	"levelmeter/internal/config"

	"github.com/wneessen/go-mail"
)

// humanTime is the timestamp format used in alert bodies.
const humanTime = "2006-01-02 15:04:05 MST"

// SendOverAlert sends an email notification for a sustained over.
func SendOverAlert(cfg config.EmailConfig, duration time.Duration, ports []int, now time.Time) error {
	if !emailConfigured(cfg) {
		return nil // Silently skip if not configured
	}

	subject := "[ALERT] Level Over - levelmeter"
	body := fmt.Sprintf(
		"The meter has been in the over band.\n\n"+
			"Duration: %.1f seconds\n"+
			"Ports:    %s\n"+
			"Time:     %s\n\n"+
			"Please check the input gain.",
		duration.Seconds(), formatPorts(ports), now.Format(humanTime),
	)

	return sendEmail(cfg, subject, body)
}

// SendRecoveryAlert sends an email notification when levels return below the over band.
func SendRecoveryAlert(cfg config.EmailConfig, total time.Duration, now time.Time) error {
	if !emailConfigured(cfg) {
		return nil // Silently skip if not configured
	}

	subject := "[OK] Level Recovered - levelmeter"
	body := fmt.Sprintf(
		"Levels are back below the over band.\n\n"+
			"Over lasted: %.1f seconds\n"+
			"Time:        %s",
		total.Seconds(), now.Format(humanTime),
	)

	return sendEmail(cfg, subject, body)
}

func emailConfigured(cfg config.EmailConfig) bool {
	return cfg.Host != "" && cfg.Username != "" && cfg.Recipients != ""
}

func formatPorts(ports []int) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprint(p + 1)
	}
	return strings.Join(parts, ", ")
}

func splitRecipients(list string) []string {
	var recipients []string
	for _, r := range strings.Split(list, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return recipients
}

// newMessage builds the plain text alert message.
func newMessage(cfg config.EmailConfig, subject, body string) (*mail.Msg, error) {
	recipients := splitRecipients(cfg.Recipients)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no valid recipients")
	}

	m := mail.NewMsg()
	if cfg.FromName != "" {
		if err := m.FromFormat(cfg.FromName, cfg.Username); err != nil {
			return nil, fmt.Errorf("set from address: %w", err)
		}
	} else {
		if err := m.From(cfg.Username); err != nil {
			return nil, fmt.Errorf("set from address: %w", err)
		}
	}
	if err := m.To(recipients...); err != nil {
		return nil, fmt.Errorf("set recipient address: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)
	return m, nil
}

// clientOptions picks the TLS policy from the port.
func clientOptions(cfg config.EmailConfig) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}

	switch cfg.Port {
	case 465: // SMTPS - implicit TLS
		opts = append(opts, mail.WithSSL())
	case 587: // Submission - STARTTLS required
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	default: // Port 25 or custom - opportunistic TLS
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	return opts
}

// sendEmail delivers an email message to configured recipients.
func sendEmail(cfg config.EmailConfig, subject, body string) error {
	m, err := newMessage(cfg, subject, body)
	if err != nil {
		return err
	}

	c, err := mail.NewClient(cfg.Host, clientOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}

	if err := c.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}
