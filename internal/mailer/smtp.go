package mailer

import (
	"fmt"
	"net"
	"time"

	gomail "gopkg.in/mail.v2"
)

// SMTPTimeout bounds the dial, the greeting and the session with the relay.
const SMTPTimeout = 8 * time.Second

func init() {
	gomail.NetDialTimeout = dialWithDeadline
}

// dialWithDeadline puts a deadline on the connection before the server
// greeting is read. gomail only sets one after the greeting, so a relay that
// accepts and stays silent would otherwise block forever.
func dialWithDeadline(network, address string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

type SMTPMailer struct {
	fromEmail string
	dialer    *gomail.Dialer
	backoff   time.Duration
}

func NewSMTPMailer(host string, port int, username, password, fromEmail string) (*SMTPMailer, error) {
	if host == "" || fromEmail == "" {
		return nil, fmt.Errorf("smtp host and from email are required")
	}

	d := gomail.NewDialer(host, port, username, password)
	d.Timeout = SMTPTimeout

	return &SMTPMailer{
		fromEmail: fromEmail,
		dialer:    d,
		backoff:   time.Second,
	}, nil
}

func (m *SMTPMailer) Send(templateFile, username, email string, data any) error {
	subject, body, err := render(templateFile, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, FromName)
	msg.SetAddressHeader("To", email, username)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	var lastErr error
	for i := 0; i < maxRetires; i++ {
		if lastErr = m.dialer.DialAndSend(msg); lastErr == nil {
			return nil
		}
		if i < maxRetires-1 {
			// linear backoff
			time.Sleep(m.backoff * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetires, lastErr)
}
