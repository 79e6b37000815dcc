package mailer

import "go.uber.org/zap"

// LogMailer renders emails and writes them to the log instead of sending them.
// Used for local development.
type LogMailer struct {
	logger *zap.SugaredLogger
}

func NewLogMailer(logger *zap.SugaredLogger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(templateFile, username, email string, data any) error {
	subject, body, err := render(templateFile, data)
	if err != nil {
		return err
	}
	m.logger.Infow("email that would be sent", "to", email, "name", username, "subject", subject, "body", body)
	return nil
}
