// Package mail defines the outbound mail contract used by export jobs.
package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/okian/shortlist/pkg/logger"
)

// ErrNoRecipients is returned for a message without any address.
var ErrNoRecipients = errors.New("mail: no recipients")

var validate = validator.New()

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outbound mail.
type Message struct {
	From        string
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Validate checks every address in m.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	if err := validate.Var(m.From, "required,email"); err != nil {
		return fmt.Errorf("mail: invalid sender %q: %w", m.From, err)
	}
	if err := validate.Var(m.To, "dive,required,email"); err != nil {
		return fmt.Errorf("mail: invalid recipient: %w", err)
	}
	return nil
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	log logger.Logger
}

// NewLogMailer returns a LogMailer writing through log.
func NewLogMailer(log logger.Logger) *LogMailer {
	if log == nil {
		log = logger.Nop()
	}
	return &LogMailer{log: log.Named("mail")}
}

// Send implements Mailer.
func (l *LogMailer) Send(ctx context.Context, m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	size := 0
	for _, a := range m.Attachments {
		size += len(a.Data)
	}
	l.log.Info(ctx, "mail sent",
		logger.String("from", m.From),
		logger.Any("to", m.To),
		logger.String("subject", m.Subject),
		logger.Int("attachments", len(m.Attachments)),
		logger.Int("bytes", size))
	return nil
}
