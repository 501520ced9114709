// Package mailer composes MIME messages and delivers them through an SMTP relay.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"crm-service/pkg/config"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

// ErrNoRecipient is returned for a message without a To address
var ErrNoRecipient = errors.New("message has no recipient")

// Address is a display name plus mailbox
type Address struct {
	Name  string
	Email string
}

// Message is one outbound email with a plain and an HTML body
type Message struct {
	From    Address
	To      []Address
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Compose renders msg as a multipart/alternative RFC 5322 message.
func Compose(msg *Message, date time.Time) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipient
	}

	var h mail.Header
	h.SetDate(date)
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: msg.From.Name, Address: msg.From.Email}})
	to := make([]*mail.Address, 0, len(msg.To))
	for _, a := range msg.To {
		to = append(to, &mail.Address{Name: a.Name, Address: a.Email})
	}
	h.SetAddressList("To", to)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating mail writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("creating inline writer: %w", err)
	}

	if err := writePart(tw, "text/plain", msg.Text); err != nil {
		return nil, err
	}
	if msg.HTML != "" {
		if err := writePart(tw, "text/html", msg.HTML); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return w.Close()
}

// SMTPSender sends through a relay with SASL PLAIN auth when credentials are set
type SMTPSender struct {
	addr   string
	auth   sasl.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewSMTPSender creates a relay sender from configuration
func NewSMTPSender(cfg config.SMTPConfig, logger *zap.Logger) *SMTPSender {
	var auth sasl.Client
	if cfg.User != "" {
		auth = sasl.NewPlainClient("", cfg.User, cfg.Password)
	}
	return &SMTPSender{
		addr:   cfg.Addr(),
		auth:   auth,
		logger: logger,
		now:    time.Now,
	}
}

// Send delivers msg to every To address
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := Compose(msg, s.now())
	if err != nil {
		return err
	}

	rcpts := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		rcpts = append(rcpts, a.Email)
	}

	if err := smtp.SendMail(s.addr, s.auth, msg.From.Email, rcpts, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("smtp send to %v: %w", rcpts, err)
	}

	s.logger.Debug("Email sent",
		zap.Strings("to", rcpts),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// LogSender only logs messages; used when no relay is configured
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that writes each message to the log
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message envelope
func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipient
	}
	rcpts := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		rcpts = append(rcpts, a.Email)
	}
	s.logger.Info("Email delivery disabled, message logged",
		zap.Strings("to", rcpts),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// NewSender picks the SMTP relay when a host is configured
func NewSender(cfg config.SMTPConfig, logger *zap.Logger) Sender {
	if cfg.Host == "" {
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg, logger)
}
