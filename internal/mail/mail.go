// Package mail composes and delivers the transactional emails sent by the worker.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	gomail "github.com/wneessen/go-mail"
	"github.com/yukikurage/taskflow-api/internal/config"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/queue"
)

const sendTimeout = 30 * time.Second

// Job kinds handled by the mailer queue.
const (
	KindWelcome       = "welcome"
	KindPasswordReset = "password_reset"
)

// Enqueuer is the fire-and-forget contract used by request handling code.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, userID uint64) error
}

// Dispatcher puts mail jobs on the mailers queue.
type Dispatcher struct {
	queue queue.Queue
}

func NewDispatcher(q queue.Queue) *Dispatcher {
	return &Dispatcher{queue: q}
}

func (d *Dispatcher) Enqueue(ctx context.Context, kind string, userID uint64) error {
	job := queue.NewJob(constants.MailQueue, kind, userID)
	if err := d.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue %s mail for user %d: %w", kind, userID, err)
	}
	return nil
}

type Message struct {
	To      string
	Subject string
	Body    string
}

// Compose builds the message for kind. Bodies are plain text.
func Compose(kind string, user *models.User) (Message, error) {
	switch kind {
	case KindWelcome:
		return Message{
			To:      user.Email,
			Subject: "Welcome to TaskFlow!",
			Body: fmt.Sprintf("Hi %s,\n\nYour TaskFlow account is ready. Sign in with %s to start tracking tasks.\n",
				user.Username, user.Email),
		}, nil
	case KindPasswordReset:
		return Message{
			To:      user.Email,
			Subject: "Password Reset Instructions",
			Body: fmt.Sprintf("Hi %s,\n\nWe received a request to reset your TaskFlow password. "+
				"If you did not ask for this, you can ignore this email.\n", user.Username),
		}, nil
	default:
		return Message{}, fmt.Errorf("unknown mail kind %q", kind)
	}
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender when SMTP_HOST is set and a log sender otherwise.
func NewSender(cfg *config.Config, logger *slog.Logger) (Sender, error) {
	if cfg.SMTPHost == "" {
		return NewLogSender(logger), nil
	}
	return NewSMTPSender(cfg)
}

// SMTPSender delivers messages through an SMTP relay. STARTTLS is used when
// the server offers it.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

func NewSMTPSender(cfg *config.Config) (*SMTPSender, error) {
	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP port %q: %w", cfg.SMTPPort, err)
	}

	opts := []gomail.Option{
		gomail.WithPort(port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(sendTimeout),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure SMTP client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.MailFrom}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to deliver mail to %s: %w", msg.To, err)
	}
	return nil
}

// build renders msg with Date and Message-ID headers and an encoded subject.
func (s *SMTPSender) build(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", s.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return m, nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail delivery skipped, SMTP not configured",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
