package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tailtribe/internal/platform/logger"

	"github.com/panjf2000/ants/v2"
	"gopkg.in/gomail.v2"
)

var ErrInvalidMessage = errors.New("invalid message")

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" || strings.TrimSpace(m.Subject) == "" {
		return ErrInvalidMessage
	}
	if strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.HTML) == "" {
		return ErrInvalidMessage
	}
	return nil
}

// Mailer envía emails. SendAsync nunca bloquea el request.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	SendAsync(msg Message)
	Configured() bool
}

type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	Workers   int
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer usa gomail para SMTP y un pool de ants para los envíos async.
type SMTPMailer struct {
	cfg    Config
	dialer sender
	pool   *ants.Pool
	log    logger.Logger
}

func NewSMTP(cfg Config, log logger.Logger) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("mailer: smtp host required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if log == nil {
		log = logger.Nop()
	}

	pool, err := ants.NewPool(cfg.Workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("mailer: pool: %w", err)
	}

	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		pool:   pool,
		log:    log,
	}, nil
}

func (m *SMTPMailer) Configured() bool { return true }

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := m.build(msg)
	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) SendAsync(msg Message) {
	err := m.pool.Submit(func() {
		if err := m.Send(context.Background(), msg); err != nil {
			m.log.Error("mail send failed", map[string]any{"to": msg.To, "subject": msg.Subject, "error": err})
			return
		}
		m.log.Debug("mail sent", map[string]any{"to": msg.To, "subject": msg.Subject})
	})
	if err != nil {
		// Pool lleno (nonblocking): se descarta y se loguea.
		m.log.Warn("mail dropped", map[string]any{"to": msg.To, "subject": msg.Subject, "error": err})
	}
}

// Close espera (con límite) los envíos en curso y libera el pool.
func (m *SMTPMailer) Close() {
	if err := m.pool.ReleaseTimeout(5 * time.Second); err != nil {
		m.log.Warn("mail pool release timeout", map[string]any{"error": err})
	}
}

func (m *SMTPMailer) build(msg Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.cfg.FromEmail, m.cfg.FromName)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		gm.SetBody("text/plain", msg.Text)
		gm.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		gm.SetBody("text/html", msg.HTML)
	default:
		gm.SetBody("text/plain", msg.Text)
	}
	return gm
}

// Noop se usa cuando SMTP no está configurado: loguea y descarta.
type Noop struct {
	Log logger.Logger
}

func (n Noop) Configured() bool { return false }

func (n Noop) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if n.Log != nil {
		n.Log.Debug("mail skipped (smtp not configured)", map[string]any{"to": msg.To, "subject": msg.Subject})
	}
	return nil
}

func (n Noop) SendAsync(msg Message) {
	_ = n.Send(context.Background(), msg)
}
