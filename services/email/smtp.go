package emailsvc

import (
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hocsinh/core"
)

// smtpService delivers through an authenticated STARTTLS relay (e.g. Gmail on 587).
type smtpService struct {
	server     string
	port       int
	email      string
	password   string
	timeout    time.Duration
	subjPrefix string
	logger     core.Logger
	conf       *core.Config
}

var _ core.EmailService = (*smtpService)(nil) // interface compliance check

func NewSMTPService(conf *core.Config, logger core.Logger) *smtpService {
	return &smtpService{
		server:     conf.Email.SMTPServer,
		port:       conf.Email.SMTPPort,
		email:      conf.Email.SMTPEmail,
		password:   conf.Email.SMTPPassword,
		timeout:    conf.Email.SMTPTimeout,
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
		conf:       conf,
	}
}

func (svc smtpService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := svc.SendMessage(msg); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
			}
		}()
	}
}

func (svc smtpService) SendMessage(msg *core.EmailMessage) error {
	if svc.email == "" || svc.password == "" {
		return errors.New("smtp credentials are not configured")
	}
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return errors.New("email has no recipient or content")
	}

	body, err := svc.build(*msg)
	if err != nil {
		return err
	}
	return svc.deliver(recipients(*msg), body)
}

func (svc smtpService) build(msg core.EmailMessage) ([]byte, error) {
	from := svc.conf.DefaultFromEmail()
	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "From: %s\r\n", from.String())
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		_, _ = fmt.Fprintf(body, "Cc: %s\r\n", joinAddresses(msg.Cc))
	}
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", svc.subjPrefix+msg.Subject))
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")

	altW := multipart.NewWriter(body)
	_, _ = fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altW.Boundary())

	w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, errors.Wrap(err, "creating text/plain part")
	}
	_, _ = fmt.Fprintf(w, "%s\r\n", msg.TextContent)
	if msg.HTMLContent != "" {
		if w, err = altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}}); err != nil {
			return nil, errors.Wrap(err, "creating text/html part")
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", msg.HTMLContent)
	}
	if err = altW.Close(); err != nil {
		return nil, errors.Wrap(err, "closing multipart writer")
	}
	return []byte(body.String()), nil
}

func (svc smtpService) deliver(to []string, body []byte) error {
	addr := net.JoinHostPort(svc.server, strconv.Itoa(svc.port))
	conn, err := net.DialTimeout("tcp", addr, svc.timeout)
	if err != nil {
		return errors.Wrap(err, "connecting to smtp server")
	}
	_ = conn.SetDeadline(time.Now().Add(svc.timeout))

	c, err := smtp.NewClient(conn, svc.server)
	if err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "greeting smtp server")
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err = c.StartTLS(&tls.Config{ServerName: svc.server}); err != nil {
			return errors.Wrap(err, "starting tls")
		}
	}
	if err = c.Auth(smtp.PlainAuth("", svc.email, svc.password, svc.server)); err != nil {
		return errors.Wrap(err, "authenticating")
	}
	if err = c.Mail(svc.email); err != nil {
		return errors.Wrap(err, "setting sender")
	}
	for _, rcpt := range to {
		if err = c.Rcpt(rcpt); err != nil {
			return errors.Wrapf(err, "adding recipient %s", rcpt)
		}
	}
	w, err := c.Data()
	if err != nil {
		return errors.Wrap(err, "opening data")
	}
	if _, err = w.Write(body); err != nil {
		return errors.Wrap(err, "writing body")
	}
	if err = w.Close(); err != nil {
		return errors.Wrap(err, "closing data")
	}
	return errors.Wrap(c.Quit(), "quitting")
}

func recipients(msg core.EmailMessage) []string {
	rcpts := make([]string, 0, len(msg.To)+len(msg.Cc)+len(msg.Bcc))
	for _, group := range [][]mail.Address{msg.To, msg.Cc, msg.Bcc} {
		for _, a := range group {
			rcpts = append(rcpts, a.Address)
		}
	}
	return rcpts
}
